package dto

import "time"

// Assessment event types.
const (
	EventSubmissionCreated = "submission.created"
	EventAnalysisCompleted = "analysis.completed"
	EventQuizGenerated     = "quiz.generated"
	EventBulkQuizGenerated = "bulk_quiz.generated"
	EventRosterImported    = "roster.imported"
)

// AssessmentEvent is streamed to the admin feed and fanned out across nodes.
type AssessmentEvent struct {
	Type         string                 `json:"type"`
	StudentID    uint                   `json:"student_id,omitempty"`
	SubmissionID uint                   `json:"submission_id,omitempty"`
	EntityID     uint                   `json:"entity_id,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	// CorrelationID is the request that produced the event, empty for CLI runs.
	CorrelationID string    `json:"correlation_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
