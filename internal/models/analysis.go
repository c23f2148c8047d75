package models

import (
	"time"

	"gorm.io/datatypes"
)

// Analysis kinds.
const (
	AnalysisKindHeuristic = "enhanced"
	AnalysisKindAssisted  = "ai_enhanced_with_history"
)

// Analysis sources.
const (
	AnalysisSourceHeuristic = "heuristic"
	AnalysisSourceProvider  = "provider"
	AnalysisSourceFallback  = "fallback"
)

// Analysis statuses.
const (
	AnalysisStatusPending   = "pending"
	AnalysisStatusCompleted = "completed"
	AnalysisStatusFailed    = "failed"
)

// Analysis is a stored assessment of one submission. It deliberately carries no
// foreign key to the submission so that it survives a resubmission.
type Analysis struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	StudentID       uint              `gorm:"not null;index" json:"student_id"`
	SubmissionID    uint              `gorm:"not null;index" json:"submission_id"`
	Kind            string            `gorm:"size:64;not null" json:"analysis_type"`
	Source          string            `gorm:"size:16;not null" json:"source"`
	Status          string            `gorm:"size:16;not null;default:pending" json:"status"`
	Results         datatypes.JSONMap `gorm:"type:json" json:"results"`
	ConfidenceScore float64           `gorm:"not null;default:0" json:"confidence_score"`
	CreatedAt       time.Time         `json:"created_at"`
	CompletedAt     *time.Time        `json:"completed_at"`
}
