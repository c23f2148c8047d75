package dto

import (
	"time"

	"github.com/erikwilensky/codecheck/internal/models"
)

// AnalysisListRequest filters stored analyses.
type AnalysisListRequest struct {
	StudentID    *uint
	SubmissionID *uint
	Kind         string `validate:"omitempty,oneof=enhanced ai_enhanced_with_history"`
	Limit        int    `validate:"omitempty,min=1,max=50"`
}

// AnalysisResponse serializes a stored analysis.
type AnalysisResponse struct {
	ID              uint                   `json:"id"`
	StudentID       uint                   `json:"student_id"`
	SubmissionID    uint                   `json:"submission_id"`
	AnalysisType    string                 `json:"analysis_type"`
	Source          string                 `json:"source"`
	Status          string                 `json:"status"`
	Results         map[string]interface{} `json:"results"`
	ConfidenceScore float64                `json:"confidence_score"`
	CreatedAt       time.Time              `json:"created_at"`
	CompletedAt     *time.Time             `json:"completed_at"`
}

// NewAnalysisResponse converts an Analysis model into a DTO.
func NewAnalysisResponse(model models.Analysis) AnalysisResponse {
	return AnalysisResponse{
		ID:              model.ID,
		StudentID:       model.StudentID,
		SubmissionID:    model.SubmissionID,
		AnalysisType:    model.Kind,
		Source:          model.Source,
		Status:          model.Status,
		Results:         metadataFromJSON(model.Results),
		ConfidenceScore: model.ConfidenceScore,
		CreatedAt:       model.CreatedAt,
		CompletedAt:     model.CompletedAt,
	}
}
