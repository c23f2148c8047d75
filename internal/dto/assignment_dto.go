package dto

import (
	"time"

	"github.com/erikwilensky/codecheck/internal/models"
)

// AssignmentCreateRequest adds an assignment to the catalogue.
type AssignmentCreateRequest struct {
	Name         string `json:"name" validate:"required,max=255"`
	Description  string `json:"description" validate:"omitempty,max=5000"`
	Instructions string `json:"instructions" validate:"omitempty,max=20000"`
}

// AssignmentUpdateRequest captures partial assignment updates.
type AssignmentUpdateRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description  *string `json:"description" validate:"omitempty,max=5000"`
	Instructions *string `json:"instructions" validate:"omitempty,max=20000"`
	IsActive     *bool   `json:"is_active"`
}

// AssignmentResponse is returned to API clients.
type AssignmentResponse struct {
	ID              uint      `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Instructions    string    `json:"instructions"`
	IsActive        bool      `json:"is_active"`
	SubmissionCount *int64    `json:"submission_count,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewAssignmentResponse converts an Assignment model into a DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:           model.ID,
		Name:         model.Name,
		Description:  model.Description,
		Instructions: model.Instructions,
		IsActive:     model.IsActive,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

// NewAssignmentResponseSlice converts a slice of models to DTOs.
func NewAssignmentResponseSlice(assignments []models.Assignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment))
	}
	return responses
}
