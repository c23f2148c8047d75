package dto

import (
	"time"

	"github.com/erikwilensky/codecheck/internal/models"
)

// StudentCreateRequest adds a student to the roster.
type StudentCreateRequest struct {
	StudentCode    string  `json:"student_id" validate:"required,max=64"`
	Name           string  `json:"name" validate:"required,max=255"`
	Block          int     `json:"block" validate:"required,oneof=4 6"`
	GithubUsername *string `json:"github_username" validate:"omitempty,max=255"`
	IsApproved     bool    `json:"is_approved"`
}

// StudentUpdateRequest captures partial roster updates.
type StudentUpdateRequest struct {
	Name           *string `json:"name" validate:"omitempty,min=1,max=255"`
	Block          *int    `json:"block" validate:"omitempty,oneof=4 6"`
	GithubUsername *string `json:"github_username" validate:"omitempty,max=255"`
	IsActive       *bool   `json:"is_active"`
}

// StudentListRequest defines filters for listing students.
type StudentListRequest struct {
	Block    *int   `validate:"omitempty,oneof=4 6"`
	Approved *bool  `validate:"omitempty"`
	Search   string `validate:"omitempty,max=255"`
	Page     int    `validate:"omitempty,min=1"`
	PageSize int    `validate:"omitempty,min=1,max=200"`
}

// StudentResponse serializes a roster entry.
type StudentResponse struct {
	ID             uint      `json:"id"`
	StudentCode    string    `json:"student_id"`
	Name           string    `json:"name"`
	Block          int       `json:"block"`
	GithubUsername *string   `json:"github_username"`
	IsApproved     bool      `json:"is_approved"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StudentListResponse wraps a paginated student list.
type StudentListResponse struct {
	Items      []StudentResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// RosterImportResult summarises a CSV roster import.
type RosterImportResult struct {
	Processed int      `json:"processed"`
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors"`
}

// NewStudentResponse converts a Student model into a DTO.
func NewStudentResponse(model models.Student) StudentResponse {
	return StudentResponse{
		ID:             model.ID,
		StudentCode:    model.StudentCode,
		Name:           model.Name,
		Block:          model.Block,
		GithubUsername: model.GithubUsername,
		IsApproved:     model.IsApproved,
		IsActive:       model.IsActive,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

// StudentSeedRequest registers a run of generated student codes such as STU001..STU030.
type StudentSeedRequest struct {
	Prefix  string `json:"prefix" validate:"required,alphanum,max=16"`
	Start   int    `json:"start" validate:"gte=0,lte=99999"`
	Count   int    `json:"count" validate:"required,min=1,max=500"`
	Block   int    `json:"block" validate:"required,oneof=4 6"`
	Approve bool   `json:"approve"`
}

// StudentSeedResult reports generated codes and how many were new.
type StudentSeedResult struct {
	Requested int      `json:"requested"`
	Created   int64    `json:"created"`
	Codes     []string `json:"codes"`
}
