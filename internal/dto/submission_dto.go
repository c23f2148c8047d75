package dto

import (
	"time"

	"github.com/erikwilensky/codecheck/internal/models"
)

// UploadSubmissionRequest describes the multipart upload form. Exactly one of the
// file part or CodePaste carries the code.
type UploadSubmissionRequest struct {
	StudentCode    string `form:"student_id" validate:"required,max=64"`
	AssignmentName string `form:"assignment_name" validate:"required,max=255"`
	CodePaste      string `form:"code_paste"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID             uint      `json:"id"`
	StudentID      uint      `json:"student_id"`
	AssignmentID   *uint     `json:"assignment_id"`
	AssignmentName string    `json:"assignment_name"`
	FileName       string    `json:"file_name"`
	FileSize       int64     `json:"file_size"`
	FileContent    string    `json:"file_content,omitempty"`
	Checksum       string    `json:"checksum"`
	Source         string    `json:"source"`
	CommitSHA      string    `json:"commit_sha,omitempty"`
	CommitMessage  string    `json:"commit_message,omitempty"`
	LinesAdded     int       `json:"lines_added"`
	LinesDeleted   int       `json:"lines_deleted"`
	FilesChanged   []string  `json:"files_changed"`
	Branch         string    `json:"branch,omitempty"`
	Repository     string    `json:"repository,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewSubmissionResponse converts a Submission model into a DTO. The code is only
// included when includeContent is set.
func NewSubmissionResponse(model models.Submission, includeContent bool) SubmissionResponse {
	response := SubmissionResponse{
		ID:             model.ID,
		StudentID:      model.StudentID,
		AssignmentID:   model.AssignmentID,
		AssignmentName: model.AssignmentName,
		FileName:       model.FileName,
		FileSize:       model.FileSize,
		Checksum:       model.Checksum,
		Source:         model.Source,
		CommitSHA:      model.CommitSHA,
		CommitMessage:  model.CommitMessage,
		LinesAdded:     model.LinesAdded,
		LinesDeleted:   model.LinesDeleted,
		FilesChanged:   []string(model.FilesChanged),
		Branch:         model.Branch,
		Repository:     model.Repository,
		CreatedAt:      model.CreatedAt,
	}
	if response.FilesChanged == nil {
		response.FilesChanged = []string{}
	}
	if includeContent {
		response.FileContent = model.FileContent
	}
	return response
}

// NewSubmissionResponseSlice converts submissions to DTOs without their code.
func NewSubmissionResponseSlice(items []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewSubmissionResponse(item, false))
	}
	return responses
}
