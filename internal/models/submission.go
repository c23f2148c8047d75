package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission sources.
const (
	SubmissionSourceUpload = "upload"
	SubmissionSourcePaste  = "paste"
	SubmissionSourceGithub = "github"
)

// Submission is the single active code artifact of a student for an assignment.
// Commit metadata is only set for submissions that arrived through a push event.
type Submission struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	StudentID      uint                        `gorm:"not null;uniqueIndex:idx_submission_student_assignment,priority:1" json:"student_id"`
	AssignmentID   *uint                       `gorm:"index" json:"assignment_id"`
	AssignmentName string                      `gorm:"size:255;not null;uniqueIndex:idx_submission_student_assignment,priority:2" json:"assignment_name"`
	FileName       string                      `gorm:"size:255;not null" json:"file_name"`
	FileContent    string                      `gorm:"type:text;not null" json:"file_content"`
	FileSize       int64                       `gorm:"not null" json:"file_size"`
	Checksum       string                      `gorm:"size:64" json:"checksum"`
	Source         string                      `gorm:"size:16;not null;default:upload" json:"source"`
	CommitSHA      string                      `gorm:"size:64" json:"commit_sha,omitempty"`
	CommitMessage  string                      `gorm:"type:text" json:"commit_message,omitempty"`
	LinesAdded     int                         `json:"lines_added"`
	LinesDeleted   int                         `json:"lines_deleted"`
	FilesChanged   datatypes.JSONSlice[string] `gorm:"type:json" json:"files_changed"`
	Branch         string                      `gorm:"size:255" json:"branch,omitempty"`
	Repository     string                      `gorm:"size:255" json:"repository,omitempty"`
	CreatedAt      time.Time                   `json:"created_at"`
	Student        Student                     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
