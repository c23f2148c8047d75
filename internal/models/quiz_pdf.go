package models

import (
	"time"

	"gorm.io/datatypes"
)

// QuizPDF is a rendered bulk quiz packet for one assignment.
type QuizPDF struct {
	ID             uint                      `gorm:"primaryKey" json:"id"`
	AssignmentName string                    `gorm:"size:255;not null;index" json:"assignment_name"`
	FileName       string                    `gorm:"size:255;not null" json:"file_name"`
	PDFData        []byte                    `gorm:"not null" json:"-"`
	StudentCount   int                       `gorm:"not null" json:"student_count"`
	QuestionCount  int                       `gorm:"not null" json:"question_count"`
	StudentIDs     datatypes.JSONSlice[uint] `gorm:"type:json" json:"student_ids"`
	QuizData       datatypes.JSON            `gorm:"type:json" json:"quiz_data"`
	GeneratedBy    string                    `gorm:"size:64;not null;default:admin" json:"generated_by"`
	ArchiveURL     string                    `gorm:"size:512" json:"archive_url,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
}
