package models

import (
	"time"

	"gorm.io/datatypes"
)

// QuizKindGenerated marks quizzes produced by the per-submission pipeline.
const QuizKindGenerated = "ai_generated_with_history"

// Quiz sources.
const (
	QuizSourceProvider = "provider"
	QuizSourceFallback = "fallback"
)

// Quiz statuses.
const (
	QuizStatusGenerated = "generated"
	QuizStatusCompleted = "completed"
)

// Question types with a checkable answer.
const QuestionTypeMultipleChoice = "multiple_choice"

// Quiz is a comprehension check tied to one submission.
type Quiz struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	StudentID      uint           `gorm:"not null;index" json:"student_id"`
	SubmissionID   uint           `gorm:"not null;index" json:"submission_id"`
	AnalysisID     *uint          `gorm:"index" json:"analysis_id"`
	Kind           string         `gorm:"size:64;not null" json:"quiz_type"`
	Source         string         `gorm:"size:16;not null" json:"source"`
	Status         string         `gorm:"size:16;not null;default:generated" json:"status"`
	TotalQuestions int            `gorm:"not null;default:0" json:"total_questions"`
	CorrectAnswers int            `gorm:"not null;default:0" json:"correct_answers"`
	Score          *float64       `json:"score"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at"`
	Questions      []QuizQuestion `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions,omitempty"`
}

// QuizQuestion is one question of a quiz.
type QuizQuestion struct {
	ID                 uint                        `gorm:"primaryKey" json:"id"`
	QuizID             uint                        `gorm:"not null;index" json:"quiz_id"`
	QuestionType       string                      `gorm:"size:32;not null" json:"question_type"`
	QuestionText       string                      `gorm:"type:text;not null" json:"question_text"`
	CodeSnippet        string                      `gorm:"type:text" json:"code_snippet"`
	Options            datatypes.JSONSlice[string] `gorm:"type:json" json:"options"`
	CorrectAnswer      string                      `gorm:"type:text" json:"correct_answer"`
	StudentAnswer      *string                     `gorm:"type:text" json:"student_answer"`
	IsCorrect          *bool                       `json:"is_correct"`
	Explanation        string                      `gorm:"type:text" json:"explanation"`
	Difficulty         string                      `gorm:"size:16;not null;default:medium" json:"difficulty"`
	LearningObjectives datatypes.JSONSlice[string] `gorm:"type:json" json:"learning_objectives"`
	CreatedAt          time.Time                   `json:"created_at"`
}

// Checkable reports whether the question has a single correct option.
func (q QuizQuestion) Checkable() bool {
	return q.QuestionType == QuestionTypeMultipleChoice && len(q.Options) > 0
}
