package dto

import (
	"time"

	"github.com/erikwilensky/codecheck/internal/models"
)

// QuizListRequest filters stored quizzes.
type QuizListRequest struct {
	StudentID    *uint
	SubmissionID *uint
	Limit        int `validate:"omitempty,min=1,max=50"`
}

// QuizAnswerRequest records a student's answer to one question.
type QuizAnswerRequest struct {
	Answer string `json:"answer" validate:"required,max=4000"`
}

// QuizQuestionResponse serializes one quiz question.
type QuizQuestionResponse struct {
	ID                 uint     `json:"id"`
	QuestionType       string   `json:"question_type"`
	QuestionText       string   `json:"question_text"`
	CodeSnippet        string   `json:"code_snippet"`
	Options            []string `json:"options"`
	CorrectAnswer      string   `json:"correct_answer"`
	StudentAnswer      *string  `json:"student_answer"`
	IsCorrect          *bool    `json:"is_correct"`
	Explanation        string   `json:"explanation"`
	Difficulty         string   `json:"difficulty"`
	LearningObjectives []string `json:"learning_objectives"`
}

// QuizResponse serializes a quiz with its questions.
type QuizResponse struct {
	ID             uint                   `json:"id"`
	StudentID      uint                   `json:"student_id"`
	SubmissionID   uint                   `json:"submission_id"`
	AnalysisID     *uint                  `json:"analysis_id"`
	QuizType       string                 `json:"quiz_type"`
	Source         string                 `json:"source"`
	Status         string                 `json:"status"`
	TotalQuestions int                    `json:"total_questions"`
	CorrectAnswers int                    `json:"correct_answers"`
	Score          *float64               `json:"score"`
	CreatedAt      time.Time              `json:"created_at"`
	CompletedAt    *time.Time             `json:"completed_at"`
	Questions      []QuizQuestionResponse `json:"questions,omitempty"`
}

// QuizAnswerResponse echoes the graded question and the refreshed quiz totals.
type QuizAnswerResponse struct {
	Question QuizQuestionResponse `json:"question"`
	Quiz     QuizResponse         `json:"quiz"`
}

// BulkQuizRequest asks for one shared quiz packet across several students.
type BulkQuizRequest struct {
	AssignmentName string `json:"assignment_name" form:"assignment_name" validate:"required,max=255"`
	StudentIDs     []uint `json:"student_ids" validate:"required,min=1,max=200,dive,gt=0"`
	GeneratedBy    string `json:"-"`
}

// BulkQuizResult reports a rendered packet.
type BulkQuizResult struct {
	PDFID          uint   `json:"pdf_id"`
	QuestionsCount int    `json:"questions_count"`
	StudentCount   int    `json:"student_count"`
	FileName       string `json:"file_name"`
	ArchiveURL     string `json:"archive_url,omitempty"`
}

// QuizPDFResponse serializes packet metadata.
type QuizPDFResponse struct {
	ID             uint      `json:"id"`
	AssignmentName string    `json:"assignment_name"`
	FileName       string    `json:"file_name"`
	StudentCount   int       `json:"student_count"`
	QuestionCount  int       `json:"question_count"`
	StudentIDs     []uint    `json:"student_ids"`
	GeneratedBy    string    `json:"generated_by"`
	ArchiveURL     string    `json:"archive_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewQuizQuestionResponse converts a QuizQuestion model into a DTO.
func NewQuizQuestionResponse(model models.QuizQuestion) QuizQuestionResponse {
	response := QuizQuestionResponse{
		ID:                 model.ID,
		QuestionType:       model.QuestionType,
		QuestionText:       model.QuestionText,
		CodeSnippet:        model.CodeSnippet,
		Options:            []string(model.Options),
		CorrectAnswer:      model.CorrectAnswer,
		StudentAnswer:      model.StudentAnswer,
		IsCorrect:          model.IsCorrect,
		Explanation:        model.Explanation,
		Difficulty:         model.Difficulty,
		LearningObjectives: []string(model.LearningObjectives),
	}
	if response.Options == nil {
		response.Options = []string{}
	}
	if response.LearningObjectives == nil {
		response.LearningObjectives = []string{}
	}
	return response
}

// NewQuizResponse converts a Quiz model and any loaded questions into a DTO.
func NewQuizResponse(model models.Quiz) QuizResponse {
	response := QuizResponse{
		ID:             model.ID,
		StudentID:      model.StudentID,
		SubmissionID:   model.SubmissionID,
		AnalysisID:     model.AnalysisID,
		QuizType:       model.Kind,
		Source:         model.Source,
		Status:         model.Status,
		TotalQuestions: model.TotalQuestions,
		CorrectAnswers: model.CorrectAnswers,
		Score:          model.Score,
		CreatedAt:      model.CreatedAt,
		CompletedAt:    model.CompletedAt,
	}
	for _, question := range model.Questions {
		response.Questions = append(response.Questions, NewQuizQuestionResponse(question))
	}
	return response
}

// NewQuizPDFResponse converts packet metadata into a DTO.
func NewQuizPDFResponse(model models.QuizPDF) QuizPDFResponse {
	ids := []uint(model.StudentIDs)
	if ids == nil {
		ids = []uint{}
	}
	return QuizPDFResponse{
		ID:             model.ID,
		AssignmentName: model.AssignmentName,
		FileName:       model.FileName,
		StudentCount:   model.StudentCount,
		QuestionCount:  model.QuestionCount,
		StudentIDs:     ids,
		GeneratedBy:    model.GeneratedBy,
		ArchiveURL:     model.ArchiveURL,
		CreatedAt:      model.CreatedAt,
	}
}
