package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/erikwilensky/codecheck/internal/assessment"
	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/models"
	"github.com/erikwilensky/codecheck/internal/observability"
	"github.com/erikwilensky/codecheck/internal/prompt"
	"github.com/erikwilensky/codecheck/internal/repository"
	"github.com/erikwilensky/codecheck/pkg/ai"
	"github.com/erikwilensky/codecheck/pkg/pdf"
)

// ErrNoSubmissions indicates none of the requested students submitted the assignment.
var ErrNoSubmissions = errors.New("no submissions found for the requested students")

const (
	bulkQuizTemperature = 0.6
	bulkQuizMaxTokens   = 1200

	pipelineBulkQuiz = "bulk_quiz"
)

// PacketArchive keeps a copy of rendered packets outside the database.
type PacketArchive interface {
	Store(ctx context.Context, name string, data []byte) (string, error)
}

// BulkQuizService builds one shared quiz packet for several students. Unlike the
// per-submission flows it has no fallback: any generation failure is returned.
type BulkQuizService interface {
	Generate(ctx context.Context, req dto.BulkQuizRequest) (dto.BulkQuizResult, error)
}

// BulkQuizDependencies wires the bulk quiz flow. Client, Archive, Activity and Events
// may be nil.
type BulkQuizDependencies struct {
	Students    repository.StudentRepository
	Submissions repository.SubmissionRepository
	QuizPDFs    repository.QuizPDFRepository
	Client      ai.Client
	Archive     PacketArchive
	Activity    ActivityRecorder
	Events      EventPublisher
	Validator   *validator.Validate
	Model       string
	Timeout     time.Duration
}

type bulkQuizService struct {
	deps   BulkQuizDependencies
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

type packetEntry struct {
	StudentID string         `json:"student_id"`
	Name      string         `json:"name"`
	Questions []packetRecord `json:"questions"`
}

type packetRecord struct {
	QuestionText   string `json:"question_text"`
	CodeSnippet    string `json:"code_snippet"`
	Focus          string `json:"focus"`
	QuestionNumber int    `json:"question_number"`
}

// NewBulkQuizService constructs the bulk quiz flow.
func NewBulkQuizService(deps BulkQuizDependencies, logger zerolog.Logger) BulkQuizService {
	if deps.Validator == nil {
		deps.Validator = validator.New(validator.WithRequiredStructEnabled())
	}
	return &bulkQuizService{
		deps:   deps,
		logger: logger.With().Str("component", "bulk_quiz_service").Logger(),
		tracer: otel.Tracer("github.com/erikwilensky/codecheck/internal/service/bulkquiz"),
		now:    time.Now,
	}
}

func (s *bulkQuizService) Generate(ctx context.Context, req dto.BulkQuizRequest) (dto.BulkQuizResult, error) {
	ctx, span := s.tracer.Start(ctx, "bulk_quiz.generate", trace.WithAttributes(
		attribute.String("assignment.name", req.AssignmentName),
		attribute.Int("students.requested", len(req.StudentIDs)),
	))
	defer span.End()
	started := time.Now()

	fail := func(err error, status string) (dto.BulkQuizResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		observability.PipelineRuns().WithLabelValues(pipelineBulkQuiz, "failed").Inc()
		return dto.BulkQuizResult{}, err
	}

	if err := s.deps.Validator.Struct(req); err != nil {
		return dto.BulkQuizResult{}, err
	}
	if s.deps.Client == nil {
		return fail(ai.ErrProviderUnconfigured, "provider unconfigured")
	}

	assignment := strings.TrimSpace(req.AssignmentName)
	submissions, err := s.deps.Submissions.ListForAssignment(ctx, assignment, req.StudentIDs)
	if err != nil {
		return fail(err, "load failed")
	}
	if len(submissions) == 0 {
		return fail(ErrNoSubmissions, "no submissions")
	}

	students, err := s.recipients(ctx, req.StudentIDs)
	if err != nil {
		return fail(err, "load failed")
	}

	questions, err := s.generate(ctx, assignment, submissions)
	if err != nil {
		return fail(err, "generation failed")
	}

	createdAt := s.now().UTC()
	packet := pdf.Packet{Assignment: assignment, CreatedAt: createdAt}
	records := make([]packetRecord, 0, len(questions))
	for i, q := range questions {
		packet.Questions = append(packet.Questions, pdf.Question{Text: q.Question, CodeSnippet: q.CodeSnippet})
		records = append(records, packetRecord{
			QuestionText:   q.Question,
			CodeSnippet:    q.CodeSnippet,
			Focus:          q.Focus,
			QuestionNumber: i + 1,
		})
	}

	entries := make([]packetEntry, 0, len(students))
	studentIDs := make([]uint, 0, len(students))
	for _, student := range students {
		packet.Students = append(packet.Students, pdf.Student{Name: student.Name, Code: student.StudentCode})
		entries = append(entries, packetEntry{StudentID: student.StudentCode, Name: student.Name, Questions: records})
		studentIDs = append(studentIDs, student.ID)
	}

	data, err := pdf.Render(packet)
	if err != nil {
		return fail(err, "render failed")
	}
	quizData, err := json.Marshal(entries)
	if err != nil {
		return fail(err, "encode failed")
	}

	generatedBy := normalizeActor(req.GeneratedBy)
	record := models.QuizPDF{
		AssignmentName: assignment,
		FileName:       packetFileName(assignment, createdAt),
		PDFData:        data,
		StudentCount:   len(students),
		QuestionCount:  len(questions),
		StudentIDs:     datatypes.JSONSlice[uint](studentIDs),
		QuizData:       datatypes.JSON(quizData),
		GeneratedBy:    generatedBy,
	}
	if err := s.deps.QuizPDFs.Create(ctx, &record); err != nil {
		return fail(err, "persist failed")
	}

	if s.deps.Archive != nil {
		url, err := s.deps.Archive.Store(ctx, record.FileName, data)
		if err != nil {
			s.logger.Warn().Err(err).Uint("pdf_id", record.ID).Msg("failed to archive quiz packet")
		} else if err := s.deps.QuizPDFs.SetArchiveURL(ctx, record.ID, url); err != nil {
			s.logger.Warn().Err(err).Uint("pdf_id", record.ID).Msg("failed to store archive url")
		} else {
			record.ArchiveURL = url
		}
	}

	observability.PipelineRuns().WithLabelValues(pipelineBulkQuiz, models.QuizSourceProvider).Inc()
	observability.PipelineDuration().WithLabelValues(pipelineBulkQuiz).Observe(time.Since(started).Seconds())
	observability.QuizPDFSize().Observe(float64(len(data)))
	span.SetAttributes(attribute.Int("quiz.questions", len(questions)), attribute.Int("quiz.pdf_bytes", len(data)))
	span.SetStatus(codes.Ok, "generated")

	recordActivity(ctx, s.deps.Activity, s.logger, ActivityEntry{
		Actor:      ActivityActor{Name: generatedBy},
		Action:     "quiz_pdf.generate",
		EntityType: "quiz_pdf",
		EntityID:   uintPtr(record.ID),
		Metadata: map[string]interface{}{
			"assignment_name": assignment,
			"student_count":   record.StudentCount,
			"question_count":  record.QuestionCount,
		},
	})
	publishEvent(ctx, s.deps.Events, dto.AssessmentEvent{
		Type:     dto.EventBulkQuizGenerated,
		EntityID: record.ID,
		Payload: map[string]interface{}{
			"assignment_name": assignment,
			"student_count":   record.StudentCount,
			"questions_count": record.QuestionCount,
		},
	})

	return dto.BulkQuizResult{
		PDFID:          record.ID,
		QuestionsCount: record.QuestionCount,
		StudentCount:   record.StudentCount,
		FileName:       record.FileName,
		ArchiveURL:     record.ArchiveURL,
	}, nil
}

// generate makes the single structured call. Every failure is fatal to the request.
func (s *bulkQuizService) generate(ctx context.Context, assignment string, submissions []models.Submission) ([]assessment.SegmentedQuestion, error) {
	code := make([]string, 0, len(submissions))
	for _, submission := range submissions {
		code = append(code, submission.FileContent)
	}

	user, err := prompt.BulkQuizPrompt(assignment, strings.Join(code, "\n\n"))
	if err != nil {
		return nil, err
	}

	if s.deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deps.Timeout)
		defer cancel()
	}

	args, err := s.deps.Client.CompleteStructured(ctx, ai.StructuredRequest{
		CompletionRequest: ai.CompletionRequest{
			System:      prompt.BulkQuizSystem,
			User:        user,
			Model:       s.deps.Model,
			Temperature: bulkQuizTemperature,
			MaxTokens:   bulkQuizMaxTokens,
		},
		SchemaName:        prompt.BulkQuizFunctionName,
		SchemaDescription: prompt.BulkQuizFunctionDescription,
		Parameters:        prompt.BulkQuizParameters(),
	})
	if err != nil {
		return nil, err
	}

	text, ok := args[prompt.BulkQuizTextField].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s is missing or not a string", ai.ErrSchemaMismatch, prompt.BulkQuizTextField)
	}

	questions := assessment.SanitizeSegmented(assessment.ParseSegmented(text))
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no questions with a code snippet in quiz text", assessment.ErrResponseParse)
	}
	return questions, nil
}

// recipients resolves the requested students in request order. Unknown ids are skipped.
func (s *bulkQuizService) recipients(ctx context.Context, ids []uint) ([]models.Student, error) {
	seen := make(map[uint]struct{}, len(ids))
	students := make([]models.Student, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		student, err := s.deps.Students.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		students = append(students, student)
	}
	return students, nil
}

func packetFileName(assignment string, at time.Time) string {
	return fmt.Sprintf("quizzes_%s_%s.pdf", strings.ReplaceAll(assignment, " ", "_"), at.Format("20060102_150405"))
}
