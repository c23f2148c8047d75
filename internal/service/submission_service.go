package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/models"
	"github.com/erikwilensky/codecheck/internal/observability"
	"github.com/erikwilensky/codecheck/internal/repository"
)

var (
	// ErrSubmissionNotFound indicates a submission could not be found.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrStudentInactive indicates the student may not submit.
	ErrStudentInactive = errors.New("student is not active")
	// ErrNoContent indicates the upload carried neither a file nor pasted code,
	// or carried both.
	ErrNoContent = errors.New("exactly one of file or code_paste must be provided")
	// ErrUploadTooLarge indicates the code exceeded the configured limit.
	ErrUploadTooLarge = errors.New("code exceeds maximum allowed size")
	// ErrUnsupportedContent indicates the upload is not plain text.
	ErrUnsupportedContent = errors.New("only text source files are accepted")
)

// SubmissionService handles code intake and submission lookups.
type SubmissionService interface {
	Upload(ctx context.Context, payload dto.UploadSubmissionRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error)
	ListByStudent(ctx context.Context, studentID uint) ([]dto.SubmissionResponse, error)
	Get(ctx context.Context, id uint) (dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	students    repository.StudentRepository
	assignments repository.AssignmentRepository
	history     SubmissionHistory
	events      EventPublisher
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	maxBytes    int64
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(subRepo repository.SubmissionRepository, studentRepo repository.StudentRepository, assignmentRepo repository.AssignmentRepository, history SubmissionHistory, events EventPublisher, validate *validator.Validate, maxBytes int64, logger zerolog.Logger) SubmissionService {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	return &submissionService{
		submissions: subRepo,
		students:    studentRepo,
		assignments: assignmentRepo,
		history:     history,
		events:      events,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/erikwilensky/codecheck/internal/service/submission"),
		maxBytes:    maxBytes,
	}
}

func (s *submissionService) Upload(ctx context.Context, payload dto.UploadSubmissionRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.upload")
	defer span.End()

	reject := func(err error, reason string) (dto.SubmissionResponse, error) {
		observability.SubmissionsRejected().WithLabelValues(reason).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		return dto.SubmissionResponse{}, err
	}

	if err := s.validator.Struct(payload); err != nil {
		return reject(err, "validation")
	}

	student, err := s.students.GetByCode(ctx, strings.TrimSpace(payload.StudentCode))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reject(ErrStudentNotFound, "student")
		}
		return dto.SubmissionResponse{}, err
	}
	if !student.IsActive {
		return reject(ErrStudentInactive, "student")
	}

	assignmentName := strings.TrimSpace(payload.AssignmentName)
	assignment, err := s.assignments.GetByName(ctx, assignmentName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reject(ErrAssignmentNotFound, "assignment")
		}
		return dto.SubmissionResponse{}, err
	}
	if !assignment.IsActive {
		return reject(ErrAssignmentNotFound, "assignment")
	}

	hasPaste := strings.TrimSpace(payload.CodePaste) != ""
	hasFile := file != nil && strings.TrimSpace(file.Filename) != ""
	if hasPaste == hasFile {
		return reject(ErrNoContent, "content")
	}

	var (
		content  []byte
		fileName string
		source   string
	)
	if hasFile {
		if file.Size > s.maxBytes {
			return reject(ErrUploadTooLarge, "size")
		}
		content, err = readLimited(file, s.maxBytes)
		if err != nil {
			if errors.Is(err, ErrUploadTooLarge) {
				return reject(err, "size")
			}
			return dto.SubmissionResponse{}, err
		}
		fileName = filepath.Base(strings.TrimSpace(file.Filename))
		source = models.SubmissionSourceUpload
	} else {
		content = []byte(payload.CodePaste)
		if int64(len(content)) > s.maxBytes {
			return reject(ErrUploadTooLarge, "size")
		}
		fileName = fmt.Sprintf("pasted_code_%s_%s.txt", student.StudentCode, assignmentName)
		source = models.SubmissionSourcePaste
	}

	if !isTextContent(content) {
		return reject(ErrUnsupportedContent, "type")
	}

	checksum := sha256.Sum256(content)
	submission := models.Submission{
		StudentID:      student.ID,
		AssignmentID:   uintPtr(assignment.ID),
		AssignmentName: assignment.Name,
		FileName:       fileName,
		FileContent:    string(content),
		FileSize:       int64(len(content)),
		Checksum:       hex.EncodeToString(checksum[:]),
		Source:         source,
	}
	span.SetAttributes(
		attribute.String("submission.source", source),
		attribute.Int64("submission.size_bytes", submission.FileSize),
	)

	if err := storeSubmission(ctx, s.submissions, s.history, s.events, &submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Str("student", student.StudentCode).
		Str("assignment", submission.AssignmentName).
		Msg("submission stored")
	span.SetStatus(codes.Ok, "stored")
	return dto.NewSubmissionResponse(submission, false), nil
}

func (s *submissionService) ListByStudent(ctx context.Context, studentID uint) ([]dto.SubmissionResponse, error) {
	submissions, err := s.submissions.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) Get(ctx context.Context, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}
	return dto.NewSubmissionResponse(submission, true), nil
}

// storeSubmission supersedes the student's previous submission for the assignment
// and announces the new one.
func storeSubmission(ctx context.Context, repo repository.SubmissionRepository, history SubmissionHistory, events EventPublisher, submission *models.Submission) error {
	if err := repo.Supersede(ctx, submission); err != nil {
		return err
	}
	if history != nil {
		history.Invalidate(ctx, submission.StudentID)
	}

	observability.SubmissionsIngested().WithLabelValues(submission.Source).Inc()
	publishEvent(ctx, events, dto.AssessmentEvent{
		Type:         dto.EventSubmissionCreated,
		StudentID:    submission.StudentID,
		SubmissionID: submission.ID,
		EntityID:     submission.ID,
		Payload: map[string]interface{}{
			"assignment_name": submission.AssignmentName,
			"file_name":       submission.FileName,
			"source":          submission.Source,
		},
	})
	return nil
}

func readLimited(file *multipart.FileHeader, limit int64) ([]byte, error) {
	handle, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, limit+1)); err != nil {
		return nil, err
	}
	if int64(buf.Len()) > limit {
		return nil, ErrUploadTooLarge
	}
	return buf.Bytes(), nil
}

// isTextContent accepts UTF-8 text and text-like formats such as JSON.
func isTextContent(content []byte) bool {
	if !utf8.Valid(content) {
		return false
	}
	for mime := mimetype.Detect(content); mime != nil; mime = mime.Parent() {
		if mime.Is("text/plain") || strings.HasPrefix(mime.String(), "text/") || mime.Is("application/json") {
			return true
		}
	}
	return false
}
