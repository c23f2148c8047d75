package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/models"
	"github.com/erikwilensky/codecheck/internal/repository"
)

var (
	// ErrStudentNotFound indicates the student does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrStudentConflict indicates the student code or GitHub username is taken.
	ErrStudentConflict = errors.New("student code or github username already in use")
	// ErrInvalidRoster indicates the roster CSV lacks the required columns.
	ErrInvalidRoster = errors.New("roster must have name, student_id and block columns")
)

var rosterColumns = []string{"name", "student_id", "block"}

// StudentService manages the roster.
type StudentService interface {
	List(ctx context.Context, req dto.StudentListRequest) (dto.StudentListResponse, error)
	Get(ctx context.Context, id uint) (dto.StudentResponse, error)
	Create(ctx context.Context, payload dto.StudentCreateRequest, actor ActivityActor) (dto.StudentResponse, error)
	Update(ctx context.Context, id uint, payload dto.StudentUpdateRequest, actor ActivityActor) (dto.StudentResponse, error)
	SetApproved(ctx context.Context, id uint, approved bool, actor ActivityActor) (dto.StudentResponse, error)
	Delete(ctx context.Context, id uint, actor ActivityActor) error
	ImportRoster(ctx context.Context, r io.Reader, actor ActivityActor) (dto.RosterImportResult, error)
}

type studentService struct {
	repo      repository.StudentRepository
	validator *validator.Validate
	activity  ActivityRecorder
	events    EventPublisher
	logger    zerolog.Logger
}

// NewStudentService constructs the roster service.
func NewStudentService(repo repository.StudentRepository, validate *validator.Validate, activity ActivityRecorder, events EventPublisher, logger zerolog.Logger) StudentService {
	return &studentService{
		repo:      repo,
		validator: validate,
		activity:  activity,
		events:    events,
		logger:    logger.With().Str("component", "student_service").Logger(),
	}
}

func (s *studentService) List(ctx context.Context, req dto.StudentListRequest) (dto.StudentListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.StudentListResponse{}, err
	}

	students, total, err := s.repo.List(ctx, repository.StudentFilter{
		Block:    req.Block,
		Approved: req.Approved,
		Search:   strings.TrimSpace(req.Search),
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return dto.StudentListResponse{}, err
	}

	items := make([]dto.StudentResponse, 0, len(students))
	for _, student := range students {
		items = append(items, dto.NewStudentResponse(student))
	}
	return dto.StudentListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *studentService) Get(ctx context.Context, id uint) (dto.StudentResponse, error) {
	student, err := s.find(ctx, id)
	if err != nil {
		return dto.StudentResponse{}, err
	}
	return dto.NewStudentResponse(student), nil
}

func (s *studentService) Create(ctx context.Context, payload dto.StudentCreateRequest, actor ActivityActor) (dto.StudentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	student := models.Student{
		StudentCode:    strings.TrimSpace(payload.StudentCode),
		Name:           strings.TrimSpace(payload.Name),
		Block:          payload.Block,
		GithubUsername: trimmedOrNil(payload.GithubUsername),
		IsApproved:     payload.IsApproved,
		IsActive:       true,
	}
	if err := s.repo.Create(ctx, &student); err != nil {
		return dto.StudentResponse{}, mapStudentWriteError(err)
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "student.create",
		EntityType: "student",
		EntityID:   uintPtr(student.ID),
		Metadata:   map[string]interface{}{"student_id": student.StudentCode, "block": student.Block},
	})
	return dto.NewStudentResponse(student), nil
}

func (s *studentService) Update(ctx context.Context, id uint, payload dto.StudentUpdateRequest, actor ActivityActor) (dto.StudentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	student, err := s.find(ctx, id)
	if err != nil {
		return dto.StudentResponse{}, err
	}

	changed := make([]string, 0)
	if payload.Name != nil {
		student.Name = strings.TrimSpace(*payload.Name)
		changed = append(changed, "name")
	}
	if payload.Block != nil {
		student.Block = *payload.Block
		changed = append(changed, "block")
	}
	if payload.GithubUsername != nil {
		student.GithubUsername = trimmedOrNil(payload.GithubUsername)
		changed = append(changed, "github_username")
	}
	if payload.IsActive != nil {
		student.IsActive = *payload.IsActive
		changed = append(changed, "is_active")
	}
	if len(changed) == 0 {
		return dto.NewStudentResponse(student), nil
	}

	if err := s.repo.Update(ctx, &student); err != nil {
		return dto.StudentResponse{}, mapStudentWriteError(err)
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "student.update",
		EntityType: "student",
		EntityID:   uintPtr(student.ID),
		Metadata:   map[string]interface{}{"fields": changed},
	})
	return dto.NewStudentResponse(student), nil
}

func (s *studentService) SetApproved(ctx context.Context, id uint, approved bool, actor ActivityActor) (dto.StudentResponse, error) {
	student, err := s.find(ctx, id)
	if err != nil {
		return dto.StudentResponse{}, err
	}

	student.IsApproved = approved
	if err := s.repo.Update(ctx, &student); err != nil {
		return dto.StudentResponse{}, err
	}

	action := "student.approve"
	if !approved {
		action = "student.disapprove"
	}
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     action,
		EntityType: "student",
		EntityID:   uintPtr(student.ID),
		Metadata:   map[string]interface{}{"student_id": student.StudentCode},
	})
	return dto.NewStudentResponse(student), nil
}

func (s *studentService) Delete(ctx context.Context, id uint, actor ActivityActor) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStudentNotFound
		}
		return err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "student.delete",
		EntityType: "student",
		EntityID:   uintPtr(id),
	})
	return nil
}

// ImportRoster reads name,student_id,block rows. Known students are updated, new
// ones created; every imported student is approved. Bad rows are reported and
// skipped, and a repeated student_id within the file is skipped.
func (s *studentService) ImportRoster(ctx context.Context, r io.Reader, actor ActivityActor) (dto.RosterImportResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return dto.RosterImportResult{}, ErrInvalidRoster
		}
		return dto.RosterImportResult{}, fmt.Errorf("read roster header: %w", err)
	}
	columns, err := rosterIndex(header)
	if err != nil {
		return dto.RosterImportResult{}, err
	}

	result := dto.RosterImportResult{Errors: []string{}}
	seen := make(map[string]struct{})
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			result.Skipped++
			continue
		}

		name := field(record, columns["name"])
		code := field(record, columns["student_id"])
		blockValue := field(record, columns["block"])
		if name == "" && code == "" && blockValue == "" {
			continue
		}
		if name == "" || code == "" || blockValue == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: name, student_id and block are required", line))
			result.Skipped++
			continue
		}
		block, err := strconv.Atoi(blockValue)
		if err != nil || !models.ValidBlock(block) {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: block must be 4 or 6", line))
			result.Skipped++
			continue
		}
		if _, dup := seen[code]; dup {
			result.Skipped++
			continue
		}
		seen[code] = struct{}{}

		created, err := s.upsert(ctx, code, name, block)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			result.Skipped++
			continue
		}
		result.Processed++
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "student.import",
		EntityType: "student",
		Metadata: map[string]interface{}{
			"created": result.Created,
			"updated": result.Updated,
			"skipped": result.Skipped,
		},
	})
	publishEvent(ctx, s.events, dto.AssessmentEvent{
		Type: dto.EventRosterImported,
		Payload: map[string]interface{}{
			"created": result.Created,
			"updated": result.Updated,
			"skipped": result.Skipped,
		},
	})

	s.logger.Info().Int("created", result.Created).Int("updated", result.Updated).Int("skipped", result.Skipped).Msg("roster imported")
	return result, nil
}

func (s *studentService) upsert(ctx context.Context, code, name string, block int) (bool, error) {
	existing, err := s.repo.GetByCode(ctx, code)
	switch {
	case err == nil:
		existing.Name = name
		existing.Block = block
		existing.IsApproved = true
		return false, s.repo.Update(ctx, &existing)
	case errors.Is(err, gorm.ErrRecordNotFound):
		student := models.Student{StudentCode: code, Name: name, Block: block, IsApproved: true, IsActive: true}
		return true, mapStudentWriteError(s.repo.Create(ctx, &student))
	default:
		return false, err
	}
}

func (s *studentService) find(ctx context.Context, id uint) (models.Student, error) {
	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Student{}, ErrStudentNotFound
		}
		return models.Student{}, err
	}
	return student, nil
}

func rosterIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, column := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(column, "\ufeff")))] = i
	}
	for _, column := range rosterColumns {
		if _, ok := index[column]; !ok {
			return nil, ErrInvalidRoster
		}
	}
	return index, nil
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func mapStudentWriteError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrStudentConflict
	}
	return err
}
