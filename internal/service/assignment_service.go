package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/models"
	"github.com/erikwilensky/codecheck/internal/repository"
)

var (
	// ErrAssignmentNotFound indicates the requested assignment does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrAssignmentConflict indicates the assignment name is taken.
	ErrAssignmentConflict = errors.New("assignment with this name already exists")
	// ErrAssignmentHasSubmissions blocks deleting assignments that students submitted to.
	ErrAssignmentHasSubmissions = errors.New("assignment has submissions")
)

// AssignmentService manages the assignment catalogue.
type AssignmentService interface {
	List(ctx context.Context, activeOnly bool) ([]dto.AssignmentResponse, error)
	Get(ctx context.Context, id uint) (dto.AssignmentResponse, error)
	Create(ctx context.Context, payload dto.AssignmentCreateRequest, actor ActivityActor) (dto.AssignmentResponse, error)
	Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest, actor ActivityActor) (dto.AssignmentResponse, error)
	Toggle(ctx context.Context, id uint, actor ActivityActor) (dto.AssignmentResponse, error)
	Delete(ctx context.Context, id uint, actor ActivityActor) error
}

type assignmentService struct {
	repo      repository.AssignmentRepository
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewAssignmentService builds a new assignment service.
func NewAssignmentService(repo repository.AssignmentRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		repo:      repo,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "assignment_service").Logger(),
	}
}

func (s *assignmentService) List(ctx context.Context, activeOnly bool) ([]dto.AssignmentResponse, error) {
	assignments, err := s.repo.List(ctx, repository.AssignmentFilter{ActiveOnly: activeOnly})
	if err != nil {
		return nil, err
	}
	return dto.NewAssignmentResponseSlice(assignments), nil
}

func (s *assignmentService) Get(ctx context.Context, id uint) (dto.AssignmentResponse, error) {
	assignment, err := s.find(ctx, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	count, err := s.repo.CountSubmissions(ctx, assignment.Name)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	response := dto.NewAssignmentResponse(assignment)
	response.SubmissionCount = &count
	return response, nil
}

func (s *assignmentService) Create(ctx context.Context, payload dto.AssignmentCreateRequest, actor ActivityActor) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment := models.Assignment{
		Name:         strings.TrimSpace(payload.Name),
		Description:  strings.TrimSpace(payload.Description),
		Instructions: strings.TrimSpace(payload.Instructions),
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, mapAssignmentWriteError(err)
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "assignment.create",
		EntityType: "assignment",
		EntityID:   uintPtr(assignment.ID),
		Metadata:   map[string]interface{}{"name": assignment.Name},
	})
	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest, actor ActivityActor) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.find(ctx, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	changed := make([]string, 0)
	if payload.Name != nil {
		assignment.Name = strings.TrimSpace(*payload.Name)
		changed = append(changed, "name")
	}
	if payload.Description != nil {
		assignment.Description = strings.TrimSpace(*payload.Description)
		changed = append(changed, "description")
	}
	if payload.Instructions != nil {
		assignment.Instructions = strings.TrimSpace(*payload.Instructions)
		changed = append(changed, "instructions")
	}
	if payload.IsActive != nil {
		assignment.IsActive = *payload.IsActive
		changed = append(changed, "is_active")
	}
	if len(changed) == 0 {
		return dto.NewAssignmentResponse(assignment), nil
	}

	if err := s.repo.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, mapAssignmentWriteError(err)
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "assignment.update",
		EntityType: "assignment",
		EntityID:   uintPtr(assignment.ID),
		Metadata:   map[string]interface{}{"fields": changed},
	})
	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Toggle(ctx context.Context, id uint, actor ActivityActor) (dto.AssignmentResponse, error) {
	assignment, err := s.find(ctx, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment.IsActive = !assignment.IsActive
	if err := s.repo.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "assignment.toggle",
		EntityType: "assignment",
		EntityID:   uintPtr(assignment.ID),
		Metadata:   map[string]interface{}{"is_active": assignment.IsActive},
	})
	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Delete(ctx context.Context, id uint, actor ActivityActor) error {
	assignment, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	count, err := s.repo.CountSubmissions(ctx, assignment.Name)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrAssignmentHasSubmissions
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "assignment.delete",
		EntityType: "assignment",
		EntityID:   uintPtr(id),
		Metadata:   map[string]interface{}{"name": assignment.Name},
	})
	return nil
}

func (s *assignmentService) find(ctx context.Context, id uint) (models.Assignment, error) {
	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}
	return assignment, nil
}

func mapAssignmentWriteError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAssignmentConflict
	}
	return err
}
