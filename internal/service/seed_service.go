package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/models"
	"github.com/erikwilensky/codecheck/internal/repository"
)

// SeedService registers batches of generated student codes. Codes stand in for
// names so the roster carries no personal data until an admin edits it.
type SeedService interface {
	SeedStudents(ctx context.Context, req dto.StudentSeedRequest, actor ActivityActor) (dto.StudentSeedResult, error)
}

type seedService struct {
	students  repository.StudentRepository
	validator *validator.Validate
	activity  ActivityRecorder
	events    EventPublisher
	logger    zerolog.Logger
}

// NewSeedService constructs a seeding service.
func NewSeedService(students repository.StudentRepository, validate *validator.Validate, activity ActivityRecorder, events EventPublisher, logger zerolog.Logger) SeedService {
	return &seedService{
		students:  students,
		validator: validate,
		activity:  activity,
		events:    events,
		logger:    logger.With().Str("component", "seed_service").Logger(),
	}
}

func (s *seedService) SeedStudents(ctx context.Context, req dto.StudentSeedRequest, actor ActivityActor) (dto.StudentSeedResult, error) {
	req.Prefix = strings.ToUpper(strings.TrimSpace(req.Prefix))
	if err := s.validator.Struct(req); err != nil {
		return dto.StudentSeedResult{}, err
	}

	codes := GenerateStudentCodes(req.Prefix, req.Start, req.Count)
	batch := make([]models.Student, 0, len(codes))
	for _, code := range codes {
		batch = append(batch, models.Student{
			StudentCode: code,
			Name:        code,
			Block:       req.Block,
			IsApproved:  req.Approve,
			IsActive:    true,
		})
	}

	created, err := s.students.InsertBatch(ctx, batch)
	if err != nil {
		return dto.StudentSeedResult{}, err
	}
	s.logger.Info().Str("prefix", req.Prefix).Int64("created", created).Int("requested", len(codes)).Msg("student codes seeded")

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "student.seed",
		EntityType: "student",
		Metadata: map[string]interface{}{
			"prefix":    req.Prefix,
			"start":     req.Start,
			"requested": len(codes),
			"created":   created,
		},
	})
	publishEvent(ctx, s.events, dto.AssessmentEvent{
		Type:    dto.EventRosterImported,
		Payload: map[string]interface{}{"created": created, "source": "seed"},
	})

	return dto.StudentSeedResult{Requested: len(codes), Created: created, Codes: codes}, nil
}

// GenerateStudentCodes returns count codes made of prefix and a number padded to
// three digits, starting at start.
func GenerateStudentCodes(prefix string, start, count int) []string {
	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		codes = append(codes, fmt.Sprintf("%s%03d", prefix, start+i))
	}
	return codes
}
