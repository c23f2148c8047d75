package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/models"
	"github.com/erikwilensky/codecheck/internal/repository"
)

const (
	overviewCacheKey = "codecheck:overview"
	overviewWeeks    = 8
)

// AdminOverviewService aggregates roster and pipeline counts for the admin dashboard.
type AdminOverviewService interface {
	GetSummary(ctx context.Context) (dto.AdminOverviewResponse, error)
}

type adminOverviewService struct {
	repo     repository.OverviewRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewAdminOverviewService constructs the overview service. A nil redis client
// disables caching.
func NewAdminOverviewService(repo repository.OverviewRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) AdminOverviewService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &adminOverviewService{
		repo:     repo,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "admin_overview_service").Logger(),
		now:      time.Now,
	}
}

func (s *adminOverviewService) GetSummary(ctx context.Context) (dto.AdminOverviewResponse, error) {
	tracer := otel.Tracer("github.com/erikwilensky/codecheck/internal/service/overview")
	ctx, span := tracer.Start(ctx, "overview.aggregate")
	span.SetAttributes(attribute.String("overview.cache_key", overviewCacheKey))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, overviewCacheKey).Bytes()
		if err == nil {
			var response dto.AdminOverviewResponse
			if unmarshalErr := json.Unmarshal(cached, &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("overview.cache_hit", true))
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read overview cache")
			span.RecordError(err)
		}
	}

	summary, err := s.aggregate(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "overview_aggregate_failed")
		return dto.AdminOverviewResponse{}, err
	}
	span.SetAttributes(attribute.Int64("overview.students", summary.Students.Total))

	if s.cache != nil {
		payload, err := json.Marshal(summary)
		if err == nil {
			if err := s.cache.Set(ctx, overviewCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store overview cache")
				span.RecordError(err)
			}
		}
	}

	return summary, nil
}

func (s *adminOverviewService) aggregate(ctx context.Context) (dto.AdminOverviewResponse, error) {
	now := s.now().UTC()

	students, err := s.repo.StudentCounts(ctx)
	if err != nil {
		return dto.AdminOverviewResponse{}, err
	}
	bySource, err := s.repo.CountBy(ctx, &models.Submission{}, "source")
	if err != nil {
		return dto.AdminOverviewResponse{}, err
	}
	byAssignment, err := s.repo.CountBy(ctx, &models.Submission{}, "assignment_name")
	if err != nil {
		return dto.AdminOverviewResponse{}, err
	}
	analyses, err := s.repo.CountBy(ctx, &models.Analysis{}, "source")
	if err != nil {
		return dto.AdminOverviewResponse{}, err
	}
	confidence, err := s.repo.Average(ctx, &models.Analysis{}, "confidence_score", map[string]interface{}{
		"source": models.AnalysisSourceProvider,
		"status": models.AnalysisStatusCompleted,
	})
	if err != nil {
		return dto.AdminOverviewResponse{}, err
	}
	quizStatus, err := s.repo.CountBy(ctx, &models.Quiz{}, "status")
	if err != nil {
		return dto.AdminOverviewResponse{}, err
	}
	quizSource, err := s.repo.CountBy(ctx, &models.Quiz{}, "source")
	if err != nil {
		return dto.AdminOverviewResponse{}, err
	}
	score, err := s.repo.Average(ctx, &models.Quiz{}, "score", map[string]interface{}{"status": models.QuizStatusCompleted})
	if err != nil {
		return dto.AdminOverviewResponse{}, err
	}
	times, err := s.repo.SubmissionTimesSince(ctx, startOfWeek(now).AddDate(0, 0, -7*(overviewWeeks-1)))
	if err != nil {
		return dto.AdminOverviewResponse{}, err
	}

	var quizzes int64
	for _, count := range quizSource {
		quizzes += count
	}
	fallbackRate := 0.0
	if quizzes > 0 {
		fallbackRate = float64(quizSource[models.QuizSourceFallback]) / float64(quizzes)
	}

	return dto.AdminOverviewResponse{
		Students: dto.StudentOverview{
			Total:           students.Total,
			Approved:        students.Approved,
			PendingApproval: students.Total - students.Approved,
			Active:          students.Active,
		},
		SubmissionsBySource:     bySource,
		SubmissionsByAssignment: byAssignment,
		AnalysesBySource:        analyses,
		AverageConfidence:       confidence,
		QuizzesByStatus:         quizStatus,
		QuizFallbackRate:        fallbackRate,
		AverageQuizScore:        score,
		WeeklySubmissions:       weeklySubmissions(times),
		GeneratedAt:             now,
	}, nil
}

func weeklySubmissions(times []time.Time) []dto.WeeklySubmissionPoint {
	weekly := map[time.Time]int64{}
	for _, at := range times {
		weekly[startOfWeek(at)]++
	}

	weeks := make([]time.Time, 0, len(weekly))
	for week := range weekly {
		weeks = append(weeks, week)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

	points := make([]dto.WeeklySubmissionPoint, 0, len(weeks))
	for _, week := range weeks {
		points = append(points, dto.WeeklySubmissionPoint{WeekStart: week, Submissions: weekly[week]})
	}
	return points
}

func startOfWeek(t time.Time) time.Time {
	utc := t.UTC()
	weekday := int(utc.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	start := utc.AddDate(0, 0, -(weekday - 1))
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
}
