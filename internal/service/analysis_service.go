package service

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/erikwilensky/codecheck/internal/heuristics"
	"github.com/erikwilensky/codecheck/internal/models"
	"github.com/erikwilensky/codecheck/internal/observability"
	"github.com/erikwilensky/codecheck/internal/prompt"
	"github.com/erikwilensky/codecheck/internal/repository"
	"github.com/erikwilensky/codecheck/pkg/ai"
)

// ErrAnalysisNotFound indicates the analysis does not exist.
var ErrAnalysisNotFound = errors.New("analysis not found")

const (
	defaultAnalysisLimit = 20
	maxAnalysisLimit     = 50

	analysisTemperature         = 0.3
	analysisMaxTokens           = 2000
	simplifiedAnalysisMaxTokens = 1000

	pipelineAnalysis  = "analysis"
	pipelineHeuristic = "heuristic"
)

// AnalysisService runs and queries submission analyses.
type AnalysisService interface {
	RunAnalysis(ctx context.Context, submissionID uint) (dto.AnalysisResponse, error)
	RunHeuristicAnalysis(ctx context.Context, submissionID uint) (dto.AnalysisResponse, error)
	List(ctx context.Context, req dto.AnalysisListRequest) ([]dto.AnalysisResponse, error)
	Get(ctx context.Context, id uint) (dto.AnalysisResponse, error)
}

// AnalysisDependencies wires the analysis pipeline. Client may be nil, in which case
// every generation-assisted analysis is stored from the fallback generator.
type AnalysisDependencies struct {
	Submissions repository.SubmissionRepository
	Analyses    repository.AnalysisRepository
	History     SubmissionHistory
	Client      ai.Client
	Events      EventPublisher
	Validator   *validator.Validate
	Model       string
	Timeout     time.Duration
}

type analysisService struct {
	deps   AnalysisDependencies
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewAnalysisService constructs the analysis pipeline.
func NewAnalysisService(deps AnalysisDependencies, logger zerolog.Logger) AnalysisService {
	if deps.Validator == nil {
		deps.Validator = validator.New(validator.WithRequiredStructEnabled())
	}
	return &analysisService{
		deps:   deps,
		logger: logger.With().Str("component", "analysis_service").Logger(),
		tracer: otel.Tracer("github.com/erikwilensky/codecheck/internal/service/analysis"),
		now:    time.Now,
	}
}

func (s *analysisService) RunAnalysis(ctx context.Context, submissionID uint) (dto.AnalysisResponse, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.run", trace.WithAttributes(attribute.Int("submission.id", int(submissionID))))
	defer span.End()
	started := time.Now()

	submission, prior, err := loadWithHistory(ctx, s.deps.Submissions, s.deps.History, submissionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return dto.AnalysisResponse{}, err
	}

	report := heuristics.Analyze(featuresOf(submission), featuresOfAll(prior))
	reportMap, err := report.Map()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "heuristics failed")
		return dto.AnalysisResponse{}, err
	}

	analysisCtx := prompt.BuildAnalysisContext(currentOf(submission), summariesOf(prior), reportMap)

	record := models.Analysis{
		StudentID:    submission.StudentID,
		SubmissionID: submission.ID,
		Kind:         models.AnalysisKindAssisted,
		Source:       models.AnalysisSourceProvider,
		Status:       models.AnalysisStatusPending,
	}
	if err := s.deps.Analyses.Create(ctx, &record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return dto.AnalysisResponse{}, err
	}

	result, genErr := s.generate(ctx, analysisCtx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.markFailed(context.WithoutCancel(ctx), &record, ctxErr)
		span.RecordError(ctxErr)
		span.SetStatus(codes.Error, "cancelled")
		return dto.AnalysisResponse{}, ctxErr
	}

	if genErr != nil {
		s.logger.Warn().Err(genErr).Uint("submission_id", submission.ID).Msg("analysis generation failed, storing fallback")
		span.AddEvent("fallback", trace.WithAttributes(attribute.String("cause", genErr.Error())))
		result = assessment.FallbackAnalysis(analysisCtx.Parameters.HistoryLength, analysisCtx.Parameters.TimeSpanDays, genErr, s.now())
		record.Source = models.AnalysisSourceFallback
	} else {
		result.Fields["ai_analysis_timestamp"] = s.now().UTC().Format(time.RFC3339)
		result.Fields["analysis_method"] = fmt.Sprintf("%s_with_history", s.deps.Client.Provider())
		result.Fields["history_context"] = map[string]interface{}{
			"submissions_analyzed": analysisCtx.Parameters.TotalSubmissions,
			"time_span_days":       analysisCtx.Parameters.TimeSpanDays,
		}
	}
	result.Fields["heuristic_analysis"] = reportMap

	completed := s.now().UTC()
	record.Results = datatypes.JSONMap(result.Fields)
	record.ConfidenceScore = result.Confidence
	record.Status = models.AnalysisStatusCompleted
	record.CompletedAt = &completed
	if err := s.deps.Analyses.Update(ctx, &record); err != nil {
		s.markFailed(context.WithoutCancel(ctx), &record, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return dto.AnalysisResponse{}, err
	}

	observability.PipelineRuns().WithLabelValues(pipelineAnalysis, record.Source).Inc()
	observability.PipelineDuration().WithLabelValues(pipelineAnalysis).Observe(time.Since(started).Seconds())
	span.SetAttributes(attribute.String("analysis.source", record.Source), attribute.Float64("analysis.confidence", record.ConfidenceScore))
	span.SetStatus(codes.Ok, "completed")

	s.publish(ctx, record)
	return dto.NewAnalysisResponse(record), nil
}

func (s *analysisService) RunHeuristicAnalysis(ctx context.Context, submissionID uint) (dto.AnalysisResponse, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.heuristic", trace.WithAttributes(attribute.Int("submission.id", int(submissionID))))
	defer span.End()
	started := time.Now()

	submission, prior, err := loadWithHistory(ctx, s.deps.Submissions, s.deps.History, submissionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return dto.AnalysisResponse{}, err
	}

	report := heuristics.Analyze(featuresOf(submission), featuresOfAll(prior))
	reportMap, err := report.Map()
	if err != nil {
		return dto.AnalysisResponse{}, err
	}

	completed := s.now().UTC()
	record := models.Analysis{
		StudentID:       submission.StudentID,
		SubmissionID:    submission.ID,
		Kind:            models.AnalysisKindHeuristic,
		Source:          models.AnalysisSourceHeuristic,
		Status:          models.AnalysisStatusCompleted,
		Results:         datatypes.JSONMap(reportMap),
		ConfidenceScore: report.Confidence,
		CompletedAt:     &completed,
	}
	if err := s.deps.Analyses.Create(ctx, &record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return dto.AnalysisResponse{}, err
	}

	observability.PipelineRuns().WithLabelValues(pipelineHeuristic, record.Source).Inc()
	observability.PipelineDuration().WithLabelValues(pipelineHeuristic).Observe(time.Since(started).Seconds())

	s.publish(ctx, record)
	return dto.NewAnalysisResponse(record), nil
}

func (s *analysisService) List(ctx context.Context, req dto.AnalysisListRequest) ([]dto.AnalysisResponse, error) {
	if err := s.deps.Validator.Struct(req); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultAnalysisLimit
	}
	if limit > maxAnalysisLimit {
		limit = maxAnalysisLimit
	}

	analyses, err := s.deps.Analyses.List(ctx, repository.AnalysisFilter{
		StudentID:    req.StudentID,
		SubmissionID: req.SubmissionID,
		Kind:         req.Kind,
		Limit:        limit,
	})
	if err != nil {
		return nil, err
	}

	responses := make([]dto.AnalysisResponse, 0, len(analyses))
	for _, analysis := range analyses {
		responses = append(responses, dto.NewAnalysisResponse(analysis))
	}
	return responses, nil
}

func (s *analysisService) Get(ctx context.Context, id uint) (dto.AnalysisResponse, error) {
	analysis, err := s.deps.Analyses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnalysisResponse{}, ErrAnalysisNotFound
		}
		return dto.AnalysisResponse{}, err
	}
	return dto.NewAnalysisResponse(analysis), nil
}

// generate asks the provider for an analysis, with one simplified retry. The first
// output that parses wins.
func (s *analysisService) generate(ctx context.Context, analysisCtx prompt.AnalysisContext) (assessment.AnalysisResult, error) {
	if s.deps.Client == nil {
		return assessment.AnalysisResult{}, ai.ErrProviderUnconfigured
	}

	primary, err := prompt.AnalysisPrompt(analysisCtx)
	if err != nil {
		return assessment.AnalysisResult{}, err
	}
	simplified, err := prompt.SimplifiedAnalysisPrompt(analysisCtx)
	if err != nil {
		return assessment.AnalysisResult{}, err
	}

	var parsed assessment.AnalysisResult
	policy := ai.TwoAttempt{
		Primary: func(ctx context.Context) (string, error) {
			return s.deps.Client.Complete(ctx, ai.CompletionRequest{
				System:      prompt.AnalysisSystem,
				User:        primary,
				Model:       s.deps.Model,
				Temperature: analysisTemperature,
				MaxTokens:   analysisMaxTokens,
			})
		},
		Simplified: func(ctx context.Context) (string, error) {
			return s.deps.Client.Complete(ctx, ai.CompletionRequest{
				System:      prompt.SimplifiedAnalysisSystem,
				User:        simplified,
				Model:       s.deps.Model,
				Temperature: analysisTemperature,
				MaxTokens:   simplifiedAnalysisMaxTokens,
			})
		},
		Timeout: s.deps.Timeout,
		Accept: func(raw string) error {
			result, err := assessment.ParseAnalysis(raw)
			if err != nil {
				return err
			}
			parsed = result
			return nil
		},
	}

	outcome, err := policy.Run(ctx)
	if err != nil {
		return assessment.AnalysisResult{}, err
	}
	if outcome.Attempt > 1 {
		s.logger.Info().Msg("analysis accepted from simplified attempt")
	}
	return parsed, nil
}

func (s *analysisService) markFailed(ctx context.Context, record *models.Analysis, cause error) {
	record.Status = models.AnalysisStatusFailed
	record.Results = datatypes.JSONMap{"error": cause.Error()}
	record.ConfidenceScore = 0
	record.CompletedAt = nil
	if err := s.deps.Analyses.Update(ctx, record); err != nil {
		s.logger.Error().Err(err).Uint("analysis_id", record.ID).Msg("failed to mark analysis as failed")
	}
}

func (s *analysisService) publish(ctx context.Context, record models.Analysis) {
	publishEvent(ctx, s.deps.Events, dto.AssessmentEvent{
		Type:         dto.EventAnalysisCompleted,
		StudentID:    record.StudentID,
		SubmissionID: record.SubmissionID,
		EntityID:     record.ID,
		Payload: map[string]interface{}{
			"analysis_type":    record.Kind,
			"source":           record.Source,
			"confidence_score": record.ConfidenceScore,
		},
	})
}
