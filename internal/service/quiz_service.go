package service

import (
	"context"
	"errors"
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
)

var (
	// ErrQuizNotFound indicates the quiz does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizQuestionNotFound indicates the quiz question does not exist.
	ErrQuizQuestionNotFound = errors.New("quiz question not found")
)

const (
	defaultQuizLimit = 20
	maxQuizLimit     = 50

	quizTemperature = 0.7
	quizMaxTokens   = 2000

	pipelineQuiz = "quiz"
)

// QuizService generates per-submission quizzes and records answers.
type QuizService interface {
	RunQuizGeneration(ctx context.Context, submissionID uint, analysisID *uint) (dto.QuizResponse, error)
	List(ctx context.Context, req dto.QuizListRequest) ([]dto.QuizResponse, error)
	Get(ctx context.Context, id uint) (dto.QuizResponse, error)
	SubmitAnswer(ctx context.Context, questionID uint, req dto.QuizAnswerRequest) (dto.QuizAnswerResponse, error)
}

// QuizDependencies wires the quiz pipeline. Client may be nil.
type QuizDependencies struct {
	Submissions repository.SubmissionRepository
	Analyses    repository.AnalysisRepository
	Quizzes     repository.QuizRepository
	History     SubmissionHistory
	Client      ai.Client
	Events      EventPublisher
	Validator   *validator.Validate
	Model       string
	Timeout     time.Duration
}

type quizService struct {
	deps   QuizDependencies
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewQuizService constructs the quiz pipeline.
func NewQuizService(deps QuizDependencies, logger zerolog.Logger) QuizService {
	if deps.Validator == nil {
		deps.Validator = validator.New(validator.WithRequiredStructEnabled())
	}
	return &quizService{
		deps:   deps,
		logger: logger.With().Str("component", "quiz_service").Logger(),
		tracer: otel.Tracer("github.com/erikwilensky/codecheck/internal/service/quiz"),
	}
}

func (s *quizService) RunQuizGeneration(ctx context.Context, submissionID uint, analysisID *uint) (dto.QuizResponse, error) {
	ctx, span := s.tracer.Start(ctx, "quiz.run", trace.WithAttributes(attribute.Int("submission.id", int(submissionID))))
	defer span.End()
	started := time.Now()

	submission, prior, err := loadWithHistory(ctx, s.deps.Submissions, s.deps.History, submissionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return dto.QuizResponse{}, err
	}

	analysis, err := s.priorAnalysis(ctx, submission.ID, analysisID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis lookup failed")
		return dto.QuizResponse{}, err
	}

	var analysisFields map[string]interface{}
	quiz := models.Quiz{
		StudentID:    submission.StudentID,
		SubmissionID: submission.ID,
		Kind:         models.QuizKindGenerated,
		Source:       models.QuizSourceProvider,
		Status:       models.QuizStatusGenerated,
	}
	if analysis != nil {
		analysisFields = analysis.Results
		quiz.AnalysisID = uintPtr(analysis.ID)
	}

	quizCtx := prompt.BuildQuizContext(currentOf(submission), summariesOf(prior), analysisFields)
	fallback := assessment.FallbackQuestions(submission.FileContent, submission.FileName)

	questions, genErr := s.generate(ctx, quizCtx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		span.RecordError(ctxErr)
		span.SetStatus(codes.Error, "cancelled")
		return dto.QuizResponse{}, ctxErr
	}
	if genErr != nil {
		s.logger.Warn().Err(genErr).Uint("submission_id", submission.ID).Msg("quiz generation failed, using fallback questions")
		span.AddEvent("fallback", trace.WithAttributes(attribute.String("cause", genErr.Error())))
		questions = fallback
		quiz.Source = models.QuizSourceFallback
	} else {
		questions = assessment.PadQuestions(questions, fallback)
	}
	questions = assessment.Sanitize(questions)

	if err := s.deps.Quizzes.Create(ctx, &quiz); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return dto.QuizResponse{}, err
	}

	if _, err := s.deps.Quizzes.AddQuestionsAndFinalize(ctx, quiz.ID, toQuizQuestions(questions)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return dto.QuizResponse{}, err
	}

	stored, err := s.deps.Quizzes.GetByID(ctx, quiz.ID)
	if err != nil {
		return dto.QuizResponse{}, err
	}

	observability.PipelineRuns().WithLabelValues(pipelineQuiz, stored.Source).Inc()
	observability.PipelineDuration().WithLabelValues(pipelineQuiz).Observe(time.Since(started).Seconds())
	span.SetAttributes(attribute.String("quiz.source", stored.Source), attribute.Int("quiz.questions", stored.TotalQuestions))
	span.SetStatus(codes.Ok, "generated")

	publishEvent(ctx, s.deps.Events, dto.AssessmentEvent{
		Type:         dto.EventQuizGenerated,
		StudentID:    stored.StudentID,
		SubmissionID: stored.SubmissionID,
		EntityID:     stored.ID,
		Payload: map[string]interface{}{
			"source":          stored.Source,
			"total_questions": stored.TotalQuestions,
		},
	})

	return dto.NewQuizResponse(stored), nil
}

func (s *quizService) List(ctx context.Context, req dto.QuizListRequest) ([]dto.QuizResponse, error) {
	if err := s.deps.Validator.Struct(req); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultQuizLimit
	}
	if limit > maxQuizLimit {
		limit = maxQuizLimit
	}

	quizzes, err := s.deps.Quizzes.List(ctx, repository.QuizFilter{
		StudentID:    req.StudentID,
		SubmissionID: req.SubmissionID,
		Limit:        limit,
	})
	if err != nil {
		return nil, err
	}

	responses := make([]dto.QuizResponse, 0, len(quizzes))
	for _, quiz := range quizzes {
		responses = append(responses, dto.NewQuizResponse(quiz))
	}
	return responses, nil
}

func (s *quizService) Get(ctx context.Context, id uint) (dto.QuizResponse, error) {
	quiz, err := s.deps.Quizzes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuizResponse{}, ErrQuizNotFound
		}
		return dto.QuizResponse{}, err
	}
	return dto.NewQuizResponse(quiz), nil
}

func (s *quizService) SubmitAnswer(ctx context.Context, questionID uint, req dto.QuizAnswerRequest) (dto.QuizAnswerResponse, error) {
	if err := s.deps.Validator.Struct(req); err != nil {
		return dto.QuizAnswerResponse{}, err
	}

	question, err := s.deps.Quizzes.GetQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuizAnswerResponse{}, ErrQuizQuestionNotFound
		}
		return dto.QuizAnswerResponse{}, err
	}

	answer := strings.TrimSpace(req.Answer)
	question.StudentAnswer = &answer
	question.IsCorrect = nil
	if question.Checkable() {
		correct := strings.EqualFold(answer, strings.TrimSpace(question.CorrectAnswer))
		question.IsCorrect = &correct
	}

	quiz, err := s.deps.Quizzes.RecordAnswer(ctx, &question)
	if err != nil {
		return dto.QuizAnswerResponse{}, err
	}

	return dto.QuizAnswerResponse{
		Question: dto.NewQuizQuestionResponse(question),
		Quiz:     dto.NewQuizResponse(quiz),
	}, nil
}

// priorAnalysis resolves the analysis a quiz is built on: the requested one, else the
// latest generation-assisted analysis of the submission, else none.
func (s *quizService) priorAnalysis(ctx context.Context, submissionID uint, analysisID *uint) (*models.Analysis, error) {
	if analysisID != nil {
		analysis, err := s.deps.Analyses.GetByID(ctx, *analysisID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrAnalysisNotFound
			}
			return nil, err
		}
		if analysis.SubmissionID != submissionID {
			return nil, ErrAnalysisNotFound
		}
		return &analysis, nil
	}

	analysis, err := s.deps.Analyses.LatestForSubmission(ctx, submissionID, models.AnalysisKindAssisted)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &analysis, nil
}

func (s *quizService) generate(ctx context.Context, quizCtx prompt.QuizContext) ([]assessment.Question, error) {
	if s.deps.Client == nil {
		return nil, ai.ErrProviderUnconfigured
	}

	primary, err := prompt.QuestionPrompt(quizCtx)
	if err != nil {
		return nil, err
	}
	simplified, err := prompt.SimplifiedQuestionPrompt(quizCtx)
	if err != nil {
		return nil, err
	}

	var parsed []assessment.Question
	policy := ai.TwoAttempt{
		Primary: func(ctx context.Context) (string, error) {
			return s.deps.Client.Complete(ctx, ai.CompletionRequest{
				System:      prompt.QuestionSystem,
				User:        primary,
				Model:       s.deps.Model,
				Temperature: quizTemperature,
				MaxTokens:   quizMaxTokens,
			})
		},
		Simplified: func(ctx context.Context) (string, error) {
			return s.deps.Client.Complete(ctx, ai.CompletionRequest{
				System:      prompt.SimplifiedQuestionSystem,
				User:        simplified,
				Model:       s.deps.Model,
				Temperature: quizTemperature,
				MaxTokens:   quizMaxTokens,
			})
		},
		Timeout: s.deps.Timeout,
		Accept: func(raw string) error {
			questions, err := assessment.ParseQuestions(raw)
			if err != nil {
				return err
			}
			parsed = questions
			return nil
		},
	}

	if _, err := policy.Run(ctx); err != nil {
		return nil, err
	}
	return parsed, nil
}

func toQuizQuestions(questions []assessment.Question) []models.QuizQuestion {
	out := make([]models.QuizQuestion, 0, len(questions))
	for _, q := range questions {
		difficulty := q.Difficulty
		if difficulty == "" {
			difficulty = "medium"
		}
		out = append(out, models.QuizQuestion{
			QuestionType:       q.QuestionType,
			QuestionText:       q.QuestionText,
			CodeSnippet:        q.CodeSnippet,
			Options:            datatypes.JSONSlice[string](q.Options),
			CorrectAnswer:      q.CorrectAnswer,
			Explanation:        q.Explanation,
			Difficulty:         difficulty,
			LearningObjectives: datatypes.JSONSlice[string](q.LearningObjectives),
		})
	}
	return out
}
