// Package app assembles the service graph shared by the API server and the
// operator CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/erikwilensky/codecheck/internal/config"
	"github.com/erikwilensky/codecheck/internal/database"
	"github.com/erikwilensky/codecheck/internal/repository"
	"github.com/erikwilensky/codecheck/internal/service"
	"github.com/erikwilensky/codecheck/pkg/ai"
	cloud "github.com/erikwilensky/codecheck/pkg/cloudinary"
)

// Container holds the infrastructure handles and services of one process.
type Container struct {
	Config    config.Config
	Logger    zerolog.Logger
	DB        *gorm.DB
	Redis     *redis.Client
	NATS      *nats.Conn
	Validator *validator.Validate
	AI        ai.Client

	Activity     service.ActivityService
	Events       service.EventService
	History      service.SubmissionHistory
	Students     service.StudentService
	Assignments  service.AssignmentService
	Submissions  service.SubmissionService
	Analyses     service.AnalysisService
	Quizzes      service.QuizService
	BulkQuizzes  service.BulkQuizService
	QuizPDFs     service.QuizPDFService
	Webhooks     service.WebhookService
	AdminSession service.AdminSessionService
	Overview     service.AdminOverviewService
	Seed         service.SeedService
}

// Build connects to the configured backends and wires every service.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Container, error) {
	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	natsConn, err := connectNATS(cfg)
	if err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, err
	}

	analysisModel, quizModel := models(cfg)
	protocol, err := ai.ParseProtocol(cfg.AIProtocol)
	if err != nil {
		return nil, err
	}
	client, err := ai.NewClient(ctx, ai.Config{
		Provider:       cfg.AIProvider,
		Protocol:       protocol,
		APIKey:         cfg.AIAPIKey(),
		Model:          analysisModel,
		BaseURL:        cfg.AIBaseURL,
		Timeout:        cfg.AITimeout,
		MaxConcurrency: cfg.AIMaxConcurrency,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create generation client: %w", err)
	}
	if client == nil {
		logger.Warn().Str("provider", cfg.AIProvider).Msg("generation provider not configured; per-submission pipelines will use fallbacks")
	}

	var archive service.PacketArchive
	if cfg.ArchiveEnabled() {
		store, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryFolder,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create cloudinary client: %w", err)
		}
		archive = store
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	studentRepo := repository.NewStudentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	quizPDFRepo := repository.NewQuizPDFRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	c := &Container{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Redis:     redisClient,
		NATS:      natsConn,
		Validator: validate,
		AI:        client,
	}

	c.Activity = service.NewActivityService(activityRepo, logger)
	c.Events = service.NewEventService(redisClient, natsConn, cfg.EventsChannel, logger)
	c.History = service.NewSubmissionHistory(submissionRepo, redisClient, cfg.HistoryTTL, logger)
	c.Students = service.NewStudentService(studentRepo, validate, c.Activity, c.Events, logger)
	c.Seed = service.NewSeedService(studentRepo, validate, c.Activity, c.Events, logger)
	c.Assignments = service.NewAssignmentService(assignmentRepo, validate, c.Activity, logger)
	c.Submissions = service.NewSubmissionService(submissionRepo, studentRepo, assignmentRepo, c.History, c.Events, validate, cfg.UploadMaxBytes, logger)
	c.Analyses = service.NewAnalysisService(service.AnalysisDependencies{
		Submissions: submissionRepo,
		Analyses:    analysisRepo,
		History:     c.History,
		Client:      client,
		Events:      c.Events,
		Validator:   validate,
		Model:       analysisModel,
		Timeout:     cfg.AITimeout,
	}, logger)
	c.Quizzes = service.NewQuizService(service.QuizDependencies{
		Submissions: submissionRepo,
		Analyses:    analysisRepo,
		Quizzes:     quizRepo,
		History:     c.History,
		Client:      client,
		Events:      c.Events,
		Validator:   validate,
		Model:       quizModel,
		Timeout:     cfg.AITimeout,
	}, logger)
	c.BulkQuizzes = service.NewBulkQuizService(service.BulkQuizDependencies{
		Students:    studentRepo,
		Submissions: submissionRepo,
		QuizPDFs:    quizPDFRepo,
		Client:      client,
		Archive:     archive,
		Activity:    c.Activity,
		Events:      c.Events,
		Validator:   validate,
		Model:       quizModel,
		Timeout:     cfg.AITimeout,
	}, logger)
	c.QuizPDFs = service.NewQuizPDFService(quizPDFRepo, c.Activity, logger)
	c.Overview = service.NewAdminOverviewService(repository.NewOverviewRepository(db), redisClient, cfg.OverviewTTL, logger)
	c.Webhooks = service.NewWebhookService(service.WebhookDependencies{
		Students:    studentRepo,
		Submissions: submissionRepo,
		History:     c.History,
		Analyses:    c.Analyses,
		Quizzes:     c.Quizzes,
		Activity:    c.Activity,
		Events:      c.Events,
		Secret:      cfg.GithubWebhookSecret,
	}, logger)
	c.AdminSession, err = service.NewAdminSessionService(service.AdminSessionConfig{
		Password:     cfg.AdminPassword,
		PasswordHash: cfg.AdminPasswordHash,
		TokenSecret:  cfg.AdminTokenSecret,
		TokenTTL:     cfg.AdminTokenTTL,
	}, validate, c.Activity, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

// Close releases the broker and cache connections.
func (c *Container) Close() {
	if c.NATS != nil {
		c.NATS.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func connectNATS(cfg config.Config) (*nats.Conn, error) {
	if cfg.NATSURL == "" {
		return nil, nil
	}
	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name(cfg.AppName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to nats: %w", err)
	}
	return conn, nil
}

// models picks the analysis and quiz model names for the selected provider.
func models(cfg config.Config) (string, string) {
	switch cfg.AIProvider {
	case ai.ProviderAnthropic:
		return cfg.AnthropicModel, cfg.AnthropicModel
	case ai.ProviderGemini:
		return cfg.GeminiModel, cfg.GeminiModel
	default:
		return cfg.AnalysisModel, cfg.QuizModel
	}
}
