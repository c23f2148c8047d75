package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/erikwilensky/codecheck/internal/app"
	"github.com/erikwilensky/codecheck/internal/config"
	"github.com/erikwilensky/codecheck/internal/handler"
	"github.com/erikwilensky/codecheck/internal/middleware"
	"github.com/erikwilensky/codecheck/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssignmentHandler      *handler.AssignmentHandler
	UploadHandler          *handler.UploadHandler
	SubmissionHandler      *handler.SubmissionHandler
	WebhookHandler         *handler.WebhookHandler
	AnalysisHandler        *handler.AnalysisHandler
	QuizHandler            *handler.QuizHandler
	AdminSessionHandler    *handler.AdminSessionHandler
	AdminStudentHandler    *handler.AdminStudentHandler
	AdminAssignmentHandler *handler.AdminAssignmentHandler
	AdminPipelineHandler   *handler.AdminPipelineHandler
	AdminQuizPDFHandler    *handler.AdminQuizPDFHandler
	AdminActivityHandler   *handler.AdminActivityHandler
	AdminOverviewHandler   *handler.AdminOverviewHandler
	SeedHandler            *handler.SeedHandler
	EventHandler           *handler.EventHandler
	AdminMiddleware        fiber.Handler
}

// NewDependencies builds every handler over the services of a container.
func NewDependencies(c *app.Container) Dependencies {
	logger := c.Logger
	return Dependencies{
		AssignmentHandler:      handler.NewAssignmentHandler(c.Assignments, logger),
		UploadHandler:          handler.NewUploadHandler(c.Submissions, logger),
		SubmissionHandler:      handler.NewSubmissionHandler(c.Submissions, logger),
		WebhookHandler:         handler.NewWebhookHandler(c.Webhooks, logger),
		AnalysisHandler:        handler.NewAnalysisHandler(c.Analyses, logger),
		QuizHandler:            handler.NewQuizHandler(c.Quizzes, logger),
		AdminSessionHandler:    handler.NewAdminSessionHandler(c.AdminSession, logger),
		AdminStudentHandler:    handler.NewAdminStudentHandler(c.Students, logger),
		AdminAssignmentHandler: handler.NewAdminAssignmentHandler(c.Assignments, logger),
		AdminPipelineHandler:   handler.NewAdminPipelineHandler(c.Analyses, c.Quizzes, c.BulkQuizzes, logger),
		AdminQuizPDFHandler:    handler.NewAdminQuizPDFHandler(c.QuizPDFs, logger),
		AdminActivityHandler:   handler.NewAdminActivityHandler(c.Activity, logger),
		AdminOverviewHandler:   handler.NewAdminOverviewHandler(c.Overview, logger),
		SeedHandler:            handler.NewSeedHandler(c.Seed, logger),
		EventHandler:           handler.NewEventHandler(c.Events, logger),
		AdminMiddleware:        middleware.AdminProtected(c.AdminSession),
	}
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(api.Group("/assignments"))
	}
	if deps.UploadHandler != nil {
		deps.UploadHandler.Register(api.Group("/upload", middleware.RateLimit("upload", cfg.RateLimitMax, cfg.RateLimitWindow)))
	}
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(api.Group("/submissions"))
	}
	if deps.WebhookHandler != nil {
		deps.WebhookHandler.Register(api.Group("/webhook"))
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.Register(api.Group("/analyses"))
	}
	if deps.QuizHandler != nil {
		deps.QuizHandler.Register(api.Group("/quizzes"))
	}

	adminRoot := api.Group("/admin")
	if deps.AdminSessionHandler != nil {
		// Registered ahead of the gate so the login route stays reachable.
		deps.AdminSessionHandler.Register(adminRoot, middleware.RateLimit("admin_session", 10, time.Minute))
	}

	// Without an authenticator the admin surface stays closed.
	adminMiddleware := deps.AdminMiddleware
	if adminMiddleware == nil {
		adminMiddleware = func(c *fiber.Ctx) error { return fiber.ErrUnauthorized }
	}
	admin := adminRoot.Group("", adminMiddleware)

	if deps.AdminStudentHandler != nil {
		deps.AdminStudentHandler.Register(admin.Group("/students"))
	}
	if deps.AdminAssignmentHandler != nil {
		deps.AdminAssignmentHandler.Register(admin.Group("/assignments"))
	}
	if deps.AdminPipelineHandler != nil {
		deps.AdminPipelineHandler.Register(admin)
	}
	if deps.AdminQuizPDFHandler != nil {
		deps.AdminQuizPDFHandler.Register(admin.Group("/quiz-pdfs"))
	}
	if deps.AdminActivityHandler != nil {
		deps.AdminActivityHandler.Register(admin.Group("/activity"))
	}
	if deps.AdminOverviewHandler != nil {
		deps.AdminOverviewHandler.Register(admin.Group("/overview"))
	}
	if deps.SeedHandler != nil {
		deps.SeedHandler.Register(admin.Group("/seed"))
	}
	if deps.EventHandler != nil {
		deps.EventHandler.Register(admin.Group("/events"))
	}
}
