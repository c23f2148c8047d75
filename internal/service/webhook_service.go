package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/models"
	"github.com/erikwilensky/codecheck/internal/repository"
)

var (
	// ErrInvalidSignature indicates the delivery signature does not match the secret.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrInvalidPayload indicates the delivery body is not a valid event payload.
	ErrInvalidPayload = errors.New("invalid webhook payload")
)

const (
	webhookStatusSuccess = "success"
	webhookStatusIgnored = "ignored"

	signaturePrefix = "sha256="
)

// WebhookService turns GitHub deliveries into commit submissions and runs the
// assessment pipelines on them.
type WebhookService interface {
	Handle(ctx context.Context, event, signature string, body []byte) (dto.WebhookResult, error)
}

// WebhookDependencies wires the webhook intake.
type WebhookDependencies struct {
	Students    repository.StudentRepository
	Submissions repository.SubmissionRepository
	History     SubmissionHistory
	Analyses    AnalysisService
	Quizzes     QuizService
	Activity    ActivityRecorder
	Events      EventPublisher
	Secret      string
}

type webhookService struct {
	deps   WebhookDependencies
	logger zerolog.Logger
}

// NewWebhookService constructs the webhook intake.
func NewWebhookService(deps WebhookDependencies, logger zerolog.Logger) WebhookService {
	return &webhookService{
		deps:   deps,
		logger: logger.With().Str("component", "webhook_service").Logger(),
	}
}

func (s *webhookService) Handle(ctx context.Context, event, signature string, body []byte) (dto.WebhookResult, error) {
	if !VerifySignature(s.deps.Secret, body, signature) {
		return dto.WebhookResult{}, ErrInvalidSignature
	}

	switch event {
	case "ping":
		return dto.WebhookResult{Event: event, Status: webhookStatusSuccess}, nil
	case "push":
	default:
		s.logger.Debug().Str("event", event).Msg("ignoring webhook event")
		return dto.WebhookResult{Event: event, Status: webhookStatusIgnored}, nil
	}

	var payload dto.GithubPushEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		return dto.WebhookResult{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	result := dto.WebhookResult{Event: event, Status: webhookStatusSuccess, Processed: []dto.WebhookCommitResult{}}
	for _, commit := range payload.Commits {
		result.Processed = append(result.Processed, s.processCommit(ctx, payload, commit))
	}
	return result, nil
}

func (s *webhookService) processCommit(ctx context.Context, push dto.GithubPushEvent, commit dto.GithubCommit) dto.WebhookCommitResult {
	outcome := dto.WebhookCommitResult{CommitSHA: commit.ID}
	log := s.logger.With().Str("commit", commit.ID).Logger()

	student, err := s.authorOf(ctx, commit)
	if err != nil {
		log.Error().Err(err).Msg("failed to resolve commit author")
		outcome.Error = err.Error()
		return outcome
	}
	outcome.StudentID = student.ID

	submission := commitSubmission(student.ID, push, commit)
	if err := storeSubmission(ctx, s.deps.Submissions, s.deps.History, s.deps.Events, &submission); err != nil {
		log.Error().Err(err).Msg("failed to store commit submission")
		outcome.Error = err.Error()
		return outcome
	}
	outcome.SubmissionID = submission.ID

	if _, err := s.deps.Analyses.RunHeuristicAnalysis(ctx, submission.ID); err != nil {
		log.Warn().Err(err).Msg("heuristic analysis failed")
	}

	analysis, err := s.deps.Analyses.RunAnalysis(ctx, submission.ID)
	if err != nil {
		log.Error().Err(err).Msg("analysis failed")
		outcome.Error = err.Error()
		return outcome
	}
	outcome.AnalysisID = analysis.ID

	quiz, err := s.deps.Quizzes.RunQuizGeneration(ctx, submission.ID, uintPtr(analysis.ID))
	if err != nil {
		log.Error().Err(err).Msg("quiz generation failed")
		outcome.Error = err.Error()
		return outcome
	}
	outcome.QuizID = quiz.ID
	return outcome
}

// authorOf finds the student by GitHub username, enrolling an unapproved student
// for unknown authors.
func (s *webhookService) authorOf(ctx context.Context, commit dto.GithubCommit) (models.Student, error) {
	username := strings.TrimSpace(commit.Author.Username)
	if username == "" {
		username = "unknown"
	}

	student, err := s.deps.Students.GetByGithubUsername(ctx, username)
	if err == nil {
		return student, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Student{}, err
	}

	name := strings.TrimSpace(commit.Author.Name)
	if name == "" {
		name = username
	}
	student = models.Student{
		StudentCode:    "gh-" + username,
		Name:           name,
		Block:          models.BlockFour,
		GithubUsername: &username,
		IsApproved:     false,
		IsActive:       true,
	}
	if err := s.deps.Students.Create(ctx, &student); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent delivery enrolled the same author.
			return s.deps.Students.GetByGithubUsername(ctx, username)
		}
		return models.Student{}, err
	}

	recordActivity(ctx, s.deps.Activity, s.logger, ActivityEntry{
		Actor:      WebhookActor,
		Action:     "student.enroll",
		EntityType: "student",
		EntityID:   uintPtr(student.ID),
		Metadata:   map[string]interface{}{"github_username": username},
	})
	return student, nil
}

// commitSubmission describes a commit as a submission. Push payloads carry no file
// bodies, so the stored content is a manifest of the change.
func commitSubmission(studentID uint, push dto.GithubPushEvent, commit dto.GithubCommit) models.Submission {
	files := make([]string, 0, len(commit.Modified)+len(commit.Added))
	files = append(files, commit.Modified...)
	files = append(files, commit.Added...)

	var manifest strings.Builder
	fmt.Fprintf(&manifest, "commit %s\n", commit.ID)
	fmt.Fprintf(&manifest, "repository %s\n\n", push.Repository.FullName)
	manifest.WriteString(strings.TrimSpace(commit.Message))
	manifest.WriteString("\n")
	for _, file := range files {
		fmt.Fprintf(&manifest, "M %s\n", file)
	}
	for _, file := range commit.Removed {
		fmt.Fprintf(&manifest, "D %s\n", file)
	}
	content := manifest.String()
	checksum := sha256.Sum256([]byte(content))

	fileName := "commit-" + shortSHA(commit.ID) + ".txt"
	if len(files) > 0 {
		fileName = files[0]
	}

	assignment := push.Repository.Name
	if assignment == "" {
		assignment = "default"
	}

	submission := models.Submission{
		StudentID:      studentID,
		AssignmentName: assignment,
		FileName:       fileName,
		FileContent:    content,
		FileSize:       int64(len(content)),
		Checksum:       hex.EncodeToString(checksum[:]),
		Source:         models.SubmissionSourceGithub,
		CommitSHA:      commit.ID,
		CommitMessage:  commit.Message,
		FilesChanged:   datatypes.JSONSlice[string](files),
		Branch:         strings.TrimPrefix(push.Ref, "refs/heads/"),
		Repository:     push.Repository.FullName,
	}
	if !commit.Timestamp.IsZero() {
		submission.CreatedAt = commit.Timestamp.UTC()
	}
	return submission
}

// VerifySignature checks an X-Hub-Signature-256 header. An empty secret disables
// verification.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" {
		return true
	}
	if !strings.HasPrefix(signature, signaturePrefix) {
		return false
	}
	given, err := hex.DecodeString(strings.TrimPrefix(signature, signaturePrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), given)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
