package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/erikwilensky/codecheck/internal/heuristics"
	"github.com/erikwilensky/codecheck/internal/models"
	"github.com/erikwilensky/codecheck/internal/prompt"
	"github.com/erikwilensky/codecheck/internal/repository"
)

const historyCachePrefix = "codecheck:history:"

// SubmissionHistory returns the prior submissions of a student, newest first,
// without file content.
type SubmissionHistory interface {
	Recent(ctx context.Context, studentID, excludeID uint) ([]models.Submission, error)
	Invalidate(ctx context.Context, studentID uint)
}

type submissionHistory struct {
	repo   repository.SubmissionRepository
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewSubmissionHistory builds the history reader. A nil redis client disables caching.
func NewSubmissionHistory(repo repository.SubmissionRepository, redisClient *redis.Client, ttl time.Duration, logger zerolog.Logger) SubmissionHistory {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &submissionHistory{
		repo:   repo,
		redis:  redisClient,
		ttl:    ttl,
		logger: logger.With().Str("component", "submission_history").Logger(),
	}
}

func (h *submissionHistory) Recent(ctx context.Context, studentID, excludeID uint) ([]models.Submission, error) {
	// One extra row so the window stays full after dropping the excluded submission.
	limit := prompt.MaxHistoryItems + 1

	var all []models.Submission
	cached := false
	if h.redis != nil {
		payload, err := h.redis.Get(ctx, historyKey(studentID)).Bytes()
		switch {
		case err == nil:
			if jsonErr := json.Unmarshal(payload, &all); jsonErr == nil {
				cached = true
			} else {
				h.logger.Warn().Err(jsonErr).Uint("student_id", studentID).Msg("discarding corrupt history cache entry")
			}
		case errors.Is(err, redis.Nil):
		default:
			h.logger.Warn().Err(err).Msg("history cache read failed")
		}
	}

	if !cached {
		rows, err := h.repo.ListRecentByStudent(ctx, studentID, 0, limit)
		if err != nil {
			return nil, fmt.Errorf("load submission history: %w", err)
		}
		all = rows
		h.store(ctx, studentID, rows)
	}

	history := make([]models.Submission, 0, len(all))
	for _, submission := range all {
		if submission.ID == excludeID {
			continue
		}
		history = append(history, submission)
		if len(history) == prompt.MaxHistoryItems {
			break
		}
	}
	return history, nil
}

func (h *submissionHistory) Invalidate(ctx context.Context, studentID uint) {
	if h.redis == nil {
		return
	}
	if err := h.redis.Del(ctx, historyKey(studentID)).Err(); err != nil {
		h.logger.Warn().Err(err).Uint("student_id", studentID).Msg("history cache invalidation failed")
	}
}

func (h *submissionHistory) store(ctx context.Context, studentID uint, rows []models.Submission) {
	if h.redis == nil {
		return
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return
	}
	if err := h.redis.Set(ctx, historyKey(studentID), payload, h.ttl).Err(); err != nil {
		h.logger.Warn().Err(err).Msg("history cache write failed")
	}
}

func historyKey(studentID uint) string {
	return fmt.Sprintf("%s%d", historyCachePrefix, studentID)
}

func featuresOf(submission models.Submission) heuristics.SubmissionFeatures {
	return heuristics.SubmissionFeatures{
		ID:            submission.ID,
		LinesAdded:    submission.LinesAdded,
		LinesDeleted:  submission.LinesDeleted,
		FilesChanged:  []string(submission.FilesChanged),
		CommitMessage: submission.CommitMessage,
	}
}

func featuresOfAll(submissions []models.Submission) []heuristics.SubmissionFeatures {
	out := make([]heuristics.SubmissionFeatures, 0, len(submissions))
	for _, submission := range submissions {
		out = append(out, featuresOf(submission))
	}
	return out
}

func summaryOf(submission models.Submission) prompt.SubmissionSummary {
	return prompt.SubmissionSummary{
		AssignmentName: submission.AssignmentName,
		FileName:       submission.FileName,
		FileSize:       submission.FileSize,
		CreatedAt:      prompt.FormatTimestamp(submission.CreatedAt),
	}
}

func summariesOf(submissions []models.Submission) []prompt.SubmissionSummary {
	out := make([]prompt.SubmissionSummary, 0, len(submissions))
	for _, submission := range submissions {
		out = append(out, summaryOf(submission))
	}
	return out
}

func currentOf(submission models.Submission) prompt.CurrentSubmission {
	return prompt.CurrentSubmission{
		SubmissionSummary: summaryOf(submission),
		Content:           submission.FileContent,
	}
}

// loadWithHistory fetches a submission and its prior submissions.
func loadWithHistory(ctx context.Context, submissions repository.SubmissionRepository, history SubmissionHistory, submissionID uint) (models.Submission, []models.Submission, error) {
	submission, err := submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, nil, ErrSubmissionNotFound
		}
		return models.Submission{}, nil, err
	}

	prior, err := history.Recent(ctx, submission.StudentID, submission.ID)
	if err != nil {
		return models.Submission{}, nil, err
	}
	return submission, prior, nil
}
