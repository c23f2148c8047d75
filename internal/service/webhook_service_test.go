package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/models"
)

const pushPayload = `{
  "ref": "refs/heads/main",
  "repository": {"name": "calculator", "full_name": "class/calculator"},
  "commits": [{
    "id": "0123456789abcdef",
    "message": "Add division with zero check",
    "timestamp": "2025-03-04T10:00:00Z",
    "author": {"name": "Ada Lovelace", "email": "ada@example.com", "username": "ada"},
    "added": ["calc.py"],
    "removed": ["old.py"],
    "modified": ["README.md"]
  }]
}`

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func newWebhookService(f *fixture, secret string) WebhookService {
	return NewWebhookService(WebhookDependencies{
		Students:    f.students,
		Submissions: f.submissions,
		History:     f.history(),
		Analyses:    newAnalysisService(f, nil),
		Quizzes:     newQuizService(f, nil),
		Activity:    f.activityService(),
		Events:      f.events,
		Secret:      secret,
	}, testLogger())
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"zen":"Keep it logically awesome."}`)

	require.True(t, VerifySignature("", body, ""))
	require.True(t, VerifySignature("s3cret", body, sign("s3cret", body)))
	require.False(t, VerifySignature("s3cret", body, sign("other", body)))
	require.False(t, VerifySignature("s3cret", body, "sha1=abc"))
	require.False(t, VerifySignature("s3cret", body, "sha256=zz"))
}

func TestWebhookPingAndIgnoredEvents(t *testing.T) {
	f := newFixture(t)
	svc := newWebhookService(f, "")

	result, err := svc.Handle(context.Background(), "ping", "", []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, "success", result.Status)

	result, err = svc.Handle(context.Background(), "issues", "", []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, "ignored", result.Status)
}

func TestWebhookRejectsBadSignatureAndPayload(t *testing.T) {
	f := newFixture(t)
	svc := newWebhookService(f, "s3cret")

	_, err := svc.Handle(context.Background(), "push", "sha256=00", []byte(pushPayload))
	require.ErrorIs(t, err, ErrInvalidSignature)

	body := []byte(`{"commits": "nope"}`)
	_, err = svc.Handle(context.Background(), "push", sign("s3cret", body), body)
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestWebhookPushRunsPipelines(t *testing.T) {
	f := newFixture(t)
	svc := newWebhookService(f, "s3cret")
	body := []byte(pushPayload)

	result, err := svc.Handle(context.Background(), "push", sign("s3cret", body), body)
	require.NoError(t, err)
	require.Len(t, result.Processed, 1)

	commit := result.Processed[0]
	require.Empty(t, commit.Error)
	require.NotZero(t, commit.SubmissionID)
	require.NotZero(t, commit.AnalysisID)
	require.NotZero(t, commit.QuizID)

	student, err := f.students.GetByGithubUsername(context.Background(), "ada")
	require.NoError(t, err)
	require.Equal(t, "gh-ada", student.StudentCode)
	require.False(t, student.IsApproved)

	submission, err := f.submissions.GetByID(context.Background(), commit.SubmissionID)
	require.NoError(t, err)
	require.Equal(t, "calculator", submission.AssignmentName)
	require.Equal(t, "main", submission.Branch)
	require.Equal(t, models.SubmissionSourceGithub, submission.Source)
	require.Equal(t, []string{"README.md", "calc.py"}, []string(submission.FilesChanged))
	require.Contains(t, submission.FileContent, "D old.py")

	var analyses int64
	require.NoError(t, f.db.Model(&models.Analysis{}).Where("submission_id = ?", commit.SubmissionID).Count(&analyses).Error)
	require.Equal(t, int64(2), analyses)

	quiz, err := f.quizzes.GetByID(context.Background(), commit.QuizID)
	require.NoError(t, err)
	require.NotNil(t, quiz.AnalysisID)
	require.Equal(t, commit.AnalysisID, *quiz.AnalysisID)

	require.Contains(t, f.events.types(), dto.EventSubmissionCreated)
	require.Contains(t, f.events.types(), dto.EventQuizGenerated)

	// A second delivery from the same author reuses the enrolled student.
	result, err = svc.Handle(context.Background(), "push", sign("s3cret", body), body)
	require.NoError(t, err)
	require.Equal(t, student.ID, result.Processed[0].StudentID)
}
