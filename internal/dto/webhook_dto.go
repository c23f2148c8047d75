package dto

import "time"

// GithubPushEvent is the subset of a GitHub push payload the intake uses.
type GithubPushEvent struct {
	Ref        string `json:"ref"`
	Repository struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
	} `json:"repository"`
	Pusher struct {
		Name string `json:"name"`
	} `json:"pusher"`
	Commits []GithubCommit `json:"commits"`
}

// GithubCommit is one commit of a push payload.
type GithubCommit struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Author    struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Username string `json:"username"`
	} `json:"author"`
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Modified []string `json:"modified"`
}

// WebhookResult reports how a delivery was handled.
type WebhookResult struct {
	Event     string                `json:"event"`
	Status    string                `json:"status"`
	Processed []WebhookCommitResult `json:"processed,omitempty"`
}

// WebhookCommitResult reports the records created for one commit.
type WebhookCommitResult struct {
	CommitSHA    string `json:"commit_sha"`
	StudentID    uint   `json:"student_id"`
	SubmissionID uint   `json:"submission_id"`
	AnalysisID   uint   `json:"analysis_id,omitempty"`
	QuizID       uint   `json:"quiz_id,omitempty"`
	Error        string `json:"error,omitempty"`
}
