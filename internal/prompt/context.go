package prompt

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MaxHistoryItems bounds the submission history included in an analysis context.
	MaxHistoryItems = 10
	// MaxDigestItems bounds the history digest included in a quiz context.
	MaxDigestItems = 5
	// MaxQuizCodeChars bounds the code included in quiz prompts.
	MaxQuizCodeChars = 2000
	// MaxAnalysisCodeChars bounds the code included in analysis prompts.
	MaxAnalysisCodeChars = 6000

	noHistoryDigest = "No previous submissions available."
)

// SubmissionSummary is the metadata of one submission as seen by prompts.
// CreatedAt is an RFC3339 timestamp.
type SubmissionSummary struct {
	AssignmentName string `json:"assignment_name"`
	FileName       string `json:"file_name"`
	FileSize       int64  `json:"file_size"`
	CreatedAt      string `json:"created_at"`
}

// CurrentSubmission is the submission under assessment.
type CurrentSubmission struct {
	SubmissionSummary
	Content string `json:"file_content"`
}

// AnalysisParameters are derived from the history.
type AnalysisParameters struct {
	HistoryLength    int `json:"history_length"`
	TimeSpanDays     int `json:"time_span_days"`
	TotalSubmissions int `json:"total_submissions"`
}

// AnalysisContext is the bounded input of the analysis prompt.
type AnalysisContext struct {
	Current    CurrentSubmission      `json:"current_submission"`
	History    []SubmissionSummary    `json:"submission_history"`
	Parameters AnalysisParameters     `json:"analysis_parameters"`
	Heuristics map[string]interface{} `json:"heuristics,omitempty"`
}

// QuizContext is the bounded input of the per-submission question prompt.
type QuizContext struct {
	AssignmentName     string
	FileName           string
	Code               string
	HistoryDigest      string
	Trajectory         string
	UnderstandingLevel string
	SuspectedToolUse   bool
}

// FormatTimestamp renders a time the way summaries store it.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// BuildAnalysisContext shapes the current submission, its history (newest first) and
// an optional heuristic report into an analysis context.
func BuildAnalysisContext(current CurrentSubmission, history []SubmissionSummary, heuristics map[string]interface{}) AnalysisContext {
	if len(history) > MaxHistoryItems {
		history = history[:MaxHistoryItems]
	}
	bounded := make([]SubmissionSummary, len(history))
	copy(bounded, history)

	current.Content = Truncate(current.Content, MaxAnalysisCodeChars)

	return AnalysisContext{
		Current: current,
		History: bounded,
		Parameters: AnalysisParameters{
			HistoryLength:    len(bounded),
			TimeSpanDays:     TimeSpanDays(bounded),
			TotalSubmissions: len(bounded) + 1,
		},
		Heuristics: heuristics,
	}
}

// TimeSpanDays returns the whole days between the newest and the oldest history entry.
// It returns 0 for fewer than two entries or when a timestamp does not parse.
func TimeSpanDays(history []SubmissionSummary) int {
	if len(history) < 2 {
		return 0
	}
	newest, err := time.Parse(time.RFC3339, history[0].CreatedAt)
	if err != nil {
		return 0
	}
	oldest, err := time.Parse(time.RFC3339, history[len(history)-1].CreatedAt)
	if err != nil {
		return 0
	}
	return int(newest.Sub(oldest) / (24 * time.Hour))
}

// BuildQuizContext shapes a submission, its history and a prior analysis result into
// the question prompt input.
func BuildQuizContext(current CurrentSubmission, history []SubmissionSummary, analysis map[string]interface{}) QuizContext {
	qc := QuizContext{
		AssignmentName:     current.AssignmentName,
		FileName:           current.FileName,
		Code:               Truncate(current.Content, MaxQuizCodeChars),
		HistoryDigest:      HistoryDigest(history),
		Trajectory:         "unknown",
		UnderstandingLevel: "unknown",
	}

	if section, ok := analysis["historical_analysis"].(map[string]interface{}); ok {
		if v, ok := section["learning_trajectory"].(string); ok && v != "" {
			qc.Trajectory = v
		}
	}
	if section, ok := analysis["learning_progression"].(map[string]interface{}); ok {
		if v, ok := section["understanding_level"].(string); ok && v != "" {
			qc.UnderstandingLevel = v
		}
	}
	if section, ok := analysis["tool_dependency"].(map[string]interface{}); ok {
		if v, ok := section["confidence"].(float64); ok {
			qc.SuspectedToolUse = v > 0.5
		}
	}

	return qc
}

// HistoryDigest summarises up to five prior submissions.
func HistoryDigest(history []SubmissionSummary) string {
	if len(history) == 0 {
		return noHistoryDigest
	}
	if len(history) > MaxDigestItems {
		history = history[:MaxDigestItems]
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "Previous %d submissions:\n", len(history))
	for i, item := range history {
		fmt.Fprintf(&builder, "- Submission %d: %s (%s, %d bytes)\n", i+1, item.AssignmentName, item.FileName, item.FileSize)
	}
	return builder.String()
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
