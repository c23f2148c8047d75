package prompt

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func summaries(n int, newest time.Time) []SubmissionSummary {
	items := make([]SubmissionSummary, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, SubmissionSummary{
			AssignmentName: fmt.Sprintf("assignment-%d", i),
			FileName:       fmt.Sprintf("file_%d.py", i),
			FileSize:       int64(100 + i),
			CreatedAt:      FormatTimestamp(newest.Add(-time.Duration(i) * 24 * time.Hour)),
		})
	}
	return items
}

func TestBuildAnalysisContextBoundsHistory(t *testing.T) {
	newest := time.Date(2025, 3, 20, 10, 0, 0, 0, time.UTC)
	current := CurrentSubmission{
		SubmissionSummary: SubmissionSummary{AssignmentName: "calculator", FileName: "calc.py", FileSize: 42},
		Content:           strings.Repeat("x", MaxAnalysisCodeChars+100),
	}

	ctx := BuildAnalysisContext(current, summaries(14, newest), map[string]interface{}{"tool_dependency_risk": "low"})

	require.Len(t, ctx.History, MaxHistoryItems)
	require.Equal(t, MaxHistoryItems, ctx.Parameters.HistoryLength)
	require.Equal(t, MaxHistoryItems+1, ctx.Parameters.TotalSubmissions)
	require.Equal(t, 9, ctx.Parameters.TimeSpanDays)
	require.Len(t, ctx.Current.Content, MaxAnalysisCodeChars)
	require.Equal(t, "assignment-0", ctx.History[0].AssignmentName)
}

func TestTimeSpanDaysDefaults(t *testing.T) {
	newest := time.Date(2025, 3, 20, 10, 0, 0, 0, time.UTC)
	require.Zero(t, TimeSpanDays(nil))
	require.Zero(t, TimeSpanDays(summaries(1, newest)))

	broken := summaries(3, newest)
	broken[2].CreatedAt = "not-a-date"
	require.Zero(t, TimeSpanDays(broken))

	require.Equal(t, 2, TimeSpanDays(summaries(3, newest)))
}

func TestHistoryDigest(t *testing.T) {
	require.Equal(t, "No previous submissions available.", HistoryDigest(nil))

	digest := HistoryDigest(summaries(7, time.Now()))
	require.True(t, strings.HasPrefix(digest, "Previous 5 submissions:\n"))
	require.Contains(t, digest, "- Submission 1: assignment-0 (file_0.py, 100 bytes)")
	require.NotContains(t, digest, "assignment-5")
}

func TestBuildQuizContextReadsPriorAnalysis(t *testing.T) {
	current := CurrentSubmission{
		SubmissionSummary: SubmissionSummary{AssignmentName: "voting", FileName: "vote.py"},
		Content:           strings.Repeat("é", MaxQuizCodeChars+10),
	}
	analysis := map[string]interface{}{
		"historical_analysis":  map[string]interface{}{"learning_trajectory": "sudden"},
		"learning_progression": map[string]interface{}{"understanding_level": "beginner"},
		"tool_dependency":      map[string]interface{}{"confidence": 0.8},
	}

	qc := BuildQuizContext(current, nil, analysis)

	require.Equal(t, "sudden", qc.Trajectory)
	require.Equal(t, "beginner", qc.UnderstandingLevel)
	require.True(t, qc.SuspectedToolUse)
	require.Equal(t, MaxQuizCodeChars, len([]rune(qc.Code)))

	empty := BuildQuizContext(current, nil, nil)
	require.Equal(t, "unknown", empty.Trajectory)
	require.False(t, empty.SuspectedToolUse)
}

func TestPromptsRender(t *testing.T) {
	newest := time.Date(2025, 3, 20, 10, 0, 0, 0, time.UTC)
	ctx := BuildAnalysisContext(CurrentSubmission{
		SubmissionSummary: SubmissionSummary{AssignmentName: "calculator", FileName: "calc.py"},
		Content:           "print('hi')",
	}, summaries(2, newest), nil)

	primary, err := AnalysisPrompt(ctx)
	require.NoError(t, err)
	require.Contains(t, primary, "Submission 1 (2025-03-20T10:00:00Z)")
	require.Contains(t, primary, "\"confidence_score\": 0.0")

	simple, err := SimplifiedAnalysisPrompt(ctx)
	require.NoError(t, err)
	require.Less(t, len(simple), len(primary))

	qc := BuildQuizContext(ctx.Current, ctx.History, nil)
	questions, err := QuestionPrompt(qc)
	require.NoError(t, err)
	require.Contains(t, questions, "Previous 2 submissions")

	simpleQuestions, err := SimplifiedQuestionPrompt(qc)
	require.NoError(t, err)
	require.Less(t, len(simpleQuestions), len(questions))

	bulk, err := BulkQuizPrompt("calculator", strings.Repeat("a", 5000))
	require.NoError(t, err)
	require.Contains(t, bulk, "Code snippet:")
	require.Less(t, len(bulk), 5000)
}
