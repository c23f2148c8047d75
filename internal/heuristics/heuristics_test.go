package heuristics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasMeaningfulMessage(t *testing.T) {
	cases := []struct {
		message  string
		expected bool
	}{
		{"fix", false},
		{"FIX", false},
		{" Update ", false},
		{"wip", false},
		{"commit", false},
		{"save", false},
		{"test", false},
		{"", false},
		{"short", false},
		{"123456789", false},
		{"Implemented recursive Fibonacci calculator.", true},
		{"fixing it", true},
	}

	for _, tc := range cases {
		require.Equal(t, tc.expected, HasMeaningfulMessage(tc.message), "message %q", tc.message)
	}
}

func TestVolumeProbability(t *testing.T) {
	require.Equal(t, 0.6, VolumeProbability(60, 5))
	require.Equal(t, 0.2, VolumeProbability(20, 18))
	require.Equal(t, 0.4, VolumeProbability(30, 15))
}

func TestFileOrganizationProbability(t *testing.T) {
	require.Equal(t, 0.0, FileOrganizationProbability(nil))
	require.Equal(t, 0.1, FileOrganizationProbability([]string{"main.py"}))
	require.Equal(t, 0.3, FileOrganizationProbability([]string{"a.py", "b.py"}))
	require.Equal(t, 0.5, FileOrganizationProbability([]string{"a", "b", "c", "d"}))
}

func TestMessageAIProbability(t *testing.T) {
	require.Equal(t, 0.0, MessageAIProbability(""))
	require.InDelta(t, 0.2, MessageAIProbability("refactor"), 1e-9)
	// implement + add + handle, long and ends with a period
	require.InDelta(t, 0.9, MessageAIProbability("Implement input parsing and add a handler for bad values."), 1e-9)
	require.Equal(t, 1.0, MessageAIProbability("Implement, add, create, update, fix and refactor everything."))
}

func TestRiskTier(t *testing.T) {
	require.Equal(t, RiskLow, RiskTier(0.39))
	require.Equal(t, RiskMedium, RiskTier(0.4))
	require.Equal(t, RiskMedium, RiskTier(0.69))
	require.Equal(t, RiskHigh, RiskTier(0.7))
}

func TestScoreToolDependencyMediumAtBoundary(t *testing.T) {
	in := SubmissionFeatures{LinesAdded: 60, LinesDeleted: 5, CommitMessage: "add fix update"}

	result := ScoreToolDependency(Extract(in), in.CommitMessage, in.FilesChanged)

	require.Equal(t, 0.6, result.AIGenerationProbability)
	require.Equal(t, 0.6, result.CopilotUsageProbability)
	require.Equal(t, 0.0, result.CopyPasteProbability)
	require.Equal(t, RiskMedium, result.Risk)
}

func TestFileTypesIgnoresExtensionCase(t *testing.T) {
	require.Equal(t, map[string]int{"py": 2, "no_extension": 1}, FileTypes([]string{"Main.PY", "b.py", "Makefile"}))
}

func TestExtractComplexityFlags(t *testing.T) {
	features := Extract(SubmissionFeatures{
		LinesAdded:   120,
		LinesDeleted: 4,
		FilesChanged: []string{"a.py", "b.py", "c.go", "README", "d.py", "e.py"},
	})

	require.Equal(t, 6, features.FilesChanged)
	require.Equal(t, 116, features.NetLines)
	require.True(t, features.Complexity.LargeChange)
	require.True(t, features.Complexity.ManyFiles)
	require.False(t, features.Complexity.BalancedChanges)
	require.True(t, features.Complexity.SignificantAddition)
	require.False(t, features.Complexity.SignificantDeletion)
	require.Equal(t, 4, features.FileTypes["py"])
	require.Equal(t, 1, features.FileTypes["no_extension"])
}

func TestScoreProgressionNeedsTwoSubmissions(t *testing.T) {
	progression := ScoreProgression([]SubmissionFeatures{{ID: 1, LinesAdded: 10}})
	require.Zero(t, progression.LearningProgressionScore)
	require.Empty(t, progression.Anomalies)
}

func TestScoreProgressionDetectsSuddenImprovement(t *testing.T) {
	history := []SubmissionFeatures{
		{ID: 6, LinesAdded: 90, CommitMessage: "Add validation for the voter registry."},
		{ID: 5, LinesAdded: 85, CommitMessage: "Refactor the tally function"},
		{ID: 4, LinesAdded: 80, CommitMessage: "wip"},
		{ID: 3, LinesAdded: 20, CommitMessage: "save"},
		{ID: 2, LinesAdded: 15, CommitMessage: "fix"},
		{ID: 1, LinesAdded: 10, CommitMessage: "update"},
	}

	progression := ScoreProgression(history)

	require.True(t, progression.SuddenImprovement)
	require.InDelta(t, 2.0/3.0, progression.SkillDevelopmentRate, 1e-9)
	require.Equal(t, []string{
		"Inconsistent commit message quality at submission 4",
		"Unusual code volume change at submission 3",
	}, progression.Anomalies)

	// meaningful fraction 2/6, volume consistency 1 - 80/90
	expected := (2.0/6.0 + (1 - 80.0/90.0)) / 2
	require.InDelta(t, expected, progression.LearningProgressionScore, 1e-9)
}

func TestScoreProgressionUsesWindow(t *testing.T) {
	history := make([]SubmissionFeatures, 0, 15)
	for i := 15; i > 0; i-- {
		history = append(history, SubmissionFeatures{ID: uint(i), LinesAdded: 10, CommitMessage: "Added a new feature"})
	}

	progression := ScoreProgression(history)
	require.InDelta(t, 1.0, progression.LearningProgressionScore, 1e-9)
	require.InDelta(t, 1.0, progression.ConsistencyScore, 1e-9)
	require.Empty(t, progression.Anomalies)
}

func TestConfidence(t *testing.T) {
	require.InDelta(t, 0.8, Confidence(RiskLow, 0), 1e-9)
	require.InDelta(t, 0.9, Confidence(RiskHigh, 0), 1e-9)
	require.InDelta(t, 0.9, Confidence(RiskMedium, 0.5), 1e-9)
	require.Equal(t, 1.0, Confidence(RiskHigh, 1.5))
}

func TestAnalyzeReportMap(t *testing.T) {
	report := Analyze(SubmissionFeatures{
		ID:            2,
		LinesAdded:    60,
		LinesDeleted:  5,
		FilesChanged:  []string{"calc.py"},
		CommitMessage: "Implement calculator loop",
	}, []SubmissionFeatures{{ID: 1, LinesAdded: 5, CommitMessage: "save"}})

	payload, err := report.Map()
	require.NoError(t, err)
	require.Equal(t, 0.6, payload["copilot_usage_probability"])
	require.Equal(t, true, payload["has_meaningful_message"])
	require.Contains(t, payload, "learning_anomalies")
	require.Contains(t, payload, "complexity_indicators")
	require.NotContains(t, payload, "Confidence")
	require.GreaterOrEqual(t, report.Confidence, 0.8)
}
