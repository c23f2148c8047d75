package heuristics

import (
	"fmt"
	"math"
	"strings"
)

// Risk tiers for tool dependency.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// HistoryWindow is the number of most recent submissions considered for progression.
const HistoryWindow = 10

var descriptiveVerbs = []string{
	"implement", "add", "create", "update", "fix", "refactor", "improve",
	"enhance", "optimize", "resolve", "address", "handle", "support",
}

// ToolDependency holds the probability-like indicators of tool-generated work.
type ToolDependency struct {
	AIGenerationProbability float64 `json:"ai_generation_probability"`
	CopilotUsageProbability float64 `json:"copilot_usage_probability"`
	CopyPasteProbability    float64 `json:"copy_paste_probability"`
	Risk                    string  `json:"tool_dependency_risk"`
}

// Progression summarises a student's recent learning trajectory.
type Progression struct {
	LearningProgressionScore float64  `json:"learning_progression_score"`
	SkillDevelopmentRate     float64  `json:"skill_development_rate"`
	ConsistencyScore         float64  `json:"consistency_score"`
	SuddenImprovement        bool     `json:"sudden_improvement_detected"`
	Anomalies                []string `json:"learning_anomalies"`
}

// ScoreToolDependency scores the current submission.
func ScoreToolDependency(f Features, message string, files []string) ToolDependency {
	result := ToolDependency{
		AIGenerationProbability: MessageAIProbability(message),
		CopilotUsageProbability: VolumeProbability(f.LinesAdded, f.LinesDeleted),
		CopyPasteProbability:    FileOrganizationProbability(files),
	}
	mean := round((result.AIGenerationProbability + result.CopilotUsageProbability + result.CopyPasteProbability) / 3)
	result.Risk = RiskTier(mean)
	return result
}

// MessageAIProbability rates how "overly descriptive" a commit message is.
func MessageAIProbability(message string) float64 {
	if strings.TrimSpace(message) == "" {
		return 0
	}
	lower := strings.ToLower(message)
	score := 0.0
	for _, verb := range descriptiveVerbs {
		if strings.Contains(lower, verb) {
			score += 0.2
		}
	}
	if len(strings.Fields(message)) > 5 && strings.HasSuffix(strings.TrimSpace(message), ".") {
		score += 0.3
	}
	return math.Min(round(score), 1.0)
}

// VolumeProbability flags large one-directional changes.
func VolumeProbability(added, deleted int) float64 {
	switch {
	case added > 50 && deleted < 10:
		return 0.6
	case absInt(added-deleted) < 5:
		return 0.2
	default:
		return 0.4
	}
}

// FileOrganizationProbability scores the shape of the changed-file list.
func FileOrganizationProbability(files []string) float64 {
	switch n := len(files); {
	case n == 0:
		return 0.0
	case n > 3:
		return 0.5
	case n == 1:
		return 0.1
	default:
		return 0.3
	}
}

// RiskTier buckets a mean probability.
func RiskTier(mean float64) string {
	switch {
	case mean < 0.4:
		return RiskLow
	case mean < 0.7:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ScoreProgression computes trajectory indicators over history ordered newest first.
// Only the first HistoryWindow entries are used.
func ScoreProgression(history []SubmissionFeatures) Progression {
	if len(history) > HistoryWindow {
		history = history[:HistoryWindow]
	}
	if len(history) < 2 {
		return Progression{Anomalies: []string{}}
	}

	added := make([]int, len(history))
	lengths := make([]int, len(history))
	meaningful := 0
	for i, item := range history {
		added[i] = item.LinesAdded
		lengths[i] = len(item.CommitMessage)
		if HasMeaningfulMessage(item.CommitMessage) {
			meaningful++
		}
	}

	volume := spreadConsistency(added)
	return Progression{
		LearningProgressionScore: (float64(meaningful)/float64(len(history)) + volume) / 2,
		SkillDevelopmentRate:     skillDevelopmentRate(history),
		ConsistencyScore:         (spreadConsistency(lengths) + volume) / 2,
		SuddenImprovement:        suddenImprovement(history),
		Anomalies:                anomalies(history),
	}
}

// Confidence derives the heuristic analysis confidence.
func Confidence(risk string, progressionScore float64) float64 {
	confidence := 0.8
	switch risk {
	case RiskHigh:
		confidence += 0.1
	case RiskMedium:
		confidence += 0.05
	}
	confidence += progressionScore * 0.1
	return math.Min(round(confidence), 1.0)
}

func skillDevelopmentRate(history []SubmissionFeatures) float64 {
	if len(history) < 3 {
		return 0
	}
	recent := countMeaningful(history[:3])
	older := countMeaningful(history[len(history)-3:])
	rate := float64(recent-older) / 3
	return math.Max(0, math.Min(rate, 1))
}

func suddenImprovement(history []SubmissionFeatures) bool {
	if len(history) < 3 {
		return false
	}
	newest := history[0]
	oldest := history[len(history)-1]
	return HasMeaningfulMessage(newest.CommitMessage) &&
		!HasMeaningfulMessage(oldest.CommitMessage) &&
		newest.LinesAdded > oldest.LinesAdded*2
}

func anomalies(history []SubmissionFeatures) []string {
	found := []string{}
	for i := 1; i < len(history); i++ {
		prev, curr := history[i-1], history[i]
		if HasMeaningfulMessage(prev.CommitMessage) != HasMeaningfulMessage(curr.CommitMessage) {
			found = append(found, fmt.Sprintf("Inconsistent commit message quality at submission %d", curr.ID))
		}
		if absInt(curr.LinesAdded-prev.LinesAdded) > 50 {
			found = append(found, fmt.Sprintf("Unusual code volume change at submission %d", curr.ID))
		}
	}
	return found
}

func countMeaningful(items []SubmissionFeatures) int {
	count := 0
	for _, item := range items {
		if HasMeaningfulMessage(item.CommitMessage) {
			count++
		}
	}
	return count
}

// spreadConsistency returns 1 - (max-min)/max, or 0 when max is not positive.
func spreadConsistency(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= 0 {
		return 0
	}
	return 1 - float64(hi-lo)/float64(hi)
}

func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
