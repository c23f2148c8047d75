package heuristics

import (
	"encoding/json"
	"fmt"
)

// KindEnhanced tags heuristic-only analyses.
const KindEnhanced = "enhanced"

// Report is the complete heuristic assessment of one submission.
type Report struct {
	Features
	ToolDependency
	Progression
	Confidence float64 `json:"-"`
}

// Analyze runs extraction and scoring for the current submission against its history
// (newest first, not including the current submission).
func Analyze(current SubmissionFeatures, history []SubmissionFeatures) Report {
	features := Extract(current)
	tool := ScoreToolDependency(features, current.CommitMessage, current.FilesChanged)

	window := make([]SubmissionFeatures, 0, len(history)+1)
	window = append(window, current)
	window = append(window, history...)
	progression := ScoreProgression(window)

	return Report{
		Features:       features,
		ToolDependency: tool,
		Progression:    progression,
		Confidence:     Confidence(tool.Risk, progression.LearningProgressionScore),
	}
}

// Map flattens the report into a JSON object suitable for a JSON column.
func (r Report) Map() (map[string]interface{}, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal heuristic report: %w", err)
	}
	out := make(map[string]interface{})
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal heuristic report: %w", err)
	}
	return out, nil
}
