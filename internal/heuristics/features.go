package heuristics

import (
	"path/filepath"
	"strings"
	"unicode"
)

const (
	largeChangeThreshold  = 100
	manyFilesThreshold    = 5
	balancedThreshold     = 10
	significantThreshold  = 50
	minMeaningfulMsgChars = 5
)

var trivialMessages = map[string]struct{}{
	"update": {},
	"fix":    {},
	"wip":    {},
	"commit": {},
	"save":   {},
	"test":   {},
}

// SubmissionFeatures is the raw, optional metadata of one submission.
type SubmissionFeatures struct {
	ID            uint
	LinesAdded    int
	LinesDeleted  int
	FilesChanged  []string
	CommitMessage string
}

// Complexity holds the boolean change-shape flags.
type Complexity struct {
	LargeChange         bool `json:"large_change"`
	ManyFiles           bool `json:"many_files"`
	BalancedChanges     bool `json:"balanced_changes"`
	SignificantAddition bool `json:"significant_addition"`
	SignificantDeletion bool `json:"significant_deletion"`
}

// Features is the fixed-shape output of Extract.
type Features struct {
	FilesChanged         int            `json:"files_changed"`
	LinesAdded           int            `json:"lines_added"`
	LinesDeleted         int            `json:"lines_deleted"`
	NetLines             int            `json:"net_lines"`
	MessageLength        int            `json:"commit_message_length"`
	HasMeaningfulMessage bool           `json:"has_meaningful_message"`
	FileTypes            map[string]int `json:"file_types"`
	Complexity           Complexity     `json:"complexity_indicators"`
}

// Extract computes the deterministic indicators for a single submission.
func Extract(in SubmissionFeatures) Features {
	return Features{
		FilesChanged:         len(in.FilesChanged),
		LinesAdded:           in.LinesAdded,
		LinesDeleted:         in.LinesDeleted,
		NetLines:             in.LinesAdded - in.LinesDeleted,
		MessageLength:        len(in.CommitMessage),
		HasMeaningfulMessage: HasMeaningfulMessage(in.CommitMessage),
		FileTypes:            FileTypes(in.FilesChanged),
		Complexity:           complexityOf(in),
	}
}

// HasMeaningfulMessage rejects the trivial one-word messages, anything of five
// characters or fewer, and purely numeric messages.
func HasMeaningfulMessage(message string) bool {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return false
	}
	if _, trivial := trivialMessages[strings.ToLower(trimmed)]; trivial {
		return false
	}
	if len(trimmed) <= minMeaningfulMsgChars {
		return false
	}
	return !isNumeric(trimmed)
}

// FileTypes returns a histogram of file extensions (without the dot).
func FileTypes(files []string) map[string]int {
	histogram := make(map[string]int, len(files))
	for _, file := range files {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(file)), ".")
		if ext == "" {
			ext = "no_extension"
		}
		histogram[ext]++
	}
	return histogram
}

func complexityOf(in SubmissionFeatures) Complexity {
	return Complexity{
		LargeChange:         in.LinesAdded > largeChangeThreshold || in.LinesDeleted > largeChangeThreshold,
		ManyFiles:           len(in.FilesChanged) > manyFilesThreshold,
		BalancedChanges:     absInt(in.LinesAdded-in.LinesDeleted) < balancedThreshold,
		SignificantAddition: in.LinesAdded > significantThreshold,
		SignificantDeletion: in.LinesDeleted > significantThreshold,
	}
}

func isNumeric(value string) bool {
	for _, r := range value {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
