package assessment

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/erikwilensky/codecheck/pkg/ai"
)

// ErrResponseParse indicates provider output that could not be turned into a result.
var ErrResponseParse = errors.New("unparseable generation response")

const (
	// MinQuestions is the size a per-submission quiz is topped up to.
	MinQuestions = 5
	// MaxQuestions caps the questions kept from one response.
	MaxQuestions = 7
	// MaxSegmentedQuestions caps the questions kept from a segmented bulk response.
	MaxSegmentedQuestions = 5

	snippetMarker = "Code snippet:"
	focusLabel    = "Comprehension"
)

var analysisSections = []string{
	"historical_analysis",
	"tool_dependency",
	"learning_progression",
	"authentic_learning_assessment",
	"intervention_recommendations",
}

// AnalysisResult is a decoded analysis record.
type AnalysisResult struct {
	Fields     map[string]interface{}
	Confidence float64
}

// Question is one per-submission quiz question.
type Question struct {
	QuestionType       string   `json:"question_type"`
	QuestionText       string   `json:"question_text"`
	CodeSnippet        string   `json:"code_snippet"`
	Options            []string `json:"options"`
	CorrectAnswer      string   `json:"correct_answer"`
	Difficulty         string   `json:"difficulty"`
	LearningObjectives []string `json:"learning_objectives"`
	Explanation        string   `json:"explanation"`
}

// SegmentedQuestion is one question extracted from free-form bulk quiz text.
type SegmentedQuestion struct {
	Question    string `json:"question"`
	CodeSnippet string `json:"code_snippet"`
	Focus       string `json:"focus"`
}

var questionArraySchema = map[string]interface{}{
	"type": "array",
	"items": map[string]interface{}{
		"type": "object",
		"required": []interface{}{
			"question_type", "question_text", "code_snippet", "options",
			"correct_answer", "difficulty", "learning_objectives", "explanation",
		},
		"properties": map[string]interface{}{
			"question_type":       map[string]interface{}{"type": "string"},
			"question_text":       map[string]interface{}{"type": "string", "minLength": 1},
			"code_snippet":        map[string]interface{}{"type": "string"},
			"options":             map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"correct_answer":      map[string]interface{}{"type": "string"},
			"difficulty":          map[string]interface{}{"type": "string"},
			"learning_objectives": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"explanation":         map[string]interface{}{"type": "string"},
		},
	},
}

var (
	questionStart = regexp.MustCompile(`(?m)^\d+[.)]\s+`)
	fencePattern  = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\n?(.*?)\\s*```$")
)

// LooksLikeProviderError reports whether raw output reads like an error message rather
// than content. Anything that is not JSON-shaped and mentions "error" counts.
func LooksLikeProviderError(raw string) bool {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "Error") || strings.HasPrefix(text, "Internal") {
		return true
	}
	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
		return false
	}
	return strings.Contains(strings.ToLower(text), "error")
}

// ParseAnalysis decodes a generated analysis object.
func ParseAnalysis(raw string) (AnalysisResult, error) {
	text := stripCodeFence(raw)
	if LooksLikeProviderError(text) {
		return AnalysisResult{}, fmt.Errorf("%w: provider returned an error message: %s", ErrResponseParse, preview(text))
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return AnalysisResult{}, fmt.Errorf("%w: analysis is not a JSON object: %v", ErrResponseParse, err)
	}
	if fields == nil {
		return AnalysisResult{}, fmt.Errorf("%w: analysis is empty", ErrResponseParse)
	}

	found := 0
	for _, section := range analysisSections {
		value, ok := fields[section]
		if !ok {
			continue
		}
		if _, isObject := value.(map[string]interface{}); !isObject {
			return AnalysisResult{}, fmt.Errorf("%w: %s is not an object", ErrResponseParse, section)
		}
		found++
	}
	if found == 0 {
		return AnalysisResult{}, fmt.Errorf("%w: no analysis sections present", ErrResponseParse)
	}

	confidence := 0.0
	if value, ok := fields["confidence_score"].(float64); ok {
		confidence = clamp01(value)
	}
	fields["confidence_score"] = confidence

	return AnalysisResult{Fields: fields, Confidence: confidence}, nil
}

// ParseQuestions decodes a generated question array, keeping at most MaxQuestions.
func ParseQuestions(raw string) ([]Question, error) {
	text := stripCodeFence(raw)
	if LooksLikeProviderError(text) {
		return nil, fmt.Errorf("%w: provider returned an error message: %s", ErrResponseParse, preview(text))
	}

	var value interface{}
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, fmt.Errorf("%w: questions are not valid JSON: %v", ErrResponseParse, err)
	}
	if _, ok := value.([]interface{}); !ok {
		return nil, fmt.Errorf("%w: questions are not a JSON array", ErrResponseParse)
	}

	schema, err := ai.CompileSchema("quiz_questions", questionArraySchema)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseParse, err)
	}

	var questions []Question
	if err := json.Unmarshal([]byte(text), &questions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseParse, err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no questions returned", ErrResponseParse)
	}
	if len(questions) > MaxQuestions {
		questions = questions[:MaxQuestions]
	}

	for i := range questions {
		questions[i].Difficulty = normalizeDifficulty(questions[i].Difficulty)
		if questions[i].Options == nil {
			questions[i].Options = []string{}
		}
		if questions[i].LearningObjectives == nil {
			questions[i].LearningObjectives = []string{}
		}
	}
	return questions, nil
}

// PadQuestions tops questions up to MinQuestions from fallback, skipping any fallback
// question whose text is already present.
func PadQuestions(questions, fallback []Question) []Question {
	if len(questions) >= MinQuestions {
		return questions
	}

	seen := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		seen[strings.ToLower(strings.TrimSpace(q.QuestionText))] = struct{}{}
	}
	for _, q := range fallback {
		if len(questions) >= MinQuestions {
			break
		}
		key := strings.ToLower(strings.TrimSpace(q.QuestionText))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		questions = append(questions, q)
	}
	return questions
}

// ParseSegmented extracts numbered question and snippet pairs from free-form text.
// Entries without a "Code snippet:" marker are dropped.
func ParseSegmented(text string) []SegmentedQuestion {
	text = strings.TrimSpace(text)
	starts := questionStart.FindAllStringIndex(text, -1)

	questions := make([]SegmentedQuestion, 0, MaxSegmentedQuestions)
	for i, loc := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		entry := text[loc[1]:end]

		marker := strings.Index(entry, snippetMarker)
		if marker < 0 {
			continue
		}
		question := strings.TrimSpace(entry[:marker])
		snippet := stripCodeFence(entry[marker+len(snippetMarker):])
		if question == "" {
			continue
		}

		questions = append(questions, SegmentedQuestion{
			Question:    question,
			CodeSnippet: snippet,
			Focus:       focusLabel,
		})
		if len(questions) == MaxSegmentedQuestions {
			break
		}
	}
	return questions
}

func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if match := fencePattern.FindStringSubmatch(text); match != nil {
		return strings.TrimSpace(match[1])
	}
	return text
}

func normalizeDifficulty(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "easy":
		return "easy"
	case "hard":
		return "hard"
	default:
		return "medium"
	}
}

func clamp01(value float64) float64 {
	if math.IsNaN(value) {
		return 0
	}
	return math.Max(0, math.Min(1, value))
}

func preview(text string) string {
	const limit = 120
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
