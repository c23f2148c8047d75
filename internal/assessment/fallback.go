package assessment

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

const (
	// FallbackAnalysisMethod tags analyses produced without the provider.
	FallbackAnalysisMethod = "fallback_with_history"

	explanationRequired = "explanation_required"
	codeExplanation     = "code_explanation"
	unavailable         = "AI analysis unavailable"
	snippetLines        = 3
)

type questionTemplate struct {
	applies     func(code string) bool
	anchor      string
	text        string
	snippet     string
	difficulty  string
	objectives  []string
	explanation string
}

var fallbackTemplates = []questionTemplate{
	{
		applies:     func(code string) bool { return strings.Contains(code, "def ") },
		anchor:      "def ",
		text:        "What is the purpose of the main function in your code? Explain what it does when the program runs.",
		snippet:     "def calculator():\n    print(\"Simple Calculator\")",
		difficulty:  "easy",
		objectives:  []string{"function_understanding", "program_flow"},
		explanation: "Tests understanding of the main program function",
	},
	{
		applies:     func(code string) bool { return strings.Contains(code, "input(") },
		anchor:      "input(",
		text:        "How does your program handle user input? What happens if a user enters invalid input?",
		snippet:     "choice = input(\"Enter choice (1-4): \")\nnum1 = float(input(\"Enter first number: \"))",
		difficulty:  "medium",
		objectives:  []string{"input_handling", "error_handling"},
		explanation: "Tests understanding of input processing and validation",
	},
	{
		applies: func(code string) bool {
			return strings.Contains(code, "if ") || strings.Contains(code, "elif ")
		},
		anchor:      "if ",
		text:        "Explain the conditional logic in your code. What determines which operation is performed?",
		snippet:     "if choice == '1':\n    result = num1 + num2\nelif choice == '2':\n    result = num1 - num2",
		difficulty:  "medium",
		objectives:  []string{"conditional_logic", "control_flow"},
		explanation: "Tests understanding of if/elif conditional statements",
	},
	{
		applies: func(code string) bool {
			return strings.Contains(code, "if ") && strings.Contains(code, "== 0")
		},
		anchor:      "== 0",
		text:        "What error handling did you implement in your code? Why was this necessary?",
		snippet:     "if num2 == 0:\n    print(\"Error: Cannot divide by zero!\")",
		difficulty:  "medium",
		objectives:  []string{"error_handling", "defensive_programming"},
		explanation: "Tests understanding of error prevention and handling",
	},
}

// FallbackQuestions derives explanation questions from the constructs present in
// code. The organisation question is always included, so the result is never empty.
func FallbackQuestions(code, fileName string) []Question {
	lines := strings.Split(code, "\n")
	questions := make([]Question, 0, len(fallbackTemplates)+1)

	for _, tmpl := range fallbackTemplates {
		if !tmpl.applies(code) {
			continue
		}
		snippet := quoteLines(lines, tmpl.anchor)
		if snippet == "" {
			snippet = tmpl.snippet
		}
		questions = append(questions, Question{
			QuestionType:       codeExplanation,
			QuestionText:       tmpl.text,
			CodeSnippet:        snippet,
			Options:            []string{},
			CorrectAnswer:      explanationRequired,
			Difficulty:         tmpl.difficulty,
			LearningObjectives: append([]string(nil), tmpl.objectives...),
			Explanation:        tmpl.explanation,
		})
	}

	questions = append(questions, Question{
		QuestionType:       codeExplanation,
		QuestionText:       "How did you organize your code? What are the main components and how do they work together?",
		CodeSnippet:        fmt.Sprintf("File: %s\nLines: %d", fileName, len(lines)),
		Options:            []string{},
		CorrectAnswer:      explanationRequired,
		Difficulty:         "medium",
		LearningObjectives: []string{"code_organization", "program_structure"},
		Explanation:        "Tests understanding of overall code structure and organization",
	})
	return questions
}

// quoteLines returns up to snippetLines lines starting at the first line containing anchor.
func quoteLines(lines []string, anchor string) string {
	for i, line := range lines {
		if !strings.Contains(line, anchor) {
			continue
		}
		end := i + snippetLines
		if end > len(lines) {
			end = len(lines)
		}
		return strings.TrimRight(strings.Join(lines[i:end], "\n"), " \t\n")
	}
	return ""
}

// FallbackAnalysis is the neutral analysis stored when generation is unavailable.
// cause is recorded as a diagnostic when present.
func FallbackAnalysis(historyLength, timeSpanDays int, cause error, now time.Time) AnalysisResult {
	fields := map[string]interface{}{
		"historical_analysis": map[string]interface{}{
			"learning_trajectory": "unknown",
			"consistency_score":   0.5,
			"improvement_rate":    0.0,
			"pattern_anomalies":   []interface{}{unavailable},
			"time_based_analysis": map[string]interface{}{
				"regular_submissions":  true,
				"submission_frequency": "unknown",
				"quality_progression":  "unknown",
			},
		},
		"tool_dependency": map[string]interface{}{
			"ai_usage_probability":      0.0,
			"copilot_usage_probability": 0.0,
			"copy_paste_probability":    0.0,
			"historical_indicators":     []interface{}{unavailable},
			"consistency_analysis": map[string]interface{}{
				"style_consistency":     0.5,
				"knowledge_consistency": 0.5,
				"progress_consistency":  0.5,
			},
			"confidence": 0.0,
		},
		"learning_progression": map[string]interface{}{
			"overall_progression":    "unknown",
			"skill_development_rate": 0.0,
			"understanding_level":    "unknown",
			"learning_gaps":          []interface{}{unavailable},
			"strengths":              []interface{}{},
			"areas_for_improvement":  []interface{}{},
		},
		"authentic_learning_assessment": map[string]interface{}{
			"authentic_learning_score": 0.5,
			"genuine_understanding":    true,
			"gradual_improvement":      true,
			"consistent_approach":      true,
			"red_flags":                []interface{}{},
			"green_flags":              []interface{}{},
		},
		"intervention_recommendations": map[string]interface{}{
			"intervention_needed":      false,
			"intervention_type":        "none",
			"specific_recommendations": []interface{}{"AI analysis service unavailable"},
			"priority":                 "low",
		},
		"confidence_score":      0.0,
		"ai_analysis_timestamp": now.UTC().Format(time.RFC3339),
		"analysis_method":       FallbackAnalysisMethod,
		"error":                 "AI analysis failed",
		"history_context": map[string]interface{}{
			"submissions_analyzed": historyLength + 1,
			"time_span_days":       timeSpanDays,
		},
	}
	if cause != nil {
		fields["error_detail"] = cause.Error()
	}
	return AnalysisResult{Fields: fields, Confidence: 0}
}

var (
	textPolicy = bluemonday.StrictPolicy()

	// markupTag matches formatting and script tags a model may wrap around prose.
	// Any other angle bracket is treated as text, so List<String> or a<b survive.
	markupTag = regexp.MustCompile(`(?i)</?(?:a|b|i|u|s|em|strong|p|br|hr|div|span|script|style|iframe|img|code|pre|ul|ol|li|h[1-6]|sub|sup|small|mark|font|table|tr|td|th)(?:\s+[a-z-]+\s*=\s*(?:"[^"]*"|'[^']*'))*\s*/?>`)
)

// Sanitize strips markup from generated question text. Code snippets are left as-is.
// The correct answer goes through the same cleaning as the options it must match.
func Sanitize(questions []Question) []Question {
	for i := range questions {
		questions[i].QuestionText = plainText(questions[i].QuestionText)
		questions[i].Explanation = plainText(questions[i].Explanation)
		questions[i].CorrectAnswer = plainText(questions[i].CorrectAnswer)
		for j, option := range questions[i].Options {
			questions[i].Options[j] = plainText(option)
		}
	}
	return questions
}

// SanitizeSegmented strips markup from bulk quiz questions.
func SanitizeSegmented(questions []SegmentedQuestion) []SegmentedQuestion {
	for i := range questions {
		questions[i].Question = plainText(questions[i].Question)
	}
	return questions
}

// plainText drops markup tags but keeps the text readable. Brackets outside a
// recognised tag are escaped before the policy runs and every entity is undone
// for storage.
func plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(escapeStrayBrackets(s))))
}

func escapeStrayBrackets(s string) string {
	var b strings.Builder
	last := 0
	for _, loc := range markupTag.FindAllStringIndex(s, -1) {
		b.WriteString(escapeBrackets(s[last:loc[0]]))
		b.WriteString(s[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(escapeBrackets(s[last:]))
	return b.String()
}

func escapeBrackets(s string) string {
	return strings.NewReplacer("<", "&lt;", ">", "&gt;").Replace(s)
}
