package prompt

import (
	"bytes"
	"fmt"
	"text/template"
)

// System prompts.
const (
	AnalysisSystem = "You are an expert educational assessment system that analyzes code submission history to detect authentic learning vs tool dependency. Focus on patterns, consistency, and gradual progression over time."

	SimplifiedAnalysisSystem = "You assess student code submissions. Output JSON only."

	QuestionSystem = "You are an expert programming instructor creating a quiz to test a student's true understanding of their code. Generate questions based on the provided code and analysis. Output JSON only."

	SimplifiedQuestionSystem = "You are a programming instructor. Generate specific quiz questions about the provided code. Output JSON only."

	BulkQuizSystem = "You are an expert programming instructor creating quiz questions to verify that beginner Python students actually wrote and understand their own code. Return ONLY 5 numbered questions (1-5) as plain text with no answer spaces or explanations."
)

// Structured call contract for the bulk quiz.
const (
	BulkQuizFunctionName        = "create_quiz"
	BulkQuizFunctionDescription = "Return a block of text containing 5 quiz questions."
	BulkQuizTextField           = "quiz_text"
)

// BulkQuizParameters is the JSON schema of the create_quiz arguments.
func BulkQuizParameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			BulkQuizTextField: map[string]interface{}{
				"type":        "string",
				"description": "A block of text containing 5 numbered questions based on the provided code.",
			},
		},
		"required": []interface{}{BulkQuizTextField},
	}
}

var templateFuncs = template.FuncMap{"inc": func(i int) int { return i + 1 }}

var analysisTemplate = template.Must(template.New("analysis").Funcs(templateFuncs).Parse(`Analyze this code submission with its complete historical context for learning assessment.

CURRENT SUBMISSION:
Assignment: {{.Current.AssignmentName}}
File: {{.Current.FileName}}
File Size: {{.Current.FileSize}} bytes
Date: {{.Current.CreatedAt}}
` + "```" + `
{{.Current.Content}}
` + "```" + `

SUBMISSION HISTORY (Last {{len .History}} submissions):
{{range $i, $s := .History}}Submission {{inc $i}} ({{$s.CreatedAt}}):
- Assignment: {{$s.AssignmentName}}
- File: {{$s.FileName}}
- Size: {{$s.FileSize}} bytes
{{end}}
{{- if .Heuristics}}
HEURISTIC INDICATORS:
{{range $k, $v := .Heuristics}}- {{$k}}: {{$v}}
{{end}}{{end}}
ANALYSIS REQUIREMENTS:
1. Learning progression: compare with the historical pattern, gradual vs sudden improvement, plateaus or regressions.
2. Tool dependency: patterns across submissions that suggest tool usage, sudden changes in sophistication.
3. Knowledge consistency: gaps between advanced constructs and foundational knowledge, copy-paste patterns.
4. Authentic learning indicators: gradual skill development, consistent problem-solving approach.

HISTORICAL PATTERN:
- Time span: {{.Parameters.TimeSpanDays}} days
- Total submissions: {{.Parameters.TotalSubmissions}}

Return your analysis as a JSON object with this structure:
{
  "historical_analysis": {
    "learning_trajectory": "gradual|sudden|plateau|regression",
    "consistency_score": 0.0,
    "improvement_rate": 0.0,
    "pattern_anomalies": [],
    "time_based_analysis": {
      "regular_submissions": true,
      "submission_frequency": "consistent|irregular",
      "quality_progression": "steady|volatile|declining"
    }
  },
  "tool_dependency": {
    "ai_usage_probability": 0.0,
    "copilot_usage_probability": 0.0,
    "copy_paste_probability": 0.0,
    "historical_indicators": [],
    "consistency_analysis": {
      "style_consistency": 0.0,
      "knowledge_consistency": 0.0,
      "progress_consistency": 0.0
    },
    "confidence": 0.0
  },
  "learning_progression": {
    "overall_progression": "positive|negative|neutral",
    "skill_development_rate": 0.0,
    "understanding_level": "beginner|intermediate|advanced",
    "learning_gaps": [],
    "strengths": [],
    "areas_for_improvement": []
  },
  "authentic_learning_assessment": {
    "authentic_learning_score": 0.0,
    "genuine_understanding": true,
    "gradual_improvement": true,
    "consistent_approach": true,
    "red_flags": [],
    "green_flags": []
  },
  "intervention_recommendations": {
    "intervention_needed": false,
    "intervention_type": "none|understanding_check|foundational_review|advanced_challenge",
    "specific_recommendations": [],
    "priority": "low|medium|high"
  },
  "confidence_score": 0.0
}
`))

var simplifiedAnalysisTemplate = template.Must(template.New("analysis_simple").Parse(`Assess whether this {{.Current.AssignmentName}} submission ({{.Current.FileName}}) looks hand-written or tool-generated. The student has {{len .History}} earlier submissions over {{.Parameters.TimeSpanDays}} days.

Return one JSON object with the keys historical_analysis, tool_dependency, learning_progression, authentic_learning_assessment, intervention_recommendations (objects) and confidence_score (number between 0 and 1).
`))

var questionTemplate = template.Must(template.New("questions").Parse(`You are creating a quiz to verify a student's understanding of their own code submission. Your goal is to determine if they genuinely wrote and understand the code.

CODE SUBMISSION:
- Assignment: {{.AssignmentName}}
- File Name: {{.FileName}}
` + "```" + `
{{.Code}}
` + "```" + `

HISTORICAL CONTEXT:
{{.HistoryDigest}}
ANALYSIS OF THIS SUBMISSION:
- Learning Trajectory: {{.Trajectory}}
- Understanding Level: {{.UnderstandingLevel}}
- Suspected AI/Tool Usage: {{.SuspectedToolUse}}

Generate exactly 5-7 questions covering:
1. Logic flow (1-2): conditions, loops, boolean logic.
2. Functions (1-2): purpose, parameters, return values.
3. Statements and variables (1-2): a specific line or variable.
4. What if (1-2): what happens if a specific line changes.
5. Technique (1): why a particular approach was used.

Return ONLY a valid JSON array of question objects:
[
  {
    "question_type": "multiple_choice|code_explanation|debugging|problem_solving",
    "question_text": "Question text here",
    "code_snippet": "A relevant, short code snippet from the file.",
    "options": ["Option A", "Option B", "Option C", "Option D"],
    "correct_answer": "Correct answer or an explanation for open questions.",
    "difficulty": "easy|medium|hard",
    "learning_objectives": ["objective1", "objective2"],
    "explanation": "What concept this question tests."
  }
]
`))

var simplifiedQuestionTemplate = template.Must(template.New("questions_simple").Parse(`Generate 5 specific quiz questions about this {{.AssignmentName}} code:

{{.Code}}

Return a JSON array. Each item has question_type, question_text, code_snippet, options, correct_answer, difficulty, learning_objectives and explanation.
`))

var bulkQuizTemplate = template.Must(template.New("bulk").Parse(`Your task is to read the code below and write 5 thoughtful quiz questions that test the student's understanding of their own implementation of {{.Assignment}}.

Guidelines:

Each question must refer directly to a specific part of the code and include a short, relevant code snippet (max 6 lines) to illustrate what it asks about.

Format: First the question, then on the next line write:
Code snippet:
followed by the snippet itself, on a separate indented line.

Focus on comprehension, reasoning, and application, not memorization.
Do NOT ask generic questions that could apply to any code. Base all questions on the actual code you see.
Write the questions as plain numbered text (1-5). No answers, no blanks, no explanations.

Here is the student's code:
{{.Code}}
`))

// AnalysisPrompt renders the primary analysis prompt.
func AnalysisPrompt(ctx AnalysisContext) (string, error) {
	return render(analysisTemplate, ctx)
}

// SimplifiedAnalysisPrompt renders the shorter prompt used on the second attempt.
func SimplifiedAnalysisPrompt(ctx AnalysisContext) (string, error) {
	return render(simplifiedAnalysisTemplate, ctx)
}

// QuestionPrompt renders the primary per-submission question prompt.
func QuestionPrompt(qc QuizContext) (string, error) {
	return render(questionTemplate, qc)
}

// SimplifiedQuestionPrompt renders the shorter question prompt used on the second attempt.
func SimplifiedQuestionPrompt(qc QuizContext) (string, error) {
	return render(simplifiedQuestionTemplate, qc)
}

// BulkQuizPrompt renders the user prompt of the structured bulk quiz call.
func BulkQuizPrompt(assignment, code string) (string, error) {
	return render(bulkQuizTemplate, struct {
		Assignment string
		Code       string
	}{Assignment: assignment, Code: Truncate(code, MaxQuizCodeChars)})
}

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
