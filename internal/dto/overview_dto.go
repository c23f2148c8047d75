package dto

import "time"

// StudentOverview summarises the roster.
type StudentOverview struct {
	Total           int64 `json:"total"`
	Approved        int64 `json:"approved"`
	PendingApproval int64 `json:"pending_approval"`
	Active          int64 `json:"active"`
}

// WeeklySubmissionPoint counts submissions received in one ISO week.
type WeeklySubmissionPoint struct {
	WeekStart   time.Time `json:"week_start"`
	Submissions int64     `json:"submissions"`
}

// AdminOverviewResponse is the admin dashboard summary.
type AdminOverviewResponse struct {
	Students                StudentOverview         `json:"students"`
	SubmissionsBySource     map[string]int64        `json:"submissions_by_source"`
	SubmissionsByAssignment map[string]int64        `json:"submissions_by_assignment"`
	AnalysesBySource        map[string]int64        `json:"analyses_by_source"`
	AverageConfidence       float64                 `json:"average_confidence"`
	QuizzesByStatus         map[string]int64        `json:"quizzes_by_status"`
	QuizFallbackRate        float64                 `json:"quiz_fallback_rate"`
	AverageQuizScore        float64                 `json:"average_quiz_score"`
	WeeklySubmissions       []WeeklySubmissionPoint `json:"weekly_submissions"`
	GeneratedAt             time.Time               `json:"generated_at"`
	CacheHit                bool                    `json:"cache_hit"`
}
