package models

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&Student{},
		&Assignment{},
		&Submission{},
		&Analysis{},
		&Quiz{},
		&QuizQuestion{},
		&QuizPDF{},
		&ActivityLog{},
	}
}
