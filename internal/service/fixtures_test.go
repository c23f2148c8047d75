package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/models"
	"github.com/erikwilensky/codecheck/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// fixture bundles a fresh in-memory database and its repositories.
type fixture struct {
	db          *gorm.DB
	students    repository.StudentRepository
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	analyses    repository.AnalysisRepository
	quizzes     repository.QuizRepository
	quizPDFs    repository.QuizPDFRepository
	activity    repository.ActivityLogRepository
	overview    repository.OverviewRepository
	events      *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	return &fixture{
		db:          db,
		students:    repository.NewStudentRepository(db),
		assignments: repository.NewAssignmentRepository(db),
		submissions: repository.NewSubmissionRepository(db),
		analyses:    repository.NewAnalysisRepository(db),
		quizzes:     repository.NewQuizRepository(db),
		quizPDFs:    repository.NewQuizPDFRepository(db),
		activity:    repository.NewActivityLogRepository(db),
		overview:    repository.NewOverviewRepository(db),
		events:      &recordingPublisher{},
	}
}

func (f *fixture) history() SubmissionHistory {
	return NewSubmissionHistory(f.submissions, nil, time.Minute, testLogger())
}

func (f *fixture) student(t *testing.T, code string) models.Student {
	t.Helper()
	student := models.Student{StudentCode: code, Name: "Student " + code, Block: models.BlockFour, IsActive: true, IsApproved: true}
	require.NoError(t, f.db.Create(&student).Error)
	return student
}

func (f *fixture) submission(t *testing.T, student models.Student, assignment, code string, at time.Time) models.Submission {
	t.Helper()
	submission := models.Submission{
		StudentID:      student.ID,
		AssignmentName: assignment,
		FileName:       assignment + ".py",
		FileContent:    code,
		FileSize:       int64(len(code)),
		Source:         models.SubmissionSourceUpload,
		CreatedAt:      at,
	}
	require.NoError(t, f.db.Create(&submission).Error)
	return submission
}

func (f *fixture) activityService() ActivityService {
	return NewActivityService(f.activity, testLogger())
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []dto.AssessmentEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event dto.AssessmentEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.Type)
	}
	return types
}

const calculatorSource = `def calculator():
    choice = input("Enter choice: ")
    num1 = float(input("First: "))
    num2 = float(input("Second: "))
    if choice == '4':
        if num2 == 0:
            print("Cannot divide by zero")
        else:
            print(num1 / num2)
`

const analysisJSON = `{
  "historical_analysis": {"learning_trajectory": "gradual", "pattern_anomalies": []},
  "learning_progression": {"skill_development": "steady"},
  "confidence_score": 0.8
}`
