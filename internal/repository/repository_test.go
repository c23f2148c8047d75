package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/erikwilensky/codecheck/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedStudent(t *testing.T, db *gorm.DB, code string, block int) models.Student {
	t.Helper()
	student := models.Student{StudentCode: code, Name: "Student " + code, Block: block, IsActive: true}
	require.NoError(t, db.Create(&student).Error)
	return student
}

func TestSubmissionSupersedeKeepsOneRowPerPair(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubmissionRepository(db)
	student := seedStudent(t, db, "S1", models.BlockFour)
	ctx := context.Background()

	first := models.Submission{StudentID: student.ID, AssignmentName: "calculator", FileName: "v1.py", FileContent: "print(1)", FileSize: 8}
	require.NoError(t, repo.Supersede(ctx, &first))

	second := models.Submission{StudentID: student.ID, AssignmentName: "calculator", FileName: "v2.py", FileContent: "print(2)", FileSize: 8}
	require.NoError(t, repo.Supersede(ctx, &second))

	other := models.Submission{StudentID: student.ID, AssignmentName: "voting", FileName: "vote.py", FileContent: "x", FileSize: 1}
	require.NoError(t, repo.Supersede(ctx, &other))

	submissions, err := repo.ListByStudent(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, submissions, 2)

	var count int64
	require.NoError(t, db.Model(&models.Submission{}).Where("student_id = ? AND assignment_name = ?", student.ID, "calculator").Count(&count).Error)
	require.Equal(t, int64(1), count)

	stored, err := repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, "v2.py", stored.FileName)
	require.Equal(t, "S1", stored.Student.StudentCode)

	_, err = repo.GetByID(ctx, first.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSubmissionSupersedeConcurrentWriters(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubmissionRepository(db)
	student := seedStudent(t, db, "S2", models.BlockSix)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			submission := models.Submission{StudentID: student.ID, AssignmentName: "race", FileName: fmt.Sprintf("f%d.py", i), FileContent: "x", FileSize: 1}
			errs <- repo.Supersede(context.Background(), &submission)
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		}
	}
	require.Positive(t, succeeded)

	var count int64
	require.NoError(t, db.Model(&models.Submission{}).Where("student_id = ?", student.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestListRecentByStudentOrdersAndExcludes(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubmissionRepository(db)
	student := seedStudent(t, db, "S3", models.BlockFour)
	base := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

	var ids []uint
	for i := 0; i < 4; i++ {
		submission := models.Submission{
			StudentID:      student.ID,
			AssignmentName: fmt.Sprintf("a%d", i),
			FileName:       "f.py",
			FileContent:    "content",
			FileSize:       7,
			CreatedAt:      base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, db.Create(&submission).Error)
		ids = append(ids, submission.ID)
	}

	recent, err := repo.ListRecentByStudent(context.Background(), student.ID, ids[3], 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "a2", recent[0].AssignmentName)
	require.Equal(t, "a1", recent[1].AssignmentName)
	require.Empty(t, recent[0].FileContent)
}

func TestListForAssignment(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubmissionRepository(db)
	a := seedStudent(t, db, "A", models.BlockFour)
	b := seedStudent(t, db, "B", models.BlockFour)
	c := seedStudent(t, db, "C", models.BlockSix)

	for _, student := range []models.Student{a, b, c} {
		submission := models.Submission{StudentID: student.ID, AssignmentName: "calculator", FileName: "c.py", FileContent: "code " + student.StudentCode, FileSize: 6}
		require.NoError(t, repo.Supersede(context.Background(), &submission))
	}

	submissions, err := repo.ListForAssignment(context.Background(), "calculator", []uint{a.ID, c.ID})
	require.NoError(t, err)
	require.Len(t, submissions, 2)
	require.Equal(t, "A", submissions[0].Student.StudentCode)
	require.Equal(t, "code C", submissions[1].FileContent)

	none, err := repo.ListForAssignment(context.Background(), "calculator", nil)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestQuizFinalizeCountMatchesQuestions(t *testing.T) {
	for _, n := range []int{0, 5, 7} {
		t.Run(fmt.Sprintf("%d questions", n), func(t *testing.T) {
			db := newTestDB(t)
			repo := NewQuizRepository(db)
			ctx := context.Background()

			quiz := models.Quiz{StudentID: 1, SubmissionID: 1, Kind: models.QuizKindGenerated, Source: models.QuizSourceFallback, Status: models.QuizStatusGenerated}
			require.NoError(t, repo.Create(ctx, &quiz))
			require.Zero(t, quiz.TotalQuestions)

			questions := make([]models.QuizQuestion, 0, n)
			for i := 0; i < n; i++ {
				questions = append(questions, models.QuizQuestion{QuestionType: "code_explanation", QuestionText: fmt.Sprintf("Q%d", i), Difficulty: "medium"})
			}

			total, err := repo.AddQuestionsAndFinalize(ctx, quiz.ID, questions)
			require.NoError(t, err)
			require.Equal(t, n, total)

			stored, err := repo.GetByID(ctx, quiz.ID)
			require.NoError(t, err)
			require.Equal(t, n, stored.TotalQuestions)
			require.Len(t, stored.Questions, n)
		})
	}
}

func TestQuizRecordAnswerScores(t *testing.T) {
	db := newTestDB(t)
	repo := NewQuizRepository(db)
	ctx := context.Background()

	quiz := models.Quiz{StudentID: 1, SubmissionID: 1, Kind: models.QuizKindGenerated, Source: models.QuizSourceProvider, Status: models.QuizStatusGenerated}
	require.NoError(t, repo.Create(ctx, &quiz))
	_, err := repo.AddQuestionsAndFinalize(ctx, quiz.ID, []models.QuizQuestion{
		{QuestionType: models.QuestionTypeMultipleChoice, QuestionText: "Q1", Options: []string{"a", "b"}, CorrectAnswer: "a"},
		{QuestionType: "code_explanation", QuestionText: "Q2", CorrectAnswer: "explanation_required"},
	})
	require.NoError(t, err)

	stored, err := repo.GetByID(ctx, quiz.ID)
	require.NoError(t, err)

	answer := "a"
	correct := true
	first := stored.Questions[0]
	first.StudentAnswer = &answer
	first.IsCorrect = &correct
	updated, err := repo.RecordAnswer(ctx, &first)
	require.NoError(t, err)
	require.Equal(t, 1, updated.CorrectAnswers)
	require.NotNil(t, updated.Score)
	require.InDelta(t, 100.0, *updated.Score, 1e-9)
	require.Equal(t, models.QuizStatusGenerated, updated.Status)

	explanation := "it adds numbers"
	second := stored.Questions[1]
	second.StudentAnswer = &explanation
	updated, err = repo.RecordAnswer(ctx, &second)
	require.NoError(t, err)
	require.Equal(t, models.QuizStatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedAt)
}

func TestQuizPDFListOmitsBytes(t *testing.T) {
	db := newTestDB(t)
	repo := NewQuizPDFRepository(db)
	ctx := context.Background()

	pdf := models.QuizPDF{AssignmentName: "calculator", FileName: "quiz.pdf", PDFData: []byte("%PDF-1.3"), StudentCount: 2, QuestionCount: 5}
	require.NoError(t, repo.Create(ctx, &pdf))
	require.NoError(t, repo.SetArchiveURL(ctx, pdf.ID, "https://example.test/quiz.pdf"))

	listed, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Empty(t, listed[0].PDFData)
	require.Equal(t, "https://example.test/quiz.pdf", listed[0].ArchiveURL)

	full, err := repo.GetByID(ctx, pdf.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.3"), full.PDFData)

	deleted, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)
	require.ErrorIs(t, repo.Delete(ctx, pdf.ID), gorm.ErrRecordNotFound)
}

func TestStudentListFilters(t *testing.T) {
	db := newTestDB(t)
	repo := NewStudentRepository(db)
	ctx := context.Background()

	seedStudent(t, db, "S100", models.BlockFour)
	approved := seedStudent(t, db, "S200", models.BlockSix)
	approved.IsApproved = true
	require.NoError(t, repo.Update(ctx, &approved))

	block := models.BlockSix
	students, total, err := repo.List(ctx, StudentFilter{Block: &block})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "S200", students[0].StudentCode)

	yes := true
	_, total, err = repo.List(ctx, StudentFilter{Approved: &yes})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)

	students, _, err = repo.List(ctx, StudentFilter{Search: "s100"})
	require.NoError(t, err)
	require.Len(t, students, 1)

	found, err := repo.GetByCode(ctx, "S200")
	require.NoError(t, err)
	require.Equal(t, approved.ID, found.ID)
}

func TestActivityLogListPaginates(t *testing.T) {
	db := newTestDB(t)
	repo := NewActivityLogRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.ActivityLog{Actor: "admin", Action: "student.approve", EntityType: "student"}))
	}
	require.NoError(t, repo.Create(ctx, &models.ActivityLog{Actor: "cli", Action: "quiz_pdf.delete", EntityType: "quiz_pdf"}))

	entries, total, err := repo.List(ctx, ActivityLogFilter{Actor: "admin", PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, entries, 2)
}

func TestStudentInsertBatchSkipsExistingCodes(t *testing.T) {
	db := newTestDB(t)
	repo := NewStudentRepository(db)
	ctx := context.Background()

	seedStudent(t, db, "STU002", models.BlockFour)

	created, err := repo.InsertBatch(ctx, []models.Student{
		{StudentCode: "STU001", Name: "STU001", Block: models.BlockFour, IsActive: true},
		{StudentCode: "STU002", Name: "STU002", Block: models.BlockFour, IsActive: true},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), created)

	existing, err := repo.GetByCode(ctx, "STU002")
	require.NoError(t, err)
	require.Equal(t, "Student STU002", existing.Name)

	created, err = repo.InsertBatch(ctx, nil)
	require.NoError(t, err)
	require.Zero(t, created)
}

func TestOverviewAggregates(t *testing.T) {
	db := newTestDB(t)
	repo := NewOverviewRepository(db)
	ctx := context.Background()

	student := seedStudent(t, db, "S1", models.BlockFour)
	seedStudent(t, db, "S2", models.BlockSix)
	require.NoError(t, db.Model(&student).Update("is_approved", true).Error)

	for i, name := range []string{"calculator", "voting"} {
		submission := models.Submission{StudentID: student.ID, AssignmentName: name, FileName: "f.py", FileContent: "x", FileSize: 1, Source: models.SubmissionSourceUpload}
		if i == 1 {
			submission.Source = models.SubmissionSourcePaste
		}
		require.NoError(t, db.Create(&submission).Error)
	}
	for _, confidence := range []float64{0.4, 0.8} {
		require.NoError(t, db.Create(&models.Analysis{StudentID: student.ID, SubmissionID: 1, Kind: models.AnalysisKindAssisted, Source: models.AnalysisSourceProvider, Status: models.AnalysisStatusCompleted, ConfidenceScore: confidence}).Error)
	}

	counts, err := repo.StudentCounts(ctx)
	require.NoError(t, err)
	require.Equal(t, StudentCounts{Total: 2, Approved: 1, Active: 2}, counts)

	bySource, err := repo.CountBy(ctx, &models.Submission{}, "source")
	require.NoError(t, err)
	require.Equal(t, map[string]int64{models.SubmissionSourceUpload: 1, models.SubmissionSourcePaste: 1}, bySource)

	avg, err := repo.Average(ctx, &models.Analysis{}, "confidence_score", map[string]interface{}{"source": models.AnalysisSourceProvider})
	require.NoError(t, err)
	require.InDelta(t, 0.6, avg, 1e-9)

	none, err := repo.Average(ctx, &models.Quiz{}, "score", nil)
	require.NoError(t, err)
	require.Zero(t, none)

	times, err := repo.SubmissionTimesSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, times, 2)
}
