package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/erikwilensky/codecheck/internal/models"
)

// QuizFilter narrows quiz queries.
type QuizFilter struct {
	StudentID    *uint
	SubmissionID *uint
	Limit        int
}

// QuizRepository persists quizzes and their questions.
type QuizRepository interface {
	Create(ctx context.Context, quiz *models.Quiz) error
	// AddQuestionsAndFinalize stores questions and sets the quiz total to the stored
	// question count in one transaction.
	AddQuestionsAndFinalize(ctx context.Context, quizID uint, questions []models.QuizQuestion) (int, error)
	GetByID(ctx context.Context, id uint) (models.Quiz, error)
	List(ctx context.Context, filter QuizFilter) ([]models.Quiz, error)
	GetQuestion(ctx context.Context, id uint) (models.QuizQuestion, error)
	// RecordAnswer saves the answer fields of question and refreshes the quiz score.
	RecordAnswer(ctx context.Context, question *models.QuizQuestion) (models.Quiz, error)
}

type quizRepository struct {
	db *gorm.DB
}

// NewQuizRepository constructs the quiz repository.
func NewQuizRepository(db *gorm.DB) QuizRepository {
	return &quizRepository{db: db}
}

func (r *quizRepository) Create(ctx context.Context, quiz *models.Quiz) error {
	return r.db.WithContext(ctx).Omit("Questions").Create(quiz).Error
}

func (r *quizRepository) AddQuestionsAndFinalize(ctx context.Context, quizID uint, questions []models.QuizQuestion) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(questions) > 0 {
			for i := range questions {
				questions[i].QuizID = quizID
			}
			if err := tx.Create(&questions).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&models.QuizQuestion{}).Where("quiz_id = ?", quizID).Count(&total).Error; err != nil {
			return err
		}
		result := tx.Model(&models.Quiz{}).Where("id = ?", quizID).Update("total_questions", total)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return int(total), err
}

func (r *quizRepository) GetByID(ctx context.Context, id uint) (models.Quiz, error) {
	var quiz models.Quiz
	if err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&quiz, id).Error; err != nil {
		return models.Quiz{}, err
	}

	return quiz, nil
}

func (r *quizRepository) List(ctx context.Context, filter QuizFilter) ([]models.Quiz, error) {
	query := r.db.WithContext(ctx).Model(&models.Quiz{})

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.SubmissionID != nil {
		query = query.Where("submission_id = ?", *filter.SubmissionID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var quizzes []models.Quiz
	if err := query.Order("created_at DESC").Order("id DESC").Find(&quizzes).Error; err != nil {
		return nil, err
	}

	return quizzes, nil
}

func (r *quizRepository) GetQuestion(ctx context.Context, id uint) (models.QuizQuestion, error) {
	var question models.QuizQuestion
	if err := r.db.WithContext(ctx).First(&question, id).Error; err != nil {
		return models.QuizQuestion{}, err
	}

	return question, nil
}

func (r *quizRepository) RecordAnswer(ctx context.Context, question *models.QuizQuestion) (models.Quiz, error) {
	var quiz models.Quiz
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(question).Select("student_answer", "is_correct").Updates(map[string]interface{}{
			"student_answer": question.StudentAnswer,
			"is_correct":     question.IsCorrect,
		}).Error; err != nil {
			return err
		}

		if err := tx.First(&quiz, question.QuizID).Error; err != nil {
			return err
		}

		var answered, graded, correct int64
		base := tx.Model(&models.QuizQuestion{}).Where("quiz_id = ?", quiz.ID)
		if err := base.Session(&gorm.Session{}).Where("student_answer IS NOT NULL").Count(&answered).Error; err != nil {
			return err
		}
		if err := base.Session(&gorm.Session{}).Where("is_correct IS NOT NULL").Count(&graded).Error; err != nil {
			return err
		}
		if err := base.Session(&gorm.Session{}).Where("is_correct = ?", true).Count(&correct).Error; err != nil {
			return err
		}

		quiz.CorrectAnswers = int(correct)
		if graded > 0 {
			score := float64(correct) / float64(graded) * 100
			quiz.Score = &score
		}
		if int(answered) >= quiz.TotalQuestions && quiz.TotalQuestions > 0 && quiz.Status != models.QuizStatusCompleted {
			now := time.Now().UTC()
			quiz.Status = models.QuizStatusCompleted
			quiz.CompletedAt = &now
		}

		return tx.Model(&quiz).Select("correct_answers", "score", "status", "completed_at").Updates(&quiz).Error
	})
	if err != nil {
		return models.Quiz{}, err
	}
	return quiz, nil
}
