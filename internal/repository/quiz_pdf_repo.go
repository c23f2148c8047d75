package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/erikwilensky/codecheck/internal/models"
)

// QuizPDFRepository persists rendered bulk quiz packets.
type QuizPDFRepository interface {
	Create(ctx context.Context, pdf *models.QuizPDF) error
	// List returns packet metadata without the PDF bytes, newest first.
	List(ctx context.Context) ([]models.QuizPDF, error)
	GetByID(ctx context.Context, id uint) (models.QuizPDF, error)
	SetArchiveURL(ctx context.Context, id uint, url string) error
	Delete(ctx context.Context, id uint) error
	DeleteAll(ctx context.Context) (int64, error)
}

type quizPDFRepository struct {
	db *gorm.DB
}

// NewQuizPDFRepository constructs the quiz packet repository.
func NewQuizPDFRepository(db *gorm.DB) QuizPDFRepository {
	return &quizPDFRepository{db: db}
}

func (r *quizPDFRepository) Create(ctx context.Context, pdf *models.QuizPDF) error {
	return r.db.WithContext(ctx).Create(pdf).Error
}

func (r *quizPDFRepository) List(ctx context.Context) ([]models.QuizPDF, error) {
	var pdfs []models.QuizPDF
	if err := r.db.WithContext(ctx).
		Omit("pdf_data").
		Order("created_at DESC").
		Order("id DESC").
		Find(&pdfs).Error; err != nil {
		return nil, err
	}

	return pdfs, nil
}

func (r *quizPDFRepository) GetByID(ctx context.Context, id uint) (models.QuizPDF, error) {
	var pdf models.QuizPDF
	if err := r.db.WithContext(ctx).First(&pdf, id).Error; err != nil {
		return models.QuizPDF{}, err
	}

	return pdf, nil
}

func (r *quizPDFRepository) SetArchiveURL(ctx context.Context, id uint, url string) error {
	return r.db.WithContext(ctx).Model(&models.QuizPDF{}).Where("id = ?", id).Update("archive_url", url).Error
}

func (r *quizPDFRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.QuizPDF{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *quizPDFRepository) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.QuizPDF{})
	return result.RowsAffected, result.Error
}
