package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/erikwilensky/codecheck/internal/models"
)

// AnalysisFilter narrows analysis queries.
type AnalysisFilter struct {
	StudentID    *uint
	SubmissionID *uint
	Kind         string
	Limit        int
}

// AnalysisRepository persists analysis records.
type AnalysisRepository interface {
	Create(ctx context.Context, analysis *models.Analysis) error
	Update(ctx context.Context, analysis *models.Analysis) error
	GetByID(ctx context.Context, id uint) (models.Analysis, error)
	List(ctx context.Context, filter AnalysisFilter) ([]models.Analysis, error)
	LatestForSubmission(ctx context.Context, submissionID uint, kind string) (models.Analysis, error)
}

type analysisRepository struct {
	db *gorm.DB
}

// NewAnalysisRepository constructs the analysis repository.
func NewAnalysisRepository(db *gorm.DB) AnalysisRepository {
	return &analysisRepository{db: db}
}

func (r *analysisRepository) Create(ctx context.Context, analysis *models.Analysis) error {
	return r.db.WithContext(ctx).Create(analysis).Error
}

func (r *analysisRepository) Update(ctx context.Context, analysis *models.Analysis) error {
	return r.db.WithContext(ctx).Save(analysis).Error
}

func (r *analysisRepository) GetByID(ctx context.Context, id uint) (models.Analysis, error) {
	var analysis models.Analysis
	if err := r.db.WithContext(ctx).First(&analysis, id).Error; err != nil {
		return models.Analysis{}, err
	}

	return analysis, nil
}

func (r *analysisRepository) List(ctx context.Context, filter AnalysisFilter) ([]models.Analysis, error) {
	query := r.db.WithContext(ctx).Model(&models.Analysis{})

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.SubmissionID != nil {
		query = query.Where("submission_id = ?", *filter.SubmissionID)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var analyses []models.Analysis
	if err := query.Order("created_at DESC").Order("id DESC").Find(&analyses).Error; err != nil {
		return nil, err
	}

	return analyses, nil
}

func (r *analysisRepository) LatestForSubmission(ctx context.Context, submissionID uint, kind string) (models.Analysis, error) {
	var analysis models.Analysis
	if err := r.db.WithContext(ctx).
		Where("submission_id = ? AND kind = ?", submissionID, kind).
		Order("id DESC").
		First(&analysis).Error; err != nil {
		return models.Analysis{}, err
	}

	return analysis, nil
}
