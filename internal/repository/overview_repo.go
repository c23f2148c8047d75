package repository

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/erikwilensky/codecheck/internal/models"
)

// StudentCounts summarises the roster.
type StudentCounts struct {
	Total    int64
	Approved int64
	Active   int64
}

// OverviewRepository supplies aggregate counts for the admin overview.
type OverviewRepository interface {
	StudentCounts(ctx context.Context) (StudentCounts, error)
	CountBy(ctx context.Context, model interface{}, column string) (map[string]int64, error)
	Average(ctx context.Context, model interface{}, column string, conditions map[string]interface{}) (float64, error)
	SubmissionTimesSince(ctx context.Context, since time.Time) ([]time.Time, error)
}

type overviewRepository struct {
	db *gorm.DB
}

// NewOverviewRepository constructs the overview repository.
func NewOverviewRepository(db *gorm.DB) OverviewRepository {
	return &overviewRepository{db: db}
}

func (r *overviewRepository) StudentCounts(ctx context.Context) (StudentCounts, error) {
	var counts StudentCounts
	query := r.db.WithContext(ctx).Model(&models.Student{})
	if err := query.Count(&counts.Total).Error; err != nil {
		return StudentCounts{}, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Student{}).Where("is_approved = ?", true).Count(&counts.Approved).Error; err != nil {
		return StudentCounts{}, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Student{}).Where("is_active = ?", true).Count(&counts.Active).Error; err != nil {
		return StudentCounts{}, err
	}
	return counts, nil
}

// CountBy groups rows of model by column. Callers pass a fixed column name.
func (r *overviewRepository) CountBy(ctx context.Context, model interface{}, column string) (map[string]int64, error) {
	var rows []struct {
		Label string
		Total int64
	}
	err := r.db.WithContext(ctx).
		Model(model).
		Select(column + " AS label, COUNT(*) AS total").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Label] = row.Total
	}
	return counts, nil
}

func (r *overviewRepository) Average(ctx context.Context, model interface{}, column string, conditions map[string]interface{}) (float64, error) {
	var avg sql.NullFloat64
	query := r.db.WithContext(ctx).Model(model).Select("AVG(" + column + ")")
	if len(conditions) > 0 {
		query = query.Where(conditions)
	}
	if err := query.Scan(&avg).Error; err != nil {
		return 0, err
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

func (r *overviewRepository) SubmissionTimesSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var times []time.Time
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("created_at >= ?", since).
		Pluck("created_at", &times).Error
	return times, err
}
