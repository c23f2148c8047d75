package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/erikwilensky/codecheck/internal/models"
)

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.Submission, error)
	// ListRecentByStudent returns up to limit submissions of the student other than
	// excludeID, newest first, without file content.
	ListRecentByStudent(ctx context.Context, studentID, excludeID uint, limit int) ([]models.Submission, error)
	ListForAssignment(ctx context.Context, assignmentName string, studentIDs []uint) ([]models.Submission, error)
	// Supersede replaces any submission of the same (student, assignment name) pair
	// with submission in one transaction.
	Supersede(ctx context.Context, submission *models.Submission) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).Preload("Student").First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) ListRecentByStudent(ctx context.Context, studentID, excludeID uint, limit int) ([]models.Submission, error) {
	query := r.db.WithContext(ctx).
		Omit("file_content").
		Where("student_id = ?", studentID)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var submissions []models.Submission
	if err := query.Order("created_at DESC").Order("id DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) ListForAssignment(ctx context.Context, assignmentName string, studentIDs []uint) ([]models.Submission, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}

	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Preload("Student").
		Where("assignment_name = ?", assignmentName).
		Where("student_id IN ?", studentIDs).
		Order("student_id ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) Supersede(ctx context.Context, submission *models.Submission) error {
	err := r.supersede(ctx, submission)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// a concurrent writer inserted the pair between our delete and insert
		submission.ID = 0
		err = r.supersede(ctx, submission)
	}
	return err
}

func (r *submissionRepository) supersede(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("student_id = ? AND assignment_name = ?", submission.StudentID, submission.AssignmentName).
			Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		return tx.Omit("Student").Create(submission).Error
	})
}
