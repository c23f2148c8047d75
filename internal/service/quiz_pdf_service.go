package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/repository"
)

// ErrQuizPDFNotFound indicates the quiz packet does not exist.
var ErrQuizPDFNotFound = errors.New("quiz pdf not found")

// QuizPDFFile is a downloadable packet.
type QuizPDFFile struct {
	FileName string
	Data     []byte
}

// QuizPDFService manages stored quiz packets.
type QuizPDFService interface {
	List(ctx context.Context) ([]dto.QuizPDFResponse, error)
	Download(ctx context.Context, id uint) (QuizPDFFile, error)
	Delete(ctx context.Context, id uint, actor ActivityActor) error
	DeleteAll(ctx context.Context, actor ActivityActor) (int64, error)
}

type quizPDFService struct {
	repo     repository.QuizPDFRepository
	activity ActivityRecorder
	logger   zerolog.Logger
}

// NewQuizPDFService constructs the packet service.
func NewQuizPDFService(repo repository.QuizPDFRepository, activity ActivityRecorder, logger zerolog.Logger) QuizPDFService {
	return &quizPDFService{
		repo:     repo,
		activity: activity,
		logger:   logger.With().Str("component", "quiz_pdf_service").Logger(),
	}
}

func (s *quizPDFService) List(ctx context.Context) ([]dto.QuizPDFResponse, error) {
	pdfs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.QuizPDFResponse, 0, len(pdfs))
	for _, pdf := range pdfs {
		responses = append(responses, dto.NewQuizPDFResponse(pdf))
	}
	return responses, nil
}

func (s *quizPDFService) Download(ctx context.Context, id uint) (QuizPDFFile, error) {
	pdf, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return QuizPDFFile{}, ErrQuizPDFNotFound
		}
		return QuizPDFFile{}, err
	}
	return QuizPDFFile{FileName: pdf.FileName, Data: pdf.PDFData}, nil
}

func (s *quizPDFService) Delete(ctx context.Context, id uint, actor ActivityActor) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuizPDFNotFound
		}
		return err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "quiz_pdf.delete",
		EntityType: "quiz_pdf",
		EntityID:   uintPtr(id),
	})
	return nil
}

func (s *quizPDFService) DeleteAll(ctx context.Context, actor ActivityActor) (int64, error) {
	deleted, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "quiz_pdf.delete_all",
		EntityType: "quiz_pdf",
		Metadata:   map[string]interface{}{"deleted": deleted},
	})
	return deleted, nil
}
