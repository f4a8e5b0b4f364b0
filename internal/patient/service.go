package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 200
)

// Repository is what the admin directory needs from storage.
type Repository interface {
	Search(ctx context.Context, search string, limit int) ([]Summary, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("component", "patient").Logger(),
	}
}

// Search lists patients with their booking counts. A non-positive limit
// means DefaultSearchLimit; larger limits are capped at MaxSearchLimit.
func (s *Service) Search(ctx context.Context, search string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)

	list, err := s.repo.Search(ctx, search, limit)
	if err != nil {
		return nil, fmt.Errorf("search patients: %w", err)
	}
	return list, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrPatientNotFound) || errors.Is(err, ErrPatientHasBookings) {
			return err
		}
		return fmt.Errorf("delete patient: %w", err)
	}
	s.log.Info().Str("patient_id", id.String()).Msg("patient deleted")
	return nil
}
