package concert

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/concert-reservations/internal/domain"
)

// Store is the concert catalog boundary.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Concert, error)
	List(ctx context.Context) ([]domain.Concert, error)
	ListOptions(ctx context.Context, concertID uuid.UUID) ([]domain.ConcertOption, error)
}

// Service serves the browse chain that leads a client to a seat: concerts,
// then a concert's scheduled dates, whose option ids key the seat listing.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Concerts(ctx context.Context) ([]domain.Concert, error) {
	return s.store.List(ctx)
}

// AvailableDates lists the scheduled options of a concert, earliest first.
func (s *Service) AvailableDates(ctx context.Context, concertID uuid.UUID) ([]domain.ConcertOption, error) {
	if _, err := s.store.Get(ctx, concertID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrConcertNotFound
		}
		return nil, err
	}
	return s.store.ListOptions(ctx, concertID)
}
