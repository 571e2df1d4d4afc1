package reservation

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/concert-reservations/internal/clock"
	"github.com/robertarktes/concert-reservations/internal/domain"
	"github.com/robertarktes/concert-reservations/internal/observability"
	"golang.org/x/sync/errgroup"
)

// SeatStore exposes the seat table. CompareAndSetStatus is the serialization
// point for concurrent holds: it applies the change only when the stored
// status equals expected and returns domain.ErrConflict otherwise.
type SeatStore interface {
	Get(ctx context.Context, seatID uuid.UUID) (domain.Seat, error)
	CompareAndSetStatus(ctx context.Context, seatID uuid.UUID, expected, next domain.SeatStatus) error
	ListAvailable(ctx context.Context, concertOptionID uuid.UUID) ([]domain.Seat, error)
}

// Store exposes the reservation table plus a transaction runner. Operations
// invoked inside the WithTx callback join the same transaction.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Insert(ctx context.Context, res domain.Reservation) error
	Get(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next domain.ReservationStatus) error
	ListTempAssignedExpired(ctx context.Context, now time.Time) ([]domain.Reservation, error)
}

// TokenReleaser frees the admission slot owned by a user.
type TokenReleaser interface {
	ReleaseUser(ctx context.Context, userID uuid.UUID) error
}

// Auditor records reservation lifecycle events on a best-effort trail.
type Auditor interface {
	ReservationHeld(ctx context.Context, res domain.Reservation) error
	ReservationExpired(ctx context.Context, res domain.Reservation) error
}

const sweepConcurrency = 8

// Service is the seat reservation engine: it turns an AVAILABLE seat into a
// time-bounded HELD claim, finalizes the claim on payment, and reclaims
// abandoned claims on the expiration sweep.
type Service struct {
	seats   SeatStore
	store   Store
	tokens  TokenReleaser
	auditor Auditor
	clock   clock.Clock
	holdTTL time.Duration
	logger  observability.Logger
}

func NewService(seats SeatStore, store Store, tokens TokenReleaser, auditor Auditor, clk clock.Clock, holdTTL time.Duration, logger observability.Logger) *Service {
	if holdTTL <= 0 {
		holdTTL = 5 * time.Minute
	}
	return &Service{
		seats:   seats,
		store:   store,
		tokens:  tokens,
		auditor: auditor,
		clock:   clk,
		holdTTL: holdTTL,
		logger:  logger,
	}
}

// CreateSeatReservation holds a seat for the user. The AVAILABLE->HELD CAS and
// the reservation insert commit as one unit; whichever concurrent caller wins
// the CAS proceeds, the loser observes ErrSeatNotAvailable.
func (s *Service) CreateSeatReservation(ctx context.Context, userID, seatID uuid.UUID) (domain.Reservation, error) {
	seat, err := s.seats.Get(ctx, seatID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Reservation{}, domain.ErrSeatNotFound
		}
		return domain.Reservation{}, err
	}
	if seat.Status != domain.SeatAvailable {
		return domain.Reservation{}, domain.ErrSeatNotAvailable
	}

	res := domain.NewReservation(userID, seatID, s.clock.Now(), s.holdTTL)
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.seats.CompareAndSetStatus(ctx, seatID, domain.SeatAvailable, domain.SeatHeld); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return domain.ErrSeatNotAvailable
			}
			return err
		}
		return s.store.Insert(ctx, res)
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	observability.ReservationsCreated.Inc()
	if err := s.auditor.ReservationHeld(ctx, res); err != nil {
		s.logger.WithField("reservation_id", res.ID).Warn("failed to audit hold", err)
	}
	return res, nil
}

// Finalize marks the reservation PAID and the seat RESERVED in one
// transaction. Called by payment settlement inside its own transaction; the
// nested WithTx joins it.
func (s *Service) Finalize(ctx context.Context, reservationID uuid.UUID) error {
	res, err := s.store.Get(ctx, reservationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrReservationNotFound
		}
		return err
	}
	if res.Status == domain.ReservationPaid {
		return domain.ErrReservationAlreadyPaid
	}
	if res.ExpiredAt(s.clock.Now()) {
		return domain.ErrReservationExpired
	}

	return s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.CompareAndSetStatus(ctx, res.ID, domain.ReservationTempAssigned, domain.ReservationPaid); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				// Lost the race against the sweeper or a concurrent payment.
				return s.finalizeConflict(ctx, res.ID)
			}
			return err
		}
		if err := s.seats.CompareAndSetStatus(ctx, res.SeatID, domain.SeatHeld, domain.SeatReserved); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return errors.Wrap(domain.ErrInvalidTransition, "seat not held while reservation temp-assigned")
			}
			return err
		}
		observability.ReservationsPaid.Inc()
		return nil
	})
}

func (s *Service) finalizeConflict(ctx context.Context, id uuid.UUID) error {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	switch current.Status {
	case domain.ReservationPaid:
		return domain.ErrReservationAlreadyPaid
	case domain.ReservationExpired:
		return domain.ErrReservationExpired
	default:
		return domain.ErrConflict
	}
}

// ManageReservationStatus expires TEMP_ASSIGNED reservations whose hold window
// has passed: reservation -> EXPIRED and seat HELD -> AVAILABLE in one
// transaction, then the owner's admission token is released. Items fail
// independently; a failed item is logged and retried on the next sweep.
func (s *Service) ManageReservationStatus(ctx context.Context) error {
	expired, err := s.store.ListTempAssignedExpired(ctx, s.clock.Now())
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for _, res := range expired {
		res := res
		g.Go(func() error {
			if err := s.expireOne(ctx, res); err != nil {
				s.logger.WithField("reservation_id", res.ID).Error("failed to expire reservation", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Service) expireOne(ctx context.Context, res domain.Reservation) error {
	transitioned := false
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.CompareAndSetStatus(ctx, res.ID, domain.ReservationTempAssigned, domain.ReservationExpired); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				// Already paid or already swept; nothing to reclaim.
				return nil
			}
			return err
		}
		if err := s.seats.CompareAndSetStatus(ctx, res.SeatID, domain.SeatHeld, domain.SeatAvailable); err != nil && !errors.Is(err, domain.ErrConflict) {
			return err
		}
		transitioned = true
		return nil
	})
	if err != nil {
		return err
	}
	if !transitioned {
		return nil
	}
	observability.ReservationsExpired.Inc()

	if err := s.tokens.ReleaseUser(ctx, res.UserID); err != nil {
		return errors.Wrap(err, "release token")
	}
	if err := s.auditor.ReservationExpired(ctx, res); err != nil {
		s.logger.WithField("reservation_id", res.ID).Warn("failed to audit expiry", err)
	}
	return nil
}

// AvailableSeats lists the seats still open for a concert option.
func (s *Service) AvailableSeats(ctx context.Context, concertOptionID uuid.UUID) ([]domain.Seat, error) {
	return s.seats.ListAvailable(ctx, concertOptionID)
}

// Get loads a reservation.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	res, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, err
	}
	return res, nil
}
