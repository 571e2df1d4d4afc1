package payment

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/concert-reservations/internal/domain"
	"github.com/robertarktes/concert-reservations/internal/observability"
)

// Reservations is the slice of the reservation engine that settlement needs.
type Reservations interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
	Finalize(ctx context.Context, id uuid.UUID) error
}

type SeatGetter interface {
	Get(ctx context.Context, seatID uuid.UUID) (domain.Seat, error)
}

// UserStore is the user directory boundary: balance reads plus atomic
// debit/credit. DebitPoints returns domain.ErrNotEnoughPoints when the
// balance is short.
type UserStore interface {
	Get(ctx context.Context, userID uuid.UUID) (domain.User, error)
	DebitPoints(ctx context.Context, userID uuid.UUID, amount int64) error
	CreditPoints(ctx context.Context, userID uuid.UUID, amount int64) error
}

// EventOutbox stages an event in the same transaction as the state change so
// it is published at least once after commit.
type EventOutbox interface {
	Enqueue(ctx context.Context, eventType string, payload any) error
}

// TxRunner runs a function inside a single database transaction. Store calls
// made with the callback context join that transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Auditor records settlements on a best-effort trail.
type Auditor interface {
	ReservationSettled(ctx context.Context, res domain.Reservation, price int64) error
}

const EventReservationSettled = "reservation.settled"

// SettledEvent is the payload published when a reservation is paid. The
// release consumer uses UserID to free the owner's admission token.
type SettledEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	UserID        uuid.UUID `json:"user_id"`
}

type Result struct {
	ReservationID uuid.UUID
	SeatNo        int
	Price         int64
	Status        domain.ReservationStatus
}

// Service settles reservations: debit the buyer's points, finalize the
// reservation and seat, and stage the settled event, all in one transaction.
type Service struct {
	reservations Reservations
	seats        SeatGetter
	users        UserStore
	outbox       EventOutbox
	tx           TxRunner
	auditor      Auditor
	logger       observability.Logger
}

func NewService(reservations Reservations, seats SeatGetter, users UserStore, outbox EventOutbox, tx TxRunner, auditor Auditor, logger observability.Logger) *Service {
	return &Service{
		reservations: reservations,
		seats:        seats,
		users:        users,
		outbox:       outbox,
		tx:           tx,
		auditor:      auditor,
		logger:       logger,
	}
}

// Pay debits the seat price from the user's balance and finalizes the
// reservation as one all-or-nothing unit. If finalize loses the race against
// the sweeper, the transaction rolls back and the debit never lands.
func (s *Service) Pay(ctx context.Context, reservationID uuid.UUID) (Result, error) {
	res, err := s.reservations.Get(ctx, reservationID)
	if err != nil {
		return Result{}, err
	}
	seat, err := s.seats.Get(ctx, res.SeatID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Result{}, domain.ErrSeatNotFound
		}
		return Result{}, err
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.users.DebitPoints(ctx, res.UserID, seat.Price); err != nil {
			return err
		}
		if err := s.reservations.Finalize(ctx, reservationID); err != nil {
			return err
		}
		return s.outbox.Enqueue(ctx, EventReservationSettled, SettledEvent{
			ReservationID: res.ID,
			UserID:        res.UserID,
		})
	})
	if err != nil {
		return Result{}, err
	}

	if err := s.auditor.ReservationSettled(ctx, res, seat.Price); err != nil {
		s.logger.WithField("reservation_id", res.ID).Warn("failed to audit settlement", err)
	}

	return Result{
		ReservationID: res.ID,
		SeatNo:        seat.SeatNo,
		Price:         seat.Price,
		Status:        domain.ReservationPaid,
	}, nil
}

// GetPoints returns the user's current balance.
func (s *Service) GetPoints(ctx context.Context, userID uuid.UUID) (int64, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Points, nil
}

// ChargePoints tops up the user's balance and returns the new total.
func (s *Service) ChargePoints(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidInput
	}
	if err := s.users.CreditPoints(ctx, userID, amount); err != nil {
		return 0, err
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Points, nil
}
