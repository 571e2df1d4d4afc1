package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationTempAssigned ReservationStatus = "TEMP_ASSIGNED"
	ReservationPaid         ReservationStatus = "PAID"
	ReservationExpired      ReservationStatus = "EXPIRED"
)

// Reservation is the temporary-then-permanent claim on a seat. ExpiresAt is
// set once at creation and never changes; PAID and EXPIRED are terminal.
type Reservation struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	SeatID    uuid.UUID
	Status    ReservationStatus
	CreatedAt time.Time
	ExpiresAt time.Time
}

func NewReservation(userID, seatID uuid.UUID, now time.Time, ttl time.Duration) Reservation {
	return Reservation{
		ID:        uuid.New(),
		UserID:    userID,
		SeatID:    seatID,
		Status:    ReservationTempAssigned,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// CanTransition reports whether the reservation may move to the given status.
// TEMP_ASSIGNED is the only non-terminal state.
func (r Reservation) CanTransition(to ReservationStatus) bool {
	if r.Status != ReservationTempAssigned {
		return false
	}
	return to == ReservationPaid || to == ReservationExpired
}

func (r Reservation) ExpiredAt(now time.Time) bool {
	return r.Status == ReservationExpired || !now.Before(r.ExpiresAt)
}
