package domain

import "github.com/google/uuid"

type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatHeld      SeatStatus = "HELD"
	SeatReserved  SeatStatus = "RESERVED"
)

type Seat struct {
	ID              uuid.UUID
	ConcertOptionID uuid.UUID
	SeatNo          int
	Price           int64
	Status          SeatStatus
}

// CanTransition reports whether a seat may move to the given status.
// Allowed edges: AVAILABLE->HELD, HELD->AVAILABLE, HELD->RESERVED.
func (s Seat) CanTransition(to SeatStatus) bool {
	switch s.Status {
	case SeatAvailable:
		return to == SeatHeld
	case SeatHeld:
		return to == SeatAvailable || to == SeatReserved
	default:
		return false
	}
}
