package domain

import (
	"time"

	"github.com/google/uuid"
)

// Concert is a performance clients browse before queueing for seats.
type Concert struct {
	ID     uuid.UUID
	Name   string
	Singer string
}

// ConcertOption is one scheduled date of a concert. Seats hang off options,
// so clients walk concerts -> options -> available seats.
type ConcertOption struct {
	ID        uuid.UUID
	ConcertID uuid.UUID
	Venue     string
	ConcertAt time.Time
}
