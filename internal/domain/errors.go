package domain

import "errors"

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")

	ErrConcertNotFound        = errors.New("concert not found")
	ErrDuplicateToken         = errors.New("user already holds a queue token")
	ErrTokenNotFound          = errors.New("queue token not found")
	ErrSeatNotFound           = errors.New("seat not found")
	ErrSeatNotAvailable       = errors.New("seat not available")
	ErrReservationNotFound    = errors.New("reservation not found")
	ErrReservationExpired     = errors.New("reservation expired")
	ErrReservationAlreadyPaid = errors.New("reservation already paid")
	ErrNotEnoughPoints        = errors.New("not enough points")
	ErrInvalidTransition      = errors.New("invalid status transition")
)
