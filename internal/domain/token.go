package domain

import (
	"time"

	"github.com/google/uuid"
)

type TokenStatus string

const (
	TokenWaiting TokenStatus = "WAITING"
	TokenActive  TokenStatus = "ACTIVE"
	TokenExpired TokenStatus = "EXPIRED"
)

// QueueToken is one user's position in the admission queue. QueueOrder comes
// from a durable sequence so issuance order survives restarts.
type QueueToken struct {
	ID         uuid.UUID
	Token      string
	UserID     uuid.UUID
	QueueOrder int64
	Status     TokenStatus
	IssuedAt   time.Time
	ExpiresAt  *time.Time
}

func NewQueueToken(userID uuid.UUID, queueOrder int64, issuedAt time.Time) QueueToken {
	return QueueToken{
		ID:         uuid.New(),
		Token:      uuid.NewString(),
		UserID:     userID,
		QueueOrder: queueOrder,
		Status:     TokenWaiting,
		IssuedAt:   issuedAt,
	}
}

// CanTransition reports whether a token may move from its current status to
// the given one. Allowed edges: WAITING->ACTIVE, WAITING->EXPIRED,
// ACTIVE->EXPIRED.
func (t QueueToken) CanTransition(to TokenStatus) bool {
	switch t.Status {
	case TokenWaiting:
		return to == TokenActive || to == TokenExpired
	case TokenActive:
		return to == TokenExpired
	default:
		return false
	}
}

// ActiveUsable reports whether the token admits requests at the given instant.
func (t QueueToken) ActiveUsable(now time.Time) bool {
	if t.Status != TokenActive {
		return false
	}
	if t.ExpiresAt != nil && !now.Before(*t.ExpiresAt) {
		return false
	}
	return true
}
