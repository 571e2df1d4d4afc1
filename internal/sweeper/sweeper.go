package sweeper

import (
	"context"
	"time"

	"github.com/robertarktes/concert-reservations/internal/observability"
)

// Tokens is the admission-controller slice the sweeper drives.
type Tokens interface {
	ExpireOverdue(ctx context.Context) error
	Promote(ctx context.Context) error
}

// Reservations is the reservation-engine slice the sweeper drives.
type Reservations interface {
	ManageReservationStatus(ctx context.Context) error
}

// Sweeper periodically reconciles time-based expirations: overdue tokens and
// reservations are expired, then freed capacity is handed to waiting tokens.
// A pass runs synchronously inside the ticker loop, so a slow pass delays the
// next tick instead of overlapping it. Every step is idempotent, so
// at-least-once execution across restarts is safe.
type Sweeper struct {
	tokens       Tokens
	reservations Reservations
	logger       observability.Logger
}

func New(tokens Tokens, reservations Reservations, logger observability.Logger) *Sweeper {
	return &Sweeper{tokens: tokens, reservations: reservations, logger: logger}
}

func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep executes one reconciliation pass. Step failures are logged and left
// for the next tick; one failing step does not stop the others.
func (s *Sweeper) Sweep(ctx context.Context) {
	start := time.Now()
	defer func() {
		observability.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	if err := s.reservations.ManageReservationStatus(ctx); err != nil {
		s.logger.Error("failed to sweep expired reservations", err)
	}
	if err := s.tokens.ExpireOverdue(ctx); err != nil {
		s.logger.Error("failed to expire overdue tokens", err)
	}
	if err := s.tokens.Promote(ctx); err != nil {
		s.logger.Error("failed to promote waiting tokens", err)
	}
}
