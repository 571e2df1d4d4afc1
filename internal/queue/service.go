package queue

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/concert-reservations/internal/clock"
	"github.com/robertarktes/concert-reservations/internal/domain"
	"github.com/robertarktes/concert-reservations/internal/observability"
)

// TokenStore is the durable queue-token table. CompareAndSetStatus must apply
// the status change only if the stored status equals expected, returning
// domain.ErrConflict otherwise.
type TokenStore interface {
	GetByToken(ctx context.Context, token string) (domain.QueueToken, error)
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (domain.QueueToken, error)
	Insert(ctx context.Context, token domain.QueueToken) error
	CompareAndSetStatus(ctx context.Context, tokenID uuid.UUID, expected, next domain.TokenStatus, expiresAt *time.Time) error
	NextQueueOrder(ctx context.Context) (int64, error)
	ListWaitingOrdered(ctx context.Context, limit int) ([]domain.QueueToken, error)
	ListActiveExpired(ctx context.Context, now time.Time) ([]domain.QueueToken, error)
	CountActive(ctx context.Context) (int, error)
	CountWaitingBefore(ctx context.Context, queueOrder int64) (int, error)
}

type ValidationResult string

const (
	Valid        ValidationResult = "VALID"
	NotAvailable ValidationResult = "NOT_AVAILABLE"
)

type TokenInfo struct {
	Token         string
	Status        domain.TokenStatus
	QueueOrder    int64
	RemainingWait time.Duration
}

type Config struct {
	// MaxActive bounds the number of concurrently ACTIVE tokens.
	MaxActive int
	// SessionTTL is the active window stamped on promotion.
	SessionTTL time.Duration
	// WaitPerSlot scales the advisory remaining-wait estimate.
	WaitPerSlot time.Duration
}

// Service is the queue token admission controller. It issues WAITING tokens,
// promotes them to ACTIVE up to capacity, and expires them when the session
// window closes or the owning reservation completes.
type Service struct {
	store  TokenStore
	clock  clock.Clock
	cfg    Config
	logger observability.Logger
}

func NewService(store TokenStore, clk clock.Clock, cfg Config, logger observability.Logger) *Service {
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = 50
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 10 * time.Minute
	}
	if cfg.WaitPerSlot <= 0 {
		cfg.WaitPerSlot = 10 * time.Second
	}
	return &Service{store: store, clock: clk, cfg: cfg, logger: logger}
}

// IssueToken creates a WAITING token for the user. A user may hold at most
// one non-EXPIRED token at a time.
func (s *Service) IssueToken(ctx context.Context, userID uuid.UUID) (string, error) {
	_, err := s.store.GetActiveByUser(ctx, userID)
	if err == nil {
		return "", domain.ErrDuplicateToken
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	order, err := s.store.NextQueueOrder(ctx)
	if err != nil {
		return "", err
	}

	token := domain.NewQueueToken(userID, order, s.clock.Now())
	if err := s.store.Insert(ctx, token); err != nil {
		return "", err
	}
	observability.TokensIssued.Inc()
	return token.Token, nil
}

// GetTokenInfo returns the user's token with a recomputed advisory wait
// estimate. The estimate is position-ahead times the configured per-slot
// service time and carries no correctness guarantee.
func (s *Service) GetTokenInfo(ctx context.Context, userID uuid.UUID) (TokenInfo, error) {
	token, err := s.store.GetActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return TokenInfo{}, domain.ErrTokenNotFound
		}
		return TokenInfo{}, err
	}

	info := TokenInfo{
		Token:      token.Token,
		Status:     token.Status,
		QueueOrder: token.QueueOrder,
	}
	if token.Status == domain.TokenWaiting {
		ahead, err := s.store.CountWaitingBefore(ctx, token.QueueOrder)
		if err != nil {
			return TokenInfo{}, err
		}
		info.RemainingWait = time.Duration(ahead+1) * s.cfg.WaitPerSlot
	}
	return info, nil
}

// ValidateToken gates seat-reservation requests. WAITING, EXPIRED and unknown
// tokens all collapse to NOT_AVAILABLE so callers cannot probe for existence.
func (s *Service) ValidateToken(ctx context.Context, token string) (ValidationResult, error) {
	stored, err := s.store.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return NotAvailable, nil
		}
		return NotAvailable, err
	}
	if !stored.ActiveUsable(s.clock.Now()) {
		return NotAvailable, nil
	}
	return Valid, nil
}

// Promote activates WAITING tokens up to the free capacity, smallest queue
// order first, stamping each with expiry = now + session TTL. A CAS conflict
// on one token does not stop the batch.
func (s *Service) Promote(ctx context.Context) error {
	active, err := s.store.CountActive(ctx)
	if err != nil {
		return err
	}
	capacity := s.cfg.MaxActive - active
	if capacity <= 0 {
		return nil
	}

	waiting, err := s.store.ListWaitingOrdered(ctx, capacity)
	if err != nil {
		return err
	}

	expiresAt := s.clock.Now().Add(s.cfg.SessionTTL)
	for _, token := range waiting {
		err := s.store.CompareAndSetStatus(ctx, token.ID, domain.TokenWaiting, domain.TokenActive, &expiresAt)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			s.logger.WithField("token", token.Token).Error("failed to promote token", err)
			continue
		}
		observability.TokensPromoted.Inc()
	}
	return nil
}

// Release expires an ACTIVE token ahead of its natural expiry, freeing an
// admission slot. Releasing an already-EXPIRED or unknown token is a no-op so
// the settlement consumer stays safe under redelivery.
func (s *Service) Release(ctx context.Context, token string) error {
	stored, err := s.store.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if stored.Status == domain.TokenExpired {
		return nil
	}
	err = s.store.CompareAndSetStatus(ctx, stored.ID, stored.Status, domain.TokenExpired, nil)
	if errors.Is(err, domain.ErrConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	observability.TokensExpired.Inc()
	return nil
}

// ReleaseUser expires the user's current token, if any. Used by the
// expiration sweep, which knows the reservation owner but not the token value.
func (s *Service) ReleaseUser(ctx context.Context, userID uuid.UUID) error {
	token, err := s.store.GetActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.Release(ctx, token.Token)
}

// ExpireOverdue expires ACTIVE tokens whose session window has elapsed.
func (s *Service) ExpireOverdue(ctx context.Context) error {
	overdue, err := s.store.ListActiveExpired(ctx, s.clock.Now())
	if err != nil {
		return err
	}
	for _, token := range overdue {
		err := s.store.CompareAndSetStatus(ctx, token.ID, domain.TokenActive, domain.TokenExpired, nil)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			s.logger.WithField("token", token.Token).Error("failed to expire token", err)
			continue
		}
		observability.TokensExpired.Inc()
	}
	return nil
}
