package crdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/concert-reservations/internal/domain"
)

// TokenStore is the queue-token table. Queue order comes from a dedicated
// sequence so issuance order is globally monotonic and survives restarts.
type TokenStore struct {
	repo *Repository
}

func NewTokenStore(repo *Repository) *TokenStore {
	return &TokenStore{repo: repo}
}

const tokenColumns = `id, token, user_id, queue_order, status, issued_at, expires_at`

func scanToken(row pgx.Row) (domain.QueueToken, error) {
	var t domain.QueueToken
	var status string
	err := row.Scan(&t.ID, &t.Token, &t.UserID, &t.QueueOrder, &status, &t.IssuedAt, &t.ExpiresAt)
	if err == pgx.ErrNoRows {
		return domain.QueueToken{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.QueueToken{}, err
	}
	t.Status = domain.TokenStatus(status)
	return t, nil
}

func (s *TokenStore) GetByToken(ctx context.Context, token string) (domain.QueueToken, error) {
	row := s.repo.db(ctx).QueryRow(ctx, `
		SELECT `+tokenColumns+` FROM queue_tokens WHERE token = $1
	`, token)
	return scanToken(row)
}

func (s *TokenStore) GetActiveByUser(ctx context.Context, userID uuid.UUID) (domain.QueueToken, error) {
	row := s.repo.db(ctx).QueryRow(ctx, `
		SELECT `+tokenColumns+` FROM queue_tokens
		WHERE user_id = $1 AND status <> 'EXPIRED'
		ORDER BY issued_at DESC LIMIT 1
	`, userID)
	return scanToken(row)
}

// Insert stores a fresh token. The partial unique index on user_id backstops
// the service-level duplicate check, so a double-submit race that slips past
// it surfaces as ErrDuplicateToken rather than a raw constraint error.
func (s *TokenStore) Insert(ctx context.Context, token domain.QueueToken) error {
	_, err := s.repo.db(ctx).Exec(ctx, `
		INSERT INTO queue_tokens (id, token, user_id, queue_order, status, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, token.ID, token.Token, token.UserID, token.QueueOrder, string(token.Status), token.IssuedAt, token.ExpiresAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateToken
	}
	return err
}

// CompareAndSetStatus applies the transition only when the stored status still
// equals expected. A nil expiresAt keeps the stored expiry.
func (s *TokenStore) CompareAndSetStatus(ctx context.Context, tokenID uuid.UUID, expected, next domain.TokenStatus, expiresAt *time.Time) error {
	result, err := s.repo.db(ctx).Exec(ctx, `
		UPDATE queue_tokens SET status = $3, expires_at = COALESCE($4, expires_at)
		WHERE id = $1 AND status = $2
	`, tokenID, string(expected), string(next), expiresAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *TokenStore) NextQueueOrder(ctx context.Context) (int64, error) {
	var order int64
	err := s.repo.db(ctx).QueryRow(ctx, `SELECT nextval('queue_order_seq')`).Scan(&order)
	return order, err
}

// ListWaitingOrdered returns WAITING tokens in promotion order: queue order
// ascending, issuance time as the tie-break.
func (s *TokenStore) ListWaitingOrdered(ctx context.Context, limit int) ([]domain.QueueToken, error) {
	rows, err := s.repo.db(ctx).Query(ctx, `
		SELECT `+tokenColumns+` FROM queue_tokens
		WHERE status = 'WAITING'
		ORDER BY queue_order ASC, issued_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTokens(rows)
}

func (s *TokenStore) ListActiveExpired(ctx context.Context, now time.Time) ([]domain.QueueToken, error) {
	rows, err := s.repo.db(ctx).Query(ctx, `
		SELECT `+tokenColumns+` FROM queue_tokens
		WHERE status = 'ACTIVE' AND expires_at <= $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTokens(rows)
}

func (s *TokenStore) CountActive(ctx context.Context) (int, error) {
	var n int
	err := s.repo.db(ctx).QueryRow(ctx, `
		SELECT count(*) FROM queue_tokens WHERE status = 'ACTIVE'
	`).Scan(&n)
	return n, err
}

func (s *TokenStore) CountWaitingBefore(ctx context.Context, queueOrder int64) (int, error) {
	var n int
	err := s.repo.db(ctx).QueryRow(ctx, `
		SELECT count(*) FROM queue_tokens WHERE status = 'WAITING' AND queue_order < $1
	`, queueOrder).Scan(&n)
	return n, err
}

func collectTokens(rows pgx.Rows) ([]domain.QueueToken, error) {
	var tokens []domain.QueueToken
	for rows.Next() {
		var t domain.QueueToken
		var status string
		if err := rows.Scan(&t.ID, &t.Token, &t.UserID, &t.QueueOrder, &status, &t.IssuedAt, &t.ExpiresAt); err != nil {
			return nil, err
		}
		t.Status = domain.TokenStatus(status)
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
