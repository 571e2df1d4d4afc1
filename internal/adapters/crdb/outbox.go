package crdb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/concert-reservations/internal/domain"
)

type OutboxRecord struct {
	ID          uuid.UUID
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
	Status      string // NEW, PUBLISHED
	DedupeKey   string
}

// OutboxStore stages events in the database so they commit atomically with
// the state change that produced them. A relay publishes NEW records to
// RabbitMQ at least once.
type OutboxStore struct {
	repo *Repository
}

func NewOutboxStore(repo *Repository) *OutboxStore {
	return &OutboxStore{repo: repo}
}

func (s *OutboxStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.repo.WithTx(ctx, fn)
}

// Enqueue inserts a NEW outbox record. Call it inside the producing
// transaction so the event exists iff the state change committed.
func (s *OutboxStore) Enqueue(ctx context.Context, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.repo.db(ctx).Exec(ctx, `
		INSERT INTO outbox (id, event_type, payload_json, status, dedupe_key)
		VALUES ($1, $2, $3, 'NEW', $4)
	`, uuid.New(), eventType, data, uuid.NewString())
	return err
}

// GetUnpublished locks a batch of NEW records for the caller. The lock only
// holds for the enclosing transaction, so call it inside WithTx when another
// relay may be running.
func (s *OutboxStore) GetUnpublished(ctx context.Context, limit int) ([]OutboxRecord, error) {
	rows, err := s.repo.db(ctx).Query(ctx, `
		SELECT id, event_type, payload_json, created_at, published_at, status, dedupe_key
		FROM outbox WHERE status = 'NEW' ORDER BY created_at ASC LIMIT $1 FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []OutboxRecord
	for rows.Next() {
		var rec OutboxRecord
		err := rows.Scan(&rec.ID, &rec.EventType, &rec.Payload, &rec.CreatedAt, &rec.PublishedAt, &rec.Status, &rec.DedupeKey)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *OutboxStore) MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	result, err := s.repo.db(ctx).Exec(ctx, `
		UPDATE outbox SET status = 'PUBLISHED', published_at = $2 WHERE id = $1 AND status = 'NEW'
	`, id, publishedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

// OldestUnpublishedAge reports the lag of the outbox relay for metrics.
func (s *OutboxStore) OldestUnpublishedAge(ctx context.Context, now time.Time) (time.Duration, error) {
	var createdAt time.Time
	err := s.repo.db(ctx).QueryRow(ctx, `
		SELECT created_at FROM outbox WHERE status = 'NEW' ORDER BY created_at ASC LIMIT 1
	`).Scan(&createdAt)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return now.Sub(createdAt), nil
}
