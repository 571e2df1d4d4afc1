package crdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/concert-reservations/internal/domain"
)

// ReservationStore is the reservation table. It embeds the repository's
// transaction runner so the reservation engine can compose multi-entity
// transitions.
type ReservationStore struct {
	repo *Repository
}

func NewReservationStore(repo *Repository) *ReservationStore {
	return &ReservationStore{repo: repo}
}

func (s *ReservationStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.repo.WithTx(ctx, fn)
}

func (s *ReservationStore) Insert(ctx context.Context, res domain.Reservation) error {
	_, err := s.repo.db(ctx).Exec(ctx, `
		INSERT INTO reservations (id, user_id, seat_id, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, res.ID, res.UserID, res.SeatID, string(res.Status), res.CreatedAt, res.ExpiresAt)
	return err
}

func (s *ReservationStore) Get(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	var res domain.Reservation
	var status string
	err := s.repo.db(ctx).QueryRow(ctx, `
		SELECT id, user_id, seat_id, status, created_at, expires_at
		FROM reservations WHERE id = $1
	`, id).Scan(&res.ID, &res.UserID, &res.SeatID, &status, &res.CreatedAt, &res.ExpiresAt)
	if err == pgx.ErrNoRows {
		return domain.Reservation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Reservation{}, err
	}
	res.Status = domain.ReservationStatus(status)
	return res, nil
}

// CompareAndSetStatus gives the first writer of a terminal status the win;
// the loser observes domain.ErrConflict.
func (s *ReservationStore) CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next domain.ReservationStatus) error {
	result, err := s.repo.db(ctx).Exec(ctx, `
		UPDATE reservations SET status = $3 WHERE id = $1 AND status = $2
	`, id, string(expected), string(next))
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *ReservationStore) ListTempAssignedExpired(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	rows, err := s.repo.db(ctx).Query(ctx, `
		SELECT id, user_id, seat_id, status, created_at, expires_at
		FROM reservations WHERE status = 'TEMP_ASSIGNED' AND expires_at <= $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		var status string
		if err := rows.Scan(&res.ID, &res.UserID, &res.SeatID, &status, &res.CreatedAt, &res.ExpiresAt); err != nil {
			return nil, err
		}
		res.Status = domain.ReservationStatus(status)
		out = append(out, res)
	}
	return out, rows.Err()
}
