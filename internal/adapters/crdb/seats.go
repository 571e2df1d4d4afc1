package crdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/concert-reservations/internal/domain"
)

type SeatStore struct {
	repo *Repository
}

func NewSeatStore(repo *Repository) *SeatStore {
	return &SeatStore{repo: repo}
}

func (s *SeatStore) Get(ctx context.Context, seatID uuid.UUID) (domain.Seat, error) {
	var seat domain.Seat
	var status string
	err := s.repo.db(ctx).QueryRow(ctx, `
		SELECT id, concert_option_id, seat_no, price, status FROM seats WHERE id = $1
	`, seatID).Scan(&seat.ID, &seat.ConcertOptionID, &seat.SeatNo, &seat.Price, &status)
	if err == pgx.ErrNoRows {
		return domain.Seat{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Seat{}, err
	}
	seat.Status = domain.SeatStatus(status)
	return seat, nil
}

// CompareAndSetStatus is the serialization point for seat transitions: the
// conditional update succeeds for exactly one concurrent caller.
func (s *SeatStore) CompareAndSetStatus(ctx context.Context, seatID uuid.UUID, expected, next domain.SeatStatus) error {
	result, err := s.repo.db(ctx).Exec(ctx, `
		UPDATE seats SET status = $3 WHERE id = $1 AND status = $2
	`, seatID, string(expected), string(next))
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *SeatStore) ListAvailable(ctx context.Context, concertOptionID uuid.UUID) ([]domain.Seat, error) {
	rows, err := s.repo.db(ctx).Query(ctx, `
		SELECT id, concert_option_id, seat_no, price, status FROM seats
		WHERE concert_option_id = $1 AND status = 'AVAILABLE'
		ORDER BY seat_no ASC
	`, concertOptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []domain.Seat
	for rows.Next() {
		var seat domain.Seat
		var status string
		if err := rows.Scan(&seat.ID, &seat.ConcertOptionID, &seat.SeatNo, &seat.Price, &status); err != nil {
			return nil, err
		}
		seat.Status = domain.SeatStatus(status)
		seats = append(seats, seat)
	}
	return seats, rows.Err()
}
