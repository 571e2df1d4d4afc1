package crdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/concert-reservations/internal/domain"
)

// ConcertStore is the concert catalog: concerts and their scheduled options.
type ConcertStore struct {
	repo *Repository
}

func NewConcertStore(repo *Repository) *ConcertStore {
	return &ConcertStore{repo: repo}
}

func (s *ConcertStore) Get(ctx context.Context, id uuid.UUID) (domain.Concert, error) {
	var c domain.Concert
	err := s.repo.db(ctx).QueryRow(ctx, `
		SELECT id, name, singer FROM concerts WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Singer)
	if err == pgx.ErrNoRows {
		return domain.Concert{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Concert{}, err
	}
	return c, nil
}

func (s *ConcertStore) List(ctx context.Context) ([]domain.Concert, error) {
	rows, err := s.repo.db(ctx).Query(ctx, `
		SELECT id, name, singer FROM concerts ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var concerts []domain.Concert
	for rows.Next() {
		var c domain.Concert
		if err := rows.Scan(&c.ID, &c.Name, &c.Singer); err != nil {
			return nil, err
		}
		concerts = append(concerts, c)
	}
	return concerts, rows.Err()
}

func (s *ConcertStore) ListOptions(ctx context.Context, concertID uuid.UUID) ([]domain.ConcertOption, error) {
	rows, err := s.repo.db(ctx).Query(ctx, `
		SELECT id, concert_id, venue, concert_at FROM concert_options
		WHERE concert_id = $1 ORDER BY concert_at ASC
	`, concertID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var options []domain.ConcertOption
	for rows.Next() {
		var opt domain.ConcertOption
		if err := rows.Scan(&opt.ID, &opt.ConcertID, &opt.Venue, &opt.ConcertAt); err != nil {
			return nil, err
		}
		options = append(options, opt)
	}
	return options, rows.Err()
}
