package crdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/concert-reservations/internal/domain"
)

type UserStore struct {
	repo *Repository
}

func NewUserStore(repo *Repository) *UserStore {
	return &UserStore{repo: repo}
}

func (s *UserStore) Get(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	var user domain.User
	err := s.repo.db(ctx).QueryRow(ctx, `
		SELECT id, name, points FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.Name, &user.Points)
	if err == pgx.ErrNoRows {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// DebitPoints subtracts the amount only when the balance covers it. The
// balance guard lives in the WHERE clause so concurrent debits cannot drive
// the balance negative.
func (s *UserStore) DebitPoints(ctx context.Context, userID uuid.UUID, amount int64) error {
	result, err := s.repo.db(ctx).Exec(ctx, `
		UPDATE users SET points = points - $2 WHERE id = $1 AND points >= $2
	`, userID, amount)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		if _, err := s.Get(ctx, userID); err != nil {
			return err
		}
		return domain.ErrNotEnoughPoints
	}
	return nil
}

func (s *UserStore) CreditPoints(ctx context.Context, userID uuid.UUID, amount int64) error {
	result, err := s.repo.db(ctx).Exec(ctx, `
		UPDATE users SET points = points + $2 WHERE id = $1
	`, userID, amount)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
