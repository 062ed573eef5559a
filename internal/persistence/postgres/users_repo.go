package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/clipwave/revcore/internal/domain"
	"github.com/clipwave/revcore/internal/persistence"
)

type usersRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewUsersRepo creates a PostgreSQL users repository.
func NewUsersRepo(db *sqlx.DB, timeout time.Duration) persistence.UsersRepo {
	return &usersRepo{db: db, timeout: timeout}
}

func (r *usersRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.User, error) {
	if len(ids) == 0 {
		return map[int64]domain.User{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, is_creator, likely_bot, kyc_level, creator_trust_score,
		       viewer_trust_score, current_balance_cents
		FROM users
		WHERE id = ANY($1)`

	rows, err := r.db.QueryxContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, classify("query users", err)
	}
	defer rows.Close()

	users := make(map[int64]domain.User, len(ids))
	for rows.Next() {
		var u domain.User
		if err := rows.StructScan(&u); err != nil {
			return nil, classify("scan user", err)
		}
		users[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate users", err)
	}
	return users, nil
}

func (r *usersRepo) AddBalance(ctx context.Context, userID int64, deltaCents int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET current_balance_cents = current_balance_cents + $2
		WHERE id = $1`, userID, deltaCents)
	if err != nil {
		return classify("update user balance", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update user balance: no user with id %d", userID)
	}
	return nil
}
