package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/clipwave/revcore/internal/domain"
	"github.com/clipwave/revcore/internal/persistence"
)

type ledgerRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewLedgerRepo creates a PostgreSQL transactions repository.
func NewLedgerRepo(db *sqlx.DB, timeout time.Duration) persistence.LedgerRepo {
	return &ledgerRepo{db: db, timeout: timeout}
}

// InsertInflow writes the payout row and the balance increment in one storage
// transaction so the balance invariant holds even under mid-run failure.
func (r *ledgerRepo) InsertInflow(ctx context.Context, t domain.Transaction) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, classify("begin inflow transaction", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO transactions
			(created_at, recipient, amount_cents, payment_type, status, direction)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id`,
		t.CreatedAt, t.Recipient, t.AmountCents, t.PaymentType, t.Status, t.Direction).Scan(&id)
	if err != nil {
		return 0, classify("insert inflow", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users
		SET current_balance_cents = current_balance_cents + $2
		WHERE id = $1`, t.Recipient, t.AmountCents); err != nil {
		return 0, classify("apply inflow balance", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, classify("commit inflow", err)
	}
	return id, nil
}

func (r *ledgerRepo) InsertOutflowMarker(ctx context.Context, t domain.Transaction) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var id int64
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO transactions
			(created_at, recipient, amount_cents, payment_type, status, direction)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id`,
		t.CreatedAt, markerRecipient(t.Recipient), t.AmountCents, t.PaymentType, t.Status, t.Direction).Scan(&id)
	if err != nil {
		return 0, classify("insert outflow marker", err)
	}
	return id, nil
}

// markerRecipient binds the zero recipient of platform-side rows as NULL;
// those rows pay no user and must not reference one.
func markerRecipient(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}

// DeleteByIDs compensates a failed finalization: each inflow delete also
// reverses the balance increment it applied.
func (r *ledgerRepo) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify("begin compensation", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryxContext(ctx, `
		SELECT id, recipient, amount_cents, direction
		FROM transactions
		WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return classify("load compensation rows", err)
	}
	type victim struct {
		id, amount int64
		recipient  sql.NullInt64
		direction  string
	}
	var victims []victim
	for rows.Next() {
		var v victim
		if err := rows.Scan(&v.id, &v.recipient, &v.amount, &v.direction); err != nil {
			rows.Close()
			return classify("scan compensation row", err)
		}
		victims = append(victims, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return classify("iterate compensation rows", err)
	}

	for _, v := range victims {
		if v.direction == domain.DirectionInflow && v.recipient.Valid {
			if _, err := tx.ExecContext(ctx, `
				UPDATE users
				SET current_balance_cents = current_balance_cents - $2
				WHERE id = $1`, v.recipient.Int64, v.amount); err != nil {
				return classify("reverse inflow balance", err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return classify("delete transactions", err)
	}
	if err := tx.Commit(); err != nil {
		return classify("commit compensation", err)
	}
	return nil
}

func (r *ledgerRepo) SumByUser(ctx context.Context, userID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var sum sql.NullInt64
	err := r.db.QueryRowxContext(ctx, `
		SELECT COALESCE(SUM(CASE direction WHEN 'inflow' THEN amount_cents ELSE -amount_cents END), 0)
		FROM transactions
		WHERE recipient = $1`, userID).Scan(&sum)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, classify("sum ledger", err)
	}
	return sum.Int64, nil
}
