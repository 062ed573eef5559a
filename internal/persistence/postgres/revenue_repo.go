package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/clipwave/revcore/internal/domain"
	"github.com/clipwave/revcore/internal/persistence"
)

type revenueRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRevenueRepo creates a PostgreSQL revenue-windows repository.
func NewRevenueRepo(db *sqlx.DB, timeout time.Duration) persistence.RevenueRepo {
	return &revenueRepo{db: db, timeout: timeout}
}

func (r *revenueRepo) InsertWindow(ctx context.Context, w domain.RevenueWindow) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	metaJSON, err := json.Marshal(w.Meta)
	if err != nil {
		return 0, classify("marshal revenue window meta", err)
	}

	var id int64
	err = r.db.QueryRowxContext(ctx, `
		INSERT INTO revenue_windows
			(window_start, window_end, payment_type, gross_revenue_cents,
			 taxes_cents, fees_cents, refunds_cents, pool_pct, margin_target,
			 platform_fee_pct, risk_reserve_pct, costs_est_cents,
			 creator_pool_cents, unallocated_cents, status, meta)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING id`,
		w.WindowStart, w.WindowEnd, w.PaymentType, w.GrossRevenueCents,
		w.TaxesCents, w.FeesCents, w.RefundsCents, w.PoolPct, w.MarginTarget,
		w.PlatformFeePct, w.RiskReservePct, w.CostsEstCents,
		w.CreatorPoolCents, w.UnallocatedCents, w.Status, metaJSON).Scan(&id)
	if err != nil {
		return 0, classify("insert revenue window", err)
	}
	return id, nil
}

func (r *revenueRepo) GetWindow(ctx context.Context, win domain.Window, paymentType string) (*domain.RevenueWindow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowxContext(ctx, `
		SELECT id, window_start, window_end, payment_type, gross_revenue_cents,
		       taxes_cents, fees_cents, refunds_cents, pool_pct, margin_target,
		       platform_fee_pct, risk_reserve_pct, costs_est_cents,
		       creator_pool_cents, unallocated_cents, status, meta, created_at
		FROM revenue_windows
		WHERE window_start = $1 AND window_end = $2 AND payment_type = $3`,
		win.Start, win.End, paymentType)

	var w domain.RevenueWindow
	var metaJSON []byte
	err := row.Scan(&w.ID, &w.WindowStart, &w.WindowEnd, &w.PaymentType,
		&w.GrossRevenueCents, &w.TaxesCents, &w.FeesCents, &w.RefundsCents,
		&w.PoolPct, &w.MarginTarget, &w.PlatformFeePct, &w.RiskReservePct,
		&w.CostsEstCents, &w.CreatorPoolCents, &w.UnallocatedCents,
		&w.Status, &metaJSON, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("get revenue window", err)
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &w.Meta); err != nil {
			return nil, classify("unmarshal revenue window meta", err)
		}
	}
	return &w, nil
}

func (r *revenueRepo) InsertShares(ctx context.Context, shares []domain.VideoRevShare) error {
	if len(shares) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(shares)/100+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify("begin shares transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO video_rev_shares
			(revenue_window_id, video_id, eng_units, eis_avg, vu, share_pct,
			 allocated_cents, meta)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`)
	if err != nil {
		return classify("prepare shares insert", err)
	}
	defer stmt.Close()

	for _, s := range shares {
		metaJSON, err := json.Marshal(s.Meta)
		if err != nil {
			return classify("marshal share meta", err)
		}
		if _, err := stmt.ExecContext(ctx,
			s.RevenueWindowID, s.VideoID, s.EngUnits, s.EISAvg, s.VU,
			s.SharePct, s.AllocatedCents, metaJSON); err != nil {
			return classify("insert video rev share", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return classify("commit shares", err)
	}
	return nil
}

// WithWindowLock serializes finalization per (start, end, payment_type) with
// a transaction-scoped advisory lock; the lock drops with the transaction.
func (r *revenueRepo) WithWindowLock(ctx context.Context, win domain.Window, paymentType string, fn func(ctx context.Context) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify("begin lock transaction", err)
	}
	defer tx.Rollback()

	key := windowLockKey(win, paymentType)
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
		return classify("acquire window lock", err)
	}

	if err := fn(ctx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify("release window lock", err)
	}
	return nil
}

// windowLockKey folds the idempotency tuple into the 64-bit advisory lock
// keyspace.
func windowLockKey(win domain.Window, paymentType string) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%d|%s", win.Start.UnixNano(), win.End.UnixNano(), paymentType)
	return int64(h.Sum64())
}
