// Package revwin finalizes revenue windows: it turns a window's revenue
// inputs and value units into ledger writes, share rows, and one immutable
// revenue_windows record per (window, payment type).
package revwin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/clipwave/revcore/internal/alloc"
	"github.com/clipwave/revcore/internal/config"
	"github.com/clipwave/revcore/internal/domain"
	"github.com/clipwave/revcore/internal/metrics"
	"github.com/clipwave/revcore/internal/persistence"
	"github.com/clipwave/revcore/internal/trust"
	"github.com/clipwave/revcore/internal/units"
)

// Window statuses written by the finalizer.
const (
	StatusFinalized = "finalized"
	StatusPending   = domain.StatusPending
)

// PaymentTypeReserve marks platform-side risk reserve ledger rows.
const PaymentTypeReserve = "reserve"

// Inputs are the externally supplied revenue figures for one window, all in
// integer cents.
type Inputs struct {
	GrossCents    int64 `json:"gross_cents"`
	TaxesCents    int64 `json:"taxes_cents"`
	FeesCents     int64 `json:"fees_cents"`
	RefundsCents  int64 `json:"refunds_cents"`
	CostsEstCents int64 `json:"costs_est_cents"`
}

// Validate rejects negative figures and deductions exceeding gross.
func (in Inputs) Validate() error {
	if in.GrossCents < 0 || in.TaxesCents < 0 || in.FeesCents < 0 || in.RefundsCents < 0 || in.CostsEstCents < 0 {
		return fmt.Errorf("%w: revenue inputs must be non-negative", domain.ErrValidation)
	}
	if in.TaxesCents+in.FeesCents+in.RefundsCents > in.GrossCents {
		return fmt.Errorf("%w: deductions exceed gross revenue", domain.ErrValidation)
	}
	return nil
}

// Summary reports the outcome of one finalization.
type Summary struct {
	RunID            string          `json:"run_id"`
	WindowID         int64           `json:"window_id"`
	Window           domain.Window   `json:"window"`
	PaymentType      string          `json:"payment_type"`
	Status           string          `json:"status"`
	NetRevenueCents  int64           `json:"net_revenue_cents"`
	CreatorPoolCents int64           `json:"creator_pool_cents"`
	AllocatedCents   int64           `json:"allocated_cents"`
	UnallocatedCents int64           `json:"unallocated_cents"`
	ReserveCents     int64           `json:"reserve_cents"`
	Creators         int             `json:"creators"`
	PerCreatorCents  map[int64]int64 `json:"per_creator_cents,omitempty"`
	DryRun           bool            `json:"dry_run,omitempty"`
	AlreadyFinalized bool            `json:"already_finalized,omitempty"`
}

// Finalizer runs payout finalization for revenue windows.
type Finalizer struct {
	repos   *persistence.Repository
	builder *units.Builder
	params  config.Params
	now     func() time.Time
}

// New creates a finalizer.
func New(repos *persistence.Repository, builder *units.Builder, params config.Params) *Finalizer {
	return &Finalizer{repos: repos, builder: builder, params: params, now: time.Now}
}

// Finalize allocates the creator pool for one (window, payment type) run.
// The run is idempotent: a window already recorded is returned as-is with no
// new writes. dryRun computes everything but writes nothing.
func (f *Finalizer) Finalize(ctx context.Context, win domain.Window, paymentType string, in Inputs, dryRun bool) (Summary, error) {
	sum := Summary{Window: win, PaymentType: paymentType}
	if err := win.Validate(); err != nil {
		return sum, err
	}
	if paymentType == "" {
		return sum, fmt.Errorf("%w: payment type required", domain.ErrValidation)
	}
	if err := in.Validate(); err != nil {
		return sum, err
	}

	if dryRun {
		return f.finalizeLocked(ctx, win, paymentType, in, true)
	}

	out := sum
	err := f.repos.Revenue.WithWindowLock(ctx, win, paymentType, func(ctx context.Context) error {
		var err error
		out, err = f.finalizeLocked(ctx, win, paymentType, in, false)
		return err
	})
	return out, err
}

func (f *Finalizer) finalizeLocked(ctx context.Context, win domain.Window, paymentType string, in Inputs, dryRun bool) (Summary, error) {
	sum := Summary{Window: win, PaymentType: paymentType, DryRun: dryRun, RunID: uuid.NewString()}

	existing, err := f.repos.Revenue.GetWindow(ctx, win, paymentType)
	if err != nil {
		return sum, fmt.Errorf("check existing window: %w", err)
	}
	if existing != nil {
		log.Info().
			Str("window", win.String()).
			Str("payment_type", paymentType).
			Int64("window_id", existing.ID).
			Msg("revenue window already finalized")
		sum.WindowID = existing.ID
		sum.Status = existing.Status
		sum.NetRevenueCents = netCents(Inputs{
			GrossCents: existing.GrossRevenueCents, TaxesCents: existing.TaxesCents,
			FeesCents: existing.FeesCents, RefundsCents: existing.RefundsCents,
		})
		sum.CreatorPoolCents = existing.CreatorPoolCents
		sum.UnallocatedCents = existing.UnallocatedCents
		sum.AllocatedCents = existing.CreatorPoolCents - existing.UnallocatedCents
		sum.AlreadyFinalized = true
		return sum, nil
	}

	sum.NetRevenueCents = netCents(in)
	pool, guardrailed := creatorPool(in, f.params)
	sum.CreatorPoolCents = pool
	sum.ReserveCents = reserveCents(sum.NetRevenueCents, f.params)

	if guardrailed {
		if dryRun {
			sum.Status = StatusFinalized
			return sum, fmt.Errorf("window %s %s: %w", win, paymentType, domain.ErrMarginGuardrail)
		}
		id, err := f.insertWindow(ctx, win, paymentType, in, 0, 0, StatusFinalized,
			map[string]interface{}{"reason": "margin_guardrail", "run_id": sum.RunID})
		if err != nil {
			return sum, err
		}
		sum.WindowID = id
		sum.Status = StatusFinalized
		metrics.WindowFinalized(paymentType, "guardrail")
		log.Warn().
			Str("window", win.String()).
			Int64("net_cents", sum.NetRevenueCents).
			Msg("margin guardrail zeroed creator pool")
		return sum, fmt.Errorf("window %s %s: %w", win, paymentType, domain.ErrMarginGuardrail)
	}

	build, err := f.builder.Build(ctx, win, f.params)
	if err != nil {
		return sum, err
	}
	creatorUsers, err := f.repos.Users.GetByIDs(ctx, trust.SortedIDs(build.PerCreator))
	if err != nil {
		return sum, fmt.Errorf("load creators: %w", err)
	}

	allocation := alloc.Allocate(pool, build.PerCreator, creatorUsers, f.params)
	sum.AllocatedCents = allocation.AllocatedCents
	sum.UnallocatedCents = allocation.UnallocatedCents
	sum.Creators = len(allocation.PerCreatorCents)
	sum.PerCreatorCents = allocation.PerCreatorCents
	sum.Status = StatusFinalized

	if dryRun {
		return sum, nil
	}

	txnIDs, err := f.writeLedger(ctx, paymentType, allocation.PerCreatorCents, sum.ReserveCents)
	if err != nil {
		return sum, f.compensate(ctx, win, paymentType, in, txnIDs, err)
	}

	windowID, err := f.insertWindow(ctx, win, paymentType, in, pool, allocation.UnallocatedCents, StatusFinalized,
		map[string]interface{}{"creators": sum.Creators, "run_id": sum.RunID})
	if err != nil {
		return sum, f.compensate(ctx, win, paymentType, in, txnIDs, err)
	}
	sum.WindowID = windowID

	shares := alloc.BuildShares(windowID, build, allocation.PerCreatorCents)
	if len(shares) > 0 {
		if err := f.repos.Revenue.InsertShares(ctx, shares); err != nil {
			// The window row exists; share rows are audit detail. Surface the
			// error without unwinding the payout.
			return sum, fmt.Errorf("insert share rows for window %d: %w", windowID, err)
		}
	}

	metrics.WindowFinalized(paymentType, "finalized")
	metrics.CentsAllocated(paymentType, allocation.AllocatedCents)
	metrics.CentsUnallocated(paymentType, allocation.UnallocatedCents)
	log.Info().
		Str("window", win.String()).
		Str("payment_type", paymentType).
		Int64("window_id", windowID).
		Int64("pool_cents", pool).
		Int64("allocated_cents", allocation.AllocatedCents).
		Int("creators", sum.Creators).
		Msg("revenue window finalized")
	return sum, nil
}

// writeLedger inserts creator inflows in ascending creator id order, then the
// platform reserve marker. Returns every inserted row id for compensation.
func (f *Finalizer) writeLedger(ctx context.Context, paymentType string, perCreator map[int64]int64, reserve int64) ([]int64, error) {
	now := f.now().UTC()
	var ids []int64
	for _, creatorID := range trust.SortedIDs(perCreator) {
		id, err := f.repos.Ledger.InsertInflow(ctx, domain.Transaction{
			CreatedAt:   now,
			Recipient:   creatorID,
			AmountCents: perCreator[creatorID],
			PaymentType: paymentType,
			Status:      domain.StatusPending,
			Direction:   domain.DirectionInflow,
		})
		if err != nil {
			return ids, fmt.Errorf("insert inflow for creator %d: %w", creatorID, err)
		}
		ids = append(ids, id)
	}

	if reserve > 0 {
		id, err := f.repos.Ledger.InsertOutflowMarker(ctx, domain.Transaction{
			CreatedAt:   now,
			AmountCents: reserve,
			PaymentType: PaymentTypeReserve,
			Status:      domain.StatusOnHold,
			Direction:   domain.DirectionOutflow,
		})
		if err != nil {
			return ids, fmt.Errorf("insert reserve marker: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// compensate unwinds just-written ledger rows after a mid-run failure. If the
// unwind itself fails the run is left partially committed: a pending window
// row records the fact for operators and ErrPartialCommit is returned.
func (f *Finalizer) compensate(ctx context.Context, win domain.Window, paymentType string, in Inputs, txnIDs []int64, cause error) error {
	if len(txnIDs) == 0 {
		return cause
	}
	if err := f.repos.Ledger.DeleteByIDs(ctx, txnIDs); err == nil {
		log.Warn().
			Str("window", win.String()).
			Int("reversed", len(txnIDs)).
			Err(cause).
			Msg("finalization failed, ledger writes reversed")
		return cause
	}

	meta := map[string]interface{}{
		"reason":          "partial_commit",
		"transaction_ids": txnIDs,
		"error":           cause.Error(),
	}
	if _, err := f.insertWindow(ctx, win, paymentType, in, 0, 0, StatusPending, meta); err != nil {
		log.Error().
			Str("window", win.String()).
			Err(err).
			Msg("could not record partial commit marker")
	}
	metrics.WindowFinalized(paymentType, "partial_commit")
	log.Error().
		Str("window", win.String()).
		Ints64("transaction_ids", txnIDs).
		Err(cause).
		Msg("ledger unwind failed, window left partially committed")
	return fmt.Errorf("%w: window %s %s: %v", domain.ErrPartialCommit, win, paymentType, cause)
}

func (f *Finalizer) insertWindow(ctx context.Context, win domain.Window, paymentType string, in Inputs, pool, unallocated int64, status string, meta map[string]interface{}) (int64, error) {
	id, err := f.repos.Revenue.InsertWindow(ctx, domain.RevenueWindow{
		WindowStart:       win.Start,
		WindowEnd:         win.End,
		PaymentType:       paymentType,
		GrossRevenueCents: in.GrossCents,
		TaxesCents:        in.TaxesCents,
		FeesCents:         in.FeesCents,
		RefundsCents:      in.RefundsCents,
		PoolPct:           f.params.PoolPct,
		MarginTarget:      f.params.MarginTarget,
		PlatformFeePct:    f.params.PlatformFeePct,
		RiskReservePct:    f.params.RiskReservePct,
		CostsEstCents:     in.CostsEstCents,
		CreatorPoolCents:  pool,
		UnallocatedCents:  unallocated,
		Status:            status,
		Meta:              meta,
		CreatedAt:         f.now().UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("insert revenue window: %w", err)
	}
	return id, nil
}

// netCents is gross minus taxes, fees, and refunds.
func netCents(in Inputs) int64 {
	return in.GrossCents - in.TaxesCents - in.FeesCents - in.RefundsCents
}

// creatorPool computes the payable pool under the margin guardrail. The pool
// is pool_pct of net revenue, but never more than what keeps the platform at
// its margin target after estimated costs. guardrailed reports a zeroed pool.
func creatorPool(in Inputs, params config.Params) (int64, bool) {
	net := decimal.NewFromInt(netCents(in))
	gross := decimal.NewFromInt(in.GrossCents)
	costs := decimal.NewFromInt(in.CostsEstCents)

	capByMargin := net.Sub(costs).Sub(decimal.NewFromFloat(params.MarginTarget).Mul(gross)).Floor()
	if capByMargin.IsNegative() {
		capByMargin = decimal.Zero
	}

	pool := decimal.NewFromFloat(params.PoolPct).Mul(net).Round(0)
	if pool.GreaterThan(capByMargin) {
		pool = capByMargin
	}
	cents := pool.IntPart()
	if cents <= 0 {
		return 0, true
	}
	return cents, false
}

// reserveCents is the platform-side risk hold for the window.
func reserveCents(net int64, params config.Params) int64 {
	if net <= 0 {
		return 0
	}
	return decimal.NewFromFloat(params.RiskReservePct).
		Mul(decimal.NewFromInt(net)).
		Round(0).
		IntPart()
}

// IsGuardrailed reports whether err is the margin guardrail outcome. The
// window row is still recorded in that case.
func IsGuardrailed(err error) bool {
	return errors.Is(err, domain.ErrMarginGuardrail)
}
