package persistence

import (
	"context"
	"time"

	"github.com/clipwave/revcore/internal/domain"
)

// EventPage is one keyset-paginated batch of events ordered by
// (video_id, ts, event_id).
type EventPage struct {
	Events []domain.Event
	// Cursor resumes after the last event in this page. Zero-valued when the
	// page is empty.
	Cursor EventCursor
	// HasMore reports whether another page may follow.
	HasMore bool
}

// EventCursor is the keyset position after a page.
type EventCursor struct {
	VideoID int64
	TS      time.Time
	EventID int64
}

// EventsRepo reads the append-only event log.
type EventsRepo interface {
	// Page fetches up to limit events with ts in the window, ordered by
	// (video_id, ts, event_id), resuming after cursor. A nil videoIDs filter
	// means all videos.
	Page(ctx context.Context, win domain.Window, videoIDs []int64, cursor EventCursor, limit int) (EventPage, error)

	// VideoIDsInWindow returns distinct video ids with at least one event in
	// the window, ascending.
	VideoIDsInWindow(ctx context.Context, win domain.Window) ([]int64, error)

	// ForVideo returns all events for one video in the window ordered by ts.
	ForVideo(ctx context.Context, videoID int64, win domain.Window) ([]domain.Event, error)
}

// UsersRepo reads user rows and applies allocator balance updates.
type UsersRepo interface {
	GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.User, error)

	// AddBalance atomically increments current_balance_cents.
	AddBalance(ctx context.Context, userID int64, deltaCents int64) error
}

// VideosRepo reads video rows and applies aggregate-writer EIS updates.
type VideosRepo interface {
	GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.Video, error)

	// SetCurrentEIS updates eis_current and eis_updated_at.
	SetCurrentEIS(ctx context.Context, videoID int64, eis float64, at time.Time) error

	// TrailingAvgEIS averages eis_current across a creator's videos whose
	// eis_updated_at falls in [asof−lookback, asof]. ok is false when the
	// creator has no scored videos in range.
	TrailingAvgEIS(ctx context.Context, creatorID int64, asof time.Time, lookback time.Duration) (avg float64, ok bool, err error)
}

// AggregatesRepo persists per-window scoring results.
type AggregatesRepo interface {
	// Upsert replaces any existing row for (video_id, window_start,
	// window_end); last writer wins.
	Upsert(ctx context.Context, agg domain.VideoAggregate) error

	// Get returns the aggregate for the exact window, or nil when absent.
	Get(ctx context.Context, videoID int64, win domain.Window) (*domain.VideoAggregate, error)

	// ForVideoRange returns aggregates whose windows fall inside win.
	ForVideoRange(ctx context.Context, videoID int64, win domain.Window) ([]domain.VideoAggregate, error)
}

// RevenueRepo persists revenue windows and per-video shares.
type RevenueRepo interface {
	// InsertWindow creates the revenue window row and returns its id.
	InsertWindow(ctx context.Context, w domain.RevenueWindow) (int64, error)

	// GetWindow returns the window for the idempotency key, or nil.
	GetWindow(ctx context.Context, win domain.Window, paymentType string) (*domain.RevenueWindow, error)

	// InsertShares creates the per-video share rows for a window.
	InsertShares(ctx context.Context, shares []domain.VideoRevShare) error

	// WithWindowLock runs fn while holding an exclusive advisory lock keyed on
	// (window_start, window_end, payment_type).
	WithWindowLock(ctx context.Context, win domain.Window, paymentType string, fn func(ctx context.Context) error) error
}

// LedgerRepo writes immutable transaction rows.
type LedgerRepo interface {
	// InsertInflow writes a creator payout row and increments the recipient's
	// balance in the same storage transaction. Returns the new row id.
	InsertInflow(ctx context.Context, t domain.Transaction) (int64, error)

	// InsertOutflowMarker writes a platform-side marker row (risk reserve)
	// without touching any user balance.
	InsertOutflowMarker(ctx context.Context, t domain.Transaction) (int64, error)

	// DeleteByIDs removes just-inserted rows during compensation, reversing
	// the matching balance increments.
	DeleteByIDs(ctx context.Context, ids []int64) error

	// SumByUser returns inflows minus outflows for a user across all time.
	SumByUser(ctx context.Context, userID int64) (int64, error)
}

// Repository aggregates the core's persistence interfaces.
type Repository struct {
	Events     EventsRepo
	Users      UsersRepo
	Videos     VideosRepo
	Aggregates AggregatesRepo
	Revenue    RevenueRepo
	Ledger     LedgerRepo
}
