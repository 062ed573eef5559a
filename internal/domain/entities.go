package domain

import (
	"time"
)

// EventType enumerates the raw viewer event kinds the platform records.
type EventType string

const (
	EventView    EventType = "view"
	EventLike    EventType = "like"
	EventComment EventType = "comment"
	EventShare   EventType = "share"
	EventReport  EventType = "report"
	EventFollow  EventType = "follow"
	EventPause   EventType = "pause"
)

// Valid reports whether t is one of the recorded event kinds.
func (t EventType) Valid() bool {
	switch t {
	case EventView, EventLike, EventComment, EventShare, EventReport, EventFollow, EventPause:
		return true
	}
	return false
}

// User is a platform account. Trust and bot flags are maintained by the
// external KYC/trust collaborators; the core only reads them. The balance is
// mutated only by the allocator's ledger writes.
type User struct {
	ID                  int64    `json:"id" db:"id"`
	IsCreator           bool     `json:"is_creator" db:"is_creator"`
	LikelyBot           bool     `json:"likely_bot" db:"likely_bot"`
	KYCLevel            *int     `json:"kyc_level,omitempty" db:"kyc_level"`
	CreatorTrustScore   *float64 `json:"creator_trust_score,omitempty" db:"creator_trust_score"`
	ViewerTrustScore    *float64 `json:"viewer_trust_score,omitempty" db:"viewer_trust_score"`
	CurrentBalanceCents int64    `json:"current_balance_cents" db:"current_balance_cents"`
}

// Video is a creator upload. EISCurrent and EISUpdatedAt are written only by
// the aggregate writer.
type Video struct {
	ID           int64     `json:"id" db:"id"`
	CreatorID    int64     `json:"creator_id" db:"creator_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	DurationS    float64   `json:"duration_s" db:"duration_s"`
	EISCurrent   float64   `json:"eis_current" db:"eis_current"`
	EISUpdatedAt time.Time `json:"eis_updated_at" db:"eis_updated_at"`
}

// Event is one append-only viewer action row. DeviceID and IPHash are
// nullable; the extractor treats missing values as unattributable but still
// counts the event.
type Event struct {
	EventID  int64     `json:"event_id" db:"event_id"`
	VideoID  int64     `json:"video_id" db:"video_id"`
	UserID   int64     `json:"user_id" db:"user_id"`
	Type     EventType `json:"event_type" db:"event_type"`
	TS       time.Time `json:"ts" db:"ts"`
	DeviceID *string   `json:"device_id,omitempty" db:"device_id"`
	IPHash   *string   `json:"ip_hash,omitempty" db:"ip_hash"`
}

// VideoAggregate is the persisted scoring result for one (video, window)
// pair. Append-only with last-writer-wins replacement on the window key.
type VideoAggregate struct {
	VideoID             int64                  `json:"video_id" db:"video_id"`
	WindowStart         time.Time              `json:"window_start" db:"window_start"`
	WindowEnd           time.Time              `json:"window_end" db:"window_end"`
	Features            map[string]interface{} `json:"features" db:"features"`
	CommentQuality      float64                `json:"comment_quality" db:"comment_quality"`
	LikeIntegrity       float64                `json:"like_integrity" db:"like_integrity"`
	ReportCredibility   float64                `json:"report_credibility" db:"report_credibility"`
	AuthenticEngagement float64                `json:"authentic_engagement" db:"authentic_engagement"`
	EIS                 float64                `json:"eis" db:"eis"`
}

// RevenueWindow records one finalized payout run and every parameter that
// shaped it. Exactly one row per (window_start, window_end, payment_type).
type RevenueWindow struct {
	ID                int64                  `json:"id" db:"id"`
	WindowStart       time.Time              `json:"window_start" db:"window_start"`
	WindowEnd         time.Time              `json:"window_end" db:"window_end"`
	PaymentType       string                 `json:"payment_type" db:"payment_type"`
	GrossRevenueCents int64                  `json:"gross_revenue_cents" db:"gross_revenue_cents"`
	TaxesCents        int64                  `json:"taxes_cents" db:"taxes_cents"`
	FeesCents         int64                  `json:"fees_cents" db:"fees_cents"`
	RefundsCents      int64                  `json:"refunds_cents" db:"refunds_cents"`
	PoolPct           float64                `json:"pool_pct" db:"pool_pct"`
	MarginTarget      float64                `json:"margin_target" db:"margin_target"`
	PlatformFeePct    float64                `json:"platform_fee_pct" db:"platform_fee_pct"`
	RiskReservePct    float64                `json:"risk_reserve_pct" db:"risk_reserve_pct"`
	CostsEstCents     int64                  `json:"costs_est_cents" db:"costs_est_cents"`
	CreatorPoolCents  int64                  `json:"creator_pool_cents" db:"creator_pool_cents"`
	UnallocatedCents  int64                  `json:"unallocated_cents" db:"unallocated_cents"`
	Status            string                 `json:"status" db:"status"`
	Meta              map[string]interface{} `json:"meta" db:"meta"`
	CreatedAt         time.Time              `json:"created_at" db:"created_at"`
}

// VideoRevShare is the per-video breakdown of a creator's allocation within
// one revenue window.
type VideoRevShare struct {
	RevenueWindowID int64                  `json:"revenue_window_id" db:"revenue_window_id"`
	VideoID         int64                  `json:"video_id" db:"video_id"`
	EngUnits        int64                  `json:"eng_units" db:"eng_units"`
	EISAvg          float64                `json:"eis_avg" db:"eis_avg"`
	VU              float64                `json:"vu" db:"vu"`
	SharePct        float64                `json:"share_pct" db:"share_pct"`
	AllocatedCents  int64                  `json:"allocated_cents" db:"allocated_cents"`
	Meta            map[string]interface{} `json:"meta" db:"meta"`
}

// Transaction directions.
const (
	DirectionInflow  = "inflow"
	DirectionOutflow = "outflow"
)

// Transaction statuses used by the core.
const (
	StatusPending = "pending"
	StatusOnHold  = "on_hold"
)

// Transaction is one immutable ledger row. Inflows are creator payouts;
// outflows are platform-side markers such as risk reserves and carry no
// recipient (the zero Recipient is stored as NULL).
type Transaction struct {
	ID          int64     `json:"id" db:"id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	Recipient   int64     `json:"recipient" db:"recipient"`
	AmountCents int64     `json:"amount_cents" db:"amount_cents"`
	PaymentType string    `json:"payment_type" db:"payment_type"`
	Status      string    `json:"status" db:"status"`
	Direction   string    `json:"direction" db:"direction"`
}
