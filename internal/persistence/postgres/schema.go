package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Schema is the DDL for the core's tables and required indexes. Applied by
// the operator `schema` command; production deployments run it through their
// own migration tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id                     BIGSERIAL PRIMARY KEY,
    is_creator             BOOLEAN NOT NULL DEFAULT FALSE,
    likely_bot             BOOLEAN NOT NULL DEFAULT FALSE,
    kyc_level              INT,
    creator_trust_score    DOUBLE PRECISION,
    viewer_trust_score     DOUBLE PRECISION,
    current_balance_cents  BIGINT NOT NULL DEFAULT 0 CHECK (current_balance_cents >= 0)
);

CREATE TABLE IF NOT EXISTS videos (
    id              BIGSERIAL PRIMARY KEY,
    creator_id      BIGINT NOT NULL REFERENCES users(id),
    created_at      TIMESTAMPTZ NOT NULL,
    duration_s      DOUBLE PRECISION NOT NULL CHECK (duration_s > 0),
    eis_current     DOUBLE PRECISION NOT NULL DEFAULT 0,
    eis_updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS event (
    event_id   BIGSERIAL PRIMARY KEY,
    video_id   BIGINT NOT NULL REFERENCES videos(id),
    user_id    BIGINT NOT NULL REFERENCES users(id),
    event_type TEXT NOT NULL CHECK (event_type IN
        ('view','like','comment','share','report','follow','pause')),
    ts         TIMESTAMPTZ NOT NULL,
    device_id  TEXT,
    ip_hash    TEXT
);
CREATE INDEX IF NOT EXISTS idx_event_video_ts ON event (video_id, ts);

CREATE TABLE IF NOT EXISTS video_aggregates (
    video_id             BIGINT NOT NULL REFERENCES videos(id),
    window_start         TIMESTAMPTZ NOT NULL,
    window_end           TIMESTAMPTZ NOT NULL,
    features             JSONB NOT NULL DEFAULT '{}',
    comment_quality      DOUBLE PRECISION NOT NULL,
    like_integrity       DOUBLE PRECISION NOT NULL,
    report_credibility   DOUBLE PRECISION NOT NULL,
    authentic_engagement DOUBLE PRECISION NOT NULL,
    eis                  DOUBLE PRECISION NOT NULL CHECK (eis >= 0 AND eis <= 100),
    PRIMARY KEY (video_id, window_start, window_end)
);
CREATE INDEX IF NOT EXISTS idx_video_aggregates_video_end ON video_aggregates (video_id, window_end);

CREATE TABLE IF NOT EXISTS revenue_windows (
    id                  BIGSERIAL PRIMARY KEY,
    window_start        TIMESTAMPTZ NOT NULL,
    window_end          TIMESTAMPTZ NOT NULL,
    payment_type        TEXT NOT NULL,
    gross_revenue_cents BIGINT NOT NULL,
    taxes_cents         BIGINT NOT NULL,
    fees_cents          BIGINT NOT NULL,
    refunds_cents       BIGINT NOT NULL,
    pool_pct            DOUBLE PRECISION NOT NULL,
    margin_target       DOUBLE PRECISION NOT NULL,
    platform_fee_pct    DOUBLE PRECISION NOT NULL,
    risk_reserve_pct    DOUBLE PRECISION NOT NULL,
    costs_est_cents     BIGINT NOT NULL,
    creator_pool_cents  BIGINT NOT NULL,
    unallocated_cents   BIGINT NOT NULL DEFAULT 0,
    status              TEXT NOT NULL DEFAULT 'finalized',
    meta                JSONB NOT NULL DEFAULT '{}',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (window_start, window_end, payment_type)
);

CREATE TABLE IF NOT EXISTS video_rev_shares (
    revenue_window_id BIGINT NOT NULL REFERENCES revenue_windows(id),
    video_id          BIGINT NOT NULL REFERENCES videos(id),
    eng_units         BIGINT NOT NULL,
    eis_avg           DOUBLE PRECISION NOT NULL,
    vu                DOUBLE PRECISION NOT NULL,
    share_pct         DOUBLE PRECISION NOT NULL,
    allocated_cents   BIGINT NOT NULL,
    meta              JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_video_rev_shares_window ON video_rev_shares (revenue_window_id);

CREATE TABLE IF NOT EXISTS transactions (
    id            BIGSERIAL PRIMARY KEY,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    recipient     BIGINT REFERENCES users(id),
    amount_cents  BIGINT NOT NULL CHECK (amount_cents > 0),
    payment_type  TEXT NOT NULL,
    status        TEXT NOT NULL,
    direction     TEXT NOT NULL CHECK (direction IN ('inflow','outflow')),
    CHECK (direction = 'outflow' OR recipient IS NOT NULL)
);
CREATE INDEX IF NOT EXISTS idx_transactions_recipient ON transactions (recipient);
`

// ApplySchema executes the DDL against the given database.
func ApplySchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return classify("apply schema", err)
	}
	return nil
}
