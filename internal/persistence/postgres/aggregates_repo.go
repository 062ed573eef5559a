package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/clipwave/revcore/internal/domain"
	"github.com/clipwave/revcore/internal/persistence"
)

type aggregatesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewAggregatesRepo creates a PostgreSQL video-aggregates repository.
func NewAggregatesRepo(db *sqlx.DB, timeout time.Duration) persistence.AggregatesRepo {
	return &aggregatesRepo{db: db, timeout: timeout}
}

func (r *aggregatesRepo) Upsert(ctx context.Context, agg domain.VideoAggregate) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	featuresJSON, err := json.Marshal(agg.Features)
	if err != nil {
		return classify("marshal aggregate features", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO video_aggregates
			(video_id, window_start, window_end, features, comment_quality,
			 like_integrity, report_credibility, authentic_engagement, eis)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (video_id, window_start, window_end) DO UPDATE SET
			features = EXCLUDED.features,
			comment_quality = EXCLUDED.comment_quality,
			like_integrity = EXCLUDED.like_integrity,
			report_credibility = EXCLUDED.report_credibility,
			authentic_engagement = EXCLUDED.authentic_engagement,
			eis = EXCLUDED.eis`,
		agg.VideoID, agg.WindowStart, agg.WindowEnd, featuresJSON,
		agg.CommentQuality, agg.LikeIntegrity, agg.ReportCredibility,
		agg.AuthenticEngagement, agg.EIS)
	if err != nil {
		return classify("upsert video aggregate", err)
	}
	return nil
}

func (r *aggregatesRepo) Get(ctx context.Context, videoID int64, win domain.Window) (*domain.VideoAggregate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowxContext(ctx, `
		SELECT video_id, window_start, window_end, features, comment_quality,
		       like_integrity, report_credibility, authentic_engagement, eis
		FROM video_aggregates
		WHERE video_id = $1 AND window_start = $2 AND window_end = $3`,
		videoID, win.Start, win.End)

	agg, err := scanAggregate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("get video aggregate", err)
	}
	return agg, nil
}

func (r *aggregatesRepo) ForVideoRange(ctx context.Context, videoID int64, win domain.Window) ([]domain.VideoAggregate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `
		SELECT video_id, window_start, window_end, features, comment_quality,
		       like_integrity, report_credibility, authentic_engagement, eis
		FROM video_aggregates
		WHERE video_id = $1 AND window_start >= $2 AND window_end <= $3
		ORDER BY window_start`,
		videoID, win.Start, win.End)
	if err != nil {
		return nil, classify("query video aggregates", err)
	}
	defer rows.Close()

	var aggs []domain.VideoAggregate
	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, classify("scan video aggregate", err)
		}
		aggs = append(aggs, *agg)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate video aggregates", err)
	}
	return aggs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAggregate(row rowScanner) (*domain.VideoAggregate, error) {
	var agg domain.VideoAggregate
	var featuresJSON []byte
	err := row.Scan(&agg.VideoID, &agg.WindowStart, &agg.WindowEnd, &featuresJSON,
		&agg.CommentQuality, &agg.LikeIntegrity, &agg.ReportCredibility,
		&agg.AuthenticEngagement, &agg.EIS)
	if err != nil {
		return nil, err
	}
	if len(featuresJSON) > 0 {
		if err := json.Unmarshal(featuresJSON, &agg.Features); err != nil {
			return nil, err
		}
	} else {
		agg.Features = map[string]interface{}{}
	}
	return &agg, nil
}
