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

type videosRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewVideosRepo creates a PostgreSQL videos repository.
func NewVideosRepo(db *sqlx.DB, timeout time.Duration) persistence.VideosRepo {
	return &videosRepo{db: db, timeout: timeout}
}

func (r *videosRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.Video, error) {
	if len(ids) == 0 {
		return map[int64]domain.Video{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, creator_id, created_at, duration_s, eis_current, eis_updated_at
		FROM videos
		WHERE id = ANY($1)`

	rows, err := r.db.QueryxContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, classify("query videos", err)
	}
	defer rows.Close()

	videos := make(map[int64]domain.Video, len(ids))
	for rows.Next() {
		var v domain.Video
		if err := rows.StructScan(&v); err != nil {
			return nil, classify("scan video", err)
		}
		videos[v.ID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate videos", err)
	}
	return videos, nil
}

func (r *videosRepo) SetCurrentEIS(ctx context.Context, videoID int64, eis float64, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		UPDATE videos
		SET eis_current = $2, eis_updated_at = $3
		WHERE id = $1`, videoID, eis, at)
	if err != nil {
		return classify("update video eis", err)
	}
	return nil
}

func (r *videosRepo) TrailingAvgEIS(ctx context.Context, creatorID int64, asof time.Time, lookback time.Duration) (float64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// AVG over zero rows yields NULL, so scan through NullFloat64.
	var avg sql.NullFloat64
	err := r.db.QueryRowxContext(ctx, `
		SELECT AVG(eis_current)
		FROM videos
		WHERE creator_id = $1
		  AND eis_updated_at >= $2 AND eis_updated_at <= $3`,
		creatorID, asof.Add(-lookback), asof).Scan(&avg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, classify("query trailing eis", err)
	}
	if !avg.Valid {
		return 0, false, nil
	}
	return avg.Float64, true, nil
}
