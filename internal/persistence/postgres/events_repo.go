package postgres

import (
	"context"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/clipwave/revcore/internal/domain"
	"github.com/clipwave/revcore/internal/persistence"
)

// eventsRepo implements persistence.EventsRepo against the append-only event
// table. All reads are keyset-paginated on (video_id, ts, event_id) to stay
// memory-bounded for large windows.
type eventsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewEventsRepo creates a PostgreSQL events repository.
func NewEventsRepo(db *sqlx.DB, timeout time.Duration) persistence.EventsRepo {
	return &eventsRepo{db: db, timeout: timeout}
}

func (r *eventsRepo) Page(ctx context.Context, win domain.Window, videoIDs []int64, cursor persistence.EventCursor, limit int) (persistence.EventPage, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT event_id, video_id, user_id, event_type, ts, device_id, ip_hash
		FROM event
		WHERE ts >= $1 AND ts < $2
		  AND (video_id, ts, event_id) > ($3, $4, $5)`
	args := []interface{}{win.Start, win.End, cursor.VideoID, cursor.TS, cursor.EventID}
	if len(videoIDs) > 0 {
		query += ` AND video_id = ANY($6)`
		args = append(args, pq.Array(videoIDs))
	}
	if limit <= 0 {
		limit = 1
	}
	query += `
		ORDER BY video_id, ts, event_id
		LIMIT ` + strconv.Itoa(limit)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return persistence.EventPage{}, classify("query event page", err)
	}
	defer rows.Close()

	var page persistence.EventPage
	for rows.Next() {
		var ev domain.Event
		if err := rows.Scan(&ev.EventID, &ev.VideoID, &ev.UserID, &ev.Type, &ev.TS, &ev.DeviceID, &ev.IPHash); err != nil {
			return persistence.EventPage{}, classify("scan event", err)
		}
		page.Events = append(page.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return persistence.EventPage{}, classify("iterate events", err)
	}

	if n := len(page.Events); n > 0 {
		last := page.Events[n-1]
		page.Cursor = persistence.EventCursor{VideoID: last.VideoID, TS: last.TS, EventID: last.EventID}
		page.HasMore = n == limit
	}
	return page, nil
}

func (r *eventsRepo) VideoIDsInWindow(ctx context.Context, win domain.Window) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT DISTINCT video_id
		FROM event
		WHERE ts >= $1 AND ts < $2
		ORDER BY video_id`

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, win.Start, win.End); err != nil {
		return nil, classify("query window video ids", err)
	}
	return ids, nil
}

func (r *eventsRepo) ForVideo(ctx context.Context, videoID int64, win domain.Window) ([]domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT event_id, video_id, user_id, event_type, ts, device_id, ip_hash
		FROM event
		WHERE video_id = $1 AND ts >= $2 AND ts < $3
		ORDER BY ts, event_id`

	rows, err := r.db.QueryxContext(ctx, query, videoID, win.Start, win.End)
	if err != nil {
		return nil, classify("query video events", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var ev domain.Event
		if err := rows.Scan(&ev.EventID, &ev.VideoID, &ev.UserID, &ev.Type, &ev.TS, &ev.DeviceID, &ev.IPHash); err != nil {
			return nil, classify("scan event", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate events", err)
	}
	return events, nil
}
