// Package reader streams raw viewer events for a window in bounded pages and
// resolves the user and video rows the scorers need.
package reader

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/clipwave/revcore/internal/domain"
	"github.com/clipwave/revcore/internal/persistence"
)

// Reader pages events out of storage ordered by (video_id, ts). Page fetches
// are paced with a rate limiter so a large backfill cannot saturate the
// store.
type Reader struct {
	events   persistence.EventsRepo
	users    persistence.UsersRepo
	videos   persistence.VideosRepo
	pageSize int
	limiter  *rate.Limiter
}

// New creates a reader. pagesPerSecond <= 0 disables pacing.
func New(repos *persistence.Repository, pageSize int, pagesPerSecond float64) *Reader {
	if pageSize <= 0 {
		pageSize = 10_000
	}
	var limiter *rate.Limiter
	if pagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(pagesPerSecond), 1)
	}
	return &Reader{
		events:   repos.Events,
		users:    repos.Users,
		videos:   repos.Videos,
		pageSize: pageSize,
		limiter:  limiter,
	}
}

// Stream invokes fn for every event with ts in win, ordered by
// (video_id, ts, event_id). A nil videoIDs filter means all videos. The walk
// stops on the first fn error or context cancellation.
func (r *Reader) Stream(ctx context.Context, win domain.Window, videoIDs []int64, fn func(domain.Event) error) error {
	if err := win.Validate(); err != nil {
		return err
	}

	var cursor persistence.EventCursor
	pages := 0
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		page, err := r.events.Page(ctx, win, videoIDs, cursor, r.pageSize)
		if err != nil {
			return fmt.Errorf("page events: %w", err)
		}
		for _, ev := range page.Events {
			if err := fn(ev); err != nil {
				return err
			}
		}
		pages++
		total += len(page.Events)
		if !page.HasMore {
			break
		}
		cursor = page.Cursor
	}

	log.Debug().
		Str("window", win.String()).
		Int("pages", pages).
		Int("events", total).
		Msg("event window stream complete")
	return nil
}

// CollectByVideo groups a window's events by video id.
func (r *Reader) CollectByVideo(ctx context.Context, win domain.Window, videoIDs []int64) (map[int64][]domain.Event, error) {
	byVideo := map[int64][]domain.Event{}
	err := r.Stream(ctx, win, videoIDs, func(ev domain.Event) error {
		byVideo[ev.VideoID] = append(byVideo[ev.VideoID], ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return byVideo, nil
}

// ResolveContext loads the video rows and all user rows touched by the given
// events.
func (r *Reader) ResolveContext(ctx context.Context, events []domain.Event) (map[int64]domain.User, map[int64]domain.Video, error) {
	userSet := map[int64]bool{}
	videoSet := map[int64]bool{}
	for _, ev := range events {
		userSet[ev.UserID] = true
		videoSet[ev.VideoID] = true
	}
	userIDs := sortedKeys(userSet)
	videoIDs := sortedKeys(videoSet)

	users, err := r.users.GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve users: %w", err)
	}
	videos, err := r.videos.GetByIDs(ctx, videoIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve videos: %w", err)
	}
	return users, videos, nil
}

func sortedKeys(set map[int64]bool) []int64 {
	out := make([]int64, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
