// Package aggwriter scores video windows and persists the results. It is the
// only writer of video_aggregates rows and of videos.eis_current.
package aggwriter

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clipwave/revcore/internal/domain"
	"github.com/clipwave/revcore/internal/eis"
	"github.com/clipwave/revcore/internal/engage"
	"github.com/clipwave/revcore/internal/metrics"
	"github.com/clipwave/revcore/internal/persistence"
	"github.com/clipwave/revcore/internal/reader"
	"github.com/clipwave/revcore/internal/trust"
)

// Writer runs the scoring pipeline for one window: read events, extract
// features, resolve trust, score, persist.
type Writer struct {
	repos    *persistence.Repository
	reader   *reader.Reader
	resolver *trust.Resolver
}

// Result summarizes one scoring run.
type Result struct {
	Window       domain.Window `json:"window"`
	VideosScored int           `json:"videos_scored"`
	EventsRead   int           `json:"events_read"`
}

// New creates a writer. resolver may carry a nil cache.
func New(repos *persistence.Repository, rd *reader.Reader, resolver *trust.Resolver) *Writer {
	return &Writer{repos: repos, reader: rd, resolver: resolver}
}

// RunWindow scores every video with at least one event in win. A nil videoIDs
// filter means all videos. Each video is scored and persisted independently;
// the first storage error aborts the run.
func (w *Writer) RunWindow(ctx context.Context, win domain.Window, videoIDs []int64) (Result, error) {
	res := Result{Window: win}
	if err := win.Validate(); err != nil {
		return res, err
	}

	byVideo, err := w.reader.CollectByVideo(ctx, win, videoIDs)
	if err != nil {
		return res, err
	}
	for _, events := range byVideo {
		res.EventsRead += len(events)
	}

	for _, videoID := range trust.SortedIDs(byVideo) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, err := w.scoreVideo(ctx, videoID, win, byVideo[videoID], true); err != nil {
			return res, fmt.Errorf("score video %d: %w", videoID, err)
		}
		res.VideosScored++
	}

	log.Info().
		Str("window", win.String()).
		Int("videos", res.VideosScored).
		Int("events", res.EventsRead).
		Msg("aggregate window scored")
	return res, nil
}

// Analyze scores one video window without persisting anything. Used by
// operators to inspect why a video scored the way it did.
func (w *Writer) Analyze(ctx context.Context, videoID int64, win domain.Window) (eis.Details, error) {
	if err := win.Validate(); err != nil {
		return eis.Details{}, err
	}
	events, err := w.repos.Events.ForVideo(ctx, videoID, win)
	if err != nil {
		return eis.Details{}, fmt.Errorf("load events for video %d: %w", videoID, err)
	}
	return w.scoreVideo(ctx, videoID, win, events, false)
}

// EnsureAggregate returns the persisted aggregate for (videoID, win), scoring
// and persisting it first when absent. The unit builder uses this so payout
// runs never depend on the scoring schedule having covered the window.
func (w *Writer) EnsureAggregate(ctx context.Context, videoID int64, win domain.Window) (*domain.VideoAggregate, error) {
	agg, err := w.repos.Aggregates.Get(ctx, videoID, win)
	if err != nil {
		return nil, fmt.Errorf("load aggregate: %w", err)
	}
	if agg != nil {
		return agg, nil
	}

	events, err := w.repos.Events.ForVideo(ctx, videoID, win)
	if err != nil {
		return nil, fmt.Errorf("load events for video %d: %w", videoID, err)
	}
	if _, err := w.scoreVideo(ctx, videoID, win, events, true); err != nil {
		return nil, fmt.Errorf("score video %d: %w", videoID, err)
	}
	agg, err = w.repos.Aggregates.Get(ctx, videoID, win)
	if err != nil {
		return nil, fmt.Errorf("reload aggregate: %w", err)
	}
	return agg, nil
}

// CreatorTrailingEIS averages a creator's recently updated video scores over
// the trailing lookback. Diagnostics only; allocation never reads it.
func (w *Writer) CreatorTrailingEIS(ctx context.Context, creatorID int64, asof time.Time, lookback time.Duration) (float64, bool, error) {
	return w.repos.Videos.TrailingAvgEIS(ctx, creatorID, asof, lookback)
}

func (w *Writer) scoreVideo(ctx context.Context, videoID int64, win domain.Window, events []domain.Event, persist bool) (eis.Details, error) {
	videos, err := w.repos.Videos.GetByIDs(ctx, []int64{videoID})
	if err != nil {
		return eis.Details{}, fmt.Errorf("load video: %w", err)
	}
	video, ok := videos[videoID]
	if !ok {
		return eis.Details{}, fmt.Errorf("%w: video %d not found", domain.ErrValidation, videoID)
	}

	events = engage.FilterSelfEngagement(events, video.CreatorID)
	features := engage.Extract(events, video, win)

	participants := map[int64]bool{}
	for _, id := range features.CommenterIDs {
		participants[id] = true
	}
	for _, id := range features.LikerIDs {
		participants[id] = true
	}
	for _, id := range features.ReporterIDs {
		participants[id] = true
	}
	vts, err := w.resolver.ResolveAll(ctx, trust.SortedIDs(participants))
	if err != nil {
		return eis.Details{}, err
	}

	var creatorTrust *float64
	creators, err := w.repos.Users.GetByIDs(ctx, []int64{video.CreatorID})
	if err != nil {
		return eis.Details{}, fmt.Errorf("load creator: %w", err)
	}
	if c, ok := creators[video.CreatorID]; ok {
		creatorTrust = c.CreatorTrustScore
	}

	details := eis.Score(features, vts, creatorTrust)
	metrics.ObserveEIS(details.EIS)

	if !persist {
		return details, nil
	}

	agg := domain.VideoAggregate{
		VideoID:             videoID,
		WindowStart:         win.Start,
		WindowEnd:           win.End,
		Features:            features.ToMap(),
		CommentQuality:      details.Components.CommentQuality,
		LikeIntegrity:       details.Components.LikeIntegrity,
		ReportCredibility:   details.Components.ReportCredibility,
		AuthenticEngagement: details.Components.AuthenticEngagement,
		EIS:                 details.EIS,
	}
	if err := w.repos.Aggregates.Upsert(ctx, agg); err != nil {
		return details, fmt.Errorf("upsert aggregate: %w", err)
	}
	if err := w.repos.Videos.SetCurrentEIS(ctx, videoID, details.EIS, win.End); err != nil {
		return details, fmt.Errorf("update current eis: %w", err)
	}

	log.Debug().
		Int64("video_id", videoID).
		Float64("eis", details.EIS).
		Int("events", len(events)).
		Msg("video window scored")
	return details, nil
}
