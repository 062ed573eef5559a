// Package units converts a window's events and integrity scores into
// value units, the allocation currency of a payout run.
package units

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clipwave/revcore/internal/aggwriter"
	"github.com/clipwave/revcore/internal/config"
	"github.com/clipwave/revcore/internal/domain"
	"github.com/clipwave/revcore/internal/engage"
	"github.com/clipwave/revcore/internal/persistence"
	"github.com/clipwave/revcore/internal/reader"
	"github.com/clipwave/revcore/internal/trust"
)

// earlyWindow is how long after upload the early-velocity check looks.
const earlyWindow = 2 * time.Hour

// VideoUnits is one video's contribution to a payout run.
type VideoUnits struct {
	VideoID   int64   `json:"video_id"`
	CreatorID int64   `json:"creator_id"`
	EngUnits  int64   `json:"eng_units"`
	EIS       float64 `json:"eis"`
	Kicker    float64 `json:"kicker"`
	VU        float64 `json:"vu"`
}

// BuildResult maps a window onto per-video and per-creator value units.
type BuildResult struct {
	Window     domain.Window     `json:"window"`
	PerVideo   []VideoUnits      `json:"per_video"`
	PerCreator map[int64]float64 `json:"per_creator"`
}

// Builder produces value units for a window.
type Builder struct {
	repos  *persistence.Repository
	reader *reader.Reader
	writer *aggwriter.Writer
}

// New creates a builder.
func New(repos *persistence.Repository, rd *reader.Reader, writer *aggwriter.Writer) *Builder {
	return &Builder{repos: repos, reader: rd, writer: writer}
}

// Build computes value units for every video with events in win. Missing
// aggregates are scored on demand so the run never reads a stale EIS.
func (b *Builder) Build(ctx context.Context, win domain.Window, params config.Params) (BuildResult, error) {
	res := BuildResult{
		Window:     win,
		PerCreator: map[int64]float64{},
	}
	if err := win.Validate(); err != nil {
		return res, err
	}

	byVideo, err := b.reader.CollectByVideo(ctx, win, nil)
	if err != nil {
		return res, err
	}
	videoIDs := trust.SortedIDs(byVideo)
	videos, err := b.repos.Videos.GetByIDs(ctx, videoIDs)
	if err != nil {
		return res, fmt.Errorf("load videos: %w", err)
	}

	for _, videoID := range videoIDs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		video, ok := videos[videoID]
		if !ok {
			// Events referencing an unknown video carry no payable value.
			log.Warn().Int64("video_id", videoID).Msg("events for unknown video skipped")
			continue
		}

		events := engage.FilterSelfEngagement(byVideo[videoID], video.CreatorID)
		engUnits := engagementUnits(events, params.EventWeights)
		if engUnits == 0 {
			continue
		}

		agg, err := b.writer.EnsureAggregate(ctx, videoID, win)
		if err != nil {
			return res, err
		}

		kicker, err := b.earlyKicker(ctx, video, params)
		if err != nil {
			return res, err
		}

		vu := float64(engUnits) * math.Pow(agg.EIS/100, params.Gamma) * kicker
		res.PerVideo = append(res.PerVideo, VideoUnits{
			VideoID:   videoID,
			CreatorID: video.CreatorID,
			EngUnits:  engUnits,
			EIS:       agg.EIS,
			Kicker:    kicker,
			VU:        vu,
		})
		res.PerCreator[video.CreatorID] += vu
	}

	sort.Slice(res.PerVideo, func(i, j int) bool { return res.PerVideo[i].VideoID < res.PerVideo[j].VideoID })
	log.Info().
		Str("window", win.String()).
		Int("videos", len(res.PerVideo)).
		Int("creators", len(res.PerCreator)).
		Msg("value units built")
	return res, nil
}

// engagementUnits sums the configured weights over countable event types.
func engagementUnits(events []domain.Event, w config.EventWeights) int64 {
	var total int64
	for _, ev := range events {
		total += w.WeightFor(ev.Type)
	}
	return total
}

// earlyKicker checks the first two hours after upload for organic spread:
// enough views, and devices and IPs diverse in proportion to those views.
func (b *Builder) earlyKicker(ctx context.Context, video domain.Video, params config.Params) (float64, error) {
	early, err := domain.NewWindow(video.CreatedAt, video.CreatedAt.Add(earlyWindow))
	if err != nil {
		return 1.0, nil
	}
	events, err := b.repos.Events.ForVideo(ctx, video.ID, early)
	if err != nil {
		return 0, fmt.Errorf("load early events for video %d: %w", video.ID, err)
	}
	events = engage.FilterSelfEngagement(events, video.CreatorID)

	var views int64
	devices := map[string]bool{}
	ips := map[string]bool{}
	for _, ev := range events {
		if ev.Type != domain.EventView {
			continue
		}
		views++
		if ev.DeviceID != nil {
			devices[*ev.DeviceID] = true
		}
		if ev.IPHash != nil {
			ips[*ev.IPHash] = true
		}
	}

	if views < params.EarlyMinViews {
		return 1.0, nil
	}
	if float64(len(devices)) < params.EarlyDeviceFrac*float64(views) {
		return 1.0, nil
	}
	if float64(len(ips)) < params.EarlyIPFrac*float64(views) {
		return 1.0, nil
	}
	return params.EarlyKicker, nil
}
