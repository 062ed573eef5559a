package engage

import (
	"testing"
	"time"

	"github.com/clipwave/revcore/internal/domain"
)

func strPtr(s string) *string { return &s }

func testWindow(t *testing.T) domain.Window {
	t.Helper()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	win, err := domain.NewWindow(start, start.Add(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	return win
}

func TestExtract_Counts(t *testing.T) {
	win := testWindow(t)
	video := domain.Video{ID: 1, CreatorID: 100, CreatedAt: win.Start.Add(-time.Hour), DurationS: 15}
	ts := win.Start.Add(time.Hour)

	events := []domain.Event{
		{VideoID: 1, UserID: 1, Type: domain.EventView, TS: ts},
		{VideoID: 1, UserID: 2, Type: domain.EventView, TS: ts.Add(time.Minute)},
		{VideoID: 1, UserID: 1, Type: domain.EventLike, TS: ts.Add(2 * time.Minute)},
		{VideoID: 1, UserID: 2, Type: domain.EventComment, TS: ts.Add(3 * time.Minute)},
		{VideoID: 1, UserID: 2, Type: domain.EventComment, TS: ts.Add(4 * time.Minute)},
		{VideoID: 1, UserID: 3, Type: domain.EventReport, TS: ts.Add(5 * time.Minute)},
		{VideoID: 1, UserID: 3, Type: domain.EventShare, TS: ts.Add(6 * time.Minute)},
		{VideoID: 1, UserID: 3, Type: domain.EventFollow, TS: ts.Add(7 * time.Minute)},
	}

	f := Extract(events, video, win)
	if f.Views != 2 || f.Likes != 1 || f.Comments != 2 || f.Reports != 1 || f.Shares != 1 {
		t.Errorf("unexpected counts: %+v", f)
	}
	if f.ActiveViewers != 3 {
		t.Errorf("expected 3 active viewers, got %d", f.ActiveViewers)
	}
	if f.UniqueCommenters != 1 {
		t.Errorf("expected 1 unique commenter, got %d", f.UniqueCommenters)
	}
	if len(f.CommenterIDs) != 1 || f.CommenterIDs[0] != 2 {
		t.Errorf("unexpected commenter ids: %v", f.CommenterIDs)
	}
	if len(f.ReporterIDs) != 1 || f.ReporterIDs[0] != 3 {
		t.Errorf("unexpected reporter ids: %v", f.ReporterIDs)
	}
	if f.AgeS != (25 * time.Hour).Seconds() {
		t.Errorf("unexpected age: %v", f.AgeS)
	}
}

func TestExtract_ConcentrationIgnoresNullAttribution(t *testing.T) {
	win := testWindow(t)
	video := domain.Video{ID: 1, CreatorID: 100, CreatedAt: win.Start, DurationS: 15}
	ts := win.Start.Add(time.Hour)

	// Four likes: two from device d1, one from d2, one unattributed. Top
	// share counts the unattributed like in the denominator.
	events := []domain.Event{
		{VideoID: 1, UserID: 1, Type: domain.EventLike, TS: ts, DeviceID: strPtr("d1")},
		{VideoID: 1, UserID: 2, Type: domain.EventLike, TS: ts.Add(time.Minute), DeviceID: strPtr("d1")},
		{VideoID: 1, UserID: 3, Type: domain.EventLike, TS: ts.Add(2 * time.Minute), DeviceID: strPtr("d2")},
		{VideoID: 1, UserID: 4, Type: domain.EventLike, TS: ts.Add(3 * time.Minute)},
	}

	f := Extract(events, video, win)
	if f.DeviceConcentrationTopShare != 0.5 {
		t.Errorf("expected top device share 0.5, got %v", f.DeviceConcentrationTopShare)
	}
	if f.UsersPerDevice != 2 {
		t.Errorf("expected 2 users on top device, got %d", f.UsersPerDevice)
	}
	if f.IPConcentrationTopShare != 0 {
		t.Errorf("no ip attribution should give zero share, got %v", f.IPConcentrationTopShare)
	}
}

func TestExtract_InterArrivalCV(t *testing.T) {
	win := testWindow(t)
	video := domain.Video{ID: 1, CreatorID: 100, CreatedAt: win.Start, DurationS: 15}
	ts := win.Start.Add(time.Hour)

	t.Run("too_few_likes", func(t *testing.T) {
		events := []domain.Event{
			{VideoID: 1, UserID: 1, Type: domain.EventLike, TS: ts},
			{VideoID: 1, UserID: 2, Type: domain.EventLike, TS: ts.Add(time.Minute)},
		}
		f := Extract(events, video, win)
		if f.InterArrivalCV != nil {
			t.Errorf("fewer than 3 likes should give nil CV, got %v", *f.InterArrivalCV)
		}
	})

	t.Run("regular_spacing", func(t *testing.T) {
		events := []domain.Event{
			{VideoID: 1, UserID: 1, Type: domain.EventLike, TS: ts},
			{VideoID: 1, UserID: 2, Type: domain.EventLike, TS: ts.Add(time.Minute)},
			{VideoID: 1, UserID: 3, Type: domain.EventLike, TS: ts.Add(2 * time.Minute)},
			{VideoID: 1, UserID: 4, Type: domain.EventLike, TS: ts.Add(3 * time.Minute)},
		}
		f := Extract(events, video, win)
		if f.InterArrivalCV == nil {
			t.Fatal("expected CV for 4 likes")
		}
		if *f.InterArrivalCV != 0 {
			t.Errorf("perfectly regular likes should give CV 0, got %v", *f.InterArrivalCV)
		}
	})

	t.Run("irregular_spacing", func(t *testing.T) {
		events := []domain.Event{
			{VideoID: 1, UserID: 1, Type: domain.EventLike, TS: ts},
			{VideoID: 1, UserID: 2, Type: domain.EventLike, TS: ts.Add(time.Second)},
			{VideoID: 1, UserID: 3, Type: domain.EventLike, TS: ts.Add(time.Hour)},
		}
		f := Extract(events, video, win)
		if f.InterArrivalCV == nil || *f.InterArrivalCV <= 0 {
			t.Errorf("irregular likes should give positive CV, got %v", f.InterArrivalCV)
		}
	})
}

func TestFilterSelfEngagement(t *testing.T) {
	events := []domain.Event{
		{VideoID: 1, UserID: 100, Type: domain.EventLike},
		{VideoID: 1, UserID: 2, Type: domain.EventLike},
		{VideoID: 1, UserID: 100, Type: domain.EventComment},
	}
	out := FilterSelfEngagement(events, 100)
	if len(out) != 1 || out[0].UserID != 2 {
		t.Errorf("expected only the non-creator event, got %v", out)
	}
}

func TestExtract_EmptyWindowRecency(t *testing.T) {
	win := testWindow(t)
	video := domain.Video{ID: 1, CreatorID: 100, CreatedAt: win.Start, DurationS: 15}
	f := Extract(nil, video, win)
	if f.RecencyS != win.Duration().Seconds() {
		t.Errorf("empty window recency should equal window duration, got %v", f.RecencyS)
	}
}
