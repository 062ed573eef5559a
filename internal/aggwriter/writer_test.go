package aggwriter

import (
	"context"
	"testing"
	"time"

	"github.com/clipwave/revcore/internal/domain"
	"github.com/clipwave/revcore/internal/persistence/memory"
	"github.com/clipwave/revcore/internal/reader"
	"github.com/clipwave/revcore/internal/trust"
)

func f64Ptr(v float64) *float64 { return &v }
func intPtr(v int) *int { return &v }

func newWriter(store *memory.Store) *Writer {
	repos := store.Repository()
	rd := reader.New(repos, 1000, 0)
	resolver := trust.NewResolver(repos.Users, nil)
	return New(repos, rd, resolver)
}

func seedScoringFixture(store *memory.Store, win domain.Window) {
	store.AddUser(domain.User{ID: 100, IsCreator: true, CreatorTrustScore: f64Ptr(50)})
	store.AddVideo(domain.Video{ID: 1, CreatorID: 100, CreatedAt: win.Start.Add(-time.Hour), DurationS: 15})

	ts := win.Start.Add(time.Hour)
	for i := 0; i < 30; i++ {
		store.AddUser(domain.User{ID: 1000 + int64(i), ViewerTrustScore: f64Ptr(80), KYCLevel: intPtr(2)})
		store.AddEvent(domain.Event{VideoID: 1, UserID: 1000 + int64(i), Type: domain.EventView, TS: ts.Add(time.Duration(i) * time.Minute)})
	}
	for i := 0; i < 5; i++ {
		store.AddEvent(domain.Event{VideoID: 1, UserID: 1000 + int64(i), Type: domain.EventLike, TS: ts.Add(time.Duration(i*7) * time.Minute)})
	}
	store.AddEvent(domain.Event{VideoID: 1, UserID: 1002, Type: domain.EventComment, TS: ts.Add(40 * time.Minute)})
}

func TestRunWindow_PersistsAggregateAndCurrentEIS(t *testing.T) {
	win := domain.DayWindow(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	store := memory.NewStore()
	seedScoringFixture(store, win)
	w := newWriter(store)

	res, err := w.RunWindow(context.Background(), win, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.VideosScored != 1 {
		t.Fatalf("scored %d videos, want 1", res.VideosScored)
	}
	if res.EventsRead != 36 {
		t.Errorf("read %d events, want 36", res.EventsRead)
	}

	agg, err := store.Repository().Aggregates.Get(context.Background(), 1, win)
	if err != nil {
		t.Fatal(err)
	}
	if agg == nil {
		t.Fatal("aggregate not persisted")
	}
	if agg.EIS <= 0 || agg.EIS > 100 {
		t.Errorf("EIS out of range: %v", agg.EIS)
	}
	if agg.Features["views"] != int64(30) {
		t.Errorf("features views = %v, want 30", agg.Features["views"])
	}

	if store.Videos[1].EISCurrent != agg.EIS {
		t.Errorf("eis_current %v does not match aggregate %v", store.Videos[1].EISCurrent, agg.EIS)
	}
	if !store.Videos[1].EISUpdatedAt.Equal(win.End) {
		t.Errorf("eis_updated_at = %v, want window end", store.Videos[1].EISUpdatedAt)
	}
}

func TestRunWindow_Deterministic(t *testing.T) {
	win := domain.DayWindow(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	score := func() float64 {
		store := memory.NewStore()
		seedScoringFixture(store, win)
		w := newWriter(store)
		if _, err := w.RunWindow(context.Background(), win, nil); err != nil {
			t.Fatal(err)
		}
		return store.Videos[1].EISCurrent
	}
	if a, b := score(), score(); a != b {
		t.Errorf("identical inputs scored differently: %v vs %v", a, b)
	}
}

func TestAnalyze_DoesNotPersist(t *testing.T) {
	win := domain.DayWindow(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	store := memory.NewStore()
	seedScoringFixture(store, win)
	w := newWriter(store)

	details, err := w.Analyze(context.Background(), 1, win)
	if err != nil {
		t.Fatal(err)
	}
	if details.EIS <= 0 {
		t.Errorf("expected a positive score, got %v", details.EIS)
	}
	if len(store.Aggregates) != 0 {
		t.Errorf("analyze wrote %d aggregates", len(store.Aggregates))
	}
	if store.Videos[1].EISCurrent != 0 {
		t.Errorf("analyze touched eis_current: %v", store.Videos[1].EISCurrent)
	}
}

func TestAnalyze_UnknownVideo(t *testing.T) {
	win := domain.DayWindow(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	store := memory.NewStore()
	w := newWriter(store)

	if _, err := w.Analyze(context.Background(), 42, win); err == nil {
		t.Error("expected an error for an unknown video")
	}
}

func TestEnsureAggregate_ScoresOnDemand(t *testing.T) {
	win := domain.DayWindow(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	store := memory.NewStore()
	seedScoringFixture(store, win)
	w := newWriter(store)

	agg, err := w.EnsureAggregate(context.Background(), 1, win)
	if err != nil {
		t.Fatal(err)
	}
	if agg == nil {
		t.Fatal("expected an aggregate")
	}
	if len(store.Aggregates) != 1 {
		t.Fatalf("expected on-demand scoring to persist, got %d rows", len(store.Aggregates))
	}

	// Second call must reuse the stored row.
	again, err := w.EnsureAggregate(context.Background(), 1, win)
	if err != nil {
		t.Fatal(err)
	}
	if again.EIS != agg.EIS || len(store.Aggregates) != 1 {
		t.Error("second call should return the stored aggregate")
	}
}

func TestCreatorTrailingEIS(t *testing.T) {
	store := memory.NewStore()
	asof := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	store.AddVideo(domain.Video{ID: 1, CreatorID: 100, EISCurrent: 80, EISUpdatedAt: asof.Add(-24 * time.Hour)})
	store.AddVideo(domain.Video{ID: 2, CreatorID: 100, EISCurrent: 40, EISUpdatedAt: asof.Add(-48 * time.Hour)})
	store.AddVideo(domain.Video{ID: 3, CreatorID: 100, EISCurrent: 10, EISUpdatedAt: asof.Add(-30 * 24 * time.Hour)})
	store.AddVideo(domain.Video{ID: 4, CreatorID: 200, EISCurrent: 99, EISUpdatedAt: asof.Add(-24 * time.Hour)})
	w := newWriter(store)

	avg, ok, err := w.CreatorTrailingEIS(context.Background(), 100, asof, 7*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || avg != 60 {
		t.Errorf("trailing EIS = (%v, %v), want (60, true)", avg, ok)
	}

	_, ok, err = w.CreatorTrailingEIS(context.Background(), 999, asof, 7*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("creator with no scored videos should report not-ok")
	}
}
