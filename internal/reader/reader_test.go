package reader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clipwave/revcore/internal/domain"
	"github.com/clipwave/revcore/internal/persistence/memory"
)

func seedEvents(store *memory.Store, win domain.Window) int {
	n := 0
	for videoID := int64(1); videoID <= 3; videoID++ {
		for i := 0; i < 7; i++ {
			store.AddEvent(domain.Event{
				VideoID: videoID,
				UserID:  int64(100 + i),
				Type:    domain.EventView,
				TS:      win.Start.Add(time.Duration(i) * time.Minute),
			})
			n++
		}
	}
	// One event outside the window must not surface.
	store.AddEvent(domain.Event{VideoID: 1, UserID: 999, Type: domain.EventView, TS: win.End})
	return n
}

func TestStream_PagesInOrder(t *testing.T) {
	win := domain.DayWindow(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	store := memory.NewStore()
	total := seedEvents(store, win)

	// Page size 4 forces several pages.
	r := New(store.Repository(), 4, 0)

	var got []domain.Event
	err := r.Stream(context.Background(), win, nil, func(ev domain.Event) error {
		got = append(got, ev)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != total {
		t.Fatalf("streamed %d events, want %d", len(got), total)
	}
	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		if cur.VideoID < prev.VideoID {
			t.Fatalf("events out of video order at %d", i)
		}
		if cur.VideoID == prev.VideoID && cur.TS.Before(prev.TS) {
			t.Fatalf("events out of time order at %d", i)
		}
	}
}

func TestStream_VideoFilter(t *testing.T) {
	win := domain.DayWindow(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	store := memory.NewStore()
	seedEvents(store, win)
	r := New(store.Repository(), 100, 0)

	count := 0
	err := r.Stream(context.Background(), win, []int64{2}, func(ev domain.Event) error {
		if ev.VideoID != 2 {
			t.Errorf("filter leaked video %d", ev.VideoID)
		}
		count++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 7 {
		t.Errorf("expected 7 events for video 2, got %d", count)
	}
}

func TestStream_CallbackErrorStops(t *testing.T) {
	win := domain.DayWindow(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	store := memory.NewStore()
	seedEvents(store, win)
	r := New(store.Repository(), 4, 0)

	boom := errors.New("boom")
	seen := 0
	err := r.Stream(context.Background(), win, nil, func(ev domain.Event) error {
		seen++
		if seen == 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if seen != 3 {
		t.Errorf("stream continued after error: %d events seen", seen)
	}
}

func TestStream_InvalidWindow(t *testing.T) {
	store := memory.NewStore()
	r := New(store.Repository(), 4, 0)
	now := time.Now().UTC()
	err := r.Stream(context.Background(), domain.Window{Start: now, End: now}, nil, func(domain.Event) error { return nil })
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCollectByVideo(t *testing.T) {
	win := domain.DayWindow(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	store := memory.NewStore()
	seedEvents(store, win)
	r := New(store.Repository(), 5, 0)

	byVideo, err := r.CollectByVideo(context.Background(), win, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(byVideo) != 3 {
		t.Fatalf("expected 3 videos, got %d", len(byVideo))
	}
	for id, events := range byVideo {
		if len(events) != 7 {
			t.Errorf("video %d: %d events, want 7", id, len(events))
		}
	}
}

func TestResolveContext(t *testing.T) {
	store := memory.NewStore()
	store.AddUser(domain.User{ID: 1})
	store.AddVideo(domain.Video{ID: 10, CreatorID: 1})
	r := New(store.Repository(), 5, 0)

	events := []domain.Event{
		{VideoID: 10, UserID: 1, Type: domain.EventView, TS: time.Now().UTC()},
		{VideoID: 10, UserID: 2, Type: domain.EventView, TS: time.Now().UTC()},
	}
	users, videos, err := r.ResolveContext(context.Background(), events)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := users[1]; !ok {
		t.Error("known user missing")
	}
	if _, ok := users[2]; ok {
		t.Error("unknown user should be absent, not fabricated")
	}
	if _, ok := videos[10]; !ok {
		t.Error("video missing")
	}
}
