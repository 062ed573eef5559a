package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("valid", func(t *testing.T) {
		win, err := NewWindow(start, start.Add(time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if win.Duration() != time.Hour {
			t.Errorf("duration = %v", win.Duration())
		}
	})

	t.Run("normalizes_to_utc", func(t *testing.T) {
		loc := time.FixedZone("EST", -5*3600)
		win, err := NewWindow(start.In(loc), start.Add(time.Hour).In(loc))
		if err != nil {
			t.Fatal(err)
		}
		if win.Start.Location() != time.UTC {
			t.Error("start not normalized to UTC")
		}
		if !win.Start.Equal(start) {
			t.Errorf("start instant changed: %v", win.Start)
		}
	})

	t.Run("inverted", func(t *testing.T) {
		if _, err := NewWindow(start.Add(time.Hour), start); !errors.Is(err, ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("zero_length", func(t *testing.T) {
		if _, err := NewWindow(start, start); !errors.Is(err, ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestWindow_Contains(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	win, _ := NewWindow(start, start.Add(time.Hour))

	if !win.Contains(start) {
		t.Error("start should be inside the half-open window")
	}
	if win.Contains(start.Add(time.Hour)) {
		t.Error("end should be outside the half-open window")
	}
	if !win.Contains(start.Add(59 * time.Minute)) {
		t.Error("interior instant should be inside")
	}
	if win.Contains(start.Add(-time.Nanosecond)) {
		t.Error("instant before start should be outside")
	}
}

func TestDayWindow(t *testing.T) {
	noon := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	win := DayWindow(noon)
	if !win.Start.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("day window start = %v", win.Start)
	}
	if win.Duration() != 24*time.Hour {
		t.Errorf("day window duration = %v", win.Duration())
	}
}

func TestEventType_Valid(t *testing.T) {
	for _, typ := range []EventType{EventView, EventLike, EventComment, EventShare, EventReport, EventFollow, EventPause} {
		if !typ.Valid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if EventType("purchase").Valid() {
		t.Error("unknown type should be invalid")
	}
}
