package domain

import (
	"fmt"
	"time"
)

// Window is a half-open UTC time range [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindow normalizes both bounds to UTC and validates ordering.
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: start.UTC(), End: end.UTC()}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// DayWindow returns the [00:00, 24:00) UTC window containing day.
func DayWindow(day time.Time) Window {
	start := day.UTC().Truncate(24 * time.Hour)
	return Window{Start: start, End: start.Add(24 * time.Hour)}
}

// Validate rejects inverted or zero-length windows.
func (w Window) Validate() error {
	if !w.Start.Before(w.End) {
		return fmt.Errorf("%w: window start %s not before end %s", ErrValidation, w.Start, w.End)
	}
	return nil
}

// Contains reports whether ts falls inside the half-open range.
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}

// Duration returns End − Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}
