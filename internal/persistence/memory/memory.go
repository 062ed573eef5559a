// Package memory provides in-memory implementations of the persistence
// interfaces. They back unit tests and offline dry runs; semantics mirror the
// PostgreSQL repositories, including ordering and idempotency behavior.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/clipwave/revcore/internal/domain"
	"github.com/clipwave/revcore/internal/persistence"
)

// Store holds all tables behind one mutex. Fine for tests and demos.
type Store struct {
	mu sync.Mutex

	Users      map[int64]domain.User
	Videos     map[int64]domain.Video
	Events     []domain.Event
	Aggregates []domain.VideoAggregate
	Windows    []domain.RevenueWindow
	Shares     []domain.VideoRevShare
	Ledger     []domain.Transaction

	nextEventID int64
	nextWinID   int64
	nextTxnID   int64

	// FailInsertWindow forces InsertWindow to fail, for compensation tests.
	FailInsertWindow error
	// FailDelete forces DeleteByIDs to fail, for partial-commit tests.
	FailDelete error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		Users:  map[int64]domain.User{},
		Videos: map[int64]domain.Video{},
	}
}

// Repository returns a persistence.Repository backed by this store.
func (s *Store) Repository() *persistence.Repository {
	return &persistence.Repository{
		Events:     (*eventsRepo)(s),
		Users:      (*usersRepo)(s),
		Videos:     (*videosRepo)(s),
		Aggregates: (*aggregatesRepo)(s),
		Revenue:    (*revenueRepo)(s),
		Ledger:     (*ledgerRepo)(s),
	}
}

// AddUser inserts or replaces a user row.
func (s *Store) AddUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Users[u.ID] = u
}

// AddVideo inserts or replaces a video row.
func (s *Store) AddVideo(v domain.Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Videos[v.ID] = v
}

// AddEvent appends an event, assigning an id when unset.
func (s *Store) AddEvent(ev domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.EventID == 0 {
		s.nextEventID++
		ev.EventID = s.nextEventID
	}
	s.Events = append(s.Events, ev)
}

type eventsRepo Store

func (r *eventsRepo) sortedWindowEvents(win domain.Window, videoIDs []int64) []domain.Event {
	filter := map[int64]bool{}
	for _, id := range videoIDs {
		filter[id] = true
	}
	var out []domain.Event
	for _, ev := range r.Events {
		if !win.Contains(ev.TS) {
			continue
		}
		if len(filter) > 0 && !filter[ev.VideoID] {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.VideoID != b.VideoID {
			return a.VideoID < b.VideoID
		}
		if !a.TS.Equal(b.TS) {
			return a.TS.Before(b.TS)
		}
		return a.EventID < b.EventID
	})
	return out
}

func (r *eventsRepo) Page(ctx context.Context, win domain.Window, videoIDs []int64, cursor persistence.EventCursor, limit int) (persistence.EventPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 1
	}
	all := r.sortedWindowEvents(win, videoIDs)
	var page persistence.EventPage
	for _, ev := range all {
		if !afterCursor(ev, cursor) {
			continue
		}
		page.Events = append(page.Events, ev)
		if len(page.Events) == limit {
			break
		}
	}
	if n := len(page.Events); n > 0 {
		last := page.Events[n-1]
		page.Cursor = persistence.EventCursor{VideoID: last.VideoID, TS: last.TS, EventID: last.EventID}
		page.HasMore = n == limit
	}
	return page, nil
}

func afterCursor(ev domain.Event, c persistence.EventCursor) bool {
	if ev.VideoID != c.VideoID {
		return ev.VideoID > c.VideoID
	}
	if !ev.TS.Equal(c.TS) {
		return ev.TS.After(c.TS)
	}
	return ev.EventID > c.EventID
}

func (r *eventsRepo) VideoIDsInWindow(ctx context.Context, win domain.Window) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[int64]bool{}
	for _, ev := range r.Events {
		if win.Contains(ev.TS) {
			seen[ev.VideoID] = true
		}
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *eventsRepo) ForVideo(ctx context.Context, videoID int64, win domain.Window) ([]domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, ev := range r.Events {
		if ev.VideoID == videoID && win.Contains(ev.TS) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TS.Equal(out[j].TS) {
			return out[i].TS.Before(out[j].TS)
		}
		return out[i].EventID < out[j].EventID
	})
	return out, nil
}

type usersRepo Store

func (r *usersRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]domain.User, len(ids))
	for _, id := range ids {
		if u, ok := r.Users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (r *usersRepo) AddBalance(ctx context.Context, userID int64, deltaCents int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[userID]
	if !ok {
		return fmt.Errorf("no user with id %d", userID)
	}
	u.CurrentBalanceCents += deltaCents
	r.Users[userID] = u
	return nil
}

type videosRepo Store

func (r *videosRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]domain.Video, len(ids))
	for _, id := range ids {
		if v, ok := r.Videos[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (r *videosRepo) SetCurrentEIS(ctx context.Context, videoID int64, eis float64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.Videos[videoID]
	if !ok {
		return fmt.Errorf("no video with id %d", videoID)
	}
	v.EISCurrent = eis
	v.EISUpdatedAt = at
	r.Videos[videoID] = v
	return nil
}

func (r *videosRepo) TrailingAvgEIS(ctx context.Context, creatorID int64, asof time.Time, lookback time.Duration) (float64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	since := asof.Add(-lookback)
	var sum float64
	var n int
	for _, v := range r.Videos {
		if v.CreatorID != creatorID {
			continue
		}
		if v.EISUpdatedAt.Before(since) || v.EISUpdatedAt.After(asof) {
			continue
		}
		sum += v.EISCurrent
		n++
	}
	if n == 0 {
		return 0, false, nil
	}
	return sum / float64(n), true, nil
}

type aggregatesRepo Store

func (r *aggregatesRepo) Upsert(ctx context.Context, agg domain.VideoAggregate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.Aggregates {
		if a.VideoID == agg.VideoID && a.WindowStart.Equal(agg.WindowStart) && a.WindowEnd.Equal(agg.WindowEnd) {
			r.Aggregates[i] = agg
			return nil
		}
	}
	r.Aggregates = append(r.Aggregates, agg)
	return nil
}

func (r *aggregatesRepo) Get(ctx context.Context, videoID int64, win domain.Window) (*domain.VideoAggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.Aggregates {
		if a.VideoID == videoID && a.WindowStart.Equal(win.Start) && a.WindowEnd.Equal(win.End) {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *aggregatesRepo) ForVideoRange(ctx context.Context, videoID int64, win domain.Window) ([]domain.VideoAggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.VideoAggregate
	for _, a := range r.Aggregates {
		if a.VideoID == videoID && !a.WindowStart.Before(win.Start) && !a.WindowEnd.After(win.End) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WindowStart.Before(out[j].WindowStart) })
	return out, nil
}

type revenueRepo Store

func (r *revenueRepo) InsertWindow(ctx context.Context, w domain.RevenueWindow) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailInsertWindow != nil {
		return 0, r.FailInsertWindow
	}
	for _, existing := range r.Windows {
		if existing.WindowStart.Equal(w.WindowStart) && existing.WindowEnd.Equal(w.WindowEnd) && existing.PaymentType == w.PaymentType {
			return 0, fmt.Errorf("duplicate revenue window %s/%s", w.WindowStart, w.PaymentType)
		}
	}
	r.nextWinID++
	w.ID = r.nextWinID
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	r.Windows = append(r.Windows, w)
	return w.ID, nil
}

func (r *revenueRepo) GetWindow(ctx context.Context, win domain.Window, paymentType string) (*domain.RevenueWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.Windows {
		if w.WindowStart.Equal(win.Start) && w.WindowEnd.Equal(win.End) && w.PaymentType == paymentType {
			cp := w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *revenueRepo) InsertShares(ctx context.Context, shares []domain.VideoRevShare) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Shares = append(r.Shares, shares...)
	return nil
}

func (r *revenueRepo) WithWindowLock(ctx context.Context, win domain.Window, paymentType string, fn func(ctx context.Context) error) error {
	// The single store mutex already serializes writers; the callback runs
	// unlocked so it can use the repos.
	return fn(ctx)
}

type ledgerRepo Store

func (r *ledgerRepo) InsertInflow(ctx context.Context, t domain.Transaction) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[t.Recipient]
	if !ok {
		return 0, fmt.Errorf("no user with id %d", t.Recipient)
	}
	r.nextTxnID++
	t.ID = r.nextTxnID
	t.Direction = domain.DirectionInflow
	r.Ledger = append(r.Ledger, t)
	u.CurrentBalanceCents += t.AmountCents
	r.Users[t.Recipient] = u
	return t.ID, nil
}

func (r *ledgerRepo) InsertOutflowMarker(ctx context.Context, t domain.Transaction) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Recipient != 0 {
		if _, ok := r.Users[t.Recipient]; !ok {
			return 0, fmt.Errorf("no user with id %d", t.Recipient)
		}
	}
	r.nextTxnID++
	t.ID = r.nextTxnID
	t.Direction = domain.DirectionOutflow
	r.Ledger = append(r.Ledger, t)
	return t.ID, nil
}

func (r *ledgerRepo) DeleteByIDs(ctx context.Context, ids []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailDelete != nil {
		return r.FailDelete
	}
	kill := map[int64]bool{}
	for _, id := range ids {
		kill[id] = true
	}
	var kept []domain.Transaction
	for _, t := range r.Ledger {
		if !kill[t.ID] {
			kept = append(kept, t)
			continue
		}
		if t.Direction == domain.DirectionInflow {
			if u, ok := r.Users[t.Recipient]; ok {
				u.CurrentBalanceCents -= t.AmountCents
				r.Users[t.Recipient] = u
			}
		}
	}
	r.Ledger = kept
	return nil
}

func (r *ledgerRepo) SumByUser(ctx context.Context, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, t := range r.Ledger {
		if t.Recipient != userID {
			continue
		}
		if t.Direction == domain.DirectionInflow {
			sum += t.AmountCents
		} else {
			sum -= t.AmountCents
		}
	}
	return sum, nil
}
