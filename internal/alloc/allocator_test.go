package alloc

import (
	"testing"

	"github.com/clipwave/revcore/internal/config"
	"github.com/clipwave/revcore/internal/domain"
	"github.com/clipwave/revcore/internal/units"
)

func intPtr(v int) *int { return &v }
func f64Ptr(v float64) *float64 { return &v }

func TestAllocate_CapsExhaustPool(t *testing.T) {
	// Two equal creators at KYC 1: both hit the 5000 cap, the rest of the
	// pool stays unallocated.
	params := config.DefaultParams()
	users := map[int64]domain.User{
		1: {ID: 1, KYCLevel: intPtr(1)},
		2: {ID: 2, KYCLevel: intPtr(1)},
	}
	res := Allocate(20000, map[int64]float64{1: 100, 2: 100}, users, params)

	if res.PerCreatorCents[1] != 5000 || res.PerCreatorCents[2] != 5000 {
		t.Errorf("expected 5000 each, got %v", res.PerCreatorCents)
	}
	if res.UnallocatedCents != 10000 {
		t.Errorf("expected 10000 unallocated, got %d", res.UnallocatedCents)
	}
	if res.AllocatedCents+res.UnallocatedCents != 20000 {
		t.Errorf("allocation does not sum to pool: %d + %d", res.AllocatedCents, res.UnallocatedCents)
	}
}

func TestAllocate_CappedExcessRedistributes(t *testing.T) {
	params := config.DefaultParams()
	users := map[int64]domain.User{
		1: {ID: 1, KYCLevel: intPtr(3)},
		2: {ID: 2, KYCLevel: intPtr(2)},
		3: {ID: 3, KYCLevel: intPtr(1)},
	}
	res := Allocate(60000, map[int64]float64{1: 50, 2: 50, 3: 100}, users, params)

	want := map[int64]int64{1: 27500, 2: 27500, 3: 5000}
	for id, cents := range want {
		if res.PerCreatorCents[id] != cents {
			t.Errorf("creator %d: expected %d cents, got %d", id, cents, res.PerCreatorCents[id])
		}
	}
	if res.AllocatedCents != 60000 {
		t.Errorf("expected full pool allocated, got %d", res.AllocatedCents)
	}
	if res.UnallocatedCents != 0 {
		t.Errorf("expected 0 unallocated, got %d", res.UnallocatedCents)
	}
}

func TestAllocate_BotExcluded(t *testing.T) {
	params := config.DefaultParams()
	users := map[int64]domain.User{
		1: {ID: 1, LikelyBot: true, KYCLevel: intPtr(3)},
	}
	res := Allocate(10000, map[int64]float64{1: 1000}, users, params)

	if len(res.PerCreatorCents) != 0 {
		t.Errorf("bot should receive nothing, got %v", res.PerCreatorCents)
	}
	if res.UnallocatedCents != 10000 {
		t.Errorf("expected whole pool unallocated, got %d", res.UnallocatedCents)
	}
	if res.Multipliers[1] != 0 {
		t.Errorf("expected zero multiplier for bot, got %v", res.Multipliers[1])
	}
}

func TestAllocate_TrustMultiplierSkewsShares(t *testing.T) {
	// Equal units; the high-trust creator gets the larger share.
	params := config.DefaultParams()
	users := map[int64]domain.User{
		1: {ID: 1, KYCLevel: intPtr(3), CreatorTrustScore: f64Ptr(100)},
		2: {ID: 2, KYCLevel: intPtr(3), CreatorTrustScore: f64Ptr(0)},
	}
	res := Allocate(10000, map[int64]float64{1: 100, 2: 100}, users, params)

	if res.Multipliers[1] != 1.10 || res.Multipliers[2] != 0.90 {
		t.Errorf("unexpected multipliers: %v", res.Multipliers)
	}
	if res.PerCreatorCents[1] <= res.PerCreatorCents[2] {
		t.Errorf("high-trust creator should earn more: %v", res.PerCreatorCents)
	}
	if res.AllocatedCents+res.UnallocatedCents != 10000 {
		t.Errorf("cents do not reconcile: %v", res)
	}
}

func TestAllocate_RoundingReconciles(t *testing.T) {
	// Three-way split of a pool that does not divide evenly.
	params := config.DefaultParams()
	users := map[int64]domain.User{
		1: {ID: 1, KYCLevel: intPtr(3)},
		2: {ID: 2, KYCLevel: intPtr(3)},
		3: {ID: 3, KYCLevel: intPtr(3)},
	}
	res := Allocate(100, map[int64]float64{1: 1, 2: 1, 3: 1}, users, params)

	var total int64
	for _, c := range res.PerCreatorCents {
		total += c
	}
	if total != 100 {
		t.Errorf("expected exactly 100 cents assigned, got %d (%v)", total, res.PerCreatorCents)
	}
	if res.UnallocatedCents != 0 {
		t.Errorf("expected 0 unallocated, got %d", res.UnallocatedCents)
	}
}

func TestAllocate_EmptyOrZeroPool(t *testing.T) {
	params := config.DefaultParams()

	res := Allocate(0, map[int64]float64{1: 10}, map[int64]domain.User{1: {ID: 1, KYCLevel: intPtr(3)}}, params)
	if len(res.PerCreatorCents) != 0 || res.UnallocatedCents != 0 {
		t.Errorf("zero pool should allocate nothing: %v", res)
	}

	res = Allocate(5000, nil, nil, params)
	if res.UnallocatedCents != 5000 {
		t.Errorf("no creators should leave pool unallocated, got %d", res.UnallocatedCents)
	}
}

func TestBuildShares_SumsToCreatorCents(t *testing.T) {
	build := units.BuildResult{
		PerVideo: []units.VideoUnits{
			{VideoID: 10, CreatorID: 1, EngUnits: 185, EIS: 80, Kicker: 1.0, VU: 118.4},
			{VideoID: 11, CreatorID: 1, EngUnits: 106, EIS: 20, Kicker: 1.0, VU: 4.24},
		},
	}
	shares := BuildShares(7, build, map[int64]int64{1: 12264})

	if len(shares) != 2 {
		t.Fatalf("expected 2 share rows, got %d", len(shares))
	}
	var total int64
	var pct float64
	for _, s := range shares {
		if s.RevenueWindowID != 7 {
			t.Errorf("share row has window id %d", s.RevenueWindowID)
		}
		total += s.AllocatedCents
		pct += s.SharePct
	}
	if total != 12264 {
		t.Errorf("share cents %d do not sum to creator cents", total)
	}
	if pct < 0.999 || pct > 1.001 {
		t.Errorf("share fractions sum to %v, expected 1", pct)
	}
	if shares[0].AllocatedCents <= shares[1].AllocatedCents {
		t.Errorf("higher-value video should carry more cents: %v vs %v",
			shares[0].AllocatedCents, shares[1].AllocatedCents)
	}
	for _, s := range shares {
		want := float64(s.AllocatedCents) / 12264
		if diff := s.SharePct - want; diff < -1e-9 || diff > 1e-9 {
			t.Errorf("video %d share_pct %v != cent fraction %v", s.VideoID, s.SharePct, want)
		}
	}
}

func TestBuildShares_DriftKeepsFractionsConsistent(t *testing.T) {
	// Three equal videos over 100 cents: each rounds to 33, and the single
	// leftover cent lands on the first video. share_pct must follow the cents.
	build := units.BuildResult{
		PerVideo: []units.VideoUnits{
			{VideoID: 10, CreatorID: 1, EngUnits: 10, EIS: 100, Kicker: 1.0, VU: 10},
			{VideoID: 11, CreatorID: 1, EngUnits: 10, EIS: 100, Kicker: 1.0, VU: 10},
			{VideoID: 12, CreatorID: 1, EngUnits: 10, EIS: 100, Kicker: 1.0, VU: 10},
		},
	}
	shares := BuildShares(3, build, map[int64]int64{1: 100})

	if len(shares) != 3 {
		t.Fatalf("expected 3 share rows, got %d", len(shares))
	}
	var total int64
	var pct float64
	for _, s := range shares {
		total += s.AllocatedCents
		pct += s.SharePct
		want := float64(s.AllocatedCents) / 100
		if diff := s.SharePct - want; diff < -1e-9 || diff > 1e-9 {
			t.Errorf("video %d share_pct %v != cent fraction %v", s.VideoID, s.SharePct, want)
		}
	}
	if total != 100 {
		t.Errorf("share cents %d do not sum to creator cents", total)
	}
	if pct < 1-1e-9 || pct > 1+1e-9 {
		t.Errorf("share fractions sum to %v, expected exactly 1", pct)
	}
	if shares[0].AllocatedCents != 34 {
		t.Errorf("drift cent should land on the first video, got %d", shares[0].AllocatedCents)
	}
}
