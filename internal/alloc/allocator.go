// Package alloc divides a creator pool across creators in integer cents,
// applying trust multipliers and per-run KYC ceilings.
package alloc

import (
	"math"
	"sort"

	"github.com/clipwave/revcore/internal/config"
	"github.com/clipwave/revcore/internal/domain"
	"github.com/clipwave/revcore/internal/trust"
	"github.com/clipwave/revcore/internal/units"
)

// Result is a fully reconciled split of the pool. AllocatedCents plus
// UnallocatedCents always equals the input pool.
type Result struct {
	PerCreatorCents  map[int64]int64   `json:"per_creator_cents"`
	AdjustedUnits    map[int64]float64 `json:"adjusted_units"`
	Multipliers      map[int64]float64 `json:"multipliers"`
	AllocatedCents   int64             `json:"allocated_cents"`
	UnallocatedCents int64             `json:"unallocated_cents"`
}

// Allocate splits poolCents across creators proportionally to their
// trust-adjusted value units, then enforces per-run KYC ceilings by
// redistributing capped excess among the uncapped, and finally reconciles
// rounding so the cent total is exact. Creators missing from users are
// treated as unreviewed accounts and excluded by the zero KYC ceiling.
func Allocate(poolCents int64, unitsByCreator map[int64]float64, users map[int64]domain.User, params config.Params) Result {
	res := Result{
		PerCreatorCents: map[int64]int64{},
		AdjustedUnits:   map[int64]float64{},
		Multipliers:     map[int64]float64{},
	}

	for _, id := range trust.SortedIDs(unitsByCreator) {
		u := users[id]
		m := trust.CreatorPayoutMultiplier(u, params.TrustMultMin, params.TrustMultMax, params.PenalizeLikelyBot)
		res.Multipliers[id] = m
		if adj := unitsByCreator[id] * m; adj > 0 {
			res.AdjustedUnits[id] = adj
		}
	}

	if poolCents <= 0 || len(res.AdjustedUnits) == 0 {
		res.UnallocatedCents = poolCents
		return res
	}

	caps := map[int64]int64{}
	for id := range res.AdjustedUnits {
		u := users[id]
		caps[id] = params.CapForKYC(u.KYCLevel)
	}

	alloc := distribute(poolCents, res.AdjustedUnits, caps, len(res.AdjustedUnits))
	reconcile(poolCents, alloc, res.AdjustedUnits, caps)

	for id, cents := range alloc {
		if cents > 0 {
			res.PerCreatorCents[id] = cents
			res.AllocatedCents += cents
		}
	}
	res.UnallocatedCents = poolCents - res.AllocatedCents
	return res
}

// distribute performs the proportional split with iterative cap enforcement.
// Each pass pins creators whose proportional share exceeds their ceiling and
// reruns the split over the remainder; it converges within maxIter passes
// because every pass pins at least one creator.
func distribute(pool int64, adjusted map[int64]float64, caps map[int64]int64, maxIter int) map[int64]int64 {
	alloc := map[int64]int64{}
	pinned := map[int64]bool{}

	for iter := 0; iter <= maxIter; iter++ {
		remaining := pool
		for id := range pinned {
			remaining -= alloc[id]
		}

		var sumU float64
		for id, u := range adjusted {
			if !pinned[id] {
				sumU += u
			}
		}
		if sumU <= 0 || remaining <= 0 {
			for id := range adjusted {
				if !pinned[id] {
					alloc[id] = 0
				}
			}
			break
		}

		anyPinned := false
		for id, u := range adjusted {
			if pinned[id] {
				continue
			}
			share := int64(math.Round(float64(remaining) * u / sumU))
			if limit := caps[id]; limit >= 0 && share > limit {
				alloc[id] = limit
				pinned[id] = true
				anyPinned = true
			} else {
				alloc[id] = share
			}
		}
		if !anyPinned {
			break
		}
	}
	return alloc
}

// reconcile moves single cents until the allocation sums exactly to pool.
// Cents are granted to, or withdrawn from, creators in descending adjusted
// unit order with ascending id as tiebreak, skipping creators at their cap
// or at zero respectively.
func reconcile(pool int64, alloc map[int64]int64, adjusted map[int64]float64, caps map[int64]int64) {
	var total int64
	for _, c := range alloc {
		total += c
	}

	order := make([]int64, 0, len(adjusted))
	for id := range adjusted {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		if adjusted[order[i]] != adjusted[order[j]] {
			return adjusted[order[i]] > adjusted[order[j]]
		}
		return order[i] < order[j]
	})

	for total != pool {
		moved := false
		for _, id := range order {
			if total == pool {
				return
			}
			if total < pool {
				if limit := caps[id]; limit >= 0 && alloc[id] >= limit {
					continue
				}
				alloc[id]++
				total++
				moved = true
			} else {
				if alloc[id] <= 0 {
					continue
				}
				alloc[id]--
				total--
				moved = true
			}
		}
		if !moved {
			// Everyone is at a ceiling (or floor); the difference stays
			// unallocated.
			return
		}
	}
}

// BuildShares splits each creator's cents back across their videos in
// proportion to per-video value units, for the per-video audit rows.
func BuildShares(windowID int64, build units.BuildResult, perCreator map[int64]int64) []domain.VideoRevShare {
	videosByCreator := map[int64][]units.VideoUnits{}
	for _, vu := range build.PerVideo {
		videosByCreator[vu.CreatorID] = append(videosByCreator[vu.CreatorID], vu)
	}

	var shares []domain.VideoRevShare
	for _, creatorID := range trust.SortedIDs(perCreator) {
		cents := perCreator[creatorID]
		vids := videosByCreator[creatorID]
		if len(vids) == 0 {
			continue
		}
		var sumVU float64
		for _, v := range vids {
			sumVU += v.VU
		}

		var assigned int64
		rows := make([]domain.VideoRevShare, len(vids))
		for i, v := range vids {
			frac := 0.0
			if sumVU > 0 {
				frac = v.VU / sumVU
			}
			amt := int64(math.Round(float64(cents) * frac))
			assigned += amt
			rows[i] = domain.VideoRevShare{
				RevenueWindowID: windowID,
				VideoID:         v.VideoID,
				EngUnits:        v.EngUnits,
				EISAvg:          v.EIS,
				VU:              v.VU,
				SharePct:        frac,
				AllocatedCents:  amt,
				Meta:            map[string]interface{}{"kicker": v.Kicker},
			}
		}
		// Push any rounding drift onto the creator's highest-value video.
		if drift := cents - assigned; drift != 0 {
			top := 0
			for i := range rows {
				if rows[i].VU > rows[top].VU {
					top = i
				}
			}
			rows[top].AllocatedCents += drift
		}
		// share_pct reports the realized cent fraction, so it stays exact
		// after the drift adjustment.
		if cents > 0 {
			for i := range rows {
				rows[i].SharePct = float64(rows[i].AllocatedCents) / float64(cents)
			}
		}
		shares = append(shares, rows...)
	}
	return shares
}
