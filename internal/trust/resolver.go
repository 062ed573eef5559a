// Package trust materializes viewer and creator trust signals from stored
// user fields. The underlying scores are produced by external KYC and abuse
// collaborators; this package only reads and adjusts them deterministically.
package trust

import (
	"context"
	"fmt"
	"sort"

	"github.com/clipwave/revcore/internal/domain"
	"github.com/clipwave/revcore/internal/persistence"
)

// NeutralVTS is assumed when a user has no stored viewer_trust_score.
const NeutralVTS = 50.0

// VTS returns the adjusted Viewer Trust Score for a user, in [0,100]. The
// adjustment is fixed so every scorer sees the same value for the same row:
// bot flag ×0.2, then KYC modifier (missing/0 ×0.7, 1 ×0.9, ≥2 ×1.0).
func VTS(u domain.User) float64 {
	vts := NeutralVTS
	if u.ViewerTrustScore != nil {
		vts = *u.ViewerTrustScore
	}
	if u.LikelyBot {
		vts *= 0.2
	}
	switch {
	case u.KYCLevel == nil || *u.KYCLevel <= 0:
		vts *= 0.7
	case *u.KYCLevel == 1:
		vts *= 0.9
	}
	return clamp(vts, 0, 100)
}

// CreatorPayoutMultiplier maps creator trust onto the allocator multiplier
// range. likely_bot excludes outright; a missing score is neutral (1.0).
func CreatorPayoutMultiplier(u domain.User, min, max float64, penalizeBot bool) float64 {
	if penalizeBot && u.LikelyBot {
		return 0
	}
	if u.CreatorTrustScore == nil {
		return 1.0
	}
	cts := clamp(*u.CreatorTrustScore, 0, 100)
	return min + (max-min)*cts/100
}

// Resolver resolves adjusted VTS values in bulk, optionally through a cache.
type Resolver struct {
	users persistence.UsersRepo
	cache Cache
}

// Cache is the optional VTS read-through cache; see RedisCache.
type Cache interface {
	GetMany(ctx context.Context, ids []int64) (map[int64]float64, error)
	SetMany(ctx context.Context, scores map[int64]float64) error
}

// NewResolver creates a resolver. cache may be nil.
func NewResolver(users persistence.UsersRepo, cache Cache) *Resolver {
	return &Resolver{users: users, cache: cache}
}

// ResolveAll returns adjusted VTS per user id. Unknown users resolve to the
// neutral default after the missing-KYC adjustment, matching how an absent
// row would score.
func (r *Resolver) ResolveAll(ctx context.Context, ids []int64) (map[int64]float64, error) {
	out := make(map[int64]float64, len(ids))
	missing := ids

	if r.cache != nil {
		cached, err := r.cache.GetMany(ctx, ids)
		if err == nil {
			missing = missing[:0:0]
			for _, id := range ids {
				if v, ok := cached[id]; ok {
					out[id] = v
				} else {
					missing = append(missing, id)
				}
			}
		}
		// Cache failures fall through to storage; trust reads must not
		// depend on cache availability.
	}

	if len(missing) > 0 {
		users, err := r.users.GetByIDs(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("resolve viewer trust: %w", err)
		}
		fresh := make(map[int64]float64, len(missing))
		for _, id := range missing {
			if u, ok := users[id]; ok {
				fresh[id] = VTS(u)
			} else {
				fresh[id] = VTS(domain.User{})
			}
			out[id] = fresh[id]
		}
		if r.cache != nil {
			_ = r.cache.SetMany(ctx, fresh)
		}
	}
	return out, nil
}

// MeanVTS averages the adjusted VTS over the given ids; ok is false when the
// set is empty.
func MeanVTS(scores map[int64]float64, ids []int64) (float64, bool) {
	if len(ids) == 0 {
		return 0, false
	}
	var sum float64
	for _, id := range ids {
		sum += scores[id]
	}
	return sum / float64(len(ids)), true
}

// SortedIDs returns map keys ascending, for deterministic iteration.
func SortedIDs[M ~map[int64]V, V any](m M) []int64 {
	out := make([]int64, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
