// Package engage derives per-window engagement features from raw events.
// Features are purely schema-derived: counts, uniqueness, device/IP
// concentration, and like-timing statistics. No content inspection.
package engage

import (
	"math"
	"sort"
	"time"

	"github.com/clipwave/revcore/internal/domain"
)

// WindowFeatures are the extracted signals for one (video, window) pair.
type WindowFeatures struct {
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Reports  int64 `json:"reports"`
	Shares   int64 `json:"shares"`

	ActiveViewers    int64 `json:"active_viewers"`
	UniqueCommenters int64 `json:"unique_commenters"`
	UniqueLikers     int64 `json:"unique_likers"`

	DeviceConcentrationTopShare float64 `json:"device_concentration_top_share"`
	IPConcentrationTopShare     float64 `json:"ip_concentration_top_share"`
	UsersPerDevice              int64   `json:"users_per_device"`
	UsersPerIP                  int64   `json:"users_per_ip"`

	// InterArrivalCV is nil when there are fewer than 3 likes; scorers treat
	// that as a neutral signal.
	InterArrivalCV *float64 `json:"inter_arrival_cv,omitempty"`

	DurationS float64 `json:"duration_s"`
	AgeS      float64 `json:"age_s"`
	RecencyS  float64 `json:"recency_s"`

	// Per-user id sets the scorers need for trust lookups.
	CommenterIDs []int64 `json:"-"`
	LikerIDs     []int64 `json:"-"`
	ReporterIDs  []int64 `json:"-"`
}

// FilterSelfEngagement drops the creator's own events; a creator liking or
// commenting on their own upload carries no integrity signal.
func FilterSelfEngagement(events []domain.Event, creatorID int64) []domain.Event {
	out := events[:0:0]
	for _, ev := range events {
		if ev.UserID == creatorID {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Extract computes window features for one video's events. Events must all
// belong to the same video; callers filter self-engagement first.
func Extract(events []domain.Event, video domain.Video, win domain.Window) WindowFeatures {
	f := WindowFeatures{DurationS: video.DurationS}

	viewers := map[int64]bool{}
	commenters := map[int64]bool{}
	likers := map[int64]bool{}
	reporters := map[int64]bool{}

	likesByDevice := map[string]int64{}
	likesByIP := map[string]int64{}
	usersByDevice := map[string]map[int64]bool{}
	usersByIP := map[string]map[int64]bool{}

	var likeTimes []time.Time
	var lastTS time.Time

	for _, ev := range events {
		viewers[ev.UserID] = true
		if ev.TS.After(lastTS) {
			lastTS = ev.TS
		}
		switch ev.Type {
		case domain.EventView:
			f.Views++
		case domain.EventLike:
			f.Likes++
			likers[ev.UserID] = true
			likeTimes = append(likeTimes, ev.TS)
			if ev.DeviceID != nil {
				likesByDevice[*ev.DeviceID]++
				if usersByDevice[*ev.DeviceID] == nil {
					usersByDevice[*ev.DeviceID] = map[int64]bool{}
				}
				usersByDevice[*ev.DeviceID][ev.UserID] = true
			}
			if ev.IPHash != nil {
				likesByIP[*ev.IPHash]++
				if usersByIP[*ev.IPHash] == nil {
					usersByIP[*ev.IPHash] = map[int64]bool{}
				}
				usersByIP[*ev.IPHash][ev.UserID] = true
			}
		case domain.EventComment:
			f.Comments++
			commenters[ev.UserID] = true
		case domain.EventReport:
			f.Reports++
			reporters[ev.UserID] = true
		case domain.EventShare:
			f.Shares++
		}
	}

	f.ActiveViewers = int64(len(viewers))
	f.UniqueCommenters = int64(len(commenters))
	f.UniqueLikers = int64(len(likers))
	f.CommenterIDs = setToSorted(commenters)
	f.LikerIDs = setToSorted(likers)
	f.ReporterIDs = setToSorted(reporters)

	// Concentration shares: null attribution is ignored for the numerator but
	// stays in the denominator.
	f.DeviceConcentrationTopShare = topShare(likesByDevice, f.Likes)
	f.IPConcentrationTopShare = topShare(likesByIP, f.Likes)
	f.UsersPerDevice = maxUsers(usersByDevice)
	f.UsersPerIP = maxUsers(usersByIP)

	f.InterArrivalCV = interArrivalCV(likeTimes)

	f.AgeS = win.End.Sub(video.CreatedAt).Seconds()
	if !lastTS.IsZero() {
		f.RecencyS = win.End.Sub(lastTS).Seconds()
	} else {
		f.RecencyS = win.Duration().Seconds()
	}
	return f
}

// ToMap renders the features for jsonb persistence.
func (f WindowFeatures) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"views":                          f.Views,
		"likes":                          f.Likes,
		"comments":                       f.Comments,
		"reports":                        f.Reports,
		"shares":                         f.Shares,
		"active_viewers":                 f.ActiveViewers,
		"unique_commenters":              f.UniqueCommenters,
		"unique_likers":                  f.UniqueLikers,
		"device_concentration_top_share": f.DeviceConcentrationTopShare,
		"ip_concentration_top_share":     f.IPConcentrationTopShare,
		"users_per_device":               f.UsersPerDevice,
		"users_per_ip":                   f.UsersPerIP,
		"duration_s":                     f.DurationS,
		"age_s":                          f.AgeS,
		"recency_s":                      f.RecencyS,
	}
	if f.InterArrivalCV != nil {
		m["inter_arrival_cv"] = *f.InterArrivalCV
	}
	return m
}

func topShare(counts map[string]int64, total int64) float64 {
	if total == 0 {
		return 0
	}
	var top int64
	for _, c := range counts {
		if c > top {
			top = c
		}
	}
	return float64(top) / float64(total)
}

func maxUsers(byKey map[string]map[int64]bool) int64 {
	var top int64
	for _, users := range byKey {
		if n := int64(len(users)); n > top {
			top = n
		}
	}
	return top
}

// interArrivalCV is the coefficient of variation (σ/μ) of gaps between
// consecutive like timestamps. Fewer than 3 likes yields nil (neutral).
func interArrivalCV(times []time.Time) *float64 {
	if len(times) < 3 {
		return nil
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	gaps := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		gaps = append(gaps, times[i].Sub(times[i-1]).Seconds())
	}

	var mean float64
	for _, g := range gaps {
		mean += g
	}
	mean /= float64(len(gaps))
	if mean == 0 {
		// All likes in the same instant: zero spread, maximal regularity.
		cv := 0.0
		return &cv
	}

	var variance float64
	for _, g := range gaps {
		d := g - mean
		variance += d * d
	}
	variance /= float64(len(gaps))

	cv := math.Sqrt(variance) / mean
	return &cv
}

func setToSorted(set map[int64]bool) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
