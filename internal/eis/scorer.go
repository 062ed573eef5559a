// Package eis blends schema-derived engagement features and viewer trust
// into the per-video Engagement Integrity Score.
package eis

import (
	"math"

	"github.com/clipwave/revcore/internal/engage"
)

// Blend weights for the four component scores.
const (
	weightAE = 0.40
	weightCQ = 0.25
	weightLI = 0.20
	weightRC = 0.15
)

// Components are the four sub-scores, each in [0,100].
type Components struct {
	AuthenticEngagement float64 `json:"authentic_engagement"`
	CommentQuality      float64 `json:"comment_quality"`
	LikeIntegrity       float64 `json:"like_integrity"`
	ReportCredibility   float64 `json:"report_credibility"`
}

// Details carries the final EIS with component breakdown and the
// intermediate values that explain it.
type Details struct {
	EIS        float64    `json:"eis"`
	Components Components `json:"components"`

	TargetLikesPerView    float64  `json:"target_likes_per_view"`
	TargetCommentsPerView float64  `json:"target_comments_per_view"`
	LikesPerView          float64  `json:"likes_per_view"`
	CommentsPerView       float64  `json:"comments_per_view"`
	RecencyFactor         float64  `json:"recency_factor"`
	AudienceFactor        float64  `json:"audience_factor"`
	UniqueCommenterRate   float64  `json:"unique_commenter_rate"`
	AvgCommenterVTS       *float64 `json:"avg_commenter_vts,omitempty"`
	AvgLikerVTS           *float64 `json:"avg_liker_vts,omitempty"`
	TimingNaturalness     float64  `json:"timing_naturalness"`
	ClusteringPenalty     float64  `json:"clustering_penalty"`
	WeightedReportMass    float64  `json:"weighted_report_mass"`
	CreatorTrustFactor    float64  `json:"creator_trust_factor"`
}

// Score computes the EIS for one video window. vts maps user id to adjusted
// Viewer Trust Score; creatorTrust is the creator's stored trust score or
// nil.
func Score(f engage.WindowFeatures, vts map[int64]float64, creatorTrust *float64) Details {
	d := Details{}

	d.Components.AuthenticEngagement = authenticEngagement(f, &d)
	d.Components.CommentQuality = commentQuality(f, vts, &d)
	d.Components.LikeIntegrity = likeIntegrity(f, vts, &d)
	d.Components.ReportCredibility = reportCredibility(f, vts, &d)

	blended := weightAE*d.Components.AuthenticEngagement +
		weightCQ*d.Components.CommentQuality +
		weightLI*d.Components.LikeIntegrity +
		weightRC*d.Components.ReportCredibility

	d.CreatorTrustFactor = 1.0
	if creatorTrust != nil {
		d.CreatorTrustFactor = clamp(0.95+(*creatorTrust-50)/1000, 0.95, 1.05)
	}
	d.EIS = clamp(blended*d.CreatorTrustFactor, 0, 100)
	return d
}

// authenticEngagement scores like/comment density against duration-scaled
// targets, tempered by recency and audience size.
func authenticEngagement(f engage.WindowFeatures, d *Details) float64 {
	duration := f.DurationS
	if duration <= 0 {
		duration = 15
	}
	d.TargetLikesPerView = clamp(0.08*(15/duration), 0.02, 0.25)
	d.TargetCommentsPerView = clamp(0.02*(15/duration), 0.005, 0.08)

	views := math.Max(1, float64(f.Views))
	d.LikesPerView = float64(f.Likes) / views
	d.CommentsPerView = float64(f.Comments) / views

	sLikes := math.Min(1, d.LikesPerView/d.TargetLikesPerView)
	sComments := math.Min(1, d.CommentsPerView/d.TargetCommentsPerView)

	const day = 86400.0
	d.RecencyFactor = 1.0
	if f.AgeS > day {
		d.RecencyFactor = math.Max(0.6, 1-(f.AgeS-day)/(7*day))
	}
	d.AudienceFactor = math.Min(1, float64(f.ActiveViewers)/50)

	return 100 * d.RecencyFactor * (0.4*sLikes + 0.4*sComments + 0.2*d.AudienceFactor)
}

// commentQuality blends commenter uniqueness with commenter trust. No
// natural-language inspection. A window with no comments scores neutral.
func commentQuality(f engage.WindowFeatures, vts map[int64]float64, d *Details) float64 {
	if f.Comments == 0 {
		d.UniqueCommenterRate = 0
		return 50
	}
	d.UniqueCommenterRate = float64(f.UniqueCommenters) / math.Max(1, float64(f.Comments))
	avg := meanVTS(vts, f.CommenterIDs)
	d.AvgCommenterVTS = &avg
	return 100 * (0.5*d.UniqueCommenterRate + 0.5*avg/100)
}

// likeIntegrity blends liker trust, timing naturalness, and device/IP
// clustering. A window with no likes scores neutral.
func likeIntegrity(f engage.WindowFeatures, vts map[int64]float64, d *Details) float64 {
	if f.Likes == 0 {
		d.TimingNaturalness = 0.7
		return 50
	}
	avg := meanVTS(vts, f.LikerIDs)
	d.AvgLikerVTS = &avg
	base := avg / 100

	d.TimingNaturalness = 0.7
	if f.InterArrivalCV != nil {
		d.TimingNaturalness = clamp(*f.InterArrivalCV/0.6, 0, 1)
	}

	topShare := math.Max(f.DeviceConcentrationTopShare, f.IPConcentrationTopShare)
	d.ClusteringPenalty = clamp(topShare-0.2, 0, 0.6) / 0.6

	return 100 * math.Max(0, 0.5*base+0.3*d.TimingNaturalness-0.4*d.ClusteringPenalty+0.1)
}

// reportCredibility discounts the score by trust-weighted report mass
// relative to view volume.
func reportCredibility(f engage.WindowFeatures, vts map[int64]float64, d *Details) float64 {
	var mass float64
	for _, id := range f.ReporterIDs {
		mass += vts[id] / 100
	}
	d.WeightedReportMass = mass
	denom := math.Max(5, 0.05*float64(f.Views))
	return 100 * math.Max(0, 1-mass/denom)
}

func meanVTS(vts map[int64]float64, ids []int64) float64 {
	if len(ids) == 0 {
		return 50
	}
	var sum float64
	for _, id := range ids {
		sum += vts[id]
	}
	return sum / float64(len(ids))
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
