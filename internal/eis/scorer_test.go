package eis

import (
	"math"
	"testing"

	"github.com/clipwave/revcore/internal/engage"
)

func f64Ptr(v float64) *float64 { return &v }

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %v, want %v", name, got, want)
	}
}

func TestScore_ComponentsInRange(t *testing.T) {
	f := engage.WindowFeatures{
		Views: 100, Likes: 20, Comments: 5,
		ActiveViewers: 60, UniqueCommenters: 5, UniqueLikers: 20,
		DurationS: 15, AgeS: 3600,
		CommenterIDs: []int64{1, 2, 3, 4, 5},
		LikerIDs:     []int64{1, 2, 3, 4, 5, 6},
	}
	vts := map[int64]float64{}
	for id := int64(1); id <= 6; id++ {
		vts[id] = 80
	}

	d := Score(f, vts, nil)
	for name, v := range map[string]float64{
		"eis": d.EIS,
		"ae":  d.Components.AuthenticEngagement,
		"cq":  d.Components.CommentQuality,
		"li":  d.Components.LikeIntegrity,
		"rc":  d.Components.ReportCredibility,
	} {
		if v < 0 || v > 100 {
			t.Errorf("%s out of range: %v", name, v)
		}
	}
	if d.Components.ReportCredibility != 100 {
		t.Errorf("no reports should score RC=100, got %v", d.Components.ReportCredibility)
	}
	if d.CreatorTrustFactor != 1.0 {
		t.Errorf("missing creator trust should be neutral, got %v", d.CreatorTrustFactor)
	}
}

func TestScore_NoCommentsNeutralQuality(t *testing.T) {
	f := engage.WindowFeatures{Views: 50, DurationS: 15, AgeS: 100}
	d := Score(f, nil, nil)
	if d.Components.CommentQuality != 50 {
		t.Errorf("no comments should score neutral CQ, got %v", d.Components.CommentQuality)
	}
	if d.Components.LikeIntegrity != 50 {
		t.Errorf("no likes should score neutral LI, got %v", d.Components.LikeIntegrity)
	}
}

func TestScore_DeviceClusteringPenalty(t *testing.T) {
	// 1000 likes from two devices versus a uniform spread: the concentrated
	// window loses 20 LI points.
	base := engage.WindowFeatures{
		Views: 2000, Likes: 1000, UniqueLikers: 1000,
		DurationS: 15, AgeS: 3600,
		LikerIDs: []int64{1},
	}
	vts := map[int64]float64{1: 100}

	concentrated := base
	concentrated.DeviceConcentrationTopShare = 0.5
	uniform := base
	uniform.DeviceConcentrationTopShare = 0.01

	liConc := Score(concentrated, vts, nil).Components.LikeIntegrity
	liUnif := Score(uniform, vts, nil).Components.LikeIntegrity
	approx(t, "clustering penalty", liUnif-liConc, 20, 1e-9)
}

func TestScore_ReportMassDiscount(t *testing.T) {
	f := engage.WindowFeatures{
		Views: 100, Likes: 10, UniqueLikers: 10,
		DurationS: 15, AgeS: 3600,
		LikerIDs:    []int64{1},
		ReporterIDs: []int64{2, 3},
	}
	vts := map[int64]float64{1: 50, 2: 100, 3: 100}

	d := Score(f, vts, nil)
	// mass = 2.0, denominator = max(5, 5) = 5.
	approx(t, "weighted report mass", d.WeightedReportMass, 2.0, 1e-9)
	approx(t, "report credibility", d.Components.ReportCredibility, 60, 1e-9)
}

func TestScore_CreatorTrustModulation(t *testing.T) {
	f := engage.WindowFeatures{Views: 100, Likes: 25, DurationS: 15, AgeS: 100, ActiveViewers: 50, LikerIDs: []int64{1}, UniqueLikers: 1}
	vts := map[int64]float64{1: 100}

	neutral := Score(f, vts, f64Ptr(50))
	low := Score(f, vts, f64Ptr(0))
	high := Score(f, vts, f64Ptr(100))

	approx(t, "neutral factor", neutral.CreatorTrustFactor, 1.0, 1e-9)
	approx(t, "low factor", low.CreatorTrustFactor, 0.95, 1e-9)
	approx(t, "high factor", high.CreatorTrustFactor, 1.0, 1e-9)
	if low.EIS >= neutral.EIS {
		t.Errorf("low-trust creator should score below neutral: %v vs %v", low.EIS, neutral.EIS)
	}
}

func TestScore_TargetsScaleWithDuration(t *testing.T) {
	short := Score(engage.WindowFeatures{Views: 1, DurationS: 15, AgeS: 10}, nil, nil)
	long := Score(engage.WindowFeatures{Views: 1, DurationS: 120, AgeS: 10}, nil, nil)

	approx(t, "short target lpv", short.TargetLikesPerView, 0.08, 1e-9)
	approx(t, "long target lpv", long.TargetLikesPerView, 0.02, 1e-9)
	if long.TargetCommentsPerView >= short.TargetCommentsPerView {
		t.Errorf("longer videos should have lower comment targets")
	}
}

func TestScore_RecencyDecay(t *testing.T) {
	fresh := Score(engage.WindowFeatures{Views: 10, DurationS: 15, AgeS: 3600}, nil, nil)
	aged := Score(engage.WindowFeatures{Views: 10, DurationS: 15, AgeS: 8 * 86400}, nil, nil)
	stale := Score(engage.WindowFeatures{Views: 10, DurationS: 15, AgeS: 30 * 86400}, nil, nil)

	approx(t, "fresh recency", fresh.RecencyFactor, 1.0, 1e-9)
	approx(t, "aged recency floor", aged.RecencyFactor, 0.6, 1e-9)
	approx(t, "stale recency floor", stale.RecencyFactor, 0.6, 1e-9)
}
