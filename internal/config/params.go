package config

import (
	"fmt"

	"github.com/clipwave/revcore/internal/domain"
)

// EventWeights are the integer weights applied to per-type event counts when
// computing EngUnits.
type EventWeights struct {
	View    int64 `yaml:"view" json:"view"`
	Like    int64 `yaml:"like" json:"like"`
	Comment int64 `yaml:"comment" json:"comment"`
	Share   int64 `yaml:"share" json:"share"`
}

// KYCCaps are the per-run inflow ceilings in cents by KYC level. Level 0 and
// missing KYC are always capped at zero; level 3 and above are uncapped.
type KYCCaps struct {
	Level1Cents int64 `yaml:"level1_cents" json:"level1_cents"`
	Level2Cents int64 `yaml:"level2_cents" json:"level2_cents"`
}

// Params is the full tunable surface of the core. It is passed explicitly to
// every entrypoint; nothing reads process-global state.
type Params struct {
	EventWeights EventWeights `yaml:"event_weights" json:"event_weights"`
	Gamma        float64      `yaml:"gamma" json:"gamma"`

	EarlyMinViews   int64   `yaml:"early_min_views" json:"early_min_views"`
	EarlyDeviceFrac float64 `yaml:"early_device_frac" json:"early_device_frac"`
	EarlyIPFrac     float64 `yaml:"early_ip_frac" json:"early_ip_frac"`
	EarlyKicker     float64 `yaml:"early_kicker" json:"early_kicker"`

	TrustMultMin      float64 `yaml:"trust_mult_min" json:"trust_mult_min"`
	TrustMultMax      float64 `yaml:"trust_mult_max" json:"trust_mult_max"`
	PenalizeLikelyBot bool    `yaml:"penalize_likely_bot" json:"penalize_likely_bot"`

	KYCCaps KYCCaps `yaml:"kyc_caps_cents" json:"kyc_caps_cents"`

	PoolPct        float64 `yaml:"pool_pct" json:"pool_pct"`
	MarginTarget   float64 `yaml:"margin_target" json:"margin_target"`
	RiskReservePct float64 `yaml:"risk_reserve_pct" json:"risk_reserve_pct"`
	PlatformFeePct float64 `yaml:"platform_fee_pct" json:"platform_fee_pct"`
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		EventWeights:      EventWeights{View: 1, Like: 3, Comment: 5, Share: 8},
		Gamma:             2.0,
		EarlyMinViews:     50,
		EarlyDeviceFrac:   0.5,
		EarlyIPFrac:       0.4,
		EarlyKicker:       1.05,
		TrustMultMin:      0.90,
		TrustMultMax:      1.10,
		PenalizeLikelyBot: true,
		KYCCaps:           KYCCaps{Level1Cents: 5_000, Level2Cents: 50_000},
		PoolPct:           0.45,
		MarginTarget:      0.60,
		RiskReservePct:    0.10,
		PlatformFeePct:    0.10,
	}
}

// Validate rejects parameter bags that would produce nonsense allocations.
func (p Params) Validate() error {
	if p.EventWeights.View < 0 || p.EventWeights.Like < 0 || p.EventWeights.Comment < 0 || p.EventWeights.Share < 0 {
		return fmt.Errorf("%w: event weights must be non-negative", domain.ErrValidation)
	}
	if p.Gamma < 0 {
		return fmt.Errorf("%w: gamma must be non-negative, got %v", domain.ErrValidation, p.Gamma)
	}
	if p.EarlyMinViews < 0 {
		return fmt.Errorf("%w: early_min_views must be non-negative", domain.ErrValidation)
	}
	if p.EarlyDeviceFrac < 0 || p.EarlyDeviceFrac > 1 || p.EarlyIPFrac < 0 || p.EarlyIPFrac > 1 {
		return fmt.Errorf("%w: early kicker fractions must be in [0,1]", domain.ErrValidation)
	}
	if p.EarlyKicker < 1 {
		return fmt.Errorf("%w: early_kicker must be >= 1, got %v", domain.ErrValidation, p.EarlyKicker)
	}
	if p.TrustMultMin <= 0 || p.TrustMultMax < p.TrustMultMin {
		return fmt.Errorf("%w: trust multiplier range [%v, %v] invalid", domain.ErrValidation, p.TrustMultMin, p.TrustMultMax)
	}
	if p.KYCCaps.Level1Cents < 0 || p.KYCCaps.Level2Cents < 0 {
		return fmt.Errorf("%w: kyc caps must be non-negative", domain.ErrValidation)
	}
	for name, v := range map[string]float64{
		"pool_pct":         p.PoolPct,
		"margin_target":    p.MarginTarget,
		"risk_reserve_pct": p.RiskReservePct,
		"platform_fee_pct": p.PlatformFeePct,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s must be in [0,1], got %v", domain.ErrValidation, name, v)
		}
	}
	return nil
}

// CapForKYC returns the per-run inflow ceiling for a KYC level. A negative
// return means uncapped.
func (p Params) CapForKYC(level *int) int64 {
	if level == nil {
		return 0
	}
	switch {
	case *level <= 0:
		return 0
	case *level == 1:
		return p.KYCCaps.Level1Cents
	case *level == 2:
		return p.KYCCaps.Level2Cents
	default:
		return -1
	}
}

// WeightFor returns the EngUnits weight for an event type; unweighted types
// (follow, pause, report) contribute zero volume.
func (w EventWeights) WeightFor(t domain.EventType) int64 {
	switch t {
	case domain.EventView:
		return w.View
	case domain.EventLike:
		return w.Like
	case domain.EventComment:
		return w.Comment
	case domain.EventShare:
		return w.Share
	default:
		return 0
	}
}
