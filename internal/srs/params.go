package srs

import (
	"time"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/m-mizutani/goerr/v2"
)

// Params holds the tunable constants of the scheduler.
// Zero values are not filled in; start from DefaultParams and override.
type Params struct {
	MinEase       float64 `koanf:"min_ease"`        // ease floor
	MaxEase       float64 `koanf:"max_ease"`        // ease ceiling
	EaseBonus     float64 `koanf:"ease_bonus"`      // medium pass at quality 5
	EaseBonusEasy float64 `koanf:"ease_bonus_easy"` // any easy pass
	HardPenalty   float64 `koanf:"hard_penalty"`    // subtracted on a hard pass
	LapsePenalty  float64 `koanf:"lapse_penalty"`   // subtracted on a medium fail, scaled by difficulty

	StrengthGain       float64 `koanf:"strength_gain"`        // share of the gap to 1 closed by a quality-5 pass
	FailureRetention   float64 `koanf:"failure_retention"`    // multiplier on prior strength after a fail
	FailureStrengthCap float64 `koanf:"failure_strength_cap"` // strength never exceeds this after a fail

	StabilityGrowth float64 `koanf:"stability_growth"` // stability multiplier is 1 + growth*quality/5
	StabilityLapse  float64 `koanf:"stability_lapse"`  // stability multiplier after a fail
	MinStability    float64 `koanf:"min_stability"`

	RelearningInterval time.Duration `koanf:"relearning_interval"`
	ReviewThreshold    float64       `koanf:"review_threshold"`    // days; Learning graduates to Review at or above
	GraduationInterval float64       `koanf:"graduation_interval"` // days; Graduated once interval exceeds
	MaxInterval        float64       `koanf:"max_interval"`        // days
}

// DefaultParams returns the constants the scheduler ships with.
func DefaultParams() Params {
	return Params{
		MinEase:       1.3,
		MaxEase:       3.0,
		EaseBonus:     0.1,
		EaseBonusEasy: 0.15,
		HardPenalty:   0.15,
		LapsePenalty:  0.2,

		StrengthGain:       0.8,
		FailureRetention:   0.5,
		FailureStrengthCap: 0.3,

		StabilityGrowth: 0.5,
		StabilityLapse:  0.5,
		MinStability:    0.5,

		RelearningInterval: 10 * time.Minute,
		ReviewThreshold:    3,
		GraduationInterval: 14,
		MaxInterval:        36500,
	}
}

// Validate rejects parameter sets that would break the card invariants.
func (p Params) Validate() error {
	check := func(ok bool, msg string, key string, value any) error {
		if ok {
			return nil
		}
		return goerr.New(msg, goerr.V(key, value), goerr.T(domain.TagValidation))
	}

	for _, err := range []error{
		check(p.MinEase >= 1, "min ease must be at least 1", "min_ease", p.MinEase),
		check(p.MaxEase >= p.MinEase, "max ease must not be below min ease", "max_ease", p.MaxEase),
		check(p.EaseBonus >= 0 && p.EaseBonusEasy >= 0, "ease bonuses must not be negative", "ease_bonus", p.EaseBonus),
		check(p.HardPenalty >= 0 && p.LapsePenalty >= 0, "ease penalties must not be negative", "lapse_penalty", p.LapsePenalty),
		check(p.StrengthGain > 0 && p.StrengthGain <= 1, "strength gain must be in (0, 1]", "strength_gain", p.StrengthGain),
		check(p.FailureRetention >= 0 && p.FailureRetention <= 1, "failure retention must be in [0, 1]", "failure_retention", p.FailureRetention),
		check(p.FailureStrengthCap >= 0 && p.FailureStrengthCap <= 1, "failure strength cap must be in [0, 1]", "failure_strength_cap", p.FailureStrengthCap),
		check(p.StabilityGrowth >= 0, "stability growth must not be negative", "stability_growth", p.StabilityGrowth),
		check(p.StabilityLapse > 0 && p.StabilityLapse <= 1, "stability lapse must be in (0, 1]", "stability_lapse", p.StabilityLapse),
		check(p.MinStability > 0, "min stability must be positive", "min_stability", p.MinStability),
		check(p.RelearningInterval > 0, "relearning interval must be positive", "relearning_interval", p.RelearningInterval),
		check(p.ReviewThreshold >= 1, "review threshold must be at least one day", "review_threshold", p.ReviewThreshold),
		check(p.GraduationInterval >= p.ReviewThreshold, "graduation interval must not be below review threshold", "graduation_interval", p.GraduationInterval),
		check(p.MaxInterval >= p.GraduationInterval, "max interval must not be below graduation interval", "max_interval", p.MaxInterval),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

func (p Params) relearningDays() float64 {
	return p.RelearningInterval.Hours() / 24
}
