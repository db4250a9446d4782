package stats

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

// Formula constants
const (
	BaseSoftCap         = 100
	TierValue           = 50
	GearBonusWeight     = 20.0
	ParagonWeight       = 10.0
	PrestigeStep        = 0.1
	DocumentedSoftCap   = 1000.0
	CriticalChanceBase  = 5.0
	CriticalChanceLimit = 75.0
	DodgeChanceLimit    = 50.0
)

// ErrInvalidInput is returned when a snapshot carries values the formulas are not defined for.
var ErrInvalidInput = errors.New("invalid stat input")

var log10Of2 = math.Log10(2)

// ClampBase limits a stored base value to [0, BaseSoftCap].
func ClampBase(base int) float64 {
	if base <= 0 {
		return 0
	}
	if base >= BaseSoftCap {
		return BaseSoftCap
	}
	return float64(base)
}

// TierContribution returns the flat value granted by tiers: tier * 50.
func TierContribution(tier int) float64 {
	return float64(tier) * TierValue
}

// GearContribution returns log10(bonus+1)*20, or 0 when bonus is nil or not positive.
func GearContribution(bonus *big.Int) float64 {
	return logCurve(bonus, GearBonusWeight)
}

// ParagonContribution returns log10(paragon+1)*10, or 0 when paragon is nil or not positive.
func ParagonContribution(paragon *big.Int) float64 {
	return logCurve(paragon, ParagonWeight)
}

// PrestigeMultiplier returns 1 + prestige*0.1.
func PrestigeMultiplier(prestige int) float64 {
	return 1 + float64(prestige)*PrestigeStep
}

// EffectiveValue computes one stat's effective value from its raw components.
// It performs no validation; use Calculator.Effective to reject negative input.
func EffectiveValue(base, tier int, bonus, paragon *big.Int, prestige int) float64 {
	sum := ClampBase(base) + TierContribution(tier) + GearContribution(bonus) + ParagonContribution(paragon)
	return sum * PrestigeMultiplier(prestige)
}

func logCurve(v *big.Int, weight float64) float64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	return log10BigPlusOne(v) * weight
}

// log10BigPlusOne returns log10(v+1) for v >= 0 without overflowing float64 on
// values larger than ~1e308.
func log10BigPlusOne(v *big.Int) float64 {
	x := new(big.Int).Add(v, big.NewInt(1))
	if x.IsInt64() && x.Int64() <= 1<<53 {
		return math.Log10(float64(x.Int64()))
	}
	f := new(big.Float).SetInt(x)
	mant := new(big.Float)
	exp := f.MantExp(mant)
	m, _ := mant.Float64()
	return math.Log10(m) + float64(exp)*log10Of2
}

// Options tune the calculator.
type Options struct {
	// EffectiveCap clamps each effective stat when positive. Zero disables clamping.
	EffectiveCap float64
}

// Calculator computes effective and derived stats. It holds no mutable state and
// may be shared between goroutines.
type Calculator struct {
	opts Options
}

// NewCalculator creates a Calculator with the given options.
func NewCalculator(opts Options) Calculator {
	if opts.EffectiveCap < 0 || math.IsNaN(opts.EffectiveCap) {
		opts.EffectiveCap = 0
	}
	return Calculator{opts: opts}
}

// Options returns the options the calculator was built with.
func (c Calculator) Options() Options {
	return c.opts
}

// Effective validates one stat's components and returns its effective value.
func (c Calculator) Effective(comp Components, prestige int) (float64, error) {
	if err := comp.Validate(); err != nil {
		return 0, err
	}
	if prestige < 0 {
		return 0, fmt.Errorf("%w: prestige level %d is negative", ErrInvalidInput, prestige)
	}
	return c.capped(EffectiveValue(comp.Base, comp.Tier, comp.Bonus, comp.Paragon, prestige)), nil
}

// Compute validates a snapshot and returns the full stat sheet.
func (c Calculator) Compute(s Snapshot) (Sheet, error) {
	if err := s.Validate(); err != nil {
		return Sheet{}, err
	}

	var eff EffectiveStats
	for _, stat := range AllStats {
		comp := s.Stats[stat]
		eff[stat] = c.capped(EffectiveValue(comp.Base, comp.Tier, comp.Bonus, comp.Paragon, s.PrestigeLevel))
	}

	return Sheet{
		Level:              s.Level,
		PrestigeLevel:      s.PrestigeLevel,
		PrestigeMultiplier: PrestigeMultiplier(s.PrestigeLevel),
		Effective:          eff,
		Combat:             DeriveCombat(eff, s.Level, s.PrestigeLevel),
	}, nil
}

func (c Calculator) capped(v float64) float64 {
	if c.opts.EffectiveCap > 0 && v > c.opts.EffectiveCap {
		return c.opts.EffectiveCap
	}
	return v
}
