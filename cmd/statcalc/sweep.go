package main

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/lawnchairsociety/ascend/server/internal/stats"
)

type sweepKind string

const (
	sweepBase     sweepKind = "base"
	sweepTier     sweepKind = "tier"
	sweepBonus    sweepKind = "bonus"
	sweepParagon  sweepKind = "paragon"
	sweepPrestige sweepKind = "prestige"
)

var sweepKinds = []sweepKind{sweepBase, sweepTier, sweepBonus, sweepParagon, sweepPrestige}

// Default ranges per sweep kind, chosen to show each curve's shape.
var sweepDefaults = map[sweepKind][2]string{
	sweepBase:     {"0", "150"},
	sweepTier:     {"0", "20"},
	sweepBonus:    {"0", "1e30"},
	sweepParagon:  {"0", "1e12"},
	sweepPrestige: {"0", "20"},
}

func parseSweepKind(name string) (sweepKind, error) {
	k := sweepKind(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range sweepKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown sweep %q (want base, tier, bonus, paragon or prestige)", name)
}

// logarithmic reports whether the kind feeds a log10 term and is swept by decades.
func (k sweepKind) logarithmic() bool {
	return k == sweepBonus || k == sweepParagon
}

type sweepRow struct {
	Value     *big.Int
	Effective float64
	Delta     float64
}

// sweepPoints returns the sorted, distinct values to evaluate in [from, to].
func sweepPoints(kind sweepKind, from, to *big.Int, steps int) ([]*big.Int, error) {
	if steps < 2 {
		return nil, fmt.Errorf("steps must be at least 2, got %d", steps)
	}
	if from.Sign() < 0 && kind != sweepBase {
		return nil, fmt.Errorf("%w: %s cannot be negative", stats.ErrInvalidInput, kind)
	}
	if from.Cmp(to) > 0 {
		return nil, fmt.Errorf("range start %s is after end %s", from, to)
	}
	if !kind.logarithmic() {
		for _, v := range []*big.Int{from, to} {
			if !v.IsInt64() || v.Int64() > math.MaxInt32 || v.Int64() < math.MinInt32 {
				return nil, fmt.Errorf("%w: %s value %s is out of range", stats.ErrInvalidInput, kind, v)
			}
		}
		return linearPoints(from, to, steps), nil
	}
	return decadePoints(from, to, steps), nil
}

func linearPoints(from, to *big.Int, steps int) []*big.Int {
	span := new(big.Int).Sub(to, from)
	div := big.NewInt(int64(steps - 1))

	var out []*big.Int
	for i := 0; i < steps; i++ {
		v := new(big.Int).Mul(span, big.NewInt(int64(i)))
		v.Quo(v, div)
		v.Add(v, from)
		out = appendDistinct(out, v)
	}
	return out
}

// decadePoints samples powers of ten between the endpoints, always including both.
func decadePoints(from, to *big.Int, steps int) []*big.Int {
	lo := from
	if lo.Sign() == 0 {
		lo = big.NewInt(1)
	}
	eLo := len(lo.String()) - 1
	eHi := len(to.String()) - 1

	out := []*big.Int{new(big.Int).Set(from)}
	inner := steps - 2
	if n := eHi - eLo + 1; n < inner {
		inner = n
	}
	for i := 0; i < inner; i++ {
		e := eLo
		if inner > 1 {
			e = eLo + (eHi-eLo)*i/(inner-1)
		}
		v := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(e)), nil)
		if v.Cmp(from) > 0 && v.Cmp(to) < 0 {
			out = appendDistinct(out, v)
		}
	}
	return appendDistinct(out, new(big.Int).Set(to))
}

func appendDistinct(out []*big.Int, v *big.Int) []*big.Int {
	if n := len(out); n > 0 && out[n-1].Cmp(v) == 0 {
		return out
	}
	return append(out, v)
}

// runSweep evaluates one stat of snap at each point, varying only the swept component.
func runSweep(calc stats.Calculator, snap stats.Snapshot, stat stats.Stat, kind sweepKind, points []*big.Int) ([]sweepRow, error) {
	rows := make([]sweepRow, 0, len(points))
	for i, p := range points {
		comp := snap.Get(stat).Clone()
		prestige := snap.PrestigeLevel

		switch kind {
		case sweepBase:
			comp.Base = int(p.Int64())
		case sweepTier:
			comp.Tier = int(p.Int64())
		case sweepBonus:
			comp.Bonus = p
		case sweepParagon:
			comp.Paragon = p
		case sweepPrestige:
			prestige = int(p.Int64())
		}

		eff, err := calc.Effective(comp, prestige)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", kind, p, err)
		}
		row := sweepRow{Value: p, Effective: eff}
		if i > 0 {
			row.Delta = eff - rows[i-1].Effective
		}
		rows = append(rows, row)
	}
	return rows, nil
}
