package stats

import "math"

// EffectiveStats holds the effective value of each primary stat, indexed by Stat.
type EffectiveStats [len(statNames)]float64

// Get returns the effective value for a stat.
func (e EffectiveStats) Get(stat Stat) float64 {
	if !stat.Valid() {
		return 0
	}
	return e[stat]
}

// CombatStats are the secondary values derived from effective stats and level.
// Chances are percentages.
type CombatStats struct {
	PhysicalDamage  int64
	MagicalDamage   int64
	PhysicalDefense int64
	MagicalDefense  int64
	CriticalChance  float64
	DodgeChance     float64
	MaxHP           int64
	MaxMP           int64
}

// Sheet is the full computed view of a snapshot.
type Sheet struct {
	Level              int
	PrestigeLevel      int
	PrestigeMultiplier float64
	Effective          EffectiveStats
	Combat             CombatStats
}

// DeriveCombat combines effective stats and level into combat stats.
//
// MaxHP and MaxMP multiply by (prestige+1) on top of the prestige multiplier
// already folded into the effective stats.
func DeriveCombat(eff EffectiveStats, level, prestige int) CombatStats {
	str := eff[Strength]
	dex := eff[Dexterity]
	intel := eff[Intelligence]
	wis := eff[Wisdom]
	con := eff[Constitution]
	lvl := float64(level)
	prestigeFactor := int64(math.MaxInt64)
	if int64(prestige) < math.MaxInt64 {
		prestigeFactor = int64(prestige) + 1
	}

	return CombatStats{
		PhysicalDamage:  floorInt(str*2 + dex*0.5 + lvl*3),
		MagicalDamage:   floorInt(intel*2 + wis*0.5 + lvl*3),
		PhysicalDefense: floorInt(con*1.5 + str*0.5 + lvl*2),
		MagicalDefense:  floorInt(wis*1.5 + intel*0.5 + lvl*2),
		CriticalChance:  math.Min(CriticalChanceBase+dex*0.02+intel*0.01, CriticalChanceLimit),
		DodgeChance:     math.Min(dex*0.03+lvl*0.01, DodgeChanceLimit),
		MaxHP:           saturatingMul(floorInt(100+con*20+lvl*50+str*5), prestigeFactor),
		MaxMP:           saturatingMul(floorInt(50+intel*15+lvl*20+wis*10), prestigeFactor),
	}
}

// floorInt floors v into an int64, saturating instead of overflowing.
func floorInt(v float64) int64 {
	f := math.Floor(v)
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

// saturatingMul returns a*b clamped to the int64 range.
func saturatingMul(a, b int64) int64 {
	switch {
	case a == 0 || b == 0:
		return 0
	case a > 0 && b > 0 && a > math.MaxInt64/b,
		a < 0 && b < 0 && a < math.MaxInt64/b:
		return math.MaxInt64
	case a > 0 && b < 0 && b < math.MinInt64/a,
		a < 0 && b > 0 && a < math.MinInt64/b:
		return math.MinInt64
	}
	return a * b
}
