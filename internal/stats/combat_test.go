package stats

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func effective(str, dex, intel, wis, con, cha float64) EffectiveStats {
	var e EffectiveStats
	e[Strength] = str
	e[Dexterity] = dex
	e[Intelligence] = intel
	e[Wisdom] = wis
	e[Constitution] = con
	e[Charisma] = cha
	return e
}

func TestDeriveCombat_Formulas(t *testing.T) {
	eff := effective(20, 10, 30, 12, 15, 8)
	got := DeriveCombat(eff, 5, 0)

	assert.Equal(t, int64(60), got.PhysicalDamage)                 // 40 + 5 + 15
	assert.Equal(t, int64(81), got.MagicalDamage)                  // 60 + 6 + 15
	assert.Equal(t, int64(42), got.PhysicalDefense)                // floor(22.5 + 10 + 10)
	assert.Equal(t, int64(43), got.MagicalDefense)                 // 18 + 15 + 10
	assert.InDelta(t, 5+10*0.02+30*0.01, got.CriticalChance, 1e-12)
	assert.InDelta(t, 10*0.03+5*0.01, got.DodgeChance, 1e-12)
	assert.Equal(t, int64(100+15*20+5*50+20*5), got.MaxHP)
	assert.Equal(t, int64(50+30*15+5*20+12*10), got.MaxMP)
}

func TestDeriveCombat_Floors(t *testing.T) {
	got := DeriveCombat(effective(10.9, 0.9, 0, 0, 0, 0), 0, 0)
	// 21.8 + 0.45 = 22.25
	assert.Equal(t, int64(22), got.PhysicalDamage)
	// 10.9 * 0.5 = 5.45
	assert.Equal(t, int64(5), got.PhysicalDefense)
}

func TestDeriveCombat_DoublePrestige(t *testing.T) {
	eff := effective(10, 10, 10, 10, 10, 10)
	base := DeriveCombat(eff, 1, 0)
	prestiged := DeriveCombat(eff, 1, 2)

	assert.Equal(t, base.MaxHP*3, prestiged.MaxHP)
	assert.Equal(t, base.MaxMP*3, prestiged.MaxMP)
	// Only HP and MP carry the extra factor.
	assert.Equal(t, base.PhysicalDamage, prestiged.PhysicalDamage)
	assert.Equal(t, base.MagicalDefense, prestiged.MagicalDefense)
}

func TestDeriveCombat_ChanceCaps(t *testing.T) {
	tests := []float64{0, 100, 1000, 1e6, 1e300, math.Inf(1)}
	for _, v := range tests {
		got := DeriveCombat(effective(v, v, v, v, v, v), 1_000_000, 0)
		assert.LessOrEqual(t, got.CriticalChance, CriticalChanceLimit, "crit at %v", v)
		assert.LessOrEqual(t, got.DodgeChance, DodgeChanceLimit, "dodge at %v", v)
	}

	capped := DeriveCombat(effective(0, 5000, 0, 0, 0, 0), 1, 0)
	assert.Equal(t, CriticalChanceLimit, capped.CriticalChance)
	assert.Equal(t, DodgeChanceLimit, capped.DodgeChance)
}

func TestDeriveCombat_ChanceMonotonic(t *testing.T) {
	prev := DeriveCombat(effective(0, 0, 0, 0, 0, 0), 1, 0)
	for dex := 10.0; dex <= 10000; dex *= 1.5 {
		cur := DeriveCombat(effective(0, dex, dex, 0, 0, 0), 1, 0)
		assert.GreaterOrEqual(t, cur.CriticalChance, prev.CriticalChance)
		assert.GreaterOrEqual(t, cur.DodgeChance, prev.DodgeChance)
		prev = cur
	}
}

func TestDeriveCombat_Saturates(t *testing.T) {
	got := DeriveCombat(effective(1e30, 0, 1e30, 0, 1e30, 0), 1, 5)
	assert.Equal(t, int64(math.MaxInt64), got.MaxHP)
	assert.Equal(t, int64(math.MaxInt64), got.MaxMP)
	assert.Equal(t, int64(math.MaxInt64), got.PhysicalDamage)
}

func TestDeriveCombat_SaturatesAtMaxPrestige(t *testing.T) {
	if strconv.IntSize < 64 {
		t.Skip("needs 64-bit int")
	}
	eff := effective(0, 0, 0, 0, 10, 0)
	for _, prestige := range []int{math.MaxInt, math.MaxInt - 1} {
		got := DeriveCombat(eff, 1, prestige)
		assert.Equal(t, int64(math.MaxInt64), got.MaxHP, "prestige %d", prestige)
		assert.Equal(t, int64(math.MaxInt64), got.MaxMP, "prestige %d", prestige)
	}
}

func TestSaturatingMul(t *testing.T) {
	tests := []struct {
		a, b, want int64
	}{
		{0, math.MinInt64, 0},
		{3, 4, 12},
		{-3, 4, -12},
		{3, -4, -12},
		{-3, -4, 12},
		{2, math.MaxInt64, math.MaxInt64},
		{-2, math.MinInt64, math.MaxInt64},
		{2, math.MinInt64, math.MinInt64},
		{math.MinInt64, 2, math.MinInt64},
		{350, math.MinInt64, math.MinInt64},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, saturatingMul(tt.a, tt.b), "%d * %d", tt.a, tt.b)
	}
}

func TestFloorInt(t *testing.T) {
	assert.Equal(t, int64(3), floorInt(3.99))
	assert.Equal(t, int64(-4), floorInt(-3.01))
	assert.Equal(t, int64(0), floorInt(math.NaN()))
	assert.Equal(t, int64(math.MaxInt64), floorInt(math.Inf(1)))
}
