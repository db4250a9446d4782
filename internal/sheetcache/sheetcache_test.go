package sheetcache

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawnchairsociety/ascend/server/internal/stats"
)

func sheetAtLevel(t *testing.T, level int) stats.Sheet {
	t.Helper()
	snap := stats.NewSnapshot()
	snap.Level = level
	snap.Stats[stats.Strength] = stats.Components{Base: 50, Bonus: big.NewInt(99)}
	sheet, err := stats.NewCalculator(stats.Options{}).Compute(snap)
	require.NoError(t, err)
	return sheet
}

func TestGetAdd(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	_, ok := c.Get(1, 1)
	assert.False(t, ok)

	sheet := sheetAtLevel(t, 3)
	c.Add(1, 1, sheet)

	got, ok := c.Get(1, 1)
	require.True(t, ok)
	assert.Equal(t, sheet, got)

	// A newer revision of the same character is a different entry
	_, ok = c.Get(1, 2)
	assert.False(t, ok)

	assert.Equal(t, Stats{Hits: 1, Misses: 2, Len: 1}, c.Stats())
}

func TestEviction(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	c.Add(1, 0, sheetAtLevel(t, 1))
	c.Add(2, 0, sheetAtLevel(t, 2))
	c.Get(1, 0) // touch 1 so 2 is the eviction candidate
	c.Add(3, 0, sheetAtLevel(t, 3))

	_, ok := c.Get(2, 0)
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get(1, 0)
	assert.True(t, ok)
	assert.Equal(t, 2, c.Stats().Len)
}

func TestGetOrCompute(t *testing.T) {
	c, err := New(4)
	require.NoError(t, err)

	calls := 0
	compute := func() (stats.Sheet, error) {
		calls++
		return sheetAtLevel(t, 10), nil
	}

	first, err := c.GetOrCompute(7, 3, compute)
	require.NoError(t, err)
	second, err := c.GetOrCompute(7, 3, compute)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	c, err := New(4)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = c.GetOrCompute(7, 3, func() (stats.Sheet, error) { return stats.Sheet{}, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Stats().Len)
}

func TestInvalidate(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	c.Add(1, 1, sheetAtLevel(t, 1))
	c.Add(1, 2, sheetAtLevel(t, 2))
	c.Add(2, 1, sheetAtLevel(t, 3))

	c.Invalidate(1)

	_, ok := c.Get(1, 2)
	assert.False(t, ok)
	_, ok = c.Get(2, 1)
	assert.True(t, ok)
}

func TestNewRevisionMissesWithoutInvalidate(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	old := sheetAtLevel(t, 1)
	c.Add(1, 4, old)

	calls := 0
	got, err := c.GetOrCompute(1, 5, func() (stats.Sheet, error) {
		calls++
		return sheetAtLevel(t, 2), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, got.Level)

	prev, ok := c.Get(1, 4)
	require.True(t, ok)
	assert.Equal(t, old, prev)
}

func TestDisabled(t *testing.T) {
	c, err := New(0)
	require.NoError(t, err)

	c.Add(1, 1, sheetAtLevel(t, 1))
	_, ok := c.Get(1, 1)
	assert.False(t, ok)
	c.Invalidate(1)
	assert.Equal(t, Stats{Misses: 1}, c.Stats())
}
