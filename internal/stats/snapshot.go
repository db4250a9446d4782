package stats

import (
	"fmt"
	"math/big"
)

// Components holds the raw progression values of a single stat.
// Nil Bonus or Paragon means zero.
type Components struct {
	Base    int
	Tier    int
	Bonus   *big.Int
	Paragon *big.Int
}

// Validate rejects negative tier, bonus and paragon values. Base is not
// validated because the formula clamps it.
func (c Components) Validate() error {
	if c.Tier < 0 {
		return fmt.Errorf("%w: tier %d is negative", ErrInvalidInput, c.Tier)
	}
	if c.Bonus != nil && c.Bonus.Sign() < 0 {
		return fmt.Errorf("%w: bonus %s is negative", ErrInvalidInput, c.Bonus)
	}
	if c.Paragon != nil && c.Paragon.Sign() < 0 {
		return fmt.Errorf("%w: paragon %s is negative", ErrInvalidInput, c.Paragon)
	}
	return nil
}

// Clone returns a deep copy so callers can mutate big values safely.
func (c Components) Clone() Components {
	out := Components{Base: c.Base, Tier: c.Tier}
	if c.Bonus != nil {
		out.Bonus = new(big.Int).Set(c.Bonus)
	}
	if c.Paragon != nil {
		out.Paragon = new(big.Int).Set(c.Paragon)
	}
	return out
}

// BonusOrZero returns the gear bonus, never nil.
func (c Components) BonusOrZero() *big.Int {
	if c.Bonus == nil {
		return new(big.Int)
	}
	return c.Bonus
}

// ParagonOrZero returns the paragon allocation, never nil.
func (c Components) ParagonOrZero() *big.Int {
	if c.Paragon == nil {
		return new(big.Int)
	}
	return c.Paragon
}

// Snapshot is the raw progression state of a character. It is the single
// source of truth; effective values are always recomputed from it.
type Snapshot struct {
	Level         int
	PrestigeLevel int
	Stats         map[Stat]Components
}

// NewSnapshot returns the state of a freshly created character.
func NewSnapshot() Snapshot {
	s := Snapshot{
		Level: 1,
		Stats: make(map[Stat]Components, len(AllStats)),
	}
	for _, stat := range AllStats {
		s.Stats[stat] = Components{Bonus: new(big.Int), Paragon: new(big.Int)}
	}
	return s
}

// Get returns the components for a stat, zero-valued if absent.
func (s Snapshot) Get(stat Stat) Components {
	if s.Stats == nil {
		return Components{}
	}
	return s.Stats[stat]
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Level:         s.Level,
		PrestigeLevel: s.PrestigeLevel,
		Stats:         make(map[Stat]Components, len(s.Stats)),
	}
	for stat, comp := range s.Stats {
		out.Stats[stat] = comp.Clone()
	}
	return out
}

// ParagonTotal sums the paragon points distributed across all stats.
func (s Snapshot) ParagonTotal() *big.Int {
	total := new(big.Int)
	for _, comp := range s.Stats {
		if comp.Paragon != nil {
			total.Add(total, comp.Paragon)
		}
	}
	return total
}

// Validate checks every stat plus the character-wide fields.
func (s Snapshot) Validate() error {
	if s.Level < 1 {
		return fmt.Errorf("%w: level %d is below 1", ErrInvalidInput, s.Level)
	}
	if s.PrestigeLevel < 0 {
		return fmt.Errorf("%w: prestige level %d is negative", ErrInvalidInput, s.PrestigeLevel)
	}
	for stat, comp := range s.Stats {
		if !stat.Valid() {
			return fmt.Errorf("%w: %d", ErrUnknownStat, int(stat))
		}
		if err := comp.Validate(); err != nil {
			return fmt.Errorf("%s: %w", stat, err)
		}
	}
	return nil
}
