// Package progression applies leveling, gear, tier and prestige events to a
// character's raw stat snapshot. The stats package only reads snapshots; every
// mutation goes through here.
package progression

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/lawnchairsociety/ascend/server/internal/leveling"
	"github.com/lawnchairsociety/ascend/server/internal/stats"
)

// Progression constants
const (
	TierUpCost         = 10
	ParagonPerPrestige = 1000
)

var (
	// ErrInsufficientPoints is returned when a character lacks unspent stat points.
	ErrInsufficientPoints = errors.New("not enough unspent stat points")

	// ErrInsufficientParagon is returned when the paragon pool cannot cover an allocation.
	ErrInsufficientParagon = errors.New("not enough unspent paragon points")

	// ErrBaseCapped is returned when base allocation would pass the soft cap.
	ErrBaseCapped = errors.New("base stat is at its soft cap")

	// ErrBaseNotCapped is returned when tiering up a stat whose base is below the cap.
	ErrBaseNotCapped = errors.New("base stat must reach the soft cap before tiering up")

	// ErrBonusUnderflow is returned when unequipping more bonus than a stat carries.
	ErrBonusUnderflow = errors.New("gear bonus cannot drop below zero")

	// ErrNotMaxLevel is returned when prestiging below the level cap.
	ErrNotMaxLevel = errors.New("prestige requires max level")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Character is the mutable progression state persisted for a character.
type Character struct {
	Snapshot       stats.Snapshot
	Experience     int64
	UnspentPoints  int
	UnspentParagon *big.Int
	Revision       int64
}

// New returns the progression state of a newly created character.
func New() *Character {
	return &Character{
		Snapshot:       stats.NewSnapshot(),
		UnspentParagon: new(big.Int),
	}
}

// Clone returns a deep copy.
func (c *Character) Clone() *Character {
	out := &Character{
		Snapshot:      c.Snapshot.Clone(),
		Experience:    c.Experience,
		UnspentPoints: c.UnspentPoints,
		Revision:      c.Revision,
	}
	if c.UnspentParagon != nil {
		out.UnspentParagon = new(big.Int).Set(c.UnspentParagon)
	} else {
		out.UnspentParagon = new(big.Int)
	}
	return out
}

func (c *Character) stat(s stats.Stat) (stats.Components, error) {
	if !s.Valid() {
		return stats.Components{}, fmt.Errorf("%w: %d", stats.ErrUnknownStat, int(s))
	}
	if c.Snapshot.Stats == nil {
		c.Snapshot.Stats = make(map[stats.Stat]stats.Components, len(stats.AllStats))
	}
	return c.Snapshot.Stats[s].Clone(), nil
}

func (c *Character) bump() {
	c.Revision++
}

// GainExperience awards XP and converts any level-ups into unspent stat points.
func (c *Character) GainExperience(amount int64) (leveling.LevelUpResult, error) {
	res, err := leveling.GainExperience(c.Snapshot.Level, c.Experience, amount)
	if err != nil {
		return res, err
	}
	c.Snapshot.Level = res.Level
	c.Experience = res.Experience
	c.UnspentPoints += res.StatPoints
	c.bump()
	return res, nil
}

// AllocateBase spends unspent points on a stat's base value, up to the soft cap.
func (c *Character) AllocateBase(s stats.Stat, points int) error {
	if points <= 0 {
		return ErrInvalidAmount
	}
	comp, err := c.stat(s)
	if err != nil {
		return err
	}
	if points > c.UnspentPoints {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientPoints, c.UnspentPoints, points)
	}
	if comp.Base+points > stats.BaseSoftCap {
		return fmt.Errorf("%w: %s base %d + %d exceeds %d", ErrBaseCapped, s, comp.Base, points, stats.BaseSoftCap)
	}

	comp.Base += points
	c.Snapshot.Stats[s] = comp
	c.UnspentPoints -= points
	c.bump()
	return nil
}

// TierUp adds one tier to a stat whose base has reached the soft cap.
func (c *Character) TierUp(s stats.Stat) error {
	comp, err := c.stat(s)
	if err != nil {
		return err
	}
	if comp.Base < stats.BaseSoftCap {
		return fmt.Errorf("%w: %s base is %d", ErrBaseNotCapped, s, comp.Base)
	}
	if c.UnspentPoints < TierUpCost {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientPoints, c.UnspentPoints, TierUpCost)
	}

	comp.Tier++
	c.Snapshot.Stats[s] = comp
	c.UnspentPoints -= TierUpCost
	c.bump()
	return nil
}

// Equip adds a gear bonus to a stat.
func (c *Character) Equip(s stats.Stat, bonus *big.Int) error {
	if bonus == nil || bonus.Sign() <= 0 {
		return ErrInvalidAmount
	}
	comp, err := c.stat(s)
	if err != nil {
		return err
	}
	comp.Bonus = new(big.Int).Add(comp.BonusOrZero(), bonus)
	c.Snapshot.Stats[s] = comp
	c.bump()
	return nil
}

// Unequip removes a gear bonus from a stat.
func (c *Character) Unequip(s stats.Stat, bonus *big.Int) error {
	if bonus == nil || bonus.Sign() <= 0 {
		return ErrInvalidAmount
	}
	comp, err := c.stat(s)
	if err != nil {
		return err
	}
	current := comp.BonusOrZero()
	if current.Cmp(bonus) < 0 {
		return fmt.Errorf("%w: %s has %s, removing %s", ErrBonusUnderflow, s, current, bonus)
	}
	comp.Bonus = new(big.Int).Sub(current, bonus)
	c.Snapshot.Stats[s] = comp
	c.bump()
	return nil
}

// Prestige resets level and experience at the level cap in exchange for a
// prestige level and a paragon grant. Base, tier and gear carry over.
func (c *Character) Prestige() error {
	if c.Snapshot.Level < leveling.MaxLevel {
		return fmt.Errorf("%w: level %d of %d", ErrNotMaxLevel, c.Snapshot.Level, leveling.MaxLevel)
	}

	c.Snapshot.PrestigeLevel++
	c.Snapshot.Level = 1
	c.Experience = 0

	grant := new(big.Int).Mul(big.NewInt(ParagonPerPrestige), big.NewInt(int64(c.Snapshot.PrestigeLevel)))
	if c.UnspentParagon == nil {
		c.UnspentParagon = new(big.Int)
	}
	c.UnspentParagon = new(big.Int).Add(c.UnspentParagon, grant)
	c.bump()
	return nil
}

// AllocateParagon moves points from the unspent paragon pool onto a stat.
func (c *Character) AllocateParagon(s stats.Stat, points *big.Int) error {
	if points == nil || points.Sign() <= 0 {
		return ErrInvalidAmount
	}
	comp, err := c.stat(s)
	if err != nil {
		return err
	}
	pool := c.UnspentParagon
	if pool == nil {
		pool = new(big.Int)
	}
	if pool.Cmp(points) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientParagon, pool, points)
	}

	comp.Paragon = new(big.Int).Add(comp.ParagonOrZero(), points)
	c.Snapshot.Stats[s] = comp
	c.UnspentParagon = new(big.Int).Sub(pool, points)
	c.bump()
	return nil
}
