package progression

import (
	"fmt"
	"math/big"
	"math/rand"
	"strings"

	"github.com/lawnchairsociety/ascend/server/internal/leveling"
	"github.com/lawnchairsociety/ascend/server/internal/stats"
)

// Profile selects how far along a mock character is.
type Profile string

const (
	ProfileFresh Profile = "fresh"
	ProfileEarly Profile = "early"
	ProfileMid   Profile = "mid"
	ProfileLate  Profile = "late"
)

// Profiles lists the supported mock profiles.
var Profiles = []Profile{ProfileFresh, ProfileEarly, ProfileMid, ProfileLate}

// ParseProfile resolves a profile name.
func ParseProfile(name string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Profiles {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown profile %q", name)
}

// Mock builds a plausible character for the given profile. The result depends
// only on rng, so a seeded source yields a reproducible character.
func Mock(rng *rand.Rand, profile Profile) *Character {
	c := New()

	switch profile {
	case ProfileEarly:
		c.Snapshot.Level = 1 + rng.Intn(20)
		for _, s := range stats.AllStats {
			c.Snapshot.Stats[s] = stats.Components{
				Base:    5 + rng.Intn(30),
				Bonus:   big.NewInt(rng.Int63n(50)),
				Paragon: new(big.Int),
			}
		}
	case ProfileMid:
		c.Snapshot.Level = 30 + rng.Intn(50)
		for _, s := range stats.AllStats {
			c.Snapshot.Stats[s] = stats.Components{
				Base:    40 + rng.Intn(61),
				Tier:    rng.Intn(3),
				Bonus:   big.NewInt(rng.Int63n(100_000)),
				Paragon: new(big.Int),
			}
		}
	case ProfileLate:
		c.Snapshot.Level = leveling.MaxLevel
		c.Snapshot.PrestigeLevel = 1 + rng.Intn(20)
		for _, s := range stats.AllStats {
			// Gear bonuses reach well past int64 in late game.
			bonus := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(10+rng.Intn(40))), nil)
			bonus.Mul(bonus, big.NewInt(1+rng.Int63n(9)))
			c.Snapshot.Stats[s] = stats.Components{
				Base:    stats.BaseSoftCap,
				Tier:    5 + rng.Intn(50),
				Bonus:   bonus,
				Paragon: big.NewInt(rng.Int63n(1_000_000)),
			}
		}
		c.UnspentParagon = big.NewInt(rng.Int63n(10_000))
	}

	c.Experience = leveling.XPForLevel(c.Snapshot.Level)
	return c
}
