package server

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/lawnchairsociety/ascend/server/internal/database"
	"github.com/lawnchairsociety/ascend/server/internal/leveling"
	"github.com/lawnchairsociety/ascend/server/internal/sheetcache"
	"github.com/lawnchairsociety/ascend/server/internal/stats"
)

// bigString carries a non-negative big integer as a decimal JSON string.
// Decoding also accepts a bare JSON integer.
type bigString struct {
	v *big.Int
}

func newBigString(v *big.Int) bigString {
	if v == nil {
		return bigString{v: new(big.Int)}
	}
	return bigString{v: new(big.Int).Set(v)}
}

func (b bigString) MarshalJSON() ([]byte, error) {
	if b.v == nil {
		return []byte(`"0"`), nil
	}
	return json.Marshal(b.v.String())
}

func (b *bigString) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "null" {
		b.v = nil
		return nil
	}
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
	}
	v, ok := new(big.Int).SetString(strings.TrimSpace(text), 10)
	if !ok {
		return fmt.Errorf("%w: %q is not an integer", stats.ErrInvalidInput, text)
	}
	b.v = v
	return nil
}

// Int returns the decoded value, or nil when the field was absent.
func (b bigString) Int() *big.Int {
	return b.v
}

type componentsJSON struct {
	Base    int       `json:"base"`
	Tier    int       `json:"tier"`
	Bonus   bigString `json:"bonus"`
	Paragon bigString `json:"paragon"`
}

type snapshotJSON struct {
	Level         int                           `json:"level"`
	PrestigeLevel int                           `json:"prestige_level"`
	Stats         map[stats.Stat]componentsJSON `json:"stats"`
}

func newSnapshotJSON(s stats.Snapshot) snapshotJSON {
	out := snapshotJSON{
		Level:         s.Level,
		PrestigeLevel: s.PrestigeLevel,
		Stats:         make(map[stats.Stat]componentsJSON, len(stats.AllStats)),
	}
	for _, stat := range stats.AllStats {
		comp := s.Get(stat)
		out.Stats[stat] = componentsJSON{
			Base:    comp.Base,
			Tier:    comp.Tier,
			Bonus:   newBigString(comp.Bonus),
			Paragon: newBigString(comp.Paragon),
		}
	}
	return out
}

// snapshot converts a decoded request into an engine snapshot. Stats left out
// of the request are zero.
func (s snapshotJSON) snapshot() stats.Snapshot {
	snap := stats.NewSnapshot()
	snap.Level = s.Level
	snap.PrestigeLevel = s.PrestigeLevel
	for stat, comp := range s.Stats {
		snap.Stats[stat] = stats.Components{
			Base:    comp.Base,
			Tier:    comp.Tier,
			Bonus:   comp.Bonus.Int(),
			Paragon: comp.Paragon.Int(),
		}
	}
	return snap
}

type combatJSON struct {
	PhysicalDamage  int64   `json:"physical_damage"`
	MagicalDamage   int64   `json:"magical_damage"`
	PhysicalDefense int64   `json:"physical_defense"`
	MagicalDefense  int64   `json:"magical_defense"`
	CriticalChance  float64 `json:"critical_chance"`
	DodgeChance     float64 `json:"dodge_chance"`
	MaxHP           int64   `json:"max_hp"`
	MaxMP           int64   `json:"max_mp"`
}

type sheetJSON struct {
	Level              int                    `json:"level"`
	PrestigeLevel      int                    `json:"prestige_level"`
	PrestigeMultiplier float64                `json:"prestige_multiplier"`
	Effective          map[stats.Stat]float64 `json:"effective"`
	Combat             combatJSON             `json:"combat"`
}

func newSheetJSON(sheet stats.Sheet) sheetJSON {
	eff := make(map[stats.Stat]float64, len(stats.AllStats))
	for _, stat := range stats.AllStats {
		eff[stat] = sheet.Effective.Get(stat)
	}
	c := sheet.Combat
	return sheetJSON{
		Level:              sheet.Level,
		PrestigeLevel:      sheet.PrestigeLevel,
		PrestigeMultiplier: sheet.PrestigeMultiplier,
		Effective:          eff,
		Combat: combatJSON{
			PhysicalDamage:  c.PhysicalDamage,
			MagicalDamage:   c.MagicalDamage,
			PhysicalDefense: c.PhysicalDefense,
			MagicalDefense:  c.MagicalDefense,
			CriticalChance:  c.CriticalChance,
			DodgeChance:     c.DodgeChance,
			MaxHP:           c.MaxHP,
			MaxMP:           c.MaxMP,
		},
	}
}

type characterJSON struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	Experience     int64        `json:"experience"`
	XPToNextLevel  int64        `json:"xp_to_next_level"`
	UnspentPoints  int          `json:"unspent_points"`
	UnspentParagon bigString    `json:"unspent_paragon"`
	Revision       int64        `json:"revision"`
	Snapshot       snapshotJSON `json:"snapshot"`
	CreatedAt      time.Time    `json:"created_at"`
	LastPlayed     *time.Time   `json:"last_played,omitempty"`
}

func newCharacterJSON(char *database.Character) characterJSON {
	p := char.Progress
	return characterJSON{
		ID:             char.ID,
		Name:           char.Name,
		Experience:     p.Experience,
		XPToNextLevel:  leveling.XPToNextLevel(p.Snapshot.Level),
		UnspentPoints:  p.UnspentPoints,
		UnspentParagon: newBigString(p.UnspentParagon),
		Revision:       p.Revision,
		Snapshot:       newSnapshotJSON(p.Snapshot),
		CreatedAt:      char.CreatedAt,
		LastPlayed:     char.LastPlayed,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type accountResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	AccountID int64     `json:"account_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

type createCharacterRequest struct {
	Name string `json:"name"`
}

type experienceRequest struct {
	Amount int64 `json:"amount"`
}

type allocateRequest struct {
	Stat   string `json:"stat"`
	Points int    `json:"points"`
}

type statRequest struct {
	Stat string `json:"stat"`
}

type paragonRequest struct {
	Stat   string    `json:"stat"`
	Points bigString `json:"points"`
}

type gearRequest struct {
	Stat  string    `json:"stat"`
	Bonus bigString `json:"bonus"`
}

type levelUpJSON struct {
	LevelsGained int `json:"levels_gained"`
	StatPoints   int `json:"stat_points"`
}

type sheetResponse struct {
	CharacterID int64     `json:"character_id"`
	Revision    int64     `json:"revision"`
	Sheet       sheetJSON `json:"sheet"`
}

type mutationResponse struct {
	Character characterJSON `json:"character"`
	Sheet     sheetJSON     `json:"sheet"`
	LevelUp   *levelUpJSON  `json:"level_up,omitempty"`
}

type previewRequest struct {
	Snapshot snapshotJSON `json:"snapshot"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status        string           `json:"status"`
	Uptime        string           `json:"uptime"`
	SchemaVersion int64            `json:"schema_version"`
	Totals        database.Totals  `json:"totals"`
	Sockets       ConnStats        `json:"sockets"`
	SheetCache    sheetcache.Stats `json:"sheet_cache"`
}
