package stats

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

// ErrUnknownStat is returned when a stat name cannot be resolved.
var ErrUnknownStat = errors.New("unknown stat")

// Stat identifies one of the six primary attributes.
type Stat int

const (
	Strength Stat = iota
	Dexterity
	Intelligence
	Wisdom
	Constitution
	Charisma
)

// AllStats lists the primary stats in display order.
var AllStats = []Stat{Strength, Dexterity, Intelligence, Wisdom, Constitution, Charisma}

var statNames = [...]string{"strength", "dexterity", "intelligence", "wisdom", "constitution", "charisma"}

// String returns the lowercase stat name used in storage and JSON.
func (s Stat) String() string {
	if !s.Valid() {
		return fmt.Sprintf("stat(%d)", int(s))
	}
	return statNames[s]
}

// Short returns the three-letter abbreviation (e.g. "str").
func (s Stat) Short() string {
	return s.String()[:3]
}

// Valid reports whether s is one of the six primary stats.
func (s Stat) Valid() bool {
	return s >= Strength && s <= Charisma
}

// MarshalText implements encoding.TextMarshaler so stats can be map keys in JSON and YAML.
func (s Stat) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStat, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stat) UnmarshalText(text []byte) error {
	parsed, err := ParseStat(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStat resolves a full stat name or its three-letter form, ignoring case.
// Unresolvable input returns ErrUnknownStat along with the closest candidates.
func ParseStat(name string) (Stat, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, s := range AllStats {
		if key == s.String() || key == s.Short() {
			return s, nil
		}
	}

	if key == "" {
		return 0, fmt.Errorf("%w: empty name", ErrUnknownStat)
	}

	matches := fuzzy.Find(key, statNames[:])
	if len(matches) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStat, name)
	}
	suggestions := make([]string, 0, len(matches))
	for _, m := range matches {
		suggestions = append(suggestions, m.Str)
	}
	return 0, fmt.Errorf("%w: %q (did you mean %s?)", ErrUnknownStat, name, strings.Join(suggestions, ", "))
}
