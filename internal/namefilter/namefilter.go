// Package namefilter validates character names: a fixed format rule plus
// configurable banned names and banned substrings.
package namefilter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Name length bounds in runes.
const (
	DefaultMinLength = 3
	DefaultMaxLength = 16
)

var (
	// ErrNameLength is returned for names outside the length bounds.
	ErrNameLength = errors.New("name has an invalid length")

	// ErrNameFormat is returned for names with disallowed characters.
	ErrNameFormat = errors.New("name may only contain letters, with single hyphens or apostrophes between them")

	// ErrNameBanned is returned for banned names or names containing banned words.
	ErrNameBanned = errors.New("that name is not allowed")
)

// Config holds the name filter configuration
type Config struct {
	Enabled     bool     `yaml:"enabled"`
	MinLength   int      `yaml:"min_length"`
	MaxLength   int      `yaml:"max_length"`
	BannedWords []string `yaml:"banned_words"`
	BannedNames []string `yaml:"banned_names"`
}

// NameFilter validates names against the format rule and banned lists.
type NameFilter struct {
	enabled     bool
	minLength   int
	maxLength   int
	bannedWords []string // Lowercase banned words (partial match)
	bannedNames []string // Lowercase banned names (exact match)
}

// New creates a new NameFilter from a Config. A nil config applies only the
// format rule with default bounds.
func New(cfg *Config) *NameFilter {
	nf := &NameFilter{minLength: DefaultMinLength, maxLength: DefaultMaxLength}
	if cfg == nil {
		return nf
	}

	nf.enabled = cfg.Enabled
	if cfg.MinLength > 0 {
		nf.minLength = cfg.MinLength
	}
	if cfg.MaxLength > 0 {
		nf.maxLength = cfg.MaxLength
	}

	for _, word := range cfg.BannedWords {
		if word = strings.ToLower(strings.TrimSpace(word)); word != "" {
			nf.bannedWords = append(nf.bannedWords, word)
		}
	}
	for _, name := range cfg.BannedNames {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			nf.bannedNames = append(nf.bannedNames, name)
		}
	}

	return nf
}

// LoadConfig loads name filter configuration from a YAML file.
// A missing file returns a nil config, which New treats as format-only.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read name filter config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse name filter config: %w", err)
	}

	return &cfg, nil
}

// Validate checks a name and returns nil if it may be used.
func (nf *NameFilter) Validate(name string) error {
	n := utf8.RuneCountInString(name)
	if n < nf.minLength || n > nf.maxLength {
		return fmt.Errorf("%w: must be %d-%d characters", ErrNameLength, nf.minLength, nf.maxLength)
	}
	if !validFormat(name) {
		return ErrNameFormat
	}
	if !nf.enabled {
		return nil
	}

	nameLower := strings.ToLower(name)
	for _, banned := range nf.bannedNames {
		if nameLower == banned {
			return ErrNameBanned
		}
	}

	// Separators are ignored so "Ad-min" cannot slip past "admin".
	squashed := strings.NewReplacer("-", "", "'", "").Replace(nameLower)
	for _, word := range nf.bannedWords {
		if strings.Contains(squashed, word) {
			return fmt.Errorf("%w: contains a banned word", ErrNameBanned)
		}
	}

	return nil
}

// validFormat requires letters at both ends and no doubled separators.
func validFormat(name string) bool {
	runes := []rune(name)
	if len(runes) == 0 {
		return false
	}
	if !unicode.IsLetter(runes[0]) || !unicode.IsLetter(runes[len(runes)-1]) {
		return false
	}

	prevWasSpecial := false
	for _, r := range runes {
		switch {
		case unicode.IsLetter(r):
			prevWasSpecial = false
		case r == '-' || r == '\'':
			if prevWasSpecial {
				return false
			}
			prevWasSpecial = true
		default:
			return false
		}
	}
	return true
}

// IsEnabled returns whether the banned lists are enforced
func (nf *NameFilter) IsEnabled() bool {
	return nf.enabled
}
