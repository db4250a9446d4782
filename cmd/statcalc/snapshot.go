package main

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/ascend/server/internal/stats"
)

// Snapshot file structures. Bonus and paragon are strings so values past
// int64 survive the YAML decoder.
type snapshotFile struct {
	Level         int                       `yaml:"level"`
	PrestigeLevel int                       `yaml:"prestige_level"`
	Stats         map[string]componentsFile `yaml:"stats"`
}

type componentsFile struct {
	Base    int    `yaml:"base"`
	Tier    int    `yaml:"tier"`
	Bonus   string `yaml:"bonus"`
	Paragon string `yaml:"paragon"`
}

func loadSnapshot(path string) (stats.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return stats.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	return parseSnapshot(data)
}

// parseSnapshot decodes a YAML snapshot. Stats left out of the file are zero.
func parseSnapshot(data []byte) (stats.Snapshot, error) {
	var file snapshotFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return stats.Snapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}

	snap := stats.NewSnapshot()
	snap.Level = file.Level
	snap.PrestigeLevel = file.PrestigeLevel
	if snap.Level == 0 {
		snap.Level = 1
	}

	for name, comp := range file.Stats {
		stat, err := stats.ParseStat(name)
		if err != nil {
			return stats.Snapshot{}, err
		}
		bonus, err := parseBig(comp.Bonus)
		if err != nil {
			return stats.Snapshot{}, fmt.Errorf("%s bonus: %w", stat, err)
		}
		paragon, err := parseBig(comp.Paragon)
		if err != nil {
			return stats.Snapshot{}, fmt.Errorf("%s paragon: %w", stat, err)
		}
		snap.Stats[stat] = stats.Components{Base: comp.Base, Tier: comp.Tier, Bonus: bonus, Paragon: paragon}
	}
	return snap, snap.Validate()
}

// parseBig accepts plain decimals, underscores and scientific notation with
// an integral result ("1e30").
func parseBig(s string) (*big.Int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	if s == "" {
		return new(big.Int), nil
	}
	if v, ok := new(big.Int).SetString(s, 10); ok {
		return v, nil
	}

	f, ok := new(big.Float).SetPrec(512).SetString(s)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a number", stats.ErrInvalidInput, s)
	}
	v, acc := f.Int(nil)
	if acc != big.Exact {
		return nil, fmt.Errorf("%w: %q is not an integer", stats.ErrInvalidInput, s)
	}
	return v, nil
}
