package leveling

import (
	"errors"
	"math"
)

// Leveling constants
const (
	MaxLevel           = 100
	StatPointsPerLevel = 5
)

// ErrInvalidExperience is returned for non-positive experience awards.
var ErrInvalidExperience = errors.New("experience amount must be positive")

// XPForLevel returns the total XP required to reach a given level.
// Uses polynomial curve: 100 * level^1.5
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	return int64(100 * math.Pow(float64(level), 1.5))
}

// XPToNextLevel returns XP needed from current level to next level.
func XPToNextLevel(currentLevel int) int64 {
	if currentLevel >= MaxLevel {
		return 0
	}
	return XPForLevel(currentLevel+1) - XPForLevel(currentLevel)
}

// LevelUpResult describes the outcome of an experience award.
type LevelUpResult struct {
	Level        int
	Experience   int64
	LevelsGained int
	StatPoints   int
}

// GainExperience adds XP to a character at the given level and applies every
// level-up it pays for. Experience stops accumulating at the MaxLevel threshold.
func GainExperience(level int, experience, amount int64) (LevelUpResult, error) {
	if amount <= 0 {
		return LevelUpResult{}, ErrInvalidExperience
	}
	if level < 1 {
		level = 1
	}

	res := LevelUpResult{Level: level, Experience: experience}
	if level >= MaxLevel {
		res.Experience = XPForLevel(MaxLevel)
		return res, nil
	}

	if amount > math.MaxInt64-res.Experience {
		res.Experience = math.MaxInt64
	} else {
		res.Experience += amount
	}

	for res.Level < MaxLevel && res.Experience >= XPForLevel(res.Level+1) {
		res.Level++
		res.LevelsGained++
	}
	if res.Level >= MaxLevel {
		res.Experience = XPForLevel(MaxLevel)
	}
	res.StatPoints = res.LevelsGained * StatPointsPerLevel
	return res, nil
}
