package server

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/lawnchairsociety/ascend/server/internal/auth"
	"github.com/lawnchairsociety/ascend/server/internal/database"
	"github.com/lawnchairsociety/ascend/server/internal/leveling"
	"github.com/lawnchairsociety/ascend/server/internal/logger"
	"github.com/lawnchairsociety/ascend/server/internal/progression"
	"github.com/lawnchairsociety/ascend/server/internal/stats"
)

// maxSaveAttempts bounds how often a mutation is replayed after losing a
// revision race to another writer.
const maxSaveAttempts = 3

// mutate loads the character, applies fn and saves the result against the
// loaded revision. On a stale revision the character is reloaded and fn runs
// again on the fresh state.
func (s *Server) mutate(accountID, id int64, fn func(*progression.Character) error) (*database.Character, error) {
	var lastErr error
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		char, err := s.loadOwned(accountID, id)
		if err != nil {
			return nil, err
		}

		expected := char.Progress.Revision
		if err := fn(char.Progress); err != nil {
			return nil, err
		}

		err = s.db.SaveCharacter(char, expected)
		if err == nil {
			return char, nil
		}
		if !errors.Is(err, database.ErrStaleRevision) {
			return nil, err
		}
		lastErr = err
		logger.Debug("Character save lost a revision race",
			"character_id", id,
			"attempt", attempt)
	}
	return nil, fmt.Errorf("after %d attempts: %w", maxSaveAttempts, lastErr)
}

// progress runs a mutation for the authenticated caller and responds with the
// updated character and sheet, which are also pushed to the account's sockets.
func (s *Server) progress(w http.ResponseWriter, r *http.Request, claims auth.Claims, action string,
	fn func(*progression.Character) error, levelUp func() *levelUpJSON) {
	id, err := characterID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	char, err := s.mutate(claims.AccountID, id, fn)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sheet, err := s.sheetFor(char)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := newSheetJSON(sheet)
	s.hub.Publish(claims.AccountID, sheetEvent{
		Type:        eventSheet,
		CharacterID: char.ID,
		Revision:    char.Progress.Revision,
		Sheet:       out,
	})

	logger.Info("Character progressed",
		"account_id", claims.AccountID,
		"character_id", char.ID,
		"action", action,
		"revision", char.Progress.Revision)

	resp := mutationResponse{Character: newCharacterJSON(char), Sheet: out}
	if levelUp != nil {
		resp.LevelUp = levelUp()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExperience(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	var req experienceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var result leveling.LevelUpResult
	s.progress(w, r, claims, "experience",
		func(c *progression.Character) error {
			res, err := c.GainExperience(req.Amount)
			result = res
			return err
		},
		func() *levelUpJSON {
			return &levelUpJSON{LevelsGained: result.LevelsGained, StatPoints: result.StatPoints}
		})
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	var req allocateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	stat, err := stats.ParseStat(req.Stat)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.progress(w, r, claims, "allocate", func(c *progression.Character) error {
		return c.AllocateBase(stat, req.Points)
	}, nil)
}

func (s *Server) handleTierUp(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	var req statRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	stat, err := stats.ParseStat(req.Stat)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.progress(w, r, claims, "tier-up", func(c *progression.Character) error {
		return c.TierUp(stat)
	}, nil)
}

func (s *Server) handlePrestige(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	s.progress(w, r, claims, "prestige", func(c *progression.Character) error {
		return c.Prestige()
	}, nil)
}

func (s *Server) handleParagon(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	var req paragonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	stat, err := stats.ParseStat(req.Stat)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.progress(w, r, claims, "paragon", func(c *progression.Character) error {
		return c.AllocateParagon(stat, req.Points.Int())
	}, nil)
}

func (s *Server) handleEquip(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	s.handleGear(w, r, claims, "equip", (*progression.Character).Equip)
}

func (s *Server) handleUnequip(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	s.handleGear(w, r, claims, "unequip", (*progression.Character).Unequip)
}

func (s *Server) handleGear(w http.ResponseWriter, r *http.Request, claims auth.Claims, action string,
	apply func(*progression.Character, stats.Stat, *big.Int) error) {
	var req gearRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	stat, err := stats.ParseStat(req.Stat)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.progress(w, r, claims, action, func(c *progression.Character) error {
		return apply(c, stat, req.Bonus.Int())
	}, nil)
}
