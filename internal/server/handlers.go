package server

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/lawnchairsociety/ascend/server/internal/auth"
	"github.com/lawnchairsociety/ascend/server/internal/database"
	"github.com/lawnchairsociety/ascend/server/internal/logger"
	"github.com/lawnchairsociety/ascend/server/internal/stats"
)

// Username bounds in runes.
const (
	minUsernameLength = 3
	maxUsernameLength = 32
)

// authedHandler receives the verified session of the caller.
type authedHandler func(w http.ResponseWriter, r *http.Request, claims auth.Claims)

// requireAuth rejects requests without a valid bearer token for an active account.
func (s *Server) requireAuth(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="ascend"`)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
			return
		}
		claims, err := s.authenticate(token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		h(w, r, claims)
	}
}

// authenticate verifies a token and checks that its account still exists and
// is not banned.
func (s *Server) authenticate(token string) (auth.Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return auth.Claims{}, err
	}
	account, err := s.db.GetAccountByID(claims.AccountID)
	if errors.Is(err, database.ErrAccountNotFound) {
		return auth.Claims{}, auth.ErrTokenInvalid
	}
	if err != nil {
		return auth.Claims{}, err
	}
	if account.Banned {
		return auth.Claims{}, database.ErrAccountBanned
	}
	return claims, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "ok",
		Uptime:     time.Since(s.startTime).Round(time.Second).String(),
		Sockets:    s.connLimiter.Stats(),
		SheetCache: s.sheets.Stats(),
	}
	status := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.DB().PingContext(ctx); err != nil {
		logger.Warning("Health check database ping failed", "error", err)
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	} else {
		if v, err := s.db.SchemaVersion(); err == nil {
			resp.SchemaVersion = v
		}
		if totals, err := s.db.Totals(); err == nil {
			resp.Totals = totals
		}
	}

	writeJSON(w, status, resp)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sheet, err := s.calc.Compute(req.Snapshot.snapshot())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSheetJSON(sheet))
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < minUsernameLength || n > maxUsernameLength {
		return badRequest("username must be %d-%d characters", minUsernameLength, maxUsernameLength)
	}
	for _, r := range username {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return badRequest("username may not contain spaces or control characters")
		}
	}
	return nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	username := strings.TrimSpace(req.Username)
	if err := validateUsername(username); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.cfg.Password.ValidatePassword(req.Password); err != nil {
		writeError(w, r, err)
		return
	}

	account, err := s.db.CreateAccount(username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Always("Account created",
		"account_id", account.ID,
		"username", account.Username,
		"client_ip", getRealIP(r, s.cfg.HTTP.TrustProxyHeaders))
	writeJSON(w, http.StatusCreated, accountResponse{ID: account.ID, Username: account.Username})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	clientIP := getRealIP(r, s.cfg.HTTP.TrustProxyHeaders)

	if locked, remaining := s.loginLimiter.IsLocked(clientIP); locked {
		writeLockout(w, remaining)
		return
	}

	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	account, err := s.db.ValidateLogin(req.Username, req.Password, clientIP)
	if err != nil {
		if errors.Is(err, database.ErrInvalidCredentials) {
			if locked, d := s.loginLimiter.RecordFailure(clientIP); locked {
				logger.Warning("Login locked out",
					"client_ip", clientIP,
					"lockout", d)
			}
		}
		writeError(w, r, err)
		return
	}
	s.loginLimiter.RecordSuccess(clientIP)

	token, claims, err := s.tokens.Issue(account.ID, account.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Info("Login succeeded",
		"account_id", account.ID,
		"username", account.Username,
		"client_ip", clientIP)
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:     token,
		AccountID: claims.AccountID,
		Username:  claims.Username,
		ExpiresAt: claims.ExpiresAt,
	})
}

// handleChangePassword needs the current password even with a valid token.
// Issued tokens stay valid until they expire.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.cfg.Password.ValidatePassword(req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.db.ChangePassword(claims.AccountID, req.OldPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	logger.Info("Password changed", "account_id", claims.AccountID)
	w.WriteHeader(http.StatusNoContent)
}

func writeLockout(w http.ResponseWriter, remaining time.Duration) {
	secs := int(math.Ceil(remaining.Seconds()))
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeJSON(w, http.StatusTooManyRequests, errorResponse{
		Error: "too many failed login attempts, try again in " + strconv.Itoa(secs) + "s",
	})
}

// characterID parses the {id} path segment.
func characterID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid character id %q", r.PathValue("id"))
	}
	return id, nil
}

// loadOwned returns the character if it belongs to accountID. Characters of
// other accounts are reported as not found.
func (s *Server) loadOwned(accountID, id int64) (*database.Character, error) {
	char, err := s.db.GetCharacterByID(id)
	if err != nil {
		return nil, err
	}
	if char.AccountID != accountID {
		return nil, database.ErrCharacterNotFound
	}
	return char, nil
}

// sheetFor returns the computed sheet for the character's current revision.
func (s *Server) sheetFor(char *database.Character) (stats.Sheet, error) {
	return s.sheets.GetOrCompute(char.ID, char.Progress.Revision, func() (stats.Sheet, error) {
		return s.calc.Compute(char.Progress.Snapshot)
	})
}

func (s *Server) handleListCharacters(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	chars, err := s.db.GetCharactersByAccount(claims.AccountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]characterJSON, 0, len(chars))
	for _, char := range chars {
		out = append(out, newCharacterJSON(char))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCharacter(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	var req createCharacterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if err := s.names.Validate(name); err != nil {
		writeError(w, r, err)
		return
	}
	taken, err := s.db.CharacterNameExists(name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if taken {
		writeError(w, r, database.ErrCharacterExists)
		return
	}

	// The unique index still guards the race between the check and the insert.
	char, err := s.db.CreateCharacter(claims.AccountID, name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Info("Character created",
		"account_id", claims.AccountID,
		"character_id", char.ID,
		"name", char.Name)
	writeJSON(w, http.StatusCreated, newCharacterJSON(char))
}

func (s *Server) handleGetCharacter(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	id, err := characterID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	char, err := s.loadOwned(claims.AccountID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCharacterJSON(char))
}

func (s *Server) handleDeleteCharacter(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	id, err := characterID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.loadOwned(claims.AccountID, id); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.db.DeleteCharacter(id); err != nil {
		writeError(w, r, err)
		return
	}
	s.sheets.Invalidate(id)
	s.hub.Publish(claims.AccountID, characterDeletedEvent{Type: eventCharacterDeleted, CharacterID: id})

	logger.Always("Character deleted",
		"account_id", claims.AccountID,
		"character_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSheet(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	id, err := characterID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	char, err := s.loadOwned(claims.AccountID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sheet, err := s.sheetFor(char)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sheetResponse{
		CharacterID: char.ID,
		Revision:    char.Progress.Revision,
		Sheet:       newSheetJSON(sheet),
	})
}
