package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/lawnchairsociety/ascend/server/internal/auth"
	"github.com/lawnchairsociety/ascend/server/internal/config"
	"github.com/lawnchairsociety/ascend/server/internal/database"
	"github.com/lawnchairsociety/ascend/server/internal/leveling"
	"github.com/lawnchairsociety/ascend/server/internal/logger"
	"github.com/lawnchairsociety/ascend/server/internal/namefilter"
	"github.com/lawnchairsociety/ascend/server/internal/progression"
	"github.com/lawnchairsociety/ascend/server/internal/stats"
)

const maxRequestBody = 64 << 10

// errBadRequest marks malformed request bodies and parameters.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty")
		}
		return badRequest("%v", err)
	}
	if dec.More() {
		return badRequest("request body must hold a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to write response", "error", err)
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, stats.ErrInvalidInput),
		errors.Is(err, stats.ErrUnknownStat),
		errors.Is(err, leveling.ErrInvalidExperience),
		errors.Is(err, progression.ErrInvalidAmount),
		errors.Is(err, config.ErrWeakPassword),
		errors.Is(err, database.ErrEmptyUsername),
		errors.Is(err, database.ErrEmptyCharacterName),
		errors.Is(err, namefilter.ErrNameLength),
		errors.Is(err, namefilter.ErrNameFormat),
		errors.Is(err, namefilter.ErrNameBanned):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, database.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, database.ErrAccountBanned):
		return http.StatusForbidden
	case errors.Is(err, database.ErrCharacterNotFound),
		errors.Is(err, database.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrAccountExists),
		errors.Is(err, database.ErrCharacterExists),
		errors.Is(err, database.ErrStaleRevision):
		return http.StatusConflict
	case errors.Is(err, progression.ErrInsufficientPoints),
		errors.Is(err, progression.ErrInsufficientParagon),
		errors.Is(err, progression.ErrBaseCapped),
		errors.Is(err, progression.ErrBaseNotCapped),
		errors.Is(err, progression.ErrBonusUnderflow),
		errors.Is(err, progression.ErrNotMaxLevel):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError sends err as a JSON error body. Unmapped errors are logged and
// reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}
