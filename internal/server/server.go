// Package server exposes accounts, characters and computed stat sheets over a
// JSON HTTP API, and pushes sheet updates to connected WebSocket clients.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lawnchairsociety/ascend/server/internal/auth"
	"github.com/lawnchairsociety/ascend/server/internal/config"
	"github.com/lawnchairsociety/ascend/server/internal/database"
	"github.com/lawnchairsociety/ascend/server/internal/logger"
	"github.com/lawnchairsociety/ascend/server/internal/namefilter"
	"github.com/lawnchairsociety/ascend/server/internal/sheetcache"
	"github.com/lawnchairsociety/ascend/server/internal/stats"
)

// Server serves the progression API.
type Server struct {
	cfg          *config.ServerConfig
	db           *database.Database
	calc         stats.Calculator
	sheets       *sheetcache.Cache
	tokens       *auth.Issuer
	names        *namefilter.NameFilter
	connLimiter  *ConnLimiter
	loginLimiter *LoginRateLimiter
	hub          *Hub
	startTime    time.Time

	mu           sync.Mutex
	httpServer   *http.Server
	shutdownOnce sync.Once
}

// New creates a server. names may be nil to apply only the name format rules.
func New(cfg *config.ServerConfig, db *database.Database, names *namefilter.NameFilter) (*Server, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if db == nil {
		return nil, errors.New("server requires a database")
	}
	if names == nil {
		names = namefilter.New(nil)
	}

	tokens, err := auth.NewIssuer(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, nil)
	if err != nil {
		return nil, fmt.Errorf("session tokens: %w", err)
	}
	sheets, err := sheetcache.New(cfg.Cache.SheetEntries)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:          cfg,
		db:           db,
		calc:         stats.NewCalculator(stats.Options{EffectiveCap: cfg.Formula.EffectiveCap}),
		sheets:       sheets,
		tokens:       tokens,
		names:        names,
		connLimiter:  NewConnLimiter(cfg.Connections),
		loginLimiter: NewLoginRateLimiter(cfg.RateLimit),
		hub:          NewHub(),
		startTime:    time.Now(),
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", s.api(s.handleHealth))
	mux.Handle("POST /api/preview", s.api(s.handlePreview))
	mux.Handle("POST /api/accounts", s.api(s.handleRegister))
	mux.Handle("POST /api/sessions", s.api(s.handleLogin))
	mux.Handle("PUT /api/accounts/password", s.api(s.requireAuth(s.handleChangePassword)))

	mux.Handle("GET /api/characters", s.api(s.requireAuth(s.handleListCharacters)))
	mux.Handle("POST /api/characters", s.api(s.requireAuth(s.handleCreateCharacter)))
	mux.Handle("GET /api/characters/{id}", s.api(s.requireAuth(s.handleGetCharacter)))
	mux.Handle("DELETE /api/characters/{id}", s.api(s.requireAuth(s.handleDeleteCharacter)))
	mux.Handle("GET /api/characters/{id}/sheet", s.api(s.requireAuth(s.handleGetSheet)))

	mux.Handle("POST /api/characters/{id}/experience", s.api(s.requireAuth(s.handleExperience)))
	mux.Handle("POST /api/characters/{id}/allocate", s.api(s.requireAuth(s.handleAllocate)))
	mux.Handle("POST /api/characters/{id}/tier-up", s.api(s.requireAuth(s.handleTierUp)))
	mux.Handle("POST /api/characters/{id}/prestige", s.api(s.requireAuth(s.handlePrestige)))
	mux.Handle("POST /api/characters/{id}/paragon", s.api(s.requireAuth(s.handleParagon)))
	mux.Handle("POST /api/characters/{id}/equip", s.api(s.requireAuth(s.handleEquip)))
	mux.Handle("POST /api/characters/{id}/unequip", s.api(s.requireAuth(s.handleUnequip)))

	// The socket handler hijacks the connection, so it bypasses the api wrapper.
	mux.HandleFunc("GET /ws", s.handleWebSocketUpgrade)

	return mux
}

// ListenAndServe serves HTTP on the configured address until Shutdown.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:         s.cfg.HTTP.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	logger.Info("HTTP server listening", "address", s.cfg.HTTP.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and closes every socket. Later calls are
// no-ops.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		srv := s.httpServer
		s.mu.Unlock()

		if srv != nil {
			err = srv.Shutdown(ctx)
		}
		s.hub.Close()

		cache := s.sheets.Stats()
		logger.Info("Server shutdown complete",
			"uptime", time.Since(s.startTime).Round(time.Second),
			"sheet_cache_hits", cache.Hits,
			"sheet_cache_misses", cache.Misses)
	})
	return err
}

// api wraps a JSON handler with panic recovery and request logging.
func (s *Server) api(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if p := recover(); p != nil {
				logger.Error("Handler panic",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", p)
				if !rec.wrote {
					writeJSON(rec, http.StatusInternalServerError, errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
				}
			}
			logger.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
				"client_ip", getRealIP(r, s.cfg.HTTP.TrustProxyHeaders))
		}()

		h(rec, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wrote {
		r.status = status
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wrote = true
	return r.ResponseWriter.Write(b)
}

// getRealIP returns the client IP. Proxy headers are honored only when
// trustProxy is set; X-Forwarded-For wins over X-Real-IP.
func getRealIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// "client, proxy1, proxy2"
			if client := strings.TrimSpace(strings.Split(xff, ",")[0]); client != "" {
				return client
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}
	return extractIP(r.RemoteAddr)
}

// extractIP strips the port from an ip:port remote address.
func extractIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
