// Package config loads the server configuration from YAML and overlays
// deploy-specific values from ASCEND_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/ascend/server/internal/database"
)

// EnvPrefix prefixes every environment variable the config reads.
const EnvPrefix = "ASCEND_"

// ErrWeakPassword is wrapped by ValidatePassword failures.
var ErrWeakPassword = errors.New("password does not meet requirements")

// ServerConfig holds server-wide configuration settings.
type ServerConfig struct {
	HTTP        HTTPConfig        `yaml:"http"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	Password    PasswordConfig    `yaml:"password"`
	Connections ConnectionsConfig `yaml:"connections"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Auth        AuthConfig        `yaml:"auth"`
	Database    database.Config   `yaml:"database"`
	Formula     FormulaConfig     `yaml:"formula"`
	Cache       CacheConfig       `yaml:"cache"`
}

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
	Addr         string        `yaml:"addr" env:"HTTP_ADDR"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// TrustProxyHeaders makes X-Forwarded-For / X-Real-IP the client address.
	// Enable only behind a reverse proxy that sets them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers" env:"TRUST_PROXY_HEADERS"`
}

// RateLimitConfig holds rate limiting settings for login attempts.
type RateLimitConfig struct {
	// MaxAttempts is the maximum login attempts before lockout.
	MaxAttempts int `yaml:"max_attempts"`

	// LockoutSeconds is the initial lockout duration in seconds.
	LockoutSeconds int `yaml:"lockout_seconds"`

	// MaxLockoutSeconds is the maximum lockout duration (for exponential backoff).
	MaxLockoutSeconds int `yaml:"max_lockout_seconds"`
}

// ConnectionsConfig holds WebSocket connection limit settings.
type ConnectionsConfig struct {
	// MaxPerIP is the maximum concurrent sockets from a single IP address. 0 means unlimited.
	MaxPerIP int `yaml:"max_per_ip"`

	// MaxTotal is the maximum total concurrent sockets. 0 means unlimited.
	MaxTotal int `yaml:"max_total"`
}

// PasswordConfig holds password validation settings.
type PasswordConfig struct {
	MinLength        int  `yaml:"min_length"`
	RequireUppercase bool `yaml:"require_uppercase"`
	RequireLowercase bool `yaml:"require_lowercase"`
	RequireDigit     bool `yaml:"require_digit"`
	RequireSpecial   bool `yaml:"require_special"`

	// HashCost is the bcrypt cost for new password hashes.
	HashCost int `yaml:"hash_cost"`
}

// WebSocketConfig holds WebSocket-specific settings.
type WebSocketConfig struct {
	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy.
	// Use "*" to allow all origins (not recommended for production).
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageSize is the maximum inbound WebSocket message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`

	// PingInterval is how often the server pings idle sockets.
	PingInterval time.Duration `yaml:"ping_interval"`
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	Secret   string        `yaml:"secret" env:"JWT_SECRET"`
	Issuer   string        `yaml:"issuer"`
	TokenTTL time.Duration `yaml:"token_ttl" env:"TOKEN_TTL"`
}

// FormulaConfig tunes the stat engine.
type FormulaConfig struct {
	// EffectiveCap bounds every effective stat. 0 disables the cap.
	EffectiveCap float64 `yaml:"effective_cap" env:"EFFECTIVE_CAP"`
}

// CacheConfig sizes the computed sheet cache.
type CacheConfig struct {
	SheetEntries int `yaml:"sheet_entries"`
}

// DefaultConfig returns a ServerConfig with secure defaults.
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: []string{}, // Same-origin only by default
			MaxMessageSize: 4096,
			PingInterval:   30 * time.Second,
		},
		Password: PasswordConfig{
			MinLength:        8,
			RequireUppercase: true,
			RequireLowercase: true,
			RequireDigit:     true,
			HashCost:         12,
		},
		Connections: ConnectionsConfig{
			MaxPerIP: 5,
			MaxTotal: 1000,
		},
		RateLimit: RateLimitConfig{
			MaxAttempts:       5,
			LockoutSeconds:    30,
			MaxLockoutSeconds: 300,
		},
		Auth: AuthConfig{
			Issuer:   "ascend",
			TokenTTL: 24 * time.Hour,
		},
		Database: database.DefaultConfig("data/ascend.db"),
		Cache: CacheConfig{
			SheetEntries: 4096,
		},
	}
}

// LoadConfig loads server configuration from a YAML file, then applies
// ASCEND_* environment overrides. A missing file yields the defaults.
func LoadConfig(path string) (*ServerConfig, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overlays ASCEND_* environment variables onto config.
func ApplyEnv(config *ServerConfig) error {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to apply environment: %w", err)
	}
	return nil
}

// Validate reports settings the server cannot start with.
func (c *ServerConfig) Validate() error {
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	switch database.DialectType(c.Database.Driver) {
	case database.DialectSQLite:
		if c.Database.SQLitePath == "" {
			errs = append(errs, errors.New("database.sqlite_path is required for sqlite"))
		}
	case database.DialectPostgres:
		if c.Database.Postgres.Database == "" {
			errs = append(errs, errors.New("database.postgres.database is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be sqlite or postgres", c.Database.Driver))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Formula.EffectiveCap < 0 {
		errs = append(errs, errors.New("formula.effective_cap must not be negative"))
	}
	if c.Cache.SheetEntries < 0 {
		errs = append(errs, errors.New("cache.sheet_entries must not be negative"))
	}
	if c.WebSocket.PingInterval <= 0 {
		errs = append(errs, errors.New("websocket.ping_interval must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// IsOriginAllowed checks if the given origin is allowed based on the config.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *WebSocketConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

// isSameOrigin checks if the origin matches the request host (same-origin policy).
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // No origin header means a non-browser client
	}

	// "http://localhost:3000/" -> "localhost:3000"
	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}

// ValidatePassword checks a password against the configured requirements.
// Failures wrap ErrWeakPassword and describe the first unmet rule.
func (c *PasswordConfig) ValidatePassword(password string) error {
	minLen := c.minLength()
	if len(password) < minLen {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, minLen)
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	switch {
	case c.RequireUppercase && !hasUpper:
		return fmt.Errorf("%w: must contain an uppercase letter", ErrWeakPassword)
	case c.RequireLowercase && !hasLower:
		return fmt.Errorf("%w: must contain a lowercase letter", ErrWeakPassword)
	case c.RequireDigit && !hasDigit:
		return fmt.Errorf("%w: must contain a digit", ErrWeakPassword)
	case c.RequireSpecial && !hasSpecial:
		return fmt.Errorf("%w: must contain a special character", ErrWeakPassword)
	}

	return nil
}

// RequirementsText returns a human-readable description of password requirements.
func (c *PasswordConfig) RequirementsText() string {
	parts := []string{"min " + strconv.Itoa(c.minLength()) + " chars"}

	if c.RequireUppercase {
		parts = append(parts, "uppercase")
	}
	if c.RequireLowercase {
		parts = append(parts, "lowercase")
	}
	if c.RequireDigit {
		parts = append(parts, "digit")
	}
	if c.RequireSpecial {
		parts = append(parts, "special char")
	}

	return strings.Join(parts, ", ")
}

func (c *PasswordConfig) minLength() int {
	if c.MinLength <= 0 {
		return 8
	}
	return c.MinLength
}
