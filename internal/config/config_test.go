package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if len(cfg.WebSocket.AllowedOrigins) != 0 {
		t.Errorf("expected empty allowed origins by default, got %v", cfg.WebSocket.AllowedOrigins)
	}
	if cfg.WebSocket.MaxMessageSize != 4096 {
		t.Errorf("expected max message size 4096, got %d", cfg.WebSocket.MaxMessageSize)
	}
	if cfg.Formula.EffectiveCap != 0 {
		t.Errorf("expected effective cap disabled by default, got %v", cfg.Formula.EffectiveCap)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected sqlite driver by default, got %q", cfg.Database.Driver)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadConfig_FileNotExists(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("expected default addr, got %q", cfg.HTTP.Addr)
	}
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: "127.0.0.1:9000"
  read_timeout: 3s
websocket:
  allowed_origins:
    - "https://example.com"
    - "http://localhost:3000"
  max_message_size: 8192
  ping_interval: 15s
auth:
  token_ttl: 2h
formula:
  effective_cap: 1000000
cache:
  sheet_entries: 64
database:
  driver: sqlite
  sqlite_path: /tmp/ascend-test.db
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTP.Addr != "127.0.0.1:9000" {
		t.Errorf("expected addr 127.0.0.1:9000, got %s", cfg.HTTP.Addr)
	}
	if cfg.HTTP.ReadTimeout != 3*time.Second {
		t.Errorf("expected read timeout 3s, got %v", cfg.HTTP.ReadTimeout)
	}
	if len(cfg.WebSocket.AllowedOrigins) != 2 || cfg.WebSocket.AllowedOrigins[0] != "https://example.com" {
		t.Errorf("unexpected allowed origins %v", cfg.WebSocket.AllowedOrigins)
	}
	if cfg.WebSocket.PingInterval != 15*time.Second {
		t.Errorf("expected ping interval 15s, got %v", cfg.WebSocket.PingInterval)
	}
	if cfg.Auth.TokenTTL != 2*time.Hour {
		t.Errorf("expected token ttl 2h, got %v", cfg.Auth.TokenTTL)
	}
	if cfg.Formula.EffectiveCap != 1e6 {
		t.Errorf("expected effective cap 1e6, got %v", cfg.Formula.EffectiveCap)
	}
	if cfg.Cache.SheetEntries != 64 {
		t.Errorf("expected 64 cache entries, got %d", cfg.Cache.SheetEntries)
	}
	if cfg.Database.SQLitePath != "/tmp/ascend-test.db" {
		t.Errorf("expected sqlite path override, got %q", cfg.Database.SQLitePath)
	}
	// Keys absent from the file keep their defaults
	if cfg.Password.MinLength != 8 {
		t.Errorf("expected default min length 8, got %d", cfg.Password.MinLength)
	}
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := writeConfig(t, "http: [unterminated")
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: mysql
formula:
  effective_cap: -1
`)
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"database.driver", "formula.effective_cap"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got %v", want, err)
		}
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ASCEND_HTTP_ADDR", ":7777")
	t.Setenv("ASCEND_JWT_SECRET", "from-the-environment")
	t.Setenv("ASCEND_DB_DRIVER", "postgres")
	t.Setenv("ASCEND_POSTGRES_HOST", "db.internal")
	t.Setenv("ASCEND_POSTGRES_PORT", "6543")
	t.Setenv("ASCEND_POSTGRES_DATABASE", "ascend")

	path := writeConfig(t, `
http:
  addr: ":9000"
auth:
  secret: from-the-file
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTP.Addr != ":7777" {
		t.Errorf("expected env addr to win, got %q", cfg.HTTP.Addr)
	}
	if cfg.Auth.Secret != "from-the-environment" {
		t.Errorf("expected env secret to win, got %q", cfg.Auth.Secret)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("expected postgres driver, got %q", cfg.Database.Driver)
	}
	if cfg.Database.Postgres.Host != "db.internal" || cfg.Database.Postgres.Port != 6543 {
		t.Errorf("unexpected postgres host/port %s:%d", cfg.Database.Postgres.Host, cfg.Database.Postgres.Port)
	}
	// Pool defaults survive the overlay
	if cfg.Database.Postgres.MaxOpenConns != 25 {
		t.Errorf("expected default pool size, got %d", cfg.Database.Postgres.MaxOpenConns)
	}
}

func TestIsOriginAllowed_EmptyList_SameOrigin(t *testing.T) {
	cfg := WebSocketConfig{AllowedOrigins: []string{}}

	if !cfg.IsOriginAllowed("", "localhost:4000") {
		t.Error("expected empty origin to be allowed (same-origin)")
	}
	if !cfg.IsOriginAllowed("http://localhost:4000", "localhost:4000") {
		t.Error("expected matching origin to be allowed (same-origin)")
	}
	if cfg.IsOriginAllowed("http://evil.com", "localhost:4000") {
		t.Error("expected different origin to be rejected (same-origin policy)")
	}
}

func TestIsOriginAllowed_Wildcard(t *testing.T) {
	cfg := WebSocketConfig{AllowedOrigins: []string{"*"}}

	if !cfg.IsOriginAllowed("http://anything.com", "localhost:4000") {
		t.Error("expected wildcard to allow any origin")
	}
}

func TestIsOriginAllowed_ExactMatch(t *testing.T) {
	cfg := WebSocketConfig{AllowedOrigins: []string{"https://example.com", "http://localhost:3000"}}

	if !cfg.IsOriginAllowed("https://example.com", "localhost:4000") {
		t.Error("expected exact match to be allowed")
	}
	if cfg.IsOriginAllowed("http://evil.com", "localhost:4000") {
		t.Error("expected non-matching origin to be rejected")
	}
	if cfg.IsOriginAllowed("https://example.com:8080", "localhost:4000") {
		t.Error("expected partial match to be rejected")
	}
}

func TestIsSameOrigin(t *testing.T) {
	tests := []struct {
		origin      string
		requestHost string
		expected    bool
	}{
		{"", "localhost:4000", true},
		{"http://localhost:4000", "localhost:4000", true},
		{"https://localhost:4000", "localhost:4000", true},
		{"http://localhost:4000/", "localhost:4000", true},
		{"http://example.com", "localhost:4000", false},
		{"http://localhost:3000", "localhost:4000", false},
		{"ws://localhost:4000", "localhost:4000", true},
	}

	for _, tt := range tests {
		if result := isSameOrigin(tt.origin, tt.requestHost); result != tt.expected {
			t.Errorf("isSameOrigin(%q, %q) = %v, want %v", tt.origin, tt.requestHost, result, tt.expected)
		}
	}
}

func TestPasswordValidation(t *testing.T) {
	tests := []struct {
		name     string
		config   PasswordConfig
		password string
		wantErr  bool
	}{
		{"valid password with all requirements", PasswordConfig{MinLength: 8, RequireUppercase: true, RequireLowercase: true, RequireDigit: true}, "Password1", false},
		{"too short", PasswordConfig{MinLength: 8}, "Pass1", true},
		{"missing uppercase", PasswordConfig{MinLength: 8, RequireUppercase: true}, "password1", true},
		{"missing lowercase", PasswordConfig{MinLength: 8, RequireLowercase: true}, "PASSWORD1", true},
		{"missing digit", PasswordConfig{MinLength: 8, RequireDigit: true}, "Password", true},
		{"missing special char", PasswordConfig{MinLength: 8, RequireSpecial: true}, "Password1", true},
		{"valid with special char", PasswordConfig{MinLength: 8, RequireSpecial: true}, "Password1!", false},
		{"minimal requirements only", PasswordConfig{MinLength: 4}, "test", false},
		{"zero min length falls back to 8", PasswordConfig{}, "short", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrWeakPassword) {
				t.Errorf("expected ErrWeakPassword, got %v", err)
			}
		})
	}
}

func TestRequirementsText(t *testing.T) {
	cfg := PasswordConfig{MinLength: 10, RequireUppercase: true, RequireDigit: true}

	text := cfg.RequirementsText()
	if text != "min 10 chars, uppercase, digit" {
		t.Errorf("unexpected requirements text %q", text)
	}
}
