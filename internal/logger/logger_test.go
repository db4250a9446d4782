package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARNING", slog.LevelWarn},
		{"warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := parseLogLevel(tt.input); result != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig returned error for missing file: %v", err)
	}

	if config != DefaultConfig() {
		t.Errorf("LoadConfig(missing) = %+v, want defaults %+v", config, DefaultConfig())
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logging.yaml")
	yamlContent := `logging:
  level: DEBUG
  console_format: json
  file_enabled: true
  file_path: test.log
  file_max_size_mb: 20
`
	if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if config.Level != "DEBUG" {
		t.Errorf("Level = %q, want %q", config.Level, "DEBUG")
	}
	if config.ConsoleFormat != "json" {
		t.Errorf("ConsoleFormat = %q, want %q", config.ConsoleFormat, "json")
	}
	if !config.FileEnabled {
		t.Error("FileEnabled = false, want true")
	}
	if config.FilePath != "test.log" {
		t.Errorf("FilePath = %q, want %q", config.FilePath, "test.log")
	}
	if config.FileMaxSizeMB != 20 {
		t.Errorf("FileMaxSizeMB = %d, want %d", config.FileMaxSizeMB, 20)
	}
	// console_enabled is absent from the file and must keep its default
	if !config.ConsoleEnabled {
		t.Error("ConsoleEnabled = false, want default true")
	}
	if config.FileMaxBackups != 5 {
		t.Errorf("FileMaxBackups = %d, want default 5", config.FileMaxBackups)
	}
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logging.yaml")
	if err := os.WriteFile(path, []byte("logging: [not, a, map"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestEnvVarOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "ERROR")
	t.Setenv("LOG_CONSOLE_FORMAT", "json")
	t.Setenv("LOG_FILE_ENABLED", "true")
	t.Setenv("LOG_FILE_PATH", "/custom/path.log")

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if config.Level != "ERROR" {
		t.Errorf("Level = %q, want %q (from env var)", config.Level, "ERROR")
	}
	if config.ConsoleFormat != "json" {
		t.Errorf("ConsoleFormat = %q, want %q (from env var)", config.ConsoleFormat, "json")
	}
	if !config.FileEnabled {
		t.Error("FileEnabled = false, want true (from env var)")
	}
	if config.FilePath != "/custom/path.log" {
		t.Errorf("FilePath = %q, want %q (from env var)", config.FilePath, "/custom/path.log")
	}
}

func TestEnvVarInvalidBool(t *testing.T) {
	t.Setenv("LOG_FILE_ENABLED", "sometimes")

	if _, err := LoadConfig(""); err == nil {
		t.Error("Expected error for unparseable LOG_FILE_ENABLED")
	}
}

func TestSetOutputText(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "text", "INFO")

	Info("Test message", "key", "value")
	Debug("This should not appear")

	output := buf.String()
	if !strings.Contains(output, "Test message") {
		t.Errorf("Output missing INFO message: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("Output missing structured field: %s", output)
	}
	if strings.Contains(output, "This should not appear") {
		t.Errorf("Output contains DEBUG message when level is INFO: %s", output)
	}
}

func TestSetOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "json", "INFO")

	Info("JSON test", "field1", "value1", "field2", 42)

	output := buf.String()
	if !strings.Contains(output, `"msg":"JSON test"`) {
		t.Errorf("Output missing JSON message field: %s", output)
	}
	if !strings.Contains(output, `"field2":42`) {
		t.Errorf("Output missing numeric JSON field: %s", output)
	}
}

func TestAlwaysBypassesLogLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "text", "ERROR")

	Info("Info message")
	Warning("Warning")
	Error("Error message")
	Always("Always message")

	output := buf.String()
	if strings.Contains(output, "Info message") || strings.Contains(output, "Warning") {
		t.Errorf("Below-ERROR messages appeared: %s", output)
	}
	if !strings.Contains(output, "Error message") {
		t.Error("ERROR message missing from output")
	}
	if !strings.Contains(output, "level=ALWAYS") {
		t.Errorf("ALWAYS level not formatted correctly: %s", output)
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "text", "INFO")

	With("character_id", 7).Info("sheet computed")

	if !strings.Contains(buf.String(), "character_id=7") {
		t.Errorf("With() attributes missing: %s", buf.String())
	}
}

func TestFanout(t *testing.T) {
	var text, js bytes.Buffer
	current.Store(slog.New(fanout{
		slog.NewTextHandler(&text, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&js, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}))

	Info("info only", "field", "value")
	With("character_id", 3).Warn("both")

	if !strings.Contains(text.String(), "info only") || !strings.Contains(text.String(), "character_id=3") {
		t.Errorf("text sink missing records: %s", text.String())
	}
	if strings.Contains(js.String(), "info only") {
		t.Error("json sink received a record below its level")
	}
	if !strings.Contains(js.String(), `"character_id":3`) {
		t.Errorf("json sink missing attrs: %s", js.String())
	}
}

func TestInitializeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ascendd.log")
	cfg := DefaultConfig()
	cfg.ConsoleEnabled = false
	cfg.FileEnabled = true
	cfg.FilePath = path
	cfg.FileFormat = "json"

	if err := Initialize(cfg); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	Always("Account banned", "account_id", 9)
	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), `"level":"ALWAYS"`) || !strings.Contains(string(data), `"account_id":9`) {
		t.Errorf("unexpected file contents: %s", data)
	}
}

func TestInitializeRejectsEmptyFilePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FileEnabled = true
	cfg.FilePath = " "
	if err := Initialize(cfg); err == nil {
		t.Error("Expected error for file logging without a path")
	}
}

func TestNilLogger(t *testing.T) {
	current.Store(nil)

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logging with nil logger caused panic: %v", r)
		}
	}()

	Debug("debug")
	Info("info")
	Warning("warning")
	Error("error")
	Always("always")
	With("k", "v").Info("discarded")
}
