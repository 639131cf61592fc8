// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, duration parsing, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
gateway:
  url: "wss://gateway.example.com:7411/ws"
  request_timeout: "20s"
  heartbeat_interval: "5s"

profile: "work"

state:
  dir: "/var/lib/clawlink"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gateway.URL != "wss://gateway.example.com:7411/ws" {
		t.Errorf("Gateway.URL = %q, want %q", cfg.Gateway.URL, "wss://gateway.example.com:7411/ws")
	}
	if cfg.Gateway.RequestTimeout != 20*time.Second {
		t.Errorf("Gateway.RequestTimeout = %v, want %v", cfg.Gateway.RequestTimeout, 20*time.Second)
	}
	if cfg.Gateway.HeartbeatInterval != 5*time.Second {
		t.Errorf("Gateway.HeartbeatInterval = %v, want %v", cfg.Gateway.HeartbeatInterval, 5*time.Second)
	}
	if cfg.Profile != "work" {
		t.Errorf("Profile = %q, want %q", cfg.Profile, "work")
	}
	if cfg.State.Dir != "/var/lib/clawlink" {
		t.Errorf("State.Dir = %q, want %q", cfg.State.Dir, "/var/lib/clawlink")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_OmittedFieldsKeepDefaults(t *testing.T) {
	configPath := writeConfig(t, `
gateway:
  url: "ws://localhost:7411/ws"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gateway.RequestTimeout != 15*time.Second {
		t.Errorf("Gateway.RequestTimeout = %v, want default %v", cfg.Gateway.RequestTimeout, 15*time.Second)
	}
	if cfg.Gateway.HeartbeatInterval != 10*time.Second {
		t.Errorf("Gateway.HeartbeatInterval = %v, want default %v", cfg.Gateway.HeartbeatInterval, 10*time.Second)
	}
	if cfg.Profile != DefaultProfile {
		t.Errorf("Profile = %q, want %q", cfg.Profile, DefaultProfile)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_CLAWLINK_URL", "wss://gateway.from-env.example.com/ws")

	configPath := writeConfig(t, `
gateway:
  url: "${TEST_CLAWLINK_URL}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gateway.URL != "wss://gateway.from-env.example.com/ws" {
		t.Errorf("Gateway.URL = %q, want value from environment", cfg.Gateway.URL)
	}
}

func TestLoad_EnvVarExpansion_UnsetVar(t *testing.T) {
	os.Unsetenv("UNSET_VAR_FOR_TEST")

	configPath := writeConfig(t, `
state:
  dir: "${UNSET_VAR_FOR_TEST}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Unset env vars should expand to empty string
	if cfg.State.Dir != "" {
		t.Errorf("State.Dir = %q, want empty string for unset env var", cfg.State.Dir)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `
gateway:
  url: "ws://localhost/ws
  this is not valid yaml
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid YAML, got nil")
	}
	if !strings.Contains(err.Error(), "parsing config file") {
		t.Errorf("error = %v, want parsing error", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "bad request_timeout",
			content: `
gateway:
  url: "ws://localhost/ws"
  request_timeout: "fifteen seconds"
`,
		},
		{
			name: "bad heartbeat_interval",
			content: `
gateway:
  url: "ws://localhost/ws"
  heartbeat_interval: "10x"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, tt.content)
			_, err := Load(configPath)
			if err == nil {
				t.Fatal("Load() expected duration error, got nil")
			}
			if !strings.Contains(err.Error(), "parsing durations") {
				t.Errorf("error = %v, want duration parsing error", err)
			}
		})
	}
}

func TestLoad_RejectsNonPositiveDuration(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "negative request_timeout",
			content: `
gateway:
  url: "ws://localhost/ws"
  request_timeout: "-5s"
`,
		},
		{
			name: "negative heartbeat_interval",
			content: `
gateway:
  url: "ws://localhost/ws"
  heartbeat_interval: "-10s"
`,
		},
		{
			name: "zero request_timeout",
			content: `
gateway:
  url: "ws://localhost/ws"
  request_timeout: "0s"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, tt.content)
			_, err := Load(configPath)
			if err == nil {
				t.Fatal("Load() accepted a non-positive duration")
			}
			if !strings.Contains(err.Error(), "must be positive") {
				t.Errorf("error = %v, want positive-duration error", err)
			}
		})
	}
}

func TestLoad_RejectsBadGatewayURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"http scheme", "http://gateway.example.com/ws"},
		{"no host", "wss:///ws"},
		{"garbage", "::not a url::"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, "gateway:\n  url: \""+tt.url+"\"\n")
			_, err := Load(configPath)
			if err == nil {
				t.Fatalf("Load() accepted gateway.url %q", tt.url)
			}
		})
	}
}

func TestLoad_RejectsBadLogging(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: "loud"
`)
	if _, err := Load(configPath); err == nil {
		t.Fatal("Load() accepted logging.level loud")
	}

	configPath = writeConfig(t, `
logging:
  format: "xml"
`)
	if _, err := Load(configPath); err == nil {
		t.Fatal("Load() accepted logging.format xml")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("EXPAND_A", "alpha")
	t.Setenv("EXPAND_B", "beta")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single var", "url: ${EXPAND_A}", "url: alpha"},
		{"two vars", "${EXPAND_A}-${EXPAND_B}", "alpha-beta"},
		{"no vars", "plain text", "plain text"},
		{"unset var", "x${NOT_SET_EXPAND_VAR}y", "xy"},
		{"adjacent text", "pre${EXPAND_A}post", "prealphapost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandEnvVars(tt.input); got != tt.want {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Profile != DefaultProfile {
		t.Errorf("Profile = %q, want %q", cfg.Profile, DefaultProfile)
	}
	if cfg.Gateway.RequestTimeout != 15*time.Second {
		t.Errorf("Gateway.RequestTimeout = %v, want 15s", cfg.Gateway.RequestTimeout)
	}
	if cfg.Gateway.HeartbeatInterval != 10*time.Second {
		t.Errorf("Gateway.HeartbeatInterval = %v, want 10s", cfg.Gateway.HeartbeatInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() config does not validate: %v", err)
	}
}
