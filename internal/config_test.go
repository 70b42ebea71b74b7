package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppConfigAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli_config.toml")
	cfg, err := LoadAppConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL == "" || cfg.LoginURL == "" {
		t.Fatalf("endpoint defaults missing: %+v", cfg)
	}
	if cfg.ChunkSize != 4<<20 {
		t.Fatalf("chunk size default %d", cfg.ChunkSize)
	}
	if cfg.MaxRetries != 3 {
		t.Fatalf("max retries default %d", cfg.MaxRetries)
	}
	if cfg.ClientUuid == "" {
		t.Fatalf("client uuid not generated")
	}
	// First run persists the defaults.
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written on first run: %v", err)
	}
}

func TestAppConfigSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli_config.toml")
	cfg, err := LoadAppConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cfg.ChunkSize = 123456
	cfg.LogLevel = "debug"
	if _, err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("config mode %v, want 0600", info.Mode().Perm())
	}

	reloaded, err := LoadAppConfig(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.ChunkSize != 123456 {
		t.Fatalf("chunk size did not round trip: %d", reloaded.ChunkSize)
	}
	if reloaded.LogLevel != "debug" {
		t.Fatalf("log level did not round trip: %q", reloaded.LogLevel)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	if got := expandPath("~/x/y.toml"); got != filepath.Join(home, "x", "y.toml") {
		t.Fatalf("expanded to %q", got)
	}
	if got := expandPath(""); got != "" {
		t.Fatalf("empty path expanded to %q", got)
	}
	if got := expandPath("/abs/path"); got != "/abs/path" {
		t.Fatalf("absolute path changed to %q", got)
	}
}
