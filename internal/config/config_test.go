package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wheel-trader/internal/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TASTYTRADE_USERNAME", "TASTYTRADE_PASSWORD", "TASTYTRADE_ACCOUNT",
		"TASTYTRADE_SANDBOX", "WHEEL_BUDGET", "WHEEL_SCAN_DIR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadCreatesTemplates(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, name := range []string{"config.toml", "credentials.toml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to be created: %v", name, err)
		}
	}
	info, err := os.Stat(CredentialsPath(dir))
	if err == nil && info.Mode().Perm() != 0600 {
		t.Errorf("credentials mode = %v, want 0600", info.Mode().Perm())
	}

	if cfg.Wheel.Budget != 5000 || cfg.Wheel.MinDTE != 20 || cfg.Wheel.MaxDTE != 45 {
		t.Errorf("unexpected wheel defaults: %+v", cfg.Wheel)
	}
	if !cfg.Broker.Sandbox {
		t.Error("sandbox should be the default environment")
	}
	if cfg.Broker.SessionTimeout != 24*time.Hour {
		t.Errorf("session timeout = %v", cfg.Broker.SessionTimeout)
	}
	if cfg.Credentials.Tastytrade.HasLogin() {
		t.Error("template credentials should be empty")
	}
}

func TestLoadReadsFileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	content := `
[broker]
sandbox = false
session_timeout = "2h"

[wheel]
budget = 2500.0
min_dte = 7
max_dte = 30
scan_dir = "/data/scans"

[screener]
exclude_tickers = ["gme", " amc "]
`
	if err := os.WriteFile(ConfigPath(dir), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	creds := "[tastytrade]\nusername = \"alice\"\npassword = \"file-secret\"\naccount_number = \"5WT00001\"\n"
	if err := os.WriteFile(CredentialsPath(dir), []byte(creds), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TASTYTRADE_PASSWORD", "env-secret")
	t.Setenv("WHEEL_BUDGET", "3000")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Broker.Sandbox {
		t.Error("sandbox should be disabled by file")
	}
	if cfg.Broker.SessionTimeout != 2*time.Hour {
		t.Errorf("session timeout = %v, want 2h", cfg.Broker.SessionTimeout)
	}
	if cfg.Wheel.Budget != 3000 {
		t.Errorf("budget = %v, want env override 3000", cfg.Wheel.Budget)
	}
	if cfg.Wheel.MinDTE != 7 || cfg.Wheel.MaxDTE != 30 {
		t.Errorf("dte window = [%d, %d]", cfg.Wheel.MinDTE, cfg.Wheel.MaxDTE)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Screener.MaxRSI != 45 {
		t.Errorf("max_rsi = %v, want default 45", cfg.Screener.MaxRSI)
	}
	if cfg.Credentials.Tastytrade.Username != "alice" || cfg.Credentials.Tastytrade.Password != "env-secret" {
		t.Errorf("unexpected credentials: %+v", cfg.Credentials.Tastytrade.Username)
	}
	if cfg.BaseURL() != "https://api.tastyworks.com" || cfg.Environment() != "production" {
		t.Errorf("unexpected environment %s %s", cfg.BaseURL(), cfg.Environment())
	}

	criteria := cfg.Criteria()
	if criteria.Budget != 3000 || criteria.MaxPrice() != 30 {
		t.Errorf("criteria budget = %v", criteria.Budget)
	}
	if strings.Join(criteria.ExcludeTickers, ",") != "GME,AMC" {
		t.Errorf("exclude tickers = %v", criteria.ExcludeTickers)
	}
}

func TestLoadRejectsBadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("WHEEL_BUDGET", "lots")

	_, err := Load(t.TempDir())
	if !errors.Is(err, errors.ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero budget", func(c *Config) { c.Wheel.Budget = 0 }, false},
		{"inverted dte", func(c *Config) { c.Wheel.MinDTE, c.Wheel.MaxDTE = 45, 20 }, false},
		{"inverted delta", func(c *Config) { c.Wheel.TargetDeltaMin = 0.4 }, false},
		{"no contracts", func(c *Config) { c.Wheel.MaxContracts = 0 }, false},
		{"rsi over 100", func(c *Config) { c.Screener.MaxRSI = 120 }, false},
		{"positive ath drop", func(c *Config) { c.Screener.MinATHDrop = 5 }, false},
		{"zero workers", func(c *Config) { c.Wheel.EnrichWorkers = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid && !errors.Is(err, errors.ErrConfigInvalid) {
				t.Errorf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestWarnings(t *testing.T) {
	cfg := Default()
	if w := cfg.Warnings(); len(w) != 0 {
		t.Errorf("defaults should not warn: %v", w)
	}

	cfg.Wheel.MaxContracts = 3
	w := cfg.Warnings()
	if len(w) != 1 || !strings.Contains(w[0], "max_contracts") {
		t.Errorf("expected max_contracts warning, got %v", w)
	}
}
