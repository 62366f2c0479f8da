package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Wheel Trader Configuration

[broker]
# Use the Tastytrade certification (sandbox) environment
sandbox = true
# Override the API base URL (empty = environment default)
base_url = ""
# Request pacing towards the brokerage
requests_per_second = 5.0
# Session lifetime when the brokerage omits an expiration
session_timeout = "24h"
# HTTP client timeout (0 = none)
http_timeout = "0s"
# Attempts for idempotent GET requests
max_retries = 3

[wheel]
# Cash available for one cash-secured put (USD)
budget = 5000.0
# Days-to-expiration window
min_dte = 20
max_dte = 45
# Target delta band (informational; the nested chain carries no greeks)
target_delta_min = 0.20
target_delta_max = 0.30
# Limit price used when no --premium is given
min_premium = 0.30
# Contracts per order (the price ceiling assumes one)
max_contracts = 1
# Default --top for candidates
candidate_limit = 10
# Candidates enriched with option chains in summary
enrich_top = 10
# Concurrent chain lookups during enrichment (1 = sequential)
enrich_workers = 1
# Directory holding scan_*.json documents
scan_dir = "scans"

[screener]
max_rsi = 45.0
# Percent from all-time high must be at or below this value
min_ath_drop = -15.0
min_price = 5.0
# Minimum analyst upside (0 = disabled)
min_upside = 0.0
exclude_tickers = ["MSTR", "COIN"]
categories = ["watchlist", "big_drops", "down_streaks"]

[security]
# Enable read-only mode (blocks execute, close and cancel)
read_only_mode = false
# Enable audit logging for all order actions
audit_enabled = true
# Audit log directory (empty = ~/.config/wheel-trader/audit)
audit_dir = ""
# Enable strict input validation
strict_validation = true

[logging]
# debug, info, warn, error
level = "info"
# Write a rotating log file
file = true
# Log file path (empty = ~/.config/wheel-trader/logs/wheel.log)
file_path = ""
`

const credentialsTemplate = `# Wheel Trader Credentials
# IMPORTANT: Keep this file secure and never commit it to version control
# Environment variables TASTYTRADE_USERNAME, TASTYTRADE_PASSWORD and
# TASTYTRADE_ACCOUNT take precedence.

[tastytrade]
username = ""
password = ""
account_number = ""
`

// ConfigPath returns the path of the main config file in dir.
func ConfigPath(dir string) string {
	return filepath.Join(dir, "config.toml")
}

// CredentialsPath returns the path of the credentials file in dir.
func CredentialsPath(dir string) string {
	return filepath.Join(dir, "credentials.toml")
}

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := CredentialsPath(configDir)
	// Use restricted permissions for credentials file
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}
	return nil
}
