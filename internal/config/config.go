// Package config provides configuration management for the wheel trader.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"wheel-trader/internal/analysis/scoring"
	"wheel-trader/internal/broker"
	"wheel-trader/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Broker      BrokerConfig   `mapstructure:"broker"`
	Wheel       WheelConfig    `mapstructure:"wheel"`
	Screener    ScreenerConfig `mapstructure:"screener"`
	Security    SecurityConfig `mapstructure:"security"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Credentials Credentials    `mapstructure:"-" json:"-"` // Loaded separately

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-" json:"dir"`
}

// BrokerConfig holds brokerage connection settings.
type BrokerConfig struct {
	Sandbox           bool          `mapstructure:"sandbox"`
	BaseURL           string        `mapstructure:"base_url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	SessionTimeout    time.Duration `mapstructure:"session_timeout"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

// WheelConfig holds the wheel strategy parameters.
type WheelConfig struct {
	Budget         float64 `mapstructure:"budget"`
	MinDTE         int     `mapstructure:"min_dte"`
	MaxDTE         int     `mapstructure:"max_dte"`
	// Delta band is shown but not used for selection: nested chains carry no greeks.
	TargetDeltaMin float64 `mapstructure:"target_delta_min"`
	TargetDeltaMax float64 `mapstructure:"target_delta_max"`
	MinPremium     float64 `mapstructure:"min_premium"`
	MaxContracts   int     `mapstructure:"max_contracts"`
	CandidateLimit int     `mapstructure:"candidate_limit"`
	EnrichTop      int     `mapstructure:"enrich_top"`
	EnrichWorkers  int     `mapstructure:"enrich_workers"`
	ScanDir        string  `mapstructure:"scan_dir"`
}

// ScreenerConfig holds the scan-document filter thresholds.
type ScreenerConfig struct {
	MaxRSI         float64  `mapstructure:"max_rsi"`
	MinATHDrop     float64  `mapstructure:"min_ath_drop"`
	MinPrice       float64  `mapstructure:"min_price"`
	MinUpside      float64  `mapstructure:"min_upside"`
	ExcludeTickers []string `mapstructure:"exclude_tickers"`
	Categories     []string `mapstructure:"categories"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	ReadOnlyMode     bool   `mapstructure:"read_only_mode"`
	AuditEnabled     bool   `mapstructure:"audit_enabled"`
	AuditDir         string `mapstructure:"audit_dir"`
	StrictValidation bool   `mapstructure:"strict_validation"`
}

// LoggingConfig holds log sink configuration.
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	File     bool   `mapstructure:"file"`
	FilePath string `mapstructure:"file_path"`
}

// Credentials holds brokerage credentials.
type Credentials struct {
	Tastytrade TastytradeCredentials `mapstructure:"tastytrade"`
}

// TastytradeCredentials holds Tastytrade login details.
type TastytradeCredentials struct {
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	AccountNumber string `mapstructure:"account_number"`
}

// HasLogin reports whether a username and password are present.
func (c TastytradeCredentials) HasLogin() bool {
	return c.Username != "" && c.Password != ""
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/wheel-trader"
	}
	return filepath.Join(home, ".config", "wheel-trader")
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	criteria := scoring.DefaultCriteria()
	return &Config{
		Broker: BrokerConfig{
			Sandbox:           true,
			RequestsPerSecond: 5,
			SessionTimeout:    24 * time.Hour,
			MaxRetries:        3,
		},
		Wheel: WheelConfig{
			Budget:         criteria.Budget,
			MinDTE:         20,
			MaxDTE:         45,
			TargetDeltaMin: 0.20,
			TargetDeltaMax: 0.30,
			MinPremium:     0.30,
			MaxContracts:   1,
			CandidateLimit: 10,
			EnrichTop:      10,
			EnrichWorkers:  1,
			ScanDir:        "scans",
		},
		Screener: ScreenerConfig{
			MaxRSI:         criteria.MaxRSI,
			MinATHDrop:     criteria.MinATHDrop,
			MinPrice:       criteria.MinPrice,
			MinUpside:      criteria.MinUpside,
			ExcludeTickers: criteria.ExcludeTickers,
			Categories:     criteria.Categories,
		},
		Security: SecurityConfig{
			AuditEnabled:     true,
			StrictValidation: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  true,
		},
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. Missing files
// are created from templates and loading continues with their contents.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()
	cfg.Dir = configDir

	// Load main config
	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	// Load credentials
	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	// Apply environment variable overrides
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if !filepath.IsAbs(cfg.Wheel.ScanDir) && cfg.Wheel.ScanDir != "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.Wheel.ScanDir = filepath.Join(wd, cfg.Wheel.ScanDir)
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("broker.sandbox", cfg.Broker.Sandbox)
	v.SetDefault("broker.base_url", cfg.Broker.BaseURL)
	v.SetDefault("broker.requests_per_second", cfg.Broker.RequestsPerSecond)
	v.SetDefault("broker.session_timeout", cfg.Broker.SessionTimeout)
	v.SetDefault("broker.http_timeout", cfg.Broker.HTTPTimeout)
	v.SetDefault("broker.max_retries", cfg.Broker.MaxRetries)

	v.SetDefault("wheel.budget", cfg.Wheel.Budget)
	v.SetDefault("wheel.min_dte", cfg.Wheel.MinDTE)
	v.SetDefault("wheel.max_dte", cfg.Wheel.MaxDTE)
	v.SetDefault("wheel.target_delta_min", cfg.Wheel.TargetDeltaMin)
	v.SetDefault("wheel.target_delta_max", cfg.Wheel.TargetDeltaMax)
	v.SetDefault("wheel.min_premium", cfg.Wheel.MinPremium)
	v.SetDefault("wheel.max_contracts", cfg.Wheel.MaxContracts)
	v.SetDefault("wheel.candidate_limit", cfg.Wheel.CandidateLimit)
	v.SetDefault("wheel.enrich_top", cfg.Wheel.EnrichTop)
	v.SetDefault("wheel.enrich_workers", cfg.Wheel.EnrichWorkers)
	v.SetDefault("wheel.scan_dir", cfg.Wheel.ScanDir)

	v.SetDefault("screener.max_rsi", cfg.Screener.MaxRSI)
	v.SetDefault("screener.min_ath_drop", cfg.Screener.MinATHDrop)
	v.SetDefault("screener.min_price", cfg.Screener.MinPrice)
	v.SetDefault("screener.min_upside", cfg.Screener.MinUpside)
	v.SetDefault("screener.exclude_tickers", cfg.Screener.ExcludeTickers)
	v.SetDefault("screener.categories", cfg.Screener.Categories)

	v.SetDefault("security.read_only_mode", cfg.Security.ReadOnlyMode)
	v.SetDefault("security.audit_enabled", cfg.Security.AuditEnabled)
	v.SetDefault("security.audit_dir", cfg.Security.AuditDir)
	v.SetDefault("security.strict_validation", cfg.Security.StrictValidation)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.file_path", cfg.Logging.FilePath)
}

func loadConfigFile(configDir, name string, target *Config) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, target)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, create template and use defaults
		if err := createTemplateConfig(configDir, name); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) error {
	// Tastytrade credentials
	if v := os.Getenv("TASTYTRADE_USERNAME"); v != "" {
		cfg.Credentials.Tastytrade.Username = v
	}
	if v := os.Getenv("TASTYTRADE_PASSWORD"); v != "" {
		cfg.Credentials.Tastytrade.Password = v
	}
	if v := os.Getenv("TASTYTRADE_ACCOUNT"); v != "" {
		cfg.Credentials.Tastytrade.AccountNumber = v
	}

	// Environment
	if v := os.Getenv("TASTYTRADE_SANDBOX"); v != "" {
		sandbox, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(errors.ErrConfigInvalid, "TASTYTRADE_SANDBOX=%q", v)
		}
		cfg.Broker.Sandbox = sandbox
	}

	// Wheel parameters
	if v := os.Getenv("WHEEL_BUDGET"); v != "" {
		budget, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(errors.ErrConfigInvalid, "WHEEL_BUDGET=%q", v)
		}
		cfg.Wheel.Budget = budget
	}
	if v := os.Getenv("WHEEL_SCAN_DIR"); v != "" {
		cfg.Wheel.ScanDir = v
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Wheel.Budget <= 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "wheel.budget must be positive")
	}
	if c.Wheel.MinDTE < 0 || c.Wheel.MaxDTE < c.Wheel.MinDTE {
		return errors.Wrapf(errors.ErrConfigInvalid, "wheel DTE window [%d, %d] is invalid", c.Wheel.MinDTE, c.Wheel.MaxDTE)
	}
	if c.Wheel.TargetDeltaMin < 0 || c.Wheel.TargetDeltaMax > 1 || c.Wheel.TargetDeltaMax < c.Wheel.TargetDeltaMin {
		return errors.Wrap(errors.ErrConfigInvalid, "wheel target delta band must satisfy 0 <= min <= max <= 1")
	}
	if c.Wheel.MinPremium < 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "wheel.min_premium must be non-negative")
	}
	if c.Wheel.MaxContracts < 1 {
		return errors.Wrap(errors.ErrConfigInvalid, "wheel.max_contracts must be at least 1")
	}
	if c.Wheel.CandidateLimit < 1 || c.Wheel.EnrichTop < 0 || c.Wheel.EnrichWorkers < 1 {
		return errors.Wrap(errors.ErrConfigInvalid, "wheel limits must be positive")
	}
	if c.Screener.MaxRSI < 0 || c.Screener.MaxRSI > 100 {
		return errors.Wrap(errors.ErrConfigInvalid, "screener.max_rsi must be between 0 and 100")
	}
	if c.Screener.MinATHDrop > 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "screener.min_ath_drop must be zero or negative")
	}
	if c.Screener.MinPrice < 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "screener.min_price must be non-negative")
	}
	if c.Broker.RequestsPerSecond < 0 || c.Broker.MaxRetries < 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "broker limits must be non-negative")
	}
	return nil
}

// Warnings reports settings that are valid but inconsistent with each other.
func (c *Config) Warnings() []string {
	var out []string
	if c.Wheel.MaxContracts != 1 {
		out = append(out, fmt.Sprintf(
			"wheel.max_contracts = %d but the price ceiling is budget/100 (one contract); orders still use one contract",
			c.Wheel.MaxContracts))
	}
	if c.Screener.MinPrice > c.Wheel.Budget/100 {
		out = append(out, "screener.min_price exceeds budget/100; no stock can pass the price filters")
	}
	return out
}

// Criteria builds the screener criteria from the wheel and screener sections.
func (c *Config) Criteria() scoring.Criteria {
	exclude := make([]string, 0, len(c.Screener.ExcludeTickers))
	for _, t := range c.Screener.ExcludeTickers {
		exclude = append(exclude, strings.ToUpper(strings.TrimSpace(t)))
	}
	return scoring.Criteria{
		Budget:         c.Wheel.Budget,
		MaxRSI:         c.Screener.MaxRSI,
		MinATHDrop:     c.Screener.MinATHDrop,
		MinPrice:       c.Screener.MinPrice,
		MinUpside:      c.Screener.MinUpside,
		ExcludeTickers: exclude,
		Categories:     c.Screener.Categories,
	}
}

// BaseURL returns the configured API base URL, or the environment default.
func (c *Config) BaseURL() string {
	if c.Broker.BaseURL != "" {
		return strings.TrimRight(c.Broker.BaseURL, "/")
	}
	return broker.BaseURLFor(c.Broker.Sandbox)
}

// Environment returns "sandbox" or "production".
func (c *Config) Environment() string {
	if c.Broker.Sandbox {
		return "sandbox"
	}
	return "production"
}
