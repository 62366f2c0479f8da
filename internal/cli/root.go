package cli

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"wheel-trader/internal/broker"
	"wheel-trader/internal/config"
	"wheel-trader/internal/logging"
	"wheel-trader/internal/security"
	"wheel-trader/internal/store"
	"wheel-trader/internal/trading"
	"wheel-trader/pkg/utils"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-02-20"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Broker broker.Broker
	Scans  store.ScanSource
	Access *security.AccessController
	Audit  *security.AuditLogger

	// Now overrides the pipeline clock when set.
	Now func() time.Time

	pipeline *trading.Pipeline
}

// NewApp wires the brokerage, scan store and security layer from cfg.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	app := &App{
		Config: cfg,
		Logger: logger,
		Scans:  store.NewScanStore(cfg.Wheel.ScanDir),
	}

	creds := cfg.Credentials.Tastytrade
	app.Broker = broker.NewTastytrade(broker.TastytradeConfig{
		ClientConfig: broker.ClientConfig{
			BaseURL:           cfg.BaseURL(),
			Username:          creds.Username,
			Password:          creds.Password,
			RequestsPerSecond: cfg.Broker.RequestsPerSecond,
			SessionTimeout:    cfg.Broker.SessionTimeout,
			HTTPTimeout:       cfg.Broker.HTTPTimeout,
			Retry:             retryConfig(cfg.Broker.MaxRetries),
		},
		Sandbox:       cfg.Broker.Sandbox,
		AccountNumber: creds.AccountNumber,
	}, logger)
	if !creds.HasLogin() {
		logger.Debug().Msg("Brokerage credentials not configured")
	}

	if cfg.Security.AuditEnabled {
		auditCfg := security.DefaultAuditConfig()
		if cfg.Security.AuditDir != "" {
			auditCfg.LogDir = cfg.Security.AuditDir
		}
		audit, err := security.NewAuditLogger(auditCfg)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize audit log, continuing without it")
		} else {
			audit.SetIdentity(creds.Username, creds.AccountNumber)
			app.Audit = audit
		}
	}
	app.Access = security.NewAccessController(cfg.Security.ReadOnlyMode, app.Audit)

	return app
}

func retryConfig(maxRetries int) utils.RetryConfig {
	retry := utils.DefaultRetryConfig()
	if maxRetries > 0 {
		retry.MaxAttempts = maxRetries
	}
	return retry
}

// Pipeline returns the wheel pipeline, built on first use so that the
// --debug level is already applied to its logger.
func (a *App) Pipeline() *trading.Pipeline {
	if a.pipeline == nil {
		p := trading.NewPipeline(a.Config, a.Broker, a.Scans, a.Logger)
		p.SetSecurity(a.Access, a.Audit)
		if a.Now != nil {
			p.SetClock(a.Now)
		}
		a.pipeline = p
	}
	return a.pipeline
}

// Close releases the audit log.
func (a *App) Close() error {
	if a.Audit == nil {
		return nil
	}
	return a.Audit.Close()
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	return NewRootCmdWithApp(NewApp(cfg, logger))
}

// NewRootCmdWithApp creates the root command around prepared dependencies.
func NewRootCmdWithApp(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wheel",
		Short: "Wheel strategy pipeline for Tastytrade",
		Long: `wheel turns a stock scan document into cash-secured put and covered
call orders on a Tastytrade account.

Candidates are screened and scored from the newest scan_*.json, enriched
with live option chains, dry-run against the brokerage, and submitted only
with --confirm. Run without a command to print the full summary.`,
		Example: `  wheel candidates --top 5
  wheel dryrun SOFI --premium 0.35
  wheel execute SOFI --confirm`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}

			ctx := logging.WithRequestID(cmd.Context(), uuid.NewString())
			ctx = logging.WithLogger(ctx, app.Logger)
			cmd.SetContext(ctx)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(cmd, app)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/wheel-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("scan", "", "scan document to read (default: newest in wheel.scan_dir)")
	rootCmd.PersistentFlags().Int("top", 0, "number of candidates to show (default: wheel.candidate_limit)")

	addCoreCommands(rootCmd, app)
	addAuthCommands(rootCmd, app)
	addWheelCommands(rootCmd, app)
	addTradingCommands(rootCmd, app)

	return rootCmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("wheel-trader v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the wheel configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir := configDir(app.Config)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"path":        dir,
					"config":      config.ConfigPath(dir),
					"credentials": config.CredentialsPath(dir),
				})
			}
			output.Println(dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				return err
			}
			warnings := app.Config.Warnings()
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"valid": true, "warnings": warnings})
			}
			output.Success("✓ Configuration is valid")
			for _, w := range warnings {
				output.Warning("⚠ %s", w)
			}
			return nil
		},
	})

	return cmd
}

func configDir(cfg *config.Config) string {
	if cfg.Dir != "" {
		return cfg.Dir
	}
	return config.DefaultConfigDir()
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Broker")
	output.Printf("  Environment:     %s\n", cfg.Environment())
	output.Printf("  Base URL:        %s\n", cfg.BaseURL())
	output.Printf("  Account:         %s\n", orDash(security.MaskCredential(cfg.Credentials.Tastytrade.AccountNumber)))
	output.Printf("  Requests/sec:    %.1f\n", cfg.Broker.RequestsPerSecond)
	output.Println()

	w := cfg.Wheel
	output.Bold("Wheel")
	output.Printf("  Budget:          %s\n", FormatUSD(w.Budget))
	output.Printf("  DTE window:      %d-%d\n", w.MinDTE, w.MaxDTE)
	output.Printf("  Delta band:      %.2f-%.2f\n", w.TargetDeltaMin, w.TargetDeltaMax)
	output.Printf("  Min premium:     %s\n", FormatUSD(w.MinPremium))
	output.Printf("  Max contracts:   %d\n", w.MaxContracts)
	output.Printf("  Enrich top:      %d (%d workers)\n", w.EnrichTop, w.EnrichWorkers)
	output.Printf("  Scan dir:        %s\n", w.ScanDir)
	output.Println()

	s := cfg.Screener
	output.Bold("Screener")
	output.Printf("  Max RSI:         %.0f\n", s.MaxRSI)
	output.Printf("  Min ATH drop:    %s\n", FormatPercent(s.MinATHDrop))
	output.Printf("  Min price:       %s\n", FormatUSD(s.MinPrice))
	output.Printf("  Categories:      %s\n", strings.Join(s.Categories, ", "))
	output.Printf("  Excluded:        %s\n", orDash(strings.Join(s.ExcludeTickers, ", ")))
	output.Println()

	output.Bold("Security")
	output.Printf("  Read-only:       %v\n", cfg.Security.ReadOnlyMode)
	output.Printf("  Audit log:       %v\n", cfg.Security.AuditEnabled)
	output.Printf("  Strict symbols:  %v\n", cfg.Security.StrictValidation)
}
