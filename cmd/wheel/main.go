// Command wheel runs the wheel strategy pipeline against Tastytrade.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"wheel-trader/internal/cli"
	"wheel-trader/internal/config"
	"wheel-trader/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	cfg, err := config.Load(configDirFromArgs(os.Args[1:]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger := logging.NewLoggerWithConfig(logConfig(cfg))
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	app := cli.NewApp(cfg, logger)
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmdWithApp(app).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// configDirFromArgs reads --config before cobra parses the command line,
// since the configuration is needed to build the commands' dependencies.
func configDirFromArgs(args []string) string {
	fs := pflag.NewFlagSet("wheel", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(nopWriter{})
	dir := fs.String("config", "", "")
	fs.BoolP("help", "h", false, "")
	_ = fs.Parse(args)
	if *dir == "" {
		return config.DefaultConfigDir()
	}
	return *dir
}

func logConfig(cfg *config.Config) logging.LogConfig {
	lc := logging.DefaultLogConfig()
	lc.Level = cfg.Logging.Level
	lc.File = cfg.Logging.File
	if cfg.Logging.FilePath != "" {
		lc.FilePath = cfg.Logging.FilePath
	} else if cfg.Dir != "" {
		lc.FilePath = filepath.Join(cfg.Dir, "logs", "wheel.log")
	}
	return lc
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
