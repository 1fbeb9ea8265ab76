package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fuunylmz/Re-aniname/internal/app"
	"github.com/fuunylmz/Re-aniname/internal/config"
	"github.com/fuunylmz/Re-aniname/internal/logging"
	"github.com/fuunylmz/Re-aniname/internal/ui"
)

var (
	version = "dev" // Set by build flags: -ldflags="-X main.version=1.0.0"
	cfgFile string
	preset  string
	verbose bool
	noColor bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "reaniname",
		Short: "Rename and organize anime, series and movie files",
		Long: `reaniname identifies video files from their release names, enriches them
from TMDB and places them into a media-server friendly library:

  Movies/Title (Year)/Title (Year) - [1080p].mkv
  TV Shows/Title (Year)/Season 01/S01E01.mkv
  Anime/Title (Year)/Season 01/S01E01.mkv`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				ui.DisableColors()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/reaniname/config.toml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "apply a named [[presets]] entry")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newOrganizeCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reaniname %s\n", version)
		},
	}
}

// loadConfig reads --config (or the default path), applies --preset and
// validates the result.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if preset != "" {
		if err := cfg.ApplyPreset(preset); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the file logger. CLI commands keep the console quiet
// unless --verbose is set, since their results go to stdout.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	logCfg := cfg.Logging
	if verbose {
		logCfg.Level = "debug"
		logCfg.Console = true
	} else {
		logCfg.Console = false
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create logger: %w", err)
	}
	return logger, nil
}

// setup loads config, logger and the organize pipeline for one command.
// override, when set, adjusts the loaded config from command flags.
func setup(opts app.Options, override func(*config.Config)) (*app.App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if override != nil {
		override(cfg)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.Init(cfg, logger, opts)
	if err != nil {
		logger.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if err := a.Close(); err != nil {
			logger.Warn("cli", "Failed to close resources", logging.F("error", err.Error()))
		}
		logger.Close()
	}
	return a, cleanup, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
