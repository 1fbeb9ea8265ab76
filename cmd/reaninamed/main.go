package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/fuunylmz/Re-aniname/internal/api"
	"github.com/fuunylmz/Re-aniname/internal/app"
	"github.com/fuunylmz/Re-aniname/internal/config"
	"github.com/fuunylmz/Re-aniname/internal/daemon"
	"github.com/fuunylmz/Re-aniname/internal/logging"
	"github.com/fuunylmz/Re-aniname/internal/paths"
	"github.com/fuunylmz/Re-aniname/internal/pipeline"
	"github.com/fuunylmz/Re-aniname/internal/scanner"
)

var (
	version  = "dev"
	cfgFile  string
	dryRun   bool
	addr     string
	lockFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "reaninamed",
		Short: "reaniname daemon service",
		Long: `reaninamed watches inbox directories ([watch].paths) and organizes new
video files once they stop changing. It also rescans the inboxes every
[watch].scan_interval and serves the HTTP API on [server].addr.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDaemon,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "compute destinations without touching files")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "HTTP address (default: [server].addr, \"off\" disables)")
	rootCmd.PersistentFlags().StringVar(&lockFile, "lock", "", "single-instance lock file (default: ~/.config/reaniname/reaninamed.lock)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reaninamed %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

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
		return nil, fmt.Errorf("unable to load config: %w", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if cfg.Server.Addr == "off" {
		cfg.Server.Addr = ""
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// acquireLock takes the single-instance lock without blocking.
func acquireLock() (*flock.Flock, error) {
	path := lockFile
	if path == "" {
		p, err := paths.LockPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another reaninamed instance is already running (lock %s)", path)
	}
	return lock, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !config.ConfigExists() && cfgFile == "" {
		fmt.Fprintln(os.Stderr, "No config file found; run 'reaniname config init' to create one. Using defaults.")
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("unable to create logger: %w", err)
	}
	defer logger.Close()

	lock, err := acquireLock()
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("daemon", "Failed to release lock", logging.F("error", err.Error()))
		}
	}()

	a, err := app.Init(cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	batchOpts, scanOpts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	batchOpts.Placement.DryRun = dryRun

	handler := daemon.NewMediaHandler(daemon.MediaHandlerConfig{
		Pipeline:     a.Pipeline,
		Options:      batchOpts,
		MinSizeBytes: scanOpts.MinSizeBytes,
		DebounceTime: cfg.Watch.DebounceDuration(),
		Logger:       logger,
	})

	rescan := func(ctx context.Context, root string) error {
		report, err := a.Pipeline.Organize(ctx, root, scanOpts, batchOpts)
		if err != nil {
			return err
		}
		if report.Summary.Failed > 0 {
			return fmt.Errorf("%d of %d files failed", report.Summary.Failed, report.Summary.Total)
		}
		return nil
	}

	var d *daemon.Daemon
	apiServer := api.NewServer(api.Deps{
		Config:   cfg,
		Pipeline: a.Pipeline,
		History:  a.History,
		Activity: a.Activity,
		Logger:   logger,
		Version:  version,
		ScannerStatus: func() scanner.Status {
			return d.ScannerStatus()
		},
	})

	d, err = daemon.New(daemon.Config{
		WatchPaths:   cfg.Watch.Paths,
		Recursive:    cfg.Library.Recursive,
		ScanInterval: cfg.Watch.ScanEvery(),
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		Rescan:       rescan,
		API:          apiServer.Handler(),
		Logger:       logger,
	})
	if err != nil {
		handler.Shutdown()
		return err
	}

	logger.Info("daemon", "reaninamed started",
		logging.F("watch_dirs", len(cfg.Watch.Paths)),
		logging.F("output_dir", cfg.Library.OutputDir),
		logging.F("mode", string(batchOpts.Placement.Mode)),
		logging.F("addr", cfg.Server.Addr),
		logging.F("catalog", a.Resolver.HasCatalog()),
		logging.F("log_file", logger.FilePath()))
	if dryRun {
		logger.Warn("daemon", "DRY RUN MODE - no files will be placed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("service error: %w", err)
	}
	return nil
}
