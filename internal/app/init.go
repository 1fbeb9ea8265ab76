// Package app wires the organize pipeline from configuration. It is the
// shared setup used by both the CLI and the daemon.
package app

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fuunylmz/Re-aniname/internal/activity"
	"github.com/fuunylmz/Re-aniname/internal/catalog"
	"github.com/fuunylmz/Re-aniname/internal/classifier"
	"github.com/fuunylmz/Re-aniname/internal/config"
	"github.com/fuunylmz/Re-aniname/internal/database"
	"github.com/fuunylmz/Re-aniname/internal/logging"
	"github.com/fuunylmz/Re-aniname/internal/paths"
	"github.com/fuunylmz/Re-aniname/internal/pipeline"
	"github.com/fuunylmz/Re-aniname/internal/resolver"
)

// App holds the long-lived collaborators built from one configuration.
type App struct {
	Config   *config.Config
	Logger   *logging.Logger
	Resolver *resolver.Resolver
	Pipeline *pipeline.Pipeline
	// History and Activity are nil when [history] is disabled.
	History  *database.HistoryDB
	Activity *activity.Logger
}

// Options tweak Init for one invocation.
type Options struct {
	// HistoryPath overrides [history].path and the default location.
	HistoryPath string
	// ActivityDir overrides the default activity journal directory.
	ActivityDir string
	Progress    pipeline.ProgressFunc
}

// Init builds the classifier, catalog, resolver, recorders and pipeline.
// The caller owns the returned App and must Close it.
func Init(cfg *config.Config, logger *logging.Logger, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = logging.Nop()
	}

	cls := classifier.FromConfig(cfg.Classifier, logger)
	cat, err := catalog.FromConfig(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if cat == nil {
		logger.Info("app", "No catalog API key configured, skipping catalog lookups")
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Resolver: resolver.New(cls, cat, logger),
	}

	var popts []pipeline.Option
	if cfg.History.Enabled {
		if err := a.openHistory(opts); err != nil {
			_ = a.Close()
			return nil, err
		}
		popts = append(popts, pipeline.WithRecorder(a.History), pipeline.WithRecorder(a.Activity))
	}
	if opts.Progress != nil {
		popts = append(popts, pipeline.WithProgress(opts.Progress))
	}

	a.Pipeline = pipeline.New(a.Resolver, logger, popts...)
	return a, nil
}

func (a *App) openHistory(opts Options) error {
	dbPath := firstNonEmpty(opts.HistoryPath, a.Config.History.Path)
	if dbPath == "" {
		p, err := paths.HistoryPath()
		if err != nil {
			return fmt.Errorf("history path: %w", err)
		}
		dbPath = p
	}
	db, err := database.OpenPath(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	a.History = db

	dir := opts.ActivityDir
	if dir == "" {
		if opts.HistoryPath != "" {
			dir = filepath.Join(filepath.Dir(opts.HistoryPath), "activity")
		} else {
			p, err := paths.ActivityDir()
			if err != nil {
				return fmt.Errorf("activity dir: %w", err)
			}
			dir = p
		}
	}
	journal, err := activity.NewLogger(dir)
	if err != nil {
		return fmt.Errorf("failed to open activity journal: %w", err)
	}
	a.Activity = journal
	return nil
}

// Close releases the history database and activity journal.
func (a *App) Close() error {
	var errs []error
	if a.Activity != nil {
		errs = append(errs, a.Activity.Close())
	}
	if a.History != nil {
		errs = append(errs, a.History.Close())
	}
	return errors.Join(errs...)
}

// BatchOptions maps the configuration onto pipeline options; see
// pipeline.OptionsFromConfig.
func (a *App) BatchOptions() (pipeline.Options, error) {
	opts, _, err := pipeline.OptionsFromConfig(a.Config)
	return opts, err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
