// Package daemon runs the long-lived organizer: a watcher over the inbox
// directories, a periodic rescan and the HTTP API.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fuunylmz/Re-aniname/internal/logging"
	"github.com/fuunylmz/Re-aniname/internal/scanner"
	"github.com/fuunylmz/Re-aniname/internal/watcher"
)

// ShutdownTimeout bounds how long Run waits for the HTTP server to drain.
const ShutdownTimeout = 10 * time.Second

type Config struct {
	WatchPaths   []string
	Recursive    bool
	ScanInterval time.Duration
	Addr         string

	Handler *MediaHandler
	// Rescan organizes a whole inbox directory on each periodic tick.
	Rescan scanner.BatchFunc
	// API is mounted under the daemon's router when set.
	API    http.Handler
	Logger *logging.Logger
}

// Daemon manages the background service
type Daemon struct {
	cfg      Config
	watcher  *watcher.Watcher
	periodic *scanner.PeriodicScanner
	server   *Server
	logger   *logging.Logger
}

// New wires the watcher, periodic scanner and server. Nothing runs
// until Run is called.
func New(cfg Config) (*Daemon, error) {
	if cfg.Handler == nil {
		return nil, errors.New("daemon requires a media handler")
	}
	if len(cfg.WatchPaths) == 0 && cfg.Addr == "" {
		return nil, errors.New("daemon has nothing to do: no watch paths and no server address")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	d := &Daemon{cfg: cfg, logger: logger}

	if len(cfg.WatchPaths) > 0 {
		w, err := watcher.NewWatcher(cfg.Handler,
			watcher.WithRecursive(cfg.Recursive),
			watcher.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := w.Watch(cfg.WatchPaths); err != nil {
			_ = w.Close()
			return nil, err
		}
		d.watcher = w

		if cfg.ScanInterval > 0 && cfg.Rescan != nil {
			d.periodic = scanner.NewPeriodicScanner(scanner.PeriodicConfig{
				Interval: cfg.ScanInterval,
				Paths:    cfg.WatchPaths,
				Run:      cfg.Rescan,
				Logger:   logger,
			})
		}
	}

	if cfg.Addr != "" {
		d.server = NewServer(cfg.Handler, d.periodic, cfg.API, cfg.Addr, logger)
	}
	return d, nil
}

// ScannerStatus reports the periodic scanner state; healthy when there
// is no periodic scanner.
func (d *Daemon) ScannerStatus() scanner.Status {
	if d.periodic == nil {
		return scanner.Status{Healthy: true}
	}
	return d.periodic.Status()
}

// Run blocks until ctx is cancelled or a component fails, then stops
// everything. Pending debounced files are dropped; batches already
// running finish.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("daemon", "Starting daemon",
		logging.F("watch_paths", len(d.cfg.WatchPaths)),
		logging.F("addr", d.cfg.Addr))

	g, gctx := errgroup.WithContext(ctx)

	if d.watcher != nil {
		g.Go(func() error {
			if err := d.watcher.Start(gctx); err != nil {
				return fmt.Errorf("watcher error: %w", err)
			}
			return nil
		})
	}
	if d.periodic != nil {
		g.Go(func() error {
			return d.periodic.Start(gctx)
		})
	}
	if d.server != nil {
		g.Go(d.server.Start)
	}

	g.Go(func() error {
		<-gctx.Done()
		return d.stop()
	})

	err := g.Wait()
	d.logger.Info("daemon", "Daemon stopped")
	return err
}

func (d *Daemon) stop() error {
	d.logger.Info("daemon", "Stopping daemon")

	var errs []error
	if d.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("error shutting down server: %w", err))
		}
	}
	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing watcher: %w", err))
		}
	}
	d.cfg.Handler.Shutdown()
	return errors.Join(errs...)
}
