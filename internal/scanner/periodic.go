package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fuunylmz/Re-aniname/internal/logging"
)

// PeriodicScanner re-runs organize batches over the inbox directories on
// a fixed interval, catching files the watcher missed.
type PeriodicScanner struct {
	interval time.Duration
	paths    []string
	run      BatchFunc
	logger   *logging.Logger

	mu           sync.Mutex
	scanning     bool
	lastScan     time.Time
	lastSuccess  time.Time
	lastError    error
	skippedTicks int64
	runs         int64
	healthy      bool
}

// NewPeriodicScanner creates a new scanner with the given config
func NewPeriodicScanner(cfg PeriodicConfig) *PeriodicScanner {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &PeriodicScanner{
		interval: cfg.Interval,
		paths:    cfg.Paths,
		run:      cfg.Run,
		logger:   logger,
		healthy:  true,
	}
}

// IsHealthy reports whether the last scan succeeded.
func (s *PeriodicScanner) IsHealthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healthy
}

// Status returns the current scanner status for health reporting
func (s *PeriodicScanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Healthy:      s.healthy,
		LastScan:     s.lastScan,
		LastSuccess:  s.lastSuccess,
		SkippedTicks: s.skippedTicks,
		Scanning:     s.scanning,
		Runs:         s.runs,
	}
	if s.lastError != nil {
		status.LastError = s.lastError.Error()
	}
	return status
}

// Start runs the loop until ctx is cancelled.
func (s *PeriodicScanner) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("periodic scanner interval must be positive, got %s", s.interval)
	}
	s.logger.Info("scanner", "Periodic scanner starting",
		logging.F("interval", s.interval.String()),
		logging.F("paths", len(s.paths)))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scanner", "Periodic scanner stopped")
			return nil
		case <-ticker.C:
			go s.tick(ctx)
		}
	}
}

func (s *PeriodicScanner) tick(ctx context.Context) {
	s.mu.Lock()
	if s.scanning {
		s.skippedTicks++
		skipped := s.skippedTicks
		s.mu.Unlock()
		s.logger.Warn("scanner", "Periodic scan skipped - previous scan still running",
			logging.F("skipped_ticks", skipped))
		return
	}
	s.scanning = true
	s.mu.Unlock()

	err := s.runAll(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanning = false
	s.lastScan = time.Now()
	s.runs++
	if err != nil {
		s.lastError = err
		s.healthy = false
		s.logger.Error("scanner", "Periodic scan failed", err)
		return
	}
	s.lastSuccess = s.lastScan
	s.lastError = nil
	s.healthy = true
}

func (s *PeriodicScanner) runAll(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan panic: %v", r)
		}
	}()

	start := time.Now()
	var errs []error
	for _, root := range s.paths {
		if ctx.Err() != nil {
			break
		}
		if runErr := s.run(ctx, root); runErr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", root, runErr))
		}
	}

	s.logger.Info("scanner", "Periodic scan complete",
		logging.F("duration_ms", time.Since(start).Milliseconds()),
		logging.F("paths", len(s.paths)),
		logging.F("errors", len(errs)))
	return errors.Join(errs...)
}
