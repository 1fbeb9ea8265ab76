package scanner

import (
	"context"
	"time"

	"github.com/fuunylmz/Re-aniname/internal/logging"
)

// BatchFunc organizes everything currently under root.
type BatchFunc func(ctx context.Context, root string) error

// PeriodicConfig holds configuration for the periodic scanner.
type PeriodicConfig struct {
	Interval time.Duration
	Paths    []string
	Run      BatchFunc
	Logger   *logging.Logger
}

// Status holds the current state for health reporting
type Status struct {
	Healthy      bool      `json:"healthy"`
	LastScan     time.Time `json:"last_scan,omitempty"`
	LastSuccess  time.Time `json:"last_success,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	SkippedTicks int64     `json:"skipped_ticks"`
	Scanning     bool      `json:"scanning"`
	Runs         int64     `json:"runs"`
}
