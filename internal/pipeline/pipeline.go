// Package pipeline runs organize batches: every scanned file is resolved,
// named and placed by a bounded pool of workers sharing one batch cache.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fuunylmz/Re-aniname/internal/logging"
	"github.com/fuunylmz/Re-aniname/internal/media"
	"github.com/fuunylmz/Re-aniname/internal/placement"
	"github.com/fuunylmz/Re-aniname/internal/resolver"
	"github.com/fuunylmz/Re-aniname/internal/scanner"
)

const DefaultWorkers = 4

// ConfigError rejects a batch before any file is touched.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid batch configuration: %s: %s", e.Field, e.Reason)
}

// IsConfigError reports whether err is a ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// Options configure one batch.
type Options struct {
	OutputDir string
	Placement placement.Options
	Workers   int
	Timeout   time.Duration
}

func (o Options) validate() error {
	if strings.TrimSpace(o.OutputDir) == "" {
		return &ConfigError{Field: "output_dir", Reason: "must be set"}
	}
	if o.Workers <= 0 {
		return &ConfigError{Field: "workers", Reason: fmt.Sprintf("must be positive, got %d", o.Workers)}
	}
	if o.Timeout < 0 {
		return &ConfigError{Field: "batch_timeout", Reason: "must not be negative"}
	}
	return nil
}

// Recorder persists finished batch reports (history, activity log).
type Recorder interface {
	Record(ctx context.Context, report *Report) error
}

// ProgressFunc is called after each file finishes.
type ProgressFunc func(done, total int, fr FileReport)

// Pipeline wires the resolver and placement engine into batches.
type Pipeline struct {
	resolver  *resolver.Resolver
	scanner   *scanner.Scanner
	logger    *logging.Logger
	recorders []Recorder
	progress  ProgressFunc
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder adds a recorder that receives every finished report.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorders = append(p.recorders, r)
		}
	}
}

// WithProgress installs a per-file progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Pipeline) { p.progress = fn }
}

func New(res *resolver.Resolver, logger *logging.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = logging.Nop()
	}
	p := &Pipeline{
		resolver: res,
		scanner:  scanner.New(logger),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resolver exposes the resolver for single-file analysis.
func (p *Pipeline) Resolver() *resolver.Resolver {
	return p.resolver
}

// Organize scans path (a directory or a single file) and runs a batch
// over what it finds.
func (p *Pipeline) Organize(ctx context.Context, path string, scan scanner.Options, opts Options) (*Report, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	files, err := p.scanner.ScanPath(ctx, path, scan)
	if err != nil {
		return nil, err
	}
	report, err := p.Run(ctx, files, opts)
	if report != nil {
		report.Root = path
	}
	return report, err
}

type job struct {
	index int
	file  media.ScannedFile
}

type outcome struct {
	index  int
	report FileReport
}

// Run processes files with a bounded worker pool. Per-file failures end
// up in the report; only a ConfigError is returned as an error.
//
// When ctx is done, files not yet started are marked skipped. Files
// already started run to completion on a context that ignores the
// cancellation, so no placement is interrupted halfway.
func (p *Pipeline) Run(ctx context.Context, files []media.ScannedFile, opts Options) (*Report, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	engine, err := placement.New(opts.Placement, p.logger)
	if err != nil {
		return nil, &ConfigError{Field: "mode", Reason: err.Error()}
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	report := &Report{
		ID:        uuid.NewString(),
		OutputDir: opts.OutputDir,
		Mode:      engine.Options().Mode,
		DryRun:    opts.Placement.DryRun,
		StartedAt: time.Now(),
		Files:     make([]FileReport, len(files)),
	}
	cache := resolver.NewCache()

	workers := min(opts.Workers, max(1, len(files)))
	p.logger.Info("pipeline", "Starting batch",
		logging.F("batch_id", report.ID),
		logging.F("files", len(files)),
		logging.F("workers", workers),
		logging.F("mode", string(report.Mode)),
		logging.F("dry_run", report.DryRun))

	jobs := make(chan job)
	results := make(chan outcome, len(files))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					results <- outcome{index: j.index, report: skipped(j.file)}
					continue
				}
				results <- outcome{index: j.index, report: p.process(context.WithoutCancel(ctx), j.file, cache, engine, opts.OutputDir)}
			}
		}()
	}

	go func() {
		for i, f := range files {
			if ctx.Err() != nil {
				results <- outcome{index: i, report: skipped(f)}
				continue
			}
			jobs <- job{index: i, file: f}
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	done := 0
	for o := range results {
		done++
		report.Files[o.index] = o.report
		if p.progress != nil {
			p.progress(done, len(files), o.report)
		}
	}

	report.FinishedAt = time.Now()
	report.Cache = cache.Stats()
	report.finalize()
	report.Cancelled = ctx.Err() != nil && report.Summary.Skipped > 0

	p.logger.Info("pipeline", "Batch finished",
		logging.F("batch_id", report.ID),
		logging.F("succeeded", report.Summary.Succeeded),
		logging.F("failed", report.Summary.Failed),
		logging.F("skipped", report.Summary.Skipped),
		logging.F("cache_hits", report.Cache.Hits),
		logging.F("duration", report.Duration().String()))

	p.record(ctx, report)
	return report, nil
}

func (p *Pipeline) record(ctx context.Context, report *Report) {
	if report.DryRun {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, r := range p.recorders {
		if err := r.Record(ctx, report); err != nil {
			p.logger.Error("pipeline", "Failed to record batch", err, logging.F("batch_id", report.ID))
		}
	}
}

func skipped(f media.ScannedFile) FileReport {
	if err := f.Transition(media.StatusSkipped); err == nil {
		f.Error = ReasonCancelled
	}
	return FileReport{File: f}
}

func (p *Pipeline) process(ctx context.Context, f media.ScannedFile, cache *resolver.Cache, engine *placement.Engine, outputDir string) FileReport {
	start := time.Now()
	res, err := p.place(ctx, &f, cache, engine, outputDir)
	if err != nil {
		p.fail(&f, err)
	} else {
		_ = f.Transition(media.StatusSuccess)
	}
	return FileReport{File: f, Result: res, Duration: time.Since(start)}
}

func (p *Pipeline) place(ctx context.Context, f *media.ScannedFile, cache *resolver.Cache, engine *placement.Engine, outputDir string) (*placement.Result, error) {
	if err := f.Transition(media.StatusProcessing); err != nil {
		return nil, err
	}
	info, err := p.resolver.Resolve(ctx, *f, cache)
	if err != nil {
		return nil, err
	}
	f.Attach(info)
	if err := info.Validate(); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	return engine.Place(ctx, *f, outputDir)
}

func (p *Pipeline) fail(f *media.ScannedFile, err error) {
	p.logger.Warn("pipeline", "File failed",
		logging.F("file", f.Path),
		logging.F("error", err.Error()))
	f.Fail(err)
}

// SortedByStatus returns the file reports ordered failed, skipped, then
// succeeded, each group by path.
func (r *Report) SortedByStatus() []FileReport {
	rank := map[media.Status]int{media.StatusFailed: 0, media.StatusSkipped: 1, media.StatusSuccess: 2}
	out := append([]FileReport(nil), r.Files...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank[out[i].File.Status], rank[out[j].File.Status]
		if ri != rj {
			return ri < rj
		}
		return out[i].File.Path < out[j].File.Path
	})
	return out
}
