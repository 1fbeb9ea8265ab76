package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fuunylmz/Re-aniname/internal/logging"
	"github.com/fuunylmz/Re-aniname/internal/media"
	"github.com/fuunylmz/Re-aniname/internal/pipeline"
	"github.com/fuunylmz/Re-aniname/internal/scanner"
	"github.com/fuunylmz/Re-aniname/internal/watcher"
)

// DefaultDebounce is how long a path must stay quiet before it is organized.
const DefaultDebounce = 10 * time.Second

// MediaHandler turns watcher events into single-file organize batches.
// Repeated events for a path restart its debounce timer, so a file still
// being written is only picked up once writes stop.
type MediaHandler struct {
	pipeline     *pipeline.Pipeline
	opts         pipeline.Options
	minSize      int64
	debounceTime time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]*pendingFile
	running sync.WaitGroup

	stats  *Stats
	logger *logging.Logger
}

type Stats struct {
	mu               sync.RWMutex
	MoviesProcessed  int64
	SeriesProcessed  int64
	AnimeProcessed   int64
	AlreadyPresent   int64
	BytesTransferred int64
	Errors           int64
	LastProcessed    time.Time
	StartTime        time.Time
}

func NewStats() *Stats {
	return &Stats{
		StartTime: time.Now(),
	}
}

// RecordFile counts one finished file report.
func (s *Stats) RecordFile(fr pipeline.FileReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch fr.File.Status {
	case media.StatusSuccess:
	case media.StatusFailed:
		s.Errors++
		return
	default:
		return
	}

	s.LastProcessed = time.Now()
	if fr.Result != nil {
		if fr.Result.AlreadyPresent {
			s.AlreadyPresent++
			return
		}
		s.BytesTransferred += fr.Result.Bytes
	}
	if fr.File.Info == nil {
		return
	}
	switch fr.File.Info.Kind {
	case media.KindMovie:
		s.MoviesProcessed++
	case media.KindSeries:
		s.SeriesProcessed++
	case media.KindAnime:
		s.AnimeProcessed++
	}
}

func (s *Stats) RecordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors++
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatsSnapshot{
		MoviesProcessed:  s.MoviesProcessed,
		SeriesProcessed:  s.SeriesProcessed,
		AnimeProcessed:   s.AnimeProcessed,
		AlreadyPresent:   s.AlreadyPresent,
		BytesTransferred: s.BytesTransferred,
		Errors:           s.Errors,
		LastProcessed:    s.LastProcessed,
		Uptime:           time.Since(s.StartTime),
	}
}

type StatsSnapshot struct {
	MoviesProcessed  int64
	SeriesProcessed  int64
	AnimeProcessed   int64
	AlreadyPresent   int64
	BytesTransferred int64
	Errors           int64
	LastProcessed    time.Time
	Uptime           time.Duration
}

// Total is the number of files placed since start.
func (s StatsSnapshot) Total() int64 {
	return s.MoviesProcessed + s.SeriesProcessed + s.AnimeProcessed
}

type MediaHandlerConfig struct {
	Pipeline     *pipeline.Pipeline
	Options      pipeline.Options
	MinSizeBytes int64
	DebounceTime time.Duration
	Logger       *logging.Logger
}

func NewMediaHandler(cfg MediaHandlerConfig) *MediaHandler {
	if cfg.DebounceTime <= 0 {
		cfg.DebounceTime = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MediaHandler{
		pipeline:     cfg.Pipeline,
		opts:         cfg.Options,
		minSize:      cfg.MinSizeBytes,
		debounceTime: cfg.DebounceTime,
		ctx:          ctx,
		cancel:       cancel,
		pending:      make(map[string]*pendingFile),
		stats:        NewStats(),
		logger:       cfg.Logger,
	}
}

// pendingFile is one debounce timer; its identity tells a superseded
// timer from the current one.
type pendingFile struct {
	timer *time.Timer
}

func (h *MediaHandler) IsMediaFile(path string) bool {
	return scanner.IsVideo(path)
}

func (h *MediaHandler) HandleFileEvent(event watcher.FileEvent) error {
	if !h.IsMediaFile(event.Path) {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx.Err() != nil {
		return nil
	}

	if entry, exists := h.pending[event.Path]; exists {
		entry.timer.Stop()
		delete(h.pending, event.Path)
	}
	if event.Type == watcher.EventDelete {
		return nil
	}

	entry := &pendingFile{}
	entry.timer = time.AfterFunc(h.debounceTime, func() {
		h.processFile(event.Path, entry)
	})
	h.pending[event.Path] = entry

	return nil
}

// Pending is the number of paths waiting out their debounce.
func (h *MediaHandler) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

func (h *MediaHandler) Stats() StatsSnapshot {
	return h.stats.Snapshot()
}

// Shutdown drops pending paths and waits for batches already running.
func (h *MediaHandler) Shutdown() {
	h.mu.Lock()
	h.cancel()
	for path, entry := range h.pending {
		entry.timer.Stop()
		delete(h.pending, path)
	}
	h.mu.Unlock()

	h.running.Wait()
}

func (h *MediaHandler) processFile(path string, self *pendingFile) {
	h.mu.Lock()
	// a newer event replaced this timer after it fired; that timer owns the path
	if h.pending[path] != self {
		h.mu.Unlock()
		return
	}
	delete(h.pending, path)
	if h.ctx.Err() != nil {
		h.mu.Unlock()
		return
	}
	h.running.Add(1)
	h.mu.Unlock()
	defer h.running.Done()

	filename := filepath.Base(path)

	info, err := os.Stat(path)
	if err != nil {
		// moved away or deleted before the debounce fired
		h.logger.Debug("handler", "File vanished before processing", logging.F("path", path))
		return
	}
	if info.IsDir() {
		return
	}
	if info.Size() < h.minSize {
		h.logger.Debug("handler", "Skipping small file",
			logging.F("filename", filename),
			logging.F("size", info.Size()))
		return
	}

	h.logger.Info("handler", "Processing file", logging.F("filename", filename), logging.F("path", path))

	file := media.NewScannedFile(path, info.Size())
	report, err := h.pipeline.Run(h.ctx, []media.ScannedFile{file}, h.opts)
	if err != nil {
		h.stats.RecordError()
		h.logger.Error("handler", "Batch rejected", err, logging.F("filename", filename))
		return
	}

	for _, fr := range report.Files {
		h.stats.RecordFile(fr)
		if fr.File.Status == media.StatusFailed {
			h.logger.Warn("handler", "File failed",
				logging.F("filename", filename),
				logging.F("error", fr.File.Error))
			continue
		}
		if dst := fr.Destination(); dst != "" {
			h.logger.Info("handler", "File organized",
				logging.F("filename", filename),
				logging.F("destination", dst),
				logging.F("duration_ms", fr.Duration.Milliseconds()))
		}
	}
}
