package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fuunylmz/Re-aniname/internal/logging"
	"github.com/fuunylmz/Re-aniname/internal/scanner"
)

// Server serves the API together with daemon health and metrics.
type Server struct {
	httpServer *http.Server
	handler    *MediaHandler
	scanner    *scanner.PeriodicScanner
	startTime  time.Time
	mu         sync.RWMutex
	healthy    bool
	logger     *logging.Logger
}

type HealthResponse struct {
	Status        string          `json:"status"`
	Uptime        string          `json:"uptime"`
	Timestamp     time.Time       `json:"timestamp"`
	Pending       int             `json:"pending"`
	ScannerStatus *scanner.Status `json:"scanner,omitempty"`
}

type MetricsResponse struct {
	MoviesProcessed  int64   `json:"movies_processed"`
	SeriesProcessed  int64   `json:"series_processed"`
	AnimeProcessed   int64   `json:"anime_processed"`
	TotalProcessed   int64   `json:"total_processed"`
	AlreadyPresent   int64   `json:"already_present"`
	BytesTransferred int64   `json:"bytes_transferred"`
	BytesTransferMB  float64 `json:"bytes_transferred_mb"`
	Errors           int64   `json:"errors"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	LastProcessed    string  `json:"last_processed,omitempty"`
}

// NewServer mounts api under / and adds /healthz, /ready and /metrics.
func NewServer(handler *MediaHandler, periodic *scanner.PeriodicScanner, api http.Handler, addr string, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Server{
		handler:   handler,
		scanner:   periodic,
		startTime: time.Now(),
		healthy:   true,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/metrics", s.handleMetrics)
	if api != nil {
		r.Mount("/", api)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logger.Info("server", "HTTP server starting", logging.F("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) SetHealthy(healthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = healthy
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	healthy := s.healthy
	s.mu.RUnlock()

	scannerHealthy := true
	var scannerStatus *scanner.Status
	if s.scanner != nil {
		status := s.scanner.Status()
		scannerHealthy = status.Healthy
		scannerStatus = &status
	}

	response := HealthResponse{
		Uptime:        time.Since(s.startTime).Round(time.Second).String(),
		Timestamp:     time.Now(),
		ScannerStatus: scannerStatus,
	}
	if s.handler != nil {
		response.Pending = s.handler.Pending()
	}

	code := http.StatusOK
	switch {
	case healthy && scannerHealthy:
		response.Status = "healthy"
	case healthy:
		// degraded but still serving
		response.Status = "degraded"
	default:
		response.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, response)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	healthy := s.healthy
	s.mu.RUnlock()

	if healthy {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var stats StatsSnapshot
	if s.handler != nil {
		stats = s.handler.Stats()
	}

	response := MetricsResponse{
		MoviesProcessed:  stats.MoviesProcessed,
		SeriesProcessed:  stats.SeriesProcessed,
		AnimeProcessed:   stats.AnimeProcessed,
		TotalProcessed:   stats.Total(),
		AlreadyPresent:   stats.AlreadyPresent,
		BytesTransferred: stats.BytesTransferred,
		BytesTransferMB:  float64(stats.BytesTransferred) / (1024 * 1024),
		Errors:           stats.Errors,
		UptimeSeconds:    time.Since(s.startTime).Seconds(),
	}
	if !stats.LastProcessed.IsZero() {
		response.LastProcessed = stats.LastProcessed.Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
