// Package api exposes the organize pipeline over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/fuunylmz/Re-aniname/internal/activity"
	"github.com/fuunylmz/Re-aniname/internal/config"
	"github.com/fuunylmz/Re-aniname/internal/database"
	"github.com/fuunylmz/Re-aniname/internal/logging"
	"github.com/fuunylmz/Re-aniname/internal/pipeline"
	"github.com/fuunylmz/Re-aniname/internal/scanner"
)

// WebhookSecretHeader carries the shared webhook secret.
const WebhookSecretHeader = "X-Reaniname-Webhook-Secret"

// Deps are the collaborators of a Server. History and Activity may be nil.
type Deps struct {
	Config        *config.Config
	Pipeline      *pipeline.Pipeline
	History       *database.HistoryDB
	Activity      *activity.Logger
	Logger        *logging.Logger
	Version       string
	ScannerStatus func() scanner.Status
}

// Server implements the HTTP API.
type Server struct {
	cfg           *config.Config
	pipeline      *pipeline.Pipeline
	scanner       *scanner.Scanner
	history       *database.HistoryDB
	activity      *activity.Logger
	logger        *logging.Logger
	sessions      *BatchSessions
	validate      *requestValidator
	version       string
	scannerStatus func() scanner.Status
}

func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	cfg := d.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Server{
		cfg:           cfg,
		pipeline:      d.Pipeline,
		scanner:       scanner.New(logger),
		history:       d.History,
		activity:      d.Activity,
		logger:        logger,
		sessions:      NewBatchSessions(SessionIdleTimeout),
		validate:      newRequestValidator(),
		version:       d.Version,
		scannerStatus: d.ScannerStatus,
	}
}

// Handler returns the HTTP handler with middleware and all API routes.
func (s *Server) Handler() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", WebhookSecretHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Mount("/api/v1", s.apiRouter())
	return r
}

func (s *Server) apiRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Post("/scan", s.handleScan)
	r.Post("/batches", s.handleOpenBatch)
	r.Delete("/batches/{id}", s.handleCloseBatch)
	r.Post("/analyze", s.handleAnalyze)
	r.Post("/process", s.handleProcess)
	r.Post("/organize", s.handleOrganize)
	r.Post("/hooks/qbittorrent", s.handleQBittorrent)
	r.Get("/history", s.handleHistory)
	r.Get("/history/{id}", s.handleHistoryBatch)
	r.Get("/activity", s.handleActivity)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("api", "Request",
			logging.F("method", r.Method),
			logging.F("path", r.URL.Path),
			logging.F("status", ww.Status()),
			logging.F("bytes", ww.BytesWritten()),
			logging.F("duration_ms", time.Since(start).Milliseconds()),
			logging.F("request_id", middleware.GetReqID(r.Context())))
	})
}
