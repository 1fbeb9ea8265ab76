package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fuunylmz/Re-aniname/internal/classifier"
	"github.com/fuunylmz/Re-aniname/internal/media"
	"github.com/fuunylmz/Re-aniname/internal/pipeline"
	"github.com/fuunylmz/Re-aniname/internal/placement"
	"github.com/fuunylmz/Re-aniname/internal/resolver"
	"github.com/fuunylmz/Re-aniname/internal/scanner"
)

const maxBodyBytes = 1 << 20

type scanRequest struct {
	Path      string `json:"path" validate:"required"`
	Recursive *bool  `json:"recursive"`
	MinSizeMB *int   `json:"min_size_mb" validate:"omitempty,gte=0"`
}

type analyzeRequest struct {
	Filename     string   `json:"filename" validate:"required"`
	ParentFolder string   `json:"parent_folder"`
	Siblings     []string `json:"siblings" validate:"max=500"`
	BatchID      string   `json:"batch_id"`
}

type processRequest struct {
	Path      string           `json:"path" validate:"required"`
	MediaInfo *media.MediaInfo `json:"media_info" validate:"required"`
	OutputDir string           `json:"output_dir"`
	Mode      string           `json:"mode" validate:"omitempty,oneof=move copy link symlink"`
	Overwrite *bool            `json:"overwrite"`
}

type organizeRequest struct {
	Path      string `json:"path" validate:"required"`
	Recursive *bool  `json:"recursive"`
	MinSizeMB *int   `json:"min_size_mb" validate:"omitempty,gte=0"`
	DryRun    bool   `json:"dry_run"`
	OutputDir string `json:"output_dir"`
	Mode      string `json:"mode" validate:"omitempty,oneof=move copy link symlink"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	if err := s.validate.Validate(v); err != nil {
		writeError(w, err)
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	classifierKind := "heuristic"
	if s.cfg.Classifier.APIKey != "" {
		classifierKind = "openai"
	}
	body := map[string]any{
		"status":     "ok",
		"version":    s.version,
		"classifier": classifierKind,
		"catalog":    s.pipeline != nil && s.pipeline.Resolver().HasCatalog(),
		"sessions":   s.sessions.Len(),
		"history":    s.history != nil,
	}
	if s.scannerStatus != nil {
		st := s.scannerStatus()
		body["scanner"] = st
		if !st.Healthy {
			body["status"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if !s.decode(w, r, &req) {
		return
	}
	opts := scanner.Options{Recursive: true, MinSizeBytes: scanner.DefaultMinSize}
	if req.Recursive != nil {
		opts.Recursive = *req.Recursive
	}
	if req.MinSizeMB != nil {
		opts.MinSizeBytes = int64(*req.MinSizeMB) << 20
	}

	files, err := s.scanner.ScanPath(r.Context(), req.Path, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if files == nil {
		files = []media.ScannedFile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files, "count": len(files)})
}

func (s *Server) handleOpenBatch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"id": s.sessions.Open()})
}

func (s *Server) handleCloseBatch(w http.ResponseWriter, r *http.Request) {
	stats, ok := s.sessions.Close(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, errSessionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"closed": true, "cache": stats})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !s.decode(w, r, &req) {
		return
	}

	var cache *resolver.Cache
	if req.BatchID != "" {
		c, ok := s.sessions.Get(req.BatchID)
		if !ok {
			writeError(w, errSessionNotFound)
			return
		}
		cache = c
	}

	hints := classifier.Hints{ParentFolder: req.ParentFolder, Siblings: req.Siblings}
	info, err := s.pipeline.Resolver().ResolveName(r.Context(), req.Filename, hints, cache)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"media_info": info, "batch_id": req.BatchID})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.MediaInfo.Validate(); err != nil {
		writeError(w, &ValidationError{Fields: map[string]string{"media_info": err.Error()}})
		return
	}

	st, err := os.Stat(req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	file := media.NewScannedFile(req.Path, st.Size())
	file.Attach(*req.MediaInfo)

	opts, _, err := pipeline.OptionsFromConfig(s.cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Mode != "" {
		opts.Placement.Mode = placement.Mode(req.Mode)
	}
	if req.Overwrite != nil {
		opts.Placement.Overwrite = *req.Overwrite
	}
	outputDir := firstNonEmpty(req.OutputDir, opts.OutputDir)
	if outputDir == "" {
		writeError(w, &pipeline.ConfigError{Field: "output_dir", Reason: "must be set"})
		return
	}

	engine, err := placement.New(opts.Placement, s.logger)
	if err != nil {
		writeError(w, &pipeline.ConfigError{Field: "mode", Reason: err.Error()})
		return
	}
	// a started placement finishes even if the client goes away
	res, err := engine.Place(context.WithoutCancel(r.Context()), file, outputDir)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleOrganize(w http.ResponseWriter, r *http.Request) {
	var req organizeRequest
	if !s.decode(w, r, &req) {
		return
	}
	opts, scan, err := pipeline.OptionsFromConfig(s.cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Recursive != nil {
		scan.Recursive = *req.Recursive
	}
	if req.MinSizeMB != nil {
		scan.MinSizeBytes = int64(*req.MinSizeMB) << 20
	}
	if req.Mode != "" {
		opts.Placement.Mode = placement.Mode(req.Mode)
	}
	opts.Placement.DryRun = req.DryRun
	opts.OutputDir = firstNonEmpty(req.OutputDir, opts.OutputDir)

	report, err := s.pipeline.Organize(r.Context(), req.Path, scan, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, errHistoryDisabled)
		return
	}
	batches, err := s.history.ListBatches(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": batches})
}

func (s *Server) handleHistoryBatch(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, errHistoryDisabled)
		return
	}
	batch, files, err := s.history.GetBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batch": batch, "files": files})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.activity == nil {
		writeJSON(w, http.StatusOK, map[string]any{"entries": []any{}})
		return
	}
	entries, err := s.activity.Recent(queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
