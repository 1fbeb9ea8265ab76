package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/fuunylmz/Re-aniname/internal/logging"
	"github.com/fuunylmz/Re-aniname/internal/pipeline"
)

type qbittorrentRequest struct {
	Path string `json:"path" validate:"required"`
}

type hookResult struct {
	File        string `json:"file"`
	Status      string `json:"status"`
	Destination string `json:"destination,omitempty"`
	Error       string `json:"error,omitempty"`
}

// handleQBittorrent organizes a finished download. qBittorrent calls it
// from "Run external program on torrent finished" with the content path,
// which may be a single file or a directory.
func (s *Server) handleQBittorrent(w http.ResponseWriter, r *http.Request) {
	if !s.validateWebhookSecret(r) {
		writeJSON(w, http.StatusUnauthorized, errorBody{Code: "unauthorized", Message: "invalid webhook secret"})
		return
	}
	var req qbittorrentRequest
	if !s.decode(w, r, &req) {
		return
	}

	opts, scan, err := pipeline.OptionsFromConfig(s.cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("api", "qBittorrent hook received", logging.F("path", req.Path))

	report, err := s.pipeline.Organize(r.Context(), req.Path, scan, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	results := make([]hookResult, 0, len(report.Files))
	for _, fr := range report.Files {
		results = append(results, hookResult{
			File:        fr.File.Name,
			Status:      string(fr.File.Status),
			Destination: fr.Destination(),
			Error:       fr.File.Error,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  report.Summary.Failed == 0 && report.Summary.Skipped == 0,
		"batch_id": report.ID,
		"results":  results,
	})
}

func (s *Server) validateWebhookSecret(r *http.Request) bool {
	expected := strings.TrimSpace(s.cfg.Server.WebhookSecret)
	if expected == "" {
		return true
	}
	provided := strings.TrimSpace(r.Header.Get(WebhookSecretHeader))
	if provided == "" {
		provided = strings.TrimSpace(r.URL.Query().Get("secret"))
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
