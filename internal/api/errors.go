package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/fuunylmz/Re-aniname/internal/database"
	"github.com/fuunylmz/Re-aniname/internal/naming"
	"github.com/fuunylmz/Re-aniname/internal/pipeline"
	"github.com/fuunylmz/Re-aniname/internal/placement"
	"github.com/fuunylmz/Re-aniname/internal/resolver"
	"github.com/fuunylmz/Re-aniname/internal/scanner"
)

var (
	errSessionNotFound = errors.New("batch session not found or expired")
	errHistoryDisabled = errors.New("history is disabled")
)

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// statusFor maps domain errors onto HTTP status codes and stable codes.
func statusFor(err error) (int, string) {
	var (
		verr   *ValidationError
		cfgErr *pipeline.ConfigError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "validation_failed"
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest, "invalid_configuration"
	case errors.Is(err, errSessionNotFound), errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound, "path_not_found"
	case scanner.IsFilesystemError(err):
		return http.StatusInternalServerError, "filesystem_error"
	case resolver.IsClassificationError(err):
		return http.StatusBadGateway, "classification_failed"
	case naming.IsUnknownMediaType(err):
		return http.StatusUnprocessableEntity, "unknown_media_type"
	case placement.IsCrossDeviceLink(err):
		return http.StatusConflict, "cross_device_link"
	case placement.IsPlacementError(err):
		return http.StatusInternalServerError, "placement_failed"
	case errors.Is(err, errHistoryDisabled):
		return http.StatusServiceUnavailable, "history_disabled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	body := errorBody{Code: code, Message: err.Error()}
	var verr *ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}
	writeJSON(w, status, body)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: message})
}
