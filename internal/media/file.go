package media

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a ScannedFile within one batch.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusSkipped
}

// ScannedFile is one physical file under consideration.
type ScannedFile struct {
	ID     string     `json:"id"`
	Path   string     `json:"originalPath"`
	Name   string     `json:"originalName"`
	Ext    string     `json:"extension"`
	Size   int64      `json:"size"`
	Status Status     `json:"status"`
	Info   *MediaInfo `json:"mediaInfo,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// NewScannedFile builds a pending record with a fresh identifier.
func NewScannedFile(path string, size int64) ScannedFile {
	name := filepath.Base(path)
	return ScannedFile{
		ID:     uuid.NewString(),
		Path:   path,
		Name:   name,
		Ext:    strings.ToLower(filepath.Ext(name)),
		Size:   size,
		Status: StatusPending,
	}
}

// BaseName is the filename without its extension.
func (f ScannedFile) BaseName() string {
	return strings.TrimSuffix(f.Name, filepath.Ext(f.Name))
}

var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusSkipped},
	StatusProcessing: {StatusSuccess, StatusFailed},
}

// Transition moves the file to the next status. Backwards or repeated
// transitions are rejected.
func (f *ScannedFile) Transition(to Status) error {
	for _, next := range allowedTransitions[f.Status] {
		if next == to {
			f.Status = to
			return nil
		}
	}
	return fmt.Errorf("invalid status transition %s -> %s for %s", f.Status, to, f.Name)
}

// Fail marks the file failed with the given reason.
func (f *ScannedFile) Fail(err error) {
	if f.Status == StatusPending {
		f.Status = StatusProcessing
	}
	if transErr := f.Transition(StatusFailed); transErr != nil {
		return
	}
	if err != nil {
		f.Error = err.Error()
	}
}

// Attach sets the resolved metadata.
func (f *ScannedFile) Attach(info MediaInfo) {
	f.Info = &info
}
