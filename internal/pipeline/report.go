package pipeline

import (
	"time"

	"github.com/fuunylmz/Re-aniname/internal/media"
	"github.com/fuunylmz/Re-aniname/internal/placement"
	"github.com/fuunylmz/Re-aniname/internal/resolver"
)

// ReasonCancelled is the error text of files a cancelled batch never started.
const ReasonCancelled = "batch cancelled"

// FileReport is the outcome for one file of a batch.
type FileReport struct {
	File     media.ScannedFile `json:"file"`
	Result   *placement.Result `json:"result,omitempty"`
	Duration time.Duration     `json:"duration_ns"`
}

// Destination returns the placed path, or "" when the file was not placed.
func (fr FileReport) Destination() string {
	if fr.Result == nil {
		return ""
	}
	return fr.Result.Destination
}

// Summary counts file outcomes.
type Summary struct {
	Total          int `json:"total"`
	Succeeded      int `json:"succeeded"`
	Failed         int `json:"failed"`
	Skipped        int `json:"skipped"`
	AlreadyPresent int `json:"already_present"`
}

// Report is the result of one batch run.
type Report struct {
	ID         string         `json:"id"`
	Root       string         `json:"root,omitempty"`
	OutputDir  string         `json:"output_dir"`
	Mode       placement.Mode `json:"mode"`
	DryRun     bool           `json:"dry_run,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Cancelled  bool           `json:"cancelled,omitempty"`
	Files      []FileReport   `json:"files"`
	Cache      resolver.Stats `json:"cache"`
	Summary    Summary        `json:"summary"`
}

// Duration is the wall time of the batch.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Report) finalize() {
	s := Summary{Total: len(r.Files)}
	for _, fr := range r.Files {
		switch fr.File.Status {
		case media.StatusSuccess:
			s.Succeeded++
			if fr.Result != nil && fr.Result.AlreadyPresent {
				s.AlreadyPresent++
			}
		case media.StatusFailed:
			s.Failed++
		case media.StatusSkipped:
			s.Skipped++
		}
	}
	r.Summary = s
}
