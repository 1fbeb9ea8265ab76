package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fuunylmz/Re-aniname/internal/media"
	"github.com/fuunylmz/Re-aniname/internal/pipeline"
)

// ProgressBar shows batch progress. On a terminal it redraws one line;
// otherwise it prints one line per finished file.
type ProgressBar struct {
	mu     sync.Mutex
	w      io.Writer
	label  string
	width  int
	failed int
	redraw bool
}

// NewProgressBar creates a progress bar writing to w.
func NewProgressBar(w io.Writer, label string) *ProgressBar {
	return &ProgressBar{
		w:      w,
		label:  label,
		width:  30,
		redraw: IsTerminal(),
	}
}

// Func adapts the bar to the pipeline progress callback.
func (p *ProgressBar) Func() pipeline.ProgressFunc {
	return func(done, total int, fr pipeline.FileReport) {
		p.Update(done, total, fr)
	}
}

// Update records that done of total files have finished, fr last.
func (p *ProgressBar) Update(done, total int, fr pipeline.FileReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fr.File.Status == media.StatusFailed {
		p.failed++
	}
	if total <= 0 {
		return
	}

	if !p.redraw {
		fmt.Fprintf(p.w, "%s: %d/%d %s %s\n", p.label, done, total, fr.File.Status, fr.File.Name)
		return
	}

	filled := p.width * done / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)
	status := ""
	if p.failed > 0 {
		status = " " + Error(fmt.Sprintf("%d failed", p.failed))
	}
	fmt.Fprintf(p.w, "\r%s [%s] %d/%d%s", p.label, bar, done, total, status)
	if done >= total {
		fmt.Fprintln(p.w)
	}
}

// Failed is the number of failed files seen so far.
func (p *ProgressBar) Failed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}
