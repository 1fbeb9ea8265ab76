// Package ui renders CLI output: styled messages, tables and progress.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

var (
	// Detect if we're in a terminal
	isTerminal   = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	colorEnabled = os.Getenv("NO_COLOR") == ""
)

// DisableColors disables all color output
func DisableColors() {
	colorEnabled = false
	initStyles()
}

// IsTerminal checks if stdout is a terminal with colors allowed.
func IsTerminal() bool {
	return isTerminal && colorEnabled
}

// Section prints a section header
func Section(w io.Writer, title string) {
	fmt.Fprintln(w)
	if IsTerminal() {
		fmt.Fprintln(w, headerStyle.Render("━━━ "+strings.ToUpper(title)+" ━━━"))
		return
	}
	fmt.Fprintln(w, strings.ToUpper(title))
	fmt.Fprintln(w, strings.Repeat("=", len(title)))
}

// FormatBytes formats bytes to human-readable format using go-humanize
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatDuration formats duration to human-readable format
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// FormatAge renders t relative to now, e.g. "3 minutes ago".
func FormatAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}
