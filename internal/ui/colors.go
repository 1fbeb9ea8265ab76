package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/fuunylmz/Re-aniname/internal/media"
)

var (
	successStyle lipgloss.Style
	errorStyle   lipgloss.Style
	warningStyle lipgloss.Style
	infoStyle    lipgloss.Style
	dimStyle     lipgloss.Style
	headerStyle  lipgloss.Style
	movieStyle   lipgloss.Style
	seriesStyle  lipgloss.Style
	animeStyle   lipgloss.Style
	pathStyle    lipgloss.Style
)

func init() {
	initStyles()
}

func initStyles() {
	if !IsTerminal() {
		plain := lipgloss.NewStyle()
		successStyle, errorStyle, warningStyle, infoStyle, dimStyle = plain, plain, plain, plain, plain
		headerStyle, movieStyle, seriesStyle, animeStyle, pathStyle = plain, plain, plain, plain, plain
		return
	}

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	movieStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	seriesStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	animeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	pathStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
}

func Success(text string) string { return successStyle.Render(text) }
func Error(text string) string   { return errorStyle.Render(text) }
func Warning(text string) string { return warningStyle.Render(text) }
func Info(text string) string    { return infoStyle.Render(text) }
func Dim(text string) string     { return dimStyle.Render(text) }
func Path(text string) string    { return pathStyle.Render(text) }

// Kind renders a media kind in its own color.
func Kind(k media.Kind) string {
	switch k {
	case media.KindMovie:
		return movieStyle.Render(k.String())
	case media.KindSeries:
		return seriesStyle.Render(k.String())
	case media.KindAnime:
		return animeStyle.Render(k.String())
	default:
		return k.String()
	}
}

// Status renders a file status, colored by outcome.
func Status(s media.Status) string {
	switch s {
	case media.StatusSuccess:
		return Success(string(s))
	case media.StatusFailed:
		return Error(string(s))
	case media.StatusSkipped:
		return Warning(string(s))
	default:
		return Dim(string(s))
	}
}

// SuccessMsg prints a success message
func SuccessMsg(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, Success("✓")+" "+fmt.Sprintf(format, args...))
}

// ErrorMsg prints an error message
func ErrorMsg(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, Error("✗")+" "+fmt.Sprintf(format, args...))
}

// WarningMsg prints a warning message
func WarningMsg(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, Warning("⚠")+" "+fmt.Sprintf(format, args...))
}

// InfoMsg prints an info message
func InfoMsg(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, Info("ℹ")+" "+fmt.Sprintf(format, args...))
}
