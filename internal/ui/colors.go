package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Semantic colors for status indication, kept to plain ANSI codes for
// terminal compatibility.
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
	ColorMuted   lipgloss.Color = "8" // Gray (bright black)
)

// Styles for one-line status output.
var (
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorError)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
)

// ColorsEnabled reports whether the terminal advertises color support.
func ColorsEnabled() bool {
	return termenv.EnvColorProfile() != termenv.Ascii
}

// Success renders a success line, styled when the terminal supports it.
func Success(msg string) string {
	if !ColorsEnabled() {
		return "✓ " + msg
	}
	return SuccessStyle.Render("✓ " + msg)
}

// Failure renders a failure line, styled when the terminal supports it.
func Failure(msg string) string {
	if !ColorsEnabled() {
		return "✗ " + msg
	}
	return ErrorStyle.Render("✗ " + msg)
}
