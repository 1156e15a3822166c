package tui

import "github.com/charmbracelet/lipgloss"

// Theme holds the handful of colors the step dashboard actually
// renders with: a title accent, a dim/secondary tone, and one color
// per step status. Unlike a full multi-screen dashboard's palette,
// this view never shows panels, forms, or selection state, so the
// theme carries only what View and StatusIcon use.
type Theme struct {
	Accent  lipgloss.Color // Title accent
	Dim     lipgloss.Color // Secondary text, pending status
	Success lipgloss.Color // Step completed
	Warning lipgloss.Color // Step completed with a warning
	Error   lipgloss.Color // Step failed
	Running lipgloss.Color // Step in progress
}

// DefaultTheme is a dark-terminal-friendly palette.
var DefaultTheme = Theme{
	Accent:  lipgloss.Color("#5fafff"),
	Dim:     lipgloss.Color("#6c7086"),
	Success: lipgloss.Color("#7fd88f"),
	Warning: lipgloss.Color("#e6b450"),
	Error:   lipgloss.Color("#e06c75"),
	Running: lipgloss.Color("#e6b450"),
}

// Styles are pre-rendered lipgloss styles for the step dashboard.
type Styles struct {
	Title   lipgloss.Style
	Dim     lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Running lipgloss.Style
}

// NewStyles builds Styles from a Theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Foreground(t.Accent).Bold(true).Padding(0, 1),
		Dim:     lipgloss.NewStyle().Foreground(t.Dim),
		Success: lipgloss.NewStyle().Foreground(t.Success),
		Warning: lipgloss.NewStyle().Foreground(t.Warning),
		Error:   lipgloss.NewStyle().Foreground(t.Error),
		Running: lipgloss.NewStyle().Foreground(t.Running).Bold(true),
	}
}

// DefaultStyles are Styles built from DefaultTheme.
var DefaultStyles = NewStyles(DefaultTheme)

// StatusIcon renders a colored dot for a step status name.
func StatusIcon(status string, s Styles) string {
	switch status {
	case "success", "ok", "done", "completed":
		return s.Success.Render("●")
	case "error", "failed", "fail":
		return s.Error.Render("●")
	case "warning", "warn":
		return s.Warning.Render("●")
	case "running", "active":
		return s.Running.Render("●")
	default:
		return s.Dim.Render("○")
	}
}
