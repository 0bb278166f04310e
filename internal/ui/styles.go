package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent  = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7D79F6"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6C6C6C", Dark: "#8A8A8A"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#1E7F3C", Dark: "#3FBF6A"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#B36B00", Dark: "#E0A030"}
	colorError   = lipgloss.AdaptiveColor{Light: "#B3261E", Dark: "#F2665C"}

	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent).Padding(0, 1)
	titleStyle    = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	headerStyle   = lipgloss.NewStyle().Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	barStyle      = lipgloss.NewStyle().Foreground(colorAccent)
	successStyle  = lipgloss.NewStyle().Foreground(colorSuccess)
	warningStyle  = lipgloss.NewStyle().Foreground(colorWarning)
	errorStyle    = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	helpKeyStyle  = lipgloss.NewStyle().Foreground(colorAccent)
	helpDescStyle = lipgloss.NewStyle().Foreground(colorMuted)
)
