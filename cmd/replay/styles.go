package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/candlelab/replay/internal/types"
)

var (
	// TitleStyle is used for the view header.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	// LabelStyle is used for field names in the status panel.
	LabelStyle = lipgloss.NewStyle().
			Faint(true).
			Width(16)

	// HelpStyle is used for the key binding hints.
	HelpStyle = lipgloss.NewStyle().
			Faint(true)

	// ErrorStyle is used for error messages.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF0000"))

	profitStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))

	statusStyles = map[types.PlaybackStatus]lipgloss.Style{
		types.PlaybackRunning:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575")),
		types.PlaybackPaused:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFD700")),
		types.PlaybackStopped:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F87")),
		types.PlaybackCompleted: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5F87FF")),
	}
)

// renderStatus renders a playback status with its color.
func renderStatus(status types.PlaybackStatus) string {
	style, ok := statusStyles[status]
	if !ok {
		return string(status)
	}

	return style.Render(string(status))
}

// renderPnL renders a signed amount, green for gains and red for losses.
func renderPnL(amount float64) string {
	text := fmt.Sprintf("%+.2f", amount)

	if amount < 0 {
		return lossStyle.Render(text)
	}

	return profitStyle.Render(text)
}
