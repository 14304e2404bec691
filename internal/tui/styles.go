package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorText  = lipgloss.Color("#cdd6f4")
	colorMuted = lipgloss.Color("#a6adc8")
	colorWork  = lipgloss.Color("#f38ba8")
	colorBreak = lipgloss.Color("#a6e3a1")
	colorPause = lipgloss.Color("#f9e2af")
	colorFrame = lipgloss.Color("#45475a")

	frameStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorFrame).
			Foreground(colorText).
			Padding(1, 4)

	clockStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	noticeStyle = lipgloss.NewStyle().Foreground(colorPause).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(colorWork)
)

func modeColor(mode string) lipgloss.Color {
	if mode == "break" {
		return colorBreak
	}
	return colorWork
}
