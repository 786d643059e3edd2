package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorNavy  = lipgloss.Color("#1E2A44")
	ColorWhite = lipgloss.Color("#FFFFFF")
	ColorGray  = lipgloss.Color("245")
	ColorRed   = lipgloss.Color("196")
	ColorAmber = lipgloss.Color("214")
	ColorGreen = lipgloss.Color("#44FF44")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite).
			Background(ColorNavy).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray).
			Padding(0, 1)

	chartTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	countStyle = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	rankStyle  = lipgloss.NewStyle().Foreground(ColorGray)
	helpStyle  = lipgloss.NewStyle().Foreground(ColorGray)
	errorStyle = lipgloss.NewStyle().Foreground(ColorRed)

	pausedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorNavy).
			Background(ColorAmber).
			Padding(0, 1)

	liveStyle = lipgloss.NewStyle().Foreground(ColorGreen)

	barStyle = lipgloss.NewStyle().Foreground(ColorRed).Background(ColorRed)
)
