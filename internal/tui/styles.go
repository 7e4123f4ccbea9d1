package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent  = lipgloss.Color("39")
	colorMuted   = lipgloss.Color("241")
	colorBorder  = lipgloss.Color("240")
	colorHover   = lipgloss.Color("48")
	colorError   = lipgloss.Color("196")
	colorPaused  = lipgloss.Color("214")
	colorDone    = lipgloss.Color("42")
	colorSelText = lipgloss.Color("231")
)

var (
	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	activePaneStyle = paneStyle.
			BorderForeground(colorAccent)

	// The drop target lights up while a drag hovers over it.
	hoverPaneStyle = paneStyle.
			BorderForeground(colorHover)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	cursorRowStyle = lipgloss.NewStyle().
			Foreground(colorSelText).
			Background(lipgloss.Color("237"))

	selectedRowStyle = lipgloss.NewStyle().
				Foreground(colorAccent)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	statusStyles = map[string]lipgloss.Style{
		"queued":    mutedStyle,
		"active":    lipgloss.NewStyle().Foreground(colorAccent),
		"paused":    lipgloss.NewStyle().Foreground(colorPaused),
		"error":     errorStyle,
		"completed": lipgloss.NewStyle().Foreground(colorDone),
	}

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorPaused).
			Padding(1, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)
)
