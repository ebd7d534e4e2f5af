package formatter

import (
	"github.com/charmbracelet/lipgloss"

	"taskboard/pkg/task"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

// Predefined lipgloss styles.
var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

var plain bool

// SetPlain disables all styling, e.g. when stdout is not a terminal.
func SetPlain(v bool) {
	plain = v
}

func render(s lipgloss.Style, text string) string {
	if plain {
		return text
	}
	return s.Render(text)
}

// LevelColor returns the style for a priority or confidentiality level.
func LevelColor(l task.Level) lipgloss.Style {
	switch l {
	case task.LevelHigh:
		return StyleRed
	case task.LevelMedium:
		return StyleYellow
	case task.LevelLow:
		return StyleGreen
	default:
		return StyleDim
	}
}

// AutomationColor returns the style for an automation level.
func AutomationColor(a task.AutomationLevel) lipgloss.Style {
	switch a {
	case task.AutomationFull:
		return StyleGreen
	case task.AutomationPartial:
		return StyleYellow
	case task.AutomationNone:
		return StyleRed
	default:
		return StyleDim
	}
}
