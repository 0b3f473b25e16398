package theme

import (
	"github.com/charmbracelet/lipgloss"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for command titles such as the day or month shown.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// HelpStyle is used for hints and secondary text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ErrorStyle renders failures.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// SuccessStyle renders confirmations.
var SuccessStyle = lipgloss.NewStyle().
	Foreground(ColorGreen)

// DraftStyle marks entries that exist only locally.
var DraftStyle = lipgloss.NewStyle().
	Foreground(ColorOrange).
	Italic(true)

// TableHeaderStyle is the header row of CLI tables.
var TableHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue).
	Padding(0, 1)

// TableCellStyle is the base style of CLI table cells.
var TableCellStyle = lipgloss.NewStyle().
	Padding(0, 1)

// BorderStyle provides a standard rounded border for panels.
var BorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// HoursStyle colors a logged total against what was expected for the
// period: complete, partial or nothing logged.
func HoursStyle(spent, expected float64) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch {
	case expected <= 0 && spent <= 0:
		return base.Foreground(ColorGray)
	case spent >= expected:
		return base.Foreground(ColorGreen)
	case spent > 0:
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorRed)
	}
}

// OutcomeStyle returns a color-coded style for an audit journal outcome.
func OutcomeStyle(outcome string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch outcome {
	case "ok":
		return base.Foreground(ColorGreen)
	case "failed":
		return base.Foreground(ColorRed)
	case "dry-run":
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorGray)
	}
}

// RealizationStyle colors a done ratio.
func RealizationStyle(percent int) lipgloss.Style {
	switch {
	case percent >= 100:
		return lipgloss.NewStyle().Foreground(ColorGreen)
	case percent >= 50:
		return lipgloss.NewStyle().Foreground(ColorBlue)
	default:
		return lipgloss.NewStyle().Foreground(ColorGray)
	}
}
