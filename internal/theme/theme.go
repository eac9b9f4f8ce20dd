package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/worklist/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
)

// HeaderStyle is used for the worklist title line.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the refresh summary under the list.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// UnreadTitleStyle marks items not yet read.
var UnreadTitleStyle = lipgloss.NewStyle().Bold(true)

// MutedStyle is used for actors, timestamps and summaries.
var MutedStyle = lipgloss.NewStyle().Foreground(ColorGray)

// WarningStyle flags failed sources.
var WarningStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorYellow)

// ErrorStyle is used for action failures.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// SuccessStyle is used for action confirmations.
var SuccessStyle = lipgloss.NewStyle().Foreground(ColorGreen)

// ImportantStyle marks important items.
var ImportantStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// FlaggedStyle marks flagged or starred items.
var FlaggedStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorOrange)

// HelpStyle is used for usage hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// SourceLabelStyle returns a color-coded style for the given source type.
func SourceLabelStyle(st model.SourceType) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch st {
	case model.SourceTypeGmail:
		return base.Foreground(ColorRed)
	case model.SourceTypeOutlook:
		return base.Foreground(ColorBlue)
	case model.SourceTypeDevOps:
		return base.Foreground(ColorMagenta)
	default:
		return base.Foreground(ColorGray)
	}
}

// SourceLabel is the short badge text for a source.
func SourceLabel(st model.SourceType) string {
	switch st {
	case model.SourceTypeGmail:
		return "GML"
	case model.SourceTypeOutlook:
		return "OUT"
	case model.SourceTypeDevOps:
		return "ADO"
	default:
		return "???"
	}
}
