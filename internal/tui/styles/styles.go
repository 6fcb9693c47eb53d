package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/fabricctl/internal/step"
)

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple (violet-400)
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red (red-400)
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray (brighter for readability)
	SurfaceColor   = lipgloss.Color("#1F2937") // Dark surface
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray (gray-500)

	// Stage status colors
	StatusPending    = lipgloss.Color("#9CA3AF") // Gray
	StatusProcessing = lipgloss.Color("#60A5FA") // Blue
	StatusCompleted  = lipgloss.Color("#10B981") // Green
	StatusError      = lipgloss.Color("#F87171") // Red

	// Convenience styles for colors
	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)
	Text      = lipgloss.NewStyle().Foreground(TextColor)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	// Stage list
	StageTitle = lipgloss.NewStyle().
			Foreground(TextColor)

	StageTitleActive = lipgloss.NewStyle().
				Bold(true).
				Foreground(TextColor)

	StageDescription = lipgloss.NewStyle().
				Foreground(MutedColor).
				PaddingLeft(4)

	StageError = lipgloss.NewStyle().
			Foreground(ErrorColor).
			PaddingLeft(4)

	Percent = lipgloss.NewStyle().
		Foreground(MutedColor).
		Width(5).
		Align(lipgloss.Right)

	// Outcome banners
	ErrorMsg = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true).
			MarginTop(1)

	SuccessMsg = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true).
			MarginTop(1)

	WarningMsg = lipgloss.NewStyle().
			Foreground(WarningColor).
			MarginTop(1)

	// Help bar
	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	HelpKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(SecondaryColor)

	// Summary table
	TableHeader = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			Padding(0, 1)

	TableCell = lipgloss.NewStyle().
			Padding(0, 1)

	TableBorder = lipgloss.NewStyle().
			Foreground(BorderColor)
)

// StatusColor returns the color for a given stage status
func StatusColor(status step.Status) lipgloss.Color {
	switch status {
	case step.StatusPending:
		return StatusPending
	case step.StatusProcessing:
		return StatusProcessing
	case step.StatusCompleted:
		return StatusCompleted
	case step.StatusError:
		return StatusError
	default:
		return MutedColor
	}
}

// StatusIcon returns an icon for a given stage status
func StatusIcon(status step.Status) string {
	switch status {
	case step.StatusPending:
		return "○"
	case step.StatusProcessing:
		return "●"
	case step.StatusCompleted:
		return "✓"
	case step.StatusError:
		return "✗"
	default:
		return "●"
	}
}

// StatusStyle renders text in the color of status.
func StatusStyle(status step.Status) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(StatusColor(status))
}
