// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Color palette shared by all CLI output, tuned for dark terminal backgrounds.
const (
	// ColorPrimary is purple - used for titles and headers.
	ColorPrimary = lipgloss.Color("#7C3AED")

	// ColorMuted is gray - used for subtitles and de-emphasized content.
	ColorMuted = lipgloss.Color("#6B7280")

	// ColorSuccess is green - used for running services and positive outcomes.
	ColorSuccess = lipgloss.Color("#10B981")

	// ColorError is red - used for errors and failed queries.
	ColorError = lipgloss.Color("#EF4444")

	// ColorWarning is amber - used for stopped services and warnings.
	ColorWarning = lipgloss.Color("#F59E0B")

	// ColorHighlight is blue - used for keys and the EveBox label.
	ColorHighlight = lipgloss.Color("#3B82F6")
)

var (
	// TitleStyle is for primary headers and section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SubtitleStyle is for secondary headers and descriptions.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// SuccessStyle is for success messages and positive indicators.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// ErrorStyle is for error messages and failure indicators.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	// WarningStyle is for warning messages and caution indicators.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// KeyStyle is for config keys and table labels.
	KeyStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)

	// supervisorLabelStyle colors the container label column of `run` and `logs`.
	supervisorLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorPrimary)
)

// statusStyle picks the style for a service summary word.
func statusStyle(summary string) lipgloss.Style {
	switch summary {
	case "running":
		return SuccessStyle
	case "unknown":
		return ErrorStyle
	case "disabled":
		return SubtitleStyle
	default:
		return WarningStyle
	}
}
