// Package styles provides centralized style and color definitions for
// CLI output. Colors use lipgloss.AdaptiveColor so they read well on
// both light and dark terminal backgrounds.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// ColorError is used for failed/broken component status and fatal errors.
	ColorError = lipgloss.AdaptiveColor{
		Light: "#D73737",
		Dark:  "#FF5555",
	}

	// ColorWarning is used for mismatch status and cautionary output.
	ColorWarning = lipgloss.AdaptiveColor{
		Light: "#E67E22",
		Dark:  "#FFB86C",
	}

	// ColorSuccess is used for healthy status and confirmations.
	ColorSuccess = lipgloss.AdaptiveColor{
		Light: "#27AE60",
		Dark:  "#50FA7B",
	}

	// ColorInfo is used for informational messages.
	ColorInfo = lipgloss.AdaptiveColor{
		Light: "#2980B9",
		Dark:  "#8BE9FD",
	}

	// ColorComment is used for secondary/muted table text.
	ColorComment = lipgloss.AdaptiveColor{
		Light: "#6C7A89",
		Dark:  "#6272A4",
	}

	// ColorForeground is used for primary table cell text.
	ColorForeground = lipgloss.AdaptiveColor{
		Light: "#2C3E50",
		Dark:  "#F8F8F2",
	}

	// ColorBorder is used for table borders.
	ColorBorder = lipgloss.AdaptiveColor{
		Light: "#BDC3C7",
		Dark:  "#44475A",
	}
)

// NormalBorder is used for status and listing tables.
var NormalBorder = lipgloss.NormalBorder()

// Error style for error messages - bold red.
var Error = lipgloss.NewStyle().Bold(true).Foreground(ColorError)

// Warning style for mismatch-status messages - bold orange.
var Warning = lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)

// Success style for healthy-status messages - bold green.
var Success = lipgloss.NewStyle().Bold(true).Foreground(ColorSuccess)

// Info style for informational messages - bold cyan.
var Info = lipgloss.NewStyle().Bold(true).Foreground(ColorInfo)

// ListHeader style for section headers in lists (rollback targets,
// changeset entries) - bold underline green.
var ListHeader = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(ColorSuccess)

// ListItem style for items in lists.
var ListItem = lipgloss.NewStyle().Foreground(ColorForeground)

// TableHeader style for table headers - bold muted.
var TableHeader = lipgloss.NewStyle().Bold(true).Foreground(ColorComment)

// TableCell style for regular table cells.
var TableCell = lipgloss.NewStyle().Foreground(ColorForeground)

// TableTitle style for table titles - bold green.
var TableTitle = lipgloss.NewStyle().Bold(true).Foreground(ColorSuccess)

// TableBorder style for table borders.
var TableBorder = lipgloss.NewStyle().Foreground(ColorBorder)
