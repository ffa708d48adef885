// Package console renders CLI output: status/listing tables and
// prefixed status messages, colorized via lipgloss when stdout is a
// terminal and emitted as plain text otherwise.
package console

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"

	"github.com/tbrumbaugh5396/meta/pkg/logger"
	"github.com/tbrumbaugh5396/meta/pkg/styles"
)

var consoleLog = logger.New("console:console")

// isTTY reports whether stdout is attached to a terminal.
var isTTY = func() bool {
	return isatty.IsTerminal(uintptr(1))
}

// applyStyle conditionally applies styling based on TTY status.
func applyStyle(style lipgloss.Style, text string) string {
	if isTTY() {
		return style.Render(text)
	}
	return text
}

// FormatSuccessMessage formats a success message.
func FormatSuccessMessage(message string) string {
	return applyStyle(styles.Success, "✓ ") + message
}

// FormatInfoMessage formats an informational message.
func FormatInfoMessage(message string) string {
	return applyStyle(styles.Info, "ℹ ") + message
}

// FormatWarningMessage formats a warning message.
func FormatWarningMessage(message string) string {
	return applyStyle(styles.Warning, "⚠ ") + message
}

// FormatErrorMessage formats an error message.
func FormatErrorMessage(message string) string {
	return applyStyle(styles.Error, "✗ ") + message
}

// FormatListHeader formats a section header for lists (rollback
// targets, changeset entries).
func FormatListHeader(header string) string {
	return applyStyle(styles.ListHeader, header)
}

// FormatListItem formats one item in a list.
func FormatListItem(item string) string {
	return applyStyle(styles.ListItem, "  • "+item)
}

// TableConfig is the input to RenderTable.
type TableConfig struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// RenderTable renders a formatted table. Colorized via lipgloss/table
// when stdout is a terminal, plain aligned text otherwise.
func RenderTable(config TableConfig) string {
	if len(config.Headers) == 0 {
		consoleLog.Print("no headers provided for table rendering")
		return ""
	}
	consoleLog.Printf("rendering table: title=%s columns=%d rows=%d", config.Title, len(config.Headers), len(config.Rows))

	var out strings.Builder
	if config.Title != "" {
		out.WriteString(applyStyle(styles.TableTitle, config.Title))
		out.WriteString("\n")
	}

	styleFunc := func(row, col int) lipgloss.Style {
		if !isTTY() {
			return lipgloss.NewStyle()
		}
		if row == table.HeaderRow {
			return styles.TableHeader
		}
		return styles.TableCell
	}

	t := table.New().
		Headers(config.Headers...).
		Rows(config.Rows...).
		Border(styles.NormalBorder).
		BorderStyle(styles.TableBorder).
		StyleFunc(styleFunc)

	out.WriteString(t.String())
	out.WriteString("\n")
	return out.String()
}

// RenderList renders items as a bulleted list under header.
func RenderList(header string, items []string) string {
	var out strings.Builder
	if header != "" {
		out.WriteString(FormatListHeader(header))
		out.WriteString("\n")
	}
	for _, item := range items {
		out.WriteString(FormatListItem(item))
		out.WriteString("\n")
	}
	return out.String()
}
