package changeset

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
)

// Render formats a changeset for `changeset show`: the description is
// rendered through glamour as markdown when out is a TTY (a changeset
// description is often multiple paragraphs of prose, meant to be read
// formatted, not dumped raw), and as plain text otherwise.
func Render(out io.Writer, cs *Changeset, isTTY bool) error {
	var b strings.Builder
	fmt.Fprintf(&b, "id: %s\n", cs.ID)
	fmt.Fprintf(&b, "status: %s\n", cs.Status)
	fmt.Fprintf(&b, "author: %s\n", cs.Author)
	fmt.Fprintf(&b, "timestamp: %s\n\n", cs.Timestamp.Format("2006-01-02T15:04:05Z07:00"))

	if isTTY && cs.Description != "" {
		rendered, err := glamour.Render(cs.Description, "dark")
		if err != nil {
			b.WriteString(cs.Description)
			b.WriteString("\n")
		} else {
			b.WriteString(rendered)
		}
	} else if cs.Description != "" {
		b.WriteString(cs.Description)
		b.WriteString("\n")
	}

	b.WriteString("\nrepos:\n")
	for _, rc := range cs.Repos {
		fmt.Fprintf(&b, "  - %s @ %s (%s)\n", rc.Name, rc.Commit, rc.Branch)
	}

	_, err := io.WriteString(out, b.String())
	return err
}

// IsOutputTTY reports whether w is a terminal, for callers deciding
// whether to render markdown.
func IsOutputTTY(fd uintptr) bool {
	return isatty.IsTerminal(fd)
}
