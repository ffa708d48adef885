package health

import (
	"fmt"

	"github.com/tbrumbaugh5396/meta/pkg/console"
)

// Render formats r as a per-component status table: desired pin,
// actual on-disk state, status, and detail. Colorized via lipgloss
// when stdout is a terminal, plain aligned text otherwise —
// pkg/console.RenderTable handles the distinction.
func Render(r *Report) string {
	rows := make([][]string, 0, len(r.Order))
	for _, name := range r.Order {
		ch := r.Components[name]
		rows = append(rows, []string{name, ch.Desired, ch.Actual, string(ch.Status), ch.Detail})
	}
	return console.RenderTable(console.TableConfig{
		Title:   fmt.Sprintf("health: %s", r.Environment),
		Headers: []string{"Component", "Desired", "Actual", "Status", "Detail"},
		Rows:    rows,
	})
}
