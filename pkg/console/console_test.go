package console

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func withTTY(t *testing.T, tty bool) {
	t.Helper()
	orig := isTTY
	isTTY = func() bool { return tty }
	t.Cleanup(func() { isTTY = orig })
}

func TestFormatMessages_PlainWhenNotTTY(t *testing.T) {
	withTTY(t, false)
	require.Equal(t, "✓ done", FormatSuccessMessage("done"))
	require.Equal(t, "⚠ careful", FormatWarningMessage("careful"))
	require.Equal(t, "✗ failed", FormatErrorMessage("failed"))
	require.Equal(t, "ℹ note", FormatInfoMessage("note"))
}

func TestFormatMessages_StyledWhenTTY(t *testing.T) {
	withTTY(t, true)
	out := FormatSuccessMessage("done")
	require.Contains(t, out, "done")
	require.NotEqual(t, "✓ done", out) // styling adds ANSI codes
}

func TestRenderTable_EmptyHeadersReturnsEmpty(t *testing.T) {
	withTTY(t, false)
	require.Equal(t, "", RenderTable(TableConfig{}))
}

func TestRenderTable_IncludesTitleAndRows(t *testing.T) {
	withTTY(t, false)
	out := RenderTable(TableConfig{
		Title:   "health: dev",
		Headers: []string{"Component", "Status"},
		Rows:    [][]string{{"a", "healthy"}, {"b", "missing"}},
	})
	require.Contains(t, out, "health: dev")
	require.Contains(t, out, "Component")
	require.Contains(t, out, "a")
	require.Contains(t, out, "missing")
}

func TestRenderList(t *testing.T) {
	withTTY(t, false)
	out := RenderList("Snapshots", []string{"snap-1", "snap-2"})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Equal(t, "Snapshots", lines[0])
	require.Contains(t, lines[1], "snap-1")
	require.Contains(t, lines[2], "snap-2")
}
