package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/require"
)

func TestAdaptiveColorsHaveBothVariants(t *testing.T) {
	colors := map[string]lipgloss.AdaptiveColor{
		"ColorError":      ColorError,
		"ColorWarning":    ColorWarning,
		"ColorSuccess":    ColorSuccess,
		"ColorInfo":       ColorInfo,
		"ColorComment":    ColorComment,
		"ColorForeground": ColorForeground,
		"ColorBorder":     ColorBorder,
	}

	for name, color := range colors {
		t.Run(name, func(t *testing.T) {
			require.NotEmpty(t, color.Light, "%s has empty Light variant", name)
			require.NotEmpty(t, color.Dark, "%s has empty Dark variant", name)
			require.NotEqual(t, color.Light, color.Dark, "%s has identical Light and Dark variants", name)
		})
	}
}

func TestStylesRenderNonEmpty(t *testing.T) {
	testText := "component-a"

	tests := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Error", Error},
		{"Warning", Warning},
		{"Success", Success},
		{"Info", Info},
		{"ListHeader", ListHeader},
		{"ListItem", ListItem},
		{"TableHeader", TableHeader},
		{"TableCell", TableCell},
		{"TableTitle", TableTitle},
		{"TableBorder", TableBorder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.style.Render(testText)
			require.GreaterOrEqual(t, len(result), len(testText))
		})
	}
}
