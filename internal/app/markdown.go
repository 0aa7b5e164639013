package app

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	glamouransi "github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	xansi "github.com/charmbracelet/x/ansi"
)

type markdownRendererKey struct {
	width int
	style string
}

var (
	rendererMu sync.Mutex
	renderers  = map[markdownRendererKey]*glamour.TermRenderer{}
)

// renderMarkdown renders a run report for the review page. Rendering errors
// fall back to the raw markdown.
func renderMarkdown(input string, width int, style string) string {
	input = strings.TrimRight(input, "\n")
	if input == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	r := getRenderer(width, style)
	if r == nil {
		return input
	}
	out, err := r.Render(input)
	if err != nil {
		return input
	}
	out = strings.TrimRight(out, "\n")
	out = xansi.Hardwrap(out, width, true)
	return strings.TrimRight(out, "\n")
}

func getRenderer(width int, style string) *glamour.TermRenderer {
	rendererMu.Lock()
	defer rendererMu.Unlock()
	key := markdownRendererKey{width: width, style: style}
	if r, ok := renderers[key]; ok && r != nil {
		return r
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(buildStyleConfig(style)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	renderers[key] = r
	return r
}

func buildStyleConfig(style string) glamouransi.StyleConfig {
	var base glamouransi.StyleConfig
	switch style {
	case "light":
		base = styles.LightStyleConfig
	case "notty":
		base = styles.NoTTYStyleConfig
	case "ascii":
		base = styles.ASCIIStyleConfig
	default:
		base = styles.DarkStyleConfig
	}
	// The page frame owns spacing around the report.
	base.Document.StylePrimitive.BlockPrefix = ""
	base.Document.StylePrimitive.BlockSuffix = ""
	zero := uint(0)
	base.Document.Margin = &zero
	return base
}
