package app

import (
	"strings"
	"testing"

	xansi "github.com/charmbracelet/x/ansi"
)

func TestBuildStyleConfigDisablesDocumentOuterMargins(t *testing.T) {
	for _, style := range []string{"dark", "light", "notty", "ascii"} {
		cfg := buildStyleConfig(style)
		if cfg.Document.StylePrimitive.BlockPrefix != "" {
			t.Fatalf("%s: expected empty document block prefix, got %q", style, cfg.Document.StylePrimitive.BlockPrefix)
		}
		if cfg.Document.StylePrimitive.BlockSuffix != "" {
			t.Fatalf("%s: expected empty document block suffix, got %q", style, cfg.Document.StylePrimitive.BlockSuffix)
		}
		if cfg.Document.Margin == nil || *cfg.Document.Margin != 0 {
			t.Fatalf("%s: expected document margin 0", style)
		}
	}
}

func TestRenderMarkdownFitsWidth(t *testing.T) {
	input := "# Run report\n\n" + strings.Repeat("succeeded target openai/gpt-4o ", 10) + "\n"
	out := renderMarkdown(input, 40, "ascii")
	plain := xansi.Strip(out)
	if !strings.Contains(plain, "Run report") {
		t.Fatalf("expected heading in output, got %q", plain)
	}
	for _, line := range strings.Split(plain, "\n") {
		if w := xansi.StringWidth(line); w > 40 {
			t.Fatalf("expected lines within 40 columns, got %d: %q", w, line)
		}
	}
}

func TestRenderMarkdownEmptyInput(t *testing.T) {
	if out := renderMarkdown("\n\n", 40, "dark"); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}
