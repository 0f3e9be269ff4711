package util

import (
	"strings"
	"testing"
)

func TestDisplaySnippetCleansAndTruncates(t *testing.T) {
	in := "Hello\x00   world \n\t again"
	out := DisplaySnippet(in, 100)
	if out != "Hello world again" {
		t.Fatalf("unexpected snippet: %q", out)
	}
	long := strings.Repeat("x", 500)
	out = DisplaySnippet(long, 10)
	if !strings.HasSuffix(out, "...") || len([]rune(out)) != 13 {
		t.Fatalf("expected truncated snippet, got %q", out)
	}
}
