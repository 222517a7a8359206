package theme

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestStatusLine(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	if got := StatusLine(Success, "Model successfully updated!"); got != "✅ Model successfully updated!" {
		t.Fatalf("got %q", got)
	}
	var buf bytes.Buffer
	PrintStatus(&buf, Failure, "Error: boom")
	if !strings.HasPrefix(buf.String(), "❌ Error: boom") {
		t.Fatalf("got %q", buf.String())
	}
	if got := StatusLine(Tone(99), "plain"); got != "plain" {
		t.Fatalf("got %q", got)
	}
	if !strings.Contains(Banner(), "retraining") {
		t.Fatalf("banner missing tagline")
	}
}
