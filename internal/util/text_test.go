package util

import "testing"

func TestNormalizeWhitespace(t *testing.T) {
	if got := NormalizeWhitespace("  150 \t\n"); got != "150" {
		t.Fatalf("got %q", got)
	}
	if got := NormalizeWhitespace("a   b"); got != "a b" {
		t.Fatalf("got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := Truncate("server unreachable", 6); got != "server…" {
		t.Fatalf("got %q", got)
	}
}
