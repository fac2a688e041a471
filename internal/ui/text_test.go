package ui

import (
	"strings"
	"testing"
)

func TestTruncateSimple(t *testing.T) {
	tests := []struct {
		text string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is too long", 10, "this is..."},
		{"héllo wörld", 8, "héllo..."},
		{"abc", 2, "..."},
	}
	for _, tt := range tests {
		if got := TruncateSimple(tt.text, tt.max); got != tt.want {
			t.Errorf("TruncateSimple(%q, %d) = %q, want %q", tt.text, tt.max, got, tt.want)
		}
	}
}

func TestWrapText(t *testing.T) {
	got := WrapText("Login fails on mobile devices after the update", 20)
	want := "Login fails on\nmobile devices after\nthe update"
	if got != want {
		t.Errorf("WrapText = %q, want %q", got, want)
	}

	for _, line := range strings.Split(got, "\n") {
		if len(line) > 20 {
			t.Errorf("line %q exceeds width", line)
		}
	}
}

func TestWrapTextKeepsBreaksAndLongWords(t *testing.T) {
	got := WrapText("first\nsupercalifragilistic word", 10)
	want := "first\nsupercalifragilistic\nword"
	if got != want {
		t.Errorf("WrapText = %q, want %q", got, want)
	}
	if got := WrapText("fits", 0); got != "fits" {
		t.Errorf("WrapText with zero width = %q", got)
	}
}
