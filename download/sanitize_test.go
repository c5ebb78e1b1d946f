package download

import (
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "Chez Panisse", want: "Chez_Panisse"},
		{name: "punctuation and unicode", input: "Joe's / Café ★", want: "Joes_Caf"},
		{name: "path separators", input: "A/B:C", want: "A_B_C"},
		{name: "empty", input: "", want: "unknown_place"},
		{name: "whitespace only", input: "   ", want: "unknown_place"},
		{name: "all stripped", input: "★★★", want: "unknown_place"},
		{name: "run collapse", input: "a -- b  __ c", want: "a_-_b_c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.input); got != tt.want {
				t.Fatalf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeCapsLength(t *testing.T) {
	got := Sanitize(strings.Repeat("a", 300))
	if len(got) != maxDirNameLength {
		t.Fatalf("len = %d, want %d", len(got), maxDirNameLength)
	}
}
