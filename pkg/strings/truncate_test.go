package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		width int
		want  string
	}{
		{name: "short", input: "svc", width: 10, want: "svc"},
		{name: "exact", input: "hello", width: 5, want: "hello"},
		{name: "truncated", input: "failed to update deployment svc", width: 15, want: "failed to up..."},
		{name: "newlines", input: "step failed:\n\tboom", width: 40, want: "step failed: boom"},
		{name: "unicode", input: "schritt → fehlgeschlagen", width: 10, want: "schritt..."},
		{name: "width clamped", input: "deployment", width: 1, want: "d..."},
		{name: "empty", input: "", width: 10, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.input, tt.width))
		})
	}
}

func TestSingleLine(t *testing.T) {
	assert.Equal(t, "a b c", SingleLine("  a\r\n b \t c  "))
}
