package format

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeechFormatter(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"emphasis and heading", "# Weather\nIt is **sunny** in *Oslo*.", "Weather.\nIt is sunny in Oslo."},
		{"punctuated heading", "## Why?\nBecause.", "Why?\nBecause."},
		{"links keep their text", "See [the docs](https://example.com) and <https://go.dev>.", "See the docs and https://go.dev."},
		{"bullet list", "Groceries:\n\n- milk\n- eggs", "Groceries:\nmilk\neggs"},
		{"ordered list", "1. first\n2. second", "first\nsecond"},
		{"code block dropped", "Run this:\n\n```go\nfmt.Println(1)\n```\n\nDone.", "Run this:\nDone."},
		{"inline code kept", "Use `go test` now.", "Use go test now."},
		{"html dropped", "Hello <b>there</b>", "Hello there"},
		{"soft breaks join", "**Note:** one\ntwo", "Note: one two"},
	}

	f := NewSpeechFormatter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := f.Format(context.Background(), &FormatRequest{Content: tt.input})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Formatted)
			assert.Equal(t, "markdown", resp.Source)
			assert.True(t, resp.Changed)
		})
	}
}

func TestSpeechFormatter_Passthrough(t *testing.T) {
	resp, err := NewSpeechFormatter().Format(context.Background(), &FormatRequest{Content: "It's 12 degrees. Bring a jacket!"})
	require.NoError(t, err)
	assert.Equal(t, "passthrough", resp.Source)
	assert.False(t, resp.Changed)
	assert.Equal(t, "It's 12 degrees. Bring a jacket!", resp.Formatted)
}

func TestToSpeech(t *testing.T) {
	assert.Equal(t, "Done!", ToSpeech("**Done!**"))
	assert.Equal(t, "", ToSpeech(""))
}

func TestIsPlain(t *testing.T) {
	assert.True(t, isPlain("just words, 3.5 of them"))
	assert.False(t, isPlain("- item"))
	assert.False(t, isPlain("2. step"))
	assert.False(t, isPlain("a *b*"))
}
