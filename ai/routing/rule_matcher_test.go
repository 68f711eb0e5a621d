package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternMatcher_NamedGroups(t *testing.T) {
	m := Patterns(
		`(?:turn|switch) (?P<state>on|off) (?:the )?(?P<device>.+)`,
		`(?:turn|switch) (?:the )?(?P<device>.+) (?P<state>on|off)`,
	)

	tests := []struct {
		input  string
		device string
		state  string
	}{
		{"Turn on the kitchen light", "kitchen light", "on"},
		{"switch the fan off", "fan", "off"},
		{"please turn off bedroom lamp ", "bedroom lamp", "off"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := m.Match(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.device, got.Group("device"))
			assert.Equal(t, tt.state, got.Group("state"))
		})
	}

	_, ok := m.Match("what time is it")
	assert.False(t, ok)
}

func TestPatternMatcher_MaxWords(t *testing.T) {
	m := Patterns(
		`what(?:'s|\s+is) (?P<query>.+)`,
		`tell me about (?P<query>.+)`,
	).MaxWords("query", 5)

	got, ok := m.Match("What's the weather in Oslo")
	require.True(t, ok)
	assert.Equal(t, "the weather in oslo", got.Group("query"))

	_, ok = m.Match("what is the reason the sky looks blue in the evening")
	assert.False(t, ok)

	// The first pattern's capture is too long, the second one fits.
	got, ok = m.Match("tell me about jazz")
	require.True(t, ok)
	assert.Equal(t, "jazz", got.Group("query"))
}

func TestPatternMatcher_FullOrShort(t *testing.T) {
	m := Patterns(`open (?:the |my )?browser`).FullOrShort(4)

	tests := []struct {
		input string
		want  bool
	}{
		{"open the browser", true},
		{"please open my browser", true},
		{"open browser", true},
		{"can you please open the browser for me", false},
		{"now open the browser", true},
		{"could you possibly quickly open the browser", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, ok := m.Match(tt.input)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestPatternMatcher_InvalidExpressionPanics(t *testing.T) {
	assert.Panics(t, func() { Patterns(`(unclosed`) })
}

func TestContains(t *testing.T) {
	m := Contains("goodbye", "see you")

	got, ok := m.Match("  Okay, SEE YOU later ")
	require.True(t, ok)
	assert.Equal(t, "see you", got.Group("phrase"))

	_, ok = m.Match("hello there")
	assert.False(t, ok)
}

func TestMatch_GroupMissing(t *testing.T) {
	assert.Equal(t, "", Match{}.Group("anything"))
}

func BenchmarkPatternMatcher_Match(b *testing.B) {
	table := ActionRoutes(&fakeActions{})
	inputs := []string{
		"turn on the kitchen light",
		"what's the weather in oslo",
		"open vg dot no",
		"tell me a long story about dragons and castles",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, r := range table {
			r.Matcher.Match(inputs[i%len(inputs)])
		}
	}
}
