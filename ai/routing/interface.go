// Package routing decides which capability handles an utterance before it
// reaches the language model.
//
// Routes are declared in an ordered table. Each route pairs a matcher, which
// extracts named groups from the utterance, with a handler. The first route
// that matches and whose guard holds wins.
package routing

import (
	"context"
	"errors"
	"strings"
)

// ErrFallthrough lets a handler decline a matched utterance so that later routes are tried.
var ErrFallthrough = errors.New("route declined")

// Match holds the named groups captured by a matcher.
type Match struct {
	Groups map[string]string
}

// Group returns a captured group, trimmed. Missing groups are "".
func (m Match) Group(name string) string {
	return strings.TrimSpace(m.Groups[name])
}

// Matcher recognizes utterances.
type Matcher interface {
	Match(utterance string) (Match, bool)
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(utterance string) (Match, bool)

func (f MatcherFunc) Match(utterance string) (Match, bool) {
	return f(utterance)
}

// Handler produces the spoken response for a matched utterance.
type Handler func(ctx context.Context, m Match) (string, error)

// Route is one entry of the dispatch table.
type Route struct {
	// Name identifies the route in logs and metrics.
	Name string
	// Capability completes "Sorry, I couldn't ..." when the handler fails.
	Capability string
	Matcher    Matcher
	Handler    Handler
	// When is an optional CEL expression over `features` (map of string to bool).
	// The route is skipped while it evaluates to false.
	When string
}

// Result is the outcome of a dispatched utterance.
type Result struct {
	Route    string
	Response string
	// Err is the handler error behind an apology response, if any.
	Err error
}

// Features are the named switches route guards test, e.g. "home_assistant".
type Features map[string]bool

// Clone returns a copy safe to hand to another goroutine.
func (f Features) Clone() Features {
	out := make(Features, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
