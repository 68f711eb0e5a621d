package routing

import (
	"regexp"
	"strings"
)

// PatternMatcher tries regular expressions in order against the lowercased utterance.
// Captures come from named groups only, so handlers never depend on group positions.
type PatternMatcher struct {
	patterns []*regexp.Regexp
	anchored []*regexp.Regexp
	// limits caps the word count of named groups; a longer capture rejects that pattern.
	limits map[string]int
	// shortUtterance, when > 0, accepts a non-anchored hit only for utterances
	// of at most that many words. Full matches are always accepted.
	shortUtterance int
}

// Patterns compiles the expressions into a matcher. It panics on invalid expressions,
// as route tables are built from literals at startup.
func Patterns(exprs ...string) *PatternMatcher {
	m := &PatternMatcher{
		patterns: make([]*regexp.Regexp, len(exprs)),
		anchored: make([]*regexp.Regexp, len(exprs)),
	}
	for i, expr := range exprs {
		m.patterns[i] = regexp.MustCompile(expr)
		m.anchored[i] = regexp.MustCompile(`^(?:` + expr + `)$`)
	}
	return m
}

// MaxWords rejects a pattern whose named group captured more than n words,
// moving on to the next pattern.
func (m *PatternMatcher) MaxWords(group string, n int) *PatternMatcher {
	if m.limits == nil {
		m.limits = make(map[string]int)
	}
	m.limits[group] = n
	return m
}

// FullOrShort accepts a pattern when it matches the whole utterance, or when it
// matches anywhere in an utterance of at most n words.
func (m *PatternMatcher) FullOrShort(n int) *PatternMatcher {
	m.shortUtterance = n
	return m
}

// Match implements Matcher.
func (m *PatternMatcher) Match(utterance string) (Match, bool) {
	lower := strings.ToLower(utterance)
	for i, re := range m.patterns {
		loc := re.FindStringSubmatchIndex(lower)
		if loc == nil {
			continue
		}
		if m.shortUtterance > 0 && !m.anchored[i].MatchString(lower) && wordCount(lower) > m.shortUtterance {
			continue
		}

		groups := make(map[string]string)
		for j, name := range re.SubexpNames() {
			if name == "" || loc[2*j] < 0 {
				continue
			}
			groups[name] = lower[loc[2*j]:loc[2*j+1]]
		}
		if !m.withinLimits(groups) {
			continue
		}
		return Match{Groups: groups}, true
	}
	return Match{}, false
}

func (m *PatternMatcher) withinLimits(groups map[string]string) bool {
	for name, limit := range m.limits {
		if value, ok := groups[name]; ok && wordCount(value) > limit {
			return false
		}
	}
	return true
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// Contains matches when the lowercased, trimmed utterance contains any phrase.
func Contains(phrases ...string) Matcher {
	return MatcherFunc(func(utterance string) (Match, bool) {
		lower := strings.ToLower(strings.TrimSpace(utterance))
		for _, p := range phrases {
			if strings.Contains(lower, p) {
				return Match{Groups: map[string]string{"phrase": p}}, true
			}
		}
		return Match{}, false
	})
}
