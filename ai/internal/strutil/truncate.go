// Package strutil provides string helpers shared by the ai packages.
package strutil

import "strings"

// Truncate cuts s to maxLen runes and appends "..." when anything was removed.
// Returns "" when maxLen <= 0.
func Truncate(s string, maxLen int) string {
	if s == "" || maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// Head returns at most maxLen runes of s without any marker.
func Head(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

// CollapseSpaces replaces every run of whitespace with a single space and trims the result.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// sentenceEnds are the separators recognised by FirstSentence.
var sentenceEnds = []string{". ", "? ", "! "}

// FirstSentence returns the prefix of s up to and including the first sentence terminator
// that occurs before limit runes. ok is false when no terminator falls inside the limit.
func FirstSentence(s string, limit int) (string, bool) {
	runes := []rune(s)
	for _, end := range sentenceEnds {
		pos := strings.Index(s, end)
		if pos <= 0 {
			continue
		}
		runePos := len([]rune(s[:pos]))
		if runePos < limit && runePos < len(runes) {
			return string(runes[:runePos+1]), true
		}
	}
	return "", false
}
