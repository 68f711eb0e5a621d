package routing

import (
	"regexp"
	"strings"
)

var spacedDot = regexp.MustCompile(`\s*\.\s*`)

var commonTLDs = []string{"com", "org", "net", "edu", "gov", "no", "se", "dk", "uk", "de"}

// CleanURL repairs a URL as it comes out of speech recognition:
// trailing punctuation is dropped, spoken dots become dots, and a
// trailing " com" style TLD is joined to the host.
func CleanURL(text string) string {
	text = strings.TrimRight(text, ".!?")

	text = strings.ReplaceAll(text, " dot ", ".")
	text = strings.ReplaceAll(text, " punktum ", ".")
	text = strings.ReplaceAll(text, " dot", ".")
	text = strings.ReplaceAll(text, " punktum", ".")

	text = spacedDot.ReplaceAllString(text, ".")

	for _, tld := range commonTLDs {
		if strings.HasSuffix(text, " "+tld) {
			text = text[:len(text)-len(tld)-1] + "." + tld
		}
	}
	return text
}

// LooksLikeURL reports whether a cleaned target should be opened rather than searched for.
func LooksLikeURL(target string) bool {
	return strings.Contains(target, ".") && !strings.Contains(target, " ")
}

// NormalizeURL adds https:// when the scheme is missing.
func NormalizeURL(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	return "https://" + target
}

var endPhrases = []string{
	"goodbye", "bye", "that's all", "thank you", "thanks",
	"end conversation", "stop", "quit", "exit", "done",
	"that will be all", "nevermind", "never mind",
}

var endOfConversation = Contains(endPhrases...)

// IsEndOfConversation reports whether the utterance closes the conversation.
// Matching is plain containment on the lowercased, trimmed text, so "stop" also
// matches "unstoppable".
func IsEndOfConversation(message string) bool {
	_, ok := endOfConversation.Match(message)
	return ok
}
