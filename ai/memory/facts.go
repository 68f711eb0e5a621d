package memory

import (
	"regexp"
	"slices"
	"strings"

	"github.com/hrygo/aida/store"
)

// ExtractedFactConfidence is the confidence given to pattern-extracted facts.
const ExtractedFactConfidence = 0.8

// ExtractedFact is a fact recognised in a user message.
type ExtractedFact struct {
	Category store.FactCategory
	Key      string
	Value    string
}

// factRule captures a value with the first matching pattern.
type factRule struct {
	category store.FactCategory
	key      func(value string) string
	patterns []*regexp.Regexp
	// lower matches against the lowercased message.
	lower bool
	skip  func(value string) bool
}

var notAName = []string{"i", "a", "the", "here", "there", "good", "fine", "ok", "sure", "tired", "busy", "back"}

var notAnOccupation = []string{"here", "there", "good", "fine", "ok", "sure"}

var notAThing = []string{"it", "that", "this"}

func fixedKey(key string) func(string) string {
	return func(string) string { return key }
}

var factRules = []factRule{
	{
		category: store.FactCategoryPersonal,
		key:      fixedKey("name"),
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:my name is|i'm|i am|call me) ([a-z]+(?:\s+[a-z]+)?)(?:\s+and|\s*[,.]|$)`),
			regexp.MustCompile(`(?i)(?:jeg heter|kall meg) ([a-zæøå]+(?:\s+[a-zæøå]+)?)(?:\s+og|\s*[,.]|$)`),
		},
		skip: func(v string) bool { return slices.Contains(notAName, strings.ToLower(v)) },
	},
	{
		category: store.FactCategoryPersonal,
		key:      fixedKey("location"),
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:i live in|i'm from|i am from) ([a-z]+(?:\s+[a-z]+)*)`),
			regexp.MustCompile(`(?i)(?:jeg bor i|jeg er fra) ([a-zæøå]+(?:\s+[a-zæøå]+)*)`),
		},
	},
	{
		category: store.FactCategoryWork,
		key:      fixedKey("occupation"),
		lower:    true,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?:i work as|i am a|i'm a|my job is) (?:a |an )?([a-z]+(?:\s+[a-z]+)*)`),
			regexp.MustCompile(`(?:jeg jobber som|jeg er) (?:en )?([a-zæøå]+(?:\s+[a-zæøå]+)*)`),
		},
		skip: func(v string) bool { return slices.Contains(notAnOccupation, v) },
	},
	{
		category: store.FactCategoryPreference,
		key:      func(v string) string { return "likes_" + v },
		lower:    true,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`i (?:really )?(?:like|love|enjoy|prefer) ([a-z]+(?:\s+[a-z]+)*)`),
			regexp.MustCompile(`jeg (?:liker|elsker) ([a-zæøå]+(?:\s+[a-zæøå]+)*)`),
		},
		skip: func(v string) bool {
			return len(v) <= 2 || slices.Contains(notAThing, v) || strings.HasPrefix(v, "ikke ")
		},
	},
	{
		category: store.FactCategoryPreference,
		key:      func(v string) string { return "dislikes_" + v },
		lower:    true,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`i (?:don't like|do not like|don't|do not|hate|dislike) ([a-z]+(?:\s+[a-z]+)*)`),
			regexp.MustCompile(`jeg (?:liker ikke|hater) ([a-zæøå]+(?:\s+[a-zæøå]+)*)`),
		},
		skip: func(v string) bool { return len(v) <= 2 || slices.Contains(notAThing, v) },
	},
}

// ExtractFacts finds self-descriptions in a user message ("my name is",
// "I live in", "I work as", likes and dislikes, English and Norwegian).
// At most one fact per rule is returned.
func ExtractFacts(message string) []ExtractedFact {
	lowered := strings.ToLower(message)
	var facts []ExtractedFact
	for _, rule := range factRules {
		text := message
		if rule.lower {
			text = lowered
		}
		for _, re := range rule.patterns {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			value := strings.TrimSpace(m[1])
			if rule.skip != nil && rule.skip(value) {
				continue
			}
			facts = append(facts, ExtractedFact{Category: rule.category, Key: rule.key(value), Value: value})
			break
		}
	}
	return facts
}
