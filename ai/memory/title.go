package memory

import "github.com/hrygo/aida/ai/internal/strutil"

const (
	titleMaxRunes       = 50
	titleTruncatedRunes = 47
)

// SessionTitle derives a title from the first user message: the whole
// message when short, else its first sentence, else a truncated prefix.
func SessionTitle(content string) string {
	if len([]rune(content)) <= titleMaxRunes {
		return content
	}
	if sentence, ok := strutil.FirstSentence(content, titleMaxRunes); ok {
		return sentence
	}
	return strutil.Truncate(content, titleTruncatedRunes)
}
