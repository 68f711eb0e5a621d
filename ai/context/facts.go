package context

import (
	"fmt"
	"strings"

	"github.com/hrygo/aida/store"
)

var factHeadings = map[store.FactCategory]string{
	store.FactCategoryPersonal:   "About the user:",
	store.FactCategoryPreference: "Preferences:",
	store.FactCategoryHabit:      "Habits and routines:",
	store.FactCategoryWork:       "Work and projects:",
	store.FactCategoryContext:    "Context:",
}

// FormatFacts renders facts as bullet groups in category order.
// Facts of unknown categories are left out.
func FormatFacts(facts []*store.UserFact) string {
	if len(facts) == 0 {
		return ""
	}
	grouped := make(map[store.FactCategory][]*store.UserFact)
	for _, fact := range facts {
		grouped[fact.Category] = append(grouped[fact.Category], fact)
	}

	var lines []string
	for _, category := range store.FactCategories {
		group := grouped[category]
		if len(group) == 0 {
			continue
		}
		heading := factHeadings[category]
		if len(lines) > 0 {
			heading = "\n" + heading
		}
		lines = append(lines, heading)
		for _, fact := range group {
			lines = append(lines, fmt.Sprintf("- %s: %s", fact.Key, fact.Value))
		}
	}
	return strings.Join(lines, "\n")
}
