// Package tasks turns spoken task commands into stored tasks and delivers
// their reminders.
package tasks

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hrygo/aida/ai/routing"
	"github.com/hrygo/aida/store"
)

// Action is what a task command asks for.
type Action string

const (
	ActionAdd      Action = "add"
	ActionComplete Action = "complete"
	ActionList     Action = "list"
)

// Home Assistant todo lists tasks can be pushed to.
const (
	ShoppingList = "Handleliste"
	DailyList    = "Dag til dag"
)

// Command is a parsed task command.
type Command struct {
	Action Action
	Title  string
	// Priority is empty when the utterance did not name one.
	Priority store.TaskPriority
	Due      *time.Time
	Project  string
	Reminder *time.Time
	HAList   string
	// FilterPriority narrows a list command.
	FilterPriority store.TaskPriority
}

var (
	listMatcher = routing.Patterns(
		`(?:what(?:'s| is) on my|show(?: me)?(?: my)?|list(?: my)?|read(?: my)?) ?(?:todo|task|to-do)(?:s| list)?`,
		`what (?:do i (?:need|have) to do|are my tasks)`,
		`(?:hva (?:er|skal|må) jeg (?:gjøre|huske)|vis (?:mine )?oppgaver)`,
	)
	completeMatcher = routing.Patterns(
		`(?:complete|finish|done(?: with)?|mark (?:as )?(?:done|complete)|check off) (?:task )?(?P<title>.+)`,
		`(?:i (?:finished|completed|did|done)) (?P<title>.+)`,
		`(?:ferdig med|fullført) (?P<title>.+)`,
	)
	addMatcher = routing.Patterns(
		`(?:add|create|new) (?:a )?task (?:to )?(?:do )?(?P<title>.+)`,
		`(?:add|put) (?P<title>.+?) (?:to|on) (?:my )?(?:todo|task|shopping|grocery)(?:s| list)?`,
		`(?:add) (?P<title>.+?) to (?:the )?(?:shopping|grocery) list`,
		`(?:remind me to|i need to|don't forget to|gotta) (?P<title>.+)`,
		`(?:legg til|ny) (?:oppgave )?(?P<title>.+)`,
		`(?:husk meg på|ikke glem) (?P<title>.+)`,
	)

	projectPattern = regexp.MustCompile(`(?:for|in|til) (?:project|prosjekt) (\w+)`)

	shoppingListPhrase   = regexp.MustCompile(`(?i)\b(?:to )?(?:the )?shopping list\b`)
	handlelistePhrase    = regexp.MustCompile(`(?i)\b(?:på )?handleliste(?:n)?\b`)
	whitespace           = regexp.MustCompile(`\s+`)
	priorityPhrasesRegex []*regexp.Regexp
)

var (
	highPriorityPhrases = []string{
		"high priority", "important", "urgent", "asap", "critical",
		"høy prioritet", "viktig", "haster",
	}
	lowPriorityPhrases = []string{
		"low priority", "not important", "whenever", "eventually",
		"lav prioritet", "ikke viktig", "når som helst",
	}
	shoppingKeywords = []string{
		"shopping list", "grocery", "groceries", "handleliste", "handle",
		"buy", "kjøp", "butikk",
	}
	dailyKeywords = []string{"daily", "dag til dag", "today's list", "dagens"}
)

// timePattern resolves a relative time phrase. n is the captured number, 0 when the phrase has none.
type timePattern struct {
	re  *regexp.Regexp
	due func(now time.Time, n int) time.Time
}

var timePatterns = []timePattern{
	{regexp.MustCompile(`(?i)\btoday\b|\bi dag\b`), func(now time.Time, _ int) time.Time { return endOfDay(now, 0) }},
	{regexp.MustCompile(`(?i)\btomorrow\b|\bi morgen\b`), func(now time.Time, _ int) time.Time { return endOfDay(now, 1) }},
	{regexp.MustCompile(`(?i)\bnext week\b|\bneste uke\b`), func(now time.Time, _ int) time.Time { return now.AddDate(0, 0, 7) }},
	{regexp.MustCompile(`(?i)\bthis weekend\b`), func(now time.Time, _ int) time.Time { return nextSaturday(now) }},
	{regexp.MustCompile(`(?i)\bin an? hour\b|\bom en time\b`), func(now time.Time, _ int) time.Time { return now.Add(time.Hour) }},
	{regexp.MustCompile(`(?i)\bin (\d+) minutes?\b|\bom (\d+) minutt(?:er)?\b`), func(now time.Time, n int) time.Time {
		return now.Add(time.Duration(n) * time.Minute)
	}},
	{regexp.MustCompile(`(?i)\bin (\d+) hours?\b|\bom (\d+) time(?:r)?\b`), func(now time.Time, n int) time.Time {
		return now.Add(time.Duration(n) * time.Hour)
	}},
	{regexp.MustCompile(`(?i)\bin (\d+) days?\b|\bom (\d+) dag(?:er)?\b`), func(now time.Time, n int) time.Time { return now.AddDate(0, 0, n) }},
}

func init() {
	for _, phrase := range append(append([]string{}, highPriorityPhrases...), lowPriorityPhrases...) {
		priorityPhrasesRegex = append(priorityPhrasesRegex, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(phrase)+`\b`))
	}
}

// Parser recognizes spoken task commands.
type Parser struct {
	now func() time.Time
}

// NewParser returns a Parser that resolves relative times against the wall clock.
func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// SetClock replaces the time source.
func (p *Parser) SetClock(now func() time.Time) {
	p.now = now
}

// Parse recognizes list, complete and add commands, in that order.
// It returns false when the message is not a task command.
func (p *Parser) Parse(message string) (*Command, bool) {
	lower := strings.ToLower(message)

	if _, ok := listMatcher.Match(lower); ok {
		cmd := &Command{Action: ActionList}
		switch {
		case containsAny(lower, "high priority", "viktig", "important"):
			cmd.FilterPriority = store.TaskPriorityHigh
		case containsAny(lower, "low priority", "lav"):
			cmd.FilterPriority = store.TaskPriorityLow
		}
		return cmd, true
	}

	if m, ok := completeMatcher.Match(lower); ok {
		return &Command{Action: ActionComplete, Title: m.Group("title")}, true
	}

	if m, ok := addMatcher.Match(lower); ok {
		return p.parseAdd(m.Group("title"), lower), true
	}
	return nil, false
}

func (p *Parser) parseAdd(title, lower string) *Command {
	cmd := &Command{Action: ActionAdd, Title: title}

	switch {
	case containsAny(lower, highPriorityPhrases...):
		cmd.Priority = store.TaskPriorityHigh
	case containsAny(lower, lowPriorityPhrases...):
		cmd.Priority = store.TaskPriorityLow
	}

	if due, ok := p.ResolveDue(lower); ok {
		cmd.Due = &due
		if strings.Contains(lower, "remind") || strings.Contains(lower, "husk") {
			reminder := due
			cmd.Reminder = &reminder
		}
	}

	if m := projectPattern.FindStringSubmatch(lower); m != nil {
		cmd.Project = m[1]
	}

	switch {
	case containsAny(lower, shoppingKeywords...):
		cmd.HAList = ShoppingList
		title = shoppingListPhrase.ReplaceAllString(title, "")
		title = handlelistePhrase.ReplaceAllString(title, "")
		cmd.Title = strings.TrimSpace(title)
	case containsAny(lower, dailyKeywords...):
		cmd.HAList = DailyList
	}

	clean := cmd.Title
	for _, tp := range timePatterns {
		clean = tp.re.ReplaceAllString(clean, "")
	}
	for _, re := range priorityPhrasesRegex {
		clean = re.ReplaceAllString(clean, "")
	}
	clean = strings.TrimSpace(whitespace.ReplaceAllString(clean, " "))
	if clean != "" {
		cmd.Title = clean
	}
	return cmd
}

// ResolveDue turns a relative time phrase such as "tomorrow" or "in 2 hours"
// into a time. It returns false when no phrase is recognized.
func (p *Parser) ResolveDue(phrase string) (time.Time, bool) {
	lower := strings.ToLower(phrase)
	for _, tp := range timePatterns {
		groups := tp.re.FindStringSubmatch(lower)
		if groups == nil {
			continue
		}
		n := 0
		for _, g := range groups[1:] {
			if g != "" {
				n, _ = strconv.Atoi(g)
				break
			}
		}
		return tp.due(p.now(), n), true
	}
	return time.Time{}, false
}

func containsAny(s string, phrases ...string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func endOfDay(now time.Time, days int) time.Time {
	d := now.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, d.Location())
}

// nextSaturday returns noon on the coming Saturday, a week out when today is Saturday.
func nextSaturday(now time.Time) time.Time {
	// Monday-based weekday, Saturday is 5.
	weekday := (int(now.Weekday()) + 6) % 7
	ahead := 5 - weekday
	if ahead <= 0 {
		ahead += 7
	}
	d := now.AddDate(0, 0, ahead)
	return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, d.Location())
}
