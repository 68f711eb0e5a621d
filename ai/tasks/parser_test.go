package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/aida/store"
	"github.com/hrygo/aida/store/storetest"
)

func newTestParser() *Parser {
	p := NewParser()
	p.SetClock(func() time.Time { return storetest.Epoch })
	return p
}

func TestParser_Add(t *testing.T) {
	now := storetest.Epoch
	tomorrowEnd := time.Date(2024, 5, 2, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		input    string
		title    string
		priority store.TaskPriority
		due      *time.Time
		reminder bool
		project  string
		list     string
	}{
		{
			input: "Add task buy milk tomorrow",
			title: "buy milk",
			due:   &tomorrowEnd,
			list:  ShoppingList,
		},
		{
			input:    "remind me to call mom in 30 minutes",
			title:    "call mom",
			due:      ptr(now.Add(30 * time.Minute)),
			reminder: true,
		},
		{
			input: "add milk to the shopping list",
			title: "milk",
			list:  ShoppingList,
		},
		{
			input: "add eggs to my shopping list",
			title: "eggs",
			list:  ShoppingList,
		},
		{
			input:    "create a task write the report for project apollo urgent",
			title:    "write the report for project apollo",
			priority: store.TaskPriorityHigh,
			project:  "apollo",
		},
		{
			input:    "add a task pay rent next week low priority",
			title:    "pay rent",
			priority: store.TaskPriorityLow,
			due:      ptr(now.AddDate(0, 0, 7)),
		},
		{
			input: "add task plan party this weekend",
			title: "plan party",
			due:   ptr(time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC)),
		},
		{
			input: "add a task to do laundry daily",
			title: "laundry daily",
			list:  DailyList,
		},
		{
			input: "legg til melk i morgen",
			title: "melk",
			due:   &tomorrowEnd,
		},
	}

	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, ok := p.Parse(tt.input)
			require.True(t, ok)
			assert.Equal(t, ActionAdd, cmd.Action)
			assert.Equal(t, tt.title, cmd.Title)
			assert.Equal(t, tt.priority, cmd.Priority)
			assert.Equal(t, tt.project, cmd.Project)
			assert.Equal(t, tt.list, cmd.HAList)
			if tt.due == nil {
				assert.Nil(t, cmd.Due)
			} else {
				require.NotNil(t, cmd.Due)
				assert.True(t, tt.due.Equal(*cmd.Due), "due %s, want %s", cmd.Due, tt.due)
			}
			if tt.reminder {
				require.NotNil(t, cmd.Reminder)
				assert.True(t, cmd.Due.Equal(*cmd.Reminder))
			} else {
				assert.Nil(t, cmd.Reminder)
			}
		})
	}
}

func TestParser_CompleteAndList(t *testing.T) {
	tests := []struct {
		input  string
		action Action
		title  string
		filter store.TaskPriority
	}{
		{input: "I finished the laundry", action: ActionComplete, title: "the laundry"},
		{input: "mark as done buy milk", action: ActionComplete, title: "buy milk"},
		{input: "complete task pay rent", action: ActionComplete, title: "pay rent"},
		{input: "ferdig med oppvasken", action: ActionComplete, title: "oppvasken"},
		{input: "What's on my todo list?", action: ActionList},
		{input: "what do I need to do", action: ActionList},
		{input: "show my tasks, just the important ones", action: ActionList, filter: store.TaskPriorityHigh},
		{input: "read my to-do list, low priority only", action: ActionList, filter: store.TaskPriorityLow},
		{input: "vis mine oppgaver", action: ActionList},
	}

	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, ok := p.Parse(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.action, cmd.Action)
			assert.Equal(t, tt.title, cmd.Title)
			assert.Equal(t, tt.filter, cmd.FilterPriority)
		})
	}
}

func TestParser_NotATaskCommand(t *testing.T) {
	p := newTestParser()
	for _, input := range []string{
		"tell me a joke",
		"what's the weather in oslo",
		"open vg dot no",
		"",
	} {
		_, ok := p.Parse(input)
		assert.False(t, ok, input)
	}
}

func TestNextSaturday(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"wednesday", time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC)},
		{"saturday", time.Date(2024, 5, 4, 9, 0, 0, 0, time.UTC), time.Date(2024, 5, 11, 12, 0, 0, 0, time.UTC)},
		{"sunday", time.Date(2024, 5, 5, 9, 0, 0, 0, time.UTC), time.Date(2024, 5, 11, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextSaturday(tt.now))
		})
	}
}

func ptr(t time.Time) *time.Time {
	return &t
}

func TestParser_ResolveDue(t *testing.T) {
	p := newTestParser()

	due, ok := p.ResolveDue("Tomorrow")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 2, 23, 59, 59, 0, time.UTC), due)

	due, ok = p.ResolveDue("in 2 hours")
	require.True(t, ok)
	assert.Equal(t, storetest.Epoch.Add(2*time.Hour), due)

	_, ok = p.ResolveDue("someday")
	assert.False(t, ok)
}
