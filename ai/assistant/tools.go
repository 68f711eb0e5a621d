package assistant

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hrygo/aida/ai/agent/registry"
	"github.com/hrygo/aida/ai/internal/strutil"
	"github.com/hrygo/aida/ai/memory"
	"github.com/hrygo/aida/ai/tasks"
	"github.com/hrygo/aida/plugin/webfetch"
	"github.com/hrygo/aida/store"
)

const (
	toolSearchResults = 2
	// fallbackNewsQuery is searched when no feeds are configured.
	fallbackNewsQuery = "siste nyheter"
)

var errNoWebSearch = errors.New("web search is not available")

type webSearchParams struct {
	Query string `json:"query" description:"The search terms or the question to find an answer to"`
}

type noParams struct{}

type addTaskParams struct {
	Title    string `json:"title" description:"What needs to be done"`
	Priority string `json:"priority,omitempty" description:"high, medium or low"`
	Due      string `json:"due,omitempty" description:"When it is due, e.g. today, tomorrow, next week or in 2 hours"`
}

type rememberFactParams struct {
	Category string `json:"category" description:"One of personal, preference, habit, work or context"`
	Key      string `json:"key" description:"Short name for the fact, e.g. favorite_color"`
	Value    string `json:"value" description:"The fact itself"`
}

type searchMemoryParams struct {
	Query string `json:"query" description:"Words to look for in remembered facts and past conversations"`
}

// registerBuiltinTools adds the tools whose collaborators are configured.
func (a *Assistant) registerBuiltinTools(r *registry.Registry) error {
	var errs []error
	add := func(err error) { errs = append(errs, err) }

	if a.web != nil {
		add(registry.Register(r, "web_search",
			"Searches the internet for an answer to a question or for information.",
			a.toolWebSearch, registry.WithCategory(registry.CategorySearch)))
	}
	if a.web != nil || (a.feeds != nil && a.feeds.Configured()) {
		add(registry.Register(r, "get_latest_news",
			"Gets the latest news from the configured RSS feeds or a general news search.",
			a.toolLatestNews, registry.WithCategory(registry.CategorySearch)))
	}
	if a.tasks != nil {
		add(registry.Register(r, "add_task",
			"Adds a task to the user's todo list.",
			a.toolAddTask, registry.WithCategory(registry.CategoryTasks)))
		add(registry.Register(r, "list_tasks",
			"Summarizes the user's pending tasks.",
			a.toolListTasks, registry.WithCategory(registry.CategoryTasks)))
	}
	if a.memory != nil {
		add(registry.Register(r, "remember_fact",
			"Stores a fact about the user so it can be recalled in later conversations.",
			a.toolRememberFact, registry.WithCategory(registry.CategoryMemory)))
		add(registry.Register(r, "search_memory",
			"Searches remembered facts and past conversations.",
			a.toolSearchMemory, registry.WithCategory(registry.CategoryMemory)))
	}
	return errors.Join(errs...)
}

// toolWebSearch returns the fetched pages; the model writes the answer from them.
func (a *Assistant) toolWebSearch(ctx context.Context, p webSearchParams) (string, error) {
	query := strings.TrimSpace(p.Query)
	if query == "" {
		return "", errors.New("query is required")
	}
	return a.searchSummary(ctx, query)
}

func (a *Assistant) searchSummary(ctx context.Context, query string) (string, error) {
	if a.web == nil {
		return "", errNoWebSearch
	}
	a.status("Fetching info about: " + query)
	results := a.web.Search(ctx, query, toolSearchResults)
	if !webfetch.AnySuccess(results) {
		return fmt.Sprintf("Sorry, I couldn't find information about '%s'.", query), nil
	}
	return webfetch.SummarizeForLLM(results), nil
}

func (a *Assistant) toolLatestNews(ctx context.Context, _ noParams) (string, error) {
	if a.feeds != nil && a.feeds.Configured() {
		a.status("Fetching news feeds...")
		return a.feeds.Latest(ctx)
	}
	return a.searchSummary(ctx, fallbackNewsQuery)
}

func (a *Assistant) toolAddTask(ctx context.Context, p addTaskParams) (string, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return "", errors.New("title is required")
	}
	cmd := &tasks.Command{Action: tasks.ActionAdd, Title: title}

	switch priority := store.TaskPriority(strings.ToLower(strings.TrimSpace(p.Priority))); priority {
	case "":
	case store.TaskPriorityHigh, store.TaskPriorityMedium, store.TaskPriorityLow:
		cmd.Priority = priority
	default:
		return "", fmt.Errorf("unknown priority %q, use high, medium or low", p.Priority)
	}

	if due := strings.TrimSpace(p.Due); due != "" {
		at, ok := a.parser.ResolveDue(due)
		if !ok {
			return "", fmt.Errorf("could not understand the due date %q", p.Due)
		}
		cmd.Due = &at
	}
	return a.tasks.Execute(ctx, cmd)
}

func (a *Assistant) toolListTasks(ctx context.Context, _ noParams) (string, error) {
	return a.tasks.Summary(ctx)
}

func (a *Assistant) toolRememberFact(ctx context.Context, p rememberFactParams) (string, error) {
	category := store.FactCategory(strings.ToLower(strings.TrimSpace(p.Category)))
	if !slices.Contains(store.FactCategories, category) {
		return "", fmt.Errorf("unknown category %q", p.Category)
	}
	key, value := strings.TrimSpace(p.Key), strings.TrimSpace(p.Value)
	if key == "" || value == "" {
		return "", errors.New("key and value are required")
	}
	fact, err := a.memory.RememberFact(ctx, category, key, value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Remembered %s: %s", fact.Key, fact.Value), nil
}

func (a *Assistant) toolSearchMemory(ctx context.Context, p searchMemoryParams) (string, error) {
	results, err := a.memory.SearchMemory(ctx, p.Query, memory.SearchOptions{IncludeFacts: true, IncludeConversations: true})
	if err != nil {
		return "", err
	}
	if results.IsEmpty() {
		return fmt.Sprintf("Nothing in memory matches '%s'.", p.Query), nil
	}
	return FormatSearchResults(results), nil
}

// FormatSearchResults renders memory hits as short sections for the model.
func FormatSearchResults(r *memory.SearchResults) string {
	var sections []string
	if len(r.Facts) > 0 {
		lines := []string{"Facts:"}
		for _, f := range r.Facts {
			lines = append(lines, fmt.Sprintf("- %s: %s", f.Key, f.Value))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	if len(r.Messages) > 0 {
		lines := []string{"Conversations:"}
		for _, m := range r.Messages {
			lines = append(lines, fmt.Sprintf("- [%s, %s] %s", m.Timestamp.Format("2006-01-02"), m.Role, m.Content))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	if len(r.Semantic) > 0 {
		lines := []string{"Related:"}
		for _, s := range r.Semantic {
			lines = append(lines, "- "+strutil.Truncate(s.Content, 200))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	return strings.Join(sections, "\n\n")
}
