package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/aida/store"
)

const (
	dueSoonWindow = 24 * time.Hour
	summaryTop    = 3
)

// ListSyncer pushes tasks to an external todo list, such as a Home Assistant list.
type ListSyncer interface {
	AddTodoItem(ctx context.Context, list, item string) error
	CompleteTodoItem(ctx context.Context, list, item string) error
}

// Manager is the task API used by voice commands, tools and the HTTP surface.
type Manager struct {
	store  *store.Store
	syncer ListSyncer
	now    func() time.Time
}

func NewManager(s *store.Store) *Manager {
	return &Manager{store: s, now: time.Now}
}

// SetListSyncer enables pushing tasks that name a list. nil disables it.
func (m *Manager) SetListSyncer(syncer ListSyncer) {
	m.syncer = syncer
}

// SetClock replaces the time source used for due dates in speech.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// AddTask stores the task described by an add command, creating its project
// and reminder when named. List sync failures are logged, the task is kept.
func (m *Manager) AddTask(ctx context.Context, cmd *Command) (*store.Task, error) {
	create := &store.Task{
		Title:      cmd.Title,
		Priority:   cmd.Priority,
		HAListName: cmd.HAList,
	}
	if cmd.Project != "" {
		project, err := m.store.GetOrCreateProject(ctx, cmd.Project)
		if err != nil {
			return nil, fmt.Errorf("resolve project %q: %w", cmd.Project, err)
		}
		create.ProjectID = &project.ID
		create.ProjectName = project.Name
	}
	if cmd.Due != nil {
		ts := cmd.Due.Unix()
		create.DueTs = &ts
	}
	if cmd.Reminder != nil {
		ts := cmd.Reminder.Unix()
		create.ReminderTs = &ts
	}

	task, err := m.store.CreateTask(ctx, create)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if cmd.Reminder != nil {
		if _, err := m.store.CreateReminder(ctx, task.ID, *cmd.Reminder, store.ReminderOnce); err != nil {
			return nil, fmt.Errorf("create reminder: %w", err)
		}
	}
	m.pushToList(ctx, task)
	return task, nil
}

func (m *Manager) pushToList(ctx context.Context, task *store.Task) {
	if m.syncer == nil || task.HAListName == "" {
		return
	}
	if err := m.syncer.AddTodoItem(ctx, task.HAListName, task.Title); err != nil {
		slog.Warn("failed to push task to list", "task_id", task.ID, "list", task.HAListName, "error", err)
		return
	}
	if err := m.store.MarkTaskSynced(ctx, task.ID, task.Title); err != nil {
		slog.Warn("failed to record list sync", "task_id", task.ID, "error", err)
	}
}

// CompleteTask completes the pending task best matching title. It returns nil when none matches.
// A task previously pushed to a list is also completed there.
func (m *Manager) CompleteTask(ctx context.Context, title string) (*store.Task, error) {
	task, err := m.store.FindTaskByTitle(ctx, title)
	if err != nil || task == nil {
		return nil, err
	}
	completed, err := m.store.CompleteTask(ctx, task.ID)
	if err != nil || completed == nil {
		return nil, err
	}
	if m.syncer != nil && completed.HAListName != "" && completed.HASyncedTs != nil {
		if err := m.syncer.CompleteTodoItem(ctx, completed.HAListName, completed.HAItemID); err != nil {
			slog.Warn("failed to complete list item", "task_id", completed.ID, "list", completed.HAListName, "error", err)
		}
	}
	return completed, nil
}

// Task returns a task by id, nil when it does not exist.
func (m *Manager) Task(ctx context.Context, id int64) (*store.Task, error) {
	return m.store.GetTask(ctx, id)
}

// ListOptions filters ListTasks. Priority takes precedence over Project.
type ListOptions struct {
	Project  string
	Priority store.TaskPriority
}

// ListTasks returns open tasks. An unknown project yields an empty list.
func (m *Manager) ListTasks(ctx context.Context, opts ListOptions) ([]*store.Task, error) {
	switch {
	case opts.Priority != "":
		return m.store.ListTasksByPriority(ctx, opts.Priority)
	case opts.Project != "":
		project, err := m.store.GetProjectByName(ctx, opts.Project)
		if err != nil || project == nil {
			return []*store.Task{}, err
		}
		return m.store.ListPendingTasks(ctx, &project.ID)
	default:
		return m.store.ListPendingTasks(ctx, nil)
	}
}

// Stats counts tasks by state.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
	DueSoon   int `json:"due_soon"`
}

func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	var err error
	pending, completed := store.TaskStatusPending, store.TaskStatusCompleted
	if stats.Total, err = m.store.CountTasks(ctx, nil); err != nil {
		return nil, err
	}
	if stats.Pending, err = m.store.CountTasks(ctx, &pending); err != nil {
		return nil, err
	}
	if stats.Completed, err = m.store.CountTasks(ctx, &completed); err != nil {
		return nil, err
	}
	overdue, err := m.store.ListTasksDueBefore(ctx, m.now())
	if err != nil {
		return nil, err
	}
	dueSoon, err := m.store.ListTasksDueBefore(ctx, m.now().Add(dueSoonWindow))
	if err != nil {
		return nil, err
	}
	stats.Overdue, stats.DueSoon = len(overdue), len(dueSoon)
	return &stats, nil
}

// Execute carries out a parsed command and returns the reply to speak.
func (m *Manager) Execute(ctx context.Context, cmd *Command) (string, error) {
	switch cmd.Action {
	case ActionAdd:
		task, err := m.AddTask(ctx, cmd)
		if err != nil {
			return "", err
		}
		var b strings.Builder
		b.WriteString("Added task: " + task.Title)
		if task.Priority == store.TaskPriorityHigh {
			b.WriteString(" (high priority)")
		}
		if task.DueTs != nil {
			b.WriteString(", due " + m.FormatDue(task.Due()))
		}
		if task.HAListName != "" {
			b.WriteString(". Added to " + task.HAListName + ".")
		}
		return b.String(), nil

	case ActionComplete:
		task, err := m.CompleteTask(ctx, cmd.Title)
		if err != nil {
			return "", err
		}
		if task == nil {
			return fmt.Sprintf("I couldn't find a task matching '%s'", cmd.Title), nil
		}
		return "Done! Completed: " + task.Title, nil

	case ActionList:
		if cmd.FilterPriority != "" {
			tasks, err := m.ListTasks(ctx, ListOptions{Priority: cmd.FilterPriority})
			if err != nil {
				return "", err
			}
			if len(tasks) == 0 {
				return fmt.Sprintf("You have no %s priority tasks.", cmd.FilterPriority), nil
			}
			return fmt.Sprintf("Your %s priority tasks: %s", cmd.FilterPriority, m.FormatForSpeech(tasks)), nil
		}
		return m.Summary(ctx)
	}
	return "", fmt.Errorf("unknown task action %q", cmd.Action)
}

// Summary is the spoken overview of pending work.
func (m *Manager) Summary(ctx context.Context) (string, error) {
	pending, err := m.store.ListPendingTasks(ctx, nil)
	if err != nil {
		return "", err
	}
	if len(pending) == 0 {
		return "You have no pending tasks. Your todo list is empty.", nil
	}
	now := m.now()
	overdue, err := m.store.ListTasksDueBefore(ctx, now)
	if err != nil {
		return "", err
	}
	dueSoon, err := m.store.ListTasksDueBefore(ctx, now.Add(dueSoonWindow))
	if err != nil {
		return "", err
	}

	var parts []string
	switch len(overdue) {
	case 0:
	case 1:
		parts = append(parts, "You have 1 overdue task: "+overdue[0].Title)
	default:
		parts = append(parts, fmt.Sprintf("You have %d overdue tasks", len(overdue)))
	}

	overdueIDs := make(map[int64]bool, len(overdue))
	for _, t := range overdue {
		overdueIDs[t.ID] = true
	}
	var upcoming []*store.Task
	for _, t := range dueSoon {
		if !overdueIDs[t.ID] {
			upcoming = append(upcoming, t)
		}
	}
	switch len(upcoming) {
	case 0:
	case 1:
		parts = append(parts, "1 task due in the next 24 hours: "+upcoming[0].Title)
	default:
		parts = append(parts, fmt.Sprintf("%d tasks due in the next 24 hours", len(upcoming)))
	}

	var high []*store.Task
	for _, t := range pending {
		if t.Priority == store.TaskPriorityHigh {
			high = append(high, t)
		}
	}
	switch len(high) {
	case 0:
	case 1:
		parts = append(parts, "1 high priority task: "+high[0].Title)
	default:
		parts = append(parts, fmt.Sprintf("%d high priority tasks", len(high)))
	}

	if len(pending) == 1 {
		parts = append(parts, "You have 1 task total")
	} else {
		parts = append(parts, fmt.Sprintf("You have %d tasks total", len(pending)))
	}

	if len(pending) > summaryTop {
		parts = append(parts, fmt.Sprintf("Your top tasks are: %s... and %d more",
			m.FormatForSpeech(pending[:summaryTop]), len(pending)-summaryTop))
	} else {
		parts = append(parts, "Your tasks: "+m.FormatForSpeech(pending))
	}
	return strings.Join(parts, ". "), nil
}

// FormatForSpeech renders tasks as a spoken list: "a", "a and b", "a, b, and c".
func (m *Manager) FormatForSpeech(tasks []*store.Task) string {
	if len(tasks) == 0 {
		return "no tasks"
	}
	parts := make([]string, len(tasks))
	for i, t := range tasks {
		text := t.Title
		if t.Priority == store.TaskPriorityHigh {
			text += " (important)"
		}
		if t.DueTs != nil {
			text += ", due " + m.FormatDue(t.Due())
		}
		parts[i] = text
	}
	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
	}
}

// FormatDue describes a due date relative to now.
func (m *Manager) FormatDue(due time.Time) string {
	diff := due.Sub(m.now())
	if diff < 0 {
		return "overdue"
	}
	switch days := int(diff / (24 * time.Hour)); {
	case days == 0:
		if diff < time.Hour {
			return "in less than an hour"
		}
		hours := int(diff / time.Hour)
		if hours == 1 {
			return "in 1 hour"
		}
		return fmt.Sprintf("in %d hours", hours)
	case days == 1:
		return "tomorrow"
	case days < 7:
		return due.Weekday().String()
	default:
		return due.Format("January 02")
	}
}
