package store

import "time"

type TaskPriority string

const (
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityLow    TaskPriority = "low"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

type ReminderType string

const (
	ReminderOnce   ReminderType = "once"
	ReminderDaily  ReminderType = "daily"
	ReminderWeekly ReminderType = "weekly"
)

type Project struct {
	ID          int64
	Name        string
	Description string
	Color       string
	Archived    bool
	CreatedTs   int64
}

type Task struct {
	ID          int64
	Title       string
	Description string
	Priority    TaskPriority
	Status      TaskStatus
	ProjectID   *int64
	ProjectName string
	DueTs       *int64
	ReminderTs  *int64
	// ReminderSent is set once the reminder has been delivered.
	ReminderSent bool
	// Home Assistant shopping/todo list sync.
	HAListName  string
	HAItemID    string
	HASyncedTs  *int64
	CreatedTs   int64
	UpdatedTs   int64
	CompletedTs *int64
}

// IsOverdue reports whether an open task is past its due date.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueTs == nil {
		return false
	}
	if t.Status == TaskStatusCompleted || t.Status == TaskStatusCancelled {
		return false
	}
	return *t.DueTs < now.Unix()
}

// Due returns the due date, or the zero time when unset.
func (t *Task) Due() time.Time {
	if t.DueTs == nil {
		return time.Time{}
	}
	return time.Unix(*t.DueTs, 0)
}

type FindTask struct {
	Status *TaskStatus
	// Open restricts the result to pending and in-progress tasks.
	Open      bool
	ProjectID *int64
	Priority  *TaskPriority
	DueBefore *int64
	Limit     int
}

type Reminder struct {
	ID        int64
	TaskID    int64
	RemindTs  int64
	Type      ReminderType
	Sent      bool
	CreatedTs int64

	// TaskTitle is filled by ListDueReminders.
	TaskTitle string
}
