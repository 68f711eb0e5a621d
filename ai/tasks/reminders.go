package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hrygo/aida/store"
)

// DefaultReminderInterval is how often due reminders are checked.
const DefaultReminderInterval = time.Minute

// ReminderFunc receives a due reminder. TaskTitle is filled.
type ReminderFunc func(ctx context.Context, reminder *store.Reminder)

// ReminderService polls for due reminders, delivers them and schedules the
// next occurrence of recurring ones.
type ReminderService struct {
	store    *store.Store
	deliver  ReminderFunc
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReminderService creates a stopped service. interval <= 0 uses DefaultReminderInterval.
func NewReminderService(s *store.Store, interval time.Duration, deliver ReminderFunc) *ReminderService {
	if interval <= 0 {
		interval = DefaultReminderInterval
	}
	return &ReminderService{
		store:    s,
		deliver:  deliver,
		interval: interval,
		now:      time.Now,
	}
}

func (r *ReminderService) SetClock(now func() time.Time) {
	r.now = now
}

// Start checks once immediately, then on every interval until Stop or ctx ends.
// Starting a running service is a no-op.
func (r *ReminderService) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.check(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.check(ctx)
			}
		}
	}(r.done)
	slog.Info("reminder service started", "interval", r.interval)
}

// Stop halts the service and waits for an in-flight check.
func (r *ReminderService) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the service has been started and not stopped.
func (r *ReminderService) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *ReminderService) check(ctx context.Context) {
	if _, err := r.CheckNow(ctx); err != nil && ctx.Err() == nil {
		slog.Warn("reminder check failed", "error", err)
	}
}

// CheckNow delivers every due reminder and returns how many were delivered.
// A reminder is marked sent after delivery; daily and weekly ones are rescheduled
// one period after their previous time.
func (r *ReminderService) CheckNow(ctx context.Context) (int, error) {
	due, err := r.store.ListDueReminders(ctx, r.now())
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, reminder := range due {
		if r.deliver != nil {
			r.deliver(ctx, reminder)
		}
		delivered++

		if err := r.store.MarkReminderSent(ctx, reminder.ID); err != nil {
			return delivered, err
		}

		var next time.Time
		remindAt := time.Unix(reminder.RemindTs, 0)
		switch reminder.Type {
		case store.ReminderDaily:
			next = remindAt.AddDate(0, 0, 1)
		case store.ReminderWeekly:
			next = remindAt.AddDate(0, 0, 7)
		default:
			continue
		}
		if _, err := r.store.CreateReminder(ctx, reminder.TaskID, next, reminder.Type); err != nil {
			return delivered, err
		}
	}
	return delivered, nil
}

// Schedule adds a reminder for a task.
func (r *ReminderService) Schedule(ctx context.Context, taskID int64, at time.Time, reminderType store.ReminderType) (*store.Reminder, error) {
	return r.store.CreateReminder(ctx, taskID, at, reminderType)
}

// ScheduleBeforeDue adds a one-off reminder the given lead time before the task is due.
// It returns nil when the task has no due date or the reminder time has passed.
func (r *ReminderService) ScheduleBeforeDue(ctx context.Context, taskID int64, lead time.Duration) (*store.Reminder, error) {
	task, err := r.store.GetTask(ctx, taskID)
	if err != nil || task == nil || task.DueTs == nil {
		return nil, err
	}
	at := task.Due().Add(-lead)
	if !at.After(r.now()) {
		return nil, nil
	}
	return r.store.CreateReminder(ctx, taskID, at, store.ReminderOnce)
}

// ReminderText is the spoken form of a reminder.
func ReminderText(reminder *store.Reminder, task *store.Task) string {
	text := "Reminder: " + reminder.TaskTitle
	if task != nil && task.DueTs != nil {
		text += ", due soon"
	}
	return text
}
