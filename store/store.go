package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hrygo/aida/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
		now:     time.Now,
	}
}

// SetClock overrides the time source.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

// CreateSession deactivates the current session and starts a new active one.
func (s *Store) CreateSession(ctx context.Context, title string) (*Session, error) {
	return s.driver.CreateSession(ctx, &CreateSession{
		ID:    uuid.NewString(),
		Title: title,
		Ts:    s.now().Unix(),
	})
}

func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	return s.driver.GetSession(ctx, id)
}

func (s *Store) GetActiveSession(ctx context.Context) (*Session, error) {
	return s.driver.GetActiveSession(ctx)
}

func (s *Store) ListSessions(ctx context.Context, limit, offset int) ([]*Session, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.driver.ListSessions(ctx, &FindSession{Limit: limit, Offset: offset})
}

func (s *Store) CountSessions(ctx context.Context) (int, error) {
	return s.driver.CountSessions(ctx)
}

func (s *Store) SetActiveSession(ctx context.Context, id string) error {
	return s.driver.SetActiveSession(ctx, id)
}

func (s *Store) UpdateSessionTitle(ctx context.Context, id, title string) error {
	return s.driver.UpdateSession(ctx, &UpdateSession{
		ID:        id,
		Title:     &title,
		UpdatedTs: s.now().Unix(),
	})
}

// DeleteSession removes the session and its messages.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.driver.DeleteSession(ctx, id)
}

// AppendMessage stores a message and bumps the session's updated time.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, role Role, content string, images []string) (*Message, error) {
	if sessionID == "" {
		return nil, errors.New("session id required")
	}
	if !role.IsValid() {
		return nil, errors.Errorf("invalid role %q", role)
	}
	return s.driver.CreateMessage(ctx, &CreateMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Images:    images,
		Timestamp: s.now().Unix(),
	})
}

// GetRecentMessages returns at most count messages, oldest first.
func (s *Store) GetRecentMessages(ctx context.Context, sessionID string, count int) ([]*Message, error) {
	if count <= 0 {
		return []*Message{}, nil
	}
	return s.driver.ListRecentMessages(ctx, sessionID, count)
}

func (s *Store) ListMessages(ctx context.Context, sessionID string, limit int) ([]*Message, error) {
	return s.driver.ListMessages(ctx, &FindMessage{SessionID: &sessionID, Limit: limit})
}

// SearchMessages does a substring search, newest first, capped at 50 rows.
func (s *Store) SearchMessages(ctx context.Context, query, sessionID string) ([]*Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*Message{}, nil
	}
	find := &FindMessage{Query: query, Limit: 50, Descending: true}
	if sessionID != "" {
		find.SessionID = &sessionID
	}
	return s.driver.ListMessages(ctx, find)
}

// CountMessages counts messages of a session, or all messages when sessionID is empty.
func (s *Store) CountMessages(ctx context.Context, sessionID string) (int, error) {
	return s.driver.CountMessages(ctx, sessionID)
}

func (s *Store) UpdateMessageEmbeddingID(ctx context.Context, messageID int64, embeddingID string) error {
	return s.driver.UpdateMessageEmbeddingID(ctx, messageID, embeddingID)
}

// ListIndexableMessages returns user and assistant messages in insertion order.
func (s *Store) ListIndexableMessages(ctx context.Context) ([]*Message, error) {
	return s.driver.ListMessages(ctx, &FindMessage{Roles: []Role{RoleUser, RoleAssistant}})
}

// SetFact inserts or updates the fact keyed by (category, key).
// The original creation time is kept on update.
func (s *Store) SetFact(ctx context.Context, category FactCategory, key, value string, confidence float64, sourceMessageID *int64) (*UserFact, error) {
	key = strings.TrimSpace(key)
	if category == "" || key == "" {
		return nil, errors.New("fact category and key required")
	}
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}
	return s.driver.UpsertUserFact(ctx, &UpsertUserFact{
		Category:        category,
		Key:             key,
		Value:           value,
		Confidence:      confidence,
		SourceMessageID: sourceMessageID,
		Ts:              s.now().Unix(),
	})
}

func (s *Store) GetFact(ctx context.Context, category FactCategory, key string) (*UserFact, error) {
	return s.driver.GetUserFact(ctx, category, key)
}

// ListFacts returns facts ordered by category then key.
func (s *Store) ListFacts(ctx context.Context, category *FactCategory) ([]*UserFact, error) {
	return s.driver.ListUserFacts(ctx, &FindUserFact{Category: category})
}

func (s *Store) DeleteFact(ctx context.Context, category FactCategory, key string) (bool, error) {
	return s.driver.DeleteUserFact(ctx, category, key)
}

func (s *Store) ClearFacts(ctx context.Context) error {
	return s.driver.ClearUserFacts(ctx)
}

func (s *Store) CountFacts(ctx context.Context) (int, error) {
	return s.driver.CountUserFacts(ctx)
}

func (s *Store) UpsertMessageEmbedding(ctx context.Context, embedding *MessageEmbedding) (*MessageEmbedding, error) {
	if embedding.CreatedTs == 0 {
		embedding.CreatedTs = s.now().Unix()
	}
	return s.driver.UpsertMessageEmbedding(ctx, embedding)
}

func (s *Store) MessageVectorSearch(ctx context.Context, opts *MessageVectorSearchOptions) ([]*MessageWithScore, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return s.driver.MessageVectorSearch(ctx, opts)
}

// DeleteMessageEmbeddings removes the vectors of the given messages, or all vectors when none are given.
func (s *Store) DeleteMessageEmbeddings(ctx context.Context, messageIDs []int64) error {
	return s.driver.DeleteMessageEmbeddings(ctx, messageIDs)
}

func (s *Store) CountMessageEmbeddings(ctx context.Context) (int, error) {
	return s.driver.CountMessageEmbeddings(ctx)
}

// GetOrCreateProject looks up a project by name, case-insensitively, creating it when missing.
func (s *Store) GetOrCreateProject(ctx context.Context, name string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("project name required")
	}
	project, err := s.driver.GetProjectByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if project != nil {
		return project, nil
	}
	return s.driver.CreateProject(ctx, &Project{Name: name, CreatedTs: s.now().Unix()})
}

func (s *Store) GetProjectByName(ctx context.Context, name string) (*Project, error) {
	return s.driver.GetProjectByName(ctx, name)
}

func (s *Store) ListProjects(ctx context.Context) ([]*Project, error) {
	return s.driver.ListProjects(ctx, false)
}

func (s *Store) CreateTask(ctx context.Context, create *Task) (*Task, error) {
	if strings.TrimSpace(create.Title) == "" {
		return nil, errors.New("task title required")
	}
	now := s.now().Unix()
	if create.Priority == "" {
		create.Priority = TaskPriorityMedium
	}
	if create.Status == "" {
		create.Status = TaskStatusPending
	}
	create.CreatedTs, create.UpdatedTs = now, now
	return s.driver.CreateTask(ctx, create)
}

func (s *Store) GetTask(ctx context.Context, id int64) (*Task, error) {
	return s.driver.GetTask(ctx, id)
}

// CompleteTask marks a task completed. It returns nil when the task does not exist.
func (s *Store) CompleteTask(ctx context.Context, id int64) (*Task, error) {
	return s.driver.CompleteTask(ctx, id, s.now().Unix())
}

// FindTaskByTitle matches pending tasks, exact title first, then the newest partial match.
func (s *Store) FindTaskByTitle(ctx context.Context, title string) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil
	}
	return s.driver.FindTaskByTitle(ctx, title)
}

// ListPendingTasks lists open tasks ordered by priority, due date and creation.
func (s *Store) ListPendingTasks(ctx context.Context, projectID *int64) ([]*Task, error) {
	return s.driver.ListTasks(ctx, &FindTask{Open: true, ProjectID: projectID})
}

func (s *Store) ListTasksByPriority(ctx context.Context, priority TaskPriority) ([]*Task, error) {
	return s.driver.ListTasks(ctx, &FindTask{Open: true, Priority: &priority})
}

func (s *Store) ListTasksDueBefore(ctx context.Context, deadline time.Time) ([]*Task, error) {
	ts := deadline.Unix()
	return s.driver.ListTasks(ctx, &FindTask{Open: true, DueBefore: &ts})
}

func (s *Store) ListOverdueTasks(ctx context.Context) ([]*Task, error) {
	return s.ListTasksDueBefore(ctx, s.now())
}

func (s *Store) CountTasks(ctx context.Context, status *TaskStatus) (int, error) {
	return s.driver.CountTasks(ctx, status)
}

func (s *Store) CreateReminder(ctx context.Context, taskID int64, at time.Time, reminderType ReminderType) (*Reminder, error) {
	if reminderType == "" {
		reminderType = ReminderOnce
	}
	return s.driver.CreateReminder(ctx, &Reminder{
		TaskID:    taskID,
		RemindTs:  at.Unix(),
		Type:      reminderType,
		CreatedTs: s.now().Unix(),
	})
}

// ListDueReminders returns unsent reminders of open tasks due at or before the given time.
func (s *Store) ListDueReminders(ctx context.Context, before time.Time) ([]*Reminder, error) {
	return s.driver.ListDueReminders(ctx, before.Unix())
}

func (s *Store) MarkReminderSent(ctx context.Context, id int64) error {
	return s.driver.MarkReminderSent(ctx, id)
}

// MarkTaskSynced records that a task was pushed to a Home Assistant list.
func (s *Store) MarkTaskSynced(ctx context.Context, id int64, itemID string) error {
	return s.driver.MarkTaskSynced(ctx, id, itemID, s.now().Unix())
}
