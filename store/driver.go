package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Migrate applies the versioned schema. Running it twice is a no-op.
	Migrate(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int, error)

	// Session model related methods.
	CreateSession(ctx context.Context, create *CreateSession) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	GetActiveSession(ctx context.Context) (*Session, error)
	ListSessions(ctx context.Context, find *FindSession) ([]*Session, error)
	CountSessions(ctx context.Context) (int, error)
	SetActiveSession(ctx context.Context, id string) error
	UpdateSession(ctx context.Context, update *UpdateSession) error
	DeleteSession(ctx context.Context, id string) error

	// Message model related methods.
	CreateMessage(ctx context.Context, create *CreateMessage) (*Message, error)
	ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error)
	ListRecentMessages(ctx context.Context, sessionID string, count int) ([]*Message, error)
	CountMessages(ctx context.Context, sessionID string) (int, error)
	UpdateMessageEmbeddingID(ctx context.Context, messageID int64, embeddingID string) error

	// UserFact model related methods.
	UpsertUserFact(ctx context.Context, upsert *UpsertUserFact) (*UserFact, error)
	GetUserFact(ctx context.Context, category FactCategory, key string) (*UserFact, error)
	ListUserFacts(ctx context.Context, find *FindUserFact) ([]*UserFact, error)
	DeleteUserFact(ctx context.Context, category FactCategory, key string) (bool, error)
	ClearUserFacts(ctx context.Context) error
	CountUserFacts(ctx context.Context) (int, error)

	// MessageEmbedding model related methods.
	UpsertMessageEmbedding(ctx context.Context, embedding *MessageEmbedding) (*MessageEmbedding, error)
	MessageVectorSearch(ctx context.Context, opts *MessageVectorSearchOptions) ([]*MessageWithScore, error)
	DeleteMessageEmbeddings(ctx context.Context, messageIDs []int64) error
	CountMessageEmbeddings(ctx context.Context) (int, error)

	// Project and task model related methods.
	CreateProject(ctx context.Context, create *Project) (*Project, error)
	GetProjectByName(ctx context.Context, name string) (*Project, error)
	ListProjects(ctx context.Context, includeArchived bool) ([]*Project, error)
	CreateTask(ctx context.Context, create *Task) (*Task, error)
	GetTask(ctx context.Context, id int64) (*Task, error)
	ListTasks(ctx context.Context, find *FindTask) ([]*Task, error)
	FindTaskByTitle(ctx context.Context, title string) (*Task, error)
	CompleteTask(ctx context.Context, id int64, completedTs int64) (*Task, error)
	CountTasks(ctx context.Context, status *TaskStatus) (int, error)
	CreateReminder(ctx context.Context, create *Reminder) (*Reminder, error)
	ListDueReminders(ctx context.Context, before int64) ([]*Reminder, error)
	MarkReminderSent(ctx context.Context, id int64) error
	MarkTaskSynced(ctx context.Context, id int64, itemID string, syncedTs int64) error
}
