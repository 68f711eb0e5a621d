package store

import "time"

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool, RoleSystem:
		return true
	}
	return false
}

// Session groups the messages of one conversation.
// At most one session is active at any time.
type Session struct {
	ID        string
	Title     string
	CreatedTs int64
	UpdatedTs int64
	IsActive  bool
}

type CreateSession struct {
	ID    string
	Title string
	Ts    int64
}

type FindSession struct {
	Limit  int
	Offset int
}

type UpdateSession struct {
	ID        string
	Title     *string
	UpdatedTs int64
}

// Message is one turn stored in a session.
// Messages of a session are ordered by (Timestamp, ID).
type Message struct {
	ID          int64
	SessionID   string
	Role        Role
	Content     string
	Images      []string // encoded image payloads
	Timestamp   int64
	EmbeddingID string
}

// Time returns the message timestamp as a time.Time.
func (m *Message) Time() time.Time {
	return time.Unix(m.Timestamp, 0)
}

type CreateMessage struct {
	SessionID string
	Role      Role
	Content   string
	Images    []string
	Timestamp int64
}

type FindMessage struct {
	SessionID *string
	// Query filters content with a case-insensitive substring match.
	Query string
	// Roles restricts the result to the given roles.
	Roles []Role
	Limit int
	// Descending returns newest first.
	Descending bool
}
