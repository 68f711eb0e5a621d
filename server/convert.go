package server

import (
	"time"

	"github.com/hrygo/aida/store"
)

type sessionView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type messageView struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Images    int       `json:"images,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type factView struct {
	Category   string    `json:"category"`
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	Confidence float64   `json:"confidence"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type taskView struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Priority  string     `json:"priority"`
	Status    string     `json:"status"`
	Project   string     `json:"project,omitempty"`
	Due       *time.Time `json:"due,omitempty"`
	Overdue   bool       `json:"overdue"`
	List      string     `json:"list,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func unixTime(ts int64) time.Time {
	return time.Unix(ts, 0).UTC()
}

func convertSession(s *store.Session) sessionView {
	return sessionView{
		ID:        s.ID,
		Title:     s.Title,
		Active:    s.IsActive,
		CreatedAt: unixTime(s.CreatedTs),
		UpdatedAt: unixTime(s.UpdatedTs),
	}
}

// convertMessage reports only the number of images, not their payloads.
func convertMessage(m *store.Message) messageView {
	return messageView{
		ID:        m.ID,
		Role:      string(m.Role),
		Content:   m.Content,
		Images:    len(m.Images),
		Timestamp: unixTime(m.Timestamp),
	}
}

func convertFact(f *store.UserFact) factView {
	return factView{
		Category:   string(f.Category),
		Key:        f.Key,
		Value:      f.Value,
		Confidence: f.Confidence,
		UpdatedAt:  unixTime(f.UpdatedTs),
	}
}

func convertTask(t *store.Task, now time.Time) taskView {
	v := taskView{
		ID:        t.ID,
		Title:     t.Title,
		Priority:  string(t.Priority),
		Status:    string(t.Status),
		Project:   t.ProjectName,
		Overdue:   t.IsOverdue(now),
		List:      t.HAListName,
		CreatedAt: unixTime(t.CreatedTs),
	}
	if t.DueTs != nil {
		due := unixTime(*t.DueTs)
		v.Due = &due
	}
	return v
}
