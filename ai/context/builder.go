// Package context assembles the memory block injected into the model's
// instructions: stored facts, related turns from earlier conversations and
// a summary of the current one. It makes no model calls.
package context

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/aida/ai/core/llm"
	"github.com/hrygo/aida/ai/internal/strutil"
	"github.com/hrygo/aida/ai/semantic"
	"github.com/hrygo/aida/store"
)

const (
	// DefaultMinScore is the similarity floor for recalled history.
	DefaultMinScore float32 = 0.4
	// DefaultMaxSemanticResults caps recalled history lines.
	DefaultMaxSemanticResults = 3

	historySnippetRunes  = 200
	summarySnippetRunes  = 100
	summaryMinMessages   = 4
	summaryRecentWindow  = 4
	defaultHistoryLength = 20
)

// Store is the read side of the memory store the builder needs.
type Store interface {
	ListFacts(ctx context.Context, category *store.FactCategory) ([]*store.UserFact, error)
	ListMessages(ctx context.Context, sessionID string, limit int) ([]*store.Message, error)
	GetRecentMessages(ctx context.Context, sessionID string, count int) ([]*store.Message, error)
}

// Searcher finds related turns from other sessions.
type Searcher interface {
	SearchExcludingSession(ctx context.Context, query, sessionID string, k int, minScore float32) []semantic.Result
}

// Request describes what to put into a MemoryContext.
type Request struct {
	CurrentMessage     string
	SessionID          string
	IncludeFacts       bool
	IncludeSemantic    bool
	MaxSemanticResults int
	MinScore           float32
}

// NewRequest returns a request with every source enabled and default limits.
func NewRequest(message, sessionID string) *Request {
	return &Request{
		CurrentMessage:     message,
		SessionID:          sessionID,
		IncludeFacts:       true,
		IncludeSemantic:    true,
		MaxSemanticResults: DefaultMaxSemanticResults,
		MinScore:           DefaultMinScore,
	}
}

// MemoryContext is the assembled memory for one turn.
type MemoryContext struct {
	UserFacts       string
	RelevantHistory string
	SessionSummary  string
}

// IsEmpty reports whether there is nothing to inject.
func (m *MemoryContext) IsEmpty() bool {
	return m.UserFacts == "" && m.RelevantHistory == "" && m.SessionSummary == ""
}

// SystemPromptAddition renders the context for the system message.
func (m *MemoryContext) SystemPromptAddition() string {
	var parts []string
	if m.UserFacts != "" {
		parts = append(parts, m.UserFacts)
	}
	if m.RelevantHistory != "" {
		parts = append(parts, "\nRelevant past conversations:\n"+m.RelevantHistory)
	}
	if m.SessionSummary != "" {
		parts = append(parts, "\nCurrent conversation summary:\n"+m.SessionSummary)
	}
	return strings.Join(parts, "\n")
}

// Builder builds MemoryContext values.
type Builder struct {
	store    Store
	searcher Searcher
	location *time.Location
}

// NewBuilder creates a Builder. searcher may be nil when no semantic index is configured.
func NewBuilder(s Store, searcher Searcher) *Builder {
	return &Builder{store: s, searcher: searcher, location: time.Local}
}

// WithLocation sets the zone used to print recalled message dates.
func (b *Builder) WithLocation(loc *time.Location) *Builder {
	b.location = loc
	return b
}

// BuildContext assembles the context for req. A source that fails is logged
// and left empty.
func (b *Builder) BuildContext(ctx context.Context, req *Request) (*MemoryContext, error) {
	result := &MemoryContext{}

	if req.IncludeFacts {
		facts, err := b.store.ListFacts(ctx, nil)
		if err != nil {
			slog.Warn("failed to load user facts", "error", err)
		} else {
			result.UserFacts = FormatFacts(facts)
		}
	}

	if req.IncludeSemantic && b.searcher != nil && req.CurrentMessage != "" {
		result.RelevantHistory = b.relevantHistory(ctx, req)
	}

	if req.SessionID != "" {
		summary, err := b.SummarizeSession(ctx, req.SessionID)
		if err != nil {
			slog.Warn("failed to summarize session", "session_id", req.SessionID, "error", err)
		}
		result.SessionSummary = summary
	}

	return result, nil
}

func (b *Builder) relevantHistory(ctx context.Context, req *Request) string {
	limit := req.MaxSemanticResults
	if limit <= 0 {
		limit = DefaultMaxSemanticResults
	}
	results := b.searcher.SearchExcludingSession(ctx, req.CurrentMessage, req.SessionID, limit, req.MinScore)

	lines := make([]string, 0, len(results))
	for _, r := range results {
		if req.SessionID != "" && r.SessionID == req.SessionID {
			continue
		}
		line := fmt.Sprintf("- %s...", strutil.Head(r.Content, historySnippetRunes))
		if t := r.Time(); !t.IsZero() {
			line += fmt.Sprintf(" (%s)", t.In(b.location).Format("2006-01-02"))
		}
		lines = append(lines, line)
		if len(lines) == limit {
			break
		}
	}
	return strings.Join(lines, "\n")
}

// SummarizeSession describes where the conversation started and what it is
// about now. Sessions with four or fewer messages get no summary.
func (b *Builder) SummarizeSession(ctx context.Context, sessionID string) (string, error) {
	messages, err := b.store.ListMessages(ctx, sessionID, 0)
	if err != nil {
		return "", err
	}
	if len(messages) <= summaryMinMessages {
		return "", nil
	}

	var parts []string
	if first := firstUserMessage(messages); first != nil {
		parts = append(parts, "Started with: "+strutil.Head(first.Content, summarySnippetRunes))
	}
	if recent := firstUserMessage(messages[len(messages)-summaryRecentWindow:]); recent != nil {
		parts = append(parts, "Recently discussed: "+strutil.Head(recent.Content, summarySnippetRunes))
	}
	return strings.Join(parts, " | "), nil
}

func firstUserMessage(messages []*store.Message) *store.Message {
	for _, msg := range messages {
		if msg.Role == store.RoleUser {
			return msg
		}
	}
	return nil
}

// ConversationHistory returns the last limit messages of a session as model messages.
func (b *Builder) ConversationHistory(ctx context.Context, sessionID string, limit int) ([]llm.Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLength
	}
	messages, err := b.store.GetRecentMessages(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	history := make([]llm.Message, 0, len(messages))
	for _, msg := range messages {
		history = append(history, llm.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
			Images:  msg.Images,
		})
	}
	return history, nil
}
