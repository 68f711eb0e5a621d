// Package memory is the assistant's long-term memory: conversation
// sessions, remembered facts about the user and recall of earlier turns.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	ctxpkg "github.com/hrygo/aida/ai/context"
	"github.com/hrygo/aida/ai/internal/strutil"
	"github.com/hrygo/aida/ai/semantic"
	"github.com/hrygo/aida/store"
)

const (
	// titleMessageThreshold: sessions are titled while they have at most this many messages.
	titleMessageThreshold = 2
	searchMessageLimit    = 10
	searchSnippetRunes    = 200
	searchSemanticLimit   = 5
	searchMinScore        = 0.3
	clearSessionBatch     = 500
)

// Manager ties the store, the semantic index and the context builder together
// and tracks the current session.
type Manager struct {
	store   *store.Store
	index   *semantic.Index
	worker  *semantic.Worker
	builder *ctxpkg.Builder

	mu        sync.Mutex
	sessionID string
}

// NewManager creates a Manager. index and worker may be nil when semantic
// recall is disabled; messages are then stored but never embedded.
func NewManager(s *store.Store, index *semantic.Index, worker *semantic.Worker) *Manager {
	var searcher ctxpkg.Searcher
	if index != nil {
		searcher = index
	}
	return &Manager{
		store:   s,
		index:   index,
		worker:  worker,
		builder: ctxpkg.NewBuilder(s, searcher),
	}
}

func (m *Manager) Store() *store.Store {
	return m.store
}

func (m *Manager) Builder() *ctxpkg.Builder {
	return m.builder
}

// CurrentSessionID returns the session new interactions go to, "" before the first one.
func (m *Manager) CurrentSessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// StartSession begins a new active session.
func (m *Manager) StartSession(ctx context.Context, title string) (*store.Session, error) {
	session, err := m.store.CreateSession(ctx, title)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessionID = session.ID
	m.mu.Unlock()
	slog.Debug("memory session started", "session_id", session.ID)
	return session, nil
}

// ResumeSession makes an existing session active. It reports false when the session does not exist.
func (m *Manager) ResumeSession(ctx context.Context, id string) (bool, error) {
	session, err := m.store.GetSession(ctx, id)
	if err != nil {
		return false, err
	}
	if session == nil {
		return false, nil
	}
	if err := m.store.SetActiveSession(ctx, id); err != nil {
		return false, err
	}
	m.mu.Lock()
	m.sessionID = id
	m.mu.Unlock()
	return true, nil
}

// GetOrCreateSession continues the active session, starting one when there is none.
func (m *Manager) GetOrCreateSession(ctx context.Context) (string, error) {
	active, err := m.store.GetActiveSession(ctx)
	if err != nil {
		return "", err
	}
	if active != nil {
		m.mu.Lock()
		m.sessionID = active.ID
		m.mu.Unlock()
		return active.ID, nil
	}
	session, err := m.StartSession(ctx, "")
	if err != nil {
		return "", err
	}
	return session.ID, nil
}

func (m *Manager) ensureSession(ctx context.Context) (string, error) {
	if id := m.CurrentSessionID(); id != "" {
		return id, nil
	}
	return m.GetOrCreateSession(ctx)
}

// AddInteraction records a user message and the reply, learns facts from the
// user message, titles new sessions and queues both messages for indexing.
func (m *Manager) AddInteraction(ctx context.Context, userMessage, assistantResponse string, images []string) error {
	sessionID, err := m.ensureSession(ctx)
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}

	userMsg, err := m.store.AppendMessage(ctx, sessionID, store.RoleUser, userMessage, images)
	if err != nil {
		return fmt.Errorf("store user message: %w", err)
	}
	assistantMsg, err := m.store.AppendMessage(ctx, sessionID, store.RoleAssistant, assistantResponse, nil)
	if err != nil {
		return fmt.Errorf("store assistant message: %w", err)
	}

	for _, fact := range ExtractFacts(userMessage) {
		if _, err := m.store.SetFact(ctx, fact.Category, fact.Key, fact.Value, ExtractedFactConfidence, &userMsg.ID); err != nil {
			slog.Warn("failed to store extracted fact", "key", fact.Key, "error", err)
		}
	}

	count, err := m.store.CountMessages(ctx, sessionID)
	if err != nil {
		slog.Warn("failed to count session messages", "session_id", sessionID, "error", err)
	} else if count <= titleMessageThreshold {
		if err := m.store.UpdateSessionTitle(ctx, sessionID, SessionTitle(userMessage)); err != nil {
			slog.Warn("failed to title session", "session_id", sessionID, "error", err)
		}
	}

	m.queueEmbedding(ctx, userMsg)
	m.queueEmbedding(ctx, assistantMsg)
	return nil
}

func (m *Manager) queueEmbedding(ctx context.Context, msg *store.Message) {
	if m.worker == nil || strings.TrimSpace(msg.Content) == "" || !m.index.IsAvailable(ctx) {
		return
	}
	m.worker.Enqueue(semantic.Entry{
		MessageID: msg.ID,
		SessionID: msg.SessionID,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	})
}

// ContextOptions selects the memory sources for ContextForMessage.
type ContextOptions struct {
	IncludeFacts       bool
	IncludeSemantic    bool
	MaxSemanticResults int
}

// DefaultContextOptions enables every source.
func DefaultContextOptions() ContextOptions {
	return ContextOptions{IncludeFacts: true, IncludeSemantic: true, MaxSemanticResults: ctxpkg.DefaultMaxSemanticResults}
}

// ContextForMessage returns the text to add to the system prompt, "" when there is nothing to add.
func (m *Manager) ContextForMessage(ctx context.Context, message string, opts ContextOptions) string {
	req := ctxpkg.NewRequest(message, m.CurrentSessionID())
	req.IncludeFacts = opts.IncludeFacts
	req.IncludeSemantic = opts.IncludeSemantic
	if opts.MaxSemanticResults > 0 {
		req.MaxSemanticResults = opts.MaxSemanticResults
	}

	mc, err := m.builder.BuildContext(ctx, req)
	if err != nil {
		slog.Warn("failed to build memory context", "error", err)
		return ""
	}
	if mc.IsEmpty() {
		return ""
	}
	return mc.SystemPromptAddition()
}

// RecentSessions lists sessions, most recently updated first.
func (m *Manager) RecentSessions(ctx context.Context, limit int) ([]*store.Session, error) {
	return m.store.ListSessions(ctx, limit, 0)
}

// RememberFact stores a fact the user stated explicitly.
func (m *Manager) RememberFact(ctx context.Context, category store.FactCategory, key, value string) (*store.UserFact, error) {
	return m.store.SetFact(ctx, category, key, value, 1.0, nil)
}

// FactHit is a fact matching a memory search.
type FactHit struct {
	Category store.FactCategory `json:"category"`
	Key      string             `json:"key"`
	Value    string             `json:"value"`
}

// MessageHit is a stored message matching a memory search.
type MessageHit struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SemanticHit is a semantically related message.
type SemanticHit struct {
	SessionID string    `json:"session_id"`
	Content   string    `json:"content"`
	Score     float32   `json:"score"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// SearchResults groups memory search hits by source.
type SearchResults struct {
	Facts    []FactHit     `json:"facts"`
	Messages []MessageHit  `json:"messages"`
	Semantic []SemanticHit `json:"semantic"`
}

// IsEmpty reports whether nothing matched.
func (r *SearchResults) IsEmpty() bool {
	return len(r.Facts) == 0 && len(r.Messages) == 0 && len(r.Semantic) == 0
}

// SearchOptions selects the sources for SearchMemory.
type SearchOptions struct {
	IncludeFacts         bool
	IncludeConversations bool
}

// SearchMemory looks for query in facts (substring of key or value), in
// message text and in the semantic index.
func (m *Manager) SearchMemory(ctx context.Context, query string, opts SearchOptions) (*SearchResults, error) {
	results := &SearchResults{Facts: []FactHit{}, Messages: []MessageHit{}, Semantic: []SemanticHit{}}
	query = strings.TrimSpace(query)
	if query == "" {
		return results, nil
	}
	needle := strings.ToLower(query)

	if opts.IncludeFacts {
		facts, err := m.store.ListFacts(ctx, nil)
		if err != nil {
			return nil, err
		}
		for _, fact := range facts {
			if strings.Contains(strings.ToLower(fact.Value), needle) || strings.Contains(strings.ToLower(fact.Key), needle) {
				results.Facts = append(results.Facts, FactHit{Category: fact.Category, Key: fact.Key, Value: fact.Value})
			}
		}
	}

	if !opts.IncludeConversations {
		return results, nil
	}

	messages, err := m.store.SearchMessages(ctx, query, "")
	if err != nil {
		return nil, err
	}
	for _, msg := range messages {
		if len(results.Messages) == searchMessageLimit {
			break
		}
		results.Messages = append(results.Messages, MessageHit{
			SessionID: msg.SessionID,
			Role:      string(msg.Role),
			Content:   strutil.Head(msg.Content, searchSnippetRunes),
			Timestamp: msg.Time(),
		})
	}

	if m.index != nil {
		for _, r := range m.index.Search(ctx, query, searchSemanticLimit, searchMinScore) {
			results.Semantic = append(results.Semantic, SemanticHit{
				SessionID: r.SessionID,
				Content:   r.Content,
				Score:     r.Score,
				Timestamp: r.Time(),
			})
		}
	}
	return results, nil
}

// UserSummary describes what is remembered: counts followed by the formatted facts.
func (m *Manager) UserSummary(ctx context.Context) (string, error) {
	sessions, err := m.store.CountSessions(ctx)
	if err != nil {
		return "", err
	}
	facts, err := m.store.ListFacts(ctx, nil)
	if err != nil {
		return "", err
	}
	embeddings := 0
	if m.index != nil {
		embeddings = m.index.Count(ctx)
	}

	var sb strings.Builder
	sb.WriteString("Memory statistics:\n")
	fmt.Fprintf(&sb, "- %d conversation sessions\n", sessions)
	fmt.Fprintf(&sb, "- %d stored facts\n", len(facts))
	fmt.Fprintf(&sb, "- %d semantic embeddings\n", embeddings)
	if formatted := ctxpkg.FormatFacts(facts); formatted != "" {
		sb.WriteString("\n")
		sb.WriteString(formatted)
	}
	return sb.String(), nil
}

// ClearAll forgets everything: sessions with their messages, facts and the index.
func (m *Manager) ClearAll(ctx context.Context) error {
	for {
		sessions, err := m.store.ListSessions(ctx, clearSessionBatch, 0)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			break
		}
		for _, session := range sessions {
			if err := m.store.DeleteSession(ctx, session.ID); err != nil {
				return err
			}
		}
	}
	if err := m.store.ClearFacts(ctx); err != nil {
		return err
	}
	if m.index != nil {
		if err := m.index.Reset(ctx); err != nil {
			slog.Warn("failed to reset semantic index", "error", err)
		}
	}

	m.mu.Lock()
	m.sessionID = ""
	m.mu.Unlock()
	return nil
}

// Reindex rebuilds the semantic index from every stored user and assistant message.
func (m *Manager) Reindex(ctx context.Context) (int, error) {
	if m.index == nil {
		return 0, semantic.ErrUnavailable
	}
	messages, err := m.store.ListIndexableMessages(ctx)
	if err != nil {
		return 0, err
	}
	return m.index.Rebuild(ctx, messages, m.store)
}
