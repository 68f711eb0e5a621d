package semantic

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hrygo/aida/store"
)

const (
	rebuildBatchSize = 32
	availabilityTTL  = 30 * time.Second
)

// BatchAdder is implemented by backends that can embed several entries per request.
type BatchAdder interface {
	AddBatch(ctx context.Context, entries []Entry) ([]string, error)
}

// Index enforces the search contract on top of a Backend: results are
// filtered by score, sorted, capped, and never an error. An unavailable
// backend yields an empty result.
type Index struct {
	backend Backend

	mu             sync.Mutex
	available      bool
	availableUntil time.Time
	now            func() time.Time
}

// NewIndex creates an Index over backend. A nil backend is always unavailable.
func NewIndex(backend Backend) *Index {
	return &Index{backend: backend, now: time.Now}
}

// IsAvailable reports whether the backend is configured and reachable.
// The check result is reused for a short while.
func (i *Index) IsAvailable(ctx context.Context) bool {
	if i == nil || i.backend == nil {
		return false
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.now().Before(i.availableUntil) {
		return i.available
	}
	i.available = i.backend.IsAvailable(ctx)
	i.availableUntil = i.now().Add(availabilityTTL)
	return i.available
}

// Add indexes a single message.
func (i *Index) Add(ctx context.Context, entry Entry) (string, error) {
	if i == nil || i.backend == nil {
		return "", ErrUnavailable
	}
	return i.backend.Add(ctx, entry)
}

// Search returns at most k results with score >= minScore, most similar first.
func (i *Index) Search(ctx context.Context, query string, k int, minScore float32) []Result {
	return i.search(ctx, query, k, k, minScore, nil)
}

// SearchExcludingSession drops results from sessionID, used for recalling other conversations.
func (i *Index) SearchExcludingSession(ctx context.Context, query, sessionID string, k int, minScore float32) []Result {
	return i.search(ctx, query, k*2, k, minScore, func(r Result) bool {
		return sessionID == "" || r.SessionID != sessionID
	})
}

func (i *Index) search(ctx context.Context, query string, fetch, k int, minScore float32, keep func(Result) bool) []Result {
	results := []Result{}
	if k <= 0 || query == "" || !i.IsAvailable(ctx) {
		return results
	}

	hits, err := i.backend.Search(ctx, query, fetch)
	if err != nil {
		slog.Warn("semantic search failed", "error", err)
		return results
	}

	for _, hit := range hits {
		if hit.Score < minScore {
			continue
		}
		if keep != nil && !keep(hit) {
			continue
		}
		results = append(results, hit)
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Count returns the number of indexed entries, 0 when unavailable.
func (i *Index) Count(ctx context.Context) int {
	if i == nil || i.backend == nil {
		return 0
	}
	count, err := i.backend.Count(ctx)
	if err != nil {
		slog.Warn("failed to count semantic index", "error", err)
		return 0
	}
	return count
}

// Delete removes the entries of the given messages.
func (i *Index) Delete(ctx context.Context, messageIDs []int64) error {
	if i == nil || i.backend == nil {
		return ErrUnavailable
	}
	return i.backend.Delete(ctx, messageIDs)
}

// Reset drops every entry.
func (i *Index) Reset(ctx context.Context) error {
	if i == nil || i.backend == nil {
		return ErrUnavailable
	}
	return i.backend.Reset(ctx)
}

// IDWriter records the index entry id on the source message.
type IDWriter interface {
	UpdateMessageEmbeddingID(ctx context.Context, messageID int64, embeddingID string) error
}

// Rebuild drops the index and re-embeds messages in batches. It returns the
// number of messages indexed; a failed batch is logged and skipped.
func (i *Index) Rebuild(ctx context.Context, messages []*store.Message, ids IDWriter) (int, error) {
	if i == nil || i.backend == nil {
		return 0, ErrUnavailable
	}
	if err := i.backend.Reset(ctx); err != nil {
		return 0, err
	}

	entries := make([]Entry, 0, len(messages))
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		entries = append(entries, Entry{
			MessageID: msg.ID,
			SessionID: msg.SessionID,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		})
	}

	indexed := 0
	for start := 0; start < len(entries); start += rebuildBatchSize {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		end := min(start+rebuildBatchSize, len(entries))
		batch := entries[start:end]

		entryIDs, err := i.addBatch(ctx, batch)
		if err != nil {
			slog.Warn("failed to index batch", "from", start, "to", end, "error", err)
		}
		for n, id := range entryIDs {
			indexed++
			if ids == nil {
				continue
			}
			if err := ids.UpdateMessageEmbeddingID(ctx, batch[n].MessageID, id); err != nil {
				slog.Warn("failed to link message to index entry", "message_id", batch[n].MessageID, "error", err)
			}
		}
	}
	return indexed, nil
}

func (i *Index) addBatch(ctx context.Context, batch []Entry) ([]string, error) {
	if adder, ok := i.backend.(BatchAdder); ok {
		return adder.AddBatch(ctx, batch)
	}
	ids := make([]string, 0, len(batch))
	for _, entry := range batch {
		id, err := i.backend.Add(ctx, entry)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
