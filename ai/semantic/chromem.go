package semantic

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/hrygo/aida/ai/core/embedding"
	"github.com/hrygo/aida/ai/internal/strutil"
)

const collectionName = "conversations"

// ChromemBackend keeps the index as a chromem-go persistent database on disk,
// independent of the relational schema.
type ChromemBackend struct {
	mu       sync.RWMutex
	db       *chromem.DB
	col      *chromem.Collection
	embedFn  chromem.EmbeddingFunc
	provider embedding.Provider
}

var _ Backend = (*ChromemBackend)(nil)

// NewChromemBackend opens (or creates) the index under dir.
func NewChromemBackend(dir string, provider embedding.Provider) (*ChromemBackend, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	embedFn := chromem.EmbeddingFunc(provider.Embed)
	col, err := db.GetOrCreateCollection(collectionName, map[string]string{"model": provider.Model()}, embedFn)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	return &ChromemBackend{db: db, col: col, embedFn: embedFn, provider: provider}, nil
}

// IsAvailable pings the embedding endpoint with a tiny uncached request.
func (b *ChromemBackend) IsAvailable(ctx context.Context) bool {
	return pingProvider(ctx, b.provider)
}

func (b *ChromemBackend) Add(ctx context.Context, entry Entry) (string, error) {
	id := EntryID(entry.MessageID)
	doc := chromem.Document{
		ID:      id,
		Content: strutil.Head(entry.Content, ContentSnapshotRunes),
		Metadata: map[string]string{
			"message_id": strconv.FormatInt(entry.MessageID, 10),
			"session_id": entry.SessionID,
			"timestamp":  strconv.FormatInt(entry.Timestamp, 10),
		},
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	// AddDocument overwrites documents with the same id.
	if err := b.col.AddDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("add document: %w", err)
	}
	return id, nil
}

func (b *ChromemBackend) Search(ctx context.Context, query string, k int) ([]Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := b.col.Count()
	if count == 0 || k <= 0 {
		return []Result{}, nil
	}
	// chromem rejects nResults larger than the collection.
	if k > count {
		k = count
	}

	hits, err := b.col.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		messageID, _ := strconv.ParseInt(hit.Metadata["message_id"], 10, 64)
		ts, _ := strconv.ParseInt(hit.Metadata["timestamp"], 10, 64)
		results = append(results, Result{
			ID:        hit.ID,
			MessageID: messageID,
			SessionID: hit.Metadata["session_id"],
			Content:   hit.Content,
			Timestamp: ts,
			Score:     hit.Similarity,
		})
	}
	return results, nil
}

func (b *ChromemBackend) Delete(ctx context.Context, messageIDs []int64) error {
	if len(messageIDs) == 0 {
		return nil
	}
	ids := make([]string, len(messageIDs))
	for i, id := range messageIDs {
		ids[i] = EntryID(id)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.col.Delete(ctx, nil, nil, ids...)
}

func (b *ChromemBackend) Count(_ context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.col.Count(), nil
}

// Reset drops the collection and starts an empty one.
func (b *ChromemBackend) Reset(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	col, err := b.db.GetOrCreateCollection(collectionName, map[string]string{"model": b.provider.Model()}, b.embedFn)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	b.col = col
	return nil
}

// AddBatch embeds entries in one provider call and stores them together.
func (b *ChromemBackend) AddBatch(ctx context.Context, entries []Entry) ([]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	texts := make([]string, len(entries))
	for i, entry := range entries {
		texts[i] = entry.Content
	}
	vectors, err := b.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}

	ids := make([]string, len(entries))
	docs := make([]chromem.Document, len(entries))
	for i, entry := range entries {
		ids[i] = EntryID(entry.MessageID)
		docs[i] = chromem.Document{
			ID:        ids[i],
			Content:   strutil.Head(entry.Content, ContentSnapshotRunes),
			Embedding: vectors[i],
			Metadata: map[string]string{
				"message_id": strconv.FormatInt(entry.MessageID, 10),
				"session_id": entry.SessionID,
				"timestamp":  strconv.FormatInt(entry.Timestamp, 10),
			},
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.col.AddDocuments(ctx, docs, 1); err != nil {
		return nil, fmt.Errorf("add documents: %w", err)
	}
	return ids, nil
}
