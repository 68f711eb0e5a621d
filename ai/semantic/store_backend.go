package semantic

import (
	"context"
	"fmt"

	"github.com/hrygo/aida/ai/core/embedding"
	"github.com/hrygo/aida/ai/internal/strutil"
	"github.com/hrygo/aida/store"
)

// StoreBackend keeps vectors in the relational store: BLOB columns on sqlite,
// a pgvector column on postgres.
type StoreBackend struct {
	store    *store.Store
	provider embedding.Provider
}

var _ Backend = (*StoreBackend)(nil)

// NewStoreBackend creates a backend. Wrap provider with cache.NewCachedEmbedder
// to avoid re-embedding repeated queries.
func NewStoreBackend(s *store.Store, provider embedding.Provider) *StoreBackend {
	return &StoreBackend{store: s, provider: provider}
}

// IsAvailable pings the embedding endpoint with a tiny uncached request.
func (b *StoreBackend) IsAvailable(ctx context.Context) bool {
	return pingProvider(ctx, b.provider)
}

func (b *StoreBackend) Add(ctx context.Context, entry Entry) (string, error) {
	vector, err := b.provider.Embed(ctx, entry.Content)
	if err != nil {
		return "", fmt.Errorf("embed message %d: %w", entry.MessageID, err)
	}
	saved, err := b.store.UpsertMessageEmbedding(ctx, &store.MessageEmbedding{
		ID:        EntryID(entry.MessageID),
		MessageID: entry.MessageID,
		SessionID: entry.SessionID,
		Content:   strutil.Head(entry.Content, ContentSnapshotRunes),
		Model:     b.provider.Model(),
		Embedding: vector,
		Timestamp: entry.Timestamp,
	})
	if err != nil {
		return "", err
	}
	return saved.ID, nil
}

func (b *StoreBackend) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		return []Result{}, nil
	}
	vector, err := b.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := b.store.MessageVectorSearch(ctx, &store.MessageVectorSearchOptions{
		Vector: vector,
		Limit:  k,
		Model:  b.provider.Model(),
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			ID:        hit.Embedding.ID,
			MessageID: hit.Embedding.MessageID,
			SessionID: hit.Embedding.SessionID,
			Content:   hit.Embedding.Content,
			Timestamp: hit.Embedding.Timestamp,
			Score:     hit.Score,
		})
	}
	return results, nil
}

func (b *StoreBackend) Delete(ctx context.Context, messageIDs []int64) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return b.store.DeleteMessageEmbeddings(ctx, messageIDs)
}

func (b *StoreBackend) Count(ctx context.Context) (int, error) {
	return b.store.CountMessageEmbeddings(ctx)
}

func (b *StoreBackend) Reset(ctx context.Context) error {
	return b.store.DeleteMessageEmbeddings(ctx, nil)
}

// AddBatch embeds entries in one provider call.
func (b *StoreBackend) AddBatch(ctx context.Context, entries []Entry) ([]string, error) {
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

	ids := make([]string, 0, len(entries))
	for i, entry := range entries {
		saved, err := b.store.UpsertMessageEmbedding(ctx, &store.MessageEmbedding{
			ID:        EntryID(entry.MessageID),
			MessageID: entry.MessageID,
			SessionID: entry.SessionID,
			Content:   strutil.Head(entry.Content, ContentSnapshotRunes),
			Model:     b.provider.Model(),
			Embedding: vectors[i],
			Timestamp: entry.Timestamp,
		})
		if err != nil {
			return ids, err
		}
		ids = append(ids, saved.ID)
	}
	return ids, nil
}
