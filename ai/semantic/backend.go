// Package semantic keeps the vector index over past messages.
// The index is derived data: it can be dropped and rebuilt from the store at any time.
package semantic

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/hrygo/aida/ai/core/embedding"
)

// ContentSnapshotRunes is how much of a message is copied into the index.
const ContentSnapshotRunes = 500

// ErrUnavailable is returned by backends that cannot serve requests right now.
var ErrUnavailable = errors.New("semantic index unavailable")

// Entry is a message to be indexed.
type Entry struct {
	MessageID int64
	SessionID string
	Content   string
	Timestamp int64
}

// Result is a scored search hit.
type Result struct {
	ID        string
	MessageID int64
	SessionID string
	Content   string
	Timestamp int64
	Score     float32
}

// Time returns the message time, zero when unknown.
func (r Result) Time() time.Time {
	if r.Timestamp <= 0 {
		return time.Time{}
	}
	return time.Unix(r.Timestamp, 0)
}

// Backend stores message vectors and answers similarity queries.
type Backend interface {
	// IsAvailable reports whether the backend can serve requests.
	IsAvailable(ctx context.Context) bool

	// Add embeds and stores an entry, replacing an earlier one for the same message.
	// It returns the entry id.
	Add(ctx context.Context, entry Entry) (string, error)

	// Search returns up to k nearest entries, most similar first.
	Search(ctx context.Context, query string, k int) ([]Result, error)

	// Delete removes the entries of the given messages.
	Delete(ctx context.Context, messageIDs []int64) error

	Count(ctx context.Context) (int, error)

	// Reset drops every entry.
	Reset(ctx context.Context) error
}

// EntryID is the id under which a message is indexed.
func EntryID(messageID int64) string {
	return "msg_" + strconv.FormatInt(messageID, 10)
}

// pinger is implemented by providers that can check the endpoint without
// going through a cache, see cache.CachedEmbedder.
type pinger interface {
	Ping(ctx context.Context) error
}

// pingProvider reports whether the embedding endpoint answers now.
func pingProvider(ctx context.Context, provider embedding.Provider) bool {
	var err error
	if p, ok := provider.(pinger); ok {
		err = p.Ping(ctx)
	} else {
		_, err = provider.Embed(ctx, "ping")
	}
	if err != nil {
		slog.Debug("embedding provider unavailable", "error", err)
		return false
	}
	return true
}
