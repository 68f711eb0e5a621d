package store

import (
	"github.com/pkg/errors"
)

// MessageEmbedding is the vector of a message kept in the relational store.
type MessageEmbedding struct {
	ID        string
	MessageID int64
	SessionID string
	Content   string // truncated snapshot
	Model     string
	Embedding []float32
	Timestamp int64
	CreatedTs int64
}

// MessageWithScore is a vector search hit.
type MessageWithScore struct {
	Embedding *MessageEmbedding
	Score     float32 // cosine similarity, higher is more similar
}

// MessageVectorSearchOptions represents the options for message vector search.
type MessageVectorSearchOptions struct {
	Vector   []float32
	Limit    int
	MinScore float32
	Model    string
}

// Validate validates the MessageVectorSearchOptions.
func (o *MessageVectorSearchOptions) Validate() error {
	if len(o.Vector) == 0 {
		return errors.New("vector cannot be empty")
	}
	if o.Limit < 0 {
		return errors.Errorf("limit cannot be negative: %d", o.Limit)
	}
	if o.Limit == 0 {
		o.Limit = 10
	}
	if o.Limit > 1000 {
		return errors.Errorf("limit too large: %d (max 1000)", o.Limit)
	}
	return nil
}
