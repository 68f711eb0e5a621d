package postgres

import (
	"context"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/aida/store"
)

// UpsertMessageEmbedding inserts or replaces the vector of a message.
func (d *DB) UpsertMessageEmbedding(ctx context.Context, embedding *store.MessageEmbedding) (*store.MessageEmbedding, error) {
	stmt := `
		INSERT INTO message_embedding (id, message_id, session_id, content, model, embedding, timestamp, created_ts)
		VALUES (` + placeholders(8) + `)
		ON CONFLICT (message_id)
		DO UPDATE SET
			id = EXCLUDED.id,
			content = EXCLUDED.content,
			model = EXCLUDED.model,
			embedding = EXCLUDED.embedding
		RETURNING id, created_ts
	`

	vector := pgvector.NewVector(embedding.Embedding)
	err := d.db.QueryRowContext(ctx, stmt,
		embedding.ID,
		embedding.MessageID,
		embedding.SessionID,
		embedding.Content,
		embedding.Model,
		vector,
		embedding.Timestamp,
		embedding.CreatedTs,
	).Scan(&embedding.ID, &embedding.CreatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert message embedding")
	}
	return embedding, nil
}

// MessageVectorSearch orders by cosine distance with the pgvector <=> operator.
func (d *DB) MessageVectorSearch(ctx context.Context, opts *store.MessageVectorSearchOptions) ([]*store.MessageWithScore, error) {
	query := `
		SELECT id, message_id, session_id, content, model, embedding, timestamp, created_ts,
			1 - (embedding <=> $1) AS score
		FROM message_embedding
		WHERE ($2 = '' OR model = $2)
			AND 1 - (embedding <=> $1) >= $3
		ORDER BY embedding <=> $1
		LIMIT $4
	`
	rows, err := d.db.QueryContext(ctx, query, pgvector.NewVector(opts.Vector), opts.Model, opts.MinScore, opts.Limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search message embeddings")
	}
	defer rows.Close()

	results := []*store.MessageWithScore{}
	for rows.Next() {
		var embedding store.MessageEmbedding
		var vector pgvector.Vector
		var score float64
		if err := rows.Scan(
			&embedding.ID,
			&embedding.MessageID,
			&embedding.SessionID,
			&embedding.Content,
			&embedding.Model,
			&vector,
			&embedding.Timestamp,
			&embedding.CreatedTs,
			&score,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan message embedding")
		}
		embedding.Embedding = vector.Slice()
		results = append(results, &store.MessageWithScore{Embedding: &embedding, Score: float32(score)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (d *DB) DeleteMessageEmbeddings(ctx context.Context, messageIDs []int64) error {
	if len(messageIDs) == 0 {
		_, err := d.db.ExecContext(ctx, `DELETE FROM message_embedding`)
		return errors.Wrap(err, "failed to delete message embeddings")
	}
	_, err := d.db.ExecContext(ctx, `DELETE FROM message_embedding WHERE message_id = ANY($1)`, pq.Array(messageIDs))
	return errors.Wrap(err, "failed to delete message embeddings")
}

func (d *DB) CountMessageEmbeddings(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM message_embedding`).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count message embeddings")
	}
	return count, nil
}
