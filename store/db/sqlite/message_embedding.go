package sqlite

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/aida/store"
)

// float32ArrayToBLOB encodes a vector as little-endian float32 values.
func float32ArrayToBLOB(vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, errors.New("empty vector")
	}
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	return buf, nil
}

// blobToFloat32Array is the inverse of float32ArrayToBLOB.
func blobToFloat32Array(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("invalid BLOB length: %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : i*4+4]))
	}
	return vec, nil
}

// UpsertMessageEmbedding stores the vector of a message, replacing an earlier one.
func (d *DB) UpsertMessageEmbedding(ctx context.Context, embedding *store.MessageEmbedding) (*store.MessageEmbedding, error) {
	vectorBLOB, err := float32ArrayToBLOB(embedding.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert embedding vector to BLOB")
	}

	stmt := `INSERT INTO message_embedding (id, message_id, session_id, content, model, embedding, timestamp, created_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (message_id) DO UPDATE SET
			id = excluded.id,
			content = excluded.content,
			model = excluded.model,
			embedding = excluded.embedding
		RETURNING id, created_ts`
	err = d.db.QueryRowContext(ctx, stmt,
		embedding.ID,
		embedding.MessageID,
		embedding.SessionID,
		embedding.Content,
		embedding.Model,
		vectorBLOB,
		embedding.Timestamp,
		embedding.CreatedTs,
	).Scan(&embedding.ID, &embedding.CreatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert message embedding")
	}
	return embedding, nil
}

// MessageVectorSearch scores every stored vector with cosine similarity in Go.
// Fine for a single user's history; postgres uses pgvector instead.
func (d *DB) MessageVectorSearch(ctx context.Context, opts *store.MessageVectorSearchOptions) ([]*store.MessageWithScore, error) {
	query := `SELECT id, message_id, session_id, content, model, embedding, timestamp, created_ts FROM message_embedding`
	args := []any{}
	if opts.Model != "" {
		query += ` WHERE model = ?`
		args = append(args, opts.Model)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query message embeddings")
	}
	defer rows.Close()

	results := []*store.MessageWithScore{}
	for rows.Next() {
		var embedding store.MessageEmbedding
		var vectorBLOB []byte
		if err := rows.Scan(
			&embedding.ID,
			&embedding.MessageID,
			&embedding.SessionID,
			&embedding.Content,
			&embedding.Model,
			&vectorBLOB,
			&embedding.Timestamp,
			&embedding.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan message embedding")
		}
		vector, err := blobToFloat32Array(vectorBLOB)
		if err != nil {
			return nil, errors.Wrap(err, "failed to convert embedding BLOB to array")
		}
		score := cosineSimilarity(opts.Vector, vector)
		if score < opts.MinScore {
			continue
		}
		embedding.Embedding = vector
		results = append(results, &store.MessageWithScore{Embedding: &embedding, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// cosineSimilarity computes cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct float32
	var normA float32
	var normB float32

	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

func (d *DB) DeleteMessageEmbeddings(ctx context.Context, messageIDs []int64) error {
	if len(messageIDs) == 0 {
		_, err := d.db.ExecContext(ctx, `DELETE FROM message_embedding`)
		return errors.Wrap(err, "failed to delete message embeddings")
	}
	marks := make([]string, len(messageIDs))
	args := make([]any, len(messageIDs))
	for i, id := range messageIDs {
		marks[i], args[i] = "?", id
	}
	_, err := d.db.ExecContext(ctx, `DELETE FROM message_embedding WHERE message_id IN (`+strings.Join(marks, ", ")+`)`, args...)
	return errors.Wrap(err, "failed to delete message embeddings")
}

func (d *DB) CountMessageEmbeddings(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM message_embedding`).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count message embeddings")
	}
	return count, nil
}
