package postgres

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/aida/store"
)

func (d *DB) CreateMessage(ctx context.Context, create *store.CreateMessage) (*store.Message, error) {
	images := create.Images
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode images")
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	message := &store.Message{
		SessionID: create.SessionID,
		Role:      create.Role,
		Content:   create.Content,
		Images:    create.Images,
		Timestamp: create.Timestamp,
	}
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO messages (session_id, role, content, images, timestamp) VALUES (`+placeholders(5)+`) RETURNING id`,
		create.SessionID, create.Role, create.Content, string(imagesJSON), create.Timestamp,
	).Scan(&message.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create message")
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_ts = $1 WHERE id = $2`, create.Timestamp, create.SessionID); err != nil {
		return nil, errors.Wrap(err, "failed to touch session")
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}
	return message, nil
}

const messageColumns = `id, session_id, role, content, images, timestamp, embedding_id`

func scanMessage(row scanner) (*store.Message, error) {
	var message store.Message
	var images []byte
	if err := row.Scan(&message.ID, &message.SessionID, &message.Role, &message.Content, &images, &message.Timestamp, &message.EmbeddingID); err != nil {
		return nil, err
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &message.Images); err != nil {
			return nil, errors.Wrap(err, "failed to decode images")
		}
		if len(message.Images) == 0 {
			message.Images = nil
		}
	}
	return &message, nil
}

func (d *DB) ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.SessionID != nil {
		where, args = append(where, "session_id = "+placeholder(len(args)+1)), append(args, *find.SessionID)
	}
	if find.Query != "" {
		where, args = append(where, "content ILIKE "+placeholder(len(args)+1)), append(args, "%"+find.Query+"%")
	}
	if len(find.Roles) > 0 {
		roles := make([]string, len(find.Roles))
		for i, role := range find.Roles {
			roles[i] = string(role)
		}
		where, args = append(where, "role = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(roles))
	}

	order := "ASC"
	if find.Descending {
		order = "DESC"
	}
	query := `SELECT ` + messageColumns + ` FROM messages WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY timestamp ` + order + `, id ` + order
	if find.Limit > 0 {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, find.Limit)
	}
	return d.queryMessages(ctx, query, args...)
}

func (d *DB) ListRecentMessages(ctx context.Context, sessionID string, count int) ([]*store.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM (
		SELECT ` + messageColumns + ` FROM messages
		WHERE session_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	) recent ORDER BY timestamp ASC, id ASC`
	return d.queryMessages(ctx, query, sessionID, count)
}

func (d *DB) queryMessages(ctx context.Context, query string, args ...any) ([]*store.Message, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list messages")
	}
	defer rows.Close()

	list := []*store.Message{}
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan message")
		}
		list = append(list, message)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) CountMessages(ctx context.Context, sessionID string) (int, error) {
	var count int
	var err error
	if sessionID == "" {
		err = d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	} else {
		err = d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE session_id = $1`, sessionID).Scan(&count)
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to count messages")
	}
	return count, nil
}

func (d *DB) UpdateMessageEmbeddingID(ctx context.Context, messageID int64, embeddingID string) error {
	_, err := d.db.ExecContext(ctx, `UPDATE messages SET embedding_id = $1 WHERE id = $2`, embeddingID, messageID)
	return errors.Wrap(err, "failed to update message embedding id")
}
