package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/hrygo/aida/store"
)

const factColumns = `id, category, key, value, confidence, source_message_id, created_ts, updated_ts`

func (d *DB) UpsertUserFact(ctx context.Context, upsert *store.UpsertUserFact) (*store.UserFact, error) {
	stmt := `
		INSERT INTO user_facts (category, key, value, confidence, source_message_id, created_ts, updated_ts)
		VALUES (` + placeholders(7) + `)
		ON CONFLICT (category, key) DO UPDATE SET
			value = EXCLUDED.value,
			confidence = EXCLUDED.confidence,
			source_message_id = EXCLUDED.source_message_id,
			updated_ts = EXCLUDED.updated_ts
		RETURNING ` + factColumns
	fact, err := scanFact(d.db.QueryRowContext(ctx, stmt,
		upsert.Category,
		upsert.Key,
		upsert.Value,
		upsert.Confidence,
		int64PtrValue(upsert.SourceMessageID),
		upsert.Ts,
		upsert.Ts,
	))
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert user fact")
	}
	return fact, nil
}

func scanFact(row scanner) (*store.UserFact, error) {
	var fact store.UserFact
	var source sql.NullInt64
	if err := row.Scan(&fact.ID, &fact.Category, &fact.Key, &fact.Value, &fact.Confidence, &source, &fact.CreatedTs, &fact.UpdatedTs); err != nil {
		return nil, err
	}
	fact.SourceMessageID = nullInt64Ptr(source)
	return &fact, nil
}

func (d *DB) GetUserFact(ctx context.Context, category store.FactCategory, key string) (*store.UserFact, error) {
	fact, err := scanFact(d.db.QueryRowContext(ctx,
		`SELECT `+factColumns+` FROM user_facts WHERE category = $1 AND key = $2`, category, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return fact, errors.Wrap(err, "failed to get user fact")
}

func (d *DB) ListUserFacts(ctx context.Context, find *store.FindUserFact) ([]*store.UserFact, error) {
	query := `SELECT ` + factColumns + ` FROM user_facts`
	args := []any{}
	if find.Category != nil {
		query += ` WHERE category = $1`
		args = append(args, *find.Category)
	}
	query += ` ORDER BY category, key`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list user facts")
	}
	defer rows.Close()

	list := []*store.UserFact{}
	for rows.Next() {
		fact, err := scanFact(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan user fact")
		}
		list = append(list, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) DeleteUserFact(ctx context.Context, category store.FactCategory, key string) (bool, error) {
	result, err := d.db.ExecContext(ctx, `DELETE FROM user_facts WHERE category = $1 AND key = $2`, category, key)
	if err != nil {
		return false, errors.Wrap(err, "failed to delete user fact")
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (d *DB) ClearUserFacts(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM user_facts`)
	return errors.Wrap(err, "failed to clear user facts")
}

func (d *DB) CountUserFacts(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_facts`).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count user facts")
	}
	return count, nil
}
