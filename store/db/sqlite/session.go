package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/hrygo/aida/store"
)

func (d *DB) CreateSession(ctx context.Context, create *store.CreateSession) (*store.Session, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET is_active = 0 WHERE is_active = 1`); err != nil {
		return nil, errors.Wrap(err, "failed to deactivate sessions")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, title, created_ts, updated_ts, is_active) VALUES (?, ?, ?, ?, 1)`,
		create.ID, create.Title, create.Ts, create.Ts,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}

	return &store.Session{
		ID:        create.ID,
		Title:     create.Title,
		CreatedTs: create.Ts,
		UpdatedTs: create.Ts,
		IsActive:  true,
	}, nil
}

const sessionColumns = `id, title, created_ts, updated_ts, is_active`

func scanSession(row scanner) (*store.Session, error) {
	var session store.Session
	if err := row.Scan(&session.ID, &session.Title, &session.CreatedTs, &session.UpdatedTs, &session.IsActive); err != nil {
		return nil, err
	}
	return &session, nil
}

func (d *DB) GetSession(ctx context.Context, id string) (*store.Session, error) {
	session, err := scanSession(d.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get session")
	}
	return session, nil
}

func (d *DB) GetActiveSession(ctx context.Context) (*store.Session, error) {
	session, err := scanSession(d.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE is_active = 1 ORDER BY updated_ts DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get active session")
	}
	return session, nil
}

func (d *DB) ListSessions(ctx context.Context, find *store.FindSession) ([]*store.Session, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY updated_ts DESC, created_ts DESC LIMIT ? OFFSET ?`,
		find.Limit, find.Offset,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}
	defer rows.Close()

	list := []*store.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan session")
		}
		list = append(list, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) CountSessions(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count sessions")
	}
	return count, nil
}

// SetActiveSession switches the active flag in one transaction.
func (d *DB) SetActiveSession(ctx context.Context, id string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM sessions WHERE id = ?)`, id).Scan(&exists); err != nil {
		return errors.Wrap(err, "failed to look up session")
	}
	if !exists {
		return errors.Errorf("session %s not found", id)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET is_active = 0 WHERE is_active = 1`); err != nil {
		return errors.Wrap(err, "failed to deactivate sessions")
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET is_active = 1 WHERE id = ?`, id); err != nil {
		return errors.Wrap(err, "failed to activate session")
	}
	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}

func (d *DB) UpdateSession(ctx context.Context, update *store.UpdateSession) error {
	if update.Title == nil {
		_, err := d.db.ExecContext(ctx, `UPDATE sessions SET updated_ts = ? WHERE id = ?`, update.UpdatedTs, update.ID)
		return errors.Wrap(err, "failed to update session")
	}
	_, err := d.db.ExecContext(ctx, `UPDATE sessions SET title = ?, updated_ts = ? WHERE id = ?`,
		*update.Title, update.UpdatedTs, update.ID)
	return errors.Wrap(err, "failed to update session")
}

func (d *DB) DeleteSession(ctx context.Context, id string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM message_embedding WHERE session_id = ?`, id); err != nil {
		return errors.Wrap(err, "failed to delete session embeddings")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return errors.Wrap(err, "failed to delete session messages")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return errors.Wrap(err, "failed to delete session")
	}
	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}
