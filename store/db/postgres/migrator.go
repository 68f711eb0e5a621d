package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/aida/internal/version"
)

// LatestSchemaVersion matches the sqlite driver.
const LatestSchemaVersion = 3

type migration struct {
	version    int
	name       string
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "sessions, messages and user facts",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL DEFAULT '',
				created_ts BIGINT NOT NULL,
				updated_ts BIGINT NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT FALSE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions (updated_ts DESC)`,
			`CREATE TABLE IF NOT EXISTS messages (
				id BIGSERIAL PRIMARY KEY,
				session_id TEXT NOT NULL,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				images JSONB NOT NULL DEFAULT '[]',
				timestamp BIGINT NOT NULL,
				embedding_id TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages (session_id, timestamp, id)`,
			`CREATE TABLE IF NOT EXISTS user_facts (
				id BIGSERIAL PRIMARY KEY,
				category TEXT NOT NULL,
				key TEXT NOT NULL,
				value TEXT NOT NULL,
				confidence DOUBLE PRECISION NOT NULL DEFAULT 1.0,
				source_message_id BIGINT,
				created_ts BIGINT NOT NULL,
				updated_ts BIGINT NOT NULL,
				UNIQUE (category, key)
			)`,
		},
	},
	{
		version: 2,
		name:    "message embeddings",
		statements: []string{
			`CREATE EXTENSION IF NOT EXISTS vector`,
			`CREATE TABLE IF NOT EXISTS message_embedding (
				id TEXT PRIMARY KEY,
				message_id BIGINT NOT NULL UNIQUE,
				session_id TEXT NOT NULL,
				content TEXT NOT NULL,
				model TEXT NOT NULL DEFAULT '',
				embedding vector NOT NULL,
				timestamp BIGINT NOT NULL,
				created_ts BIGINT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_message_embedding_model ON message_embedding (model)`,
		},
	},
	{
		version: 3,
		name:    "projects, tasks and reminders",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS projects (
				id BIGSERIAL PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				color TEXT NOT NULL DEFAULT '',
				archived BOOLEAN NOT NULL DEFAULT FALSE,
				created_ts BIGINT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_name ON projects (LOWER(name))`,
			`CREATE TABLE IF NOT EXISTS tasks (
				id BIGSERIAL PRIMARY KEY,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				priority TEXT NOT NULL DEFAULT 'medium',
				status TEXT NOT NULL DEFAULT 'pending',
				project_id BIGINT,
				due_ts BIGINT,
				reminder_ts BIGINT,
				reminder_sent BOOLEAN NOT NULL DEFAULT FALSE,
				ha_list_name TEXT NOT NULL DEFAULT '',
				ha_item_id TEXT NOT NULL DEFAULT '',
				ha_synced_ts BIGINT,
				created_ts BIGINT NOT NULL,
				updated_ts BIGINT NOT NULL,
				completed_ts BIGINT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks (status, due_ts)`,
			`CREATE TABLE IF NOT EXISTS reminders (
				id BIGSERIAL PRIMARY KEY,
				task_id BIGINT NOT NULL,
				remind_ts BIGINT NOT NULL,
				type TEXT NOT NULL DEFAULT 'once',
				sent BOOLEAN NOT NULL DEFAULT FALSE,
				created_ts BIGINT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders (sent, remind_ts)`,
		},
	},
}

// Migrate applies every migration newer than the stored schema version.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		app_version TEXT NOT NULL,
		applied_ts BIGINT NOT NULL
	)`); err != nil {
		return errors.Wrap(err, "failed to create schema_version table")
	}

	current, err := d.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	appVersion := version.GetCurrentVersion(d.profile.Mode)

	var stored string
	if err := d.db.QueryRowContext(ctx, `SELECT app_version FROM schema_version ORDER BY version DESC LIMIT 1`).Scan(&stored); err == nil {
		if version.IsValid(stored) && version.IsVersionGreaterThan(stored, appVersion) {
			slog.Warn("database was written by a newer version", "database_version", stored, "running_version", appVersion)
		}
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "failed to begin transaction")
		}
		for _, stmt := range m.statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return errors.Wrapf(err, "failed to apply migration %d (%s)", m.version, m.name)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_version (version, app_version, applied_ts) VALUES (`+placeholders(3)+`) ON CONFLICT (version) DO NOTHING`,
			m.version, appVersion, time.Now().Unix(),
		); err != nil {
			tx.Rollback()
			return errors.Wrap(err, "failed to record schema version")
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrap(err, "failed to commit migration")
		}
		slog.Info("applied schema migration", "version", m.version, "name", m.name)
	}
	return nil
}

func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := d.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, errors.Wrap(err, "failed to read schema version")
	}
	return int(v.Int64), nil
}
