package sqlite

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/aida/internal/version"
)

// LatestSchemaVersion is the schema version this build writes.
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
				created_ts INTEGER NOT NULL,
				updated_ts INTEGER NOT NULL,
				is_active INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions (updated_ts DESC)`,
			`CREATE TABLE IF NOT EXISTS messages (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				images TEXT NOT NULL DEFAULT '',
				timestamp INTEGER NOT NULL,
				embedding_id TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages (session_id, timestamp, id)`,
			`CREATE TABLE IF NOT EXISTS user_facts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				category TEXT NOT NULL,
				key TEXT NOT NULL,
				value TEXT NOT NULL,
				confidence REAL NOT NULL DEFAULT 1.0,
				source_message_id INTEGER,
				created_ts INTEGER NOT NULL,
				updated_ts INTEGER NOT NULL,
				UNIQUE (category, key)
			)`,
		},
	},
	{
		version: 2,
		name:    "message embeddings",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS message_embedding (
				id TEXT PRIMARY KEY,
				message_id INTEGER NOT NULL UNIQUE,
				session_id TEXT NOT NULL,
				content TEXT NOT NULL,
				model TEXT NOT NULL DEFAULT '',
				embedding BLOB NOT NULL,
				timestamp INTEGER NOT NULL,
				created_ts INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_message_embedding_model ON message_embedding (model)`,
		},
	},
	{
		version: 3,
		name:    "projects, tasks and reminders",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS projects (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL UNIQUE COLLATE NOCASE,
				description TEXT NOT NULL DEFAULT '',
				color TEXT NOT NULL DEFAULT '',
				archived INTEGER NOT NULL DEFAULT 0,
				created_ts INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS tasks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				priority TEXT NOT NULL DEFAULT 'medium',
				status TEXT NOT NULL DEFAULT 'pending',
				project_id INTEGER,
				due_ts INTEGER,
				reminder_ts INTEGER,
				reminder_sent INTEGER NOT NULL DEFAULT 0,
				ha_list_name TEXT NOT NULL DEFAULT '',
				ha_item_id TEXT NOT NULL DEFAULT '',
				ha_synced_ts INTEGER,
				created_ts INTEGER NOT NULL,
				updated_ts INTEGER NOT NULL,
				completed_ts INTEGER
			)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks (status, due_ts)`,
			`CREATE TABLE IF NOT EXISTS reminders (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				task_id INTEGER NOT NULL,
				remind_ts INTEGER NOT NULL,
				type TEXT NOT NULL DEFAULT 'once',
				sent INTEGER NOT NULL DEFAULT 0,
				created_ts INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders (sent, remind_ts)`,
		},
	},
}

// Migrate applies every migration newer than the stored schema version.
// Each migration runs in its own transaction.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		app_version TEXT NOT NULL,
		applied_ts INTEGER NOT NULL
	)`); err != nil {
		return errors.Wrap(err, "failed to create schema_version table")
	}

	current, err := d.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	appVersion := version.GetCurrentVersion(d.profile.Mode)
	d.warnIfNewerAppVersion(ctx, appVersion)

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := d.applyMigration(ctx, m, appVersion); err != nil {
			return err
		}
		slog.Info("applied schema migration", "version", m.version, "name", m.name)
	}
	return nil
}

func (d *DB) applyMigration(ctx context.Context, m migration, appVersion string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "failed to apply migration %d (%s)", m.version, m.name)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, app_version, applied_ts) VALUES (?, ?, ?)`,
		m.version, appVersion, time.Now().Unix(),
	); err != nil {
		return errors.Wrap(err, "failed to record schema version")
	}
	return errors.Wrap(tx.Commit(), "failed to commit migration")
}

// SchemaVersion returns the highest applied migration, 0 for a fresh database.
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := d.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, errors.Wrap(err, "failed to read schema version")
	}
	return int(v.Int64), nil
}

func (d *DB) warnIfNewerAppVersion(ctx context.Context, running string) {
	var stored string
	err := d.db.QueryRowContext(ctx, `SELECT app_version FROM schema_version ORDER BY version DESC LIMIT 1`).Scan(&stored)
	if err != nil {
		return
	}
	if version.IsValid(stored) && version.IsVersionGreaterThan(stored, running) {
		slog.Warn("database was written by a newer version", "database_version", stored, "running_version", running)
	}
}
