package sqlite

import (
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/aida/internal/profile"
	"github.com/hrygo/aida/store"
)

// ============================================================================
// SQLITE NOTES
// ============================================================================
// SQLite is the default local store of the assistant.
//
// - A single connection serializes writes from the conversation goroutine
//   and the embedding worker.
// - Vectors are stored as little-endian float32 BLOBs and scored in Go.
// - Schema changes go through migrator.go and are idempotent.
// ============================================================================

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// pragmas are applied to every connection. modernc.org/sqlite takes them as
// repeated _pragma query parameters, see https://pkg.go.dev/modernc.org/sqlite#Driver.Open.
var pragmas = []string{
	"foreign_keys(0)",     // cascades run explicitly inside transactions
	"busy_timeout(10000)", // the embedding worker may hold the write lock briefly
	"journal_mode(WAL)",   // readers never wait for the writer
	"synchronous(NORMAL)",
}

func dataSourceName(dsn string) string {
	params := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		params = append(params, "_pragma="+p)
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// NewDB opens the sqlite file named by profile.DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	sqliteDB, err := sql.Open("sqlite", dataSourceName(profile.DSN))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite database %s", profile.DSN)
	}

	// One connection: session switches and message appends from the
	// conversation goroutine and the embedding worker queue up behind it.
	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	return &DB{db: sqliteDB, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func nullInt64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func int64PtrValue(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
