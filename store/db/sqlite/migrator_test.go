package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	session, err := s.CreateSession(ctx, "keep me")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, session.ID, "user", "hello", nil)
	require.NoError(t, err)

	// Second and third runs must not fail or touch data.
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))

	v, err := s.GetDriver().SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, LatestSchemaVersion, v)

	count, err := s.CountMessages(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var rows int
	require.NoError(t, s.GetDriver().GetDB().QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_version`).Scan(&rows))
	assert.Equal(t, len(migrations), rows)
}

func TestMigrationsAreOrdered(t *testing.T) {
	for i, m := range migrations {
		assert.Equal(t, i+1, m.version, m.name)
	}
	assert.Equal(t, LatestSchemaVersion, migrations[len(migrations)-1].version)
}
