// Package storetest opens throwaway sqlite stores for tests of packages above the store.
package storetest

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/aida/internal/profile"
	"github.com/hrygo/aida/store"
	"github.com/hrygo/aida/store/db/sqlite"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Epoch is the time every test store starts at.
var Epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// New opens a migrated sqlite store in a temp dir. It is closed when the test ends.
func New(t testing.TB) (*store.Store, *Clock) {
	t.Helper()
	dir := t.TempDir()
	p := &profile.Profile{Mode: "dev", Data: dir, Driver: "sqlite", DSN: filepath.Join(dir, "test.db")}

	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	t.Cleanup(func() { driver.Close() })

	s := store.New(driver, p)
	clock := NewClock(Epoch)
	s.SetClock(clock.Now)
	require.NoError(t, s.Migrate(context.Background()))
	return s, clock
}
