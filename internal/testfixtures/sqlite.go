package testfixtures

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/church-agenda/internal/persistence/sqlite"
)

// SQLiteHarness provides an event repository backed by a migrated SQLite
// database in a temporary directory.
type SQLiteHarness struct {
	Pool   *sqlite.ConnectionPool
	Events *sqlite.EventRepository
	IDs    *IDGenerator
	Clock  *Clock
}

// NewSQLiteHarness opens and migrates a fresh database. Event times are
// stored as wall-clock values in location (UTC when nil). The pool is closed
// through tb.Cleanup.
func NewSQLiteHarness(tb testing.TB, location *time.Location) *SQLiteHarness {
	tb.Helper()

	config := sqlite.DefaultConfig(filepath.Join(tb.TempDir(), "agenda.db"))
	if location != nil {
		config.Location = location
	}
	pool, err := sqlite.NewConnectionPool(config)
	if err != nil {
		tb.Fatalf("failed to open database: %v", err)
	}
	tb.Cleanup(func() { _ = pool.Close() })

	if err := pool.Migrate(context.Background(), nil); err != nil {
		tb.Fatalf("failed to migrate database: %v", err)
	}

	ids := NewIDGenerator("evt")
	clock := NewClock(referenceTime)
	return &SQLiteHarness{
		Pool: pool,
		Events: sqlite.NewEventRepository(pool,
			sqlite.WithEventIDGenerator(ids.NextFunc()),
			sqlite.WithEventClock(clock.NowFunc()),
		),
		IDs:   ids,
		Clock: clock,
	}
}
