package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/example/room-booking/internal/persistence/sqlite"
	"github.com/example/room-booking/internal/persistence/sqlite/migration"
)

// OpenStorage returns migrated in-memory SQLite storage that is closed when
// the test ends.
func OpenStorage(tb testing.TB) *sqlite.Storage {
	tb.Helper()

	storage, err := sqlite.Open(context.Background(), migration.InMemoryTestSQLiteConfig(), DiscardLogger())
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = storage.Close() })
	return storage
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
