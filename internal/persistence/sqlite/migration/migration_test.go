package migration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"testing/fstest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFileScanner(t *testing.T) {
	t.Run("orders by numeric version and reads descriptions", func(t *testing.T) {
		fsys := fstest.MapFS{
			"m/010_later.sql":   {Data: []byte("CREATE TABLE b (id TEXT);")},
			"m/002_first.sql":   {Data: []byte("-- Description: first table\nCREATE TABLE a (id TEXT);")},
			"m/notes.txt":       {Data: []byte("ignored")},
			"m/sub/003_dir.sql": {Data: []byte("CREATE TABLE c (id TEXT);")},
		}

		migrations, err := NewFileScanner(fsys).ScanMigrations("m")
		if err != nil {
			t.Fatalf("ScanMigrations returned error: %v", err)
		}
		if len(migrations) != 2 {
			t.Fatalf("expected 2 migrations, got %d", len(migrations))
		}
		if migrations[0].Version != "002" || migrations[1].Version != "010" {
			t.Fatalf("unexpected order %s, %s", migrations[0].Version, migrations[1].Version)
		}
		if migrations[0].Description != "first table" || migrations[1].Description != "later" {
			t.Fatalf("unexpected descriptions %q, %q", migrations[0].Description, migrations[1].Description)
		}
		if migrations[0].Checksum == "" {
			t.Fatal("expected checksum")
		}
	})

	t.Run("rejects bad names and duplicates", func(t *testing.T) {
		bad := fstest.MapFS{"m/initial.sql": {Data: []byte("SELECT 1;")}}
		if _, err := NewFileScanner(bad).ScanMigrations("m"); !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile, got %v", err)
		}

		same := fstest.MapFS{
			"m/001_a.sql": {Data: []byte("SELECT 1;")},
			"m/001_b.sql": {Data: []byte("SELECT 1;")},
		}
		if _, err := NewFileScanner(same).ScanMigrations("m"); !errors.Is(err, ErrDuplicateVersion) {
			t.Fatalf("expected ErrDuplicateVersion, got %v", err)
		}
	})

	t.Run("rejects comment only files", func(t *testing.T) {
		fsys := fstest.MapFS{"m/001_empty.sql": {Data: []byte("-- nothing here\n")}}
		if _, err := NewFileScanner(fsys).ScanMigrations("m"); !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile, got %v", err)
		}
	})
}

func TestSQLiteConfigDSN(t *testing.T) {
	cfg := InMemoryTestSQLiteConfig()
	dsn := cfg.DSN()
	if !strings.HasPrefix(dsn, MemoryPath+"?") {
		t.Fatalf("unexpected dsn %q", dsn)
	}
	for _, part := range []string{"_txlock=immediate", "foreign_keys%281%29"} {
		if !strings.Contains(dsn, part) {
			t.Fatalf("expected %q in %q", part, dsn)
		}
	}

	cfg.TxLock = "sometimes"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected invalid tx lock to fail validation")
	}
}

func TestManagerRun(t *testing.T) {
	ctx := context.Background()
	db, err := Open(InMemoryTestSQLiteConfig())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	fsys := fstest.MapFS{
		"m/001_rooms.sql":    {Data: []byte("CREATE TABLE rooms (id TEXT PRIMARY KEY);\nCREATE INDEX idx_rooms ON rooms(id);")},
		"m/002_bookings.sql": {Data: []byte("CREATE TABLE bookings (id TEXT PRIMARY KEY, room_id TEXT REFERENCES rooms(id));")},
	}
	manager := NewManager(NewFileScanner(fsys), NewSQLiteExecutor(db), "m", quietLogger())

	applied, err := manager.Run(ctx)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if applied != 2 {
		t.Fatalf("expected 2 applied migrations, got %d", applied)
	}

	again, err := manager.Run(ctx)
	if err != nil || again != 0 {
		t.Fatalf("expected idempotent rerun, got %d, %v", again, err)
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.CurrentVersion != "002" || len(status.PendingMigrations) != 0 {
		t.Fatalf("unexpected status %+v", status)
	}

	edited := fstest.MapFS{
		"m/001_rooms.sql":    {Data: []byte("CREATE TABLE rooms (id TEXT PRIMARY KEY, name TEXT);")},
		"m/002_bookings.sql": fsys["m/002_bookings.sql"],
	}
	_, err = NewManager(NewFileScanner(edited), NewSQLiteExecutor(db), "m", quietLogger()).Status(ctx)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestManagerRunRollsBackFailedMigration(t *testing.T) {
	ctx := context.Background()
	db, err := Open(InMemoryTestSQLiteConfig())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	fsys := fstest.MapFS{
		"m/001_broken.sql": {Data: []byte("CREATE TABLE ok (id TEXT);\nCREATE TABLE broken (;")},
	}
	executor := NewSQLiteExecutor(db)
	if _, err := NewManager(NewFileScanner(fsys), executor, "m", quietLogger()).Run(ctx); !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}

	applied, err := executor.IsVersionApplied(ctx, "001")
	if err != nil || applied {
		t.Fatalf("expected version to stay unapplied, got %v, %v", applied, err)
	}
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE name = 'ok'`).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if count != 0 {
		t.Fatal("expected partial migration to roll back")
	}
}
