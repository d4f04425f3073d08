// Package sqlite implements the persistence repositories on SQLite through
// modernc.org/sqlite. Timestamps are stored as RFC3339 UTC text, dates as
// YYYY-MM-DD and times of day as HH:MM so range predicates compare as text.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/room-booking/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationDir = "migrations"

// Storage bundles the SQLite repositories that share one connection pool.
type Storage struct {
	pool *ConnectionPool

	Users         *UserRepository
	Rooms         *RoomRepository
	Bookings      *BookingRepository
	Notes         *NoteRepository
	Sessions      *SessionRepository
	OTP           *OTPRepository
	LoginAttempts *LoginAttemptRepository
	Audit         *AuditRepository
}

// Open connects to the database described by config and applies pending migrations.
func Open(ctx context.Context, config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}

	storage := &Storage{
		pool:          pool,
		Users:         NewUserRepository(pool),
		Rooms:         NewRoomRepository(pool),
		Bookings:      NewBookingRepository(pool),
		Notes:         NewNoteRepository(pool),
		Sessions:      NewSessionRepository(pool),
		OTP:           NewOTPRepository(pool),
		LoginAttempts: NewLoginAttemptRepository(pool),
		Audit:         NewAuditRepository(pool),
	}

	if err := storage.Migrate(ctx, logger); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return storage, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context, logger *slog.Logger) error {
	manager := migration.NewManager(
		migration.NewFileScanner(migrationFiles),
		migration.NewSQLiteExecutor(s.pool.DB()),
		migrationDir,
		logger,
	)
	if _, err := manager.Run(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
