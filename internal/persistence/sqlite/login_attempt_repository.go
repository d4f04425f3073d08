package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/room-booking/internal/security"
)

// LoginAttemptRepository implements persistence.LoginAttemptRepository using SQLite
type LoginAttemptRepository struct {
	pool *ConnectionPool
}

// NewLoginAttemptRepository creates a new SQLite login attempt repository
func NewLoginAttemptRepository(pool *ConnectionPool) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: pool}
}

// RecordLoginAttempt appends an attempt
func (r *LoginAttemptRepository) RecordLoginAttempt(ctx context.Context, attempt security.LoginAttempt) error {
	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO login_attempts (email, ip, user_agent, attempt_type, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		normalizeEmail(attempt.Email), attempt.IP, attempt.UserAgent, string(attempt.Type), formatTime(attempt.Timestamp),
	)
	return MapError(err)
}

// CountFailedAttempts counts failed attempts for the ip or email key recorded at or after since
func (r *LoginAttemptRepository) CountFailedAttempts(ctx context.Context, scope security.Scope, key string, since time.Time) (int, error) {
	var column string
	switch scope {
	case security.ScopeIP:
		column = "ip"
	case security.ScopeEmail:
		column = "email"
		key = normalizeEmail(key)
	default:
		return 0, fmt.Errorf("sqlite: unknown lockout scope %q", scope)
	}

	var count int
	err := r.pool.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM login_attempts WHERE `+column+` = ? AND attempt_type LIKE 'failed%' AND timestamp >= ?`,
		key, formatTime(since),
	).Scan(&count)
	if err != nil {
		return 0, MapError(err)
	}
	return count, nil
}
