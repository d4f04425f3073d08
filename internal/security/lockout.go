package security

import (
	"strings"
	"time"
)

// AttemptType classifies a login attempt.
type AttemptType string

const (
	AttemptSuccess        AttemptType = "success"
	AttemptFailedPassword AttemptType = "failed_password"
	AttemptFailedUser     AttemptType = "failed_user"
	AttemptFailedInactive AttemptType = "failed_inactive"
	AttemptFailedLocked   AttemptType = "failed_locked"
	AttemptFailedOTP      AttemptType = "failed_otp"
	AttemptBlocked        AttemptType = "blocked"
)

// Failed reports whether the attempt counts toward a lockout.
func (t AttemptType) Failed() bool {
	return strings.HasPrefix(string(t), "failed")
}

// LoginAttempt is an append-only record of a sign in attempt.
type LoginAttempt struct {
	Email     string
	IP        string
	UserAgent string
	Type      AttemptType
	Timestamp time.Time
}

// Scope selects which key a lockout count is taken over.
type Scope string

const (
	ScopeIP    Scope = "ip"
	ScopeEmail Scope = "email"
)

const (
	DefaultAttemptLimit  = 5
	DefaultLockoutWindow = 1800 * time.Second
)

// LockoutPolicy blocks a key once Limit failures land inside the trailing Window.
type LockoutPolicy struct {
	Limit  int
	Window time.Duration
}

// NewLockoutPolicy applies defaults to zero values.
func NewLockoutPolicy(limit int, window time.Duration) LockoutPolicy {
	if limit <= 0 {
		limit = DefaultAttemptLimit
	}
	if window <= 0 {
		window = DefaultLockoutWindow
	}
	return LockoutPolicy{Limit: limit, Window: window}
}

// WindowStart is the oldest timestamp that still counts at now.
func (p LockoutPolicy) WindowStart(now time.Time) time.Time {
	return now.Add(-p.Window)
}

// Blocked reports whether failures reached the limit.
func (p LockoutPolicy) Blocked(failures int) bool {
	return failures >= p.Limit
}
