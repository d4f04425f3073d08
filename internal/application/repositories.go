package application

import (
	"context"
	"errors"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/security"
)

// RoomRepository captures the persistence operations needed by the room service.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context, filter RoomFilter) ([]Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// BookingRepository captures the persistence operations needed by the booking service.
// Create and Update run guard inside the write transaction.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking, guard BookingGuard) error
	UpdateBooking(ctx context.Context, booking Booking, guard BookingGuard) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
}

// NoteRepository stores booking notes.
type NoteRepository interface {
	CreateNote(ctx context.Context, note BookingNote) error
	ListNotes(ctx context.Context, bookingID string, includeInternal bool) ([]BookingNote, error)
}

// UserRepository exposes account lookups together with the stored password hash.
type UserRepository interface {
	CreateUser(ctx context.Context, creds UserCredentials) error
	UpdateUser(ctx context.Context, creds UserCredentials) error
	GetCredentials(ctx context.Context, id string) (UserCredentials, error)
	GetCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// SessionRepository captures the persistence interactions for issued sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	RevokeSession(ctx context.Context, id string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// OTPRepository stores one time codes.
type OTPRepository interface {
	CreateToken(ctx context.Context, token security.Token) error
	LatestToken(ctx context.Context, userID string, tokenType security.TokenType) (security.Token, error)
	InvalidateTokens(ctx context.Context, userID string, tokenType security.TokenType) (int, error)
	RedeemToken(ctx context.Context, id string, redeem func(token *security.Token)) (security.Token, error)
}

// LoginAttemptRepository stores the login attempt log.
type LoginAttemptRepository interface {
	RecordLoginAttempt(ctx context.Context, attempt security.LoginAttempt) error
	CountFailedAttempts(ctx context.Context, scope security.Scope, key string, since time.Time) (int, error)
}

// AuditRepository appends audit entries.
type AuditRepository interface {
	AppendAudit(ctx context.Context, entry security.AuditEntry) error
}

// mapRepoError translates persistence sentinels shared by every repository.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	}
	return err
}

func mapConstraintError(err error, field, message string) error {
	switch {
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add(field, message)
		return vErr
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrNotFound
	}
	return err
}
