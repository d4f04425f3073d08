package persistence

import (
	"context"
	"time"

	"github.com/example/room-booking/internal/scheduler"
	"github.com/example/room-booking/internal/security"
	"github.com/example/room-booking/internal/workflow"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// RoomFilter narrows room queries.
type RoomFilter struct {
	Category    scheduler.Category
	MinCapacity int
	ActiveOnly  bool
}

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context, filter RoomFilter) ([]Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// BookingFilter narrows booking queries. OwnerID and RoomIDs are OR-ed when both are set.
type BookingFilter struct {
	RoomID   string
	OwnerID  string
	RoomIDs  []string
	Statuses []workflow.Status
	// From and To select bookings whose date range intersects [From, To].
	From *time.Time
	To   *time.Time
}

// BookingGuard inspects the active bookings of a room that intersect the
// candidate's date range inside the write transaction.
type BookingGuard func(existing []Booking) error

// BookingRepository stores bookings and serialises conflicting writes.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking, guard BookingGuard) error
	UpdateBooking(ctx context.Context, booking Booking, guard BookingGuard) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
}

// BookingNoteRepository stores booking notes.
type BookingNoteRepository interface {
	CreateNote(ctx context.Context, note BookingNote) error
	ListNotes(ctx context.Context, bookingID string, includeInternal bool) ([]BookingNote, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	RevokeSession(ctx context.Context, id string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// OTPRepository stores one time codes.
type OTPRepository interface {
	CreateToken(ctx context.Context, token security.Token) error
	GetToken(ctx context.Context, id string) (security.Token, error)
	LatestToken(ctx context.Context, userID string, tokenType security.TokenType) (security.Token, error)
	InvalidateTokens(ctx context.Context, userID string, tokenType security.TokenType) (int, error)
	// RedeemToken loads the token, lets redeem mutate it and persists the attempt
	// counter and used flag in one transaction.
	RedeemToken(ctx context.Context, id string, redeem func(token *security.Token)) (security.Token, error)
}

// LoginAttemptRepository stores the append-only login attempt log.
type LoginAttemptRepository interface {
	RecordLoginAttempt(ctx context.Context, attempt security.LoginAttempt) error
	CountFailedAttempts(ctx context.Context, scope security.Scope, key string, since time.Time) (int, error)
}

// AuditFilter narrows audit queries.
type AuditFilter struct {
	Action     security.Action
	ObjectType string
	ObjectID   string
	Limit      int
}

// AuditRepository stores the append-only audit log.
type AuditRepository interface {
	AppendAudit(ctx context.Context, entry security.AuditEntry) error
	ListAudit(ctx context.Context, filter AuditFilter) ([]security.AuditEntry, error)
}
