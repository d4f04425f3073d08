package persistence

import (
	"time"

	"github.com/example/room-booking/internal/access"
	"github.com/example/room-booking/internal/scheduler"
	"github.com/example/room-booking/internal/workflow"
)

// User represents an account row.
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	Role           access.Role
	ManagedRoomIDs []string
	IsActive       bool
	EmailVerified  bool
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Room represents a bookable space.
type Room struct {
	ID                 string
	Name               string
	Category           scheduler.Category
	Capacity           int
	Location           string
	Floor              string
	Description        string
	Amenities          []string
	MinBookingHours    int
	MaxBookingHours    int
	AdvanceBookingDays int
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Booking represents a reservation row. SelectedDates is stored as a JSON array.
type Booking struct {
	ID                  string
	RoomID              string
	UserID              string
	Purpose             string
	Type                scheduler.BookingType
	StartDate           time.Time
	EndDate             time.Time
	StartTime           scheduler.TimeOfDay
	EndTime             scheduler.TimeOfDay
	SelectedDates       []time.Time
	ExpectedAttendees   int
	SpecialRequirements string
	Status              workflow.Status
	ApprovedBy          *string
	ApprovedAt          *time.Time
	RejectionReason     string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// BookingNote represents a comment on a booking.
type BookingNote struct {
	ID         string
	BookingID  string
	AuthorID   string
	Body       string
	IsInternal bool
	CreatedAt  time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID        string
	UserID    string
	IP        string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}
