package application

import (
	"time"

	"github.com/example/room-booking/internal/access"
	"github.com/example/room-booking/internal/scheduler"
	"github.com/example/room-booking/internal/security"
	"github.com/example/room-booking/internal/workflow"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID         string
	Email          string
	Role           access.Role
	ManagedRoomIDs []string
	IP             string
	UserAgent      string
}

// IsAdmin reports whether the principal administers rooms in any capacity.
func (p Principal) IsAdmin() bool {
	return p.Role.IsAdmin()
}

func (p Principal) actor() access.Actor {
	return access.Actor{UserID: p.UserID, Role: p.Role, ManagedRoomIDs: p.ManagedRoomIDs}
}

func (p Principal) client() ClientInfo {
	return ClientInfo{IP: p.IP, UserAgent: p.UserAgent}
}

func (p Principal) actorRef() *string {
	if p.UserID == "" {
		return nil
	}
	id := p.UserID
	return &id
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
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
	IsActive           *bool
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

func (r Room) constraints() scheduler.Room {
	return scheduler.Room{
		ID:                 r.ID,
		Capacity:           r.Capacity,
		MinBookingHours:    r.MinBookingHours,
		MaxBookingHours:    r.MaxBookingHours,
		AdvanceBookingDays: r.AdvanceBookingDays,
		Active:             r.IsActive,
	}
}

func (r *Room) apply(input RoomInput) {
	r.Name = input.Name
	r.Category = input.Category
	r.Capacity = input.Capacity
	r.Location = input.Location
	r.Floor = input.Floor
	r.Description = input.Description
	r.Amenities = input.Amenities
	r.MinBookingHours = input.MinBookingHours
	r.MaxBookingHours = input.MaxBookingHours
	r.AdvanceBookingDays = input.AdvanceBookingDays
	if input.IsActive != nil {
		r.IsActive = *input.IsActive
	}
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    string
	Input     RoomInput
}

// RoomFilter narrows room listings.
type RoomFilter struct {
	Category    scheduler.Category
	MinCapacity int
	ActiveOnly  bool
}

// AvailableRoomsQuery describes the slot a caller wants to book.
type AvailableRoomsQuery struct {
	Date      time.Time
	StartTime scheduler.TimeOfDay
	EndTime   scheduler.TimeOfDay
	Attendees int
	Category  scheduler.Category
}

// RoomAvailability is the occupancy and the free slots of a room on one date.
type RoomAvailability struct {
	Room         Room
	Availability scheduler.Availability
	FreeSlots    []scheduler.Slot
	Bookings     []Booking
}

// BookingInput captures caller provided booking fields.
type BookingInput struct {
	RoomID              string
	Purpose             string
	Type                scheduler.BookingType
	StartDate           time.Time
	EndDate             time.Time
	StartTime           scheduler.TimeOfDay
	EndTime             scheduler.TimeOfDay
	SelectedDates       []time.Time
	ExpectedAttendees   int
	SpecialRequirements string
}

// Booking is a reservation of a room.
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
	workflow.Approval
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (b Booking) slot() scheduler.Booking {
	return scheduler.Booking{
		ID:                b.ID,
		RoomID:            b.RoomID,
		Purpose:           b.Purpose,
		Type:              b.Type,
		StartDate:         b.StartDate,
		EndDate:           b.EndDate,
		StartTime:         b.StartTime,
		EndTime:           b.EndTime,
		SelectedDates:     b.SelectedDates,
		Status:            b.Status,
		ExpectedAttendees: b.ExpectedAttendees,
	}
}

func (b *Booking) apply(input BookingInput) {
	b.RoomID = input.RoomID
	b.Purpose = input.Purpose
	b.Type = input.Type
	b.StartDate = scheduler.DateOf(input.StartDate)
	b.EndDate = scheduler.DateOf(input.EndDate)
	b.StartTime = input.StartTime
	b.EndTime = input.EndTime
	b.SelectedDates = nil
	for _, d := range input.SelectedDates {
		b.SelectedDates = append(b.SelectedDates, scheduler.DateOf(d))
	}
	b.ExpectedAttendees = input.ExpectedAttendees
	b.SpecialRequirements = input.SpecialRequirements
}

// CreateBookingParams wraps the data required to create a booking.
type CreateBookingParams struct {
	Principal Principal
	Input     BookingInput
}

// UpdateBookingParams wraps the data required to edit a booking.
type UpdateBookingParams struct {
	Principal Principal
	BookingID string
	Input     BookingInput
}

// RejectBookingParams wraps a rejection decision.
type RejectBookingParams struct {
	Principal Principal
	BookingID string
	Reason    string
}

// BookingFilter narrows booking queries at the repository.
type BookingFilter struct {
	RoomID   string
	Statuses []workflow.Status
	From     *time.Time
	To       *time.Time
	// Owner and ManagedRoomIDs are OR-ed together when both are set.
	OwnerID        string
	ManagedRoomIDs []string
}

// ListBookingsParams wraps a caller's listing request.
type ListBookingsParams struct {
	Principal Principal
	RoomID    string
	Status    workflow.Status
	From      *time.Time
	To        *time.Time
}

// CheckConflictsParams wraps a dry run of the booking rules.
type CheckConflictsParams struct {
	Principal        Principal
	ExcludeBookingID string
	Input            BookingInput
}

// ConflictReport is the outcome of a dry run.
type ConflictReport struct {
	Available   bool
	FieldErrors map[string]string
	Conflicts   []ConflictDetail
}

// BookingGuard runs inside the write transaction with the active bookings of the
// room that overlap the candidate's date range. Returning an error aborts the write.
type BookingGuard func(existing []Booking) error

// BookingNote is a comment attached to a booking.
type BookingNote struct {
	ID         string
	BookingID  string
	AuthorID   string
	Body       string
	IsInternal bool
	CreatedAt  time.Time
}

// AddNoteParams wraps a new note.
type AddNoteParams struct {
	Principal  Principal
	BookingID  string
	Body       string
	IsInternal bool
}

// User represents an account exposed by the application services.
type User struct {
	ID             string
	Email          string
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

// FullName joins the user's names.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

func (u User) principal() Principal {
	return Principal{UserID: u.ID, Email: u.Email, Role: u.Role, ManagedRoomIDs: u.ManagedRoomIDs}
}

// UpdateRoleParams wraps a role assignment.
type UpdateRoleParams struct {
	Principal      Principal
	UserID         string
	Role           access.Role
	ManagedRoomIDs []string
}

// SetUserActiveParams wraps an account lock or unlock.
type SetUserActiveParams struct {
	Principal Principal
	UserID    string
	Active    bool
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID        string
	UserID    string
	IP        string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// ClientInfo identifies the network origin of a request.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// RegisterParams captures a self service sign up.
type RegisterParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Client    ClientInfo
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
	Client   ClientInfo
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
	Token   string
}

// VerifyCodeParams captures an emailed one time code.
type VerifyCodeParams struct {
	Email  string
	Code   string
	Client ClientInfo
}

// ConfirmPasswordResetParams captures a reset code and the replacement password.
type ConfirmPasswordResetParams struct {
	Email       string
	Code        string
	NewPassword string
	Client      ClientInfo
}

// OTPVerification is the outcome of a one time code check.
type OTPVerification struct {
	Outcome           security.Outcome
	RemainingAttempts int
}
