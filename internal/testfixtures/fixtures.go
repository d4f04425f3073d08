package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/room-booking/internal/access"
	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/scheduler"
)

var (
	userCounter uint64
	roomCounter uint64
)

// referenceTime is a Sunday morning so that the following Monday is bookable
// under the default advance window.
var referenceTime = time.Date(2030, time.January, 6, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// UserOption configures a generated user.
type UserOption func(*application.UserCredentials)

// NewUser returns an active, verified user with a unique id and email.
func NewUser(opts ...UserOption) application.UserCredentials {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(-time.Duration(idx) * time.Hour)
	creds := application.UserCredentials{
		User: application.User{
			ID:            id,
			Email:         id + "@example.com",
			FirstName:     "Test",
			LastName:      fmt.Sprintf("User %03d", idx),
			Role:          access.RoleUser,
			IsActive:      true,
			EmailVerified: true,
			CreatedAt:     created,
			UpdatedAt:     created,
		},
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
	}
	for _, opt := range opts {
		opt(&creds)
	}
	return creds
}

// WithUserID overrides the generated id.
func WithUserID(id string) UserOption {
	return func(c *application.UserCredentials) { c.User.ID = id }
}

// WithRole assigns role and, for room administrators, the managed rooms.
func WithRole(role access.Role, managedRoomIDs ...string) UserOption {
	return func(c *application.UserCredentials) {
		c.User.Role = role
		c.User.ManagedRoomIDs = managedRoomIDs
	}
}

// Unverified marks the user as awaiting email verification.
func Unverified() UserOption {
	return func(c *application.UserCredentials) {
		c.User.IsActive = false
		c.User.EmailVerified = false
	}
}

// Principal returns the caller identity of creds.
func Principal(creds application.UserCredentials) application.Principal {
	return application.Principal{
		UserID:         creds.User.ID,
		Email:          creds.User.Email,
		Role:           creds.User.Role,
		ManagedRoomIDs: creds.User.ManagedRoomIDs,
		IP:             "192.0.2.10",
		UserAgent:      "testfixtures",
	}
}

// SuperAdmin returns a super administrator principal that need not exist in storage.
func SuperAdmin() application.Principal {
	return application.Principal{UserID: "super-admin", Role: access.RoleSuperAdmin, IP: "192.0.2.1"}
}

// RoomOption configures a generated room input.
type RoomOption func(*application.RoomInput)

// NewRoomInput returns a valid meeting room for ten people with default booking limits.
func NewRoomInput(opts ...RoomOption) application.RoomInput {
	idx := atomic.AddUint64(&roomCounter, 1)
	input := application.RoomInput{
		Name:      fmt.Sprintf("Room %03d", idx),
		Category:  scheduler.CategoryMeeting,
		Capacity:  10,
		Location:  "Headquarters",
		Floor:     fmt.Sprintf("%d", idx%10),
		Amenities: []string{"whiteboard"},
	}
	for _, opt := range opts {
		opt(&input)
	}
	return input
}

// WithCapacity overrides the room capacity.
func WithCapacity(capacity int) RoomOption {
	return func(r *application.RoomInput) { r.Capacity = capacity }
}

// WithCategory overrides the room category.
func WithCategory(category scheduler.Category) RoomOption {
	return func(r *application.RoomInput) { r.Category = category }
}

// HourlyBooking returns booking input for date between the given whole hours.
func HourlyBooking(roomID, purpose string, date time.Time, startHour, endHour int) application.BookingInput {
	return application.BookingInput{
		RoomID:            roomID,
		Purpose:           purpose,
		Type:              scheduler.BookingTypeHourly,
		StartDate:         date,
		EndDate:           date,
		StartTime:         scheduler.NewTimeOfDay(startHour, 0),
		EndTime:           scheduler.NewTimeOfDay(endHour, 0),
		ExpectedAttendees: 4,
	}
}
