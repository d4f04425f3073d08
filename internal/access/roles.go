// Package access defines user roles and the capability checks derived from them.
package access

import (
	"fmt"
	"slices"
	"strings"

	"github.com/example/room-booking/internal/workflow"
)

// Role is the closed set of user roles.
type Role string

const (
	RoleUser               Role = "user"
	RoleRoomAdmin          Role = "room_admin"
	RoleSuperAdmin         Role = "super_admin"
	RoleProcurementOfficer Role = "procurement_officer"
)

// ParseRole converts a stored or submitted role name into a Role.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if !role.Valid() {
		return "", fmt.Errorf("access: unknown role %q", value)
	}
	return role, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleRoomAdmin, RoleSuperAdmin, RoleProcurementOfficer:
		return true
	}
	return false
}

// IsAdmin reports whether the role administers rooms in any capacity.
func (r Role) IsAdmin() bool {
	return r == RoleSuperAdmin || r == RoleRoomAdmin
}

// Actor is the subject of a capability check.
type Actor struct {
	UserID         string
	Role           Role
	ManagedRoomIDs []string
}

// Manages reports whether a room admin was assigned roomID.
func (a Actor) Manages(roomID string) bool {
	return a.Role == RoleRoomAdmin && roomID != "" && slices.Contains(a.ManagedRoomIDs, roomID)
}

// CanApprove reports whether the actor may approve or reject bookings of roomID.
func CanApprove(a Actor, roomID string) bool {
	switch a.Role {
	case RoleSuperAdmin:
		return true
	case RoleRoomAdmin:
		return a.Manages(roomID)
	}
	return false
}

// CanManageRoom reports whether the actor may edit roomID.
func CanManageRoom(a Actor, roomID string) bool {
	return CanApprove(a, roomID)
}

// CanManageRooms reports whether the actor may create or delete rooms.
func CanManageRooms(a Actor) bool {
	return a.Role == RoleSuperAdmin
}

// CanModifyBooking reports whether the actor may edit or cancel a booking.
// Owners keep the right while the booking is pending or approved.
func CanModifyBooking(a Actor, ownerID, roomID string, status workflow.Status) bool {
	if CanApprove(a, roomID) {
		return true
	}
	return a.UserID != "" && a.UserID == ownerID && status.Active()
}

// CanViewBooking reports whether the actor may read a booking.
func CanViewBooking(a Actor, ownerID, roomID string) bool {
	if a.UserID != "" && a.UserID == ownerID {
		return true
	}
	return a.Role == RoleProcurementOfficer || CanApprove(a, roomID)
}

// CanViewInternalNotes reports whether internal booking notes are visible to the actor.
func CanViewInternalNotes(a Actor, roomID string) bool {
	return CanApprove(a, roomID)
}

// Scope narrows booking listings to what an actor may see.
type Scope struct {
	All     bool
	UserID  string
	RoomIDs []string
}

// BookingScope returns the listing scope for the actor.
func BookingScope(a Actor) Scope {
	switch a.Role {
	case RoleSuperAdmin, RoleProcurementOfficer:
		return Scope{All: true}
	case RoleRoomAdmin:
		return Scope{UserID: a.UserID, RoomIDs: slices.Clone(a.ManagedRoomIDs)}
	}
	return Scope{UserID: a.UserID}
}
