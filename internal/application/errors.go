package application

import (
	"errors"
	"time"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrUnauthenticated is returned when no valid principal accompanies the request.
	ErrUnauthenticated = errors.New("application: unauthenticated")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when an email, password or code does not match.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned for inactive or unverified accounts.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrSessionExpired is returned when a bearer token outlived its session.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when a bearer token belongs to a logged out session.
	ErrSessionRevoked = errors.New("application: session revoked")
	// ErrRateLimited is returned while an email or ip address is locked out.
	ErrRateLimited = errors.New("application: rate limited")
	// ErrInvalidTransition is returned when a booking cannot move to the requested status.
	ErrInvalidTransition = errors.New("application: invalid status transition")
	// ErrTransientDelivery wraps notification failures. It is logged, never returned to callers.
	ErrTransientDelivery = errors.New("application: transient delivery failure")
)

// ConflictDetail describes an existing booking that collides with a candidate.
type ConflictDetail struct {
	BookingID string
	Purpose   string
	StartDate time.Time
	EndDate   time.Time
	StartTime string
	EndTime   string
	Status    string
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
	Conflicts   []ConflictDetail
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.Conflicts) > 0 {
		return "booking conflicts with existing bookings"
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && (len(v.FieldErrors) > 0 || len(v.Conflicts) > 0)
}

// IsConflict reports whether the failure was caused by overlapping bookings.
func (v *ValidationError) IsConflict() bool {
	return v != nil && len(v.Conflicts) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
	v.Conflicts = append(v.Conflicts, other.Conflicts...)
}
