// Package workflow implements the booking approval state machine.
package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the approval state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

var (
	// ErrInvalidTransition is returned when a transition is not allowed from the current status.
	ErrInvalidTransition = errors.New("workflow: invalid status transition")
	// ErrReasonRequired is returned when a rejection carries no reason.
	ErrReasonRequired = errors.New("workflow: rejection reason required")
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether the booking still holds its time slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusApproved
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// TransitionError describes a rejected transition.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("workflow: cannot move booking from %s to %s", e.From, e.To)
}

// Is lets errors.Is match ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusPending, StatusCancelled},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Approval holds the approval state and metadata of a booking.
type Approval struct {
	Status          Status
	ApprovedBy      *string
	ApprovedAt      *time.Time
	RejectionReason string
}

// NewPending returns the initial state for a booking awaiting review.
func NewPending() Approval {
	return Approval{Status: StatusPending}
}

// AutoApproved returns the state of a booking approved on creation by its submitter.
func AutoApproved(actorID string, at time.Time) Approval {
	a := NewPending()
	_ = a.Approve(actorID, at)
	return a
}

// Approve moves a pending booking to approved.
func (a *Approval) Approve(actorID string, at time.Time) error {
	if err := a.check(StatusApproved); err != nil {
		return err
	}
	a.Status = StatusApproved
	a.stamp(actorID, at)
	a.RejectionReason = ""
	return nil
}

// Reject moves a pending booking to rejected. The reason is required.
func (a *Approval) Reject(actorID, reason string, at time.Time) error {
	if err := a.check(StatusRejected); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	a.Status = StatusRejected
	a.stamp(actorID, at)
	a.RejectionReason = reason
	return nil
}

// Edit applies the effect of a field change. Approved bookings return to pending
// with their approval metadata cleared; pending bookings are left untouched.
func (a *Approval) Edit() error {
	switch a.Status {
	case StatusPending:
		return nil
	case StatusApproved:
		a.Status = StatusPending
		a.ApprovedBy = nil
		a.ApprovedAt = nil
		a.RejectionReason = ""
		return nil
	default:
		return &TransitionError{From: a.Status, To: StatusPending}
	}
}

// Cancel soft-deletes a pending or approved booking.
func (a *Approval) Cancel() error {
	if err := a.check(StatusCancelled); err != nil {
		return err
	}
	a.Status = StatusCancelled
	return nil
}

func (a *Approval) check(to Status) error {
	if !CanTransition(a.Status, to) {
		return &TransitionError{From: a.Status, To: to}
	}
	return nil
}

func (a *Approval) stamp(actorID string, at time.Time) {
	actor := actorID
	when := at
	a.ApprovedBy = &actor
	a.ApprovedAt = &when
}
