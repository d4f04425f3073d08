// Package events delivers booking and room state changes to subscribers after
// the originating transaction has committed.
package events

import (
	"context"
	"errors"
	"time"
)

// Type names an event.
type Type string

const (
	TypeBookingCreated       Type = "booking.created"
	TypeBookingStatusChanged Type = "booking.status_changed"
	TypeBookingUpdated       Type = "booking.updated"
	TypeRoomChanged          Type = "room.changed"
)

// Event is the payload broadcast to subscribers.
type Event struct {
	ID             string    `json:"id"`
	Type           Type      `json:"type"`
	RoomID         string    `json:"room_id,omitempty"`
	BookingID      string    `json:"booking_id,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
	ActorID        string    `json:"actor_id,omitempty"`
	Status         string    `json:"status,omitempty"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	StartDate      string    `json:"start_date,omitempty"`
	EndDate        string    `json:"end_date,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher accepts events for delivery.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Fanout publishes every event to each publisher and joins their errors.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
