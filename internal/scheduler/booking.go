// Package scheduler is the booking conflict engine: it validates candidate
// bookings against room rules and existing bookings and derives availability.
package scheduler

import (
	"time"

	"github.com/example/room-booking/internal/workflow"
)

// BookingType determines which structural rules apply to a booking.
type BookingType string

const (
	BookingTypeHourly   BookingType = "hourly"
	BookingTypeFullDay  BookingType = "full_day"
	BookingTypeMultiDay BookingType = "multi_day"
	BookingTypeWeekly   BookingType = "weekly"
)

// Valid reports whether t is a known booking type.
func (t BookingType) Valid() bool {
	switch t {
	case BookingTypeHourly, BookingTypeFullDay, BookingTypeMultiDay, BookingTypeWeekly:
		return true
	}
	return false
}

// Booking is the engine's view of a booking.
type Booking struct {
	ID                string
	RoomID            string
	Purpose           string
	Type              BookingType
	StartDate         time.Time
	EndDate           time.Time
	StartTime         TimeOfDay
	EndTime           TimeOfDay
	SelectedDates     []time.Time
	Status            workflow.Status
	ExpectedAttendees int
}

// TouchesDate reports whether date falls inside the booking's date range.
func (b Booking) TouchesDate(date time.Time) bool {
	day := DateOf(date)
	return !day.Before(DateOf(b.StartDate)) && !day.After(DateOf(b.EndDate))
}

// DurationMinutes is the length of the daily time window.
func (b Booking) DurationMinutes() int {
	return int(b.EndTime - b.StartTime)
}

// DurationHours is the length of the daily time window in hours.
func (b Booking) DurationHours() float64 {
	return float64(b.DurationMinutes()) / 60
}

// Config holds the business hours that bound every booking day.
type Config struct {
	Open  TimeOfDay
	Close TimeOfDay
}

// DefaultConfig returns 08:00 to 18:00 business hours.
func DefaultConfig() Config {
	return Config{Open: NewTimeOfDay(8, 0), Close: NewTimeOfDay(18, 0)}
}

// BusinessMinutes is the length of a booking day.
func (c Config) BusinessMinutes() int {
	return int(c.Close - c.Open)
}

func (c Config) normalized() Config {
	if c.Close <= c.Open {
		return DefaultConfig()
	}
	return c
}
