package scheduler

import (
	"sort"
	"time"
)

// Level is a coarse occupancy classification for a room on a date.
type Level string

const (
	LevelAvailable       Level = "available"
	LevelPartiallyBooked Level = "partially_booked"
	LevelFullyBooked     Level = "fully_booked"
)

// Availability is the occupancy of a room on a single date.
type Availability struct {
	Date          time.Time
	Level         Level
	Percentage    float64
	BookedMinutes int
}

// Slot is a free interval inside business hours.
type Slot struct {
	Start         TimeOfDay
	End           TimeOfDay
	DurationHours float64
}

// AvailabilityLevel sums the minutes of active bookings touching date, clipped to
// business hours, and classifies the ratio.
func (e *Engine) AvailabilityLevel(date time.Time, bookings []Booking) Availability {
	booked := 0
	for _, b := range bookings {
		if !b.Status.Active() || !b.TouchesDate(date) {
			continue
		}
		start, end := e.clip(b)
		if end > start {
			booked += int(end - start)
		}
	}

	out := Availability{Date: DateOf(date), BookedMinutes: booked}
	out.Percentage = float64(booked) * 100 / float64(e.cfg.BusinessMinutes())
	switch {
	case booked == 0:
		out.Level = LevelAvailable
	case out.Percentage >= 100:
		out.Level = LevelFullyBooked
	default:
		out.Level = LevelPartiallyBooked
	}
	return out
}

// FreeSlots lists the gaps of at least the room's minimum duration between the
// active bookings touching date.
func (e *Engine) FreeSlots(room Room, date time.Time, bookings []Booking) []Slot {
	day := make([]Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.Status.Active() && b.TouchesDate(date) {
			day = append(day, b)
		}
	}
	sort.SliceStable(day, func(i, j int) bool { return day[i].StartTime < day[j].StartTime })

	minMinutes := room.MinBookingHours * 60
	var slots []Slot
	emit := func(from, to TimeOfDay) {
		if to > from && int(to-from) >= minMinutes {
			slots = append(slots, Slot{Start: from, End: to, DurationHours: float64(to-from) / 60})
		}
	}

	cursor := e.cfg.Open
	for _, b := range day {
		start, end := e.clip(b)
		if end <= start {
			continue
		}
		if start > cursor {
			emit(cursor, start)
		}
		if end > cursor {
			cursor = end
		}
	}
	emit(cursor, e.cfg.Close)
	return slots
}

func (e *Engine) clip(b Booking) (TimeOfDay, TimeOfDay) {
	start, end := b.StartTime, b.EndTime
	if start < e.cfg.Open {
		start = e.cfg.Open
	}
	if end > e.cfg.Close {
		end = e.cfg.Close
	}
	return start, end
}
