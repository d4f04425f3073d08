package scheduler

import (
	"fmt"
	"time"
)

const (
	minMultiDayDates = 2
	maxMultiDayDates = 6
	weeklyDays       = 7
)

// Result collects field level violations and the bookings a candidate collides with.
type Result struct {
	FieldErrors map[string]string
	Conflicts   []Booking
}

// OK reports whether the candidate passed every check.
func (r Result) OK() bool {
	return len(r.FieldErrors) == 0 && len(r.Conflicts) == 0
}

// the first message recorded for a field wins
func (r *Result) add(field, message string) {
	if r.FieldErrors == nil {
		r.FieldErrors = make(map[string]string)
	}
	if _, exists := r.FieldErrors[field]; exists {
		return
	}
	r.FieldErrors[field] = message
}

// Engine validates bookings and computes availability for a fixed set of business hours.
type Engine struct {
	cfg Config
	now func() time.Time
}

// NewEngine constructs an engine. A nil clock falls back to time.Now.
func NewEngine(cfg Config, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{cfg: cfg.normalized(), now: now}
}

// Config returns the business hours in use.
func (e *Engine) Config() Config {
	return e.cfg
}

// Validate runs every rule against the candidate. existing may contain bookings
// of other rooms or inactive bookings; they are ignored by the overlap check.
func (e *Engine) Validate(candidate Booking, room Room, existing []Booking) Result {
	var res Result

	if !room.Active {
		res.add("room", "Room is not available for booking.")
		return res
	}

	e.checkStructure(&res, candidate)
	e.checkPast(&res, candidate)
	e.checkType(&res, candidate)
	checkCapacity(&res, candidate, room)
	e.checkAdvanceWindow(&res, candidate, room)
	checkDuration(&res, candidate, room)

	if conflicts := DetectConflicts(existing, candidate); len(conflicts) > 0 {
		res.Conflicts = conflicts
		res.add("start_time", fmt.Sprintf("Time slot conflicts with existing booking: %s", conflicts[0].Purpose))
	}

	return res
}

func (e *Engine) checkStructure(res *Result, b Booking) {
	if DateOf(b.StartDate).After(DateOf(b.EndDate)) {
		res.add("end_date", "End date must be after start date.")
	}
	if b.StartTime >= b.EndTime {
		res.add("end_time", "End time must be after start time.")
	}
}

func (e *Engine) checkPast(res *Result, b Booking) {
	now := e.now()
	today := DateOf(now)
	start := DateOf(b.StartDate)
	if start.Before(today) {
		res.add("start_date", "Cannot book in the past.")
		return
	}
	if start.Equal(today) && b.StartTime <= TimeOfDayOf(now) {
		res.add("start_time", "Cannot book in the past.")
	}
}

func (e *Engine) checkType(res *Result, b Booking) {
	sameDay := DateOf(b.StartDate).Equal(DateOf(b.EndDate))
	days := DaySpan(b.StartDate, b.EndDate)

	switch b.Type {
	case BookingTypeHourly:
		if !sameDay {
			res.add("booking_type", "Hourly booking must be within a single day.")
		}
	case BookingTypeFullDay:
		if !sameDay {
			res.add("booking_type", "Full day booking must be for a single day.")
		}
		if b.StartTime != e.cfg.Open || b.EndTime != e.cfg.Close {
			res.add("booking_type", fmt.Sprintf("Full day booking must be from %s to %s.", e.cfg.Open, e.cfg.Close))
		}
	case BookingTypeWeekly:
		if days != weeklyDays {
			res.add("booking_type", "Weekly booking must be exactly 7 consecutive days.")
		}
	case BookingTypeMultiDay:
		if len(b.SelectedDates) > 0 {
			checkSelectedDates(res, b)
			return
		}
		if days < minMultiDayDates {
			res.add("booking_type", "Multi-day booking must span at least 2 days.")
		}
		if days >= weeklyDays {
			res.add("booking_type", "Multi-day booking should be less than 7 days. Use weekly booking instead.")
		}
	default:
		res.add("booking_type", fmt.Sprintf("Unknown booking type %q.", b.Type))
	}
}

func checkSelectedDates(res *Result, b Booking) {
	switch {
	case len(b.SelectedDates) < minMultiDayDates:
		res.add("selected_dates", "Multi-day booking must have at least 2 selected dates.")
	case len(b.SelectedDates) > maxMultiDayDates:
		res.add("selected_dates", "Multi-day booking cannot exceed 6 days.")
	}
	start, end := DateOf(b.StartDate), DateOf(b.EndDate)
	seen := make(map[time.Time]struct{}, len(b.SelectedDates))
	for _, d := range b.SelectedDates {
		day := DateOf(d)
		if day.Before(start) || day.After(end) {
			res.add("selected_dates", "All selected dates must be within start and end date range.")
			return
		}
		if _, dup := seen[day]; dup {
			res.add("selected_dates", fmt.Sprintf("Date %s is selected more than once.", FormatDate(day)))
			return
		}
		seen[day] = struct{}{}
	}
}

func checkCapacity(res *Result, b Booking, room Room) {
	if b.ExpectedAttendees < 1 {
		res.add("expected_attendees", "Expected attendees must be at least 1.")
		return
	}
	if b.ExpectedAttendees > room.Capacity {
		res.add("expected_attendees", fmt.Sprintf("Attendee count (%d) exceeds room capacity (%d).", b.ExpectedAttendees, room.Capacity))
	}
}

func (e *Engine) checkAdvanceWindow(res *Result, b Booking, room Room) {
	if room.AdvanceBookingDays <= 0 {
		return
	}
	limit := DateOf(e.now()).AddDate(0, 0, room.AdvanceBookingDays)
	if DateOf(b.StartDate).After(limit) {
		res.add("start_date", fmt.Sprintf("Cannot book more than %d days in advance.", room.AdvanceBookingDays))
	}
}

// Full day bookings are fixed to business hours and skip the duration limits.
func checkDuration(res *Result, b Booking, room Room) {
	if b.Type == BookingTypeFullDay || b.StartTime >= b.EndTime {
		return
	}
	minutes := b.DurationMinutes()
	if room.MinBookingHours > 0 && minutes < room.MinBookingHours*60 {
		res.add("end_time", fmt.Sprintf("Minimum booking duration is %d hours.", room.MinBookingHours))
	}
	if room.MaxBookingHours > 0 && minutes > room.MaxBookingHours*60 {
		res.add("end_time", fmt.Sprintf("Maximum booking duration is %d hours.", room.MaxBookingHours))
	}
}
