package scheduler

import (
	"strings"
	"testing"
	"time"

	"github.com/example/room-booking/internal/workflow"
)

var testNow = time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func hm(h, m int) TimeOfDay { return NewTimeOfDay(h, m) }

func testRoom() Room {
	return Room{
		ID:                 "room-1",
		Capacity:           10,
		MinBookingHours:    1,
		MaxBookingHours:    8,
		AdvanceBookingDays: 30,
		Active:             true,
	}
}

func hourly(id string, date time.Time, start, end TimeOfDay, status workflow.Status) Booking {
	return Booking{
		ID:                id,
		RoomID:            "room-1",
		Purpose:           "Meeting " + id,
		Type:              BookingTypeHourly,
		StartDate:         date,
		EndDate:           date,
		StartTime:         start,
		EndTime:           end,
		Status:            status,
		ExpectedAttendees: 4,
	}
}

func TestEngine_Validate_OverlapScenario(t *testing.T) {
	engine := NewEngine(DefaultConfig(), fixedClock)
	june1 := day(2025, 6, 1)
	existing := []Booking{hourly("A", june1, hm(9, 0), hm(11, 0), workflow.StatusApproved)}

	t.Run("overlapping candidate is rejected citing the existing booking", func(t *testing.T) {
		res := engine.Validate(hourly("B", june1, hm(10, 0), hm(12, 0), workflow.StatusPending), testRoom(), existing)
		if res.OK() {
			t.Fatal("expected overlap to be rejected")
		}
		if len(res.Conflicts) != 1 || res.Conflicts[0].ID != "A" {
			t.Fatalf("expected conflict with A, got %+v", res.Conflicts)
		}
		if msg := res.FieldErrors["start_time"]; !strings.Contains(msg, "Meeting A") {
			t.Fatalf("expected start_time message citing A, got %q", msg)
		}
	})

	t.Run("adjacent candidate is accepted", func(t *testing.T) {
		res := engine.Validate(hourly("C", june1, hm(11, 0), hm(13, 0), workflow.StatusPending), testRoom(), existing)
		if !res.OK() {
			t.Fatalf("expected adjacent booking to pass, got %+v", res.FieldErrors)
		}
	})

	t.Run("cancelled and rejected bookings release the slot", func(t *testing.T) {
		released := []Booking{
			hourly("X", june1, hm(9, 0), hm(11, 0), workflow.StatusCancelled),
			hourly("Y", june1, hm(9, 0), hm(11, 0), workflow.StatusRejected),
		}
		res := engine.Validate(hourly("B", june1, hm(10, 0), hm(12, 0), workflow.StatusPending), testRoom(), released)
		if !res.OK() {
			t.Fatalf("expected slot to be free, got %+v", res.FieldErrors)
		}
	})

	t.Run("editing a booking does not conflict with itself", func(t *testing.T) {
		res := engine.Validate(hourly("A", june1, hm(9, 30), hm(11, 30), workflow.StatusApproved), testRoom(), existing)
		if !res.OK() {
			t.Fatalf("expected self overlap to be ignored, got %+v", res.FieldErrors)
		}
	})
}

func TestEngine_Validate_OverlapProperty(t *testing.T) {
	engine := NewEngine(DefaultConfig(), fixedClock)
	june2 := day(2025, 6, 2)
	existing := []Booking{
		hourly("A", june2, hm(9, 0), hm(10, 0), workflow.StatusApproved),
		hourly("B", june2, hm(13, 0), hm(15, 0), workflow.StatusPending),
	}

	for start := 8; start < 18; start++ {
		for end := start + 1; end <= 18 && end-start <= 8; end++ {
			candidate := hourly("N", june2, hm(start, 0), hm(end, 0), workflow.StatusPending)
			want := true
			for _, other := range existing {
				if candidate.StartTime < other.EndTime && candidate.EndTime > other.StartTime {
					want = false
				}
			}
			if got := engine.Validate(candidate, testRoom(), existing).OK(); got != want {
				t.Fatalf("%s-%s: OK = %v, want %v", candidate.StartTime, candidate.EndTime, got, want)
			}
		}
	}
}

func TestEngine_Validate_TypeRules(t *testing.T) {
	engine := NewEngine(DefaultConfig(), fixedClock)

	tests := []struct {
		name      string
		booking   Booking
		wantField string
	}{
		{
			name: "weekly of seven days passes",
			booking: Booking{RoomID: "room-1", Type: BookingTypeWeekly, StartDate: day(2025, 6, 2), EndDate: day(2025, 6, 8),
				StartTime: hm(9, 0), EndTime: hm(12, 0), ExpectedAttendees: 3},
		},
		{
			name: "weekly of six days is rejected",
			booking: Booking{RoomID: "room-1", Type: BookingTypeWeekly, StartDate: day(2025, 6, 2), EndDate: day(2025, 6, 7),
				StartTime: hm(9, 0), EndTime: hm(12, 0), ExpectedAttendees: 3},
			wantField: "booking_type",
		},
		{
			name: "hourly across days is rejected",
			booking: Booking{RoomID: "room-1", Type: BookingTypeHourly, StartDate: day(2025, 6, 2), EndDate: day(2025, 6, 3),
				StartTime: hm(9, 0), EndTime: hm(12, 0), ExpectedAttendees: 3},
			wantField: "booking_type",
		},
		{
			name: "full day must use business hours",
			booking: Booking{RoomID: "room-1", Type: BookingTypeFullDay, StartDate: day(2025, 6, 2), EndDate: day(2025, 6, 2),
				StartTime: hm(9, 0), EndTime: hm(18, 0), ExpectedAttendees: 3},
			wantField: "booking_type",
		},
		{
			name: "full day ignores max duration",
			booking: Booking{RoomID: "room-1", Type: BookingTypeFullDay, StartDate: day(2025, 6, 2), EndDate: day(2025, 6, 2),
				StartTime: hm(8, 0), EndTime: hm(18, 0), ExpectedAttendees: 3},
		},
		{
			name: "multi day consecutive needs two days",
			booking: Booking{RoomID: "room-1", Type: BookingTypeMultiDay, StartDate: day(2025, 6, 2), EndDate: day(2025, 6, 2),
				StartTime: hm(9, 0), EndTime: hm(12, 0), ExpectedAttendees: 3},
			wantField: "booking_type",
		},
		{
			name: "multi day consecutive below a week passes",
			booking: Booking{RoomID: "room-1", Type: BookingTypeMultiDay, StartDate: day(2025, 6, 2), EndDate: day(2025, 6, 7),
				StartTime: hm(9, 0), EndTime: hm(12, 0), ExpectedAttendees: 3},
		},
		{
			name: "multi day consecutive of seven days is rejected",
			booking: Booking{RoomID: "room-1", Type: BookingTypeMultiDay, StartDate: day(2025, 6, 2), EndDate: day(2025, 6, 8),
				StartTime: hm(9, 0), EndTime: hm(12, 0), ExpectedAttendees: 3},
			wantField: "booking_type",
		},
		{
			name: "multi day selected dates inside range pass",
			booking: Booking{RoomID: "room-1", Type: BookingTypeMultiDay, StartDate: day(2025, 6, 2), EndDate: day(2025, 6, 20),
				SelectedDates: []time.Time{day(2025, 6, 2), day(2025, 6, 9), day(2025, 6, 20)},
				StartTime:     hm(9, 0), EndTime: hm(12, 0), ExpectedAttendees: 3},
		},
		{
			name: "multi day single selected date is rejected",
			booking: Booking{RoomID: "room-1", Type: BookingTypeMultiDay, StartDate: day(2025, 6, 2), EndDate: day(2025, 6, 3),
				SelectedDates: []time.Time{day(2025, 6, 2)},
				StartTime:     hm(9, 0), EndTime: hm(12, 0), ExpectedAttendees: 3},
			wantField: "selected_dates",
		},
		{
			name: "multi day selected date outside range is rejected",
			booking: Booking{RoomID: "room-1", Type: BookingTypeMultiDay, StartDate: day(2025, 6, 2), EndDate: day(2025, 6, 4),
				SelectedDates: []time.Time{day(2025, 6, 2), day(2025, 6, 5)},
				StartTime:     hm(9, 0), EndTime: hm(12, 0), ExpectedAttendees: 3},
			wantField: "selected_dates",
		},
		{
			name: "multi day repeated selected date is rejected",
			booking: Booking{RoomID: "room-1", Type: BookingTypeMultiDay, StartDate: day(2025, 6, 2), EndDate: day(2025, 6, 4),
				SelectedDates: []time.Time{day(2025, 6, 2), day(2025, 6, 2)},
				StartTime:     hm(9, 0), EndTime: hm(12, 0), ExpectedAttendees: 3},
			wantField: "selected_dates",
		},
		{
			name: "multi day with seven selected dates is rejected",
			booking: Booking{RoomID: "room-1", Type: BookingTypeMultiDay, StartDate: day(2025, 6, 2), EndDate: day(2025, 6, 10),
				SelectedDates: []time.Time{day(2025, 6, 2), day(2025, 6, 3), day(2025, 6, 4), day(2025, 6, 5), day(2025, 6, 6), day(2025, 6, 7), day(2025, 6, 8)},
				StartTime:     hm(9, 0), EndTime: hm(12, 0), ExpectedAttendees: 3},
			wantField: "selected_dates",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := engine.Validate(tc.booking, testRoom(), nil)
			if tc.wantField == "" {
				if !res.OK() {
					t.Fatalf("expected success, got %+v", res.FieldErrors)
				}
				return
			}
			if _, ok := res.FieldErrors[tc.wantField]; !ok {
				t.Fatalf("expected %s error, got %+v", tc.wantField, res.FieldErrors)
			}
		})
	}
}

func TestEngine_Validate_AccumulatesErrors(t *testing.T) {
	engine := NewEngine(DefaultConfig(), fixedClock)
	candidate := Booking{
		RoomID:            "room-1",
		Type:              BookingTypeHourly,
		StartDate:         day(2025, 5, 19),
		EndDate:           day(2025, 5, 18),
		StartTime:         hm(12, 0),
		EndTime:           hm(11, 0),
		ExpectedAttendees: 25,
	}

	res := engine.Validate(candidate, testRoom(), nil)
	for _, field := range []string{"start_date", "end_date", "end_time", "booking_type", "expected_attendees"} {
		if _, ok := res.FieldErrors[field]; !ok {
			t.Fatalf("expected %s to be reported, got %+v", field, res.FieldErrors)
		}
	}
	if res.FieldErrors["start_date"] != "Cannot book in the past." {
		t.Fatalf("unexpected start_date message %q", res.FieldErrors["start_date"])
	}
}

func TestEngine_Validate_RoomRules(t *testing.T) {
	engine := NewEngine(DefaultConfig(), fixedClock)

	t.Run("inactive room is reported before other checks", func(t *testing.T) {
		room := testRoom()
		room.Active = false
		res := engine.Validate(hourly("N", day(2025, 5, 1), hm(9, 0), hm(8, 0), workflow.StatusPending), room, nil)
		if len(res.FieldErrors) != 1 || res.FieldErrors["room"] == "" {
			t.Fatalf("expected only room error, got %+v", res.FieldErrors)
		}
	})

	t.Run("same day start before now is in the past", func(t *testing.T) {
		res := engine.Validate(hourly("N", day(2025, 5, 20), hm(10, 0), hm(11, 0), workflow.StatusPending), testRoom(), nil)
		if res.FieldErrors["start_time"] != "Cannot book in the past." {
			t.Fatalf("expected start_time past error, got %+v", res.FieldErrors)
		}
	})

	t.Run("advance window is enforced", func(t *testing.T) {
		res := engine.Validate(hourly("N", day(2025, 6, 20), hm(9, 0), hm(10, 0), workflow.StatusPending), testRoom(), nil)
		if _, ok := res.FieldErrors["start_date"]; !ok {
			t.Fatalf("expected advance window error, got %+v", res.FieldErrors)
		}
		res = engine.Validate(hourly("N", day(2025, 6, 19), hm(9, 0), hm(10, 0), workflow.StatusPending), testRoom(), nil)
		if !res.OK() {
			t.Fatalf("expected last day of window to pass, got %+v", res.FieldErrors)
		}
	})

	t.Run("duration limits use the daily window", func(t *testing.T) {
		short := hourly("N", day(2025, 6, 2), hm(9, 0), hm(9, 30), workflow.StatusPending)
		if _, ok := engine.Validate(short, testRoom(), nil).FieldErrors["end_time"]; !ok {
			t.Fatal("expected minimum duration error")
		}
		long := hourly("N", day(2025, 6, 2), hm(8, 0), hm(17, 0), workflow.StatusPending)
		if _, ok := engine.Validate(long, testRoom(), nil).FieldErrors["end_time"]; !ok {
			t.Fatal("expected maximum duration error")
		}
	})
}

func TestEngine_AvailabilityLevel(t *testing.T) {
	engine := NewEngine(DefaultConfig(), fixedClock)
	date := day(2025, 6, 3)

	if got := engine.AvailabilityLevel(date, nil); got.Level != LevelAvailable || got.Percentage != 0 {
		t.Fatalf("expected available, got %+v", got)
	}

	bookings := []Booking{
		hourly("A", date, hm(7, 0), hm(10, 0), workflow.StatusApproved),
		hourly("B", date, hm(12, 0), hm(13, 0), workflow.StatusCancelled),
	}
	got := engine.AvailabilityLevel(date, bookings)
	if got.Level != LevelPartiallyBooked || got.BookedMinutes != 120 {
		t.Fatalf("expected 120 clipped minutes partially booked, got %+v", got)
	}
	if got.Percentage != 20 {
		t.Fatalf("expected 20%%, got %v", got.Percentage)
	}

	full := append(bookings, hourly("C", date, hm(10, 0), hm(19, 0), workflow.StatusPending))
	if got := engine.AvailabilityLevel(date, full); got.Level != LevelFullyBooked {
		t.Fatalf("expected fully booked, got %+v", got)
	}

	levelRank := map[Level]int{LevelAvailable: 0, LevelPartiallyBooked: 1, LevelFullyBooked: 2}
	t.Run("adding bookings never lowers the level", func(t *testing.T) {
		var set []Booking
		prev := engine.AvailabilityLevel(date, set).Level
		for h := 8; h < 18; h++ {
			set = append(set, hourly("H", date, hm(h, 0), hm(h+1, 0), workflow.StatusApproved))
			level := engine.AvailabilityLevel(date, set).Level
			if levelRank[level] < levelRank[prev] {
				t.Fatalf("level decreased from %s to %s", prev, level)
			}
			prev = level
		}
		if prev != LevelFullyBooked {
			t.Fatalf("expected fully booked after covering the day, got %s", prev)
		}
	})
}

func TestEngine_FreeSlots(t *testing.T) {
	engine := NewEngine(DefaultConfig(), fixedClock)
	date := day(2025, 6, 3)
	room := testRoom()

	bookings := []Booking{
		hourly("B", date, hm(13, 0), hm(15, 0), workflow.StatusApproved),
		hourly("A", date, hm(9, 0), hm(11, 0), workflow.StatusPending),
		hourly("Z", date, hm(10, 0), hm(12, 0), workflow.StatusApproved),
	}

	slots := engine.FreeSlots(room, date, bookings)
	want := []Slot{
		{Start: hm(8, 0), End: hm(9, 0), DurationHours: 1},
		{Start: hm(12, 0), End: hm(13, 0), DurationHours: 1},
		{Start: hm(15, 0), End: hm(18, 0), DurationHours: 3},
	}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %+v", len(want), slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("slot %d: expected %+v, got %+v", i, want[i], slots[i])
		}
	}

	t.Run("slots and bookings tile business hours", func(t *testing.T) {
		covered := make([]bool, engine.Config().BusinessMinutes())
		mark := func(from, to TimeOfDay) {
			for m := from; m < to; m++ {
				idx := int(m - engine.Config().Open)
				if covered[idx] {
					for _, s := range slots {
						if m >= s.Start && m < s.End {
							t.Fatalf("slot %+v overlaps a booking at %s", s, m)
						}
					}
				}
				covered[idx] = true
			}
		}
		for _, b := range bookings {
			start, end := engine.clip(b)
			mark(start, end)
		}
		for _, s := range slots {
			mark(s.Start, s.End)
		}
		for i, ok := range covered {
			if !ok {
				t.Fatalf("minute %s left uncovered", engine.Config().Open+TimeOfDay(i))
			}
		}
	})

	t.Run("gaps shorter than the minimum are dropped", func(t *testing.T) {
		tight := []Booking{
			hourly("A", date, hm(8, 30), hm(12, 0), workflow.StatusApproved),
			hourly("B", date, hm(12, 30), hm(18, 0), workflow.StatusApproved),
		}
		if slots := engine.FreeSlots(room, date, tight); len(slots) != 0 {
			t.Fatalf("expected no slots, got %+v", slots)
		}
	})

	t.Run("empty day is one slot", func(t *testing.T) {
		slots := engine.FreeSlots(room, date, nil)
		if len(slots) != 1 || slots[0].DurationHours != 10 {
			t.Fatalf("expected one ten hour slot, got %+v", slots)
		}
	})
}

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("09:45:00")
	if err != nil {
		t.Fatalf("ParseTimeOfDay returned error: %v", err)
	}
	if got != hm(9, 45) || got.String() != "09:45" {
		t.Fatalf("unexpected value %v", got)
	}
	if _, err := ParseTimeOfDay("25:00"); err == nil {
		t.Fatal("expected error for invalid time")
	}
}
