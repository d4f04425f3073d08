package scheduler

// Category classifies rooms for search.
type Category string

const (
	CategoryConference Category = "conference"
	CategoryMeeting    Category = "meeting"
	CategoryBoardroom  Category = "boardroom"
	CategoryTraining   Category = "training"
	CategoryEventHall  Category = "event_hall"
	CategoryAuditorium Category = "auditorium"
	CategoryOther      Category = "other"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryConference, CategoryMeeting, CategoryBoardroom, CategoryTraining,
		CategoryEventHall, CategoryAuditorium, CategoryOther:
		return true
	}
	return false
}

const (
	MinRoomCapacity = 1
	MaxRoomCapacity = 1000

	DefaultMinBookingHours    = 1
	DefaultMaxBookingHours    = 8
	DefaultAdvanceBookingDays = 30
)

// Room carries the constraints a booking must satisfy.
type Room struct {
	ID                 string
	Capacity           int
	MinBookingHours    int
	MaxBookingHours    int
	AdvanceBookingDays int
	Active             bool
}

// CanAcceptBooking reports whether the room is open and large enough.
func CanAcceptBooking(room Room, attendees int) bool {
	return room.Active && attendees <= room.Capacity
}
