package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/example/room-booking/internal/access"
	"github.com/example/room-booking/internal/events"
	"github.com/example/room-booking/internal/scheduler"
	"github.com/example/room-booking/internal/security"
	"github.com/example/room-booking/internal/workflow"
)

const maxRoomNameLength = 100

var activeStatuses = []workflow.Status{workflow.StatusPending, workflow.StatusApproved}

// RoomService orchestrates validation, authorization, and persistence for rooms.
type RoomService struct {
	rooms    RoomRepository
	bookings BookingRepository
	engine   *scheduler.Engine
	rec      recorder
	logger   *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms RoomRepository, bookings BookingRepository, engine *scheduler.Engine, sinks Sinks, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, bookings, engine, sinks, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms RoomRepository, bookings BookingRepository, engine *scheduler.Engine, sinks Sinks, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if engine == nil {
		engine = scheduler.NewEngine(scheduler.DefaultConfig(), now)
	}
	return &RoomService{
		rooms:    rooms,
		bookings: bookings,
		engine:   engine,
		rec:      recorder{sinks: sinks, idGenerator: idGenerator, now: now},
		logger:   defaultLogger(logger),
	}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// CreateRoom validates input and persists a new room for super administrators.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room created")
	}()

	if !access.CanManageRooms(params.Principal.actor()) {
		err = ErrUnauthorized
		return
	}

	input := normalizeRoomInput(params.Input)
	vErr := validateRoomInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.rec.now()
	room = Room{ID: s.rec.idGenerator(), IsActive: true, CreatedAt: now, UpdatedAt: now}
	room.apply(input)

	if s.rooms == nil {
		return
	}
	if err = s.rooms.CreateRoom(ctx, room); err != nil {
		err = mapRoomRepoError(err)
		return
	}

	s.roomChanged(ctx, logger, params.Principal, security.ActionRoomCreate, room, "Room created")
	return
}

// UpdateRoom validates input and updates a room the principal manages.
func (s *RoomService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if !access.CanManageRoom(params.Principal.actor(), params.RoomID) {
		err = ErrUnauthorized
		return
	}
	if s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room updated")
	}()

	room, err = s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	input := normalizeRoomInput(params.Input)
	vErr := validateRoomInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	room.apply(input)
	room.UpdatedAt = s.rec.now()

	if err = s.rooms.UpdateRoom(ctx, room); err != nil {
		err = mapRoomRepoError(err)
		return
	}

	s.roomChanged(ctx, logger, params.Principal, security.ActionRoomUpdate, room, "Room updated")
	return
}

// DeleteRoom removes a room when requested by a super administrator. Rooms with
// pending or approved bookings from today on are kept; deactivate them instead.
func (s *RoomService) DeleteRoom(ctx context.Context, principal Principal, roomID string) error {
	if s == nil {
		return fmt.Errorf("RoomService is nil")
	}
	if !access.CanManageRooms(principal.actor()) {
		return ErrUnauthorized
	}
	if s.rooms == nil {
		return fmt.Errorf("room repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteRoom",
		"principal_id", principal.UserID,
		"room_id", roomID,
	)

	room, err := s.rooms.GetRoom(ctx, roomID)
	if err == nil {
		err = s.ensureNoUpcomingBookings(ctx, roomID)
	}
	if err == nil {
		err = s.rooms.DeleteRoom(ctx, roomID)
	}
	if err != nil {
		err = mapRoomRepoError(err)
		logger.ErrorContext(ctx, "failed to delete room", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	s.roomChanged(ctx, logger, principal, security.ActionRoomDelete, room, "Room deleted")
	logger.InfoContext(ctx, "room deleted")
	return nil
}

func (s *RoomService) ensureNoUpcomingBookings(ctx context.Context, roomID string) error {
	if s.bookings == nil {
		return nil
	}
	today := scheduler.DateOf(s.rec.now())
	upcoming, err := s.bookings.ListBookings(ctx, BookingFilter{RoomID: roomID, Statuses: activeStatuses, From: &today})
	if err != nil {
		return fmt.Errorf("list upcoming bookings: %w", err)
	}
	if len(upcoming) > 0 {
		vErr := &ValidationError{}
		vErr.add("room_id", fmt.Sprintf("Room has %d upcoming booking(s). Cancel them or deactivate the room.", len(upcoming)))
		return vErr
	}
	return nil
}

// GetRoom returns a single room.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (Room, error) {
	if s == nil {
		return Room{}, fmt.Errorf("RoomService is nil")
	}
	if s.rooms == nil {
		return Room{}, ErrNotFound
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return Room{}, mapRoomRepoError(err)
	}
	return room, nil
}

// ListRooms returns the rooms matching filter ordered by name.
func (s *RoomService) ListRooms(ctx context.Context, filter RoomFilter) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListRooms",
		"category", string(filter.Category),
		"min_capacity", filter.MinCapacity,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).InfoContext(ctx, "rooms listed")
	}()

	if filter.Category != "" && !filter.Category.Valid() {
		vErr := &ValidationError{}
		vErr.add("category", "category is invalid")
		err = vErr
		return
	}

	rooms, err = s.rooms.ListRooms(ctx, filter)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}
	sortRooms(rooms)
	return
}

// AvailableRooms returns the active rooms that seat the attendees and have no
// pending or approved booking overlapping the requested slot.
func (s *RoomService) AvailableRooms(ctx context.Context, query AvailableRoomsQuery) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "AvailableRooms",
		"date", scheduler.FormatDate(query.Date),
		"attendees", query.Attendees,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to search available rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).InfoContext(ctx, "available rooms listed")
	}()

	vErr := &ValidationError{}
	if query.Date.IsZero() {
		vErr.add("date", "date is required")
	}
	if query.StartTime >= query.EndTime {
		vErr.add("end_time", "End time must be after start time.")
	}
	if query.Attendees < 1 {
		vErr.add("attendees", "attendees must be at least 1")
	}
	if query.Category != "" && !query.Category.Valid() {
		vErr.add("category", "category is invalid")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var candidates []Room
	candidates, err = s.rooms.ListRooms(ctx, RoomFilter{Category: query.Category, MinCapacity: query.Attendees, ActiveOnly: true})
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	var booked []Booking
	if s.bookings != nil {
		day := scheduler.DateOf(query.Date)
		booked, err = s.bookings.ListBookings(ctx, BookingFilter{Statuses: activeStatuses, From: &day, To: &day})
		if err != nil {
			err = mapBookingRepoError(err)
			return
		}
	}

	existing := make([]scheduler.Booking, 0, len(booked))
	for _, b := range booked {
		existing = append(existing, b.slot())
	}

	rooms = make([]Room, 0, len(candidates))
	for _, room := range candidates {
		if !scheduler.CanAcceptBooking(room.constraints(), query.Attendees) {
			continue
		}
		candidate := scheduler.Booking{
			RoomID:    room.ID,
			StartDate: query.Date,
			EndDate:   query.Date,
			StartTime: query.StartTime,
			EndTime:   query.EndTime,
		}
		if len(scheduler.DetectConflicts(existing, candidate)) == 0 {
			rooms = append(rooms, room)
		}
	}
	sortRooms(rooms)
	return
}

// RoomAvailability reports the occupancy and free slots of a room on date.
func (s *RoomService) RoomAvailability(ctx context.Context, roomID string, date time.Time) (result RoomAvailability, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		err = ErrNotFound
		return
	}

	logger := s.loggerWith(ctx, "RoomAvailability",
		"room_id", roomID,
		"date", scheduler.FormatDate(date),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute availability", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("level", string(result.Availability.Level)).InfoContext(ctx, "availability computed")
	}()

	if date.IsZero() {
		vErr := &ValidationError{}
		vErr.add("date", "date is required")
		err = vErr
		return
	}

	result.Room, err = s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	if s.bookings != nil {
		day := scheduler.DateOf(date)
		result.Bookings, err = s.bookings.ListBookings(ctx, BookingFilter{RoomID: roomID, Statuses: activeStatuses, From: &day, To: &day})
		if err != nil {
			err = mapBookingRepoError(err)
			return
		}
	}

	slots := make([]scheduler.Booking, 0, len(result.Bookings))
	for _, b := range result.Bookings {
		slots = append(slots, b.slot())
	}
	result.Availability = s.engine.AvailabilityLevel(date, slots)
	result.FreeSlots = s.engine.FreeSlots(result.Room.constraints(), date, slots)
	return
}

func (s *RoomService) roomChanged(ctx context.Context, logger *slog.Logger, principal Principal, action security.Action, room Room, description string) {
	s.rec.audit(ctx, logger, auditRecord{
		actor:       principal.actorRef(),
		action:      action,
		description: fmt.Sprintf("%s: %s", description, room.Name),
		objectType:  "room",
		objectID:    room.ID,
		client:      principal.client(),
	})
	s.rec.publish(ctx, logger, events.Event{
		Type:    events.TypeRoomChanged,
		RoomID:  room.ID,
		ActorID: principal.UserID,
		Status:  string(action),
	})
}

func normalizeRoomInput(input RoomInput) RoomInput {
	input.Name = strings.TrimSpace(input.Name)
	input.Location = strings.TrimSpace(input.Location)
	input.Floor = strings.TrimSpace(input.Floor)
	input.Description = strings.TrimSpace(input.Description)
	if input.Category == "" {
		input.Category = scheduler.CategoryConference
	}
	if input.MinBookingHours == 0 {
		input.MinBookingHours = scheduler.DefaultMinBookingHours
	}
	if input.MaxBookingHours == 0 {
		input.MaxBookingHours = scheduler.DefaultMaxBookingHours
	}
	if input.AdvanceBookingDays == 0 {
		input.AdvanceBookingDays = scheduler.DefaultAdvanceBookingDays
	}
	amenities := make([]string, 0, len(input.Amenities))
	for _, a := range input.Amenities {
		if a = strings.TrimSpace(a); a != "" {
			amenities = append(amenities, a)
		}
	}
	input.Amenities = amenities
	return input
}

func validateRoomInput(input RoomInput) *ValidationError {
	vErr := &ValidationError{}

	switch {
	case input.Name == "":
		vErr.add("name", "name is required")
	case len(input.Name) > maxRoomNameLength:
		vErr.add("name", fmt.Sprintf("name must be at most %d characters", maxRoomNameLength))
	}
	if !input.Category.Valid() {
		vErr.add("category", "category is invalid")
	}
	if input.Capacity < scheduler.MinRoomCapacity || input.Capacity > scheduler.MaxRoomCapacity {
		vErr.add("capacity", fmt.Sprintf("capacity must be between %d and %d", scheduler.MinRoomCapacity, scheduler.MaxRoomCapacity))
	}
	if input.MinBookingHours < 1 {
		vErr.add("min_booking_hours", "minimum booking duration must be at least 1 hour")
	}
	if input.MaxBookingHours < input.MinBookingHours {
		vErr.add("max_booking_hours", "maximum booking duration must not be below the minimum")
	}
	if input.AdvanceBookingDays < 0 {
		vErr.add("advance_booking_days", "advance booking days must not be negative")
	}

	return vErr
}

func sortRooms(rooms []Room) {
	slices.SortFunc(rooms, func(a, b Room) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func mapRoomRepoError(err error) error {
	return mapConstraintError(mapRepoError(err), "capacity", "room violates a storage constraint")
}
