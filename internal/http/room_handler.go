package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/scheduler"
)

type roomService interface {
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error)
	UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (application.Room, error)
	DeleteRoom(ctx context.Context, principal application.Principal, roomID string) error
	GetRoom(ctx context.Context, roomID string) (application.Room, error)
	ListRooms(ctx context.Context, filter application.RoomFilter) ([]application.Room, error)
	AvailableRooms(ctx context.Context, query application.AvailableRoomsQuery) ([]application.Room, error)
	RoomAvailability(ctx context.Context, roomID string, date time.Time) (application.RoomAvailability, error)
}

// RoomHandler serves the room catalog and per-room availability.
type RoomHandler struct {
	service   roomService
	responder responder
	logger    *slog.Logger
}

func NewRoomHandler(service roomService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := principalFor(r)

	var req roomRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode room request", "error", err)
		writeDecodeError(r.Context(), h.responder, w, err)
		return
	}

	logger := h.log(r.Context(), "Create")

	room, err := h.service.CreateRoom(r.Context(), application.CreateRoomParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "room creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("room_id", room.ID).InfoContext(r.Context(), "room created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID := strings.TrimSpace(pathParam(r.Context(), "id"))
	if roomID == "" {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "missing room id for update")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}

	principal, _ := principalFor(r)

	var req roomRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.log(r.Context(), "Update", "room_id", roomID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode room update", "error", err)
		writeDecodeError(r.Context(), h.responder, w, err)
		return
	}

	logger := h.log(r.Context(), "Update", "room_id", roomID)

	room, err := h.service.UpdateRoom(r.Context(), application.UpdateRoomParams{
		Principal: principal,
		RoomID:    roomID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "room update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "room updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID := strings.TrimSpace(pathParam(r.Context(), "id"))
	if roomID == "" {
		h.log(r.Context(), "Delete", "error_kind", "bad_request").ErrorContext(r.Context(), "missing room id for delete")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}

	principal, _ := principalFor(r)
	logger := h.log(r.Context(), "Delete", "room_id", roomID)

	if err := h.service.DeleteRoom(r.Context(), principal, roomID); err != nil {
		logger.ErrorContext(r.Context(), "room deletion failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "room deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID := strings.TrimSpace(pathParam(r.Context(), "id"))
	logger := h.log(r.Context(), "Get", "room_id", roomID)

	room, err := h.service.GetRoom(r.Context(), roomID)
	if err != nil {
		logger.ErrorContext(r.Context(), "room lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

// List serves GET /api/rooms?category=&min_capacity=&include_inactive=.
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	filter := application.RoomFilter{
		Category:   scheduler.Category(strings.TrimSpace(query.Get("category"))),
		ActiveOnly: query.Get("include_inactive") != "true",
	}
	if raw := query.Get("min_capacity"); raw != "" {
		capacity, err := strconv.Atoi(raw)
		if err != nil || capacity < 0 {
			h.responder.handleServiceError(r.Context(), w, &application.ValidationError{
				FieldErrors: map[string]string{"min_capacity": "min_capacity must be a non-negative integer"},
			})
			return
		}
		filter.MinCapacity = capacity
	}

	logger := h.log(r.Context(), "List")
	rooms, err := h.service.ListRooms(r.Context(), filter)
	if err != nil {
		logger.ErrorContext(r.Context(), "room list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(rooms)).InfoContext(r.Context(), "rooms listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

// Available serves GET /api/rooms-available?date=&start_time=&end_time=&attendees=&category=.
func (h *RoomHandler) Available(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	req := availableRoomsRequest{
		Date:      query.Get("date"),
		StartTime: query.Get("start_time"),
		EndTime:   query.Get("end_time"),
		Attendees: query.Get("attendees"),
		Category:  query.Get("category"),
	}
	if err := validateRequest(&req); err != nil {
		h.log(r.Context(), "Available", "error_kind", "validation").WarnContext(r.Context(), "invalid availability query", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "Available", "date", req.Date)
	rooms, err := h.service.AvailableRooms(r.Context(), req.toQuery())
	if err != nil {
		logger.ErrorContext(r.Context(), "available room search failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(rooms)).InfoContext(r.Context(), "available rooms listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

// Availability serves GET /api/rooms/:id/availability?date=.
func (h *RoomHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID := strings.TrimSpace(pathParam(r.Context(), "id"))
	rawDate := r.URL.Query().Get("date")
	date, err := scheduler.ParseDate(rawDate)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, &application.ValidationError{
			FieldErrors: map[string]string{"date": "date must be a date in YYYY-MM-DD format"},
		})
		return
	}

	logger := h.log(r.Context(), "Availability", "room_id", roomID, "date", rawDate)
	result, err := h.service.RoomAvailability(r.Context(), roomID, date)
	if err != nil {
		logger.ErrorContext(r.Context(), "room availability failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("level", string(result.Availability.Level)).InfoContext(r.Context(), "room availability computed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toAvailabilityResponse(result))
}

type roomRequest struct {
	Name               string   `json:"name" validate:"required,max=100"`
	Category           string   `json:"category" validate:"omitempty,oneof=conference meeting boardroom training event_hall auditorium other"`
	Capacity           int      `json:"capacity" validate:"min=1,max=1000"`
	Location           string   `json:"location" validate:"max=200"`
	Floor              string   `json:"floor" validate:"max=20"`
	Description        string   `json:"description"`
	Amenities          []string `json:"amenities" validate:"omitempty,dive,required,max=100"`
	MinBookingHours    int      `json:"min_booking_hours" validate:"min=0,max=24"`
	MaxBookingHours    int      `json:"max_booking_hours" validate:"min=0,max=24"`
	AdvanceBookingDays int      `json:"advance_booking_days" validate:"min=0,max=365"`
	IsActive           *bool    `json:"is_active"`
}

func (r roomRequest) toInput() application.RoomInput {
	amenities := make([]string, 0, len(r.Amenities))
	for _, amenity := range r.Amenities {
		if trimmed := strings.TrimSpace(amenity); trimmed != "" {
			amenities = append(amenities, trimmed)
		}
	}
	return application.RoomInput{
		Name:               strings.TrimSpace(r.Name),
		Category:           scheduler.Category(r.Category),
		Capacity:           r.Capacity,
		Location:           strings.TrimSpace(r.Location),
		Floor:              strings.TrimSpace(r.Floor),
		Description:        strings.TrimSpace(r.Description),
		Amenities:          amenities,
		MinBookingHours:    r.MinBookingHours,
		MaxBookingHours:    r.MaxBookingHours,
		AdvanceBookingDays: r.AdvanceBookingDays,
		IsActive:           r.IsActive,
	}
}

type availableRoomsRequest struct {
	Date      string `json:"date" validate:"required,date"`
	StartTime string `json:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" validate:"required,clock"`
	Attendees string `json:"attendees" validate:"omitempty,numeric"`
	Category  string `json:"category" validate:"omitempty,oneof=conference meeting boardroom training event_hall auditorium other"`
}

func (r availableRoomsRequest) toQuery() application.AvailableRoomsQuery {
	attendees, _ := strconv.Atoi(r.Attendees)
	return application.AvailableRoomsQuery{
		Date:      parseDate(r.Date),
		StartTime: parseTimeOfDay(r.StartTime),
		EndTime:   parseTimeOfDay(r.EndTime),
		Attendees: attendees,
		Category:  scheduler.Category(r.Category),
	}
}

type roomResponse struct {
	Room roomDTO `json:"room"`
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type roomDTO struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Category           string   `json:"category"`
	Capacity           int      `json:"capacity"`
	Location           string   `json:"location"`
	Floor              string   `json:"floor,omitempty"`
	Description        string   `json:"description,omitempty"`
	Amenities          []string `json:"amenities"`
	MinBookingHours    int      `json:"min_booking_hours"`
	MaxBookingHours    int      `json:"max_booking_hours"`
	AdvanceBookingDays int      `json:"advance_booking_days"`
	IsActive           bool     `json:"is_active"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

func toRoomDTO(room application.Room) roomDTO {
	amenities := room.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	return roomDTO{
		ID:                 room.ID,
		Name:               room.Name,
		Category:           string(room.Category),
		Capacity:           room.Capacity,
		Location:           room.Location,
		Floor:              room.Floor,
		Description:        room.Description,
		Amenities:          amenities,
		MinBookingHours:    room.MinBookingHours,
		MaxBookingHours:    room.MaxBookingHours,
		AdvanceBookingDays: room.AdvanceBookingDays,
		IsActive:           room.IsActive,
		CreatedAt:          formatTimestamp(room.CreatedAt),
		UpdatedAt:          formatTimestamp(room.UpdatedAt),
	}
}

func toRoomDTOs(rooms []application.Room) []roomDTO {
	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomDTO(room))
	}
	return out
}

type slotDTO struct {
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	DurationHours float64 `json:"duration_hours"`
}

type availabilityResponse struct {
	Room          roomDTO      `json:"room"`
	Date          string       `json:"date"`
	Level         string       `json:"availability"`
	Percentage    float64      `json:"percentage"`
	BookedMinutes int          `json:"booked_minutes"`
	FreeSlots     []slotDTO    `json:"free_slots"`
	Bookings      []bookingDTO `json:"bookings"`
}

func toAvailabilityResponse(result application.RoomAvailability) availabilityResponse {
	slots := make([]slotDTO, 0, len(result.FreeSlots))
	for _, slot := range result.FreeSlots {
		slots = append(slots, slotDTO{
			StartTime:     slot.Start.String(),
			EndTime:       slot.End.String(),
			DurationHours: slot.DurationHours,
		})
	}
	return availabilityResponse{
		Room:          toRoomDTO(result.Room),
		Date:          scheduler.FormatDate(result.Availability.Date),
		Level:         string(result.Availability.Level),
		Percentage:    result.Availability.Percentage,
		BookedMinutes: result.Availability.BookedMinutes,
		FreeSlots:     slots,
		Bookings:      toBookingDTOs(result.Bookings),
	}
}
