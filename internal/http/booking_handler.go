package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/scheduler"
	"github.com/example/room-booking/internal/workflow"
)

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (application.Booking, error)
	UpdateBooking(ctx context.Context, params application.UpdateBookingParams) (application.Booking, error)
	ApproveBooking(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error)
	RejectBooking(ctx context.Context, params application.RejectBookingParams) (application.Booking, error)
	CancelBooking(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error)
	GetBooking(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error)
	ListBookings(ctx context.Context, params application.ListBookingsParams) ([]application.Booking, error)
	PendingApprovals(ctx context.Context, principal application.Principal) ([]application.Booking, error)
	CheckConflicts(ctx context.Context, params application.CheckConflictsParams) (application.ConflictReport, error)
	AddNote(ctx context.Context, params application.AddNoteParams) (application.BookingNote, error)
	ListNotes(ctx context.Context, principal application.Principal, bookingID string) ([]application.BookingNote, error)
}

// BookingHandler serves reservations, their approval workflow and notes.
type BookingHandler struct {
	service   bookingService
	responder responder
	logger    *slog.Logger
}

func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

// begin checks the handler wiring and resolves the principal and the booking id
// path parameter when requireID is set.
func (h *BookingHandler) begin(w http.ResponseWriter, r *http.Request, operation string, requireID bool) (application.Principal, string, bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return application.Principal{}, "", false
	}
	principal, ok := principalFor(r)
	if !ok {
		h.log(r.Context(), operation, "error_kind", "unauthenticated").WarnContext(r.Context(), "missing authenticated principal")
		h.responder.handleServiceError(r.Context(), w, application.ErrUnauthenticated)
		return application.Principal{}, "", false
	}
	if !requireID {
		return principal, "", true
	}
	bookingID := strings.TrimSpace(pathParam(r.Context(), "id"))
	if bookingID == "" {
		h.log(r.Context(), operation, "error_kind", "bad_request").ErrorContext(r.Context(), "missing booking id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return application.Principal{}, "", false
	}
	return principal, bookingID, true
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, _, ok := h.begin(w, r, "Create", false)
	if !ok {
		return
	}

	var req bookingRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode booking request", "error", err)
		writeDecodeError(r.Context(), h.responder, w, err)
		return
	}

	logger := h.log(r.Context(), "Create", "room_id", req.RoomID)

	booking, err := h.service.CreateBooking(r.Context(), application.CreateBookingParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "booking creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("booking_id", booking.ID, "status", string(booking.Status)).InfoContext(r.Context(), "booking created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, bookingID, ok := h.begin(w, r, "Update", true)
	if !ok {
		return
	}

	var req bookingRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.log(r.Context(), "Update", "booking_id", bookingID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode booking update", "error", err)
		writeDecodeError(r.Context(), h.responder, w, err)
		return
	}

	logger := h.log(r.Context(), "Update", "booking_id", bookingID)

	booking, err := h.service.UpdateBooking(r.Context(), application.UpdateBookingParams{
		Principal: principal,
		BookingID: bookingID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "booking update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("status", string(booking.Status)).InfoContext(r.Context(), "booking updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, bookingID, ok := h.begin(w, r, "Get", true)
	if !ok {
		return
	}

	booking, err := h.service.GetBooking(r.Context(), principal, bookingID)
	if err != nil {
		h.log(r.Context(), "Get", "booking_id", bookingID).ErrorContext(r.Context(), "booking lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

// List serves GET /api/bookings?room_id=&status=&from=&to=.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _, ok := h.begin(w, r, "List", false)
	if !ok {
		return
	}

	query := r.URL.Query()
	req := listBookingsRequest{
		RoomID: strings.TrimSpace(query.Get("room_id")),
		Status: strings.TrimSpace(query.Get("status")),
		From:   strings.TrimSpace(query.Get("from")),
		To:     strings.TrimSpace(query.Get("to")),
	}
	if err := validateRequest(&req); err != nil {
		h.log(r.Context(), "List", "error_kind", "validation").WarnContext(r.Context(), "invalid booking query", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "List")
	bookings, err := h.service.ListBookings(r.Context(), req.toParams(principal))
	if err != nil {
		logger.ErrorContext(r.Context(), "booking list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(bookings)).InfoContext(r.Context(), "bookings listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Bookings: toBookingDTOs(bookings)})
}

func (h *BookingHandler) Pending(w http.ResponseWriter, r *http.Request) {
	principal, _, ok := h.begin(w, r, "Pending", false)
	if !ok {
		return
	}

	logger := h.log(r.Context(), "Pending")
	bookings, err := h.service.PendingApprovals(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "pending approvals failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(bookings)).InfoContext(r.Context(), "pending approvals listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Bookings: toBookingDTOs(bookings)})
}

func (h *BookingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	principal, bookingID, ok := h.begin(w, r, "Approve", true)
	if !ok {
		return
	}

	logger := h.log(r.Context(), "Approve", "booking_id", bookingID)
	booking, err := h.service.ApproveBooking(r.Context(), principal, bookingID)
	if err != nil {
		logger.ErrorContext(r.Context(), "booking approval failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "booking approved")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	principal, bookingID, ok := h.begin(w, r, "Reject", true)
	if !ok {
		return
	}

	var req rejectRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.log(r.Context(), "Reject", "booking_id", bookingID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode rejection", "error", err)
		writeDecodeError(r.Context(), h.responder, w, err)
		return
	}

	logger := h.log(r.Context(), "Reject", "booking_id", bookingID)
	booking, err := h.service.RejectBooking(r.Context(), application.RejectBookingParams{
		Principal: principal,
		BookingID: bookingID,
		Reason:    strings.TrimSpace(req.Reason),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "booking rejection failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "booking rejected")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

// Cancel serves DELETE /api/bookings/:id. Bookings are cancelled, never removed.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	principal, bookingID, ok := h.begin(w, r, "Cancel", true)
	if !ok {
		return
	}

	logger := h.log(r.Context(), "Cancel", "booking_id", bookingID)
	booking, err := h.service.CancelBooking(r.Context(), principal, bookingID)
	if err != nil {
		logger.ErrorContext(r.Context(), "booking cancellation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "booking cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

// CheckConflicts runs the booking rules without persisting anything.
func (h *BookingHandler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	principal, _, ok := h.begin(w, r, "CheckConflicts", false)
	if !ok {
		return
	}

	var req checkConflictsRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.log(r.Context(), "CheckConflicts", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode conflict check", "error", err)
		writeDecodeError(r.Context(), h.responder, w, err)
		return
	}

	logger := h.log(r.Context(), "CheckConflicts", "room_id", req.RoomID)
	report, err := h.service.CheckConflicts(r.Context(), application.CheckConflictsParams{
		Principal:        principal,
		ExcludeBookingID: strings.TrimSpace(req.ExcludeBookingID),
		Input:            req.bookingRequest.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "conflict check failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("available", report.Available, "conflict_count", len(report.Conflicts)).InfoContext(r.Context(), "conflicts checked")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, conflictReportResponse{
		Available: report.Available,
		Errors:    report.FieldErrors,
		Conflicts: toConflictDTOs(report.Conflicts),
	})
}

func (h *BookingHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	principal, bookingID, ok := h.begin(w, r, "AddNote", true)
	if !ok {
		return
	}

	var req noteRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.log(r.Context(), "AddNote", "booking_id", bookingID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode note", "error", err)
		writeDecodeError(r.Context(), h.responder, w, err)
		return
	}

	logger := h.log(r.Context(), "AddNote", "booking_id", bookingID)
	note, err := h.service.AddNote(r.Context(), application.AddNoteParams{
		Principal:  principal,
		BookingID:  bookingID,
		Body:       strings.TrimSpace(req.Body),
		IsInternal: req.IsInternal,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "note creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("note_id", note.ID).InfoContext(r.Context(), "note added")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, noteResponse{Note: toNoteDTO(note)})
}

func (h *BookingHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	principal, bookingID, ok := h.begin(w, r, "ListNotes", true)
	if !ok {
		return
	}

	notes, err := h.service.ListNotes(r.Context(), principal, bookingID)
	if err != nil {
		h.log(r.Context(), "ListNotes", "booking_id", bookingID).ErrorContext(r.Context(), "note list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]noteDTO, 0, len(notes))
	for _, note := range notes {
		out = append(out, toNoteDTO(note))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listNotesResponse{Notes: out})
}

type bookingRequest struct {
	RoomID              string   `json:"room_id" validate:"required"`
	Purpose             string   `json:"purpose" validate:"required,max=200"`
	BookingType         string   `json:"booking_type" validate:"required,oneof=hourly full_day multi_day weekly"`
	StartDate           string   `json:"start_date" validate:"required,date"`
	EndDate             string   `json:"end_date" validate:"omitempty,date"`
	StartTime           string   `json:"start_time" validate:"required,clock"`
	EndTime             string   `json:"end_time" validate:"required,clock"`
	SelectedDates       []string `json:"selected_dates" validate:"omitempty,dive,date"`
	ExpectedAttendees   int      `json:"expected_attendees" validate:"min=1"`
	SpecialRequirements string   `json:"special_requirements"`
}

func (r bookingRequest) toInput() application.BookingInput {
	input := application.BookingInput{
		RoomID:              strings.TrimSpace(r.RoomID),
		Purpose:             strings.TrimSpace(r.Purpose),
		Type:                scheduler.BookingType(r.BookingType),
		StartDate:           parseDate(r.StartDate),
		EndDate:             parseDate(r.EndDate),
		StartTime:           parseTimeOfDay(r.StartTime),
		EndTime:             parseTimeOfDay(r.EndTime),
		ExpectedAttendees:   r.ExpectedAttendees,
		SpecialRequirements: strings.TrimSpace(r.SpecialRequirements),
	}
	for _, raw := range r.SelectedDates {
		input.SelectedDates = append(input.SelectedDates, parseDate(raw))
	}
	return input
}

type checkConflictsRequest struct {
	bookingRequest
	ExcludeBookingID string `json:"exclude_booking_id"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type noteRequest struct {
	Body       string `json:"body" validate:"required,max=5000"`
	IsInternal bool   `json:"is_internal"`
}

type listBookingsRequest struct {
	RoomID string `json:"room_id"`
	Status string `json:"status" validate:"omitempty,oneof=pending approved rejected cancelled"`
	From   string `json:"from" validate:"omitempty,date"`
	To     string `json:"to" validate:"omitempty,date"`
}

func (r listBookingsRequest) toParams(principal application.Principal) application.ListBookingsParams {
	params := application.ListBookingsParams{
		Principal: principal,
		RoomID:    r.RoomID,
		Status:    workflow.Status(r.Status),
	}
	if r.From != "" {
		from := parseDate(r.From)
		params.From = &from
	}
	if r.To != "" {
		to := parseDate(r.To)
		params.To = &to
	}
	return params
}

type bookingResponse struct {
	Booking bookingDTO `json:"booking"`
}

type listBookingsResponse struct {
	Bookings []bookingDTO `json:"bookings"`
}

type conflictReportResponse struct {
	Available bool              `json:"available"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflicts []conflictDTO     `json:"conflicts"`
}

type bookingDTO struct {
	ID                  string   `json:"id"`
	RoomID              string   `json:"room_id"`
	UserID              string   `json:"user_id"`
	Purpose             string   `json:"purpose"`
	BookingType         string   `json:"booking_type"`
	StartDate           string   `json:"start_date"`
	EndDate             string   `json:"end_date"`
	StartTime           string   `json:"start_time"`
	EndTime             string   `json:"end_time"`
	SelectedDates       []string `json:"selected_dates,omitempty"`
	ExpectedAttendees   int      `json:"expected_attendees"`
	SpecialRequirements string   `json:"special_requirements,omitempty"`
	Status              string   `json:"status"`
	ApprovedBy          *string  `json:"approved_by,omitempty"`
	ApprovedAt          *string  `json:"approved_at,omitempty"`
	RejectionReason     string   `json:"rejection_reason,omitempty"`
	CreatedAt           string   `json:"created_at"`
	UpdatedAt           string   `json:"updated_at"`
}

func toBookingDTO(booking application.Booking) bookingDTO {
	dto := bookingDTO{
		ID:                  booking.ID,
		RoomID:              booking.RoomID,
		UserID:              booking.UserID,
		Purpose:             booking.Purpose,
		BookingType:         string(booking.Type),
		StartDate:           scheduler.FormatDate(booking.StartDate),
		EndDate:             scheduler.FormatDate(booking.EndDate),
		StartTime:           booking.StartTime.String(),
		EndTime:             booking.EndTime.String(),
		ExpectedAttendees:   booking.ExpectedAttendees,
		SpecialRequirements: booking.SpecialRequirements,
		Status:              string(booking.Status),
		ApprovedBy:          booking.ApprovedBy,
		ApprovedAt:          formatOptionalTimestamp(booking.ApprovedAt),
		RejectionReason:     booking.RejectionReason,
		CreatedAt:           formatTimestamp(booking.CreatedAt),
		UpdatedAt:           formatTimestamp(booking.UpdatedAt),
	}
	for _, d := range booking.SelectedDates {
		dto.SelectedDates = append(dto.SelectedDates, scheduler.FormatDate(d))
	}
	return dto
}

func toBookingDTOs(bookings []application.Booking) []bookingDTO {
	out := make([]bookingDTO, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, toBookingDTO(booking))
	}
	return out
}

type noteResponse struct {
	Note noteDTO `json:"note"`
}

type listNotesResponse struct {
	Notes []noteDTO `json:"notes"`
}

type noteDTO struct {
	ID         string `json:"id"`
	BookingID  string `json:"booking_id"`
	AuthorID   string `json:"author_id"`
	Body       string `json:"body"`
	IsInternal bool   `json:"is_internal"`
	CreatedAt  string `json:"created_at"`
}

func toNoteDTO(note application.BookingNote) noteDTO {
	return noteDTO{
		ID:         note.ID,
		BookingID:  note.BookingID,
		AuthorID:   note.AuthorID,
		Body:       note.Body,
		IsInternal: note.IsInternal,
		CreatedAt:  formatTimestamp(note.CreatedAt),
	}
}
