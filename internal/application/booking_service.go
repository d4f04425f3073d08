package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/room-booking/internal/access"
	"github.com/example/room-booking/internal/events"
	"github.com/example/room-booking/internal/notify"
	"github.com/example/room-booking/internal/scheduler"
	"github.com/example/room-booking/internal/security"
	"github.com/example/room-booking/internal/workflow"
)

const (
	maxPurposeLength = 200
	maxNoteLength    = 2000
)

// BookingService validates, stores and moves bookings through the approval workflow.
type BookingService struct {
	bookings BookingRepository
	rooms    RoomRepository
	notes    NoteRepository
	users    UserRepository
	engine   *scheduler.Engine
	rec      recorder
	logger   *slog.Logger
}

// NewBookingService constructs a booking service with the provided dependencies.
func NewBookingService(bookings BookingRepository, rooms RoomRepository, notes NoteRepository, users UserRepository, engine *scheduler.Engine, sinks Sinks, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(bookings, rooms, notes, users, engine, sinks, idGenerator, now, nil)
}

// NewBookingServiceWithLogger constructs a booking service with a specified logger.
func NewBookingServiceWithLogger(bookings BookingRepository, rooms RoomRepository, notes NoteRepository, users UserRepository, engine *scheduler.Engine, sinks Sinks, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if engine == nil {
		engine = scheduler.NewEngine(scheduler.DefaultConfig(), now)
	}
	return &BookingService{
		bookings: bookings,
		rooms:    rooms,
		notes:    notes,
		users:    users,
		engine:   engine,
		rec:      recorder{sinks: sinks, idGenerator: idGenerator, now: now},
		logger:   defaultLogger(logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

func (s *BookingService) ready() error {
	if s == nil {
		return fmt.Errorf("BookingService is nil")
	}
	if s.bookings == nil || s.rooms == nil {
		return fmt.Errorf("booking repositories not configured")
	}
	return nil
}

// CreateBooking validates the candidate against the room and the competing bookings
// inside the write transaction. Accepted bookings are approved on behalf of their submitter.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (booking Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CreateBooking",
		"principal_id", params.Principal.UserID,
		"room_id", params.Input.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("booking_id", booking.ID, "status", string(booking.Status)).InfoContext(ctx, "booking created")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthenticated
		return
	}

	input := normalizeBookingInput(params.Input)
	if vErr := validateBookingInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	var room Room
	room, err = s.rooms.GetRoom(ctx, input.RoomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	now := s.rec.now()
	booking = Booking{
		ID:        s.rec.idGenerator(),
		UserID:    params.Principal.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	booking.apply(input)
	booking.Approval = workflow.AutoApproved(params.Principal.UserID, now)

	if err = s.bookings.CreateBooking(ctx, booking, s.guard(booking, room)); err != nil {
		err = mapBookingRepoError(err)
		return
	}

	s.rec.audit(ctx, logger, bookingAudit(params.Principal, security.ActionBookingCreate, booking, "Booking created", map[string]any{
		"room_id":      booking.RoomID,
		"booking_type": string(booking.Type),
		"start_date":   scheduler.FormatDate(booking.StartDate),
		"end_date":     scheduler.FormatDate(booking.EndDate),
	}))
	s.rec.publish(ctx, logger, bookingEvent(events.TypeBookingCreated, booking, params.Principal.UserID, ""))
	s.notifyOwner(ctx, logger, booking, "Booking confirmed",
		fmt.Sprintf("Your booking %q in %s on %s is %s.", booking.Purpose, room.Name, scheduler.FormatDate(booking.StartDate), booking.Status))
	return
}

// UpdateBooking applies new booking fields, re-validates them and returns an
// approved booking to pending.
func (s *BookingService) UpdateBooking(ctx context.Context, params UpdateBookingParams) (booking Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateBooking",
		"principal_id", params.Principal.UserID,
		"booking_id", params.BookingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("status", string(booking.Status)).InfoContext(ctx, "booking updated")
	}()

	booking, err = s.bookings.GetBooking(ctx, params.BookingID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	if !access.CanModifyBooking(params.Principal.actor(), booking.UserID, booking.RoomID, booking.Status) {
		err = ErrUnauthorized
		return
	}

	input := params.Input
	if strings.TrimSpace(input.RoomID) == "" {
		input.RoomID = booking.RoomID
	}
	input = normalizeBookingInput(input)
	if vErr := validateBookingInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	previous := booking.Status
	if err = booking.Approval.Edit(); err != nil {
		err = mapWorkflowError(err)
		return
	}

	var room Room
	room, err = s.rooms.GetRoom(ctx, input.RoomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	booking.apply(input)
	booking.UpdatedAt = s.rec.now()

	if err = s.bookings.UpdateBooking(ctx, booking, s.guard(booking, room)); err != nil {
		err = mapBookingRepoError(err)
		return
	}

	s.rec.audit(ctx, logger, bookingAudit(params.Principal, security.ActionBookingUpdate, booking, "Booking updated", map[string]any{
		"previous_status": string(previous),
		"status":          string(booking.Status),
	}))
	s.rec.publish(ctx, logger, bookingEvent(events.TypeBookingUpdated, booking, params.Principal.UserID, previous))
	if booking.Status != previous {
		s.notifyOwner(ctx, logger, booking, "Booking awaiting approval",
			fmt.Sprintf("Your booking %q was changed and is waiting for approval again.", booking.Purpose))
	}
	return
}

// ApproveBooking approves a pending booking.
func (s *BookingService) ApproveBooking(ctx context.Context, principal Principal, bookingID string) (Booking, error) {
	return s.transition(ctx, transition{
		operation: "ApproveBooking",
		principal: principal,
		bookingID: bookingID,
		allowed: func(a access.Actor, b Booking) bool {
			return access.CanApprove(a, b.RoomID)
		},
		apply: func(b *Booking, now time.Time) error {
			return b.Approval.Approve(principal.UserID, now)
		},
		action:  security.ActionBookingApprove,
		subject: "Booking approved",
	})
}

// RejectBooking rejects a pending booking. A reason is required.
func (s *BookingService) RejectBooking(ctx context.Context, params RejectBookingParams) (Booking, error) {
	return s.transition(ctx, transition{
		operation: "RejectBooking",
		principal: params.Principal,
		bookingID: params.BookingID,
		allowed: func(a access.Actor, b Booking) bool {
			return access.CanApprove(a, b.RoomID)
		},
		apply: func(b *Booking, now time.Time) error {
			return b.Approval.Reject(params.Principal.UserID, params.Reason, now)
		},
		action:  security.ActionBookingReject,
		subject: "Booking rejected",
	})
}

// CancelBooking soft deletes a booking.
func (s *BookingService) CancelBooking(ctx context.Context, principal Principal, bookingID string) (Booking, error) {
	return s.transition(ctx, transition{
		operation: "CancelBooking",
		principal: principal,
		bookingID: bookingID,
		allowed: func(a access.Actor, b Booking) bool {
			return access.CanModifyBooking(a, b.UserID, b.RoomID, b.Status)
		},
		apply: func(b *Booking, _ time.Time) error {
			return b.Approval.Cancel()
		},
		action:  security.ActionBookingCancel,
		subject: "Booking cancelled",
	})
}

type transition struct {
	operation string
	principal Principal
	bookingID string
	allowed   func(access.Actor, Booking) bool
	apply     func(*Booking, time.Time) error
	action    security.Action
	subject   string
}

// transition runs a status-only change. No guard is needed: none of these
// moves can create an overlap.
func (s *BookingService) transition(ctx context.Context, t transition) (booking Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, t.operation,
		"principal_id", t.principal.UserID,
		"booking_id", t.bookingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "booking transition failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("status", string(booking.Status)).InfoContext(ctx, "booking transitioned")
	}()

	booking, err = s.bookings.GetBooking(ctx, t.bookingID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	if !t.allowed(t.principal.actor(), booking) {
		err = ErrUnauthorized
		return
	}

	previous := booking.Status
	now := s.rec.now()
	if err = t.apply(&booking, now); err != nil {
		err = mapWorkflowError(err)
		return
	}
	booking.UpdatedAt = now

	if err = s.bookings.UpdateBooking(ctx, booking, nil); err != nil {
		err = mapBookingRepoError(err)
		return
	}

	data := map[string]any{"previous_status": string(previous), "status": string(booking.Status)}
	if booking.RejectionReason != "" {
		data["rejection_reason"] = booking.RejectionReason
	}
	s.rec.audit(ctx, logger, bookingAudit(t.principal, t.action, booking, t.subject, data))
	s.rec.publish(ctx, logger, bookingEvent(events.TypeBookingStatusChanged, booking, t.principal.UserID, previous))

	body := fmt.Sprintf("Your booking %q on %s is now %s.", booking.Purpose, scheduler.FormatDate(booking.StartDate), booking.Status)
	if booking.RejectionReason != "" {
		body += " Reason: " + booking.RejectionReason
	}
	s.notifyOwner(ctx, logger, booking, t.subject, body)
	return
}

// GetBooking returns a booking the principal may view.
func (s *BookingService) GetBooking(ctx context.Context, principal Principal, bookingID string) (Booking, error) {
	if err := s.ready(); err != nil {
		return Booking{}, err
	}
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, mapBookingRepoError(err)
	}
	if !access.CanViewBooking(principal.actor(), booking.UserID, booking.RoomID) {
		return Booking{}, ErrUnauthorized
	}
	return booking, nil
}

// ListBookings returns the bookings visible to the principal that match params.
func (s *BookingService) ListBookings(ctx context.Context, params ListBookingsParams) (bookings []Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ListBookings",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
		"status", string(params.Status),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list bookings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(bookings)).InfoContext(ctx, "bookings listed")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthenticated
		return
	}
	if params.Status != "" && !params.Status.Valid() {
		vErr := &ValidationError{}
		vErr.add("status", "status is invalid")
		err = vErr
		return
	}

	filter := BookingFilter{RoomID: params.RoomID, From: params.From, To: params.To}
	if params.Status != "" {
		filter.Statuses = []workflow.Status{params.Status}
	}
	if scope := access.BookingScope(params.Principal.actor()); !scope.All {
		filter.OwnerID = scope.UserID
		filter.ManagedRoomIDs = scope.RoomIDs
	}

	bookings, err = s.bookings.ListBookings(ctx, filter)
	if err != nil {
		err = mapBookingRepoError(err)
	}
	return
}

// PendingApprovals lists the pending bookings the principal may approve.
func (s *BookingService) PendingApprovals(ctx context.Context, principal Principal) ([]Booking, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	actor := principal.actor()
	filter := BookingFilter{Statuses: []workflow.Status{workflow.StatusPending}}
	switch {
	case actor.Role == access.RoleSuperAdmin:
	case actor.Role == access.RoleRoomAdmin && len(actor.ManagedRoomIDs) > 0:
		filter.ManagedRoomIDs = actor.ManagedRoomIDs
	case actor.Role == access.RoleRoomAdmin:
		return nil, nil
	default:
		return nil, ErrUnauthorized
	}

	bookings, err := s.bookings.ListBookings(ctx, filter)
	if err != nil {
		err = mapBookingRepoError(err)
		s.loggerWith(ctx, "PendingApprovals", "principal_id", principal.UserID).
			ErrorContext(ctx, "failed to list pending approvals", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return bookings, nil
}

// CheckConflicts runs the booking rules without writing. ExcludeBookingID lets
// an edit be checked against the stored set.
func (s *BookingService) CheckConflicts(ctx context.Context, params CheckConflictsParams) (report ConflictReport, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CheckConflicts",
		"principal_id", params.Principal.UserID,
		"room_id", params.Input.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to check conflicts", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("available", report.Available).InfoContext(ctx, "conflicts checked")
	}()

	input := normalizeBookingInput(params.Input)
	if vErr := validateBookingInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	var room Room
	room, err = s.rooms.GetRoom(ctx, input.RoomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	candidate := Booking{ID: params.ExcludeBookingID, UserID: params.Principal.UserID}
	candidate.apply(input)

	start, end := candidate.StartDate, candidate.EndDate
	var existing []Booking
	existing, err = s.bookings.ListBookings(ctx, BookingFilter{RoomID: room.ID, Statuses: activeStatuses, From: &start, To: &end})
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	report = ConflictReport{Available: true}
	if vErr := s.check(candidate, room, existing); vErr != nil {
		report = ConflictReport{FieldErrors: vErr.FieldErrors, Conflicts: vErr.Conflicts}
	}
	return
}

// AddNote attaches a note to a booking the principal may view. Internal notes
// are reserved for approvers of the room.
func (s *BookingService) AddNote(ctx context.Context, params AddNoteParams) (note BookingNote, err error) {
	if err = s.ready(); err != nil {
		return
	}
	if s.notes == nil {
		err = fmt.Errorf("note repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "AddNote",
		"principal_id", params.Principal.UserID,
		"booking_id", params.BookingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to add note", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("note_id", note.ID).InfoContext(ctx, "note added")
	}()

	var booking Booking
	booking, err = s.GetBooking(ctx, params.Principal, params.BookingID)
	if err != nil {
		return
	}
	if params.IsInternal && !access.CanViewInternalNotes(params.Principal.actor(), booking.RoomID) {
		err = ErrUnauthorized
		return
	}

	body := strings.TrimSpace(params.Body)
	vErr := &ValidationError{}
	switch {
	case body == "":
		vErr.add("body", "note body is required")
	case len(body) > maxNoteLength:
		vErr.add("body", fmt.Sprintf("note body must be at most %d characters", maxNoteLength))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	note = BookingNote{
		ID:         s.rec.idGenerator(),
		BookingID:  booking.ID,
		AuthorID:   params.Principal.UserID,
		Body:       body,
		IsInternal: params.IsInternal,
		CreatedAt:  s.rec.now(),
	}
	if err = s.notes.CreateNote(ctx, note); err != nil {
		err = mapBookingRepoError(err)
		return
	}

	s.rec.audit(ctx, logger, bookingAudit(params.Principal, security.ActionBookingUpdate, booking, "Note added", map[string]any{
		"note_id":     note.ID,
		"is_internal": note.IsInternal,
	}))
	return
}

// ListNotes returns the notes of a booking visible to the principal.
func (s *BookingService) ListNotes(ctx context.Context, principal Principal, bookingID string) ([]BookingNote, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if s.notes == nil {
		return nil, nil
	}
	booking, err := s.GetBooking(ctx, principal, bookingID)
	if err != nil {
		return nil, err
	}
	notes, err := s.notes.ListNotes(ctx, booking.ID, access.CanViewInternalNotes(principal.actor(), booking.RoomID))
	if err != nil {
		return nil, mapBookingRepoError(err)
	}
	return notes, nil
}

func (s *BookingService) guard(candidate Booking, room Room) BookingGuard {
	return func(existing []Booking) error {
		if vErr := s.check(candidate, room, existing); vErr != nil {
			return vErr
		}
		return nil
	}
}

// check returns nil when the candidate passes every rule.
func (s *BookingService) check(candidate Booking, room Room, existing []Booking) *ValidationError {
	slots := make([]scheduler.Booking, 0, len(existing))
	for _, b := range existing {
		slots = append(slots, b.slot())
	}
	result := s.engine.Validate(candidate.slot(), room.constraints(), slots)
	if result.OK() {
		return nil
	}

	vErr := &ValidationError{}
	for field, message := range result.FieldErrors {
		vErr.add(field, message)
	}
	for _, c := range result.Conflicts {
		vErr.Conflicts = append(vErr.Conflicts, ConflictDetail{
			BookingID: c.ID,
			Purpose:   c.Purpose,
			StartDate: c.StartDate,
			EndDate:   c.EndDate,
			StartTime: c.StartTime.String(),
			EndTime:   c.EndTime.String(),
			Status:    string(c.Status),
		})
	}
	return vErr
}

func (s *BookingService) notifyOwner(ctx context.Context, logger *slog.Logger, booking Booking, subject, body string) {
	if s.users == nil || s.rec.sinks.Notifier == nil {
		return
	}
	owner, err := s.users.GetCredentials(ctx, booking.UserID)
	if err != nil {
		logger.WarnContext(ctx, "failed to resolve notification recipient", "user_id", booking.UserID, "error", err)
		return
	}
	s.rec.notify(ctx, logger, notify.Message{
		Recipient: owner.User.Email,
		Subject:   subject,
		Body:      body,
		Tags:      map[string]string{"booking_id": booking.ID, "status": string(booking.Status)},
	})
}

func bookingAudit(principal Principal, action security.Action, booking Booking, description string, data map[string]any) auditRecord {
	return auditRecord{
		actor:       principal.actorRef(),
		action:      action,
		description: fmt.Sprintf("%s: %s", description, booking.Purpose),
		objectType:  "booking",
		objectID:    booking.ID,
		client:      principal.client(),
		data:        data,
	}
}

func bookingEvent(eventType events.Type, booking Booking, actorID string, previous workflow.Status) events.Event {
	return events.Event{
		Type:           eventType,
		RoomID:         booking.RoomID,
		BookingID:      booking.ID,
		UserID:         booking.UserID,
		ActorID:        actorID,
		Status:         string(booking.Status),
		PreviousStatus: string(previous),
		StartDate:      scheduler.FormatDate(booking.StartDate),
		EndDate:        scheduler.FormatDate(booking.EndDate),
	}
}

func normalizeBookingInput(input BookingInput) BookingInput {
	input.RoomID = strings.TrimSpace(input.RoomID)
	input.Purpose = strings.TrimSpace(input.Purpose)
	input.SpecialRequirements = strings.TrimSpace(input.SpecialRequirements)
	if input.EndDate.IsZero() && input.Type != scheduler.BookingTypeMultiDay && input.Type != scheduler.BookingTypeWeekly {
		input.EndDate = input.StartDate
	}
	return input
}

func validateBookingInput(input BookingInput) *ValidationError {
	vErr := &ValidationError{}

	if input.RoomID == "" {
		vErr.add("room_id", "room is required")
	}
	switch {
	case input.Purpose == "":
		vErr.add("purpose", "purpose is required")
	case len(input.Purpose) > maxPurposeLength:
		vErr.add("purpose", fmt.Sprintf("purpose must be at most %d characters", maxPurposeLength))
	}
	if !input.Type.Valid() {
		vErr.add("booking_type", "booking type is invalid")
	}
	if input.StartDate.IsZero() {
		vErr.add("start_date", "start date is required")
	}
	if input.EndDate.IsZero() {
		vErr.add("end_date", "end date is required")
	}
	if input.Type != scheduler.BookingTypeMultiDay && len(input.SelectedDates) > 0 {
		vErr.add("selected_dates", "selected dates are only allowed for multi-day bookings")
	}

	return vErr
}

func mapBookingRepoError(err error) error {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr
	}
	return mapConstraintError(mapRepoError(err), "booking", "booking violates a storage constraint")
}

func mapWorkflowError(err error) error {
	switch {
	case errors.Is(err, workflow.ErrReasonRequired):
		vErr := &ValidationError{}
		vErr.add("rejection_reason", "Rejection reason is required.")
		return vErr
	case errors.Is(err, workflow.ErrInvalidTransition):
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	return err
}
