package main

import (
	"context"
	"slices"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/workflow"
)

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, creds application.UserCredentials) error {
	return a.repo.CreateUser(ctx, toPersistenceUser(creds))
}

func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, creds application.UserCredentials) error {
	return a.repo.UpdateUser(ctx, toPersistenceUser(creds))
}

func (a *userRepositoryAdapter) GetCredentials(ctx context.Context, id string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return toApplicationCredentials(stored), nil
}

func (a *userRepositoryAdapter) GetCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return toApplicationCredentials(stored), nil
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationCredentials(model).User)
	}
	return users, nil
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return a.repo.DeleteUser(ctx, id)
}

type roomRepositoryAdapter struct {
	repo persistence.RoomRepository
}

func newRoomRepositoryAdapter(repo persistence.RoomRepository) *roomRepositoryAdapter {
	return &roomRepositoryAdapter{repo: repo}
}

func (a *roomRepositoryAdapter) CreateRoom(ctx context.Context, room application.Room) error {
	return a.repo.CreateRoom(ctx, toPersistenceRoom(room))
}

func (a *roomRepositoryAdapter) UpdateRoom(ctx context.Context, room application.Room) error {
	return a.repo.UpdateRoom(ctx, toPersistenceRoom(room))
}

func (a *roomRepositoryAdapter) GetRoom(ctx context.Context, id string) (application.Room, error) {
	stored, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (a *roomRepositoryAdapter) ListRooms(ctx context.Context, filter application.RoomFilter) ([]application.Room, error) {
	models, err := a.repo.ListRooms(ctx, persistence.RoomFilter{
		Category:    filter.Category,
		MinCapacity: filter.MinCapacity,
		ActiveOnly:  filter.ActiveOnly,
	})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	rooms := make([]application.Room, 0, len(models))
	for _, model := range models {
		rooms = append(rooms, toApplicationRoom(model))
	}
	return rooms, nil
}

func (a *roomRepositoryAdapter) DeleteRoom(ctx context.Context, id string) error {
	return a.repo.DeleteRoom(ctx, id)
}

type bookingRepositoryAdapter struct {
	repo persistence.BookingRepository
}

func newBookingRepositoryAdapter(repo persistence.BookingRepository) *bookingRepositoryAdapter {
	return &bookingRepositoryAdapter{repo: repo}
}

func (a *bookingRepositoryAdapter) CreateBooking(ctx context.Context, booking application.Booking, guard application.BookingGuard) error {
	return a.repo.CreateBooking(ctx, toPersistenceBooking(booking), toPersistenceGuard(guard))
}

func (a *bookingRepositoryAdapter) UpdateBooking(ctx context.Context, booking application.Booking, guard application.BookingGuard) error {
	return a.repo.UpdateBooking(ctx, toPersistenceBooking(booking), toPersistenceGuard(guard))
}

func (a *bookingRepositoryAdapter) GetBooking(ctx context.Context, id string) (application.Booking, error) {
	stored, err := a.repo.GetBooking(ctx, id)
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(stored), nil
}

func (a *bookingRepositoryAdapter) ListBookings(ctx context.Context, filter application.BookingFilter) ([]application.Booking, error) {
	models, err := a.repo.ListBookings(ctx, persistence.BookingFilter{
		RoomID:   filter.RoomID,
		OwnerID:  filter.OwnerID,
		RoomIDs:  slices.Clone(filter.ManagedRoomIDs),
		Statuses: slices.Clone(filter.Statuses),
		From:     filter.From,
		To:       filter.To,
	})
	if err != nil {
		return nil, err
	}
	return toApplicationBookings(models), nil
}

// toPersistenceGuard runs the application guard against the rows the
// repository loaded inside its transaction.
func toPersistenceGuard(guard application.BookingGuard) persistence.BookingGuard {
	if guard == nil {
		return nil
	}
	return func(existing []persistence.Booking) error {
		return guard(toApplicationBookings(existing))
	}
}

type noteRepositoryAdapter struct {
	repo persistence.BookingNoteRepository
}

func newNoteRepositoryAdapter(repo persistence.BookingNoteRepository) *noteRepositoryAdapter {
	return &noteRepositoryAdapter{repo: repo}
}

func (a *noteRepositoryAdapter) CreateNote(ctx context.Context, note application.BookingNote) error {
	return a.repo.CreateNote(ctx, persistence.BookingNote(note))
}

func (a *noteRepositoryAdapter) ListNotes(ctx context.Context, bookingID string, includeInternal bool) ([]application.BookingNote, error) {
	models, err := a.repo.ListNotes(ctx, bookingID, includeInternal)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	notes := make([]application.BookingNote, 0, len(models))
	for _, model := range models {
		notes = append(notes, application.BookingNote(model))
	}
	return notes, nil
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) error {
	return a.repo.CreateSession(ctx, persistence.Session(session))
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, id string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return application.Session{}, err
	}
	return application.Session(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, id string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, id, revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	return application.Session(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

func toApplicationCredentials(model persistence.User) application.UserCredentials {
	return application.UserCredentials{
		User: application.User{
			ID:             model.ID,
			Email:          model.Email,
			FirstName:      model.FirstName,
			LastName:       model.LastName,
			Role:           model.Role,
			ManagedRoomIDs: slices.Clone(model.ManagedRoomIDs),
			IsActive:       model.IsActive,
			EmailVerified:  model.EmailVerified,
			LastLoginAt:    cloneTime(model.LastLoginAt),
			CreatedAt:      model.CreatedAt,
			UpdatedAt:      model.UpdatedAt,
		},
		PasswordHash: model.PasswordHash,
	}
}

func toPersistenceUser(creds application.UserCredentials) persistence.User {
	user := creds.User
	return persistence.User{
		ID:             user.ID,
		Email:          user.Email,
		PasswordHash:   creds.PasswordHash,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		Role:           user.Role,
		ManagedRoomIDs: slices.Clone(user.ManagedRoomIDs),
		IsActive:       user.IsActive,
		EmailVerified:  user.EmailVerified,
		LastLoginAt:    cloneTime(user.LastLoginAt),
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
	}
}

func toApplicationRoom(model persistence.Room) application.Room {
	room := application.Room(model)
	room.Amenities = slices.Clone(model.Amenities)
	return room
}

func toPersistenceRoom(room application.Room) persistence.Room {
	model := persistence.Room(room)
	model.Amenities = slices.Clone(room.Amenities)
	return model
}

func toApplicationBooking(model persistence.Booking) application.Booking {
	return application.Booking{
		ID:                  model.ID,
		RoomID:              model.RoomID,
		UserID:              model.UserID,
		Purpose:             model.Purpose,
		Type:                model.Type,
		StartDate:           model.StartDate,
		EndDate:             model.EndDate,
		StartTime:           model.StartTime,
		EndTime:             model.EndTime,
		SelectedDates:       slices.Clone(model.SelectedDates),
		ExpectedAttendees:   model.ExpectedAttendees,
		SpecialRequirements: model.SpecialRequirements,
		Approval: workflow.Approval{
			Status:          model.Status,
			ApprovedBy:      cloneString(model.ApprovedBy),
			ApprovedAt:      cloneTime(model.ApprovedAt),
			RejectionReason: model.RejectionReason,
		},
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toApplicationBookings(models []persistence.Booking) []application.Booking {
	if len(models) == 0 {
		return nil
	}
	bookings := make([]application.Booking, 0, len(models))
	for _, model := range models {
		bookings = append(bookings, toApplicationBooking(model))
	}
	return bookings
}

func toPersistenceBooking(booking application.Booking) persistence.Booking {
	return persistence.Booking{
		ID:                  booking.ID,
		RoomID:              booking.RoomID,
		UserID:              booking.UserID,
		Purpose:             booking.Purpose,
		Type:                booking.Type,
		StartDate:           booking.StartDate,
		EndDate:             booking.EndDate,
		StartTime:           booking.StartTime,
		EndTime:             booking.EndTime,
		SelectedDates:       slices.Clone(booking.SelectedDates),
		ExpectedAttendees:   booking.ExpectedAttendees,
		SpecialRequirements: booking.SpecialRequirements,
		Status:              booking.Status,
		ApprovedBy:          cloneString(booking.ApprovedBy),
		ApprovedAt:          cloneTime(booking.ApprovedAt),
		RejectionReason:     booking.RejectionReason,
		CreatedAt:           booking.CreatedAt,
		UpdatedAt:           booking.UpdatedAt,
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
