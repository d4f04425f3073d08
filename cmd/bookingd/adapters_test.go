package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/room-booking/internal/access"
	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/scheduler"
	"github.com/example/room-booking/internal/testfixtures"
	"github.com/example/room-booking/internal/workflow"
)

type wiredServices struct {
	rooms    *application.RoomService
	bookings *application.BookingService
	users    *userRepositoryAdapter
}

func newWiredServices(t *testing.T, now time.Time) wiredServices {
	t.Helper()
	storage := testfixtures.OpenStorage(t)
	factory := testfixtures.NewServiceFactory(
		testfixtures.WithClock(testfixtures.NewClock(now)),
		testfixtures.WithSinks(application.Sinks{Audit: storage.Audit}),
	)

	users := newUserRepositoryAdapter(storage.Users)
	rooms := newRoomRepositoryAdapter(storage.Rooms)
	bookings := newBookingRepositoryAdapter(storage.Bookings)
	notes := newNoteRepositoryAdapter(storage.Notes)

	return wiredServices{
		rooms:    factory.NewRoomService(rooms, bookings),
		bookings: factory.NewBookingService(bookings, rooms, notes, users),
		users:    users,
	}
}

func TestStorageAdaptersEnforceConflictsInTransaction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2030, 1, 6, 9, 0, 0, 0, time.UTC)
	svc := newWiredServices(t, now)

	for _, id := range []string{"u1", "u2"} {
		if err := svc.users.CreateUser(ctx, application.UserCredentials{
			User: application.User{
				ID: id, Email: id + "@example.com", Role: access.RoleUser,
				IsActive: true, EmailVerified: true, CreatedAt: now, UpdatedAt: now,
			},
			PasswordHash: "hash",
		}); err != nil {
			t.Fatalf("CreateUser(%s) returned error: %v", id, err)
		}
	}

	admin := application.Principal{UserID: "sa", Role: access.RoleSuperAdmin}
	room, err := svc.rooms.CreateRoom(ctx, application.CreateRoomParams{
		Principal: admin,
		Input: application.RoomInput{
			Name: "Boardroom", Category: scheduler.CategoryBoardroom, Capacity: 10,
			Location: "HQ", Amenities: []string{"projector"},
		},
	})
	if err != nil {
		t.Fatalf("CreateRoom returned error: %v", err)
	}

	day := time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)
	input := func(purpose string, start, end int) application.BookingInput {
		return application.BookingInput{
			RoomID: room.ID, Purpose: purpose, Type: scheduler.BookingTypeHourly,
			StartDate: day, StartTime: scheduler.NewTimeOfDay(start, 0), EndTime: scheduler.NewTimeOfDay(end, 0),
			ExpectedAttendees: 4,
		}
	}

	first, err := svc.bookings.CreateBooking(ctx, application.CreateBookingParams{
		Principal: application.Principal{UserID: "u1", Role: access.RoleUser},
		Input:     input("Standup", 9, 10),
	})
	if err != nil {
		t.Fatalf("first booking returned error: %v", err)
	}
	if first.Status != workflow.StatusApproved {
		t.Fatalf("first booking status = %s, want approved", first.Status)
	}

	_, err = svc.bookings.CreateBooking(ctx, application.CreateBookingParams{
		Principal: application.Principal{UserID: "u2", Role: access.RoleUser},
		Input:     input("Review", 9, 11),
	})
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) || !vErr.IsConflict() {
		t.Fatalf("overlapping booking error = %v, want a conflict", err)
	}
	if vErr.Conflicts[0].BookingID != first.ID {
		t.Fatalf("conflict cites %s, want %s", vErr.Conflicts[0].BookingID, first.ID)
	}

	if _, err := svc.bookings.CreateBooking(ctx, application.CreateBookingParams{
		Principal: application.Principal{UserID: "u2", Role: access.RoleUser},
		Input:     input("Retro", 10, 11),
	}); err != nil {
		t.Fatalf("adjacent booking returned error: %v", err)
	}

	availability, err := svc.rooms.RoomAvailability(ctx, room.ID, day)
	if err != nil {
		t.Fatalf("RoomAvailability returned error: %v", err)
	}
	if availability.Availability.BookedMinutes != 120 {
		t.Fatalf("booked minutes = %d, want 120", availability.Availability.BookedMinutes)
	}

	stored, err := svc.rooms.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetRoom returned error: %v", err)
	}
	if len(stored.Amenities) != 1 || stored.Amenities[0] != "projector" {
		t.Fatalf("amenities = %v, want [projector]", stored.Amenities)
	}
}

func TestUserAdapterMapsMissingRows(t *testing.T) {
	t.Parallel()

	svc := newWiredServices(t, time.Date(2030, 1, 6, 9, 0, 0, 0, time.UTC))
	_, err := svc.users.GetCredentialsByEmail(context.Background(), "ghost@example.com")
	if err == nil {
		t.Fatalf("expected an error for a missing user")
	}
}
