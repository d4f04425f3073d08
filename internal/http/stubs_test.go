package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/security"
)

type sessionValidatorStub struct {
	principals map[string]application.Principal
	err        error
}

func (s sessionValidatorStub) ValidateToken(_ context.Context, token string) (application.Principal, error) {
	if s.err != nil {
		return application.Principal{}, s.err
	}
	principal, ok := s.principals[token]
	if !ok {
		return application.Principal{}, application.ErrUnauthenticated
	}
	return principal, nil
}

type blockListStub struct {
	mu       sync.Mutex
	blocked  map[string]bool
	attempts []security.LoginAttempt
	audits   []security.AuditEntry
}

func (b *blockListStub) IsBlocked(_ context.Context, scope security.Scope, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return scope == security.ScopeIP && b.blocked[key], nil
}

func (b *blockListStub) RecordLoginAttempt(_ context.Context, attempt security.LoginAttempt) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts = append(b.attempts, attempt)
	return nil
}

func (b *blockListStub) LogAudit(_ context.Context, entry security.AuditEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.audits = append(b.audits, entry)
	return nil
}

type authServiceStub struct {
	registerFn func(application.RegisterParams) (application.User, error)
	loginFn    func(application.AuthenticateParams) (application.AuthenticateResult, error)
	logoutFn   func(token string) error
}

func (s *authServiceStub) Register(_ context.Context, params application.RegisterParams) (application.User, error) {
	if s.registerFn == nil {
		return application.User{}, nil
	}
	return s.registerFn(params)
}

func (s *authServiceStub) VerifyEmail(context.Context, application.VerifyCodeParams) (application.User, error) {
	return application.User{}, nil
}

func (s *authServiceStub) ResendVerification(context.Context, string, application.ClientInfo) error {
	return nil
}

func (s *authServiceStub) Login(_ context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	if s.loginFn == nil {
		return application.AuthenticateResult{}, nil
	}
	return s.loginFn(params)
}

func (s *authServiceStub) Logout(_ context.Context, token string, _ application.ClientInfo) error {
	if s.logoutFn == nil {
		return nil
	}
	return s.logoutFn(token)
}

func (s *authServiceStub) RequestPasswordReset(context.Context, string, application.ClientInfo) error {
	return nil
}

func (s *authServiceStub) ConfirmPasswordReset(context.Context, application.ConfirmPasswordResetParams) error {
	return nil
}

type roomServiceStub struct {
	listFn         func(application.RoomFilter) ([]application.Room, error)
	getFn          func(string) (application.Room, error)
	availabilityFn func(string, time.Time) (application.RoomAvailability, error)
	availableFn    func(application.AvailableRoomsQuery) ([]application.Room, error)
}

func (s *roomServiceStub) CreateRoom(_ context.Context, params application.CreateRoomParams) (application.Room, error) {
	return application.Room{ID: "r-new", Name: params.Input.Name, Capacity: params.Input.Capacity}, nil
}

func (s *roomServiceStub) UpdateRoom(_ context.Context, params application.UpdateRoomParams) (application.Room, error) {
	return application.Room{ID: params.RoomID, Name: params.Input.Name}, nil
}

func (s *roomServiceStub) DeleteRoom(context.Context, application.Principal, string) error {
	return nil
}

func (s *roomServiceStub) GetRoom(_ context.Context, roomID string) (application.Room, error) {
	if s.getFn == nil {
		return application.Room{ID: roomID}, nil
	}
	return s.getFn(roomID)
}

func (s *roomServiceStub) ListRooms(_ context.Context, filter application.RoomFilter) ([]application.Room, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(filter)
}

func (s *roomServiceStub) AvailableRooms(_ context.Context, query application.AvailableRoomsQuery) ([]application.Room, error) {
	if s.availableFn == nil {
		return nil, nil
	}
	return s.availableFn(query)
}

func (s *roomServiceStub) RoomAvailability(_ context.Context, roomID string, date time.Time) (application.RoomAvailability, error) {
	if s.availabilityFn == nil {
		return application.RoomAvailability{}, nil
	}
	return s.availabilityFn(roomID, date)
}

type bookingServiceStub struct {
	createFn  func(application.CreateBookingParams) (application.Booking, error)
	getFn     func(application.Principal, string) (application.Booking, error)
	listFn    func(application.ListBookingsParams) ([]application.Booking, error)
	rejectFn  func(application.RejectBookingParams) (application.Booking, error)
	cancelFn  func(application.Principal, string) (application.Booking, error)
	checkFn   func(application.CheckConflictsParams) (application.ConflictReport, error)
	addNoteFn func(application.AddNoteParams) (application.BookingNote, error)
}

func (s *bookingServiceStub) CreateBooking(_ context.Context, params application.CreateBookingParams) (application.Booking, error) {
	if s.createFn == nil {
		return application.Booking{}, nil
	}
	return s.createFn(params)
}

func (s *bookingServiceStub) UpdateBooking(_ context.Context, params application.UpdateBookingParams) (application.Booking, error) {
	return application.Booking{ID: params.BookingID}, nil
}

func (s *bookingServiceStub) ApproveBooking(_ context.Context, _ application.Principal, bookingID string) (application.Booking, error) {
	return application.Booking{ID: bookingID}, nil
}

func (s *bookingServiceStub) RejectBooking(_ context.Context, params application.RejectBookingParams) (application.Booking, error) {
	if s.rejectFn == nil {
		return application.Booking{ID: params.BookingID}, nil
	}
	return s.rejectFn(params)
}

func (s *bookingServiceStub) CancelBooking(_ context.Context, principal application.Principal, bookingID string) (application.Booking, error) {
	if s.cancelFn == nil {
		return application.Booking{ID: bookingID}, nil
	}
	return s.cancelFn(principal, bookingID)
}

func (s *bookingServiceStub) GetBooking(_ context.Context, principal application.Principal, bookingID string) (application.Booking, error) {
	if s.getFn == nil {
		return application.Booking{ID: bookingID}, nil
	}
	return s.getFn(principal, bookingID)
}

func (s *bookingServiceStub) ListBookings(_ context.Context, params application.ListBookingsParams) ([]application.Booking, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(params)
}

func (s *bookingServiceStub) PendingApprovals(context.Context, application.Principal) ([]application.Booking, error) {
	return nil, nil
}

func (s *bookingServiceStub) CheckConflicts(_ context.Context, params application.CheckConflictsParams) (application.ConflictReport, error) {
	if s.checkFn == nil {
		return application.ConflictReport{Available: true}, nil
	}
	return s.checkFn(params)
}

func (s *bookingServiceStub) AddNote(_ context.Context, params application.AddNoteParams) (application.BookingNote, error) {
	if s.addNoteFn == nil {
		return application.BookingNote{ID: "n1", BookingID: params.BookingID, Body: params.Body}, nil
	}
	return s.addNoteFn(params)
}

func (s *bookingServiceStub) ListNotes(context.Context, application.Principal, string) ([]application.BookingNote, error) {
	return nil, nil
}

type userServiceStub struct {
	setActiveFn  func(application.SetUserActiveParams) (application.User, error)
	updateRoleFn func(application.UpdateRoleParams) (application.User, error)
}

func (s *userServiceStub) GetUser(_ context.Context, _ application.Principal, userID string) (application.User, error) {
	return application.User{ID: userID}, nil
}

func (s *userServiceStub) ListUsers(context.Context, application.Principal) ([]application.User, error) {
	return nil, application.ErrUnauthorized
}

func (s *userServiceStub) UpdateRole(_ context.Context, params application.UpdateRoleParams) (application.User, error) {
	if s.updateRoleFn == nil {
		return application.User{ID: params.UserID, Role: params.Role}, nil
	}
	return s.updateRoleFn(params)
}

func (s *userServiceStub) SetActive(_ context.Context, params application.SetUserActiveParams) (application.User, error) {
	if s.setActiveFn == nil {
		return application.User{ID: params.UserID, IsActive: params.Active}, nil
	}
	return s.setActiveFn(params)
}

func (s *userServiceStub) DeleteUser(context.Context, application.Principal, string) error {
	return nil
}

type eventStreamStub struct {
	userIDs []string
}

func (s *eventStreamStub) ServeWS(w http.ResponseWriter, _ *http.Request, userID string) error {
	s.userIDs = append(s.userIDs, userID)
	w.WriteHeader(http.StatusSwitchingProtocols)
	return nil
}
