package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/room-booking/internal/auth"
	"github.com/example/room-booking/internal/events"
	"github.com/example/room-booking/internal/notify"
	"github.com/example/room-booking/internal/scheduler"
	"github.com/example/room-booking/internal/security"
)

var testNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func sequence(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%03d", prefix, n)
	}
}

func day(d int) time.Time {
	return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
}

func hm(h, m int) scheduler.TimeOfDay {
	return scheduler.NewTimeOfDay(h, m)
}

type roomRepoStub struct {
	rooms     map[string]Room
	createErr error
	updateErr error
	deleted   []string
}

func newRoomRepoStub(rooms ...Room) *roomRepoStub {
	r := &roomRepoStub{rooms: map[string]Room{}}
	for _, room := range rooms {
		r.rooms[room.ID] = room
	}
	return r
}

func (r *roomRepoStub) CreateRoom(_ context.Context, room Room) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.rooms[room.ID] = room
	return nil
}

func (r *roomRepoStub) UpdateRoom(_ context.Context, room Room) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.rooms[room.ID]; !ok {
		return ErrNotFound
	}
	r.rooms[room.ID] = room
	return nil
}

func (r *roomRepoStub) GetRoom(_ context.Context, id string) (Room, error) {
	room, ok := r.rooms[id]
	if !ok {
		return Room{}, ErrNotFound
	}
	return room, nil
}

func (r *roomRepoStub) ListRooms(_ context.Context, filter RoomFilter) ([]Room, error) {
	var out []Room
	for _, room := range r.rooms {
		if filter.Category != "" && room.Category != filter.Category {
			continue
		}
		if room.Capacity < filter.MinCapacity || (filter.ActiveOnly && !room.IsActive) {
			continue
		}
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *roomRepoStub) DeleteRoom(_ context.Context, id string) error {
	if _, ok := r.rooms[id]; !ok {
		return ErrNotFound
	}
	delete(r.rooms, id)
	r.deleted = append(r.deleted, id)
	return nil
}

// bookingRepoStub mimics the guarded writes of the SQLite repository.
type bookingRepoStub struct {
	bookings map[string]Booking
	filters  []BookingFilter
	writeErr error
}

func newBookingRepoStub(bookings ...Booking) *bookingRepoStub {
	r := &bookingRepoStub{bookings: map[string]Booking{}}
	for _, b := range bookings {
		r.bookings[b.ID] = b
	}
	return r
}

func (r *bookingRepoStub) competing(candidate Booking) []Booking {
	var out []Booking
	for _, b := range r.bookings {
		if b.ID == candidate.ID || b.RoomID != candidate.RoomID || !b.Status.Active() {
			continue
		}
		if b.EndDate.Before(candidate.StartDate) || b.StartDate.After(candidate.EndDate) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func (r *bookingRepoStub) CreateBooking(_ context.Context, booking Booking, guard BookingGuard) error {
	if r.writeErr != nil {
		return r.writeErr
	}
	if guard != nil {
		if err := guard(r.competing(booking)); err != nil {
			return err
		}
	}
	r.bookings[booking.ID] = booking
	return nil
}

func (r *bookingRepoStub) UpdateBooking(_ context.Context, booking Booking, guard BookingGuard) error {
	if r.writeErr != nil {
		return r.writeErr
	}
	if _, ok := r.bookings[booking.ID]; !ok {
		return ErrNotFound
	}
	if guard != nil {
		if err := guard(r.competing(booking)); err != nil {
			return err
		}
	}
	r.bookings[booking.ID] = booking
	return nil
}

func (r *bookingRepoStub) GetBooking(_ context.Context, id string) (Booking, error) {
	b, ok := r.bookings[id]
	if !ok {
		return Booking{}, ErrNotFound
	}
	return b, nil
}

func (r *bookingRepoStub) ListBookings(_ context.Context, filter BookingFilter) ([]Booking, error) {
	r.filters = append(r.filters, filter)
	var out []Booking
	for _, b := range r.bookings {
		if filter.RoomID != "" && b.RoomID != filter.RoomID {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, b.Status) {
			continue
		}
		if filter.From != nil && b.EndDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && b.StartDate.After(*filter.To) {
			continue
		}
		if filter.OwnerID != "" || len(filter.ManagedRoomIDs) > 0 {
			if b.UserID != filter.OwnerID && !slices.Contains(filter.ManagedRoomIDs, b.RoomID) {
				continue
			}
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type noteRepoStub struct {
	notes []BookingNote
}

func (r *noteRepoStub) CreateNote(_ context.Context, note BookingNote) error {
	r.notes = append(r.notes, note)
	return nil
}

func (r *noteRepoStub) ListNotes(_ context.Context, bookingID string, includeInternal bool) ([]BookingNote, error) {
	var out []BookingNote
	for _, n := range r.notes {
		if n.BookingID == bookingID && (includeInternal || !n.IsInternal) {
			out = append(out, n)
		}
	}
	return out, nil
}

type userRepoStub struct {
	users     map[string]UserCredentials
	updates   []UserCredentials
	createErr error
}

func newUserRepoStub(users ...UserCredentials) *userRepoStub {
	r := &userRepoStub{users: map[string]UserCredentials{}}
	for _, u := range users {
		r.users[u.User.ID] = u
	}
	return r
}

func (r *userRepoStub) CreateUser(_ context.Context, creds UserCredentials) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.users[creds.User.ID] = creds
	return nil
}

func (r *userRepoStub) UpdateUser(_ context.Context, creds UserCredentials) error {
	if _, ok := r.users[creds.User.ID]; !ok {
		return ErrNotFound
	}
	r.users[creds.User.ID] = creds
	r.updates = append(r.updates, creds)
	return nil
}

func (r *userRepoStub) GetCredentials(_ context.Context, id string) (UserCredentials, error) {
	creds, ok := r.users[id]
	if !ok {
		return UserCredentials{}, ErrNotFound
	}
	return creds, nil
}

func (r *userRepoStub) GetCredentialsByEmail(_ context.Context, email string) (UserCredentials, error) {
	for _, creds := range r.users {
		if strings.EqualFold(creds.User.Email, email) {
			return creds, nil
		}
	}
	return UserCredentials{}, ErrNotFound
}

func (r *userRepoStub) ListUsers(_ context.Context) ([]User, error) {
	var out []User
	for _, creds := range r.users {
		out = append(out, creds.User)
	}
	return out, nil
}

func (r *userRepoStub) DeleteUser(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type sessionRepoStub struct {
	sessions map[string]Session
	pruned   []time.Time
}

func newSessionRepoStub() *sessionRepoStub {
	return &sessionRepoStub{sessions: map[string]Session{}}
}

func (r *sessionRepoStub) CreateSession(_ context.Context, session Session) error {
	r.sessions[session.ID] = session
	return nil
}

func (r *sessionRepoStub) GetSession(_ context.Context, id string) (Session, error) {
	session, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return session, nil
}

func (r *sessionRepoStub) RevokeSession(_ context.Context, id string, at time.Time) (Session, error) {
	session, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	if session.RevokedAt == nil {
		session.RevokedAt = &at
	}
	r.sessions[id] = session
	return session, nil
}

func (r *sessionRepoStub) DeleteExpiredSessions(_ context.Context, reference time.Time) error {
	r.pruned = append(r.pruned, reference)
	return nil
}

type otpRepoStub struct {
	tokens []security.Token
}

func (r *otpRepoStub) CreateToken(_ context.Context, token security.Token) error {
	r.tokens = append(r.tokens, token)
	return nil
}

func (r *otpRepoStub) LatestToken(_ context.Context, userID string, tokenType security.TokenType) (security.Token, error) {
	for i := len(r.tokens) - 1; i >= 0; i-- {
		if r.tokens[i].UserID == userID && r.tokens[i].Type == tokenType {
			return r.tokens[i], nil
		}
	}
	return security.Token{}, ErrNotFound
}

func (r *otpRepoStub) InvalidateTokens(_ context.Context, userID string, tokenType security.TokenType) (int, error) {
	n := 0
	for i := range r.tokens {
		if r.tokens[i].UserID == userID && r.tokens[i].Type == tokenType && !r.tokens[i].Used {
			r.tokens[i].Used = true
			n++
		}
	}
	return n, nil
}

func (r *otpRepoStub) RedeemToken(_ context.Context, id string, redeem func(*security.Token)) (security.Token, error) {
	for i := range r.tokens {
		if r.tokens[i].ID == id {
			redeem(&r.tokens[i])
			return r.tokens[i], nil
		}
	}
	return security.Token{}, ErrNotFound
}

type attemptRepoStub struct {
	attempts []security.LoginAttempt
}

func (r *attemptRepoStub) RecordLoginAttempt(_ context.Context, attempt security.LoginAttempt) error {
	r.attempts = append(r.attempts, attempt)
	return nil
}

func (r *attemptRepoStub) CountFailedAttempts(_ context.Context, scope security.Scope, key string, since time.Time) (int, error) {
	count := 0
	for _, a := range r.attempts {
		if !a.Type.Failed() || a.Timestamp.Before(since) {
			continue
		}
		if (scope == security.ScopeIP && a.IP == key) || (scope == security.ScopeEmail && strings.EqualFold(a.Email, key)) {
			count++
		}
	}
	return count, nil
}

func (r *attemptRepoStub) types() []security.AttemptType {
	var out []security.AttemptType
	for _, a := range r.attempts {
		out = append(out, a.Type)
	}
	return out
}

type auditRepoStub struct {
	entries []security.AuditEntry
}

func (r *auditRepoStub) AppendAudit(_ context.Context, entry security.AuditEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *auditRepoStub) actions() []security.Action {
	var out []security.Action
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type eventRecorder struct {
	events []events.Event
}

func (r *eventRecorder) Publish(_ context.Context, event events.Event) error {
	r.events = append(r.events, event)
	return nil
}

type notifierStub struct {
	messages []notify.Message
	err      error
}

func (n *notifierStub) Send(_ context.Context, msg notify.Message) error {
	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, msg)
	return nil
}

// tokenIssuerStub hands out "token:<session>" strings.
type tokenIssuerStub struct {
	ttl time.Duration
}

func (s tokenIssuerStub) Issue(sessionID, userID string) (string, auth.Claims, error) {
	claims := auth.Claims{SessionID: sessionID, UserID: userID, IssuedAt: testNow, ExpiresAt: testNow.Add(s.ttl)}
	return "token:" + sessionID + ":" + userID, claims, nil
}

func (s tokenIssuerStub) Verify(raw string) (auth.Claims, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 || parts[0] != "token" {
		return auth.Claims{}, auth.ErrInvalidToken
	}
	return auth.Claims{SessionID: parts[1], UserID: parts[2], IssuedAt: testNow, ExpiresAt: testNow.Add(s.ttl)}, nil
}

var errBoom = errors.New("boom")
