package http

import (
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// RouterConfig collects the handlers and middleware served by NewRouter. Nil
// handlers leave their routes unregistered.
type RouterConfig struct {
	Auth     *AuthHandler
	Users    *UserHandler
	Rooms    *RoomHandler
	Bookings *BookingHandler
	Events   *EventsHandler
	// Session guards every route except registration, verification, login and
	// password reset.
	Session func(http.Handler) http.Handler
	// Middleware wraps the whole router, outermost first.
	Middleware []func(http.Handler) http.Handler
	Logger     *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	router := httprouter.New()
	responder := newResponder(defaultLogger(cfg.Logger))

	public := func(method, path string, handler http.HandlerFunc) {
		router.Handler(method, path, handler)
	}
	protected := func(method, path string, handler http.HandlerFunc) {
		var h http.Handler = handler
		if cfg.Session != nil {
			h = cfg.Session(h)
		}
		router.Handler(method, path, h)
	}

	if cfg.Auth != nil {
		public(http.MethodPost, "/api/auth/register", cfg.Auth.Register)
		public(http.MethodPost, "/api/auth/verify-email", cfg.Auth.VerifyEmail)
		public(http.MethodPost, "/api/auth/resend-verification", cfg.Auth.ResendVerification)
		public(http.MethodPost, "/api/auth/login", cfg.Auth.Login)
		public(http.MethodPost, "/api/auth/password-reset", cfg.Auth.RequestPasswordReset)
		public(http.MethodPost, "/api/auth/password-reset/confirm", cfg.Auth.ConfirmPasswordReset)
		protected(http.MethodPost, "/api/auth/logout", cfg.Auth.Logout)
	}

	if cfg.Rooms != nil {
		protected(http.MethodGet, "/api/rooms", cfg.Rooms.List)
		protected(http.MethodPost, "/api/rooms", cfg.Rooms.Create)
		protected(http.MethodGet, "/api/rooms/:id", cfg.Rooms.Get)
		protected(http.MethodPut, "/api/rooms/:id", cfg.Rooms.Update)
		protected(http.MethodDelete, "/api/rooms/:id", cfg.Rooms.Delete)
		protected(http.MethodGet, "/api/rooms/:id/availability", cfg.Rooms.Availability)
		protected(http.MethodGet, "/api/rooms-available", cfg.Rooms.Available)
	}

	if cfg.Bookings != nil {
		protected(http.MethodGet, "/api/bookings", cfg.Bookings.List)
		protected(http.MethodPost, "/api/bookings", cfg.Bookings.Create)
		protected(http.MethodGet, "/api/bookings/:id", cfg.Bookings.Get)
		protected(http.MethodPut, "/api/bookings/:id", cfg.Bookings.Update)
		protected(http.MethodDelete, "/api/bookings/:id", cfg.Bookings.Cancel)
		protected(http.MethodPost, "/api/bookings/:id/approve", cfg.Bookings.Approve)
		protected(http.MethodPost, "/api/bookings/:id/reject", cfg.Bookings.Reject)
		protected(http.MethodGet, "/api/bookings/:id/notes", cfg.Bookings.ListNotes)
		protected(http.MethodPost, "/api/bookings/:id/notes", cfg.Bookings.AddNote)
		protected(http.MethodPost, "/api/bookings-check", cfg.Bookings.CheckConflicts)
		protected(http.MethodGet, "/api/bookings-pending", cfg.Bookings.Pending)
	}

	if cfg.Users != nil {
		protected(http.MethodGet, "/api/users", cfg.Users.List)
		protected(http.MethodGet, "/api/users/:id", cfg.Users.Get)
		protected(http.MethodDelete, "/api/users/:id", cfg.Users.Delete)
		protected(http.MethodPut, "/api/users/:id/role", cfg.Users.UpdateRole)
		protected(http.MethodPut, "/api/users/:id/status", cfg.Users.UpdateStatus)
	}

	if cfg.Events != nil {
		protected(http.MethodGet, "/ws", cfg.Events.Subscribe)
	}

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		responder.writeError(r.Context(), w, http.StatusNotFound, nil)
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		responder.writeJSON(r.Context(), w, http.StatusMethodNotAllowed, errorResponse{
			ErrorCode: "METHOD_NOT_ALLOWED",
			Message:   http.StatusText(http.StatusMethodNotAllowed),
		})
	})
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, recovered any) {
		responder.loggerFor(r.Context()).ErrorContext(r.Context(), "handler panicked", "panic", recovered)
		responder.writeError(r.Context(), w, http.StatusInternalServerError, nil)
	}

	var handler http.Handler = router
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}
