package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/room-booking/internal/application"
)

type eventStream interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID string) error
}

// EventsHandler upgrades authenticated requests to the booking event stream.
type EventsHandler struct {
	stream    eventStream
	responder responder
	logger    *slog.Logger
}

func NewEventsHandler(stream eventStream, logger *slog.Logger) *EventsHandler {
	base := defaultLogger(logger)
	return &EventsHandler{stream: stream, responder: newResponder(base), logger: base}
}

func (h *EventsHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "EventsHandler", operation, attrs...)
}

func (h *EventsHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.stream == nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	principal, ok := principalFor(r)
	if !ok {
		h.responder.handleServiceError(r.Context(), w, application.ErrUnauthenticated)
		return
	}

	logger := h.log(r.Context(), "Subscribe")
	if err := h.stream.ServeWS(w, r, principal.UserID); err != nil {
		// The upgrader has already answered the client.
		logger.WarnContext(r.Context(), "websocket subscription failed", "error", err)
		return
	}
	logger.InfoContext(r.Context(), "websocket subscriber attached")
}
