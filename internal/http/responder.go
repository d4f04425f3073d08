package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/scheduler"
)

var (
	errBadRequestBody      = errors.New("request body is malformed")
	errInvalidBookingID    = errors.New("booking id is required")
	errInvalidUserID       = errors.New("user id is required")
	errInvalidRoomID       = errors.New("room id is required")
	errMissingSessionToken = errors.New("authentication token is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: statusCode(status), Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		if vErr.IsConflict() {
			r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
				ErrorCode: "BOOKING_CONFLICT",
				Message:   "The requested time conflicts with existing bookings.",
				Errors:    vErr.FieldErrors,
				Conflicts: toConflictDTOs(vErr.Conflicts),
			})
			return
		}
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   statusMessage(http.StatusUnprocessableEntity),
			Errors:    vErr.FieldErrors,
		})
		return
	}

	status, code, message := classify(err)
	if status == http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "unhandled service error", "error", err)
	}
	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: code, Message: message})
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, application.ErrInvalidCredentials):
		return http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS", "Invalid email or password."
	case errors.Is(err, application.ErrSessionExpired):
		return http.StatusUnauthorized, "AUTH_SESSION_EXPIRED", "Your session has expired. Please log in again."
	case errors.Is(err, application.ErrSessionRevoked):
		return http.StatusUnauthorized, "AUTH_SESSION_REVOKED", "Your session has ended. Please log in again."
	case errors.Is(err, application.ErrUnauthenticated):
		return http.StatusUnauthorized, "AUTH_REQUIRED", statusMessage(http.StatusUnauthorized)
	case errors.Is(err, application.ErrAccountDisabled):
		return http.StatusForbidden, "ACCOUNT_DISABLED", "This account is inactive or has not been verified."
	case errors.Is(err, application.ErrUnauthorized):
		return http.StatusForbidden, "AUTH_FORBIDDEN", statusMessage(http.StatusForbidden)
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", statusMessage(http.StatusNotFound)
	case errors.Is(err, application.ErrAlreadyExists):
		return http.StatusConflict, "ALREADY_EXISTS", "A resource with the same identity already exists."
	case errors.Is(err, application.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION", "The booking cannot move to the requested status."
	case errors.Is(err, application.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED", statusMessage(http.StatusTooManyRequests)
	}
	return http.StatusInternalServerError, "INTERNAL", statusMessage(http.StatusInternalServerError)
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "The request is invalid."
	case http.StatusUnauthorized:
		return "Authentication is required."
	case http.StatusForbidden:
		return "You do not have permission to perform this action."
	case http.StatusNotFound:
		return "The requested resource was not found."
	case http.StatusConflict:
		return "The request conflicts with the current state of the resource."
	case http.StatusUnprocessableEntity:
		return "The submitted data is invalid."
	case http.StatusTooManyRequests:
		return "Too many failed attempts. Please try again later."
	default:
		return "An internal server error occurred."
	}
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "AUTH_REQUIRED"
	case http.StatusForbidden:
		return "AUTH_FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		return ""
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflicts []conflictDTO     `json:"conflicts,omitempty"`
}

type conflictDTO struct {
	BookingID string `json:"booking_id"`
	Purpose   string `json:"purpose"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Status    string `json:"status"`
}

func toConflictDTOs(conflicts []application.ConflictDetail) []conflictDTO {
	if len(conflicts) == 0 {
		return nil
	}
	out := make([]conflictDTO, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, conflictDTO{
			BookingID: c.BookingID,
			Purpose:   c.Purpose,
			StartDate: scheduler.FormatDate(c.StartDate),
			EndDate:   scheduler.FormatDate(c.EndDate),
			StartTime: c.StartTime,
			EndTime:   c.EndTime,
			Status:    c.Status,
		})
	}
	return out
}

// writeDecodeError answers 400 for unreadable bodies and 422 for tag failures.
func writeDecodeError(ctx context.Context, r responder, w http.ResponseWriter, err error) {
	if errors.Is(err, errBadRequestBody) {
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			ErrorCode: "BAD_REQUEST",
			Message:   errBadRequestBody.Error(),
		})
		return
	}
	r.handleServiceError(ctx, w, err)
}
