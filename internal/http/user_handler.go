package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-booking/internal/access"
	"github.com/example/room-booking/internal/application"
)

type userService interface {
	GetUser(ctx context.Context, principal application.Principal, userID string) (application.User, error)
	ListUsers(ctx context.Context, principal application.Principal) ([]application.User, error)
	UpdateRole(ctx context.Context, params application.UpdateRoleParams) (application.User, error)
	SetActive(ctx context.Context, params application.SetUserActiveParams) (application.User, error)
	DeleteUser(ctx context.Context, principal application.Principal, userID string) error
}

type UserHandler struct {
	service   userService
	responder responder
	logger    *slog.Logger
}

func NewUserHandler(service userService, logger *slog.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "UserHandler", operation, attrs...)
}

func (h *UserHandler) userID(w http.ResponseWriter, r *http.Request, operation string) (string, bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return "", false
	}
	userID := strings.TrimSpace(pathParam(r.Context(), "id"))
	if userID == "" {
		h.log(r.Context(), operation, "error_kind", "bad_request").ErrorContext(r.Context(), "missing user id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return "", false
	}
	return userID, true
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := principalFor(r)
	logger := h.log(r.Context(), "List")

	users, err := h.service.ListUsers(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "user list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(users)).InfoContext(r.Context(), "users listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listUsersResponse{Users: toUserDTOs(users)})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r, "Get")
	if !ok {
		return
	}

	principal, _ := principalFor(r)
	user, err := h.service.GetUser(r.Context(), principal, userID)
	if err != nil {
		h.log(r.Context(), "Get", "user_id", userID).ErrorContext(r.Context(), "user lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r, "UpdateRole")
	if !ok {
		return
	}

	var req roleRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.log(r.Context(), "UpdateRole", "user_id", userID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode role update", "error", err)
		writeDecodeError(r.Context(), h.responder, w, err)
		return
	}

	principal, _ := principalFor(r)
	logger := h.log(r.Context(), "UpdateRole", "user_id", userID, "role", req.Role)

	user, err := h.service.UpdateRole(r.Context(), application.UpdateRoleParams{
		Principal:      principal,
		UserID:         userID,
		Role:           access.Role(req.Role),
		ManagedRoomIDs: req.ManagedRoomIDs,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "role update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "role updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

// UpdateStatus locks or unlocks an account.
func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r, "UpdateStatus")
	if !ok {
		return
	}

	var req statusRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.log(r.Context(), "UpdateStatus", "user_id", userID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode status update", "error", err)
		writeDecodeError(r.Context(), h.responder, w, err)
		return
	}

	principal, _ := principalFor(r)
	logger := h.log(r.Context(), "UpdateStatus", "user_id", userID, "active", *req.IsActive)

	user, err := h.service.SetActive(r.Context(), application.SetUserActiveParams{
		Principal: principal,
		UserID:    userID,
		Active:    *req.IsActive,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "status update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "status updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r, "Delete")
	if !ok {
		return
	}

	principal, _ := principalFor(r)
	logger := h.log(r.Context(), "Delete", "user_id", userID)

	if err := h.service.DeleteUser(r.Context(), principal, userID); err != nil {
		logger.ErrorContext(r.Context(), "user deletion failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "user deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type roleRequest struct {
	Role           string   `json:"role" validate:"required,oneof=user room_admin super_admin procurement_officer"`
	ManagedRoomIDs []string `json:"managed_room_ids" validate:"omitempty,dive,required"`
}

type statusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

type userResponse struct {
	User userDTO `json:"user"`
}

type listUsersResponse struct {
	Users []userDTO `json:"users"`
}

type userDTO struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	FullName       string   `json:"full_name"`
	Role           string   `json:"role"`
	ManagedRoomIDs []string `json:"managed_room_ids,omitempty"`
	IsActive       bool     `json:"is_active"`
	EmailVerified  bool     `json:"email_verified"`
	LastLoginAt    *string  `json:"last_login_at,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

func toUserDTO(user application.User) userDTO {
	return userDTO{
		ID:             user.ID,
		Email:          user.Email,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		FullName:       user.FullName(),
		Role:           string(user.Role),
		ManagedRoomIDs: user.ManagedRoomIDs,
		IsActive:       user.IsActive,
		EmailVerified:  user.EmailVerified,
		LastLoginAt:    formatOptionalTimestamp(user.LastLoginAt),
		CreatedAt:      formatTimestamp(user.CreatedAt),
		UpdatedAt:      formatTimestamp(user.UpdatedAt),
	}
}

func toUserDTOs(users []application.User) []userDTO {
	out := make([]userDTO, 0, len(users))
	for _, user := range users {
		out = append(out, toUserDTO(user))
	}
	return out
}
