package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/auth"
)

type authService interface {
	Register(ctx context.Context, params application.RegisterParams) (application.User, error)
	VerifyEmail(ctx context.Context, params application.VerifyCodeParams) (application.User, error)
	ResendVerification(ctx context.Context, email string, client application.ClientInfo) error
	Login(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error)
	Logout(ctx context.Context, token string, client application.ClientInfo) error
	RequestPasswordReset(ctx context.Context, email string, client application.ClientInfo) error
	ConfirmPasswordReset(ctx context.Context, params application.ConfirmPasswordResetParams) error
}

// AuthHandler serves registration, email verification, login and password reset.
type AuthHandler struct {
	service   authService
	responder responder
	logger    *slog.Logger
}

func NewAuthHandler(service authService, logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	return &AuthHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AuthHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AuthHandler", operation, attrs...)
}

func (h *AuthHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

// decode reads and validates the body, answering 400 or 422 on failure.
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, operation string, dst any) bool {
	if err := decodeRequest(w, r, dst); err != nil {
		h.log(r.Context(), operation, "error_kind", "bad_request").WarnContext(r.Context(), "rejected request body", "error", err)
		writeDecodeError(r.Context(), h.responder, w, err)
		return false
	}
	return true
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req registerRequest
	if !h.decode(w, r, "Register", &req) {
		return
	}

	email := normalizeEmail(req.Email)
	logger := h.log(r.Context(), "Register", "email", email)

	user, err := h.service.Register(r.Context(), application.RegisterParams{
		Email:     email,
		Password:  req.Password,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Client:    clientInfo(r),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "registration failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("user_id", user.ID).InfoContext(r.Context(), "user registered")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, messageUserResponse{
		Message: "Registration received. Check your email for a verification code.",
		User:    toUserDTO(user),
	})
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req verifyCodeRequest
	if !h.decode(w, r, "VerifyEmail", &req) {
		return
	}

	email := normalizeEmail(req.Email)
	logger := h.log(r.Context(), "VerifyEmail", "email", email)

	user, err := h.service.VerifyEmail(r.Context(), application.VerifyCodeParams{
		Email:  email,
		Code:   strings.TrimSpace(req.Code),
		Client: clientInfo(r),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "email verification failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("user_id", user.ID).InfoContext(r.Context(), "email verified")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, messageUserResponse{
		Message: "Email verified. You can now log in.",
		User:    toUserDTO(user),
	})
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req emailRequest
	if !h.decode(w, r, "ResendVerification", &req) {
		return
	}

	email := normalizeEmail(req.Email)
	logger := h.log(r.Context(), "ResendVerification", "email", email)

	if err := h.service.ResendVerification(r.Context(), email, clientInfo(r)); err != nil {
		logger.ErrorContext(r.Context(), "verification resend failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "verification resend accepted")
	h.responder.writeJSON(r.Context(), w, http.StatusAccepted, messageResponse{
		Message: "If the account exists and is unverified, a new code has been sent.",
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req loginRequest
	if !h.decode(w, r, "Login", &req) {
		return
	}

	email := normalizeEmail(req.Email)
	logger := h.log(r.Context(), "Login", "email", email)

	result, err := h.service.Login(r.Context(), application.AuthenticateParams{
		Email:    email,
		Password: req.Password,
		Client:   clientInfo(r),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "authentication failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("user_id", result.User.ID, "session_id", result.Session.ID).InfoContext(r.Context(), "user authenticated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, loginResponse{
		Token:     result.Token,
		ExpiresAt: formatTimestamp(result.Session.ExpiresAt),
		User:      toUserDTO(result.User),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	token, err := auth.TokenFromRequest(r)
	if err != nil {
		h.log(r.Context(), "Logout", "error_kind", "unauthenticated").WarnContext(r.Context(), "missing bearer token for logout")
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	logger := h.log(r.Context(), "Logout")
	if err := h.service.Logout(r.Context(), token, clientInfo(r)); err != nil {
		logger.ErrorContext(r.Context(), "logout failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session revoked")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req emailRequest
	if !h.decode(w, r, "RequestPasswordReset", &req) {
		return
	}

	email := normalizeEmail(req.Email)
	logger := h.log(r.Context(), "RequestPasswordReset", "email", email)

	if err := h.service.RequestPasswordReset(r.Context(), email, clientInfo(r)); err != nil {
		logger.ErrorContext(r.Context(), "password reset request failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "password reset requested")
	h.responder.writeJSON(r.Context(), w, http.StatusAccepted, messageResponse{
		Message: "If the account exists, a reset code has been sent.",
	})
}

func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req confirmResetRequest
	if !h.decode(w, r, "ConfirmPasswordReset", &req) {
		return
	}

	email := normalizeEmail(req.Email)
	logger := h.log(r.Context(), "ConfirmPasswordReset", "email", email)

	if err := h.service.ConfirmPasswordReset(r.Context(), application.ConfirmPasswordResetParams{
		Email:       email,
		Code:        strings.TrimSpace(req.Code),
		NewPassword: req.NewPassword,
		Client:      clientInfo(r),
	}); err != nil {
		logger.ErrorContext(r.Context(), "password reset failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "password reset")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, messageResponse{Message: "Password updated. You can now log in."})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
}

type verifyCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,numeric,min=4,max=10"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type confirmResetRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,numeric,min=4,max=10"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type messageUserResponse struct {
	Message string  `json:"message"`
	User    userDTO `json:"user"`
}

type loginResponse struct {
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expires_at"`
	User      userDTO `json:"user"`
}
