package http

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/auth"
	"github.com/example/room-booking/internal/security"
)

// SessionValidator resolves a bearer token to its principal.
type SessionValidator interface {
	ValidateToken(ctx context.Context, token string) (application.Principal, error)
}

// BlockList reports lockouts and records the requests it turns away.
type BlockList interface {
	IsBlocked(ctx context.Context, scope security.Scope, key string) (bool, error)
	RecordLoginAttempt(ctx context.Context, attempt security.LoginAttempt) error
	LogAudit(ctx context.Context, entry security.AuditEntry) error
}

// RequireSession rejects requests without a live bearer session and stores the
// principal in the request context.
func RequireSession(validator SessionValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromRequest(r)
			if err != nil {
				responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
					ErrorCode: "AUTH_REQUIRED",
					Message:   errMissingSessionToken.Error(),
				})
				return
			}

			principal, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				responder.handleServiceError(r.Context(), w, err)
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			if logger := LoggerFromContext(ctx); logger != nil {
				ctx = ContextWithLogger(ctx, logger.With("principal_id", principal.UserID))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger attaches a request scoped logger and logs the outcome of every request.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
			if requestID == "" {
				requestID = uuid.NewString()
			}
			logger := base.With(
				"request_id", requestID,
				"request_seq", counter.Add(1),
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			rec.Header().Set("X-Request-ID", requestID)
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(rec, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", rec.status, "duration", time.Since(start))
		})
	}
}

// SecurityHeaders sets the browser hardening headers on every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// BlockedIPGuard turns away API requests from locked out addresses with 429.
// Every refusal is recorded as a blocked attempt and audited.
func BlockedIPGuard(blocks BlockList, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if blocks == nil || !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			client := clientInfo(r)
			blocked, err := blocks.IsBlocked(ctx, security.ScopeIP, client.IP)
			if err != nil {
				responder.loggerFor(ctx).WarnContext(ctx, "block list lookup failed", "ip", client.IP, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !blocked {
				next.ServeHTTP(w, r)
				return
			}

			log := responder.loggerFor(ctx).With("ip", client.IP)
			if err := blocks.RecordLoginAttempt(ctx, security.LoginAttempt{
				IP:        client.IP,
				UserAgent: client.UserAgent,
				Type:      security.AttemptBlocked,
			}); err != nil {
				log.WarnContext(ctx, "failed to record blocked attempt", "error", err)
			}
			if err := blocks.LogAudit(ctx, security.AuditEntry{
				Action:      security.ActionSecurityViolation,
				Description: "Blocked request from IP " + client.IP + " - too many failed login attempts",
				IP:          client.IP,
				UserAgent:   client.UserAgent,
				Data:        map[string]any{"path": r.URL.Path},
			}); err != nil {
				log.WarnContext(ctx, "failed to audit blocked request", "error", err)
			}
			log.WarnContext(ctx, "request from blocked ip refused")
			responder.handleServiceError(ctx, w, application.ErrRateLimited)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

// Unwrap exposes the underlying writer to http.ResponseController and the
// WebSocket upgrader.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
