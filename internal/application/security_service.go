package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/room-booking/internal/security"
)

// SecurityPolicy bundles the tunables of the security service.
type SecurityPolicy struct {
	OTP     security.Generator
	Lockout security.LockoutPolicy
	Domains security.DomainPolicy
}

// SecurityService issues and verifies one time codes, tracks login attempts and
// writes the audit log.
type SecurityService struct {
	otp      OTPRepository
	attempts LoginAttemptRepository
	policy   SecurityPolicy
	rec      recorder
	logger   *slog.Logger
}

// NewSecurityService constructs a security service.
func NewSecurityService(otp OTPRepository, attempts LoginAttemptRepository, audit AuditRepository, policy SecurityPolicy, idGenerator func() string, now func() time.Time) *SecurityService {
	return NewSecurityServiceWithLogger(otp, attempts, audit, policy, idGenerator, now, nil)
}

// NewSecurityServiceWithLogger constructs a security service with a specified logger.
func NewSecurityServiceWithLogger(otp OTPRepository, attempts LoginAttemptRepository, audit AuditRepository, policy SecurityPolicy, idGenerator func() string, now func() time.Time, logger *slog.Logger) *SecurityService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if policy.OTP.CodeLength == 0 {
		policy.OTP = security.NewGenerator(0, 0, 0)
	}
	if policy.Lockout.Limit == 0 {
		policy.Lockout = security.NewLockoutPolicy(0, 0)
	}
	return &SecurityService{
		otp:      otp,
		attempts: attempts,
		policy:   policy,
		rec:      recorder{sinks: Sinks{Audit: audit}, idGenerator: idGenerator, now: now},
		logger:   defaultLogger(logger),
	}
}

func (s *SecurityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SecurityService", operation, attrs...)
}

// GenerateOTP invalidates the user's unused codes of tokenType and issues a new one.
func (s *SecurityService) GenerateOTP(ctx context.Context, userID string, tokenType security.TokenType, client ClientInfo) (token security.Token, err error) {
	if s == nil {
		err = fmt.Errorf("SecurityService is nil")
		return
	}
	if s.otp == nil {
		err = fmt.Errorf("otp repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "GenerateOTP", "user_id", userID, "token_type", string(tokenType))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to generate otp", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("token_id", token.ID).InfoContext(ctx, "otp generated")
	}()

	if userID == "" || !tokenType.Valid() {
		vErr := &ValidationError{}
		vErr.add("token_type", "token type is invalid")
		err = vErr
		return
	}

	var invalidated int
	invalidated, err = s.otp.InvalidateTokens(ctx, userID, tokenType)
	if err != nil {
		err = fmt.Errorf("invalidate otp tokens: %w", mapRepoError(err))
		return
	}

	now := s.rec.now()
	token, err = s.policy.OTP.New(s.rec.idGenerator(), userID, tokenType, now)
	if err != nil {
		return
	}
	if err = s.otp.CreateToken(ctx, token); err != nil {
		err = fmt.Errorf("store otp token: %w", mapRepoError(err))
		return
	}

	s.rec.audit(ctx, logger, auditRecord{
		actor:       &userID,
		action:      security.ActionOTPGenerate,
		description: fmt.Sprintf("Generated %s code", tokenType),
		objectType:  "otp_token",
		objectID:    token.ID,
		client:      client,
		data:        map[string]any{"token_type": string(tokenType), "invalidated": invalidated},
	})
	return
}

// VerifyOTP checks code against the user's latest token of tokenType. Every call
// consumes an attempt. A missing token reports OutcomeExpired.
func (s *SecurityService) VerifyOTP(ctx context.Context, userID string, tokenType security.TokenType, code string, client ClientInfo) (result OTPVerification, err error) {
	if s == nil {
		err = fmt.Errorf("SecurityService is nil")
		return
	}
	if s.otp == nil {
		err = fmt.Errorf("otp repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "VerifyOTP", "user_id", userID, "token_type", string(tokenType))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to verify otp", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("outcome", string(result.Outcome)).InfoContext(ctx, "otp checked")
	}()

	var latest security.Token
	latest, err = s.otp.LatestToken(ctx, userID, tokenType)
	if err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			err = nil
			result = OTPVerification{Outcome: security.OutcomeExpired}
		}
		return
	}

	now := s.rec.now()
	var outcome security.Outcome
	var token security.Token
	token, err = s.otp.RedeemToken(ctx, latest.ID, func(t *security.Token) {
		outcome = t.Verify(strings.TrimSpace(code), now)
	})
	if err != nil {
		err = fmt.Errorf("redeem otp token: %w", mapRepoError(err))
		return
	}
	result = OTPVerification{Outcome: outcome, RemainingAttempts: token.RemainingAttempts()}

	switch outcome {
	case security.OutcomeVerified:
		s.rec.audit(ctx, logger, auditRecord{
			actor:       &userID,
			action:      security.ActionOTPVerify,
			description: fmt.Sprintf("Verified %s code", tokenType),
			objectType:  "otp_token",
			objectID:    token.ID,
			client:      client,
		})
	case security.OutcomeExhausted:
		s.rec.audit(ctx, logger, auditRecord{
			actor:       &userID,
			action:      security.ActionSecurityViolation,
			description: "OTP attempts exhausted",
			objectType:  "otp_token",
			objectID:    token.ID,
			client:      client,
			data:        map[string]any{"token_type": string(tokenType), "attempts": token.Attempts},
		})
	default:
		s.rec.audit(ctx, logger, auditRecord{
			actor:       &userID,
			action:      security.ActionSecurityViolation,
			description: fmt.Sprintf("Failed %s code verification", tokenType),
			objectType:  "otp_token",
			objectID:    token.ID,
			client:      client,
			data: map[string]any{
				"token_type": string(tokenType),
				"outcome":    string(outcome),
				"attempts":   token.Attempts,
			},
		})
	}
	return
}

// RecordLoginAttempt appends attempt to the login log.
func (s *SecurityService) RecordLoginAttempt(ctx context.Context, attempt security.LoginAttempt) error {
	if s == nil {
		return fmt.Errorf("SecurityService is nil")
	}
	if s.attempts == nil {
		return nil
	}
	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = s.rec.now()
	}
	attempt.Email = strings.ToLower(strings.TrimSpace(attempt.Email))
	if err := s.attempts.RecordLoginAttempt(ctx, attempt); err != nil {
		err = fmt.Errorf("record login attempt: %w", err)
		s.loggerWith(ctx, "RecordLoginAttempt").ErrorContext(ctx, "failed to record login attempt", "error", err)
		return err
	}
	return nil
}

// IsBlocked reports whether key reached the failure limit inside the lockout window.
func (s *SecurityService) IsBlocked(ctx context.Context, scope security.Scope, key string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("SecurityService is nil")
	}
	if s.attempts == nil || strings.TrimSpace(key) == "" {
		return false, nil
	}
	if scope == security.ScopeEmail {
		key = strings.ToLower(strings.TrimSpace(key))
	}
	failures, err := s.attempts.CountFailedAttempts(ctx, scope, key, s.policy.Lockout.WindowStart(s.rec.now()))
	if err != nil {
		return false, fmt.Errorf("count failed attempts: %w", err)
	}
	return s.policy.Lockout.Blocked(failures), nil
}

// CheckLoginAllowed returns ErrRateLimited when the ip address or the email is locked out.
func (s *SecurityService) CheckLoginAllowed(ctx context.Context, email, ip string) error {
	for _, check := range []struct {
		scope security.Scope
		key   string
	}{
		{security.ScopeIP, ip},
		{security.ScopeEmail, email},
	} {
		blocked, err := s.IsBlocked(ctx, check.scope, check.key)
		if err != nil {
			return err
		}
		if blocked {
			return fmt.Errorf("%w: too many failed attempts for %s", ErrRateLimited, check.scope)
		}
	}
	return nil
}

// LogAudit appends entry, filling in its id and timestamp when missing.
func (s *SecurityService) LogAudit(ctx context.Context, entry security.AuditEntry) error {
	if s == nil {
		return fmt.Errorf("SecurityService is nil")
	}
	if s.rec.sinks.Audit == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = s.rec.idGenerator()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.rec.now()
	}
	if !entry.Action.Valid() {
		return fmt.Errorf("unknown audit action %q", entry.Action)
	}
	if err := s.rec.sinks.Audit.AppendAudit(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// IsEmailDomainAllowed checks email against the configured domains and audits rejections.
func (s *SecurityService) IsEmailDomainAllowed(ctx context.Context, email string, client ClientInfo) bool {
	if s == nil {
		return false
	}
	if s.policy.Domains.Allows(email) {
		return true
	}
	logger := s.loggerWith(ctx, "IsEmailDomainAllowed")
	logger.WarnContext(ctx, "email domain rejected", "email", email)
	s.rec.audit(ctx, logger, auditRecord{
		action:      security.ActionDomainRejected,
		description: "Registration attempted with a disallowed email domain",
		objectType:  "user",
		client:      client,
		data:        map[string]any{"email": email},
	})
	return false
}
