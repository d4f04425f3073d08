package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/room-booking/internal/access"
	"github.com/example/room-booking/internal/auth"
	"github.com/example/room-booking/internal/notify"
	"github.com/example/room-booking/internal/security"
)

const maxNameLength = 100

// TokenIssuer signs and verifies bearer tokens that carry a session id.
type TokenIssuer interface {
	Issue(sessionID, userID string) (string, auth.Claims, error)
	Verify(raw string) (auth.Claims, error)
}

// PasswordHasher derives a storable hash from a password.
type PasswordHasher func(password string) (string, error)

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// AuthService coordinates registration, verification, login and bearer sessions.
type AuthService struct {
	users          UserRepository
	sessions       SessionRepository
	security       *SecurityService
	tokens         TokenIssuer
	hashPassword   PasswordHasher
	verifyPassword PasswordVerifier
	rec            recorder
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(users UserRepository, sessions SessionRepository, securitySvc *SecurityService, tokens TokenIssuer, sinks Sinks, idGenerator func() string, now func() time.Time) *AuthService {
	return NewAuthServiceWithLogger(users, sessions, securitySvc, tokens, sinks, idGenerator, now, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(users UserRepository, sessions SessionRepository, securitySvc *SecurityService, tokens TokenIssuer, sinks Sinks, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AuthService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		security: securitySvc,
		tokens:   tokens,
		hashPassword: func(password string) (string, error) {
			return CreatePasswordHash(password, DefaultArgon2idParams)
		},
		verifyPassword: VerifyPassword,
		rec:            recorder{sinks: sinks, idGenerator: idGenerator, now: now},
		logger:         defaultLogger(logger),
	}
}

// WithPasswordFuncs replaces the argon2id hashing functions.
func (s *AuthService) WithPasswordFuncs(hash PasswordHasher, verify PasswordVerifier) *AuthService {
	if hash != nil {
		s.hashPassword = hash
	}
	if verify != nil {
		s.verifyPassword = verify
	}
	return s
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

func (s *AuthService) ready() error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}
	if s.security == nil {
		return fmt.Errorf("security service not configured")
	}
	return nil
}

// Register creates an inactive account and mails a registration code.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (user User, err error) {
	if err = s.ready(); err != nil {
		return
	}

	email := normalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "Register", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user registered")
	}()

	params.FirstName = strings.TrimSpace(params.FirstName)
	params.LastName = strings.TrimSpace(params.LastName)
	vErr := validateRegistration(email, params)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if !s.security.IsEmailDomainAllowed(ctx, email, params.Client) {
		vErr.add("email", "Email domain is not allowed.")
		err = vErr
		return
	}

	if _, lookupErr := s.users.GetCredentialsByEmail(ctx, email); lookupErr == nil {
		err = ErrAlreadyExists
		return
	} else if !errors.Is(mapRepoError(lookupErr), ErrNotFound) {
		err = lookupErr
		return
	}

	var hash string
	hash, err = s.hashPassword(params.Password)
	if err != nil {
		err = fmt.Errorf("hash password: %w", err)
		return
	}

	now := s.rec.now()
	user = User{
		ID:        s.rec.idGenerator(),
		Email:     email,
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Role:      access.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = s.users.CreateUser(ctx, UserCredentials{User: user, PasswordHash: hash}); err != nil {
		err = mapRepoError(err)
		return
	}

	s.rec.audit(ctx, logger, auditRecord{
		actor:       &user.ID,
		action:      security.ActionUserRegister,
		description: "User registered",
		objectType:  "user",
		objectID:    user.ID,
		client:      params.Client,
	})
	s.sendCode(ctx, logger, user, security.TokenTypeRegistration, params.Client)
	return
}

// VerifyEmail redeems a registration code and activates the account.
func (s *AuthService) VerifyEmail(ctx context.Context, params VerifyCodeParams) (user User, err error) {
	if err = s.ready(); err != nil {
		return
	}

	email := normalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "VerifyEmail", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "email verification failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "email verified")
	}()

	var creds UserCredentials
	creds, err = s.users.GetCredentialsByEmail(ctx, email)
	if err != nil {
		err = credentialsError(err)
		return
	}
	user = creds.User
	if user.EmailVerified {
		return
	}

	var result OTPVerification
	result, err = s.security.VerifyOTP(ctx, user.ID, security.TokenTypeRegistration, params.Code, params.Client)
	if err != nil {
		return
	}
	if !result.Outcome.Success() {
		err = codeError(result)
		return
	}

	creds.User.IsActive = true
	creds.User.EmailVerified = true
	creds.User.UpdatedAt = s.rec.now()
	if err = s.users.UpdateUser(ctx, creds); err != nil {
		err = mapRepoError(err)
		return
	}
	user = creds.User
	return
}

// ResendVerification mails a fresh registration code. Unknown or verified
// accounts succeed silently.
func (s *AuthService) ResendVerification(ctx context.Context, email string, client ClientInfo) error {
	if err := s.ready(); err != nil {
		return err
	}
	email = normalizeEmail(email)
	logger := s.loggerWith(ctx, "ResendVerification", "email", email)

	creds, err := s.users.GetCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			return nil
		}
		logger.ErrorContext(ctx, "failed to load user", "error", err)
		return err
	}
	if creds.User.EmailVerified {
		return nil
	}
	if err := s.sendCode(ctx, logger, creds.User, security.TokenTypeRegistration, client); err != nil {
		return err
	}
	logger.InfoContext(ctx, "verification code resent")
	return nil
}

// Login checks the lockout state and the credentials, records the attempt and
// issues a bearer token bound to a new session.
func (s *AuthService) Login(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if err = s.ready(); err != nil {
		return
	}
	if s.sessions == nil || s.tokens == nil {
		err = fmt.Errorf("session store not configured")
		return
	}

	email := normalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "Login", "email", email, "ip", params.Client.IP)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"user_id", result.User.ID,
			"session_id", result.Session.ID,
		).InfoContext(ctx, "authentication succeeded")
	}()

	attempt := func(kind security.AttemptType) {
		_ = s.security.RecordLoginAttempt(ctx, security.LoginAttempt{
			Email:     email,
			IP:        params.Client.IP,
			UserAgent: params.Client.UserAgent,
			Type:      kind,
		})
		if !kind.Failed() {
			return
		}
		action := security.ActionUserLogin
		if kind == security.AttemptFailedLocked {
			action = security.ActionSecurityViolation
		}
		s.rec.audit(ctx, logger, auditRecord{
			action:      action,
			description: fmt.Sprintf("Login failed: %s", kind),
			objectType:  "user",
			client:      params.Client,
			data:        map[string]any{"email": email, "attempt_type": string(kind)},
		})
	}

	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	if err = s.security.CheckLoginAllowed(ctx, email, params.Client.IP); err != nil {
		if errors.Is(err, ErrRateLimited) {
			attempt(security.AttemptFailedLocked)
		}
		return
	}

	var creds UserCredentials
	creds, err = s.users.GetCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			attempt(security.AttemptFailedUser)
			err = ErrInvalidCredentials
		}
		return
	}

	if verifyErr := s.verifyPassword(creds.PasswordHash, params.Password); verifyErr != nil {
		attempt(security.AttemptFailedPassword)
		err = ErrInvalidCredentials
		return
	}
	if !creds.User.IsActive || !creds.User.EmailVerified {
		attempt(security.AttemptFailedInactive)
		err = ErrAccountDisabled
		return
	}

	now := s.rec.now()
	if pruneErr := s.sessions.DeleteExpiredSessions(ctx, now); pruneErr != nil {
		logger.WarnContext(ctx, "failed to prune expired sessions", "error", pruneErr)
	}

	session := Session{
		ID:        s.rec.idGenerator(),
		UserID:    creds.User.ID,
		IP:        params.Client.IP,
		UserAgent: params.Client.UserAgent,
		CreatedAt: now,
	}
	var claims auth.Claims
	result.Token, claims, err = s.tokens.Issue(session.ID, session.UserID)
	if err != nil {
		err = fmt.Errorf("issue token: %w", err)
		return
	}
	session.ExpiresAt = claims.ExpiresAt
	if err = s.sessions.CreateSession(ctx, session); err != nil {
		err = fmt.Errorf("create session: %w", mapRepoError(err))
		return
	}

	creds.User.LastLoginAt = &now
	creds.User.UpdatedAt = now
	if updateErr := s.users.UpdateUser(ctx, creds); updateErr != nil {
		logger.WarnContext(ctx, "failed to record last login", "error", updateErr)
	}

	attempt(security.AttemptSuccess)
	s.rec.audit(ctx, logger, auditRecord{
		actor:       &creds.User.ID,
		action:      security.ActionUserLogin,
		description: "User logged in",
		objectType:  "session",
		objectID:    session.ID,
		client:      params.Client,
	})

	result.User = creds.User
	result.Session = session
	return
}

// Logout revokes the session behind token.
func (s *AuthService) Logout(ctx context.Context, token string, client ClientInfo) error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.sessions == nil || s.tokens == nil {
		return fmt.Errorf("session store not configured")
	}

	logger := s.loggerWith(ctx, "Logout", "token_provided", strings.TrimSpace(token) != "")

	claims, err := s.tokens.Verify(strings.TrimSpace(token))
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	if _, err := s.sessions.RevokeSession(ctx, claims.SessionID, s.rec.now()); err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			err = ErrUnauthenticated
		}
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	s.rec.audit(ctx, logger, auditRecord{
		actor:       &claims.UserID,
		action:      security.ActionUserLogout,
		description: "User logged out",
		objectType:  "session",
		objectID:    claims.SessionID,
		client:      client,
	})
	logger.InfoContext(ctx, "session revoked", "session_id", claims.SessionID)
	return nil
}

// ValidateToken resolves a bearer token to the principal of its live session.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (principal Principal, err error) {
	if err = s.ready(); err != nil {
		return
	}
	if s.sessions == nil || s.tokens == nil {
		err = fmt.Errorf("session store not configured")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateToken", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("principal_id", principal.UserID).DebugContext(ctx, "session validated")
	}()

	if trimmed == "" {
		err = ErrUnauthenticated
		return
	}

	var claims auth.Claims
	claims, err = s.tokens.Verify(trimmed)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		return
	}

	var session Session
	session, err = s.sessions.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			err = ErrUnauthenticated
		}
		return
	}

	now := s.rec.now()
	if session.RevokedAt != nil {
		err = ErrSessionRevoked
		return
	}
	if !session.ExpiresAt.After(now) {
		err = ErrSessionExpired
		return
	}

	var creds UserCredentials
	creds, err = s.users.GetCredentials(ctx, session.UserID)
	if err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			err = ErrUnauthenticated
		}
		return
	}
	if !creds.User.IsActive {
		err = ErrAccountDisabled
		return
	}

	principal = creds.User.principal()
	return
}

// RequestPasswordReset mails a reset code. Unknown accounts succeed silently.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string, client ClientInfo) error {
	if err := s.ready(); err != nil {
		return err
	}
	email = normalizeEmail(email)
	logger := s.loggerWith(ctx, "RequestPasswordReset", "email", email)

	creds, err := s.users.GetCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			logger.InfoContext(ctx, "password reset requested for unknown account")
			return nil
		}
		logger.ErrorContext(ctx, "failed to load user", "error", err)
		return err
	}
	if err := s.sendCode(ctx, logger, creds.User, security.TokenTypePasswordReset, client); err != nil {
		return err
	}
	logger.InfoContext(ctx, "password reset code issued", "user_id", creds.User.ID)
	return nil
}

// ConfirmPasswordReset redeems a reset code and stores the new password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, params ConfirmPasswordResetParams) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	email := normalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "ConfirmPasswordReset", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "password reset failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "password reset")
	}()

	if problem := passwordProblem(params.NewPassword, email); problem != "" {
		vErr := &ValidationError{}
		vErr.add("new_password", problem)
		err = vErr
		return
	}

	var creds UserCredentials
	creds, err = s.users.GetCredentialsByEmail(ctx, email)
	if err != nil {
		err = credentialsError(err)
		return
	}

	var result OTPVerification
	result, err = s.security.VerifyOTP(ctx, creds.User.ID, security.TokenTypePasswordReset, params.Code, params.Client)
	if err != nil {
		return
	}
	if !result.Outcome.Success() {
		err = codeError(result)
		return
	}

	creds.PasswordHash, err = s.hashPassword(params.NewPassword)
	if err != nil {
		err = fmt.Errorf("hash password: %w", err)
		return
	}
	creds.User.UpdatedAt = s.rec.now()
	if err = s.users.UpdateUser(ctx, creds); err != nil {
		err = mapRepoError(err)
		return
	}

	s.rec.audit(ctx, logger, auditRecord{
		actor:       &creds.User.ID,
		action:      security.ActionPasswordReset,
		description: "Password reset with emailed code",
		objectType:  "user",
		objectID:    creds.User.ID,
		client:      params.Client,
	})
	return
}

func (s *AuthService) sendCode(ctx context.Context, logger *slog.Logger, user User, tokenType security.TokenType, client ClientInfo) error {
	token, err := s.security.GenerateOTP(ctx, user.ID, tokenType, client)
	if err != nil {
		logger.ErrorContext(ctx, "failed to issue code", "token_type", string(tokenType), "error", err)
		return err
	}

	subject := "Verify your email address"
	if tokenType == security.TokenTypePasswordReset {
		subject = "Reset your password"
	}
	s.rec.notify(ctx, logger, notify.Message{
		Recipient: user.Email,
		Subject:   subject,
		Body: fmt.Sprintf("Hello %s,\n\nyour code is %s. It expires at %s.",
			user.FullName(), token.Code, token.ExpiresAt.UTC().Format(time.RFC1123)),
		Tags: map[string]string{"token_type": string(tokenType)},
	})
	return nil
}

func validateRegistration(email string, params RegisterParams) *ValidationError {
	vErr := &ValidationError{}
	if email == "" {
		vErr.add("email", "Email is required.")
	} else if _, err := mail.ParseAddress(email); err != nil {
		vErr.add("email", "Email is invalid.")
	}
	if problem := passwordProblem(params.Password, email); problem != "" {
		vErr.add("password", problem)
	}
	switch {
	case params.FirstName == "":
		vErr.add("first_name", "First name is required.")
	case len(params.FirstName) > maxNameLength:
		vErr.add("first_name", fmt.Sprintf("First name must be at most %d characters.", maxNameLength))
	}
	if len(params.LastName) > maxNameLength {
		vErr.add("last_name", fmt.Sprintf("Last name must be at most %d characters.", maxNameLength))
	}
	return vErr
}

// codeError explains a failed code check to the caller.
func codeError(result OTPVerification) *ValidationError {
	vErr := &ValidationError{}
	switch result.Outcome {
	case security.OutcomeExpired:
		vErr.add("code", "Code has expired. Request a new one.")
	case security.OutcomeExhausted:
		vErr.add("code", "Too many attempts. Request a new code.")
	case security.OutcomeUsed:
		vErr.add("code", "Code was already used. Request a new one.")
	default:
		vErr.add("code", fmt.Sprintf("Invalid code. %d attempts remaining.", result.RemainingAttempts))
	}
	return vErr
}

func credentialsError(err error) error {
	if errors.Is(mapRepoError(err), ErrNotFound) {
		return ErrInvalidCredentials
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
