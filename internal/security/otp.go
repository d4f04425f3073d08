// Package security holds the OTP token lifecycle, login lockout policy and the
// closed set of audit actions.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"
)

// TokenType is the purpose an OTP was issued for.
type TokenType string

const (
	TokenTypeEmail         TokenType = "email"
	TokenTypeSMS           TokenType = "sms"
	TokenTypeRegistration  TokenType = "registration"
	TokenTypePasswordReset TokenType = "password_reset"
	TokenTypeTwoFactor     TokenType = "two_factor"
)

// Valid reports whether t is a known token type.
func (t TokenType) Valid() bool {
	switch t {
	case TokenTypeEmail, TokenTypeSMS, TokenTypeRegistration, TokenTypePasswordReset, TokenTypeTwoFactor:
		return true
	}
	return false
}

const (
	DefaultCodeLength  = 6
	DefaultTokenTTL    = 10 * time.Minute
	DefaultMaxAttempts = 3
)

// ErrInvalidCodeLength is returned for code lengths outside 4..10.
var ErrInvalidCodeLength = errors.New("security: code length must be between 4 and 10")

// Token is a one-time code bound to a user and a purpose.
type Token struct {
	ID          string
	UserID      string
	Code        string
	Type        TokenType
	ExpiresAt   time.Time
	Used        bool
	Attempts    int
	MaxAttempts int
	CreatedAt   time.Time
}

// Valid reports whether the token can still be redeemed at now.
func (t Token) Valid(now time.Time) bool {
	return !t.Used && t.Attempts < t.MaxAttempts && now.Before(t.ExpiresAt)
}

// RemainingAttempts returns how many more verifications are allowed.
func (t Token) RemainingAttempts() int {
	if remaining := t.MaxAttempts - t.Attempts; remaining > 0 {
		return remaining
	}
	return 0
}

// Outcome is the result of a verification.
type Outcome string

const (
	OutcomeVerified  Outcome = "verified"
	OutcomeMismatch  Outcome = "mismatch"
	OutcomeExpired   Outcome = "expired"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeUsed      Outcome = "used"
)

// Success reports whether the outcome redeemed the token.
func (o Outcome) Success() bool {
	return o == OutcomeVerified
}

// Verify counts the attempt first and then checks validity, so a late or
// exhausted submission still consumes an attempt. The caller persists the
// token after every call.
func (t *Token) Verify(code string, now time.Time) Outcome {
	t.Attempts++

	switch {
	case t.Used:
		return OutcomeUsed
	case t.Attempts >= t.MaxAttempts:
		// the attempt that reaches the limit is already over it
		return OutcomeExhausted
	case !now.Before(t.ExpiresAt):
		return OutcomeExpired
	}

	if subtle.ConstantTimeCompare([]byte(t.Code), []byte(code)) != 1 {
		return OutcomeMismatch
	}
	t.Used = true
	return OutcomeVerified
}

// Generator issues tokens with a fixed code length, lifetime and attempt budget.
type Generator struct {
	CodeLength  int
	TTL         time.Duration
	MaxAttempts int
	Random      io.Reader
}

// NewGenerator returns a generator with the defaults applied to zero values.
func NewGenerator(codeLength int, ttl time.Duration, maxAttempts int) Generator {
	g := Generator{CodeLength: codeLength, TTL: ttl, MaxAttempts: maxAttempts}
	if g.CodeLength == 0 {
		g.CodeLength = DefaultCodeLength
	}
	if g.TTL <= 0 {
		g.TTL = DefaultTokenTTL
	}
	if g.MaxAttempts <= 0 {
		g.MaxAttempts = DefaultMaxAttempts
	}
	return g
}

// New builds an unsaved token for userID.
func (g Generator) New(id, userID string, tokenType TokenType, now time.Time) (Token, error) {
	code, err := GenerateCode(g.random(), g.CodeLength)
	if err != nil {
		return Token{}, err
	}
	return Token{
		ID:          id,
		UserID:      userID,
		Code:        code,
		Type:        tokenType,
		ExpiresAt:   now.Add(g.TTL),
		MaxAttempts: g.MaxAttempts,
		CreatedAt:   now,
	}, nil
}

func (g Generator) random() io.Reader {
	if g.Random != nil {
		return g.Random
	}
	return rand.Reader
}

// GenerateCode returns a zero padded numeric code of the given length.
func GenerateCode(random io.Reader, length int) (string, error) {
	if length < 4 || length > 10 {
		return "", ErrInvalidCodeLength
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(random, limit)
	if err != nil {
		return "", fmt.Errorf("security: generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n), nil
}
