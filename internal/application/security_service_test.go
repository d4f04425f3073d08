package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/room-booking/internal/security"
)

func newSecurityFixture(domains ...string) (*SecurityService, *otpRepoStub, *attemptRepoStub, *auditRepoStub) {
	otp := &otpRepoStub{}
	attempts := &attemptRepoStub{}
	audit := &auditRepoStub{}
	policy := SecurityPolicy{
		OTP:     security.NewGenerator(6, 10*time.Minute, 3),
		Lockout: security.NewLockoutPolicy(5, 30*time.Minute),
		Domains: security.NewDomainPolicy(domains),
	}
	svc := NewSecurityService(otp, attempts, audit, policy, sequence("sec"), fixedNow)
	return svc, otp, attempts, audit
}

func TestSecurityService_GenerateOTP(t *testing.T) {
	t.Parallel()

	svc, otp, _, audit := newSecurityFixture()
	ctx := context.Background()

	first, err := svc.GenerateOTP(ctx, "u1", security.TokenTypeRegistration, ClientInfo{IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("GenerateOTP returned error: %v", err)
	}
	if len(first.Code) != 6 || !first.ExpiresAt.Equal(testNow.Add(10*time.Minute)) || first.MaxAttempts != 3 {
		t.Fatalf("unexpected token %+v", first)
	}

	second, err := svc.GenerateOTP(ctx, "u1", security.TokenTypeRegistration, ClientInfo{})
	if err != nil {
		t.Fatalf("GenerateOTP returned error: %v", err)
	}
	if !otp.tokens[0].Used || otp.tokens[1].Used || otp.tokens[1].ID != second.ID {
		t.Fatalf("expected previous token invalidated, got %+v", otp.tokens)
	}
	if got := audit.entries[1].Data["invalidated"]; got != 1 {
		t.Fatalf("expected one invalidated token in audit data, got %v", got)
	}
	if audit.entries[0].IP != "10.0.0.1" || *audit.entries[0].ActorID != "u1" {
		t.Fatalf("unexpected audit entry %+v", audit.entries[0])
	}

	_, err = svc.GenerateOTP(ctx, "u1", security.TokenType("carrier_pigeon"), ClientInfo{})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.FieldErrors["token_type"] == "" {
		t.Fatalf("expected token_type validation error, got %v", err)
	}
}

func TestSecurityService_VerifyOTP(t *testing.T) {
	t.Parallel()

	t.Run("correct code verifies once", func(t *testing.T) {
		t.Parallel()

		svc, _, _, audit := newSecurityFixture()
		ctx := context.Background()
		token, err := svc.GenerateOTP(ctx, "u1", security.TokenTypeEmail, ClientInfo{})
		if err != nil {
			t.Fatalf("GenerateOTP returned error: %v", err)
		}

		result, err := svc.VerifyOTP(ctx, "u1", security.TokenTypeEmail, " "+token.Code+" ", ClientInfo{})
		if err != nil || result.Outcome != security.OutcomeVerified {
			t.Fatalf("expected verified, got %+v, %v", result, err)
		}
		if got := audit.actions(); got[len(got)-1] != security.ActionOTPVerify {
			t.Fatalf("expected otp_verify audit, got %v", got)
		}

		again, err := svc.VerifyOTP(ctx, "u1", security.TokenTypeEmail, token.Code, ClientInfo{})
		if err != nil || again.Outcome != security.OutcomeUsed {
			t.Fatalf("expected used outcome, got %+v, %v", again, err)
		}
	})

	t.Run("third wrong guess exhausts the token", func(t *testing.T) {
		t.Parallel()

		svc, otp, _, audit := newSecurityFixture()
		ctx := context.Background()
		if _, err := svc.GenerateOTP(ctx, "u1", security.TokenTypeEmail, ClientInfo{}); err != nil {
			t.Fatalf("GenerateOTP returned error: %v", err)
		}

		want := []security.Outcome{security.OutcomeMismatch, security.OutcomeMismatch, security.OutcomeExhausted}
		for i, outcome := range want {
			result, err := svc.VerifyOTP(ctx, "u1", security.TokenTypeEmail, "xxxxxx", ClientInfo{})
			if err != nil {
				t.Fatalf("VerifyOTP returned error: %v", err)
			}
			if result.Outcome != outcome {
				t.Fatalf("attempt %d: expected %s, got %s", i+1, outcome, result.Outcome)
			}
		}
		if otp.tokens[0].Attempts != 3 {
			t.Fatalf("expected attempts persisted, got %d", otp.tokens[0].Attempts)
		}
		if got := audit.actions(); got[len(got)-1] != security.ActionSecurityViolation {
			t.Fatalf("expected security_violation audit, got %v", got)
		}
	})

	t.Run("failed checks are audited with their outcome", func(t *testing.T) {
		t.Parallel()

		svc, _, _, audit := newSecurityFixture()
		ctx := context.Background()
		token, err := svc.GenerateOTP(ctx, "u1", security.TokenTypeEmail, ClientInfo{IP: "10.0.0.9"})
		if err != nil {
			t.Fatalf("GenerateOTP returned error: %v", err)
		}
		before := len(audit.entries)

		result, err := svc.VerifyOTP(ctx, "u1", security.TokenTypeEmail, "xxxxxx", ClientInfo{IP: "10.0.0.9"})
		if err != nil || result.Outcome != security.OutcomeMismatch {
			t.Fatalf("expected mismatch, got %+v, %v", result, err)
		}
		if len(audit.entries) != before+1 {
			t.Fatalf("expected one audit row for the mismatch, got %d", len(audit.entries)-before)
		}
		entry := audit.entries[len(audit.entries)-1]
		if entry.Action != security.ActionSecurityViolation || entry.Data["outcome"] != string(security.OutcomeMismatch) || entry.ObjectID != token.ID || entry.IP != "10.0.0.9" {
			t.Fatalf("unexpected audit entry %+v", entry)
		}

		if _, err := svc.VerifyOTP(ctx, "u1", security.TokenTypeEmail, token.Code, ClientInfo{}); err != nil {
			t.Fatalf("VerifyOTP returned error: %v", err)
		}
		if _, err := svc.VerifyOTP(ctx, "u1", security.TokenTypeEmail, token.Code, ClientInfo{}); err != nil {
			t.Fatalf("VerifyOTP returned error: %v", err)
		}
		entry = audit.entries[len(audit.entries)-1]
		if entry.Action != security.ActionSecurityViolation || entry.Data["outcome"] != string(security.OutcomeUsed) {
			t.Fatalf("expected reuse audited, got %+v", entry)
		}
	})

	t.Run("missing token reports expired", func(t *testing.T) {
		t.Parallel()

		svc, _, _, _ := newSecurityFixture()
		result, err := svc.VerifyOTP(context.Background(), "nobody", security.TokenTypeEmail, "123456", ClientInfo{})
		if err != nil || result.Outcome != security.OutcomeExpired {
			t.Fatalf("expected expired outcome, got %+v, %v", result, err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()

		svc, otp, _, _ := newSecurityFixture()
		otp.tokens = append(otp.tokens, security.Token{
			ID: "old", UserID: "u1", Code: "123456", Type: security.TokenTypeEmail,
			ExpiresAt: testNow.Add(-time.Minute), MaxAttempts: 3,
		})
		result, err := svc.VerifyOTP(context.Background(), "u1", security.TokenTypeEmail, "123456", ClientInfo{})
		if err != nil || result.Outcome != security.OutcomeExpired || result.RemainingAttempts != 2 {
			t.Fatalf("expected expired outcome with the attempt counted, got %+v, %v", result, err)
		}
	})
}

func TestSecurityService_Lockout(t *testing.T) {
	t.Parallel()

	svc, _, attempts, _ := newSecurityFixture()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := svc.RecordLoginAttempt(ctx, security.LoginAttempt{Email: " Alice@Example.com", IP: "10.0.0.1", Type: security.AttemptFailedPassword}); err != nil {
			t.Fatalf("RecordLoginAttempt returned error: %v", err)
		}
	}
	// successes and blocked requests never count
	_ = svc.RecordLoginAttempt(ctx, security.LoginAttempt{Email: "alice@example.com", IP: "10.0.0.1", Type: security.AttemptSuccess})
	_ = svc.RecordLoginAttempt(ctx, security.LoginAttempt{IP: "10.0.0.1", Type: security.AttemptBlocked})
	// outside the window
	_ = svc.RecordLoginAttempt(ctx, security.LoginAttempt{Email: "alice@example.com", IP: "10.0.0.1", Type: security.AttemptFailedPassword, Timestamp: testNow.Add(-time.Hour)})

	if attempts.attempts[0].Email != "alice@example.com" || !attempts.attempts[0].Timestamp.Equal(testNow) {
		t.Fatalf("expected normalized attempt, got %+v", attempts.attempts[0])
	}
	if err := svc.CheckLoginAllowed(ctx, "alice@example.com", "10.0.0.1"); err != nil {
		t.Fatalf("expected login allowed after four failures, got %v", err)
	}

	_ = svc.RecordLoginAttempt(ctx, security.LoginAttempt{Email: "alice@example.com", IP: "10.0.0.2", Type: security.AttemptFailedLocked})

	blocked, err := svc.IsBlocked(ctx, security.ScopeEmail, "ALICE@example.com")
	if err != nil || !blocked {
		t.Fatalf("expected email blocked, got %v, %v", blocked, err)
	}
	blocked, err = svc.IsBlocked(ctx, security.ScopeIP, "10.0.0.1")
	if err != nil || blocked {
		t.Fatalf("expected ip below limit, got %v, %v", blocked, err)
	}

	err = svc.CheckLoginAllowed(ctx, "alice@example.com", "10.0.0.9")
	if !errors.Is(err, ErrRateLimited) || !strings.Contains(err.Error(), "email") {
		t.Fatalf("expected email rate limit, got %v", err)
	}
}

func TestSecurityService_Audit(t *testing.T) {
	t.Parallel()

	t.Run("log audit fills id and time", func(t *testing.T) {
		t.Parallel()

		svc, _, _, audit := newSecurityFixture()
		if err := svc.LogAudit(context.Background(), security.AuditEntry{Action: security.ActionSystemConfig, Description: "reloaded"}); err != nil {
			t.Fatalf("LogAudit returned error: %v", err)
		}
		if audit.entries[0].ID == "" || !audit.entries[0].Timestamp.Equal(testNow) {
			t.Fatalf("expected id and timestamp, got %+v", audit.entries[0])
		}
		if err := svc.LogAudit(context.Background(), security.AuditEntry{Action: "made_up"}); err == nil {
			t.Fatalf("expected unknown action to be rejected")
		}
	})

	t.Run("domain rejection is audited", func(t *testing.T) {
		t.Parallel()

		svc, _, _, audit := newSecurityFixture("example.com", "@Corp.example")
		if !svc.IsEmailDomainAllowed(context.Background(), "a@corp.example", ClientInfo{}) {
			t.Fatalf("expected corp.example to be allowed")
		}
		if svc.IsEmailDomainAllowed(context.Background(), "a@evil.test", ClientInfo{IP: "10.0.0.3"}) {
			t.Fatalf("expected evil.test to be rejected")
		}
		if got := audit.actions(); len(got) != 1 || got[0] != security.ActionDomainRejected || audit.entries[0].ActorID != nil {
			t.Fatalf("unexpected audit %+v", audit.entries)
		}
	})
}
