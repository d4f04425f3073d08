package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/room-booking/internal/scheduler"
)

var managedKeys = []string{
	"BOOKING_HTTP_PORT",
	"BOOKING_SQLITE_PATH",
	"BOOKING_JWT_SECRET",
	"BOOKING_SESSION_TTL",
	"BOOKING_LOG_LEVEL",
	"BOOKING_BUSINESS_OPEN",
	"BOOKING_BUSINESS_CLOSE",
	"BOOKING_LOGIN_ATTEMPT_LIMIT",
	"BOOKING_LOGIN_LOCKOUT_TIME",
	"BOOKING_OTP_LENGTH",
	"BOOKING_OTP_TTL",
	"BOOKING_OTP_MAX_ATTEMPTS",
	"BOOKING_ALLOWED_EMAIL_DOMAINS",
	"BOOKING_AMQP_URL",
	"BOOKING_KAFKA_BROKERS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range managedKeys {
		// register restore with t.Setenv before unsetting
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BOOKING_JWT_SECRET", "super-secret")

		cfg, err := Load(missingEnvFile(t))
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 || cfg.DatabasePath != "booking.db" {
			t.Fatalf("unexpected defaults %+v", cfg)
		}
		if cfg.SessionTTL != 8*time.Hour {
			t.Fatalf("expected 8h session ttl, got %v", cfg.SessionTTL)
		}
		if cfg.Booking.Scheduler() != scheduler.DefaultConfig() {
			t.Fatalf("unexpected business hours %+v", cfg.Booking)
		}
		sec := cfg.Security
		if sec.LoginAttemptLimit != 5 || sec.LockoutWindow != 30*time.Minute || sec.OTPLength != 6 || sec.OTPTTL != 10*time.Minute || sec.OTPMaxAttempts != 3 {
			t.Fatalf("unexpected security defaults %+v", sec)
		}
		if cfg.Notification.AMQPURL != "" || len(cfg.Events.KafkaBrokers) != 0 {
			t.Fatalf("brokers should be disabled by default: %+v %+v", cfg.Notification, cfg.Events)
		}
	})

	t.Run("errors when the jwt secret is missing", func(t *testing.T) {
		clearEnv(t)

		_, err := Load(missingEnvFile(t))
		if err == nil || !strings.Contains(err.Error(), "BOOKING_JWT_SECRET") {
			t.Fatalf("expected missing secret error, got %v", err)
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BOOKING_JWT_SECRET", "s")
		t.Setenv("BOOKING_HTTP_PORT", "abc")
		t.Setenv("BOOKING_OTP_TTL", "-1m")
		t.Setenv("BOOKING_BUSINESS_CLOSE", "07:00")

		_, err := Load(missingEnvFile(t))
		if err == nil {
			t.Fatal("expected error")
		}
		for _, key := range []string{"BOOKING_HTTP_PORT", "BOOKING_OTP_TTL", "BOOKING_BUSINESS_CLOSE"} {
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("expected %s in %v", key, err)
			}
		}
	})

	t.Run("reads lists and env files", func(t *testing.T) {
		clearEnv(t)
		envFile := filepath.Join(t.TempDir(), "test.env")
		content := "BOOKING_JWT_SECRET=from-file\nBOOKING_ALLOWED_EMAIL_DOMAINS=icpac.net, igad.int\n"
		if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
			t.Fatalf("write env file: %v", err)
		}
		t.Setenv("BOOKING_KAFKA_BROKERS", "k1:9092,k2:9092")

		cfg, err := Load(envFile)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.JWTSecret != "from-file" {
			t.Fatalf("expected secret from file, got %q", cfg.JWTSecret)
		}
		if got := cfg.Security.AllowedEmailDomains; len(got) != 2 || got[1] != "igad.int" {
			t.Fatalf("unexpected domains %v", got)
		}
		if len(cfg.Events.KafkaBrokers) != 2 {
			t.Fatalf("unexpected brokers %v", cfg.Events.KafkaBrokers)
		}
	})
}
