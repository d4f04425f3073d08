package application

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/example/room-booking/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}
	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerPrefersRequestLogger(t *testing.T) {
	t.Parallel()

	var base, request bytes.Buffer
	baseLogger := slog.New(slog.NewJSONHandler(&base, nil))
	ctx := logging.ContextWithLogger(context.Background(), slog.New(slog.NewJSONHandler(&request, nil)))

	serviceLogger(ctx, baseLogger, "BookingService", "ApproveBooking", "booking_id", "b1").Info("approved")

	if base.Len() != 0 {
		t.Fatalf("expected the base logger to stay silent, got %s", base.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(request.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log entry: %v", err)
	}
	if entry["service"] != "BookingService" || entry["operation"] != "ApproveBooking" || entry["booking_id"] != "b1" {
		t.Fatalf("unexpected attributes: %v", entry)
	}

	base.Reset()
	serviceLogger(context.Background(), baseLogger, "RoomService", "").Info("listed")
	if err := json.Unmarshal(base.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode base entry: %v", err)
	}
	if entry["service"] != "RoomService" {
		t.Fatalf("expected the base logger without a request logger, got %v", entry)
	}
}
