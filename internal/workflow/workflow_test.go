package workflow

import (
	"errors"
	"testing"
	"time"
)

var reviewTime = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func TestApproval_Approve(t *testing.T) {
	t.Run("pending booking becomes approved", func(t *testing.T) {
		a := NewPending()
		a.RejectionReason = "stale"

		if err := a.Approve("admin-1", reviewTime); err != nil {
			t.Fatalf("Approve returned error: %v", err)
		}
		if a.Status != StatusApproved {
			t.Fatalf("expected approved, got %s", a.Status)
		}
		if a.ApprovedBy == nil || *a.ApprovedBy != "admin-1" {
			t.Fatalf("expected approver admin-1, got %v", a.ApprovedBy)
		}
		if a.ApprovedAt == nil || !a.ApprovedAt.Equal(reviewTime) {
			t.Fatalf("expected approved_at %v, got %v", reviewTime, a.ApprovedAt)
		}
		if a.RejectionReason != "" {
			t.Fatalf("expected rejection reason cleared, got %q", a.RejectionReason)
		}
	})

	t.Run("only pending bookings can be approved", func(t *testing.T) {
		for _, status := range []Status{StatusApproved, StatusRejected, StatusCancelled} {
			a := Approval{Status: status}
			err := a.Approve("admin-1", reviewTime)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("status %s: expected ErrInvalidTransition, got %v", status, err)
			}
			var tErr *TransitionError
			if !errors.As(err, &tErr) || tErr.From != status {
				t.Fatalf("status %s: expected TransitionError from %s, got %v", status, status, err)
			}
		}
	})
}

func TestApproval_Reject(t *testing.T) {
	t.Run("requires a non blank reason", func(t *testing.T) {
		a := NewPending()
		if err := a.Reject("admin-1", "   ", reviewTime); !errors.Is(err, ErrReasonRequired) {
			t.Fatalf("expected ErrReasonRequired, got %v", err)
		}
		if a.Status != StatusPending {
			t.Fatalf("status changed on failed reject: %s", a.Status)
		}
	})

	t.Run("records the rejecting admin", func(t *testing.T) {
		a := NewPending()
		if err := a.Reject("admin-2", "  room under maintenance ", reviewTime); err != nil {
			t.Fatalf("Reject returned error: %v", err)
		}
		if a.Status != StatusRejected {
			t.Fatalf("expected rejected, got %s", a.Status)
		}
		if a.ApprovedBy == nil || *a.ApprovedBy != "admin-2" {
			t.Fatalf("expected approved_by admin-2, got %v", a.ApprovedBy)
		}
		if a.RejectionReason != "room under maintenance" {
			t.Fatalf("unexpected reason %q", a.RejectionReason)
		}
	})

	t.Run("approved bookings cannot be rejected", func(t *testing.T) {
		a := AutoApproved("user-1", reviewTime)
		if err := a.Reject("admin-1", "late", reviewTime); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestApproval_Edit(t *testing.T) {
	t.Run("approved booking returns to pending", func(t *testing.T) {
		a := AutoApproved("user-1", reviewTime)
		if err := a.Edit(); err != nil {
			t.Fatalf("Edit returned error: %v", err)
		}
		if a.Status != StatusPending || a.ApprovedBy != nil || a.ApprovedAt != nil || a.RejectionReason != "" {
			t.Fatalf("expected cleared pending state, got %+v", a)
		}
	})

	t.Run("pending booking stays pending", func(t *testing.T) {
		a := NewPending()
		if err := a.Edit(); err != nil {
			t.Fatalf("Edit returned error: %v", err)
		}
		if a.Status != StatusPending {
			t.Fatalf("expected pending, got %s", a.Status)
		}
	})

	t.Run("terminal bookings cannot be edited", func(t *testing.T) {
		a := Approval{Status: StatusCancelled}
		if err := a.Edit(); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestApproval_Cancel(t *testing.T) {
	tests := []struct {
		from    Status
		wantErr bool
	}{
		{StatusPending, false},
		{StatusApproved, false},
		{StatusRejected, true},
		{StatusCancelled, true},
	}

	for _, tc := range tests {
		t.Run(string(tc.from), func(t *testing.T) {
			a := Approval{Status: tc.from}
			err := a.Cancel()
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("expected ErrInvalidTransition, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Cancel returned error: %v", err)
			}
			if a.Status != StatusCancelled {
				t.Fatalf("expected cancelled, got %s", a.Status)
			}
		})
	}
}

func TestStatus_Active(t *testing.T) {
	if !StatusPending.Active() || !StatusApproved.Active() {
		t.Fatal("pending and approved must hold their slot")
	}
	if StatusRejected.Active() || StatusCancelled.Active() {
		t.Fatal("rejected and cancelled must release their slot")
	}
}
