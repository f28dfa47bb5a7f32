package claim

import (
	"testing"
	"time"
)

func TestClaimIsDue(t *testing.T) {
	approved := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
	c := &Claim{Status: StatusApproved, ApprovedAt: &approved, MaturityDays: 30}

	at, ok := c.MaturesAt()
	if !ok || !at.Equal(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("MaturesAt = %v, %v", at, ok)
	}
	if c.IsDue(at.Add(-time.Second)) {
		t.Fatal("due one second early")
	}
	if !c.IsDue(at) {
		t.Fatal("not due at the boundary")
	}

	c.Status = StatusMatured
	if c.IsDue(at.Add(time.Hour)) {
		t.Fatal("matured claim reported due")
	}

	pending := &Claim{Status: StatusPending, MaturityDays: 0}
	if pending.IsDue(approved) {
		t.Fatal("pending claim reported due")
	}
}

func TestRelocateKey(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"claims/pending/u1/a.jpg", "claims/approved/u1/a.jpg"},
		{"pending/u1/pending.jpg", "approved/u1/pending.jpg"},
		{"claims/u1/a.jpg", "claims/u1/a.jpg"},
	}
	for _, tt := range tests {
		if got := RelocateKey(tt.ref, StatusPending, StatusApproved); got != tt.want {
			t.Fatalf("RelocateKey(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}
