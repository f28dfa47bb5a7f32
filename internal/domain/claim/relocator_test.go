package claim_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mwork/rewards-api/internal/domain/claim"
)

type flakyStore struct {
	mu       sync.Mutex
	failures int
	calls    int
	moved    map[string]string
}

func (s *flakyStore) Move(_ context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("object store unavailable")
	}
	if s.moved == nil {
		s.moved = make(map[string]string)
	}
	s.moved[src] = dst
	return nil
}

func TestRelocatorMovesAndUpdatesRef(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.submit(t, "u1", "A1", "100", "standard")

	store := &flakyStore{failures: 2}
	r := claim.NewRelocator(store, f.repo, claim.RelocatorConfig{Workers: 1, MaxAttempts: 3, Backoff: time.Millisecond})
	r.Start(ctx)

	if !r.Enqueue(claim.RelocationJob{ClaimID: c.ID, Ref: c.EvidenceRef, From: claim.StatusPending, To: claim.StatusApproved}) {
		t.Fatal("Enqueue refused the job")
	}
	r.Stop()

	want := "claims/approved/u1/A1.jpg"
	if store.moved[c.EvidenceRef] != want {
		t.Fatalf("moved = %v", store.moved)
	}
	got, err := f.repo.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.EvidenceRef != want {
		t.Fatalf("evidence ref = %q, want %q", got.EvidenceRef, want)
	}
}

func TestRelocatorGivesUpWithoutTouchingClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.submit(t, "u1", "A1", "100", "standard")

	store := &flakyStore{failures: 10}
	r := claim.NewRelocator(store, f.repo, claim.RelocatorConfig{Workers: 1, MaxAttempts: 2, Backoff: time.Millisecond})
	r.Start(ctx)
	r.Enqueue(claim.RelocationJob{ClaimID: c.ID, Ref: c.EvidenceRef, From: claim.StatusPending, To: claim.StatusRejected})
	r.Stop()

	if store.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", store.calls)
	}
	got, err := f.repo.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.EvidenceRef != c.EvidenceRef {
		t.Fatalf("evidence ref changed after failed move: %q", got.EvidenceRef)
	}
}

func TestRelocatorRefusesAfterStop(t *testing.T) {
	f := newFixture(t)
	r := claim.NewRelocator(&flakyStore{}, f.repo, claim.RelocatorConfig{})
	r.Start(context.Background())
	r.Stop()
	r.Stop()

	if r.Enqueue(claim.RelocationJob{Ref: "pending/x"}) {
		t.Fatal("Enqueue accepted a job after Stop")
	}
}
