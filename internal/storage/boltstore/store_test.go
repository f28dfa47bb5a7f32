package boltstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mwork/rewards-api/internal/domain/claim"
	"github.com/mwork/rewards-api/internal/domain/wallet"
	"github.com/mwork/rewards-api/internal/pkg/clock"
)

func openTestStore(t *testing.T, clk clock.Clock) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "rewards.db"), clk)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newClaim(userID, orderID string, created time.Time) *claim.Claim {
	return &claim.Claim{
		ID:           uuid.New(),
		UserID:       userID,
		OrderID:      orderID,
		OrderAmount:  decimal.RequireFromString("12.50"),
		Category:     "standard",
		RewardCoins:  12,
		MaturityDays: 3,
		EvidenceRef:  "claims/pending/" + orderID,
		Status:       claim.StatusPending,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestGetWalletCreatesOnFirstAccess(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := openTestStore(t, clock.NewManual(t0))

	w, err := s.Wallets().GetWallet(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if w.UserID != "u1" || w.Status != wallet.StatusActive || !w.CreatedAt.Equal(t0) {
		t.Fatalf("unexpected wallet: %+v", w)
	}
	if w.UnlockedBalance != 0 || w.LockedBalance != 0 {
		t.Fatalf("new wallet not empty: %+v", w)
	}
}

func TestInsertTransactionRejectsDuplicateReference(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()

	txn := &wallet.Transaction{ID: "01A", UserID: "u1", Direction: wallet.DirectionCredit, Source: wallet.SourceSpin, Amount: 5, ReferenceID: "ref-1"}
	err := s.Wallets().RunAtomic(ctx, func(ctx context.Context, tx wallet.Tx) error {
		return tx.InsertTransaction(ctx, txn)
	})
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}

	dup := *txn
	dup.ID = "01B"
	err = s.Wallets().RunAtomic(ctx, func(ctx context.Context, tx wallet.Tx) error {
		return tx.InsertTransaction(ctx, &dup)
	})
	if !errors.Is(err, wallet.ErrDuplicateReference) {
		t.Fatalf("duplicate insert err = %v, want ErrDuplicateReference", err)
	}
}

func TestRunAtomicRollsBackOnError(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Wallets().RunAtomic(ctx, func(ctx context.Context, tx wallet.Tx) error {
		w, err := tx.LockWallet(ctx, "u1")
		if err != nil {
			return err
		}
		w.UnlockedBalance = 999
		if err := tx.UpdateWallet(ctx, w); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunAtomic err = %v, want boom", err)
	}

	w, err := s.Wallets().GetWallet(ctx, "u1")
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if w.UnlockedBalance != 0 {
		t.Fatalf("unlocked = %d after rollback, want 0", w.UnlockedBalance)
	}
}

func TestListTransactionsNewestFirstWithPaging(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()

	ids := []string{"01H0000000000000000000000A", "01H0000000000000000000000B", "01H0000000000000000000000C"}
	err := s.Wallets().RunAtomic(ctx, func(ctx context.Context, tx wallet.Tx) error {
		for i, id := range ids {
			if err := tx.InsertTransaction(ctx, &wallet.Transaction{ID: id, UserID: "u1", Amount: int64(i + 1), ReferenceID: "r" + id}); err != nil {
				return err
			}
		}
		// Neighbouring user must not leak into u1's listing.
		return tx.InsertTransaction(ctx, &wallet.Transaction{ID: "01H0000000000000000000000Z", UserID: "u2", Amount: 9, ReferenceID: "other"})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := s.Wallets().ListTransactions(ctx, "u1", 2, 0)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(got) != 2 || got[0].ID != ids[2] || got[1].ID != ids[1] {
		t.Fatalf("first page = %+v", got)
	}

	got, err = s.Wallets().ListTransactions(ctx, "u1", 2, 2)
	if err != nil {
		t.Fatalf("ListTransactions page 2: %v", err)
	}
	if len(got) != 1 || got[0].ID != ids[0] {
		t.Fatalf("second page = %+v", got)
	}
}

func TestCreateClaimRejectsDuplicateOrder(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.Claims().Create(ctx, newClaim("u1", "A1", now)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Claims().Create(ctx, newClaim("u2", "A1", now)); !errors.Is(err, claim.ErrDuplicateOrder) {
		t.Fatalf("duplicate Create err = %v, want ErrDuplicateOrder", err)
	}
}

func TestListDueOrdersByApproval(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	older := newClaim("u1", "o-older", t0)
	newer := newClaim("u1", "o-newer", t0)
	notDue := newClaim("u1", "o-not-due", t0)
	pending := newClaim("u1", "o-pending", t0)

	olderAt, newerAt, notDueAt := t0, t0.Add(time.Hour), t0.AddDate(0, 0, 2)
	older.Status, older.ApprovedAt = claim.StatusApproved, &olderAt
	newer.Status, newer.ApprovedAt = claim.StatusApproved, &newerAt
	notDue.Status, notDue.ApprovedAt = claim.StatusApproved, &notDueAt

	for _, c := range []*claim.Claim{newer, notDue, pending, older} {
		if err := s.Claims().Create(ctx, c); err != nil {
			t.Fatalf("Create %s: %v", c.OrderID, err)
		}
	}

	asOf := t0.AddDate(0, 0, 3).Add(time.Hour)
	due, err := s.Claims().ListDue(ctx, asOf, nil, 10)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(due) != 2 || due[0].ID != older.ID || due[1].ID != newer.ID {
		t.Fatalf("ListDue = %v", orderIDs(due))
	}

	rest, err := s.Claims().ListDue(ctx, asOf, claim.CursorAfter(due[0]), 10)
	if err != nil {
		t.Fatalf("ListDue after cursor: %v", err)
	}
	if len(rest) != 1 || rest[0].ID != newer.ID {
		t.Fatalf("ListDue after cursor = %v", orderIDs(rest))
	}
}

func TestListDueCursorBreaksTiesByID(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var created []*claim.Claim
	for _, order := range []string{"t1", "t2", "t3"} {
		c := newClaim("u1", order, t0)
		at := t0
		c.Status, c.ApprovedAt, c.MaturityDays = claim.StatusApproved, &at, 0
		if err := s.Claims().Create(ctx, c); err != nil {
			t.Fatalf("Create %s: %v", order, err)
		}
		created = append(created, c)
	}

	var seen []string
	var cursor *claim.DueCursor
	for i := 0; i < 5; i++ {
		batch, err := s.Claims().ListDue(ctx, t0, cursor, 1)
		if err != nil {
			t.Fatalf("ListDue: %v", err)
		}
		if len(batch) == 0 {
			break
		}
		seen = append(seen, batch[0].OrderID)
		cursor = claim.CursorAfter(batch[0])
	}
	if len(seen) != len(created) {
		t.Fatalf("cursor walk visited %v, want all %d claims once", seen, len(created))
	}
}

func TestUpdateEvidenceRefIsCompareAndSwap(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()

	c := newClaim("u1", "o1", time.Now().UTC())
	if err := s.Claims().Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.Claims().UpdateEvidenceRef(ctx, c.ID, "stale", "claims/approved/o1"); err == nil {
		t.Fatal("expected stale CAS to fail")
	}
	if err := s.Claims().UpdateEvidenceRef(ctx, c.ID, c.EvidenceRef, "claims/approved/o1"); err != nil {
		t.Fatalf("UpdateEvidenceRef: %v", err)
	}

	got, err := s.Claims().GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.EvidenceRef != "claims/approved/o1" {
		t.Fatalf("evidence ref = %q", got.EvidenceRef)
	}
	if !got.OrderAmount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("order amount = %s", got.OrderAmount)
	}
}

func orderIDs(cs []*claim.Claim) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.OrderID)
	}
	return out
}
