package claim

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mwork/rewards-api/internal/domain/wallet"
)

// Tx is the persistence surface of one atomic unit spanning a claim and its
// owner's wallet.
type Tx interface {
	wallet.Tx

	// LockClaim returns ErrClaimNotFound when the claim does not exist.
	LockClaim(ctx context.Context, id uuid.UUID) (*Claim, error)
	UpdateClaim(ctx context.Context, c *Claim) error
}

// DueCursor is the keyset position of the last claim a sweep has seen.
type DueCursor struct {
	ApprovedAt time.Time
	ID         uuid.UUID
}

// CursorAfter returns the position just past c. c must be approved.
func CursorAfter(c *Claim) *DueCursor {
	return &DueCursor{ApprovedAt: *c.ApprovedAt, ID: c.ID}
}

// Before reports whether c sorts before the cursor position or on it.
func (d *DueCursor) Before(c *Claim) bool {
	if d == nil {
		return false
	}
	if c.ApprovedAt.Equal(d.ApprovedAt) {
		return c.ID.String() <= d.ID.String()
	}
	return c.ApprovedAt.Before(d.ApprovedAt)
}

type Repository interface {
	RunAtomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Create returns ErrDuplicateOrder when the order id is already taken.
	Create(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)
	// ListByStatus returns claims oldest first.
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Claim, error)
	// ListByUser returns claims newest first.
	ListByUser(ctx context.Context, userID string) ([]*Claim, error)
	// ListDue returns approved claims whose approved_at + maturity_days <= now,
	// ordered by (approved_at, id) and strictly after the cursor. A nil cursor
	// starts from the oldest approval.
	ListDue(ctx context.Context, now time.Time, after *DueCursor, limit int) ([]*Claim, error)
	// UpdateEvidenceRef swaps the evidence ref only if it still equals oldRef.
	UpdateEvidenceRef(ctx context.Context, id uuid.UUID, oldRef, newRef string) error
}
