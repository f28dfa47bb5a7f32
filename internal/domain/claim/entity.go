package claim

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusMatured  Status = "matured"
)

// Claim is one externally verified reward-earning event, such as a purchase
// receipt. RewardCoins and MaturityDays are fixed at submission.
type Claim struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	UserID       string          `db:"user_id" json:"user_id"`
	OrderID      string          `db:"order_id" json:"order_id"`
	OrderAmount  decimal.Decimal `db:"order_amount" json:"order_amount"`
	Category     string          `db:"category" json:"category"`
	RewardCoins  int64           `db:"reward_coins" json:"reward_coins"`
	MaturityDays int             `db:"maturity_days" json:"maturity_days"`
	EvidenceRef  string          `db:"evidence_ref" json:"evidence_ref"`
	Status       Status          `db:"status" json:"status"`
	ApprovedAt   *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	MaturedAt    *time.Time      `db:"matured_at" json:"matured_at,omitempty"`
	ReviewerID   *string         `db:"reviewer_id" json:"reviewer_id,omitempty"`
	ReviewNote   *string         `db:"review_note" json:"review_note,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// MaturesAt reports when an approved claim becomes releasable.
func (c *Claim) MaturesAt() (time.Time, bool) {
	if c.ApprovedAt == nil {
		return time.Time{}, false
	}
	return c.ApprovedAt.AddDate(0, 0, c.MaturityDays), true
}

// IsDue reports whether the claim is approved and its maturity window has elapsed at now.
func (c *Claim) IsDue(now time.Time) bool {
	if c.Status != StatusApproved {
		return false
	}
	at, ok := c.MaturesAt()
	return ok && !at.After(now)
}

// ApprovedReference is the ledger idempotency key for a claim's locked credit.
func ApprovedReference(id uuid.UUID) string {
	return "claim_approved_" + id.String()
}

// MaturedReference is the ledger idempotency key for a claim's release.
func MaturedReference(id uuid.UUID) string {
	return "claim_matured_" + id.String()
}
