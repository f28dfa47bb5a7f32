package wallet

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

// Source is the category of the event that moved funds.
type Source string

const (
	SourceSpin             Source = "spin"
	SourceReferral         Source = "referral"
	SourceCashback         Source = "cashback"
	SourceAffiliate        Source = "affiliate"
	SourceAffiliateMatured Source = "affiliate_matured"
	SourceSubscription     Source = "subscription"
	SourceSpend            Source = "spend"
	SourceManual           Source = "manual"
)

func (s Source) Valid() bool {
	switch s {
	case SourceSpin, SourceReferral, SourceCashback, SourceAffiliate, SourceAffiliateMatured,
		SourceSubscription, SourceSpend, SourceManual:
		return true
	}
	return false
}

type Status string

const (
	StatusActive Status = "active"
	StatusFrozen Status = "frozen"
)

const TransactionStatusCompleted = "completed"

// Metadata keys written by the ledger itself.
const (
	MetaBucket       = "bucket"
	BucketLocked     = "locked"
	BucketReleased   = "released"
	MetaReason       = "reason"
	MetaAdminID      = "admin_id"
	MetaAdminAction  = "admin_action"
	MetaDescription  = "description"
	MetaClaimID      = "claim_id"
	MetaOrderID      = "order_id"
	MetaMaturityDays = "maturity_days"
)

// Breakdown holds cumulative earned amounts per source.
type Breakdown map[Source]int64

func (b Breakdown) Value() (driver.Value, error) {
	if b == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(b)
}

func (b *Breakdown) Scan(src interface{}) error {
	return scanJSON(src, b)
}

// Metadata is free-form context attached to a transaction.
type Metadata map[string]string

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src interface{}) error {
	return scanJSON(src, m)
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New("unsupported json column type")
	}
}

type Wallet struct {
	UserID          string    `db:"user_id" json:"user_id"`
	UnlockedBalance int64     `db:"unlocked_balance" json:"unlocked_balance"`
	LockedBalance   int64     `db:"locked_balance" json:"locked_balance"`
	TotalEarned     int64     `db:"total_earned" json:"total_earned"`
	TotalSpent      int64     `db:"total_spent" json:"total_spent"`
	Breakdown       Breakdown `db:"breakdown" json:"breakdown"`
	Status          Status    `db:"status" json:"status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// NewWallet returns an empty active wallet for userID.
func NewWallet(userID string, now time.Time) *Wallet {
	return &Wallet{
		UserID:    userID,
		Breakdown: Breakdown{},
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (w *Wallet) IsFrozen() bool {
	return w.Status == StatusFrozen
}

type Transaction struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	Direction    Direction `db:"direction" json:"direction"`
	Source       Source    `db:"source" json:"source"`
	Amount       int64     `db:"amount" json:"amount"`
	BalanceAfter int64     `db:"balance_after" json:"balance_after"`
	ReferenceID  string    `db:"reference_id" json:"reference_id"`
	Metadata     Metadata  `db:"metadata" json:"metadata"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
