package wallet

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/mwork/rewards-api/internal/pkg/clock"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Ledger owns wallet balances and the transaction log. It is the only writer of
// either.
type Ledger struct {
	repo  Repository
	guard *Guard
	clock clock.Clock
}

func NewLedger(repo Repository, clk clock.Clock) *Ledger {
	if clk == nil {
		clk = clock.System{}
	}
	return &Ledger{
		repo:  repo,
		guard: NewGuard(repo),
		clock: clk,
	}
}

// GetBalance returns the user's wallet, creating an empty one on first access.
func (l *Ledger) GetBalance(ctx context.Context, userID string) (*Wallet, error) {
	return l.repo.GetWallet(ctx, userID)
}

// ListTransactions returns the user's transactions, newest first.
func (l *Ledger) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return l.repo.ListTransactions(ctx, userID, limit, offset)
}

// Credit adds amount to the spendable balance. A non-positive amount is a no-op
// and returns a nil transaction.
func (l *Ledger) Credit(ctx context.Context, userID string, amount int64, source Source, referenceID string, meta Metadata) (*Transaction, error) {
	if amount <= 0 {
		return nil, nil
	}
	if err := validateExternal(userID, source, referenceID); err != nil {
		return nil, err
	}

	txn, replayed, err := l.guard.Execute(ctx, userID, referenceID, l.creditApply(userID, amount, source, referenceID, meta))
	if err != nil {
		return nil, err
	}
	l.logApplied(txn, replayed, "Wallet credit applied")
	return txn, nil
}

// Debit removes amount from the spendable balance.
func (l *Ledger) Debit(ctx context.Context, userID string, amount int64, source Source, referenceID string, meta Metadata) (*Transaction, error) {
	return l.DebitAuthorized(ctx, nil, userID, amount, source, referenceID, meta)
}

// DebitAuthorized is Debit with policy evaluated against the locked wallet in the
// same unit, so the check cannot go stale before the debit lands. A nil policy
// skips the check.
func (l *Ledger) DebitAuthorized(ctx context.Context, policy SpendPolicy, userID string, amount int64, source Source, referenceID string, meta Metadata) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := validateExternal(userID, source, referenceID); err != nil {
		return nil, err
	}

	apply := func(w *Wallet) (*Transaction, error) {
		if w.IsFrozen() {
			return nil, ErrWalletFrozen
		}
		if policy != nil {
			if err := policy.Authorize(w, amount); err != nil {
				return nil, err
			}
		}
		if w.UnlockedBalance < amount {
			return nil, ErrInsufficientFunds
		}
		now := l.clock.Now()
		w.UnlockedBalance -= amount
		w.TotalSpent += amount
		w.UpdatedAt = now
		return l.newTransaction(w, DirectionDebit, source, amount, referenceID, meta), nil
	}

	txn, replayed, err := l.guard.Execute(ctx, userID, referenceID, apply)
	if err != nil {
		return nil, err
	}
	l.logApplied(txn, replayed, "Wallet debit applied")
	return txn, nil
}

// CreditLocked adds amount to the locked bucket. Used by claim approval.
func (l *Ledger) CreditLocked(ctx context.Context, userID string, amount int64, source Source, referenceID string, meta Metadata) (*Transaction, error) {
	var out *Transaction
	err := l.repo.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		txn, err := l.CreditLockedTx(ctx, tx, userID, amount, source, referenceID, meta)
		out = txn
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreditLockedTx is CreditLocked inside a unit owned by the caller.
func (l *Ledger) CreditLockedTx(ctx context.Context, tx Tx, userID string, amount int64, source Source, referenceID string, meta Metadata) (*Transaction, error) {
	if amount < 0 {
		return nil, ErrInvalidAmount
	}
	if amount == 0 {
		return nil, nil
	}
	if err := validateExternal(userID, source, referenceID); err != nil {
		return nil, err
	}

	apply := func(w *Wallet) (*Transaction, error) {
		if w.IsFrozen() {
			return nil, ErrWalletFrozen
		}
		now := l.clock.Now()
		w.LockedBalance += amount
		w.TotalEarned += amount
		addBreakdown(w, source, amount)
		w.UpdatedAt = now
		return l.newTransaction(w, DirectionCredit, source, amount, referenceID, withBucket(meta, BucketLocked)), nil
	}

	txn, replayed, err := l.guard.ExecuteTx(ctx, tx, userID, referenceID, apply)
	if err != nil {
		return nil, err
	}
	l.logApplied(txn, replayed, "Wallet locked credit applied")
	return txn, nil
}

// ReleaseLocked moves amount from the locked bucket to the spendable balance.
// Used by the maturity sweep.
func (l *Ledger) ReleaseLocked(ctx context.Context, userID string, amount int64, referenceID string, meta Metadata) (*Transaction, error) {
	var out *Transaction
	err := l.repo.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		txn, err := l.ReleaseLockedTx(ctx, tx, userID, amount, referenceID, meta)
		out = txn
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReleaseLockedTx is ReleaseLocked inside a unit owned by the caller. Releasing
// more than the locked bucket holds is a bookkeeping bug and aborts the unit.
func (l *Ledger) ReleaseLockedTx(ctx context.Context, tx Tx, userID string, amount int64, referenceID string, meta Metadata) (*Transaction, error) {
	if amount < 0 {
		return nil, ErrInvalidAmount
	}
	if amount == 0 {
		return nil, nil
	}
	if err := validateEntry(userID, SourceAffiliateMatured, referenceID); err != nil {
		return nil, err
	}

	apply := func(w *Wallet) (*Transaction, error) {
		if w.LockedBalance < amount {
			log.Error().
				Str("user_id", userID).
				Str("reference_id", referenceID).
				Int64("locked_balance", w.LockedBalance).
				Int64("amount", amount).
				Msg("Refusing to release more than the locked balance")
			return nil, fmt.Errorf("%w: locked %d, release %d", ErrLockedBalanceInvariant, w.LockedBalance, amount)
		}
		now := l.clock.Now()
		w.LockedBalance -= amount
		w.UnlockedBalance += amount
		w.UpdatedAt = now
		return l.newTransaction(w, DirectionCredit, SourceAffiliateMatured, amount, referenceID, withBucket(meta, BucketReleased)), nil
	}

	txn, replayed, err := l.guard.ExecuteTx(ctx, tx, userID, referenceID, apply)
	if err != nil {
		return nil, err
	}
	l.logApplied(txn, replayed, "Wallet locked funds released")
	return txn, nil
}

// AdminAdjust applies a manual credit or debit. An empty referenceID gets a
// generated one, which makes the call non-idempotent.
func (l *Ledger) AdminAdjust(ctx context.Context, userID string, amount int64, direction Direction, reason, adminID, referenceID string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if referenceID == "" {
		referenceID = "admin_" + ulid.MustNew(ulid.Timestamp(l.clock.Now()), ulid.DefaultEntropy()).String()
	}
	meta := Metadata{
		MetaReason:      reason,
		MetaAdminID:     adminID,
		MetaAdminAction: "true",
	}

	switch direction {
	case DirectionCredit:
		return l.Credit(ctx, userID, amount, SourceManual, referenceID, meta)
	case DirectionDebit:
		return l.Debit(ctx, userID, amount, SourceManual, referenceID, meta)
	default:
		return nil, ErrInvalidDirection
	}
}

// SetStatus freezes or unfreezes a wallet.
func (l *Ledger) SetStatus(ctx context.Context, userID string, status Status) (*Wallet, error) {
	if status != StatusActive && status != StatusFrozen {
		return nil, ErrInvalidStatus
	}

	var out *Wallet
	err := l.repo.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		w, err := tx.LockWallet(ctx, userID)
		if err != nil {
			return err
		}
		if w.Status == status {
			out = w
			return nil
		}
		w.Status = status
		w.UpdatedAt = l.clock.Now()
		if err := tx.UpdateWallet(ctx, w); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", userID).Str("status", string(status)).Msg("Wallet status changed")
	return out, nil
}

func (l *Ledger) creditApply(userID string, amount int64, source Source, referenceID string, meta Metadata) applyFunc {
	return func(w *Wallet) (*Transaction, error) {
		if w.IsFrozen() {
			return nil, ErrWalletFrozen
		}
		now := l.clock.Now()
		w.UnlockedBalance += amount
		w.TotalEarned += amount
		addBreakdown(w, source, amount)
		w.UpdatedAt = now
		return l.newTransaction(w, DirectionCredit, source, amount, referenceID, meta), nil
	}
}

func (l *Ledger) newTransaction(w *Wallet, direction Direction, source Source, amount int64, referenceID string, meta Metadata) *Transaction {
	now := l.clock.Now()
	if meta == nil {
		meta = Metadata{}
	}
	return &Transaction{
		ID:           ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		UserID:       w.UserID,
		Direction:    direction,
		Source:       source,
		Amount:       amount,
		BalanceAfter: w.UnlockedBalance,
		ReferenceID:  referenceID,
		Metadata:     meta,
		Status:       TransactionStatusCompleted,
		CreatedAt:    now,
	}
}

func (l *Ledger) logApplied(txn *Transaction, replayed bool, msg string) {
	if txn == nil {
		return
	}
	if replayed {
		log.Debug().Str("reference_id", txn.ReferenceID).Str("transaction_id", txn.ID).Msg("Wallet operation replayed")
		return
	}
	log.Info().
		Str("user_id", txn.UserID).
		Str("source", string(txn.Source)).
		Int64("amount", txn.Amount).
		Int64("balance_after", txn.BalanceAfter).
		Str("reference_id", txn.ReferenceID).
		Msg(msg)
}

func validateEntry(userID string, source Source, referenceID string) error {
	if userID == "" {
		return ErrInvalidUser
	}
	if referenceID == "" {
		return ErrInvalidReference
	}
	if !source.Valid() {
		return ErrInvalidSource
	}
	return nil
}

// validateExternal is validateEntry for callers other than ReleaseLocked, which
// alone may write the transfer source.
func validateExternal(userID string, source Source, referenceID string) error {
	if err := validateEntry(userID, source, referenceID); err != nil {
		return err
	}
	if source == SourceAffiliateMatured {
		return ErrInvalidSource
	}
	return nil
}

func addBreakdown(w *Wallet, source Source, amount int64) {
	if w.Breakdown == nil {
		w.Breakdown = Breakdown{}
	}
	w.Breakdown[source] += amount
}

// withBucket copies meta and tags the balance bucket it affected.
func withBucket(meta Metadata, bucket string) Metadata {
	out := make(Metadata, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out[MetaBucket] = bucket
	return out
}
