package wallet

import (
	"context"
	"errors"
	"fmt"
)

// applyFunc mutates the locked wallet in memory and returns the transaction that
// records the change. It must not touch storage.
type applyFunc func(w *Wallet) (*Transaction, error)

// Guard applies a balance mutation at most once per reference id.
type Guard struct {
	repo Repository
}

func NewGuard(repo Repository) *Guard {
	return &Guard{repo: repo}
}

// Execute runs apply in its own atomic unit. When a transaction with referenceID
// already exists for the same user it is returned unchanged and replayed is
// true; one owned by another user yields ErrReferenceConflict.
func (g *Guard) Execute(ctx context.Context, userID, referenceID string, apply applyFunc) (txn *Transaction, replayed bool, err error) {
	err = g.repo.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		var innerErr error
		txn, replayed, innerErr = g.ExecuteTx(ctx, tx, userID, referenceID, apply)
		return innerErr
	})
	if errors.Is(err, ErrDuplicateReference) {
		// Lost an insert race on the unique index; the unit was rolled back.
		existing, lookupErr := g.repo.TransactionByReference(ctx, referenceID)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		if err := ownedBy(existing, userID); err != nil {
			return nil, false, err
		}
		return existing, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return txn, replayed, nil
}

// ExecuteTx runs apply inside a unit owned by the caller. The wallet is locked
// before the reference lookup so concurrent duplicates for one user serialise.
func (g *Guard) ExecuteTx(ctx context.Context, tx Tx, userID, referenceID string, apply applyFunc) (*Transaction, bool, error) {
	w, err := tx.LockWallet(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	existing, err := tx.TransactionByReference(ctx, referenceID)
	if err == nil {
		if err := ownedBy(existing, userID); err != nil {
			return nil, false, err
		}
		return existing, true, nil
	}
	if !errors.Is(err, ErrTransactionNotFound) {
		return nil, false, err
	}

	txn, err := apply(w)
	if err != nil {
		return nil, false, err
	}

	if err := tx.UpdateWallet(ctx, w); err != nil {
		return nil, false, err
	}
	if err := tx.InsertTransaction(ctx, txn); err != nil {
		return nil, false, err
	}
	return txn, false, nil
}

// ownedBy keeps one user's retry from replaying another user's transaction.
func ownedBy(t *Transaction, userID string) error {
	if t.UserID != userID {
		return fmt.Errorf("%w: %s", ErrReferenceConflict, t.ReferenceID)
	}
	return nil
}
