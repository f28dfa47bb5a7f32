package boltstore

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "github.com/boltdb/bolt"
	"github.com/google/uuid"

	"github.com/mwork/rewards-api/internal/domain/claim"
	"github.com/mwork/rewards-api/internal/domain/wallet"
	"github.com/mwork/rewards-api/internal/pkg/clock"
)

// unit wraps one bolt transaction. Inside db.Update it is the only writer, so
// LockWallet and LockClaim need no further locking.
type unit struct {
	tx    *bolt.Tx
	clock clock.Clock
}

var (
	_ wallet.Tx = (*unit)(nil)
	_ claim.Tx  = (*unit)(nil)
)

func (u *unit) LockWallet(_ context.Context, userID string) (*wallet.Wallet, error) {
	w, err := u.getWallet(userID)
	if err != nil {
		return nil, err
	}
	if w != nil {
		return w, nil
	}

	w = wallet.NewWallet(userID, u.clock.Now())
	if u.tx.Writable() {
		if err := put(u.tx.Bucket(bucketWallets), []byte(userID), w); err != nil {
			return nil, fmt.Errorf("%w: create wallet: %v", wallet.ErrInternal, err)
		}
	}
	return w, nil
}

func (u *unit) getWallet(userID string) (*wallet.Wallet, error) {
	v := u.tx.Bucket(bucketWallets).Get([]byte(userID))
	if v == nil {
		return nil, nil
	}
	var w wallet.Wallet
	if err := json.Unmarshal(v, &w); err != nil {
		return nil, fmt.Errorf("%w: decode wallet: %v", wallet.ErrInternal, err)
	}
	if w.Breakdown == nil {
		w.Breakdown = wallet.Breakdown{}
	}
	return &w, nil
}

func (u *unit) UpdateWallet(_ context.Context, w *wallet.Wallet) error {
	if err := put(u.tx.Bucket(bucketWallets), []byte(w.UserID), w); err != nil {
		return fmt.Errorf("%w: update wallet: %v", wallet.ErrInternal, err)
	}
	return nil
}

func (u *unit) TransactionByReference(_ context.Context, referenceID string) (*wallet.Transaction, error) {
	v := u.tx.Bucket(bucketTransactions).Get([]byte(referenceID))
	if v == nil {
		return nil, wallet.ErrTransactionNotFound
	}
	var t wallet.Transaction
	if err := json.Unmarshal(v, &t); err != nil {
		return nil, fmt.Errorf("%w: decode transaction: %v", wallet.ErrInternal, err)
	}
	return &t, nil
}

func (u *unit) InsertTransaction(_ context.Context, t *wallet.Transaction) error {
	b := u.tx.Bucket(bucketTransactions)
	if b.Get([]byte(t.ReferenceID)) != nil {
		return wallet.ErrDuplicateReference
	}
	if err := put(b, []byte(t.ReferenceID), t); err != nil {
		return fmt.Errorf("%w: insert transaction: %v", wallet.ErrInternal, err)
	}
	// ULIDs sort by time, so the index iterates in creation order.
	if err := u.tx.Bucket(bucketUserTransactions).Put(userTxKey(t.UserID, t.ID), []byte(t.ReferenceID)); err != nil {
		return fmt.Errorf("%w: index transaction: %v", wallet.ErrInternal, err)
	}
	return nil
}

func (u *unit) LockClaim(_ context.Context, id uuid.UUID) (*claim.Claim, error) {
	v := u.tx.Bucket(bucketClaims).Get([]byte(id.String()))
	if v == nil {
		return nil, claim.ErrClaimNotFound
	}
	return decodeClaim(v)
}

func (u *unit) UpdateClaim(_ context.Context, c *claim.Claim) error {
	b := u.tx.Bucket(bucketClaims)
	if b.Get([]byte(c.ID.String())) == nil {
		return claim.ErrClaimNotFound
	}
	if err := put(b, []byte(c.ID.String()), c); err != nil {
		return fmt.Errorf("%w: update claim: %v", claim.ErrInternal, err)
	}
	return nil
}

func decodeClaim(v []byte) (*claim.Claim, error) {
	var c claim.Claim
	if err := json.Unmarshal(v, &c); err != nil {
		return nil, fmt.Errorf("%w: decode claim: %v", claim.ErrInternal, err)
	}
	return &c, nil
}

func userTxKey(userID, txID string) []byte {
	return []byte(userID + "\x00" + txID)
}
