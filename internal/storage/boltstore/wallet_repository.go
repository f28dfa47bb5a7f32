package boltstore

import (
	"bytes"
	"context"

	"github.com/mwork/rewards-api/internal/domain/wallet"
)

type walletRepo struct {
	s *Store
}

func (r *walletRepo) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx wallet.Tx) error) error {
	return r.s.update(ctx, func(u *unit) error {
		return fn(ctx, u)
	})
}

func (r *walletRepo) GetWallet(ctx context.Context, userID string) (*wallet.Wallet, error) {
	var out *wallet.Wallet
	err := r.s.view(ctx, func(u *unit) error {
		w, err := u.getWallet(userID)
		out = w
		return err
	})
	if err != nil || out != nil {
		return out, err
	}

	err = r.s.update(ctx, func(u *unit) error {
		w, err := u.LockWallet(ctx, userID)
		out = w
		return err
	})
	return out, err
}

func (r *walletRepo) TransactionByReference(ctx context.Context, referenceID string) (*wallet.Transaction, error) {
	var out *wallet.Transaction
	err := r.s.view(ctx, func(u *unit) error {
		t, err := u.TransactionByReference(ctx, referenceID)
		out = t
		return err
	})
	return out, err
}

// ListTransactions walks the user's index backwards from the newest entry.
func (r *walletRepo) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*wallet.Transaction, error) {
	out := []*wallet.Transaction{}
	err := r.s.view(ctx, func(u *unit) error {
		prefix := []byte(userID + "\x00")
		// One past the highest key with this prefix.
		upper := []byte(userID + "\x01")

		c := u.tx.Bucket(bucketUserTransactions).Cursor()
		k, v := c.Seek(upper)
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}

		skipped := 0
		for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Prev() {
			if skipped < offset {
				skipped++
				continue
			}
			t, err := u.TransactionByReference(ctx, string(v))
			if err != nil {
				return err
			}
			out = append(out, t)
			if len(out) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
