package postgres

import (
	"context"
	"fmt"

	"github.com/mwork/rewards-api/internal/domain/wallet"
)

type walletRepo struct {
	s *Store
}

func (r *walletRepo) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx wallet.Tx) error) error {
	return r.s.runAtomic(ctx, func(ctx context.Context, u *unit) error {
		return fn(ctx, u)
	})
}

func (r *walletRepo) GetWallet(ctx context.Context, userID string) (*wallet.Wallet, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := r.s.db.ExecContext(ctx, `
		INSERT INTO wallets (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return nil, fmt.Errorf("%w: ensure wallet: %v", wallet.ErrInternal, err)
	}

	var w wallet.Wallet
	if err := r.s.db.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("%w: get wallet: %v", wallet.ErrInternal, err)
	}
	if w.Breakdown == nil {
		w.Breakdown = wallet.Breakdown{}
	}
	return &w, nil
}

func (r *walletRepo) TransactionByReference(ctx context.Context, referenceID string) (*wallet.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return transactionByReference(ctx, r.s.db, referenceID)
}

func (r *walletRepo) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*wallet.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var out []*wallet.Transaction
	err := r.s.db.SelectContext(ctx, &out, `
		SELECT `+transactionColumns+`
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %v", wallet.ErrInternal, err)
	}
	return out, nil
}
