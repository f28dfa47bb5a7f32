package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mwork/rewards-api/internal/domain/claim"
	"github.com/mwork/rewards-api/internal/domain/wallet"
)

const (
	walletColumns = `user_id, unlocked_balance, locked_balance, total_earned, total_spent,
		breakdown, status, created_at, updated_at`
	transactionColumns = `id, user_id, direction, source, amount, balance_after,
		reference_id, metadata, status, created_at`
	claimColumns = `id, user_id, order_id, order_amount, category, reward_coins, maturity_days,
		evidence_ref, status, approved_at, matured_at, reviewer_id, review_note,
		created_at, updated_at`
)

// unit is one open transaction. It satisfies both wallet.Tx and claim.Tx so a
// claim transition and its balance change commit together.
type unit struct {
	tx *sqlx.Tx
}

var (
	_ wallet.Tx = (*unit)(nil)
	_ claim.Tx  = (*unit)(nil)
)

func (u *unit) LockWallet(ctx context.Context, userID string) (*wallet.Wallet, error) {
	if _, err := u.tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return nil, fmt.Errorf("%w: ensure wallet: %v", wallet.ErrInternal, err)
	}

	var w wallet.Wallet
	err := u.tx.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: lock wallet: %v", wallet.ErrInternal, err)
	}
	if w.Breakdown == nil {
		w.Breakdown = wallet.Breakdown{}
	}
	return &w, nil
}

func (u *unit) UpdateWallet(ctx context.Context, w *wallet.Wallet) error {
	_, err := u.tx.NamedExecContext(ctx, `
		UPDATE wallets
		SET unlocked_balance = :unlocked_balance,
		    locked_balance = :locked_balance,
		    total_earned = :total_earned,
		    total_spent = :total_spent,
		    breakdown = :breakdown,
		    status = :status,
		    updated_at = :updated_at
		WHERE user_id = :user_id
	`, w)
	if err != nil {
		return fmt.Errorf("%w: update wallet: %v", wallet.ErrInternal, err)
	}
	return nil
}

func (u *unit) TransactionByReference(ctx context.Context, referenceID string) (*wallet.Transaction, error) {
	return transactionByReference(ctx, u.tx, referenceID)
}

func (u *unit) InsertTransaction(ctx context.Context, t *wallet.Transaction) error {
	_, err := u.tx.NamedExecContext(ctx, `
		INSERT INTO wallet_transactions (`+transactionColumns+`)
		VALUES (:id, :user_id, :direction, :source, :amount, :balance_after,
		        :reference_id, :metadata, :status, :created_at)
	`, t)
	if err != nil {
		if isUniqueViolation(err, "wallet_transactions_reference_id_key") {
			return wallet.ErrDuplicateReference
		}
		return fmt.Errorf("%w: insert transaction: %v", wallet.ErrInternal, err)
	}
	return nil
}

func (u *unit) LockClaim(ctx context.Context, id uuid.UUID) (*claim.Claim, error) {
	var c claim.Claim
	err := u.tx.GetContext(ctx, &c, `SELECT `+claimColumns+` FROM claims WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, claim.ErrClaimNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock claim: %v", claim.ErrInternal, err)
	}
	return &c, nil
}

func (u *unit) UpdateClaim(ctx context.Context, c *claim.Claim) error {
	_, err := u.tx.NamedExecContext(ctx, `
		UPDATE claims
		SET status = :status,
		    approved_at = :approved_at,
		    matured_at = :matured_at,
		    reviewer_id = :reviewer_id,
		    review_note = :review_note,
		    updated_at = :updated_at
		WHERE id = :id
	`, c)
	if err != nil {
		return fmt.Errorf("%w: update claim: %v", claim.ErrInternal, err)
	}
	return nil
}

func transactionByReference(ctx context.Context, q sqlx.QueryerContext, referenceID string) (*wallet.Transaction, error) {
	var t wallet.Transaction
	err := sqlx.GetContext(ctx, q, &t, `SELECT `+transactionColumns+` FROM wallet_transactions WHERE reference_id = $1`, referenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wallet.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get transaction: %v", wallet.ErrInternal, err)
	}
	return &t, nil
}
