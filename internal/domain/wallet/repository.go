package wallet

import "context"

// Tx is the wallet persistence surface available inside one atomic unit.
type Tx interface {
	// LockWallet returns the user's wallet, creating an empty one when absent, and
	// holds it exclusively until the unit ends.
	LockWallet(ctx context.Context, userID string) (*Wallet, error)
	UpdateWallet(ctx context.Context, w *Wallet) error
	// TransactionByReference returns ErrTransactionNotFound when no row exists.
	TransactionByReference(ctx context.Context, referenceID string) (*Transaction, error)
	// InsertTransaction returns ErrDuplicateReference when the reference is taken.
	InsertTransaction(ctx context.Context, t *Transaction) error
}

// Repository persists wallets and the append-only transaction log.
type Repository interface {
	// RunAtomic applies fn as a single all-or-nothing unit. Any error from fn
	// rolls the unit back.
	RunAtomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// GetWallet returns the wallet, creating an empty one on first access.
	GetWallet(ctx context.Context, userID string) (*Wallet, error)
	TransactionByReference(ctx context.Context, referenceID string) (*Transaction, error)
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*Transaction, error)
}
