package wallet

import "errors"

var (
	// ErrInvalidAmount is returned when a debit or adjustment amount is <= 0
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrInvalidReference is returned when a mutating call carries no reference id
	ErrInvalidReference = errors.New("reference_id is required")

	ErrInvalidUser      = errors.New("user_id is required")
	ErrInvalidSource    = errors.New("invalid transaction source")
	ErrInvalidStatus    = errors.New("invalid wallet status")
	ErrInvalidDirection = errors.New("invalid transaction direction")

	ErrInsufficientFunds  = errors.New("insufficient wallet balance")
	ErrSpendLimitExceeded = errors.New("spend limit exceeded")
	ErrWalletFrozen       = errors.New("wallet is frozen")

	// ErrDuplicateReference is raised by a store when the unique reference index rejects an insert.
	ErrDuplicateReference = errors.New("duplicate reference")

	// ErrReferenceConflict means the reference id already belongs to another user's transaction.
	ErrReferenceConflict = errors.New("reference id already used by another wallet")

	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrLockedBalanceInvariant means a release asked for more than the locked bucket holds.
	ErrLockedBalanceInvariant = errors.New("locked balance invariant violated")

	ErrInternal = errors.New("internal error")
)
