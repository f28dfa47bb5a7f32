package claim

import "errors"

var (
	ErrInvalidClaim    = errors.New("invalid claim")
	ErrUnknownCategory = errors.New("unknown claim category")
	ErrInvalidRules    = errors.New("invalid claim rule table")

	ErrDuplicateOrder = errors.New("order id already submitted")
	ErrInvalidState   = errors.New("claim is not in a state that allows this action")

	ErrClaimNotFound = errors.New("claim not found")

	ErrInternal = errors.New("internal error")
)
