package wallet

import "errors"

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientFunds   = errors.New("insufficient wallet balance")
	ErrInsufficientPending = errors.New("insufficient pending balance")
	ErrDuplicateReference  = errors.New("duplicate reference")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrNegativeBalance     = errors.New("operation would produce negative balance")
)
