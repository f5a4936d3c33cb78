package transaction

import "errors"

var (
	ErrNotFound          = errors.New("transaction not found")
	ErrInvalidAmount     = errors.New("amount must be non-negative")
	ErrInvalidTransition = errors.New("invalid status transition")
)
