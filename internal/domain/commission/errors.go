package commission

import "errors"

var (
	ErrTransactionNotSuccess = errors.New("transaction is not in SUCCESS status")
	ErrInvalidAmount         = errors.New("commission amount must be non-negative")
	ErrEntryNotFound         = errors.New("commission entry not found")
	ErrAlreadyRecorded       = errors.New("commission already recorded for transaction")
)
