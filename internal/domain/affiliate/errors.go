package affiliate

import "errors"

var (
	ErrNotFound          = errors.New("affiliate identity not found")
	ErrAlreadyRegistered = errors.New("user already has an affiliate identity")
	ErrCodeTaken         = errors.New("referral code already taken")
	ErrAlreadyDecided    = errors.New("application already approved or rejected")
)
