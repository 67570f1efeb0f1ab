package domain

import "errors"

var (
	ErrValidation        = errors.New("validation failed")
	ErrCoinNotFound      = errors.New("coin not found")
	ErrClientNotFound    = errors.New("client not found")
	ErrAlreadyOwned      = errors.New("coin already owned")
	ErrTripleTaken       = errors.New("bit triple already in use")
	ErrCapacityExhausted = errors.New("no unique bit combination available")
	ErrTimeout           = errors.New("operation timed out")
)
