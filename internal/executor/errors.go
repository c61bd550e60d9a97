package executor

import "errors"

var (
	// ErrGateway wraps any failure talking to the venue.
	ErrGateway = errors.New("gateway error")
	// ErrInsufficientBalance means equity is below the account's balance threshold.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrSizing means no valid order size could be computed.
	ErrSizing = errors.New("sizing error")
	// ErrInvalidSignal means the signal's symbol, side or order kinds are malformed.
	ErrInvalidSignal = errors.New("invalid signal")
)
