package domain

import "errors"

var (
	// ErrInvalidInput marks missing or malformed request fields, rejected
	// before any side effect.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTarget marks a target URL outside the allow-list.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrNoSessionsAvailable is the hard failure when the registry holds
	// no active sessions at run time.
	ErrNoSessionsAvailable = errors.New("no active sessions available")

	// ErrInvalidBulkSize marks a bulk array outside the 1..10 range.
	ErrInvalidBulkSize = errors.New("bulk size must be between 1 and 10")

	// ErrSessionInvalid is the explicit signal from the driver that a
	// session is no longer authenticated. Only this signal evicts.
	ErrSessionInvalid = errors.New("session is no longer authenticated")

	// ErrSessionNotFound marks a lookup for an identity the registry does
	// not hold.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStoreUnavailable marks a durable-backend failure. It never
	// propagates out of the registry as a call failure.
	ErrStoreUnavailable = errors.New("session store unavailable")
)
