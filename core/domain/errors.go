package domain

import "errors"

var (
	// ErrInvalidConfig is returned when one or more configuration constraints
	// are violated. The wrapping error enumerates every violation.
	ErrInvalidConfig = errors.New("invalid domain configuration")
)
