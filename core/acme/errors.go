package acme

import "errors"

var (
	// ErrChallengeFailed is returned when HTTP-01 domain validation did not
	// complete (DNS mismatch, unreachable challenge responder, timeout).
	// Recoverable: retried on the next scheduled cycle.
	ErrChallengeFailed = errors.New("acme challenge failed")

	// ErrIssuanceFailed is returned when the CA refused issuance, most
	// commonly due to rate limiting. Recoverable: retried on the next
	// scheduled cycle, optionally after downgrading to staging.
	ErrIssuanceFailed = errors.New("acme issuance failed")

	// ErrEmailRequired is returned when no account email is configured.
	ErrEmailRequired = errors.New("email is required for the ACME account")

	// ErrUnsupportedKeySize is returned for key sizes outside 2048/3072/4096.
	ErrUnsupportedKeySize = errors.New("unsupported certificate key size")
)
