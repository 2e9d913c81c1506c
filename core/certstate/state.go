package certstate

import (
	"errors"
	"time"

	"github.com/dmitrymomot/certwatch/core/certstore"
)

// State is the lifecycle classification of a domain's certificate.
type State string

const (
	// StateAbsent means no certificate material exists for the domain.
	StateAbsent State = "absent"

	// StateSelfSigned means the stored certificate is self-signed and not
	// yet due for renewal. It is replaced opportunistically, not urgently.
	StateSelfSigned State = "self-signed"

	// StateValid means the certificate parses, matches the domain, and
	// expires later than now plus the renewal threshold.
	StateValid State = "valid"

	// StateExpiringSoon means the certificate is usable but inside the
	// renewal threshold window.
	StateExpiringSoon State = "expiring-soon"

	// StateInvalid means material exists but fails to parse or its subject
	// does not match the configured domain.
	StateInvalid State = "invalid"
)

// Evaluate classifies a certificate record into exactly one State.
//
// loadErr is the error returned by the store when loading the record:
// ErrRecordNotFound maps to Absent, any other load failure to Invalid.
// Expiry takes precedence over the self-signed issuer class, so an expiring
// self-signed certificate is renewed urgently rather than opportunistically.
func Evaluate(rec *certstore.Record, loadErr error, domain string, threshold time.Duration, now time.Time) State {
	switch {
	case errors.Is(loadErr, certstore.ErrRecordNotFound):
		return StateAbsent
	case loadErr != nil, rec == nil:
		return StateInvalid
	}

	if !rec.Matches(domain) {
		return StateInvalid
	}
	if rec.NotBefore.After(now) {
		return StateInvalid
	}

	// Boundary rule: expiry at exactly now+threshold is already ExpiringSoon.
	if !now.Add(threshold).Before(rec.NotAfter) {
		return StateExpiringSoon
	}

	if rec.Issuer == certstore.IssuerSelfSigned {
		return StateSelfSigned
	}

	return StateValid
}
