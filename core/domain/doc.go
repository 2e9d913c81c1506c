// Package domain resolves and validates the per-domain certificate
// configuration from environment variables.
//
// The resolved Config is immutable and safe to share; resolution has no side
// effects and can be repeated freely. Validation reports every violated
// constraint at once rather than stopping at the first:
//
//	cfg, err := domain.Resolve()
//	if err != nil {
//		// err lists all invalid fields, wrapped around ErrInvalidConfig
//		log.Fatal(err)
//	}
//
// A loopback or placeholder domain (localhost, 127.0.0.1, example.com) is not
// a validation error: it marks the configuration as non-public, which routes
// issuance to the self-signed path instead of ACME.
package domain
