// Package certstore owns the on-disk certificate material for managed
// domains and exposes state queries over it.
//
// Layout per domain, under the store root:
//
//	<root>/<domain>/fullchain.pem  leaf certificate + intermediates
//	<root>/<domain>/privkey.pem    private key (0600)
//	<root>/<domain>/chain.pem      intermediates only
//	<root>/<domain>/renewals.log   renewal outcome journal (JSON lines)
//
// All writes are atomic-replace operations: material is written to a
// temporary path and renamed over the target, so a concurrent reader (the
// proxy process loading certificates on reload) never observes a partially
// written file. Records are never mutated in place; a new issuance produces
// a fresh Record that replaces the prior files.
//
// The store derives the issuer class (production CA, staging CA, or
// self-signed) from certificate contents rather than persisting it, keeping
// the reconciliation loop stateless across restarts.
package certstore
