// Package selfsigned generates locally-trusted-only certificates used as a
// safe fallback when publicly trusted issuance is impossible or fails.
//
// Certificates are RSA-keyed, valid for one year, and carry the domain as
// both common name and SAN. Generation can only fail for local reasons
// (entropy exhaustion, marshalling), never for external ones.
package selfsigned
