package certstore

import (
	"bytes"
	"crypto/x509"
	"strings"
	"time"
)

// IssuerClass classifies who signed the stored certificate.
type IssuerClass string

const (
	IssuerProductionCA IssuerClass = "production-ca"
	IssuerStagingCA    IssuerClass = "staging-ca"
	IssuerSelfSigned   IssuerClass = "self-signed"
)

// Record describes the certificate material stored for a domain.
// Records are constructed fresh on every load or issuance and never mutated.
type Record struct {
	Domain         string      `json:"domain"`
	FullchainPath  string      `json:"fullchain_path"`
	PrivateKeyPath string      `json:"private_key_path"`
	ChainPath      string      `json:"chain_path"`
	Issuer         IssuerClass `json:"issuer"`
	NotBefore      time.Time   `json:"not_before"`
	NotAfter       time.Time   `json:"not_after"`

	leaf *x509.Certificate
}

// Leaf returns the parsed leaf certificate.
func (r *Record) Leaf() *x509.Certificate {
	return r.leaf
}

// Matches reports whether the certificate subject covers the given domain,
// either via the common name or a SAN entry.
func (r *Record) Matches(domain string) bool {
	if r.leaf == nil {
		return false
	}

	domain = strings.ToLower(strings.TrimSpace(domain))
	if strings.EqualFold(r.leaf.Subject.CommonName, domain) {
		return true
	}
	for _, name := range r.leaf.DNSNames {
		if strings.EqualFold(name, domain) {
			return true
		}
	}
	for _, ip := range r.leaf.IPAddresses {
		if ip.String() == domain {
			return true
		}
	}
	return false
}

// stagingMarkers appear in the issuer names of non-production ACME CAs
// (Let's Encrypt staging uses "(STAGING)" prefixes; Pebble is the common
// local test CA).
var stagingMarkers = []string{"staging", "pebble", "fake"}

// classifyIssuer derives the issuer class from certificate contents so that
// no extra state needs to be persisted alongside the certificate.
func classifyIssuer(leaf *x509.Certificate) IssuerClass {
	if bytes.Equal(leaf.RawIssuer, leaf.RawSubject) {
		return IssuerSelfSigned
	}

	issuer := strings.ToLower(leaf.Issuer.String())
	for _, marker := range stagingMarkers {
		if strings.Contains(issuer, marker) {
			return IssuerStagingCA
		}
	}

	return IssuerProductionCA
}
