package certstore

import "errors"

var (
	// ErrRecordNotFound is returned when no certificate material exists for a domain.
	ErrRecordNotFound = errors.New("certificate record not found")

	// ErrRecordCorrupt is returned when certificate material exists but fails to parse.
	ErrRecordCorrupt = errors.New("certificate record is corrupt")

	// ErrStoreFailed is returned when a filesystem write fails. The previous
	// record, if any, is retained untouched.
	ErrStoreFailed = errors.New("certificate store write failed")

	// ErrEmptyMaterial is returned when issued material is missing the
	// certificate or the private key.
	ErrEmptyMaterial = errors.New("certificate material is empty")
)
