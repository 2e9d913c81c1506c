package proxyconf

import "errors"

var (
	// ErrConfigInvalid is returned when the rendered configuration fails
	// the proxy's syntax check. The active configuration is untouched.
	ErrConfigInvalid = errors.New("rendered proxy configuration is invalid")

	// ErrReloadFailed is returned when the proxy did not acknowledge a
	// reload. Validated files are retained; operator attention is required.
	ErrReloadFailed = errors.New("proxy reload failed")

	// ErrActivePathRequired is returned when no active configuration path
	// is configured.
	ErrActivePathRequired = errors.New("active configuration path is required")
)
