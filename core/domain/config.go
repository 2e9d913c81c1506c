package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrymomot/certwatch/core/config"
)

// Config holds the resolved certificate configuration for a single domain.
// It is immutable once resolved; invalid values fail resolution before any
// I/O occurs.
type Config struct {
	// Domain is the hostname certificates are issued for.
	Domain string `env:"CERT_DOMAIN,required" validate:"required,hostname_rfc1123|ip"`

	// Email is the ACME account contact address.
	Email string `env:"CERT_EMAIL,required" validate:"required,email"`

	// Staging selects the certificate authority's staging endpoint.
	Staging bool `env:"CERT_STAGING" envDefault:"false"`

	// ForceRenewal short-circuits the skip branch of the renewal policy.
	ForceRenewal bool `env:"CERT_FORCE_RENEWAL" envDefault:"false"`

	// KeySize is the RSA key size in bits for issued certificates.
	KeySize int `env:"CERT_KEY_SIZE" envDefault:"2048" validate:"oneof=2048 3072 4096"`

	// RenewalThresholdDays is how many days before expiry a certificate is
	// considered due for renewal. Must stay below the 90-day ACME validity
	// window or every cycle would renew.
	RenewalThresholdDays int `env:"CERT_RENEWAL_THRESHOLD_DAYS" envDefault:"30" validate:"gte=1,lt=90"`
}

// placeholderHosts are loopback or documentation hostnames that can never
// pass public CA validation; they route issuance to the self-signed path.
var placeholderHosts = map[string]struct{}{
	"localhost":   {},
	"127.0.0.1":   {},
	"::1":         {},
	"example.com": {},
	"example.org": {},
	"example.net": {},
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Resolve loads the configuration from the environment and validates it.
// Validation failures list every violated constraint, not just the first.
func Resolve() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks every constraint and reports all violations at once.
// It has no side effects and is safe to call repeatedly.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	violations := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		violations = append(violations, fmt.Sprintf("%s: failed %q constraint", fe.Field(), fe.Tag()))
	}

	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(violations, "; "))
}

// Public reports whether the domain can be validated by a public CA.
// Placeholder and loopback hostnames are non-public and receive self-signed
// certificates instead.
func (c Config) Public() bool {
	host := strings.ToLower(strings.TrimSpace(c.Domain))
	if _, ok := placeholderHosts[host]; ok {
		return false
	}
	if strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return false
	}
	return true
}

// Threshold returns the renewal threshold as a duration.
func (c Config) Threshold() time.Duration {
	return time.Duration(c.RenewalThresholdDays) * 24 * time.Hour
}
