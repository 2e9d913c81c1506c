package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/certwatch/core/domain"
)

func validConfig() domain.Config {
	return domain.Config{
		Domain:               "example.dev",
		Email:                "admin@example.dev",
		KeySize:              2048,
		RenewalThresholdDays: 30,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Config)
		wantErr bool
	}{
		{
			name:   "valid config",
			mutate: func(c *domain.Config) {},
		},
		{
			name:    "missing domain",
			mutate:  func(c *domain.Config) { c.Domain = "" },
			wantErr: true,
		},
		{
			name:    "malformed email",
			mutate:  func(c *domain.Config) { c.Email = "not-an-address" },
			wantErr: true,
		},
		{
			name:    "unsupported key size",
			mutate:  func(c *domain.Config) { c.KeySize = 1024 },
			wantErr: true,
		},
		{
			name:    "zero renewal threshold",
			mutate:  func(c *domain.Config) { c.RenewalThresholdDays = 0 },
			wantErr: true,
		},
		{
			name:    "threshold exceeds validity window",
			mutate:  func(c *domain.Config) { c.RenewalThresholdDays = 90 },
			wantErr: true,
		},
		{
			name:   "key size 4096 allowed",
			mutate: func(c *domain.Config) { c.KeySize = 4096 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigValidateReportsAllViolations(t *testing.T) {
	cfg := validConfig()
	cfg.Email = "broken"
	cfg.KeySize = 1024
	cfg.RenewalThresholdDays = 0

	err := cfg.Validate()
	require.Error(t, err)

	// Every violated field must appear, not just the first one found.
	assert.Contains(t, err.Error(), "Email")
	assert.Contains(t, err.Error(), "KeySize")
	assert.Contains(t, err.Error(), "RenewalThresholdDays")
}

func TestConfigPublic(t *testing.T) {
	tests := []struct {
		domain string
		public bool
	}{
		{"example.dev", true},
		{"sub.example.dev", true},
		{"localhost", false},
		{"app.localhost", false},
		{"127.0.0.1", false},
		{"::1", false},
		{"example.com", false},
		{"myhost.local", false},
		{"LOCALHOST", false},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			cfg := validConfig()
			cfg.Domain = tt.domain
			assert.Equal(t, tt.public, cfg.Public())
		})
	}
}

func TestConfigThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.RenewalThresholdDays = 30
	assert.Equal(t, 30*24*time.Hour, cfg.Threshold())
}

func TestResolve(t *testing.T) {
	t.Setenv("CERT_DOMAIN", "resolve.example.dev")
	t.Setenv("CERT_EMAIL", "ops@example.dev")
	t.Setenv("CERT_STAGING", "true")

	cfg, err := domain.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "resolve.example.dev", cfg.Domain)
	assert.Equal(t, "ops@example.dev", cfg.Email)
	assert.True(t, cfg.Staging)
	assert.Equal(t, 2048, cfg.KeySize)
	assert.Equal(t, 30, cfg.RenewalThresholdDays)
	assert.False(t, cfg.ForceRenewal)
}
