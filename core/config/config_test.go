package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/certwatch/core/config"
)

func TestLoad(t *testing.T) {
	type testConfig struct {
		Name     string        `env:"TEST_CFG_NAME" envDefault:"fallback"`
		Interval time.Duration `env:"TEST_CFG_INTERVAL" envDefault:"12h"`
	}

	t.Setenv("TEST_CFG_NAME", "certwatch")

	var cfg testConfig
	err := config.Load(&cfg)
	require.NoError(t, err)
	assert.Equal(t, "certwatch", cfg.Name)
	assert.Equal(t, 12*time.Hour, cfg.Interval)
}

func TestLoadCachesPerType(t *testing.T) {
	type cachedConfig struct {
		Value string `env:"TEST_CACHED_VALUE" envDefault:"initial"`
	}

	t.Setenv("TEST_CACHED_VALUE", "first")

	var first cachedConfig
	require.NoError(t, config.Load(&first))
	assert.Equal(t, "first", first.Value)

	// Environment changes after the first load must not be observed.
	t.Setenv("TEST_CACHED_VALUE", "second")

	var second cachedConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, "first", second.Value)
}

func TestLoadRequiredMissing(t *testing.T) {
	type requiredConfig struct {
		Value string `env:"TEST_REQUIRED_MISSING,required"`
	}

	var cfg requiredConfig
	err := config.Load(&cfg)
	assert.Error(t, err)
}

func TestLoadNilPointer(t *testing.T) {
	var cfg *struct {
		Value string `env:"TEST_NIL"`
	}
	err := config.Load(cfg)
	assert.Error(t, err)
}

func TestMustLoadPanics(t *testing.T) {
	type panicConfig struct {
		Value string `env:"TEST_MUST_LOAD_MISSING,required"`
	}

	assert.Panics(t, func() {
		var cfg panicConfig
		config.MustLoad(&cfg)
	})
}
