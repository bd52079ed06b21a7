package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gatekeeper/core/config"
)

type testConfig struct {
	Name    string        `env:"GK_TEST_NAME" envDefault:"default"`
	Window  time.Duration `env:"GK_TEST_WINDOW" envDefault:"1m"`
	Enabled bool          `env:"GK_TEST_ENABLED" envDefault:"true"`
}

type requiredConfig struct {
	Value string `env:"GK_TEST_REQUIRED_VALUE,required"`
}

func TestLoad(t *testing.T) {
	config.Reset()
	t.Setenv("GK_TEST_NAME", "gatekeeper")
	t.Setenv("GK_TEST_WINDOW", "30s")

	var cfg testConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "gatekeeper", cfg.Name)
	assert.Equal(t, 30*time.Second, cfg.Window)
	assert.True(t, cfg.Enabled)

	t.Run("cached per type", func(t *testing.T) {
		t.Setenv("GK_TEST_NAME", "changed")

		var again testConfig
		require.NoError(t, config.Load(&again))
		assert.Equal(t, cfg, again)
	})
}

func TestLoadRequired(t *testing.T) {
	config.Reset()

	var cfg requiredConfig
	require.Error(t, config.Load(&cfg))

	assert.Panics(t, func() {
		config.MustLoad(&requiredConfig{})
	})
}

func TestLoadNilTarget(t *testing.T) {
	var cfg *testConfig
	assert.ErrorIs(t, config.Load(cfg), config.ErrNilTarget)
}
