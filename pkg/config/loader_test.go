package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/switchkit/pkg/config"
)

type parseConfig struct {
	Name  string `env:"CFG_TEST_NAME" envDefault:"default"`
	Count int    `env:"CFG_TEST_COUNT" envDefault:"3" validate:"min=1"`
	Mode  string `env:"CFG_TEST_MODE" envDefault:"yes" validate:"oneof=yes no"`
}

type cachedConfig struct {
	Value string `env:"CFG_TEST_CACHED" envDefault:"first"`
}

type requiredConfig struct {
	Value string `env:"CFG_TEST_REQUIRED,required"`
}

func TestParse(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var cfg parseConfig
		require.NoError(t, config.Parse(&cfg))
		assert.Equal(t, "default", cfg.Name)
		assert.Equal(t, 3, cfg.Count)
	})

	t.Run("env values", func(t *testing.T) {
		t.Setenv("CFG_TEST_NAME", "custom")
		t.Setenv("CFG_TEST_MODE", "no")
		var cfg parseConfig
		require.NoError(t, config.Parse(&cfg))
		assert.Equal(t, "custom", cfg.Name)
		assert.Equal(t, "no", cfg.Mode)
	})

	t.Run("validation error", func(t *testing.T) {
		t.Setenv("CFG_TEST_MODE", "maybe")
		var cfg parseConfig
		assert.ErrorIs(t, config.Parse(&cfg), config.ErrValidatingConfig)
	})

	t.Run("parse error", func(t *testing.T) {
		t.Setenv("CFG_TEST_COUNT", "many")
		var cfg parseConfig
		assert.ErrorIs(t, config.Parse(&cfg), config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		assert.ErrorIs(t, config.Parse[parseConfig](nil), config.ErrNilPointer)
	})
}

func TestLoad(t *testing.T) {
	t.Run("caches per type", func(t *testing.T) {
		t.Setenv("CFG_TEST_CACHED", "first")
		var a cachedConfig
		require.NoError(t, config.Load(&a))

		t.Setenv("CFG_TEST_CACHED", "second")
		var b cachedConfig
		require.NoError(t, config.Load(&b))
		assert.Equal(t, "first", b.Value)
	})

	t.Run("required missing", func(t *testing.T) {
		var cfg requiredConfig
		assert.ErrorIs(t, config.Load(&cfg), config.ErrParsingConfig)
		assert.Panics(t, func() { config.MustLoad(&cfg) })
	})
}
