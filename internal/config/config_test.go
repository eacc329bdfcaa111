package config_test

import (
	"testing"
	"time"

	"github.com/myrjola/flowcast/internal/config"
	"github.com/stretchr/testify/require"
)

func lookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := config.Load(lookup(nil))
		require.NoError(t, err)
		require.Equal(t, "localhost:4000", cfg.Addr)
		require.Equal(t, 150*time.Millisecond, cfg.DelayAfterSuccess)
		require.Equal(t, 500*time.Millisecond, cfg.DelayAfterFailure)
		require.Equal(t, 1, cfg.Workers)
		require.False(t, cfg.ChannelConfigured())
	})

	t.Run("channel credentials", func(t *testing.T) {
		cfg, err := config.Load(lookup(map[string]string{
			"WHATSAPP_TOKEN":           "secret",
			"WHATSAPP_PHONE_NUMBER_ID": "1234",
		}))
		require.NoError(t, err)
		require.True(t, cfg.ChannelConfigured())
	})

	t.Run("invalid worker count", func(t *testing.T) {
		_, err := config.Load(lookup(map[string]string{"FLOWCAST_WORKERS": "0"}))
		require.ErrorIs(t, err, config.ErrInvalid)
	})

	t.Run("worker pool needs a rate", func(t *testing.T) {
		_, err := config.Load(lookup(map[string]string{
			"FLOWCAST_WORKERS":         "4",
			"FLOWCAST_RATE_PER_SECOND": "0",
		}))
		require.ErrorIs(t, err, config.ErrInvalid)
	})
}
