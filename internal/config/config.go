// Package config holds the process configuration shared by the flowcast binaries.
package config

import (
	"time"

	"github.com/myrjola/flowcast/internal/envstruct"
	"github.com/myrjola/flowcast/internal/errors"
)

// Config is populated from the environment with [envstruct.Populate].
type Config struct {
	// Addr is the HTTP network address of the API server.
	Addr string `env:"FLOWCAST_ADDR" envDefault:"localhost:4000"`
	// PprofAddr is the loopback address of the pprof server. Empty disables it.
	PprofAddr string `env:"FLOWCAST_PPROF_ADDR" envDefault:""`
	// SQLiteURL is the path to the SQLite database file or ":memory:".
	SQLiteURL string `env:"FLOWCAST_SQLITE_URL" envDefault:"./flowcast.sqlite"`

	WhatsAppBaseURL       string        `env:"WHATSAPP_BASE_URL" envDefault:"https://graph.facebook.com/v22.0/"`
	WhatsAppToken         string        `env:"WHATSAPP_TOKEN" envDefault:""`
	WhatsAppPhoneNumberID string        `env:"WHATSAPP_PHONE_NUMBER_ID" envDefault:""`
	SendTimeout           time.Duration `env:"FLOWCAST_SEND_TIMEOUT" envDefault:"10s"`

	// DelayAfterSuccess and DelayAfterFailure pace sequential campaign runs.
	DelayAfterSuccess time.Duration `env:"FLOWCAST_DELAY_AFTER_SUCCESS" envDefault:"150ms"`
	DelayAfterFailure time.Duration `env:"FLOWCAST_DELAY_AFTER_FAILURE" envDefault:"500ms"`
	// Workers above one switches campaign runs to the worker pool paced by RatePerSecond.
	Workers       int     `env:"FLOWCAST_WORKERS" envDefault:"1"`
	RatePerSecond float64 `env:"FLOWCAST_RATE_PER_SECOND" envDefault:"5"`
	RateBurst     int     `env:"FLOWCAST_RATE_BURST" envDefault:"1"`
}

var ErrInvalid = errors.NewSentinel("invalid configuration")

// Load reads the configuration with lookupEnv, which has the same signature as [os.LookupEnv].
func Load(lookupEnv func(string) (string, bool)) (Config, error) {
	var cfg Config
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return Config{}, errors.Wrap(err, "populate config")
	}
	if cfg.Workers < 1 {
		return Config{}, errors.Wrap(ErrInvalid, "FLOWCAST_WORKERS must be at least 1")
	}
	if cfg.Workers > 1 && cfg.RatePerSecond <= 0 {
		return Config{}, errors.Wrap(ErrInvalid, "FLOWCAST_RATE_PER_SECOND must be positive with multiple workers")
	}
	if cfg.SendTimeout <= 0 {
		return Config{}, errors.Wrap(ErrInvalid, "FLOWCAST_SEND_TIMEOUT must be positive")
	}
	return cfg, nil
}

// ChannelConfigured reports whether the outbound channel credentials are present.
func (c Config) ChannelConfigured() bool {
	return c.WhatsAppToken != "" && c.WhatsAppPhoneNumberID != ""
}
