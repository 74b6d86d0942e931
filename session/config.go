package session

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

// ErrConfig indicates the session configuration could not be loaded
var ErrConfig = errors.New("session.config_invalid")

// Config holds session storage configuration
type Config struct {
	// Name is the session name, used as the cookie name (default: "SESSID")
	Name string `env:"SESSION_NAME" envDefault:"SESSID"`

	// SavePath is passed to Handler.Open
	SavePath string `env:"SESSION_SAVE_PATH"`

	// CookieLifetime is the lifetime stamped on new sessions (0 for browser session)
	CookieLifetime time.Duration `env:"SESSION_COOKIE_LIFETIME" envDefault:"0s"`

	// GCMaxLifetime is passed to Handler.GC
	GCMaxLifetime time.Duration `env:"SESSION_GC_MAX_LIFETIME" envDefault:"24m"`

	// GCProbability / GCDivisor is the chance a Start runs garbage collection
	GCProbability int `env:"SESSION_GC_PROBABILITY" envDefault:"1"`
	GCDivisor     int `env:"SESSION_GC_DIVISOR" envDefault:"100"`

	// MetadataUpdateThreshold is the minimum time between last-used updates
	MetadataUpdateThreshold time.Duration `env:"SESSION_METADATA_UPDATE_THRESHOLD" envDefault:"0s"`

	// LazyWrite only refreshes the record's timestamp when the data did not change
	LazyWrite bool `env:"SESSION_LAZY_WRITE" envDefault:"true"`
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		Name:          "SESSID",
		GCMaxLifetime: 24 * time.Minute,
		GCProbability: 1,
		GCDivisor:     100,
		LazyWrite:     true,
	}
}

// ConfigFromEnv loads the configuration from environment variables,
// falling back to the envDefault of every field.
func ConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, errors.Join(ErrConfig, err)
	}
	return cfg, nil
}
