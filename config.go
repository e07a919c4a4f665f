package sambung

import (
	"errors"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config carries the environment-driven client and session settings. It maps
// one-to-one onto functional options via Options / SessionOptions, so an
// application can bootstrap entirely from the environment:
//
//	cfg, err := sambung.LoadConfig()
//	client := sambung.New(cfg.Options()...)
type Config struct {
	// Endpoint is the fixed backend URL every operation is posted to.
	Endpoint string `env:"SAMBUNG_ENDPOINT,required,notEmpty"`
	// Credential is the shared static credential appended as a query parameter.
	Credential string `env:"SAMBUNG_API_KEY"`

	MaxAttempts int           `env:"SAMBUNG_MAX_ATTEMPTS" envDefault:"3"`
	BaseDelay   time.Duration `env:"SAMBUNG_BASE_DELAY" envDefault:"1s"`
	MaxDelay    time.Duration `env:"SAMBUNG_MAX_DELAY" envDefault:"30s"`

	CacheTTL time.Duration `env:"SAMBUNG_CACHE_TTL" envDefault:"5m"`

	SessionTimeout      time.Duration `env:"SAMBUNG_SESSION_TIMEOUT" envDefault:"24h"`
	RefreshInterval     time.Duration `env:"SAMBUNG_REFRESH_INTERVAL" envDefault:"5m"`
	ExpiryCheckInterval time.Duration `env:"SAMBUNG_EXPIRY_CHECK_INTERVAL" envDefault:"1m"`

	Debug bool `env:"SAMBUNG_DEBUG" envDefault:"false"`
}

// ErrParsingConfig wraps environment parsing failures.
var ErrParsingConfig = errors.New("sambung: failed to parse config from environment")

var defaultEnvLoaded sync.Once

// LoadConfig populates a Config from the environment. A .env file in the
// working directory is loaded once, best effort, before parsing.
func LoadConfig() (Config, error) {
	defaultEnvLoaded.Do(func() {
		// The .env file might not exist and that's ok.
		_ = godotenv.Load()
	})

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// Options converts the config into client options.
func (cfg Config) Options() []Option {
	options := []Option{
		WithHTTPTransport(cfg.Endpoint, cfg.Credential),
		WithRetryPolicy(RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.BaseDelay,
			MaxDelay:    cfg.MaxDelay,
		}),
		WithCache(cfg.CacheTTL),
	}
	if cfg.Debug {
		options = append(options, WithSimpleLogger())
	}
	return options
}

// SessionOptions converts the config into session manager options.
func (cfg Config) SessionOptions() []SessionOption {
	return []SessionOption{
		WithSessionTimeout(cfg.SessionTimeout),
		WithRefreshInterval(cfg.RefreshInterval),
		WithExpiryCheckInterval(cfg.ExpiryCheckInterval),
	}
}
