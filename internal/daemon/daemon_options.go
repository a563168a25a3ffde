package daemon

import (
	"fmt"
	"time"

	"github.com/cvforge/payinit/internal/config"
)

// Options contains optional configuration for the daemon.
// NewOptions should be used to create instances of Options.
type Options struct {
	// APIOptions contains functional options for the API server.
	APIOptions []APIOption

	// ReapInterval specifies how often idle dialogs are looked for and closed.
	ReapInterval time.Duration

	// SessionShutdownTimeout specifies how long to wait for open dialogs to close on shutdown.
	SessionShutdownTimeout time.Duration
}

// Option defines a functional option for configuring Options.
// Options are applied in order, with later options overriding earlier ones.
type Option func(*Options) error

// NewOptions creates Options with optional configurations applied.
// Starts with default values, then applies options in order with later options overriding earlier ones.
func NewOptions(opts ...Option) (Options, error) {
	options := defaultOptions()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&options); err != nil {
			return Options{}, err
		}
	}

	return options, nil
}

// WithAPIOptions configures API server options.
// Replaces all previous API configuration including CORS settings.
func WithAPIOptions(apiOpts ...APIOption) Option {
	return func(o *Options) error {
		o.APIOptions = apiOpts
		return nil
	}
}

// WithReapInterval configures how often idle dialogs are reaped.
func WithReapInterval(interval time.Duration) Option {
	return func(o *Options) error {
		if interval <= 0 {
			return fmt.Errorf("reap interval must be positive, got %v", interval)
		}
		o.ReapInterval = interval
		return nil
	}
}

// WithSessionShutdownTimeout configures how long to wait for open dialogs to close on shutdown.
func WithSessionShutdownTimeout(timeout time.Duration) Option {
	return func(o *Options) error {
		if timeout <= 0 {
			return fmt.Errorf("session shutdown timeout must be positive, got %v", timeout)
		}
		o.SessionShutdownTimeout = timeout
		return nil
	}
}

// OptionsFromConfig translates configuration into daemon options.
func OptionsFromConfig(cfg *config.Config) []Option {
	opts := []Option{WithAPIOptions(APIOptionsFromConfig(cfg.API)...)}

	if cfg.Sessions.ReapInterval > 0 {
		opts = append(opts, WithReapInterval(time.Duration(cfg.Sessions.ReapInterval)))
	}
	if cfg.API.ShutdownTimeout > 0 {
		opts = append(opts, WithSessionShutdownTimeout(time.Duration(cfg.API.ShutdownTimeout)))
	}

	return opts
}

// DefaultReapInterval is the default interval between idle dialog sweeps.
func DefaultReapInterval() time.Duration {
	return config.DefaultReapInterval
}

// DefaultSessionShutdownTimeout is the default time to wait for open dialogs to close.
func DefaultSessionShutdownTimeout() time.Duration {
	return config.DefaultShutdownTimeout
}

// defaultOptions returns Options with default values.
func defaultOptions() Options {
	return Options{
		ReapInterval:           DefaultReapInterval(),
		SessionShutdownTimeout: DefaultSessionShutdownTimeout(),
	}
}
