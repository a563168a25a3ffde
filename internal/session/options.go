package session

import (
	"fmt"
	"time"

	"github.com/cvforge/payinit/internal/events"
)

// Options contains optional configuration for the Manager.
// NewOptions should be used to create instances of Options.
type Options struct {
	// MaxDialogs caps concurrently open dialogs, zero means unlimited.
	MaxDialogs int

	// IdleTTL is how long a dialog may go untouched before Reap closes it, zero disables reaping.
	IdleTTL time.Duration

	// CloseTimeout bounds closing a single dialog.
	CloseTimeout time.Duration

	// Publisher receives every dialog transition.
	Publisher events.Publisher

	// Clock returns the current time.
	Clock func() time.Time
}

// Option defines a functional option for configuring Options.
// Options are applied in order, with later options overriding earlier ones.
type Option func(*Options) error

// NewOptions creates Options with optional configurations applied.
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

// WithMaxDialogs caps the number of concurrently open dialogs.
func WithMaxDialogs(n int) Option {
	return func(o *Options) error {
		if n < 0 {
			return fmt.Errorf("max dialogs cannot be negative, got %d", n)
		}
		o.MaxDialogs = n
		return nil
	}
}

// WithIdleTTL configures how long a dialog may go untouched before it is reaped.
func WithIdleTTL(ttl time.Duration) Option {
	return func(o *Options) error {
		if ttl < 0 {
			return fmt.Errorf("idle ttl cannot be negative, got %v", ttl)
		}
		o.IdleTTL = ttl
		return nil
	}
}

// WithCloseTimeout configures how long closing a single dialog may take.
func WithCloseTimeout(timeout time.Duration) Option {
	return func(o *Options) error {
		if timeout <= 0 {
			return fmt.Errorf("close timeout must be positive, got %v", timeout)
		}
		o.CloseTimeout = timeout
		return nil
	}
}

// WithPublisher configures where dialog transitions are published.
func WithPublisher(p events.Publisher) Option {
	return func(o *Options) error {
		if p == nil {
			return fmt.Errorf("publisher cannot be nil")
		}
		o.Publisher = p
		return nil
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Options) error {
		if now == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		o.Clock = now
		return nil
	}
}

// DefaultCloseTimeout is the default time allowed for closing a single dialog.
func DefaultCloseTimeout() time.Duration {
	return 10 * time.Second
}

func defaultOptions() Options {
	return Options{
		CloseTimeout: DefaultCloseTimeout(),
		Publisher:    events.Nop{},
		Clock:        time.Now,
	}
}
