package merchant

import (
	"fmt"
	"strings"
	"time"
)

// Options contains optional configuration for the Fetcher.
// NewOptions should be used to create instances of Options.
type Options struct {
	// SecretName is the name of the secret holding the merchant id.
	SecretName string

	// Timeout bounds a single source request.
	Timeout time.Duration
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

// WithSecretName configures the name of the secret holding the merchant id.
func WithSecretName(name string) Option {
	return func(o *Options) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("secret name cannot be empty")
		}
		o.SecretName = name
		return nil
	}
}

// WithTimeout configures how long a single source request may take.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) error {
		if timeout <= 0 {
			return fmt.Errorf("fetch timeout must be positive, got %v", timeout)
		}
		o.Timeout = timeout
		return nil
	}
}

// DefaultSecretName is the default name of the secret holding the merchant id.
func DefaultSecretName() string {
	return "PAYMENT_MERCHANT_ID"
}

// DefaultTimeout is the default bound of a single source request.
func DefaultTimeout() time.Duration {
	return 10 * time.Second
}

// defaultOptions returns Options with default values.
func defaultOptions() Options {
	return Options{
		SecretName: DefaultSecretName(),
		Timeout:    DefaultTimeout(),
	}
}
