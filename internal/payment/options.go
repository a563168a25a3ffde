package payment

import (
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/cvforge/payinit/internal/sdk"
)

// Options contains optional configuration for the Orchestrator.
// NewOptions should be used to create instances of Options.
type Options struct {
	// Amount is the payment amount in the currency's minor unit.
	Amount int64

	// Description is shown by the vendor payment flow.
	Description string

	// CallbackURL is where the vendor redirects once the payment completes.
	CallbackURL string

	// CleanupTimeout bounds the page cleanup performed on open, retry and close.
	CleanupTimeout time.Duration

	// Tracer records a span per initialization run.
	Tracer trace.Tracer
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

// WithPayment configures the payment passed to the vendor SDK.
func WithPayment(amount int64, description string, callbackURL string) Option {
	return func(o *Options) error {
		if amount <= 0 {
			return fmt.Errorf("amount must be positive, got %d", amount)
		}
		if err := sdk.ValidateCallbackURL(callbackURL); err != nil {
			return err
		}
		o.Amount = amount
		o.Description = strings.TrimSpace(description)
		o.CallbackURL = strings.TrimSpace(callbackURL)
		return nil
	}
}

// WithCleanupTimeout configures how long page cleanup may take.
func WithCleanupTimeout(timeout time.Duration) Option {
	return func(o *Options) error {
		if timeout <= 0 {
			return fmt.Errorf("cleanup timeout must be positive, got %v", timeout)
		}
		o.CleanupTimeout = timeout
		return nil
	}
}

// WithTracer configures the tracer used for initialization spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Options) error {
		if tracer == nil {
			return fmt.Errorf("tracer cannot be nil")
		}
		o.Tracer = tracer
		return nil
	}
}

// DefaultCleanupTimeout is the default bound of page cleanup.
func DefaultCleanupTimeout() time.Duration {
	return 5 * time.Second
}

// defaultOptions returns Options with default values.
func defaultOptions() Options {
	return Options{
		CleanupTimeout: DefaultCleanupTimeout(),
		Tracer:         noop.NewTracerProvider().Tracer("payinit/payment"),
	}
}

func (o Options) request(merchantID string) sdk.Request {
	return sdk.Request{
		MerchantID:  merchantID,
		Amount:      o.Amount,
		Description: o.Description,
		CallbackURL: o.CallbackURL,
	}
}
