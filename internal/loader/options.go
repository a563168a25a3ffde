package loader

import (
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/cvforge/payinit/internal/host"
)

const (
	// BackoffConstant waits the base delay between every retry cycle.
	BackoffConstant BackoffPolicy = "constant"

	// BackoffExponential multiplies the delay between retry cycles, capped at the max delay.
	BackoffExponential BackoffPolicy = "exponential"
)

// BackoffPolicy names the delay strategy applied between retry cycles.
type BackoffPolicy string

// Options contains configuration for the script loader.
// NewOptions should be used to create instances of Options.
type Options struct {
	// URLs are the ordered candidate script URLs.
	URLs []string

	// AttemptTimeout bounds a single inject-and-wait attempt.
	AttemptTimeout time.Duration

	// ProbeEnabled toggles the reachability check performed before each injection.
	ProbeEnabled bool

	// ProbeTimeout bounds a single reachability check.
	ProbeTimeout time.Duration

	// Prober performs the reachability check, nil disables probing.
	Prober host.Prober

	// MaxRetries is the number of full passes over URLs before giving up.
	MaxRetries int

	// Policy selects the delay strategy between passes.
	Policy BackoffPolicy

	// BaseDelay is the first delay between passes.
	BaseDelay time.Duration

	// Multiplier grows the delay between passes for BackoffExponential.
	Multiplier float64

	// MaxDelay caps the delay between passes for BackoffExponential.
	MaxDelay time.Duration

	// SettleDelay is waited after the load event before checking the vendor global.
	SettleDelay time.Duration

	// Global is the name of the global object the vendor script registers.
	Global string

	// Attribute identifies vendor script elements on the page.
	Attribute string

	// Tracer records a span per load run.
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

	if len(options.URLs) == 0 {
		return Options{}, fmt.Errorf("at least one script URL is required")
	}

	return options, nil
}

// WithURLs configures the ordered candidate script URLs.
func WithURLs(urls ...string) Option {
	return func(o *Options) error {
		cleaned := make([]string, 0, len(urls))
		for _, u := range urls {
			u = strings.TrimSpace(u)
			if u == "" {
				return fmt.Errorf("script URL cannot be empty")
			}
			cleaned = append(cleaned, u)
		}
		if len(cleaned) == 0 {
			return fmt.Errorf("at least one script URL is required")
		}
		o.URLs = cleaned
		return nil
	}
}

// WithAttemptTimeout configures how long a single injection may take.
func WithAttemptTimeout(timeout time.Duration) Option {
	return func(o *Options) error {
		if timeout <= 0 {
			return fmt.Errorf("attempt timeout must be positive, got %v", timeout)
		}
		o.AttemptTimeout = timeout
		return nil
	}
}

// WithProbe configures the reachability check performed before each injection.
// A nil prober disables probing.
func WithProbe(prober host.Prober, timeout time.Duration) Option {
	return func(o *Options) error {
		if timeout <= 0 {
			return fmt.Errorf("probe timeout must be positive, got %v", timeout)
		}
		o.Prober = prober
		o.ProbeTimeout = timeout
		o.ProbeEnabled = prober != nil
		return nil
	}
}

// WithoutProbe disables the reachability check.
func WithoutProbe() Option {
	return func(o *Options) error {
		o.ProbeEnabled = false
		return nil
	}
}

// WithMaxRetries configures the number of full passes over the URL list.
func WithMaxRetries(n int) Option {
	return func(o *Options) error {
		if n < 1 {
			return fmt.Errorf("max retries must be at least 1, got %d", n)
		}
		o.MaxRetries = n
		return nil
	}
}

// WithConstantBackoff waits delay between passes.
func WithConstantBackoff(delay time.Duration) Option {
	return func(o *Options) error {
		if delay < 0 {
			return fmt.Errorf("backoff delay cannot be negative, got %v", delay)
		}
		o.Policy = BackoffConstant
		o.BaseDelay = delay
		return nil
	}
}

// WithExponentialBackoff waits base, base*multiplier, ... capped at maxDelay between passes.
func WithExponentialBackoff(base time.Duration, multiplier float64, maxDelay time.Duration) Option {
	return func(o *Options) error {
		if base <= 0 {
			return fmt.Errorf("backoff base delay must be positive, got %v", base)
		}
		if multiplier < 1 {
			return fmt.Errorf("backoff multiplier must be at least 1, got %v", multiplier)
		}
		if maxDelay < base {
			return fmt.Errorf("backoff max delay %v is below base delay %v", maxDelay, base)
		}
		o.Policy = BackoffExponential
		o.BaseDelay = base
		o.Multiplier = multiplier
		o.MaxDelay = maxDelay
		return nil
	}
}

// WithSettleDelay configures the wait between the load event and the global check.
func WithSettleDelay(delay time.Duration) Option {
	return func(o *Options) error {
		if delay < 0 {
			return fmt.Errorf("settle delay cannot be negative, got %v", delay)
		}
		o.SettleDelay = delay
		return nil
	}
}

// WithGlobal configures the vendor global name.
func WithGlobal(name string) Option {
	return func(o *Options) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("global name cannot be empty")
		}
		o.Global = name
		return nil
	}
}

// WithAttribute configures the attribute identifying vendor script elements.
func WithAttribute(attr string) Option {
	return func(o *Options) error {
		attr = strings.TrimSpace(attr)
		if attr == "" {
			return fmt.Errorf("script attribute cannot be empty")
		}
		o.Attribute = attr
		return nil
	}
}

// WithTracer configures the tracer used for load spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Options) error {
		if tracer == nil {
			return fmt.Errorf("tracer cannot be nil")
		}
		o.Tracer = tracer
		return nil
	}
}

// DefaultAttemptTimeout is the default bound of a single injection.
func DefaultAttemptTimeout() time.Duration {
	return 15 * time.Second
}

// DefaultProbeTimeout is the default bound of a reachability check.
func DefaultProbeTimeout() time.Duration {
	return 3 * time.Second
}

// DefaultMaxRetries is the default number of passes over the URL list.
func DefaultMaxRetries() int {
	return 3
}

// DefaultBaseDelay is the default first delay between passes.
func DefaultBaseDelay() time.Duration {
	return time.Second
}

// DefaultMultiplier is the default exponential growth factor.
func DefaultMultiplier() float64 {
	return 2
}

// DefaultMaxDelay is the default cap of the delay between passes.
func DefaultMaxDelay() time.Duration {
	return 10 * time.Second
}

// DefaultSettleDelay is the default wait between the load event and the global check.
func DefaultSettleDelay() time.Duration {
	return 500 * time.Millisecond
}

// DefaultGlobal is the default vendor global name.
func DefaultGlobal() string {
	return "PaymentSDK"
}

// DefaultAttribute is the default attribute identifying vendor script elements.
func DefaultAttribute() string {
	return "data-payinit-vendor"
}

// newBackOff builds the delay sequence for a load run from the configured policy.
func (o Options) newBackOff() backoff.BackOff {
	if o.Policy == BackoffExponential {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = o.BaseDelay
		b.Multiplier = o.Multiplier
		b.MaxInterval = o.MaxDelay
		b.RandomizationFactor = 0
		b.MaxElapsedTime = 0
		b.Reset()
		return b
	}
	return backoff.NewConstantBackOff(o.BaseDelay)
}

// defaultOptions returns Options with default values.
func defaultOptions() Options {
	return Options{
		AttemptTimeout: DefaultAttemptTimeout(),
		ProbeTimeout:   DefaultProbeTimeout(),
		MaxRetries:     DefaultMaxRetries(),
		Policy:         BackoffExponential,
		BaseDelay:      DefaultBaseDelay(),
		Multiplier:     DefaultMultiplier(),
		MaxDelay:       DefaultMaxDelay(),
		SettleDelay:    DefaultSettleDelay(),
		Global:         DefaultGlobal(),
		Attribute:      DefaultAttribute(),
		Tracer:         noop.NewTracerProvider().Tracer("payinit/loader"),
	}
}
