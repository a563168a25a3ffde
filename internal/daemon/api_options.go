package daemon

import (
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cvforge/payinit/internal/api"
	"github.com/cvforge/payinit/internal/config"
)

// APIOptions contains optional configuration for the API server.
// NewAPIOptions should be used to create instances of APIOptions.
type APIOptions struct {
	// CORS lets hosting pages on other origins drive dialogs from the browser.
	CORS CORSConfig

	// ShutdownTimeout specifies how long to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// CORSConfig defines Cross-Origin Resource Sharing settings for the API server.
type CORSConfig struct {
	Enabled bool

	// AllowOrigins lists the hosting page origins, "*" allows any origin and disables credentials.
	AllowOrigins []string

	AllowMethods     []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool

	// MaxAge is how long browsers may cache preflight responses.
	MaxAge time.Duration
}

// APIOption defines a functional option for configuring APIOptions.
// Options are applied in order, with later options overriding earlier ones.
type APIOption func(*APIOptions) error

// NewAPIOptions creates APIOptions with optional configurations applied.
// CORS is disabled unless WithCORS is given.
func NewAPIOptions(opts ...APIOption) (APIOptions, error) {
	options := APIOptions{
		CORS:            DefaultCORSConfig(),
		ShutdownTimeout: DefaultAPIShutdownTimeout(),
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&options); err != nil {
			return APIOptions{}, err
		}
	}

	return options, nil
}

// WithCORS enables CORS for the origins in c.
// Empty methods, headers, exposed headers and max age fall back to the defaults.
func WithCORS(c CORSConfig) APIOption {
	return func(o *APIOptions) error {
		origins := make([]string, 0, len(c.AllowOrigins))
		for _, origin := range c.AllowOrigins {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
		if len(origins) == 0 {
			return fmt.Errorf("CORS requires at least one allowed origin")
		}

		for _, m := range c.AllowMethods {
			if !slices.Contains(config.ValidHTTPRequestMethods(), strings.ToUpper(m)) {
				return fmt.Errorf("invalid CORS method '%s'", m)
			}
		}
		if c.MaxAge < 0 {
			return fmt.Errorf("CORS max age cannot be negative, got %v", c.MaxAge)
		}

		defaults := DefaultCORSConfig()
		o.CORS = CORSConfig{
			Enabled:          true,
			AllowOrigins:     origins,
			AllowMethods:     orDefault(c.AllowMethods, defaults.AllowMethods),
			AllowedHeaders:   orDefault(c.AllowedHeaders, defaults.AllowedHeaders),
			ExposedHeaders:   orDefault(c.ExposedHeaders, defaults.ExposedHeaders),
			AllowCredentials: c.AllowCredentials,
			MaxAge:           c.MaxAge,
		}
		if o.CORS.MaxAge == 0 {
			o.CORS.MaxAge = defaults.MaxAge
		}

		return nil
	}
}

// WithShutdownTimeout configures how long to wait for graceful shutdown.
func WithShutdownTimeout(timeout time.Duration) APIOption {
	return func(o *APIOptions) error {
		if timeout <= 0 {
			return fmt.Errorf("shutdown timeout must be positive, got %v", timeout)
		}
		o.ShutdownTimeout = timeout
		return nil
	}
}

// APIOptionsFromConfig translates the API section of the configuration into API options.
// Zero values in cfg leave the defaults in place.
func APIOptionsFromConfig(cfg config.APISection) []APIOption {
	var opts []APIOption

	if cfg.ShutdownTimeout > 0 {
		opts = append(opts, WithShutdownTimeout(time.Duration(cfg.ShutdownTimeout)))
	}

	if c := cfg.CORS; c.Enable {
		opts = append(opts, WithCORS(CORSConfig{
			AllowOrigins:     c.Origins,
			AllowMethods:     c.Methods,
			AllowedHeaders:   c.Headers,
			ExposedHeaders:   c.ExposeHeaders,
			AllowCredentials: c.Credentials,
			MaxAge:           time.Duration(c.MaxAge),
		}))
	}

	return opts
}

// DefaultCORSConfig returns the disabled CORS configuration, whose methods, headers and max age
// are used when CORS is enabled without them.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		// Dialog routes only use these methods.
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Accept-Language",
			"Content-Language",
			"Content-Type",
		},
		ExposedHeaders: []string{api.HeaderDialogReason},
		MaxAge:         5 * time.Minute,
	}
}

// DefaultAPIShutdownTimeout is the default time allowed for API server graceful shutdown.
func DefaultAPIShutdownTimeout() time.Duration {
	return config.DefaultShutdownTimeout
}

func orDefault(values []string, fallback []string) []string {
	if len(values) == 0 {
		return slices.Clone(fallback)
	}
	return slices.Clone(values)
}

// validateAddr checks if the address is a valid "host:port" string.
func validateAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format: %w", err)
	}

	if port == "" {
		return fmt.Errorf("address missing port")
	}

	if _, err := strconv.Atoi(port); err != nil {
		if _, err := net.LookupPort("tcp", port); err != nil {
			return fmt.Errorf("invalid address port: %s", port)
		}
	}

	return nil
}
