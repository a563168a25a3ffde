package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/cvforge/payinit/internal/perms"
)

const (
	// DefaultAPIKeyEnv names the environment variable read for the secret function key.
	DefaultAPIKeyEnv = "PAYINIT_SECRET_API_KEY"

	// DefaultOpenBaoTokenEnv names the environment variable read for the OpenBao token.
	DefaultOpenBaoTokenEnv = "OPENBAO_TOKEN"

	DefaultAPIAddr         = "0.0.0.0:8090"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultIdleTTL         = 15 * time.Minute
	DefaultReapInterval    = time.Minute
	DefaultServiceName     = "payinit"
	DefaultEventsTopic     = "payinit.dialog-transitions"
)

const skeleton = `# payinit configuration.
# Secrets are never stored here, api_key_env and token_env name the environment variables holding them.

[script]
urls = []
global = "PaymentSDK"
attempt_timeout = "15s"
settle_delay = "500ms"

[retry]
max_cycles = 3
policy = "exponential"
base_delay = "1s"
multiplier = 2.0
max_delay = "10s"

[merchant]
source = "http"
secret_name = "PAYMENT_MERCHANT_ID"
endpoint = ""
api_key_env = "PAYINIT_SECRET_API_KEY"

[payment]
amount = 0
description = ""
callback_url = ""

[browser]
headless = true

[api]
addr = "0.0.0.0:8090"
`

// LoadEnvFile loads environment variables from path without overriding variables already set.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat env file (%s): %w", path, err)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file (%s): %w", path, err)
	}

	return nil
}

// Init creates the base skeleton configuration file for the payinit project.
func (d *DefaultLoader) Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := os.WriteFile(path, []byte(skeleton), perms.RegularFile); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

func (d *DefaultLoader) Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: path cannot be empty", ErrConfigLoadFailed)
	}

	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: config file cannot be found, run: 'payinit init'", ErrConfigLoadFailed)
		}
		return nil, fmt.Errorf("%w: failed to stat config file (%s): %w", ErrConfigLoadFailed, path, err)
	}

	var cfg *Config
	_, err = toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode config from file (%s): %w", ErrConfigLoadFailed, path, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: config file is empty (%s)", ErrConfigLoadFailed, path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: failed to validate existing config (%s): %w", ErrConfigLoadFailed, path, err)
	}

	// Update the path that loaded this file to track it.
	cfg.configFilePath = path

	return cfg, nil
}

// Path returns the file this configuration was loaded from, if any.
func (c *Config) Path() string {
	return c.configFilePath
}

// Validate checks every section, reporting all problems found.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Script.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("script configuration error: %w", err))
	}
	if err := c.Retry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retry configuration error: %w", err))
	}
	if err := c.Merchant.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("merchant configuration error: %w", err))
	}
	if err := c.Payment.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("payment configuration error: %w", err))
	}
	if err := c.Browser.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("browser configuration error: %w", err))
	}
	if err := c.API.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("api configuration error: %w", err))
	}
	if err := c.Sessions.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sessions configuration error: %w", err))
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry configuration error: %w", err))
	}
	if err := c.Events.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("events configuration error: %w", err))
	}

	return errors.Join(errs...)
}

func (s *ScriptSection) Validate() error {
	var errs []error

	if len(s.URLs) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one script url is required", ErrInvalidValue))
	}
	for _, u := range s.URLs {
		if !isValidHTTPURL(u) {
			errs = append(errs, NewErrInvalidValue("script.urls", u))
		}
	}
	if s.AttemptTimeout < 0 {
		errs = append(errs, NewErrInvalidValue("script.attempt_timeout", s.AttemptTimeout.String()))
	}
	if s.SettleDelay < 0 {
		errs = append(errs, NewErrInvalidValue("script.settle_delay", s.SettleDelay.String()))
	}
	if s.ProbeTimeout < 0 {
		errs = append(errs, NewErrInvalidValue("script.probe_timeout", s.ProbeTimeout.String()))
	}

	return errors.Join(errs...)
}

// ProbeEnabled reports whether script URLs are probed before injection.
func (s *ScriptSection) ProbeEnabled() bool {
	return s.Probe == nil || *s.Probe
}

func (r *RetrySection) Validate() error {
	var errs []error

	if r.MaxCycles < 0 {
		errs = append(errs, NewErrInvalidValue("retry.max_cycles", fmt.Sprint(r.MaxCycles)))
	}
	switch r.Policy {
	case "", RetryPolicyConstant, RetryPolicyExponential:
	default:
		errs = append(errs, NewErrInvalidValue("retry.policy", r.Policy))
	}
	if r.BaseDelay < 0 {
		errs = append(errs, NewErrInvalidValue("retry.base_delay", r.BaseDelay.String()))
	}
	if r.Multiplier != 0 && r.Multiplier < 1 {
		errs = append(errs, NewErrInvalidValue("retry.multiplier", fmt.Sprint(r.Multiplier)))
	}
	if r.MaxDelay < 0 || (r.MaxDelay > 0 && r.MaxDelay < r.BaseDelay) {
		errs = append(errs, NewErrInvalidValue("retry.max_delay", r.MaxDelay.String()))
	}

	return errors.Join(errs...)
}

func (m *MerchantSection) Validate() error {
	var errs []error

	switch m.Source {
	case MerchantSourceHTTP:
		if !isValidHTTPURL(m.Endpoint) {
			errs = append(errs, NewErrInvalidValue("merchant.endpoint", m.Endpoint))
		}
	case MerchantSourceOpenBao:
		if !isValidHTTPURL(m.OpenBao.Addr) {
			errs = append(errs, NewErrInvalidValue("merchant.openbao.addr", m.OpenBao.Addr))
		}
		if strings.TrimSpace(m.OpenBao.Path) == "" {
			errs = append(errs, fmt.Errorf("%w: merchant.openbao.path is required", ErrInvalidValue))
		}
	case MerchantSourceStatic:
		if strings.TrimSpace(m.Value) == "" {
			errs = append(errs, fmt.Errorf("%w: merchant.value is required for the static source", ErrInvalidValue))
		}
	default:
		errs = append(errs, NewErrInvalidValue("merchant.source", m.Source))
	}
	if m.Timeout < 0 {
		errs = append(errs, NewErrInvalidValue("merchant.timeout", m.Timeout.String()))
	}

	return errors.Join(errs...)
}

// APIKey returns the secret function key from the environment.
func (m *MerchantSection) APIKey() string {
	return strings.TrimSpace(os.Getenv(envOr(m.APIKeyEnv, DefaultAPIKeyEnv)))
}

// Token returns the OpenBao token from the environment.
func (o *OpenBaoSection) Token() string {
	return strings.TrimSpace(os.Getenv(envOr(o.TokenEnv, DefaultOpenBaoTokenEnv)))
}

func (p *PaymentSection) Validate() error {
	var errs []error

	if p.Amount <= 0 {
		errs = append(errs, NewErrInvalidValue("payment.amount", fmt.Sprint(p.Amount)))
	}
	if !isValidHTTPURL(p.CallbackURL) {
		errs = append(errs, NewErrInvalidValue("payment.callback_url", p.CallbackURL))
	}

	return errors.Join(errs...)
}

func (b *BrowserSection) Validate() error {
	var errs []error

	if b.ControlURL != "" {
		if u, err := url.Parse(b.ControlURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			errs = append(errs, NewErrInvalidValue("browser.control_url", b.ControlURL))
		}
	}
	if b.PageURL != "" && b.PageURL != "about:blank" && !isValidHTTPURL(b.PageURL) {
		errs = append(errs, NewErrInvalidValue("browser.page_url", b.PageURL))
	}
	if b.NavigationTimeout < 0 {
		errs = append(errs, NewErrInvalidValue("browser.navigation_timeout", b.NavigationTimeout.String()))
	}

	return errors.Join(errs...)
}

// HeadlessEnabled reports whether a launched browser runs headless, defaults to true.
func (b *BrowserSection) HeadlessEnabled() bool {
	return b.Headless == nil || *b.Headless
}

func (a *APISection) Validate() error {
	var errs []error

	if a.Addr != "" && !isValidAddr(a.Addr) {
		errs = append(errs, NewErrInvalidValue("api.addr", a.Addr))
	}
	if a.ShutdownTimeout < 0 {
		errs = append(errs, NewErrInvalidValue("api.shutdown_timeout", a.ShutdownTimeout.String()))
	}
	if err := a.CORS.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cors configuration error: %w", err))
	}

	return errors.Join(errs...)
}

// Validate validates CORS configuration, only when CORS is enabled.
func (c *CORSSection) Validate() error {
	if !c.Enable {
		return nil
	}

	var errs []error

	if len(c.Origins) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one allowed origin is required when cors is enabled", ErrInvalidValue))
	}
	for _, origin := range c.Origins {
		if origin == "*" {
			if c.Credentials {
				errs = append(errs, fmt.Errorf("%w: wildcard origin cannot be combined with credentials", ErrInvalidValue))
			}
			continue
		}
		if !isValidHTTPURL(origin) {
			errs = append(errs, NewErrInvalidValue("api.cors.allow_origins", origin))
		}
	}
	for _, method := range c.Methods {
		if !slices.Contains(ValidHTTPRequestMethods(), strings.ToUpper(method)) {
			errs = append(errs, NewErrInvalidValue("api.cors.allow_methods", method))
		}
	}
	if c.MaxAge < 0 {
		errs = append(errs, NewErrInvalidValue("api.cors.max_age", c.MaxAge.String()))
	}

	return errors.Join(errs...)
}

func (s *SessionsSection) Validate() error {
	var errs []error

	if s.IdleTTL < 0 {
		errs = append(errs, NewErrInvalidValue("sessions.idle_ttl", s.IdleTTL.String()))
	}
	if s.ReapInterval < 0 {
		errs = append(errs, NewErrInvalidValue("sessions.reap_interval", s.ReapInterval.String()))
	}
	if s.MaxDialogs < 0 {
		errs = append(errs, NewErrInvalidValue("sessions.max_dialogs", fmt.Sprint(s.MaxDialogs)))
	}

	return errors.Join(errs...)
}

func (t *TelemetrySection) Validate() error {
	if t.Enabled && strings.TrimSpace(t.Endpoint) == "" {
		return fmt.Errorf("%w: telemetry.endpoint is required when telemetry is enabled", ErrInvalidValue)
	}
	return nil
}

func (e *EventsSection) Validate() error {
	var errs []error

	for _, broker := range e.Brokers {
		if !isValidAddr(broker) {
			errs = append(errs, NewErrInvalidValue("events.brokers", broker))
		}
	}
	if len(e.Brokers) > 0 && strings.TrimSpace(e.Topic) == "" {
		errs = append(errs, fmt.Errorf("%w: events.topic is required when brokers are configured", ErrInvalidValue))
	}

	return errors.Join(errs...)
}

// Enabled reports whether transition events are published.
func (e *EventsSection) Enabled() bool {
	return len(e.Brokers) > 0
}

// ValidHTTPRequestMethods returns the HTTP methods accepted in CORS configuration.
func ValidHTTPRequestMethods() []string {
	return []string{
		"GET",
		"POST",
		"PUT",
		"PATCH",
		"DELETE",
		"HEAD",
		"OPTIONS",
		"CONNECT",
		"TRACE",
	}
}

// isValidAddr validates address format (host:port or :port).
func isValidAddr(addr string) bool {
	_, _, err := net.SplitHostPort(addr)
	return err == nil
}

func isValidHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func envOr(name string, fallback string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return fallback
}
