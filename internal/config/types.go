package config

var _ Provider = (*DefaultLoader)(nil)

const (
	MerchantSourceHTTP    = "http"
	MerchantSourceOpenBao = "openbao"
	MerchantSourceStatic  = "static"

	RetryPolicyConstant    = "constant"
	RetryPolicyExponential = "exponential"
)

type Loader interface {
	Load(path string) (*Config, error)
}

type Initializer interface {
	Init(path string) error
}

type Provider interface {
	Initializer
	Loader
}

type DefaultLoader struct{}

// Config represents the .payinit.toml file structure.
//
// NOTE: secrets (API keys, tokens) are never stored in the file, sections name the environment variables holding them.
type Config struct {
	Script    ScriptSection    `json:"script"              toml:"script"              yaml:"script"`
	Retry     RetrySection     `json:"retry"               toml:"retry"               yaml:"retry"`
	Merchant  MerchantSection  `json:"merchant"            toml:"merchant"            yaml:"merchant"`
	Payment   PaymentSection   `json:"payment"             toml:"payment"             yaml:"payment"`
	Browser   BrowserSection   `json:"browser"             toml:"browser"             yaml:"browser"`
	API       APISection       `json:"api"                 toml:"api"                 yaml:"api"`
	Sessions  SessionsSection  `json:"sessions"            toml:"sessions"            yaml:"sessions"`
	Telemetry TelemetrySection `json:"telemetry,omitempty" toml:"telemetry,omitempty" yaml:"telemetry,omitempty"`
	Events    EventsSection    `json:"events,omitempty"    toml:"events,omitempty"    yaml:"events,omitempty"`

	configFilePath string `toml:"-"`
}

// ScriptSection configures how the vendor SDK script is loaded.
type ScriptSection struct {
	// URLs are the candidate script URLs, tried in order.
	URLs []string `json:"urls" toml:"urls" yaml:"urls"`

	// Global is the name of the global object registered by the vendor script, e.g. 'PaymentSDK'.
	Global string `json:"global,omitempty" toml:"global,omitempty" yaml:"global,omitempty"`

	// Attribute identifies injected script elements.
	Attribute string `json:"attribute,omitempty" toml:"attribute,omitempty" yaml:"attribute,omitempty"`

	AttemptTimeout Duration `json:"attemptTimeout,omitempty" toml:"attempt_timeout,omitempty" yaml:"attempt_timeout,omitempty"`
	SettleDelay    Duration `json:"settleDelay,omitempty"    toml:"settle_delay,omitempty"    yaml:"settle_delay,omitempty"`

	// Probe enables a HEAD reachability check before each injection, defaults to true.
	Probe        *bool    `json:"probe,omitempty"        toml:"probe,omitempty"         yaml:"probe,omitempty"`
	ProbeTimeout Duration `json:"probeTimeout,omitempty" toml:"probe_timeout,omitempty" yaml:"probe_timeout,omitempty"`
}

// RetrySection configures retry cycles over the script URL list.
type RetrySection struct {
	MaxCycles  int      `json:"maxCycles,omitempty"  toml:"max_cycles,omitempty" yaml:"max_cycles,omitempty"`
	Policy     string   `json:"policy,omitempty"     toml:"policy,omitempty"     yaml:"policy,omitempty"`
	BaseDelay  Duration `json:"baseDelay,omitempty"  toml:"base_delay,omitempty" yaml:"base_delay,omitempty"`
	Multiplier float64  `json:"multiplier,omitempty" toml:"multiplier,omitempty" yaml:"multiplier,omitempty"`
	MaxDelay   Duration `json:"maxDelay,omitempty"   toml:"max_delay,omitempty"  yaml:"max_delay,omitempty"`
}

// MerchantSection configures where the merchant id is resolved from.
type MerchantSection struct {
	// Source is one of 'http', 'openbao' or 'static'.
	Source string `json:"source" toml:"source" yaml:"source"`

	// SecretName is the name of the secret holding the merchant id.
	SecretName string `json:"secretName,omitempty" toml:"secret_name,omitempty" yaml:"secret_name,omitempty"`

	Timeout Duration `json:"timeout,omitempty" toml:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Endpoint is the secret function URL used by the 'http' source.
	Endpoint string `json:"endpoint,omitempty" toml:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// APIKeyEnv names the environment variable holding the secret function key.
	APIKeyEnv string `json:"apiKeyEnv,omitempty" toml:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`

	// Value is the merchant id served by the 'static' source.
	Value string `json:"value,omitempty" toml:"value,omitempty" yaml:"value,omitempty"`

	OpenBao OpenBaoSection `json:"openbao,omitempty" toml:"openbao,omitempty" yaml:"openbao,omitempty"`
}

// OpenBaoSection locates the KV v2 secret read by the 'openbao' source.
type OpenBaoSection struct {
	Addr      string `json:"addr,omitempty"      toml:"addr,omitempty"      yaml:"addr,omitempty"`
	Mount     string `json:"mount,omitempty"     toml:"mount,omitempty"     yaml:"mount,omitempty"`
	Path      string `json:"path,omitempty"      toml:"path,omitempty"      yaml:"path,omitempty"`
	Namespace string `json:"namespace,omitempty" toml:"namespace,omitempty" yaml:"namespace,omitempty"`

	// TokenEnv names the environment variable holding the OpenBao token.
	TokenEnv string `json:"tokenEnv,omitempty" toml:"token_env,omitempty" yaml:"token_env,omitempty"`
}

// PaymentSection configures the payment passed to the vendor SDK.
type PaymentSection struct {
	// Amount is expressed in the currency's minor unit.
	Amount      int64  `json:"amount"                toml:"amount"                yaml:"amount"`
	Description string `json:"description,omitempty" toml:"description,omitempty" yaml:"description,omitempty"`
	CallbackURL string `json:"callbackUrl"           toml:"callback_url"          yaml:"callback_url"`
}

// BrowserSection configures the browser hosting dialog pages.
type BrowserSection struct {
	// ControlURL attaches to a running browser instead of launching one.
	ControlURL string `json:"controlUrl,omitempty" toml:"control_url,omitempty" yaml:"control_url,omitempty"`

	Bin               string   `json:"bin,omitempty"               toml:"bin,omitempty"                yaml:"bin,omitempty"`
	Flags             []string `json:"flags,omitempty"             toml:"flags,omitempty"              yaml:"flags,omitempty"`
	Headless          *bool    `json:"headless,omitempty"          toml:"headless,omitempty"           yaml:"headless,omitempty"`
	PageURL           string   `json:"pageUrl,omitempty"           toml:"page_url,omitempty"           yaml:"page_url,omitempty"`
	NavigationTimeout Duration `json:"navigationTimeout,omitempty" toml:"navigation_timeout,omitempty" yaml:"navigation_timeout,omitempty"`
}

// APISection configures the daemon HTTP API.
type APISection struct {
	// Addr to bind the API server, e.g. "0.0.0.0:8090".
	Addr            string      `json:"addr,omitempty"            toml:"addr,omitempty"             yaml:"addr,omitempty"`
	ShutdownTimeout Duration    `json:"shutdownTimeout,omitempty" toml:"shutdown_timeout,omitempty" yaml:"shutdown_timeout,omitempty"`
	CORS            CORSSection `json:"cors,omitempty"            toml:"cors,omitempty"             yaml:"cors,omitempty"`
}

// CORSSection contains Cross-Origin Resource Sharing (CORS) configuration.
type CORSSection struct {
	Enable        bool     `json:"enable,omitempty"           toml:"enable,omitempty"            yaml:"enable,omitempty"`
	Origins       []string `json:"allowOrigins,omitempty"     toml:"allow_origins,omitempty"     yaml:"allow_origins,omitempty"`
	Methods       []string `json:"allowMethods,omitempty"     toml:"allow_methods,omitempty"     yaml:"allow_methods,omitempty"`
	Headers       []string `json:"allowHeaders,omitempty"     toml:"allow_headers,omitempty"     yaml:"allow_headers,omitempty"`
	ExposeHeaders []string `json:"exposeHeaders,omitempty"    toml:"expose_headers,omitempty"    yaml:"expose_headers,omitempty"`
	Credentials   bool     `json:"allowCredentials,omitempty" toml:"allow_credentials,omitempty" yaml:"allow_credentials,omitempty"`
	MaxAge        Duration `json:"maxAge,omitempty"           toml:"max_age,omitempty"           yaml:"max_age,omitempty"`
}

// SessionsSection configures the lifetime of payment dialogs held by the daemon.
type SessionsSection struct {
	// IdleTTL closes dialogs untouched for longer than this.
	IdleTTL Duration `json:"idleTtl,omitempty" toml:"idle_ttl,omitempty" yaml:"idle_ttl,omitempty"`

	// ReapInterval is how often idle dialogs are looked for.
	ReapInterval Duration `json:"reapInterval,omitempty" toml:"reap_interval,omitempty" yaml:"reap_interval,omitempty"`

	// MaxDialogs caps concurrently open dialogs, zero means unlimited.
	MaxDialogs int `json:"maxDialogs,omitempty" toml:"max_dialogs,omitempty" yaml:"max_dialogs,omitempty"`
}

// TelemetrySection configures OTLP trace export.
type TelemetrySection struct {
	Enabled     bool   `json:"enabled,omitempty"     toml:"enabled,omitempty"      yaml:"enabled,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"    toml:"endpoint,omitempty"     yaml:"endpoint,omitempty"`
	Insecure    bool   `json:"insecure,omitempty"    toml:"insecure,omitempty"     yaml:"insecure,omitempty"`
	ServiceName string `json:"serviceName,omitempty" toml:"service_name,omitempty" yaml:"service_name,omitempty"`
}

// EventsSection configures publishing of dialog state transitions to Kafka.
type EventsSection struct {
	Brokers []string `json:"brokers,omitempty" toml:"brokers,omitempty" yaml:"brokers,omitempty"`
	Topic   string   `json:"topic,omitempty"   toml:"topic,omitempty"   yaml:"topic,omitempty"`
}
