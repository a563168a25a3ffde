package dialog

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/cvforge/payinit/internal/config"
	"github.com/cvforge/payinit/internal/host"
	"github.com/cvforge/payinit/internal/loader"
	"github.com/cvforge/payinit/internal/merchant"
	"github.com/cvforge/payinit/internal/payment"
)

const (
	loaderTracerName  = "payinit/loader"
	paymentTracerName = "payinit/payment"
)

// NewSource creates the merchant secret source selected by cfg.
func NewSource(cfg config.MerchantSection) (merchant.Source, error) {
	switch cfg.Source {
	case config.MerchantSourceHTTP:
		return merchant.NewHTTPSource(cfg.Endpoint, cfg.APIKey(), nil)
	case config.MerchantSourceOpenBao:
		return merchant.NewOpenBaoSource(merchant.OpenBaoConfig{
			Addr:      cfg.OpenBao.Addr,
			Token:     cfg.OpenBao.Token(),
			Mount:     cfg.OpenBao.Mount,
			Path:      cfg.OpenBao.Path,
			Namespace: cfg.OpenBao.Namespace,
		}, nil)
	case config.MerchantSourceStatic:
		return merchant.StaticSource{secretName(cfg): cfg.Value}, nil
	default:
		return nil, fmt.Errorf("unknown merchant source '%s'", cfg.Source)
	}
}

// LoaderOptions translates script and retry configuration into loader options.
// prober is used when probing is enabled, a nil prober probes with HEAD requests.
func LoaderOptions(cfg *config.Config, prober host.Prober, tp trace.TracerProvider) []loader.Option {
	script := cfg.Script
	retry := cfg.Retry

	opts := []loader.Option{loader.WithURLs(script.URLs...)}

	if g := strings.TrimSpace(script.Global); g != "" {
		opts = append(opts, loader.WithGlobal(g))
	}
	if a := strings.TrimSpace(script.Attribute); a != "" {
		opts = append(opts, loader.WithAttribute(a))
	}
	if script.AttemptTimeout > 0 {
		opts = append(opts, loader.WithAttemptTimeout(time.Duration(script.AttemptTimeout)))
	}
	if script.SettleDelay > 0 {
		opts = append(opts, loader.WithSettleDelay(time.Duration(script.SettleDelay)))
	}

	if script.ProbeEnabled() {
		if prober == nil {
			prober = host.NewHTTPProber(&http.Client{})
		}
		opts = append(opts, loader.WithProbe(prober, script.ProbeTimeout.Or(loader.DefaultProbeTimeout())))
	} else {
		opts = append(opts, loader.WithoutProbe())
	}

	if retry.MaxCycles > 0 {
		opts = append(opts, loader.WithMaxRetries(retry.MaxCycles))
	}

	base := retry.BaseDelay.Or(loader.DefaultBaseDelay())
	switch retry.Policy {
	case config.RetryPolicyConstant:
		opts = append(opts, loader.WithConstantBackoff(base))
	default:
		multiplier := retry.Multiplier
		if multiplier == 0 {
			multiplier = loader.DefaultMultiplier()
		}
		opts = append(opts, loader.WithExponentialBackoff(base, multiplier, retry.MaxDelay.Or(max(base, loader.DefaultMaxDelay()))))
	}

	if tp != nil {
		opts = append(opts, loader.WithTracer(tp.Tracer(loaderTracerName)))
	}

	return opts
}

// MerchantOptions translates merchant configuration into fetcher options.
func MerchantOptions(cfg *config.Config) []merchant.Option {
	opts := []merchant.Option{merchant.WithSecretName(secretName(cfg.Merchant))}
	if cfg.Merchant.Timeout > 0 {
		opts = append(opts, merchant.WithTimeout(time.Duration(cfg.Merchant.Timeout)))
	}
	return opts
}

// PaymentOptions translates payment configuration into orchestrator options.
func PaymentOptions(cfg *config.Config, tp trace.TracerProvider) []payment.Option {
	opts := []payment.Option{
		payment.WithPayment(cfg.Payment.Amount, cfg.Payment.Description, cfg.Payment.CallbackURL),
	}
	if tp != nil {
		opts = append(opts, payment.WithTracer(tp.Tracer(paymentTracerName)))
	}
	return opts
}

// Global returns the vendor global name configured for cfg.
func Global(cfg *config.Config) string {
	if g := strings.TrimSpace(cfg.Script.Global); g != "" {
		return g
	}
	return loader.DefaultGlobal()
}

func secretName(cfg config.MerchantSection) string {
	if name := strings.TrimSpace(cfg.SecretName); name != "" {
		return name
	}
	return merchant.DefaultSecretName()
}
