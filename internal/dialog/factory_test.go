package dialog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cvforge/payinit/internal/config"
	"github.com/cvforge/payinit/internal/domain"
	"github.com/cvforge/payinit/internal/host/hosttest"
	"github.com/cvforge/payinit/internal/loader"
	"github.com/cvforge/payinit/internal/merchant"
	"github.com/cvforge/payinit/internal/session"
)

const (
	urlA = "https://cdn-a.example.com/sdk.js"
	urlB = "https://cdn-b.example.com/sdk.js"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func boolPtr(b bool) *bool { return &b }

func testConfig() *config.Config {
	return &config.Config{
		Script: config.ScriptSection{
			URLs:           []string{urlA, urlB},
			AttemptTimeout: config.Duration(time.Second),
			SettleDelay:    config.Duration(time.Millisecond),
			Probe:          boolPtr(false),
		},
		Retry: config.RetrySection{
			MaxCycles: 2,
			Policy:    config.RetryPolicyConstant,
			BaseDelay: config.Duration(time.Millisecond),
		},
		Merchant: config.MerchantSection{
			Source: config.MerchantSourceStatic,
			Value:  "merchant-123",
		},
		Payment: config.PaymentSection{
			Amount:      2500,
			Description: "Order 7",
			CallbackURL: "https://shop.example.com/callback",
		},
	}
}

type pagePool struct {
	mu    sync.Mutex
	pages []*hosttest.Page
	setup func(p *hosttest.Page)
	err   error
}

func (pp *pagePool) open(context.Context) (Page, error) {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	if pp.err != nil {
		return nil, pp.err
	}

	p := hosttest.NewPage(loader.DefaultGlobal())
	if pp.setup != nil {
		pp.setup(p)
	}
	pp.pages = append(pp.pages, p)
	return p, nil
}

func (pp *pagePool) page(i int) *hosttest.Page {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return pp.pages[i]
}

func newTestFactory(t *testing.T, cfg *config.Config, pp *pagePool) *Factory {
	t.Helper()

	source, err := NewSource(cfg.Merchant)
	require.NoError(t, err)

	f, err := NewFactory(hclog.NewNullLogger(), cfg, pp.open, source, nil, nil)
	require.NoError(t, err)
	return f
}

func waitForState(t *testing.T, d session.Dialog, want domain.State) domain.Snapshot {
	t.Helper()

	require.Eventually(t, func() bool {
		return d.Snapshot().State == want
	}, 5*time.Second, time.Millisecond, "state never reached %s, last %+v", want, d.Snapshot())

	return d.Snapshot()
}

func TestNewFactory_Validation(t *testing.T) {
	t.Parallel()

	pp := &pagePool{}
	source := merchant.StaticSource{}

	_, err := NewFactory(nil, testConfig(), pp.open, source, nil, nil)
	require.EqualError(t, err, "logger cannot be nil")

	_, err = NewFactory(hclog.NewNullLogger(), nil, pp.open, source, nil, nil)
	require.EqualError(t, err, "config cannot be nil")

	_, err = NewFactory(hclog.NewNullLogger(), testConfig(), nil, source, nil, nil)
	require.EqualError(t, err, "page opener cannot be nil")

	_, err = NewFactory(hclog.NewNullLogger(), testConfig(), pp.open, nil, nil, nil)
	require.EqualError(t, err, "merchant source cannot be nil")

	cfg := testConfig()
	cfg.Payment.Amount = 0
	_, err = NewFactory(hclog.NewNullLogger(), cfg, pp.open, source, nil, nil)
	require.EqualError(t, err, "invalid payment configuration: amount must be positive, got 0")

	cfg = testConfig()
	cfg.Script.URLs = nil
	_, err = NewFactory(hclog.NewNullLogger(), cfg, pp.open, source, nil, nil)
	require.EqualError(t, err, "invalid script configuration: at least one script URL is required")
}

func TestFactory_DialogReachesReady(t *testing.T) {
	t.Parallel()

	pp := &pagePool{setup: func(p *hosttest.Page) {
		p.SetBehavior(urlA, hosttest.Behavior{Outcome: hosttest.OutcomeError})
		p.SetBehavior(urlB, hosttest.Behavior{Outcome: hosttest.OutcomeLoad})
	}}
	f := newTestFactory(t, testConfig(), pp)

	d, closer, err := f.NewDialog(context.Background())
	require.NoError(t, err)

	require.NoError(t, d.Open(context.Background()))
	snap := waitForState(t, d, domain.StateReady)
	require.Equal(t, 1, snap.Attempts)

	page := pp.page(0)
	require.Equal(t, []string{urlA, urlB}, page.Injections())

	invocations := page.Invocations()
	require.NotEmpty(t, invocations)
	require.Equal(t, "init", invocations[0].Method)
	require.Equal(t, []any{map[string]any{
		"merchantId":  "merchant-123",
		"amount":      int64(2500),
		"description": "Order 7",
		"callbackUrl": "https://shop.example.com/callback",
	}}, invocations[0].Args)

	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, closer.Close())
	require.True(t, page.Closed())
	require.Empty(t, page.Scripts())
}

func TestFactory_RetriesExhausted(t *testing.T) {
	t.Parallel()

	pp := &pagePool{}
	f := newTestFactory(t, testConfig(), pp)

	d, closer, err := f.NewDialog(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = d.Close(context.Background())
		_ = closer.Close()
	})

	require.NoError(t, d.Open(context.Background()))
	snap := waitForState(t, d, domain.StateError)
	require.Equal(t, domain.ReasonServiceUnavailable, snap.Reason)
	require.Contains(t, snap.Detail, "after 2 cycles")
	require.Len(t, pp.page(0).Injections(), 4)
}

func TestFactory_PageOpenError(t *testing.T) {
	t.Parallel()

	pp := &pagePool{err: fmt.Errorf("browser closed")}
	f := newTestFactory(t, testConfig(), pp)

	_, _, err := f.NewDialog(context.Background())
	require.EqualError(t, err, "opening page: browser closed")
}

func TestFactory_HTTPMerchantSource(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":"merchant-http"}`))
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig()
	cfg.Merchant = config.MerchantSection{Source: config.MerchantSourceHTTP, Endpoint: srv.URL}

	pp := &pagePool{setup: func(p *hosttest.Page) {
		p.SetBehavior(urlA, hosttest.Behavior{Outcome: hosttest.OutcomeLoad})
	}}
	f := newTestFactory(t, cfg, pp)

	d, err := f.Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = d.Close(context.Background())
		_ = d.Page.Close()
	})

	require.NoError(t, d.Open(context.Background()))
	waitForState(t, d, domain.StateReady)

	args := pp.page(0).Invocations()[0].Args[0].(map[string]any)
	require.Equal(t, "merchant-http", args["merchantId"])
}

func TestNewSource(t *testing.T) {
	t.Setenv("TEST_PAYINIT_BAO_TOKEN", "token")

	tests := []struct {
		name    string
		cfg     config.MerchantSection
		wantErr string
	}{
		{
			name: "http",
			cfg:  config.MerchantSection{Source: config.MerchantSourceHTTP, Endpoint: "https://secrets.example.com"},
		},
		{
			name: "openbao",
			cfg: config.MerchantSection{
				Source: config.MerchantSourceOpenBao,
				OpenBao: config.OpenBaoSection{
					Addr:     "http://127.0.0.1:8200",
					Path:     "payinit",
					TokenEnv: "TEST_PAYINIT_BAO_TOKEN",
				},
			},
		},
		{
			name:    "openbao without token",
			cfg:     config.MerchantSection{Source: config.MerchantSourceOpenBao, OpenBao: config.OpenBaoSection{Addr: "http://127.0.0.1:8200", Path: "payinit", TokenEnv: "TEST_PAYINIT_UNSET"}},
			wantErr: "openbao token cannot be empty",
		},
		{
			name: "static",
			cfg:  config.MerchantSection{Source: config.MerchantSourceStatic, Value: "m"},
		},
		{
			name:    "unknown",
			cfg:     config.MerchantSection{Source: "vault"},
			wantErr: "unknown merchant source 'vault'",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			source, err := NewSource(tc.cfg)
			if tc.wantErr != "" {
				require.EqualError(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, source)
		})
	}
}

func TestLoaderOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *config.Config)
		check  func(t *testing.T, o loader.Options)
	}{
		{
			name:   "defaults with probe enabled",
			mutate: func(c *config.Config) { c.Script = config.ScriptSection{URLs: []string{urlA}}; c.Retry = config.RetrySection{} },
			check: func(t *testing.T, o loader.Options) {
				require.True(t, o.ProbeEnabled)
				require.NotNil(t, o.Prober)
				require.Equal(t, loader.DefaultProbeTimeout(), o.ProbeTimeout)
				require.Equal(t, loader.DefaultMaxRetries(), o.MaxRetries)
				require.Equal(t, loader.BackoffExponential, o.Policy)
				require.Equal(t, loader.DefaultBaseDelay(), o.BaseDelay)
				require.Equal(t, loader.DefaultMaxDelay(), o.MaxDelay)
				require.Equal(t, loader.DefaultGlobal(), o.Global)
			},
		},
		{
			name: "constant policy",
			check: func(t *testing.T, o loader.Options) {
				require.False(t, o.ProbeEnabled)
				require.Equal(t, 2, o.MaxRetries)
				require.Equal(t, loader.BackoffConstant, o.Policy)
				require.Equal(t, time.Millisecond, o.BaseDelay)
				require.Equal(t, []string{urlA, urlB}, o.URLs)
			},
		},
		{
			name: "exponential base above default max",
			mutate: func(c *config.Config) {
				c.Retry = config.RetrySection{Policy: config.RetryPolicyExponential, BaseDelay: config.Duration(20 * time.Second)}
			},
			check: func(t *testing.T, o loader.Options) {
				require.Equal(t, 20*time.Second, o.BaseDelay)
				require.Equal(t, 20*time.Second, o.MaxDelay)
			},
		},
		{
			name: "custom global and attribute",
			mutate: func(c *config.Config) {
				c.Script.Global = "Vendor"
				c.Script.Attribute = "data-vendor"
			},
			check: func(t *testing.T, o loader.Options) {
				require.Equal(t, "Vendor", o.Global)
				require.Equal(t, "data-vendor", o.Attribute)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig()
			if tc.mutate != nil {
				tc.mutate(cfg)
			}

			opts, err := loader.NewOptions(LoaderOptions(cfg, nil, nil)...)
			require.NoError(t, err)
			tc.check(t, opts)
		})
	}
}
