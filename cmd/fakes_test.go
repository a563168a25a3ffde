package cmd

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/cvforge/payinit/internal/cmd"
	"github.com/cvforge/payinit/internal/config"
	"github.com/cvforge/payinit/internal/dialog"
	"github.com/cvforge/payinit/internal/host/hosttest"
	"github.com/cvforge/payinit/internal/loader"
)

const (
	testURLA = "https://cdn-a.example.com/sdk.js"
	testURLB = "https://cdn-b.example.com/sdk.js"
)

func boolPtr(b bool) *bool { return &b }

// testConfig returns a configuration whose dialogs need no network.
func testConfig() *config.Config {
	return &config.Config{
		Script: config.ScriptSection{
			URLs:           []string{testURLA, testURLB},
			AttemptTimeout: config.Duration(time.Second),
			SettleDelay:    config.Duration(time.Millisecond),
			Probe:          boolPtr(false),
		},
		Retry: config.RetrySection{
			MaxCycles: 1,
			Policy:    config.RetryPolicyConstant,
			BaseDelay: config.Duration(time.Millisecond),
		},
		Merchant: config.MerchantSection{
			Source: config.MerchantSourceStatic,
			Value:  "merchant-123",
		},
		Payment: config.PaymentSection{
			Amount:      2500,
			CallbackURL: "https://shop.example.com/callback",
		},
	}
}

func testBaseCmd() *cmd.BaseCmd {
	c := &cmd.BaseCmd{}
	c.SetLogger(hclog.NewNullLogger())
	return c
}

// mockConfigLoader implements config.Loader for testing.
type mockConfigLoader struct {
	cfg *config.Config
	err error
}

func (m *mockConfigLoader) Load(string) (*config.Config, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.cfg, nil
}

// mockConfigInitializer implements config.Initializer for testing.
type mockConfigInitializer struct {
	path string
	err  error
}

func (m *mockConfigInitializer) Init(path string) error {
	m.path = path
	return m.err
}

// fakeBrowser hands out in-memory pages and records how it was launched and released.
type fakeBrowser struct {
	mu        sync.Mutex
	setup     func(p *hosttest.Page)
	launchErr error
	offline   bool
	launched  bool
	closed    bool
	pages     []*hosttest.Page
}

func (b *fakeBrowser) launch(
	_ context.Context,
	_ hclog.Logger,
	_ config.BrowserSection,
	offline bool,
) (dialog.PageOpener, io.Closer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.launchErr != nil {
		return nil, nil, b.launchErr
	}
	b.launched = true
	b.offline = offline

	return b.open, b, nil
}

func (b *fakeBrowser) open(context.Context) (dialog.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := hosttest.NewPage(loader.DefaultGlobal()).SetOnline(!b.offline)
	if b.setup != nil {
		b.setup(p)
	}
	b.pages = append(b.pages, p)
	return p, nil
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBrowser) state() (launched bool, closed bool, pages []*hosttest.Page) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.launched, b.closed, append([]*hosttest.Page(nil), b.pages...)
}

func loadingURL(url string) func(p *hosttest.Page) {
	return func(p *hosttest.Page) {
		p.SetBehavior(url, hosttest.Behavior{Outcome: hosttest.OutcomeLoad})
	}
}
