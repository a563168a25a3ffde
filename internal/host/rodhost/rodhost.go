// Package rodhost implements host.Page on top of a Chrome page driven through the DevTools protocol.
package rodhost

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/hashicorp/go-hclog"

	"github.com/cvforge/payinit/internal/host"
)

const (
	jsOnline = `() => navigator.onLine`

	jsInject = `(src, attr, value) => new Promise((resolve) => {
	const el = document.createElement('script');
	el.src = src;
	el.async = true;
	el.setAttribute(attr, value);
	el.onload = () => resolve('load');
	el.onerror = () => resolve('error');
	(document.head || document.documentElement).appendChild(el);
})`

	jsRemove = `(attr, value) => {
	const sel = value ? 'script[' + CSS.escape(attr) + '="' + CSS.escape(value) + '"]' : 'script[' + CSS.escape(attr) + ']';
	const els = document.querySelectorAll(sel);
	els.forEach((el) => el.remove());
	return els.length;
}`

	jsCount = `(attr) => document.querySelectorAll('script[' + CSS.escape(attr) + ']').length`

	jsDefined = `(name) => typeof window[name] !== 'undefined' && window[name] !== null`

	jsReset = `(name) => {
	try { delete window[name]; } catch (e) {}
	if (typeof window[name] !== 'undefined') { window[name] = undefined; }
	return true;
}`

	jsCallable = `(name, method) => {
	const o = window[name];
	return !!o && typeof o[method] === 'function';
}`

	jsInvoke = `(name, method, args) => {
	const o = window[name];
	if (!o || typeof o[method] !== 'function') {
		throw new Error(name + '.' + method + ' is not a function');
	}
	return Promise.resolve(o[method].apply(o, args)).then(() => true);
}`
)

// Config controls how the browser is reached and how pages are prepared.
type Config struct {
	// ControlURL is the DevTools websocket of an already running browser.
	// When empty a browser is launched.
	ControlURL string

	// Bin is the browser binary used when launching, empty lets the launcher pick one.
	Bin string

	// Flags are extra launch flags in '--name=value' or '--name' form.
	Flags []string

	// Headless launches the browser without a window.
	Headless bool

	// PageURL is the document every new page navigates to before scripts are injected.
	PageURL string

	// NavigationTimeout bounds the initial navigation of new pages.
	NavigationTimeout time.Duration
}

// Browser owns a connected browser and hands out isolated pages.
// NewBrowser should be used to create instances of Browser.
type Browser struct {
	logger  hclog.Logger
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
}

// NewBrowser connects to cfg.ControlURL or launches a new browser.
func NewBrowser(ctx context.Context, logger hclog.Logger, cfg Config) (*Browser, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	l := logger.Named("browser")

	controlURL := strings.TrimSpace(cfg.ControlURL)
	if controlURL == "" {
		launch := launcher.New().Headless(cfg.Headless)
		if cfg.Bin != "" {
			launch = launch.Bin(cfg.Bin)
		}
		for _, raw := range cfg.Flags {
			name, val, hasVal := strings.Cut(strings.TrimLeft(raw, "-"), "=")
			if hasVal {
				launch = launch.Set(flags.Flag(name), val)
			} else {
				launch = launch.Set(flags.Flag(name))
			}
		}

		u, err := launch.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
		l.Debug("Launched browser", "control_url", controlURL, "headless", cfg.Headless)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	l.Info("Connected to browser", "control_url", controlURL)

	return &Browser{
		logger:  l,
		cfg:     cfg,
		browser: b,
	}, nil
}

// NewPage opens a page in its own incognito context and navigates it to the configured page URL.
func (b *Browser) NewPage(ctx context.Context) (*Page, error) {
	b.mu.Lock()
	br := b.browser
	b.mu.Unlock()
	if br == nil {
		return nil, errors.New("browser closed")
	}

	incognito, err := br.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	pageURL := b.cfg.PageURL
	if pageURL == "" {
		pageURL = "about:blank"
	}

	p, err := incognito.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}

	timeout := b.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if err := p.Context(ctx).Timeout(timeout).WaitLoad(); err != nil {
		_ = p.Close()
		_ = incognito.Close()
		return nil, fmt.Errorf("load page '%s': %w", pageURL, err)
	}

	b.logger.Debug("Opened page", "target", p.TargetID, "url", pageURL)

	return &Page{
		logger:     b.logger.Named("page").With("target", string(p.TargetID)),
		page:       p,
		browserCtx: incognito,
	}, nil
}

// Close disconnects from (and, when launched by us, terminates) the browser.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}

// Page is a host.Page backed by a rod page.
type Page struct {
	logger hclog.Logger
	page   *rod.Page

	// browserCtx is the incognito browser context owning page, closing it disposes the context.
	browserCtx *rod.Browser
}

var _ host.Page = (*Page)(nil)

func (p *Page) eval(ctx context.Context, js string, args ...any) (*proto.RuntimeRemoteObject, error) {
	res, err := p.page.Context(ctx).Eval(js, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return res, nil
}

// Online implements host.Page.
func (p *Page) Online(ctx context.Context) (bool, error) {
	res, err := p.eval(ctx, jsOnline)
	if err != nil {
		return false, fmt.Errorf("read online status: %w", err)
	}
	return res.Value.Bool(), nil
}

// InjectScript implements host.Page.
func (p *Page) InjectScript(ctx context.Context, s host.Script) error {
	res, err := p.eval(ctx, jsInject, s.URL, s.Attr, s.Value)
	if err != nil {
		return err
	}
	if res.Value.Str() != "load" {
		return host.ErrScriptLoadFailed
	}
	return nil
}

// RemoveScripts implements host.Page.
func (p *Page) RemoveScripts(ctx context.Context, attr string, value string) (int, error) {
	res, err := p.eval(ctx, jsRemove, attr, value)
	if err != nil {
		return 0, fmt.Errorf("remove scripts: %w", err)
	}
	return res.Value.Int(), nil
}

// CountScripts implements host.Page.
func (p *Page) CountScripts(ctx context.Context, attr string) (int, error) {
	res, err := p.eval(ctx, jsCount, attr)
	if err != nil {
		return 0, fmt.Errorf("count scripts: %w", err)
	}
	return res.Value.Int(), nil
}

// GlobalDefined implements host.Page.
func (p *Page) GlobalDefined(ctx context.Context, name string) (bool, error) {
	res, err := p.eval(ctx, jsDefined, name)
	if err != nil {
		return false, fmt.Errorf("inspect global '%s': %w", name, err)
	}
	return res.Value.Bool(), nil
}

// ResetGlobal implements host.Page.
func (p *Page) ResetGlobal(ctx context.Context, name string) error {
	if _, err := p.eval(ctx, jsReset, name); err != nil {
		return fmt.Errorf("reset global '%s': %w", name, err)
	}
	return nil
}

// Callable implements host.Page.
func (p *Page) Callable(ctx context.Context, global string, method string) (bool, error) {
	res, err := p.eval(ctx, jsCallable, global, method)
	if err != nil {
		return false, fmt.Errorf("inspect %s.%s: %w", global, method, err)
	}
	return res.Value.Bool(), nil
}

// Invoke implements host.Page.
func (p *Page) Invoke(ctx context.Context, global string, method string, args ...any) error {
	if args == nil {
		args = []any{}
	}
	if _, err := p.eval(ctx, jsInvoke, global, method, args); err != nil {
		return fmt.Errorf("call %s.%s: %w", global, method, err)
	}
	return nil
}

// SetOffline toggles network emulation so the page reports (and behaves as) offline.
func (p *Page) SetOffline(ctx context.Context, offline bool) error {
	err := proto.NetworkEmulateNetworkConditions{
		Offline:            offline,
		Latency:            0,
		DownloadThroughput: -1,
		UploadThroughput:   -1,
	}.Call(p.page.Context(ctx))
	if err != nil {
		return fmt.Errorf("emulate network conditions: %w", err)
	}
	p.logger.Debug("Network emulation updated", "offline", offline)
	return nil
}

// Close closes the page and disposes its browser context.
func (p *Page) Close() error {
	pageErr := p.page.Close()
	if pageErr != nil {
		pageErr = fmt.Errorf("close page: %w", pageErr)
	}

	var ctxErr error
	if p.browserCtx != nil {
		if err := p.browserCtx.Close(); err != nil {
			ctxErr = fmt.Errorf("dispose browser context: %w", err)
		}
	}

	return errors.Join(pageErr, ctxErr)
}
