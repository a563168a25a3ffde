// Package hosttest provides a scriptable in-memory host.Page for tests.
package hosttest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cvforge/payinit/internal/host"
)

const (
	// OutcomeError fires the script error event.
	OutcomeError Outcome = iota

	// OutcomeLoad fires the load event and registers the vendor global.
	OutcomeLoad

	// OutcomeLoadNoGlobal fires the load event but the vendor global never appears.
	OutcomeLoadNoGlobal

	// OutcomeHang never fires any event, the injection only ends when its context is done.
	OutcomeHang

	// OutcomeManual blocks (ignoring the context) until Release is called for the URL,
	// then fires the load event and registers the vendor global.
	OutcomeManual
)

const (
	// InitOK makes init succeed and exposes startPayment.
	InitOK InitMode = iota

	// InitThrows makes init throw.
	InitThrows

	// InitNoStartPayment makes init succeed without exposing startPayment.
	InitNoStartPayment
)

// Outcome describes what happens when a script URL is injected.
type Outcome int

// InitMode describes how the fake vendor object behaves when init is invoked.
type InitMode int

// Behavior configures the outcome of injecting a script URL.
type Behavior struct {
	Outcome Outcome

	// Delay is waited (honouring the context) before the outcome fires.
	Delay time.Duration
}

// Invocation records a call made through Page.Invoke.
type Invocation struct {
	Global string
	Method string
	Args   []any
}

// Page is an in-memory host.Page. The zero value is not usable, use NewPage.
type Page struct {
	mu          sync.Mutex
	global      string
	online      bool
	onlineErr   error
	behaviors   map[string]Behavior
	manual      map[string]chan struct{}
	scripts     []host.Script
	injections  []string
	maxScripts  int
	globals     map[string]map[string]bool
	initMode    InitMode
	startErr    error
	invocations []Invocation
	closed      bool
}

var _ host.Page = (*Page)(nil)

// NewPage returns an online page whose vendor script registers global.
// URLs without a configured behavior fail with OutcomeError.
func NewPage(global string) *Page {
	return &Page{
		global:    global,
		online:    true,
		behaviors: make(map[string]Behavior),
		manual:    make(map[string]chan struct{}),
		globals:   make(map[string]map[string]bool),
	}
}

// SetBehavior configures what happens when url is injected.
func (p *Page) SetBehavior(url string, b Behavior) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.behaviors[url] = b
	if b.Outcome == OutcomeManual {
		p.manual[url] = make(chan struct{})
	}
	return p
}

// SetOnline configures the platform online status.
func (p *Page) SetOnline(online bool) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = online
	return p
}

// SetOnlineError makes Online fail with err.
func (p *Page) SetOnlineError(err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onlineErr = err
	return p
}

// SetInitMode configures the behavior of the vendor init call.
func (p *Page) SetInitMode(mode InitMode) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initMode = mode
	return p
}

// SetStartPaymentError makes startPayment throw err.
func (p *Page) SetStartPaymentError(err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startErr = err
	return p
}

// Release unblocks an injection of url configured with OutcomeManual.
func (p *Page) Release(url string) {
	p.mu.Lock()
	ch, ok := p.manual[url]
	if ok {
		delete(p.manual, url)
	}
	p.mu.Unlock()

	if ok {
		close(ch)
	}
}

// Close marks the page closed.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Injections returns the URLs injected so far, in order.
func (p *Page) Injections() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.injections)
}

// MaxScripts returns the highest number of vendor script elements present at the same time.
func (p *Page) MaxScripts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxScripts
}

// Scripts returns the script elements currently present.
func (p *Page) Scripts() []host.Script {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.scripts)
}

// Invocations returns the calls made through Invoke.
func (p *Page) Invocations() []Invocation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.invocations)
}

// HasGlobal reports whether the named global is currently defined.
func (p *Page) HasGlobal(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.globals[name]
	return ok
}

// DefineGlobal defines the vendor global exposing init, startPayment appears once init succeeds.
func (p *Page) DefineGlobal(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defineLocked(name)
}

func (p *Page) defineLocked(name string) {
	p.globals[name] = map[string]bool{"init": true}
}

// Online implements host.Page.
func (p *Page) Online(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online, p.onlineErr
}

// InjectScript implements host.Page.
func (p *Page) InjectScript(ctx context.Context, s host.Script) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	b, ok := p.behaviors[s.URL]
	if !ok {
		b = Behavior{Outcome: OutcomeError}
	}
	release := p.manual[s.URL]
	p.scripts = append(p.scripts, s)
	p.injections = append(p.injections, s.URL)
	p.maxScripts = max(p.maxScripts, p.countLocked(s.Attr))
	p.mu.Unlock()

	if b.Delay > 0 {
		t := time.NewTimer(b.Delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}

	switch b.Outcome {
	case OutcomeLoad:
		p.DefineGlobal(p.global)
		return nil
	case OutcomeLoadNoGlobal:
		return nil
	case OutcomeHang:
		<-ctx.Done()
		return ctx.Err()
	case OutcomeManual:
		if release != nil {
			<-release
		}
		p.DefineGlobal(p.global)
		return nil
	default:
		return host.ErrScriptLoadFailed
	}
}

// RemoveScripts implements host.Page.
func (p *Page) RemoveScripts(_ context.Context, attr string, value string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	before := len(p.scripts)
	p.scripts = slices.DeleteFunc(p.scripts, func(s host.Script) bool {
		return s.Attr == attr && (value == "" || s.Value == value)
	})
	return before - len(p.scripts), nil
}

// CountScripts implements host.Page.
func (p *Page) CountScripts(_ context.Context, attr string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.countLocked(attr), nil
}

func (p *Page) countLocked(attr string) int {
	n := 0
	for _, s := range p.scripts {
		if s.Attr == attr {
			n++
		}
	}
	return n
}

// GlobalDefined implements host.Page.
func (p *Page) GlobalDefined(_ context.Context, name string) (bool, error) {
	return p.HasGlobal(name), nil
}

// ResetGlobal implements host.Page.
func (p *Page) ResetGlobal(_ context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.globals, name)
	return nil
}

// Callable implements host.Page.
func (p *Page) Callable(_ context.Context, global string, method string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	obj, ok := p.globals[global]
	if !ok {
		return false, nil
	}
	return obj[method], nil
}

// Invoke implements host.Page.
func (p *Page) Invoke(ctx context.Context, global string, method string, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.invocations = append(p.invocations, Invocation{Global: global, Method: method, Args: args})

	obj, ok := p.globals[global]
	if !ok || !obj[method] {
		return fmt.Errorf("%s.%s is not a function", global, method)
	}

	switch method {
	case "init":
		switch p.initMode {
		case InitThrows:
			return errors.New("vendor rejected merchant")
		case InitNoStartPayment:
			return nil
		default:
			obj["startPayment"] = true
			return nil
		}
	case "startPayment":
		return p.startErr
	default:
		return nil
	}
}
