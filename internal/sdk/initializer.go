// Package sdk initializes the vendor payment SDK on a host page and guards access to the resulting instance.
package sdk

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/cvforge/payinit/internal/errors"
	"github.com/cvforge/payinit/internal/host"
)

const (
	methodInit         = "init"
	methodStartPayment = "startPayment"
)

// Request carries the parameters passed to the vendor init entry point.
type Request struct {
	MerchantID string

	// Amount is expressed in the currency's minor unit.
	Amount int64

	Description string
	CallbackURL string
}

// Validate checks that r can be passed to the vendor.
func (r Request) Validate() error {
	var errs []error

	if strings.TrimSpace(r.MerchantID) == "" {
		errs = append(errs, fmt.Errorf("merchant id cannot be empty"))
	}
	if r.Amount <= 0 {
		errs = append(errs, fmt.Errorf("amount must be positive, got %d", r.Amount))
	}
	if err := ValidateCallbackURL(r.CallbackURL); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", errors.ErrBadRequest, stderrors.Join(errs...))
	}
	return nil
}

// ValidateCallbackURL checks that raw is an absolute http(s) URL.
func ValidateCallbackURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid callback url '%s': %w", raw, err)
	}
	if !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("callback url must be an absolute http(s) url, got '%s'", raw)
	}
	return nil
}

// options returns the vendor init options object.
func (r Request) options() map[string]any {
	return map[string]any{
		"merchantId":  r.MerchantID,
		"amount":      r.Amount,
		"description": r.Description,
		"callbackUrl": r.CallbackURL,
	}
}

// Initializer calls the vendor init entry point and verifies the resulting instance.
// It owns at most one Handle at a time.
// NewInitializer should be used to create instances of Initializer.
type Initializer struct {
	logger hclog.Logger
	page   host.Page
	global string

	mu     sync.Mutex
	handle *Handle
}

// NewInitializer creates an Initializer driving the vendor global on page.
func NewInitializer(logger hclog.Logger, page host.Page, global string) (*Initializer, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if page == nil || reflect.ValueOf(page).IsNil() {
		return nil, fmt.Errorf("page cannot be nil")
	}
	global = strings.TrimSpace(global)
	if global == "" {
		return nil, fmt.Errorf("global name cannot be empty")
	}

	return &Initializer{
		logger: logger.Named("sdk"),
		page:   page,
		global: global,
	}, nil
}

// Initialize calls the vendor init entry point with req and verifies that startPayment is callable afterward.
// The previous handle, if any, is invalidated first.
// Failures wrap errors.ErrIncompleteInitialization.
func (i *Initializer) Initialize(ctx context.Context, req Request) (*Handle, error) {
	i.Reset()

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrIncompleteInitialization, err)
	}

	if err := i.page.Invoke(ctx, i.global, methodInit, req.options()); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s.%s failed: %w", errors.ErrIncompleteInitialization, i.global, methodInit, err)
	}

	// init does not fail loudly on every misconfiguration, the instance only counts once startPayment exists.
	ok, err := i.page.Callable(ctx, i.global, methodStartPayment)
	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		return nil, fmt.Errorf("%w: inspect %s.%s: %w", errors.ErrIncompleteInitialization, i.global, methodStartPayment, err)
	case !ok:
		return nil, fmt.Errorf("%w: %s.%s is not callable", errors.ErrIncompleteInitialization, i.global, methodStartPayment)
	}

	h := &Handle{
		page:   i.page,
		global: i.global,
		valid:  true,
	}

	i.mu.Lock()
	i.handle = h
	i.mu.Unlock()

	i.logger.Info("Payment SDK initialized", "global", i.global, "amount", req.Amount)

	return h, nil
}

// Reset invalidates and drops the current handle.
func (i *Initializer) Reset() {
	i.mu.Lock()
	h := i.handle
	i.handle = nil
	i.mu.Unlock()

	if h != nil {
		h.Invalidate()
	}
}

// Handle references an initialized vendor SDK instance.
// A Handle is only usable until it is invalidated.
type Handle struct {
	page   host.Page
	global string

	mu    sync.RWMutex
	valid bool
}

// Valid reports whether the handle can still be used.
func (h *Handle) Valid() bool {
	if h == nil {
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.valid
}

// Invalidate marks the handle unusable. It is safe to call more than once.
func (h *Handle) Invalidate() {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.valid = false
}

// StartPayment opens the vendor payment flow.
func (h *Handle) StartPayment(ctx context.Context) error {
	if !h.Valid() {
		return errors.ErrHandleInvalidated
	}

	if err := h.page.Invoke(ctx, h.global, methodStartPayment); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", errors.ErrPaymentStartFailed, err)
	}

	return nil
}
