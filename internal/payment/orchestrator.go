// Package payment drives a payment dialog through script loading, merchant configuration and SDK initialization.
package payment

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cvforge/payinit/internal/domain"
	"github.com/cvforge/payinit/internal/errors"
	"github.com/cvforge/payinit/internal/sdk"
)

// ScriptLoader loads the vendor SDK script.
type ScriptLoader interface {
	Load(onSuccess func(), onFailure func(error)) bool
	Cleanup(ctx context.Context) error
}

// ConfigFetcher resolves the merchant configuration.
type ConfigFetcher interface {
	Fetch(ctx context.Context) (domain.MerchantConfig, error)
	Cached() (domain.MerchantConfig, bool)
	Reset()
}

// SDKInitializer initializes the vendor SDK.
type SDKInitializer interface {
	Initialize(ctx context.Context, req sdk.Request) (*sdk.Handle, error)
	Reset()
}

// Listener receives every state transition of an Orchestrator, in order.
// Listeners are called synchronously and must not call back into the Orchestrator's Open, Retry or Close.
type Listener func(domain.Snapshot)

type subscription struct {
	id int
	fn Listener
}

// Orchestrator is the payment initialization state machine of a single dialog.
// NewOrchestrator should be used to create instances of Orchestrator.
type Orchestrator struct {
	logger      hclog.Logger
	loader      ScriptLoader
	fetcher     ConfigFetcher
	initializer SDKInitializer
	opts        Options

	// opMu serializes Open, Retry and Close.
	opMu sync.Mutex

	// notifyMu keeps listener notifications in transition order, it is acquired while holding mu.
	notifyMu sync.Mutex

	mu          sync.Mutex
	gen         uint64
	snapshot    domain.Snapshot
	handle      *sdk.Handle
	stageCancel context.CancelFunc
	span        trace.Span
	listeners   []subscription
	nextID      int
}

// NewOrchestrator creates an idle Orchestrator.
func NewOrchestrator(
	logger hclog.Logger,
	loader ScriptLoader,
	fetcher ConfigFetcher,
	initializer SDKInitializer,
	opt ...Option,
) (*Orchestrator, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if loader == nil || reflect.ValueOf(loader).IsNil() {
		return nil, fmt.Errorf("script loader cannot be nil")
	}
	if fetcher == nil || reflect.ValueOf(fetcher).IsNil() {
		return nil, fmt.Errorf("config fetcher cannot be nil")
	}
	if initializer == nil || reflect.ValueOf(initializer).IsNil() {
		return nil, fmt.Errorf("sdk initializer cannot be nil")
	}

	opts, err := NewOptions(opt...)
	if err != nil {
		return nil, err
	}
	if opts.Amount <= 0 {
		return nil, fmt.Errorf("payment amount is required")
	}

	return &Orchestrator{
		logger:      logger.Named("payment"),
		loader:      loader,
		fetcher:     fetcher,
		initializer: initializer,
		opts:        opts,
		snapshot: domain.Snapshot{
			State:     domain.StateIdle,
			UpdatedAt: time.Now(),
		},
	}, nil
}

// Open starts initialization from the idle state.
func (o *Orchestrator) Open(ctx context.Context) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	if state := o.Snapshot().State; state != domain.StateIdle {
		return fmt.Errorf("%w: cannot open from '%s'", errors.ErrInvalidTransition, state)
	}

	return o.start(ctx)
}

// Retry restarts initialization from scratch, it is only accepted in the error state.
func (o *Orchestrator) Retry(ctx context.Context) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	if state := o.Snapshot().State; state != domain.StateError {
		return fmt.Errorf("%w: cannot retry from '%s'", errors.ErrInvalidTransition, state)
	}

	return o.start(ctx)
}

// Close cancels any work in progress, cleans the page and returns to idle. It is accepted from any state.
// The merchant configuration cache is dropped.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	o.mu.Lock()
	o.gen++
	gen := o.gen
	prev := o.snapshot.State
	o.cancelStageLocked()
	o.mu.Unlock()

	err := o.cleanup(ctx)
	o.fetcher.Reset()

	if prev != domain.StateIdle && o.transition(gen, domain.StateIdle, nil, nil) {
		o.logger.Debug("Dialog closed", "from", prev)
	}

	return err
}

// Pay starts the vendor payment flow, it is only accepted in the ready state.
func (o *Orchestrator) Pay(ctx context.Context) error {
	o.mu.Lock()
	state := o.snapshot.State
	h := o.handle
	o.mu.Unlock()

	if state != domain.StateReady || !h.Valid() {
		return fmt.Errorf("%w: state is '%s'", errors.ErrNotReady, state)
	}

	if err := h.StartPayment(ctx); err != nil {
		o.logger.Warn("Starting payment failed", "error", err)
		return err
	}

	o.logger.Info("Payment started")
	return nil
}

// Snapshot returns the current externally observable state.
func (o *Orchestrator) Snapshot() domain.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot
}

// Subscribe registers l for every subsequent transition and returns a function removing it.
func (o *Orchestrator) Subscribe(l Listener) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextID++
	id := o.nextID
	o.listeners = append(o.listeners, subscription{id: id, fn: l})

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			for i, s := range o.listeners {
				if s.id == id {
					o.listeners = append(o.listeners[:i:i], o.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// start resets every component and begins a new run. The caller holds opMu.
func (o *Orchestrator) start(ctx context.Context) error {
	o.mu.Lock()
	o.gen++
	gen := o.gen
	o.cancelStageLocked()
	o.mu.Unlock()

	if err := o.cleanup(ctx); err != nil {
		o.logger.Warn("Cleanup before start reported errors", "error", err)
	}

	o.mu.Lock()
	stageCtx, cancel := context.WithCancel(context.Background())
	stageCtx, span := o.opts.Tracer.Start(stageCtx, "payment.Initialize",
		trace.WithAttributes(attribute.Int("payment.attempt", o.snapshot.Attempts+1)),
	)
	o.stageCancel = cancel
	o.span = span
	o.snapshot.Attempts++
	o.mu.Unlock()

	if !o.transition(gen, domain.StateLoadingScript, nil, nil) {
		return nil
	}

	started := o.loader.Load(
		func() { o.scriptLoaded(stageCtx, gen) },
		func(err error) { o.fail(gen, err) },
	)
	if !started {
		o.fail(gen, fmt.Errorf("%w: script load already in flight", errors.ErrInvalidTransition))
	}

	return nil
}

// scriptLoaded continues a run once the vendor script registered its global.
func (o *Orchestrator) scriptLoaded(ctx context.Context, gen uint64) {
	cfg, ok := o.fetcher.Cached()
	if !ok {
		if !o.transition(gen, domain.StateFetchingConfig, nil, nil) {
			return
		}

		var err error
		cfg, err = o.fetcher.Fetch(ctx)
		if err != nil {
			o.fail(gen, err)
			return
		}
	} else {
		o.logger.Debug("Using cached merchant configuration")
	}

	if !o.transition(gen, domain.StateInitializingSDK, nil, nil) {
		return
	}

	h, err := o.initializer.Initialize(ctx, o.opts.request(cfg.MerchantID))
	if err != nil {
		o.fail(gen, err)
		return
	}

	if !o.transition(gen, domain.StateReady, nil, h) {
		h.Invalidate()
	}
}

func (o *Orchestrator) fail(gen uint64, err error) {
	if o.transition(gen, domain.StateError, err, nil) {
		o.logger.Warn("Payment initialization failed", "reason", errors.ReasonOf(err), "error", err)
	}
}

// transition moves to state when gen is still current and notifies listeners.
// It returns false, changing nothing, when gen is stale.
func (o *Orchestrator) transition(gen uint64, state domain.State, cause error, h *sdk.Handle) bool {
	o.mu.Lock()
	if o.gen != gen {
		o.mu.Unlock()
		return false
	}

	prev := o.snapshot.State
	if prev == domain.StateReady && state != domain.StateReady && o.handle != nil {
		o.handle.Invalidate()
		o.handle = nil
	}
	if h != nil {
		o.handle = h
	}

	reason := errors.ReasonOf(cause)
	snap := domain.Snapshot{
		State:     state,
		Reason:    reason,
		Message:   RemediationMessage(reason),
		Attempts:  o.snapshot.Attempts,
		UpdatedAt: time.Now(),
	}
	if cause != nil {
		snap.Detail = cause.Error()
	}
	if state == domain.StateIdle {
		snap.Attempts = 0
	}
	o.snapshot = snap

	o.traceLocked(state, cause)

	listeners := make([]Listener, 0, len(o.listeners))
	for _, s := range o.listeners {
		listeners = append(listeners, s.fn)
	}

	o.notifyMu.Lock()
	o.mu.Unlock()
	defer o.notifyMu.Unlock()

	if prev != state {
		o.logger.Debug("State transition", "from", prev, "to", state, "reason", reason)
	}

	for _, l := range listeners {
		l(snap)
	}

	return true
}

func (o *Orchestrator) traceLocked(state domain.State, cause error) {
	if o.span == nil {
		return
	}

	o.span.AddEvent("state", trace.WithAttributes(attribute.String("payment.state", string(state))))

	switch state {
	case domain.StateReady:
		o.span.SetStatus(codes.Ok, "")
	case domain.StateError:
		o.span.RecordError(cause)
		o.span.SetStatus(codes.Error, string(errors.ReasonOf(cause)))
	case domain.StateIdle:
		o.span.SetStatus(codes.Error, "closed")
	default:
		return
	}

	o.span.End()
	o.span = nil
}

func (o *Orchestrator) cancelStageLocked() {
	if o.stageCancel != nil {
		o.stageCancel()
		o.stageCancel = nil
	}
	if o.handle != nil {
		o.handle.Invalidate()
		o.handle = nil
	}
	if o.span != nil {
		o.span.SetStatus(codes.Error, "cancelled")
		o.span.End()
		o.span = nil
	}
}

// cleanup removes scripts, timers and the SDK instance. The merchant cache survives.
func (o *Orchestrator) cleanup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.CleanupTimeout)
	defer cancel()

	err := o.loader.Cleanup(ctx)
	o.initializer.Reset()

	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	return nil
}

// RemediationMessage returns the message shown to the user for reason.
func RemediationMessage(reason domain.Reason) string {
	switch reason {
	case domain.ReasonNone:
		return ""
	case domain.ReasonNoConnectivity:
		return "Check your internet connection and try again."
	case domain.ReasonServiceUnavailable, domain.ReasonRetriesExhausted:
		return "The payment service is temporarily unavailable, try again later."
	case domain.ReasonSDKNotRegistered, domain.ReasonIncompleteInitialization:
		return "Technical issue loading the payment service. Disable ad blockers or try another browser."
	case domain.ReasonConfigMissing:
		return "Payment is not configured correctly. Contact support."
	case domain.ReasonConfigServiceUnreachable:
		return "Could not reach the payment configuration service, try again later."
	default:
		return "Payment could not be initialized, try again later."
	}
}
