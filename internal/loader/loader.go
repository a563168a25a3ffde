// Package loader injects the vendor payment SDK script into a host page, walking an ordered list
// of candidate URLs with bounded retry cycles.
package loader

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cvforge/payinit/internal/domain"
	internalerrors "github.com/cvforge/payinit/internal/errors"
	"github.com/cvforge/payinit/internal/host"
)

// cleanupTimeout bounds page work performed on behalf of an already cancelled run.
const cleanupTimeout = 5 * time.Second

// Loader loads the vendor SDK script into a page.
// At most one load run is in flight at a time.
// NewLoader should be used to create instances of Loader.
type Loader struct {
	logger hclog.Logger
	page   host.Page
	opts   Options

	// cbMu is held while a completion callback runs, Cleanup acquires it to wait out a running callback.
	cbMu sync.Mutex

	mu         sync.Mutex
	gen        uint64
	lastRun    uint64
	inFlight   bool
	cancel     context.CancelFunc
	attempt    domain.LoadAttempt
	injections int
}

// NewLoader creates a Loader for page.
func NewLoader(logger hclog.Logger, page host.Page, opt ...Option) (*Loader, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if page == nil || reflect.ValueOf(page).IsNil() {
		return nil, fmt.Errorf("page cannot be nil")
	}

	opts, err := NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	return &Loader{
		logger: logger.Named("loader"),
		page:   page,
		opts:   opts,
	}, nil
}

// Load starts loading the vendor script in the background.
// It returns false, without injecting anything, when a load is already in flight.
// Exactly one of onSuccess or onFailure is called once the run completes, unless Cleanup is called first,
// in which case neither is called. The callbacks must not call Cleanup.
func (l *Loader) Load(onSuccess func(), onFailure func(error)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inFlight {
		l.logger.Debug("Load ignored, already in flight", "url_index", l.attempt.URLIndex, "retry", l.attempt.RetryCount)
		return false
	}

	l.gen++
	gen := l.gen
	l.lastRun = gen
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.inFlight = true
	l.attempt = domain.LoadAttempt{StartedAt: time.Now()}

	go l.run(ctx, gen, onSuccess, onFailure)

	return true
}

// Cleanup cancels any run in flight, removes every vendor script from the page, discards the vendor global
// and resets all counters. No completion callback fires after Cleanup returns.
func (l *Loader) Cleanup(ctx context.Context) error {
	l.mu.Lock()
	l.gen++
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	wasInFlight := l.inFlight
	l.inFlight = false
	l.attempt = domain.LoadAttempt{}
	l.injections = 0
	l.mu.Unlock()

	// Wait for a callback that passed its generation check before the bump.
	l.cbMu.Lock()
	l.cbMu.Unlock() //nolint:staticcheck

	removed, removeErr := l.page.RemoveScripts(ctx, l.opts.Attribute, "")
	resetErr := l.page.ResetGlobal(ctx, l.opts.Global)

	l.logger.Debug("Cleaned up", "was_in_flight", wasInFlight, "removed_scripts", removed)

	var errs []error
	if removeErr != nil {
		errs = append(errs, fmt.Errorf("remove vendor scripts: %w", removeErr))
	}
	if resetErr != nil {
		errs = append(errs, fmt.Errorf("reset vendor global: %w", resetErr))
	}

	return errors.Join(errs...)
}

// InFlight reports whether a load run is in progress.
func (l *Loader) InFlight() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

// Attempt returns the current load attempt, the boolean is false when no run is in flight.
func (l *Loader) Attempt() (domain.LoadAttempt, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempt, l.inFlight
}

// Injections returns the number of script injections performed since the last Cleanup.
func (l *Loader) Injections() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.injections
}

func (l *Loader) run(ctx context.Context, gen uint64, onSuccess func(), onFailure func(error)) {
	ctx, span := l.opts.Tracer.Start(ctx, "loader.Load",
		trace.WithAttributes(
			attribute.Int("loader.urls", len(l.opts.URLs)),
			attribute.Int("loader.max_retries", l.opts.MaxRetries),
		),
	)

	err := l.loop(ctx, gen)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	l.finish(gen, err, onSuccess, onFailure)
}

func (l *Loader) finish(gen uint64, err error, onSuccess func(), onFailure func(error)) {
	l.cbMu.Lock()
	defer l.cbMu.Unlock()

	l.mu.Lock()
	if l.gen != gen {
		l.mu.Unlock()
		l.logger.Trace("Dropping stale load completion", "generation", gen)
		return
	}
	l.inFlight = false
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	attempt := l.attempt
	l.mu.Unlock()

	if err != nil {
		l.logger.Warn("Loading payment SDK failed", "retry", attempt.RetryCount, "error", err)
		if onFailure != nil {
			onFailure(err)
		}
		return
	}

	l.logger.Info("Loaded payment SDK", "url", l.opts.URLs[attempt.URLIndex], "retry", attempt.RetryCount)
	if onSuccess != nil {
		onSuccess()
	}
}

func (l *Loader) loop(ctx context.Context, gen uint64) error {
	online, err := l.page.Online(ctx)
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		l.logger.Warn("Could not read online status, assuming online", "error", err)
	case !online:
		return internalerrors.ErrNoConnectivity
	}

	bo := l.opts.newBackOff()
	cycle := 0
	var last error

	for {
		for idx, url := range l.opts.URLs {
			if !l.track(gen, idx, cycle) {
				return context.Canceled
			}

			err := l.try(ctx, gen, url)
			if err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			last = err
			l.logger.Debug("Script attempt failed", "url", url, "url_index", idx, "retry", cycle, "error", err)
		}

		cycle++
		if !l.track(gen, 0, cycle) {
			return context.Canceled
		}
		if cycle >= l.opts.MaxRetries {
			return fmt.Errorf("%w after %d cycles: %w", internalerrors.ErrRetriesExhausted, cycle, last)
		}

		delay := bo.NextBackOff()
		l.logger.Debug("Retrying script load", "retry", cycle, "delay", delay)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// try performs a single probe-inject-settle-check attempt for url.
func (l *Loader) try(ctx context.Context, gen uint64, url string) error {
	if l.opts.ProbeEnabled && l.opts.Prober != nil {
		pctx, cancel := context.WithTimeout(ctx, l.opts.ProbeTimeout)
		err := l.opts.Prober.Probe(pctx, url)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: probe '%s': %w", internalerrors.ErrServiceUnavailable, url, err)
		}
	}

	script := host.Script{
		URL:   url,
		Attr:  l.opts.Attribute,
		Value: strconv.FormatUint(gen, 10),
	}

	// A script from an earlier attempt may have registered the global after it was given up on.
	if err := l.page.ResetGlobal(ctx, l.opts.Global); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Warn("Failed to reset vendor global before injection", "url", url, "error", err)
	}

	l.mu.Lock()
	if l.gen == gen {
		l.injections++
	}
	l.mu.Unlock()

	actx, cancel := context.WithTimeout(ctx, l.opts.AttemptTimeout)
	err := l.page.InjectScript(actx, script)
	cancel()

	if ctx.Err() != nil {
		// The run was cancelled while the script was loading, the element may have outlived Cleanup.
		l.discard(ctx, gen, script)
		return ctx.Err()
	}
	if err != nil {
		l.discard(ctx, gen, script)
		return fmt.Errorf("%w: load '%s': %w", internalerrors.ErrServiceUnavailable, url, err)
	}

	if err := sleep(ctx, l.opts.SettleDelay); err != nil {
		l.discard(ctx, gen, script)
		return err
	}

	defined, err := l.page.GlobalDefined(ctx, l.opts.Global)
	if err != nil || !defined {
		l.discard(ctx, gen, script)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return fmt.Errorf("%w: '%s' from '%s': %w", internalerrors.ErrSDKNotRegistered, l.opts.Global, url, err)
		}
		return fmt.Errorf("%w: '%s' from '%s'", internalerrors.ErrSDKNotRegistered, l.opts.Global, url)
	}

	return nil
}

// discard removes the script elements injected by run gen and drops whatever global its script registered.
// The global is left alone once a newer run has started, it may belong to that run.
func (l *Loader) discard(ctx context.Context, gen uint64, script host.Script) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if _, err := l.page.RemoveScripts(ctx, script.Attr, script.Value); err != nil {
		l.logger.Warn("Failed to remove vendor script", "url", script.URL, "error", err)
	}

	l.mu.Lock()
	superseded := l.lastRun != gen
	l.mu.Unlock()
	if superseded {
		return
	}

	if err := l.page.ResetGlobal(ctx, l.opts.Global); err != nil {
		l.logger.Warn("Failed to reset vendor global", "url", script.URL, "error", err)
	}
}

// track records the current position of run gen, it returns false when the run is stale.
func (l *Loader) track(gen uint64, urlIndex int, retry int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.gen != gen {
		return false
	}
	l.attempt.URLIndex = urlIndex
	l.attempt.RetryCount = retry
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
