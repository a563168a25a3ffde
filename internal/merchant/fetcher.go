package merchant

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"

	"github.com/cvforge/payinit/internal/domain"
	"github.com/cvforge/payinit/internal/errors"
)

// Fetcher retrieves the merchant configuration once and caches it in memory.
// Concurrent Fetch calls share a single source request.
// NewFetcher should be used to create instances of Fetcher.
type Fetcher struct {
	logger hclog.Logger
	source Source
	opts   Options
	group  singleflight.Group

	mu     sync.Mutex
	gen    uint64
	cached *domain.MerchantConfig
}

// NewFetcher creates a Fetcher reading from source.
func NewFetcher(logger hclog.Logger, source Source, opt ...Option) (*Fetcher, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if nilSource(source) {
		return nil, fmt.Errorf("source cannot be nil")
	}

	opts, err := NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	return &Fetcher{
		logger: logger.Named("merchant"),
		source: source,
		opts:   opts,
	}, nil
}

// Fetch returns the cached merchant configuration, or resolves it from the source.
// Failures wrap errors.ErrConfigMissing or errors.ErrConfigServiceUnreachable and are not cached.
func (f *Fetcher) Fetch(ctx context.Context) (domain.MerchantConfig, error) {
	f.mu.Lock()
	if f.cached != nil {
		cfg := *f.cached
		f.mu.Unlock()
		return cfg, nil
	}
	gen := f.gen
	f.mu.Unlock()

	// The request is shared, so it must not be bound to any single caller's context.
	reqCtx := context.WithoutCancel(ctx)

	ch := f.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		return f.resolve(reqCtx, gen)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.MerchantConfig{}, res.Err
		}
		return res.Val.(domain.MerchantConfig), nil
	case <-ctx.Done():
		return domain.MerchantConfig{}, ctx.Err()
	}
}

// Cached returns the cached merchant configuration, if any.
func (f *Fetcher) Cached() (domain.MerchantConfig, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cached == nil {
		return domain.MerchantConfig{}, false
	}
	return *f.cached, true
}

// Reset drops the cached configuration.
// A request still in flight completes for its current callers but its result is not cached.
func (f *Fetcher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gen++
	f.cached = nil
}

func (f *Fetcher) resolve(ctx context.Context, gen uint64) (domain.MerchantConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	f.logger.Debug("Fetching merchant configuration", "secret", f.opts.SecretName)

	v, err := f.source.Secret(ctx, f.opts.SecretName)
	if err != nil {
		if !stderrors.Is(err, errors.ErrConfigMissing) && !stderrors.Is(err, errors.ErrConfigServiceUnreachable) {
			err = fmt.Errorf("%w: %w", errors.ErrConfigServiceUnreachable, err)
		}
		f.logger.Warn("Fetching merchant configuration failed", "secret", f.opts.SecretName, "error", err)
		return domain.MerchantConfig{}, err
	}

	v = strings.TrimSpace(v)
	if v == "" {
		return domain.MerchantConfig{}, fmt.Errorf("%w: secret '%s' is empty", errors.ErrConfigMissing, f.opts.SecretName)
	}

	cfg := domain.MerchantConfig{MerchantID: v}

	f.mu.Lock()
	if f.gen == gen {
		f.cached = &cfg
	}
	f.mu.Unlock()

	f.logger.Debug("Fetched merchant configuration", "secret", f.opts.SecretName)

	return cfg, nil
}

// nilSource reports whether source is nil or a typed nil pointer or function.
// A nil StaticSource map is a usable empty source.
func nilSource(source Source) bool {
	if source == nil {
		return true
	}
	switch v := reflect.ValueOf(source); v.Kind() {
	case reflect.Pointer, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}
