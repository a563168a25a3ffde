package session

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/cvforge/payinit/internal/domain"
	"github.com/cvforge/payinit/internal/errors"
	"github.com/cvforge/payinit/internal/payment"
)

type fakeDialog struct {
	mu        sync.Mutex
	snap      domain.Snapshot
	listeners []payment.Listener
	openErr   error
	payErr    error
	calls     []string
}

func (d *fakeDialog) record(call string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
}

func (d *fakeDialog) set(state domain.State) {
	d.mu.Lock()
	d.snap = domain.Snapshot{State: state}
	snap := d.snap
	listeners := append([]payment.Listener(nil), d.listeners...)
	d.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (d *fakeDialog) Open(context.Context) error {
	d.record("open")
	if d.openErr != nil {
		return d.openErr
	}
	d.set(domain.StateLoadingScript)
	return nil
}

func (d *fakeDialog) Retry(context.Context) error {
	d.record("retry")
	if d.Snapshot().State != domain.StateError {
		return fmt.Errorf("%w: cannot retry", errors.ErrInvalidTransition)
	}
	d.set(domain.StateLoadingScript)
	return nil
}

func (d *fakeDialog) Close(context.Context) error {
	d.record("close")
	d.set(domain.StateIdle)
	return nil
}

func (d *fakeDialog) Pay(context.Context) error {
	d.record("pay")
	return d.payErr
}

func (d *fakeDialog) Snapshot() domain.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snap
}

func (d *fakeDialog) Subscribe(l payment.Listener) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
	idx := len(d.listeners) - 1
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.listeners[idx] = func(domain.Snapshot) {}
	}
}

func (d *fakeDialog) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

type closer struct {
	mu     sync.Mutex
	closed int
}

func (c *closer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *closer) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeFactory struct {
	mu      sync.Mutex
	dialogs []*fakeDialog
	closers []*closer
	openErr error
	err     error
}

func (f *fakeFactory) NewDialog(context.Context) (Dialog, io.Closer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, nil, f.err
	}

	d := &fakeDialog{snap: domain.Snapshot{State: domain.StateIdle}, openErr: f.openErr}
	c := &closer{}
	f.dialogs = append(f.dialogs, d)
	f.closers = append(f.closers, c)
	return d, c, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]domain.State
}

func (p *recordingPublisher) PublishTransition(_ context.Context, id string, snap domain.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = map[string][]domain.State{}
	}
	p.events[id] = append(p.events[id], snap.State)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) States(id string) []domain.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.State(nil), p.events[id]...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(t *testing.T, f *fakeFactory, opt ...Option) *Manager {
	t.Helper()

	m, err := NewManager(hclog.NewNullLogger(), f, opt...)
	require.NoError(t, err)
	return m
}

func TestNewManager_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewManager(nil, &fakeFactory{})
	require.EqualError(t, err, "logger cannot be nil")

	_, err = NewManager(hclog.NewNullLogger(), nil)
	require.EqualError(t, err, "dialog factory cannot be nil")

	_, err = NewManager(hclog.NewNullLogger(), &fakeFactory{}, WithMaxDialogs(-1))
	require.EqualError(t, err, "max dialogs cannot be negative, got -1")

	_, err = NewManager(hclog.NewNullLogger(), &fakeFactory{}, WithIdleTTL(-time.Second))
	require.EqualError(t, err, "idle ttl cannot be negative, got -1s")

	_, err = NewManager(hclog.NewNullLogger(), &fakeFactory{}, WithCloseTimeout(0))
	require.EqualError(t, err, "close timeout must be positive, got 0s")

	_, err = NewManager(hclog.NewNullLogger(), &fakeFactory{}, WithPublisher(nil))
	require.EqualError(t, err, "publisher cannot be nil")

	_, err = NewManager(hclog.NewNullLogger(), &fakeFactory{}, WithClock(nil))
	require.EqualError(t, err, "clock cannot be nil")
}

func TestManager_OpenGetList(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{}
	pub := &recordingPublisher{}
	m := newTestManager(t, f, WithPublisher(pub))

	first, err := m.Open(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.Equal(t, domain.StateLoadingScript, first.Snapshot.State)

	second, err := m.Open(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	got, err := m.Get(first.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)

	ids := []string{}
	for _, info := range m.List() {
		ids = append(ids, info.ID)
	}
	require.ElementsMatch(t, []string{first.ID, second.ID}, ids)
	require.Equal(t, 2, m.Len())

	require.Equal(t, []domain.State{domain.StateLoadingScript}, pub.States(first.ID))
}

func TestManager_NotFound(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &fakeFactory{})
	ctx := context.Background()

	_, err := m.Get("missing")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	_, err = m.Retry(ctx, "missing")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	require.ErrorIs(t, m.Pay(ctx, "missing"), errors.ErrSessionNotFound)
	require.ErrorIs(t, m.Close(ctx, "missing"), errors.ErrSessionNotFound)
}

func TestManager_OpenFailures(t *testing.T) {
	t.Parallel()

	t.Run("factory error", func(t *testing.T) {
		t.Parallel()

		m := newTestManager(t, &fakeFactory{err: fmt.Errorf("no browser")})
		_, err := m.Open(context.Background())
		require.EqualError(t, err, "creating dialog: no browser")
		require.Zero(t, m.Len())
	})

	t.Run("open error releases resources", func(t *testing.T) {
		t.Parallel()

		f := &fakeFactory{openErr: fmt.Errorf("%w: busy", errors.ErrInvalidTransition)}
		m := newTestManager(t, f)

		_, err := m.Open(context.Background())
		require.ErrorIs(t, err, errors.ErrInvalidTransition)
		require.Zero(t, m.Len())
		require.Len(t, f.closers, 1)
		require.Equal(t, 1, f.closers[0].Closed())
		require.Equal(t, []string{"open", "close"}, f.dialogs[0].Calls())
	})
}

func TestManager_MaxDialogs(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &fakeFactory{}, WithMaxDialogs(1))
	ctx := context.Background()

	info, err := m.Open(ctx)
	require.NoError(t, err)

	_, err = m.Open(ctx)
	require.ErrorIs(t, err, errors.ErrSessionLimitReached)

	require.NoError(t, m.Close(ctx, info.ID))

	_, err = m.Open(ctx)
	require.NoError(t, err)
}

func TestManager_RetryAndPay(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{}
	m := newTestManager(t, f)
	ctx := context.Background()

	info, err := m.Open(ctx)
	require.NoError(t, err)

	_, err = m.Retry(ctx, info.ID)
	require.ErrorIs(t, err, errors.ErrInvalidTransition)

	f.dialogs[0].set(domain.StateError)
	got, err := m.Retry(ctx, info.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StateLoadingScript, got.Snapshot.State)

	f.dialogs[0].payErr = fmt.Errorf("%w: state is 'loadingScript'", errors.ErrNotReady)
	require.ErrorIs(t, m.Pay(ctx, info.ID), errors.ErrNotReady)

	require.Equal(t, []string{"open", "retry", "retry", "pay"}, f.dialogs[0].Calls())
}

func TestManager_Close(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{}
	pub := &recordingPublisher{}
	m := newTestManager(t, f, WithPublisher(pub))
	ctx := context.Background()

	info, err := m.Open(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Close(ctx, info.ID))
	require.Equal(t, 1, f.closers[0].Closed())
	require.Equal(t, []domain.State{domain.StateLoadingScript, domain.StateIdle}, pub.States(info.ID))

	_, err = m.Get(info.ID)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	// Unsubscribed on close.
	f.dialogs[0].set(domain.StateError)
	require.Len(t, pub.States(info.ID), 2)
}

func TestManager_Reap(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	f := &fakeFactory{}
	m := newTestManager(t, f, WithIdleTTL(time.Minute), WithClock(clock.Now))
	ctx := context.Background()

	stale, err := m.Open(ctx)
	require.NoError(t, err)

	clock.Advance(45 * time.Second)
	fresh, err := m.Open(ctx)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	require.Equal(t, []string{stale.ID}, m.Reap(ctx))
	require.Equal(t, 1, f.closers[0].Closed())

	_, err = m.Get(stale.ID)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	// Get counts as activity.
	clock.Advance(50 * time.Second)
	_, err = m.Get(fresh.ID)
	require.NoError(t, err)
	clock.Advance(50 * time.Second)
	require.Empty(t, m.Reap(ctx))
	require.Equal(t, 1, m.Len())
}

func TestManager_ReapDisabled(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, &fakeFactory{}, WithClock(clock.Now))

	_, err := m.Open(context.Background())
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	require.Nil(t, m.Reap(context.Background()))
	require.Equal(t, 1, m.Len())
}

func TestManager_CloseAll(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{}
	m := newTestManager(t, f)
	ctx := context.Background()

	for range 3 {
		_, err := m.Open(ctx)
		require.NoError(t, err)
	}

	require.NoError(t, m.CloseAll(ctx))
	require.Zero(t, m.Len())
	for _, c := range f.closers {
		require.Equal(t, 1, c.Closed())
	}
}

func TestManager_ConcurrentOpen(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &fakeFactory{}, WithMaxDialogs(5))

	var wg sync.WaitGroup
	results := make(chan error, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Open(context.Background())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	opened := 0
	for err := range results {
		if err == nil {
			opened++
			continue
		}
		require.ErrorIs(t, err, errors.ErrSessionLimitReached)
	}
	require.Equal(t, 5, opened)
	require.Equal(t, 5, m.Len())
}
