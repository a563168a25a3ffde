package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cvforge/payinit/internal/domain"
	"github.com/cvforge/payinit/internal/errors"
	"github.com/cvforge/payinit/internal/session"
)

// fakeSessions implements SessionManager for testing.
type fakeSessions struct {
	mu       sync.Mutex
	dialogs  map[string]session.Info
	limit    int
	payErr   error
	reaps    int
	closeAll int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{dialogs: make(map[string]session.Info)}
}

func (f *fakeSessions) add(id string, state domain.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialogs[id] = session.Info{ID: id, Snapshot: domain.Snapshot{State: state}}
}

func (f *fakeSessions) Open(context.Context) (session.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.limit > 0 && len(f.dialogs) >= f.limit {
		return session.Info{}, errors.ErrSessionLimitReached
	}

	id := fmt.Sprintf("d%d", len(f.dialogs)+1)
	info := session.Info{
		ID:        id,
		CreatedAt: time.Now(),
		Snapshot:  domain.Snapshot{State: domain.StateLoadingScript, Attempts: 1},
	}
	f.dialogs[id] = info
	return info, nil
}

func (f *fakeSessions) Get(id string) (session.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, ok := f.dialogs[id]
	if !ok {
		return session.Info{}, fmt.Errorf("%w: %s", errors.ErrSessionNotFound, id)
	}
	return info, nil
}

func (f *fakeSessions) List() []session.Info {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]session.Info, 0, len(f.dialogs))
	for _, info := range f.dialogs {
		out = append(out, info)
	}
	return out
}

func (f *fakeSessions) Retry(_ context.Context, id string) (session.Info, error) {
	info, err := f.Get(id)
	if err != nil {
		return session.Info{}, err
	}
	if info.Snapshot.State != domain.StateError {
		return session.Info{}, fmt.Errorf("%w: retry from %s", errors.ErrInvalidTransition, info.Snapshot.State)
	}
	return info, nil
}

func (f *fakeSessions) Pay(_ context.Context, id string) error {
	info, err := f.Get(id)
	if err != nil {
		return err
	}
	if info.Snapshot.State != domain.StateReady {
		return errors.ErrNotReady
	}
	return f.payErr
}

func (f *fakeSessions) Close(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.dialogs[id]; !ok {
		return fmt.Errorf("%w: %s", errors.ErrSessionNotFound, id)
	}
	delete(f.dialogs, id)
	return nil
}

func (f *fakeSessions) Reap(context.Context) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reaps++
	return nil
}

func (f *fakeSessions) CloseAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeAll++
	clear(f.dialogs)
	return nil
}

func (f *fakeSessions) counts() (reaps int, closeAll int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reaps, f.closeAll
}
