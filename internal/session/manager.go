// Package session keeps track of the payment dialogs opened through the daemon.
package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/cvforge/payinit/internal/domain"
	"github.com/cvforge/payinit/internal/errors"
	"github.com/cvforge/payinit/internal/payment"
)

const publishTimeout = 2 * time.Second

var _ Dialog = (*payment.Orchestrator)(nil)

// Dialog is a single payment dialog state machine.
type Dialog interface {
	Open(ctx context.Context) error
	Retry(ctx context.Context) error
	Close(ctx context.Context) error
	Pay(ctx context.Context) error
	Snapshot() domain.Snapshot
	Subscribe(l payment.Listener) func()
}

// Factory creates dialogs along with the resources backing them (e.g. a browser page).
// The returned closer is called once the dialog is closed.
type Factory interface {
	NewDialog(ctx context.Context) (Dialog, io.Closer, error)
}

// Info describes an open dialog.
type Info struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
	Snapshot     domain.Snapshot
}

type entry struct {
	id           string
	dialog       Dialog
	resources    io.Closer
	unsubscribe  func()
	createdAt    time.Time
	lastActivity time.Time
}

// Manager holds open dialogs by id.
// It is safe for concurrent use by multiple goroutines.
type Manager struct {
	logger  hclog.Logger
	factory Factory
	opts    Options

	mu       sync.Mutex
	dialogs  map[string]*entry
	creating int
}

// NewManager creates an empty Manager.
func NewManager(logger hclog.Logger, factory Factory, opt ...Option) (*Manager, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if factory == nil || reflect.ValueOf(factory).IsNil() {
		return nil, fmt.Errorf("dialog factory cannot be nil")
	}

	opts, err := NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	return &Manager{
		logger:  logger.Named("sessions"),
		factory: factory,
		opts:    opts,
		dialogs: make(map[string]*entry),
	}, nil
}

// Open creates a dialog and starts its initialization.
func (m *Manager) Open(ctx context.Context) (Info, error) {
	if err := m.reserve(); err != nil {
		return Info{}, err
	}

	e, err := m.create(ctx)

	m.mu.Lock()
	m.creating--
	if err == nil {
		m.dialogs[e.id] = e
	}
	m.mu.Unlock()

	if err != nil {
		return Info{}, err
	}

	m.logger.Info("Dialog opened", "id", e.id)
	return m.info(e), nil
}

// Get returns the dialog with id, counting as activity.
func (m *Manager) Get(id string) (Info, error) {
	e, err := m.touch(id)
	if err != nil {
		return Info{}, err
	}
	return m.info(e), nil
}

// List returns every open dialog, oldest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.dialogs))
	for _, e := range m.dialogs {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, m.info(e))
	}
	slices.SortFunc(infos, func(a, b Info) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	return infos
}

// Retry restarts initialization of a dialog in the error state.
func (m *Manager) Retry(ctx context.Context, id string) (Info, error) {
	e, err := m.touch(id)
	if err != nil {
		return Info{}, err
	}

	if err := e.dialog.Retry(ctx); err != nil {
		return Info{}, err
	}

	return m.info(e), nil
}

// Pay starts the vendor payment flow of a ready dialog.
func (m *Manager) Pay(ctx context.Context, id string) error {
	e, err := m.touch(id)
	if err != nil {
		return err
	}

	return e.dialog.Pay(ctx)
}

// Close closes a dialog and releases its resources.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.dialogs[id]
	delete(m.dialogs, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrSessionNotFound, id)
	}

	return m.close(ctx, e)
}

// Reap closes dialogs idle for longer than the configured TTL and returns their ids.
func (m *Manager) Reap(ctx context.Context) []string {
	if m.opts.IdleTTL <= 0 {
		return nil
	}

	cutoff := m.opts.Clock().Add(-m.opts.IdleTTL)

	m.mu.Lock()
	var expired []*entry
	for id, e := range m.dialogs {
		if e.lastActivity.Before(cutoff) {
			expired = append(expired, e)
			delete(m.dialogs, id)
		}
	}
	m.mu.Unlock()

	ids := make([]string, 0, len(expired))
	for _, e := range expired {
		if err := m.close(ctx, e); err != nil {
			m.logger.Warn("Error closing idle dialog", "id", e.id, "error", err)
		}
		m.logger.Info("Closed idle dialog", "id", e.id, "idle", m.opts.Clock().Sub(e.lastActivity))
		ids = append(ids, e.id)
	}
	slices.Sort(ids)

	return ids
}

// CloseAll closes every open dialog.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.dialogs))
	for id, e := range m.dialogs {
		entries = append(entries, e)
		delete(m.dialogs, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if err := m.close(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("dialog '%s': %w", e.id, err))
		}
	}

	return stderrors.Join(errs...)
}

// Len returns the number of open dialogs.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.dialogs)
}

func (m *Manager) reserve() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.opts.MaxDialogs > 0 && len(m.dialogs)+m.creating >= m.opts.MaxDialogs {
		return fmt.Errorf("%w: %d open", errors.ErrSessionLimitReached, len(m.dialogs)+m.creating)
	}
	m.creating++

	return nil
}

// create builds and opens a dialog that is not yet reachable by id.
func (m *Manager) create(ctx context.Context) (*entry, error) {
	dialog, resources, err := m.factory.NewDialog(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating dialog: %w", err)
	}

	now := m.opts.Clock()
	e := &entry{
		id:           uuid.NewString(),
		dialog:       dialog,
		resources:    resources,
		createdAt:    now,
		lastActivity: now,
	}
	e.unsubscribe = dialog.Subscribe(m.publisher(e.id))

	if err := dialog.Open(ctx); err != nil {
		if cerr := m.close(ctx, e); cerr != nil {
			m.logger.Warn("Error releasing dialog that failed to open", "id", e.id, "error", cerr)
		}
		return nil, err
	}

	return e, nil
}

func (m *Manager) publisher(id string) payment.Listener {
	logger := m.logger.With("id", id)

	return func(snap domain.Snapshot) {
		logger.Debug("Dialog transition", "state", snap.State, "reason", snap.Reason)

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := m.opts.Publisher.PublishTransition(ctx, id, snap); err != nil {
			logger.Warn("Failed to publish dialog transition", "state", snap.State, "error", err)
		}
	}
}

func (m *Manager) touch(id string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.dialogs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrSessionNotFound, id)
	}
	e.lastActivity = m.opts.Clock()

	return e, nil
}

func (m *Manager) close(ctx context.Context, e *entry) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.CloseTimeout)
	defer cancel()

	var errs []error
	if err := e.dialog.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	e.unsubscribe()
	if e.resources != nil {
		if err := e.resources.Close(); err != nil {
			errs = append(errs, fmt.Errorf("releasing dialog resources: %w", err))
		}
	}

	return stderrors.Join(errs...)
}

func (m *Manager) info(e *entry) Info {
	m.mu.Lock()
	lastActivity := e.lastActivity
	m.mu.Unlock()

	return Info{
		ID:           e.id,
		CreatedAt:    e.createdAt,
		LastActivity: lastActivity,
		Snapshot:     e.dialog.Snapshot(),
	}
}
