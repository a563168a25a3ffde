package daemon

import (
	"context"
	stdErrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Daemon serves payment dialogs over the HTTP API and closes the ones left idle.
// NewDaemon should be used to create instances of Daemon.
type Daemon struct {
	logger                 hclog.Logger
	apiServer              *APIServer
	sessions               SessionManager
	reapInterval           time.Duration
	sessionShutdownTimeout time.Duration
}

// NewDaemon creates a new Daemon instance with the provided dependencies and options.
func NewDaemon(deps Dependencies, opt ...Option) (*Daemon, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid daemon dependencies: %w", err)
	}

	opts, err := NewOptions(opt...)
	if err != nil {
		return nil, fmt.Errorf("invalid daemon options: %w", err)
	}

	apiDeps, err := NewAPIDependencies(deps.Logger, deps.Sessions, deps.APIAddr)
	if err != nil {
		return nil, err
	}

	apiServer, err := NewAPIServer(apiDeps, opts.APIOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create daemon API server: %w", err)
	}

	return &Daemon{
		logger:                 deps.Logger.Named("daemon"),
		apiServer:              apiServer,
		sessions:               deps.Sessions,
		reapInterval:           opts.ReapInterval,
		sessionShutdownTimeout: opts.SessionShutdownTimeout,
	}, nil
}

// StartAndManage runs the API server and the idle dialog reaper until ctx is canceled,
// then closes every open dialog.
func (d *Daemon) StartAndManage(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.reapLoop(runCtx, d.reapInterval)
	}()

	err := d.apiServer.Start(runCtx)
	cancel()
	wg.Wait()

	d.closeSessions(ctx)

	if err != nil && !stdErrors.Is(err, context.Canceled) {
		return fmt.Errorf("API server failed: %w", err)
	}

	return nil
}

func (d *Daemon) reapLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Stopping idle dialog reaper")
			return
		case <-ticker.C:
			if ids := d.sessions.Reap(ctx); len(ids) > 0 {
				d.logger.Info("Reaped idle dialogs", "count", len(ids))
			}
		}
	}
}

func (d *Daemon) closeSessions(ctx context.Context) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.sessionShutdownTimeout)
	defer cancel()

	d.logger.Info("Closing open dialogs")
	if err := d.sessions.CloseAll(closeCtx); err != nil {
		d.logger.Error("Error closing dialogs", "error", err)
	}
}
