package contracts

import (
	"context"

	"github.com/cvforge/payinit/internal/session"
)

// DialogManager provides access to the payment dialogs held by the daemon.
type DialogManager interface {
	// Open creates a dialog and starts its initialization.
	Open(ctx context.Context) (session.Info, error)

	// Get returns a single dialog.
	Get(id string) (session.Info, error)

	// List returns every open dialog, oldest first.
	List() []session.Info

	// Retry restarts initialization of a dialog in the error state.
	Retry(ctx context.Context, id string) (session.Info, error)

	// Pay starts the vendor payment flow of a ready dialog.
	Pay(ctx context.Context, id string) error

	// Close closes a dialog and releases its resources.
	Close(ctx context.Context, id string) error
}
