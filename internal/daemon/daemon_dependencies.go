package daemon

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hashicorp/go-hclog"

	"github.com/cvforge/payinit/internal/contracts"
)

// SessionManager is the dialog manager driven by the daemon.
type SessionManager interface {
	contracts.DialogManager

	// Reap closes idle dialogs and returns their ids.
	Reap(ctx context.Context) []string

	// CloseAll closes every open dialog.
	CloseAll(ctx context.Context) error
}

// Dependencies contains required dependencies for the Daemon.
// NewDependencies should be used to create instances of Dependencies.
type Dependencies struct {
	// APIAddr specifies the network address for the APIServer to bind (e.g., "0.0.0.0:8090").
	APIAddr string

	// Logger for daemon and subcomponent (API server) operations.
	Logger hclog.Logger

	// Sessions holds the payment dialogs served by the daemon.
	Sessions SessionManager
}

// NewDependencies creates and validates Dependencies.
func NewDependencies(logger hclog.Logger, apiAddr string, sessions SessionManager) (Dependencies, error) {
	deps := Dependencies{
		APIAddr:  apiAddr,
		Logger:   logger,
		Sessions: sessions,
	}

	if err := deps.Validate(); err != nil {
		return Dependencies{}, err
	}

	return deps, nil
}

// Validate ensures all required dependencies are provided and valid.
func (d Dependencies) Validate() error {
	if d.Logger == nil || reflect.ValueOf(d.Logger).IsNil() {
		return fmt.Errorf("logger cannot be nil")
	}

	if err := validateAddr(d.APIAddr); err != nil {
		return fmt.Errorf("invalid API address '%s': %w", d.APIAddr, err)
	}

	if d.Sessions == nil || reflect.ValueOf(d.Sessions).IsNil() {
		return fmt.Errorf("session manager cannot be nil")
	}

	return nil
}
