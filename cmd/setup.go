package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/cvforge/payinit/internal/cmd"
	"github.com/cvforge/payinit/internal/config"
	"github.com/cvforge/payinit/internal/dialog"
	"github.com/cvforge/payinit/internal/telemetry"
)

// dialogRuntime holds what a command needs to build payment dialogs.
type dialogRuntime struct {
	logger    hclog.Logger
	telemetry *telemetry.Provider
	browser   io.Closer
	factory   *dialog.Factory
}

// newDialogRuntime starts tracing and the browser, then creates a dialog factory for cfg.
// Whatever was started is released when an error is returned.
func newDialogRuntime(
	ctx context.Context,
	logger hclog.Logger,
	cfg *config.Config,
	launch dialog.BrowserLauncher,
	offline bool,
) (_ *dialogRuntime, err error) {
	rt := &dialogRuntime{logger: logger}
	defer func() {
		if err != nil {
			if cerr := rt.Close(context.WithoutCancel(ctx)); cerr != nil {
				logger.Warn("Error releasing dialog runtime", "error", cerr)
			}
		}
	}()

	rt.telemetry, err = telemetry.NewProvider(ctx, logger, telemetryConfig(cfg.Telemetry))
	if err != nil {
		return nil, fmt.Errorf("error configuring telemetry: %w", err)
	}

	source, err := dialog.NewSource(cfg.Merchant)
	if err != nil {
		return nil, fmt.Errorf("error configuring merchant source: %w", err)
	}

	pages, browser, err := launch(ctx, logger, cfg.Browser, offline)
	if err != nil {
		return nil, fmt.Errorf("error launching browser: %w", err)
	}
	rt.browser = browser

	rt.factory, err = dialog.NewFactory(logger, cfg, pages, source, nil, rt.telemetry.TracerProvider())
	if err != nil {
		return nil, fmt.Errorf("error configuring payment dialogs: %w", err)
	}

	return rt, nil
}

// Close releases the browser and flushes pending spans.
func (rt *dialogRuntime) Close(ctx context.Context) error {
	var errs []error

	if rt.browser != nil {
		if err := rt.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing browser: %w", err))
		}
	}
	if rt.telemetry != nil {
		if err := rt.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down telemetry: %w", err))
		}
	}

	return errors.Join(errs...)
}

func telemetryConfig(cfg config.TelemetrySection) telemetry.Config {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = config.DefaultServiceName
	}

	return telemetry.Config{
		Enabled:     cfg.Enabled,
		Endpoint:    cfg.Endpoint,
		Insecure:    cfg.Insecure,
		ServiceName: serviceName,
		Version:     cmd.Version(),
	}
}
