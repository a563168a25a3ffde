package dialog

import (
	"context"
	"io"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/cvforge/payinit/internal/config"
	"github.com/cvforge/payinit/internal/host/rodhost"
)

// BrowserLauncher starts the browser dialogs run in and returns an opener for its pages.
// The returned closer releases the browser. When offline is set every page reports no connectivity.
type BrowserLauncher func(
	ctx context.Context,
	logger hclog.Logger,
	cfg config.BrowserSection,
	offline bool,
) (PageOpener, io.Closer, error)

// LaunchRod is the BrowserLauncher backed by a rod controlled Chromium.
func LaunchRod(
	ctx context.Context,
	logger hclog.Logger,
	cfg config.BrowserSection,
	offline bool,
) (PageOpener, io.Closer, error) {
	b, err := rodhost.NewBrowser(ctx, logger, RodConfig(cfg))
	if err != nil {
		return nil, nil, err
	}

	if !offline {
		return RodPages(b), b, nil
	}

	return func(ctx context.Context) (Page, error) {
		p, err := b.NewPage(ctx)
		if err != nil {
			return nil, err
		}
		if err := p.SetOffline(ctx, true); err != nil {
			_ = p.Close()
			return nil, err
		}
		return p, nil
	}, b, nil
}

// RodConfig translates browser configuration into rod host configuration.
func RodConfig(cfg config.BrowserSection) rodhost.Config {
	return rodhost.Config{
		ControlURL:        cfg.ControlURL,
		Bin:               cfg.Bin,
		Flags:             cfg.Flags,
		Headless:          cfg.HeadlessEnabled(),
		PageURL:           cfg.PageURL,
		NavigationTimeout: time.Duration(cfg.NavigationTimeout),
	}
}
