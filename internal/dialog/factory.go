// Package dialog assembles payment dialogs (page, script loader, merchant fetcher, SDK initializer and
// orchestrator) from configuration.
package dialog

import (
	"context"
	"fmt"
	"io"
	"reflect"

	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/trace"

	"github.com/cvforge/payinit/internal/config"
	"github.com/cvforge/payinit/internal/host"
	"github.com/cvforge/payinit/internal/host/rodhost"
	"github.com/cvforge/payinit/internal/loader"
	"github.com/cvforge/payinit/internal/merchant"
	"github.com/cvforge/payinit/internal/payment"
	"github.com/cvforge/payinit/internal/sdk"
	"github.com/cvforge/payinit/internal/session"
)

var _ session.Factory = (*Factory)(nil)

// Page is a host page that must be closed once its dialog is done.
type Page interface {
	host.Page
	io.Closer
}

// PageOpener opens a fresh page for a new dialog.
type PageOpener func(ctx context.Context) (Page, error)

// RodPages opens dialog pages in b.
func RodPages(b *rodhost.Browser) PageOpener {
	return func(ctx context.Context) (Page, error) {
		p, err := b.NewPage(ctx)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// Dialog is an assembled payment dialog and the page it runs in.
type Dialog struct {
	*payment.Orchestrator
	Page Page
}

// Factory builds dialogs sharing a merchant secret source.
// NewFactory should be used to create instances of Factory.
type Factory struct {
	logger      hclog.Logger
	pages       PageOpener
	global      string
	loaderOpts  []loader.Option
	fetcherOpts []merchant.Option
	paymentOpts []payment.Option
	source      merchant.Source
}

// NewFactory creates a Factory for cfg.
// prober and tp may be nil, in which case HEAD probing and no-op tracing are used.
func NewFactory(
	logger hclog.Logger,
	cfg *config.Config,
	pages PageOpener,
	source merchant.Source,
	prober host.Prober,
	tp trace.TracerProvider,
) (*Factory, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pages == nil {
		return nil, fmt.Errorf("page opener cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("merchant source cannot be nil")
	}

	f := &Factory{
		logger:      logger,
		pages:       pages,
		global:      Global(cfg),
		loaderOpts:  LoaderOptions(cfg, prober, tp),
		fetcherOpts: MerchantOptions(cfg),
		paymentOpts: PaymentOptions(cfg, tp),
		source:      source,
	}

	// Surface option errors now rather than on the first dialog.
	if _, err := loader.NewOptions(f.loaderOpts...); err != nil {
		return nil, fmt.Errorf("invalid script configuration: %w", err)
	}
	if _, err := merchant.NewOptions(f.fetcherOpts...); err != nil {
		return nil, fmt.Errorf("invalid merchant configuration: %w", err)
	}
	if _, err := payment.NewOptions(f.paymentOpts...); err != nil {
		return nil, fmt.Errorf("invalid payment configuration: %w", err)
	}

	return f, nil
}

// Build opens a page and assembles an idle dialog in it.
func (f *Factory) Build(ctx context.Context) (*Dialog, error) {
	page, err := f.pages(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}

	orchestrator, err := f.assemble(page)
	if err != nil {
		if cerr := page.Close(); cerr != nil {
			f.logger.Warn("Error closing page", "error", cerr)
		}
		return nil, err
	}

	return &Dialog{Orchestrator: orchestrator, Page: page}, nil
}

// NewDialog implements session.Factory.
func (f *Factory) NewDialog(ctx context.Context) (session.Dialog, io.Closer, error) {
	d, err := f.Build(ctx)
	if err != nil {
		return nil, nil, err
	}
	return d.Orchestrator, d.Page, nil
}

func (f *Factory) assemble(page host.Page) (*payment.Orchestrator, error) {
	l, err := loader.NewLoader(f.logger, page, f.loaderOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating script loader: %w", err)
	}

	fetcher, err := merchant.NewFetcher(f.logger, f.source, f.fetcherOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating merchant fetcher: %w", err)
	}

	initializer, err := sdk.NewInitializer(f.logger, page, f.global)
	if err != nil {
		return nil, fmt.Errorf("creating sdk initializer: %w", err)
	}

	o, err := payment.NewOrchestrator(f.logger, l, fetcher, initializer, f.paymentOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	return o, nil
}
