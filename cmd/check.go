package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/cvforge/payinit/internal/cmd"
	"github.com/cvforge/payinit/internal/cmd/output"
	cmdopts "github.com/cvforge/payinit/internal/cmd/options"
	"github.com/cvforge/payinit/internal/config"
	"github.com/cvforge/payinit/internal/dialog"
	"github.com/cvforge/payinit/internal/domain"
	"github.com/cvforge/payinit/internal/flags"
	"github.com/cvforge/payinit/internal/printer"
)

const (
	defaultCheckTimeout = 2 * time.Minute
	checkCloseTimeout   = 10 * time.Second
)

// CheckCmd should be used to represent the 'check' command.
type CheckCmd struct {
	*cmd.BaseCmd
	Format     cmd.OutputFormat
	Offline    bool
	ControlURL string
	Timeout    time.Duration
	cfgLoader  config.Loader
	launcher   dialog.BrowserLauncher
}

// NewCheckCmd creates a newly configured (Cobra) command.
func NewCheckCmd(baseCmd *cmd.BaseCmd, opt ...cmdopts.CmdOption) (*cobra.Command, error) {
	opts, err := cmdopts.NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	c := &CheckCmd{
		BaseCmd:   baseCmd,
		Format:    cmd.FormatText,
		cfgLoader: opts.ConfigLoader,
		launcher:  opts.BrowserLauncher,
	}

	cobraCommand := &cobra.Command{
		Use:   "check [--format text|json|yaml] [--offline]",
		Short: "Runs one payment dialog and reports every state transition",
		Long:  c.longDescription(),
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}

	allowed := cmd.AllowedOutputFormats()
	cobraCommand.Flags().Var(
		&c.Format,
		"format",
		fmt.Sprintf("Specify the output format (one of: %s)", allowed.String()),
	)

	cobraCommand.Flags().BoolVar(
		&c.Offline,
		"offline",
		false,
		"Run the dialog in a page without network connectivity",
	)

	cobraCommand.Flags().StringVar(
		&c.ControlURL,
		"control-url",
		"",
		"DevTools URL of a running browser to attach to, overrides the configured browser",
	)

	cobraCommand.Flags().DurationVar(
		&c.Timeout,
		"timeout",
		defaultCheckTimeout,
		"Maximum time to wait for the dialog to become ready or fail",
	)

	return cobraCommand, nil
}

func (c *CheckCmd) longDescription() string {
	return "Opens a single payment dialog in a browser page using the project configuration, " +
		"prints each state transition as it happens and closes the dialog once it is ready or has failed.\n\n" +
		"The command exits with an error when the dialog ends in the error state."
}

func (c *CheckCmd) run(cobraCmd *cobra.Command, _ []string) error {
	logger, err := c.Logger()
	if err != nil {
		return err
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}

	handler, err := cmd.NewOutputHandler[printer.Transition](
		c.Format,
		cobraCmd.OutOrStdout(),
		printer.NewTransitionPrinter(),
	)
	if err != nil {
		return err
	}

	cfg, err := c.cfgLoader.Load(flags.ConfigFile)
	if err != nil {
		return err
	}
	if u := strings.TrimSpace(c.ControlURL); u != "" {
		cfg.Browser.ControlURL = u
	}

	ctx, stop := signal.NotifyContext(cobraCmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	rt, err := newDialogRuntime(ctx, logger, cfg, c.launcher, c.Offline)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Error releasing dialog runtime", "error", err)
		}
	}()

	d, err := rt.factory.Build(ctx)
	if err != nil {
		return fmt.Errorf("error creating payment dialog: %w", err)
	}
	defer closeDialog(ctx, logger, d)

	final, err := watchDialog(ctx, d, handler)
	if err != nil {
		_ = handler.HandleError(err)
		return err
	}
	if err := handler.Finish(); err != nil {
		return err
	}

	if final.State == domain.StateError {
		return fmt.Errorf("payment dialog ended in error state: %s", final.Reason)
	}

	return nil
}

// watchDialog opens d and hands every transition to h until the dialog is ready or has failed.
func watchDialog(ctx context.Context, d *dialog.Dialog, h output.Handler[printer.Transition]) (domain.Snapshot, error) {
	updates := make(chan domain.Snapshot, 16)
	done := make(chan struct{})
	defer close(done)

	unsubscribe := d.Subscribe(func(snap domain.Snapshot) {
		select {
		case updates <- snap:
		case <-done:
		}
	})
	defer unsubscribe()

	start := time.Now()
	if err := d.Open(ctx); err != nil {
		return domain.Snapshot{}, fmt.Errorf("error opening payment dialog: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return domain.Snapshot{}, fmt.Errorf("payment dialog did not settle: %w", ctx.Err())
		case snap := <-updates:
			if err := h.HandleItem(printer.NewTransition(snap, time.Since(start))); err != nil {
				return domain.Snapshot{}, err
			}
			if snap.State == domain.StateReady || snap.State == domain.StateError {
				return snap, nil
			}
		}
	}
}

func closeDialog(ctx context.Context, logger hclog.Logger, d *dialog.Dialog) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), checkCloseTimeout)
	defer cancel()

	if err := d.Close(ctx); err != nil {
		logger.Warn("Error closing payment dialog", "error", err)
	}
	if err := d.Page.Close(); err != nil {
		logger.Warn("Error closing dialog page", "error", err)
	}
}
