package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/cvforge/payinit/internal/cmd"
	cmdopts "github.com/cvforge/payinit/internal/cmd/options"
	"github.com/cvforge/payinit/internal/config"
	"github.com/cvforge/payinit/internal/daemon"
	"github.com/cvforge/payinit/internal/dialog"
	"github.com/cvforge/payinit/internal/events"
	"github.com/cvforge/payinit/internal/flags"
	"github.com/cvforge/payinit/internal/session"
)

const devAddr = "localhost:8090"

// ServeCmd should be used to represent the 'serve' command.
type ServeCmd struct {
	*cmd.BaseCmd
	Dev       bool
	Addr      string
	cfgLoader config.Loader
	launcher  dialog.BrowserLauncher
}

// NewServeCmd creates a newly configured (Cobra) command.
func NewServeCmd(baseCmd *cmd.BaseCmd, opt ...cmdopts.CmdOption) (*cobra.Command, error) {
	opts, err := cmdopts.NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	c := &ServeCmd{
		BaseCmd:   baseCmd,
		cfgLoader: opts.ConfigLoader,
		launcher:  opts.BrowserLauncher,
	}

	cobraCommand := &cobra.Command{
		Use:   "serve [--dev] [--addr]",
		Short: "Launches a `payinit` daemon instance",
		Long: "Launches a `payinit` daemon instance, which holds payment dialogs in browser pages " +
			"and exposes them through an HTTP API",
		Args: cobra.NoArgs,
		RunE: c.run,
	}

	cobraCommand.Flags().BoolVar(
		&c.Dev,
		"dev",
		false,
		"Run the daemon in development-focused mode",
	)

	cobraCommand.Flags().StringVar(
		&c.Addr,
		"addr",
		config.DefaultAPIAddr,
		"Address for the daemon to bind, overrides the configured address (not applicable in --dev mode)",
	)

	cobraCommand.MarkFlagsMutuallyExclusive("dev", "addr")

	return cobraCommand, nil
}

// run is configured (via NewServeCmd) to be called by the Cobra framework when the command is executed.
// It may return an error (or nil, when there is no error).
func (c *ServeCmd) run(cobraCmd *cobra.Command, _ []string) error {
	logger, err := c.Logger()
	if err != nil {
		return err
	}

	cfg, err := c.cfgLoader.Load(flags.ConfigFile)
	if err != nil {
		return err
	}

	addr := c.resolveAddr(cobraCmd, cfg)

	// Override address for dev mode.
	if c.Dev {
		logger.Info("Development-focused mode", "addr", addr, "override", devAddr)
		addr = devAddr
	}

	// Create the signal handling context for the application.
	daemonCtx, daemonCtxCancel := signal.NotifyContext(
		cobraCmd.Context(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer daemonCtxCancel()

	rt, err := newDialogRuntime(daemonCtx, logger, cfg, c.launcher, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(context.WithoutCancel(daemonCtx)); err != nil {
			logger.Warn("Error releasing dialog runtime", "error", err)
		}
	}()

	publisher, err := newPublisher(logger, cfg.Events)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("Error closing event publisher", "error", err)
		}
	}()

	sessions, err := session.NewManager(
		logger,
		rt.factory,
		session.WithMaxDialogs(cfg.Sessions.MaxDialogs),
		session.WithIdleTTL(cfg.Sessions.IdleTTL.Or(config.DefaultIdleTTL)),
		session.WithPublisher(publisher),
	)
	if err != nil {
		return fmt.Errorf("error configuring session manager: %w", err)
	}

	deps, err := daemon.NewDependencies(logger, addr, sessions)
	if err != nil {
		return fmt.Errorf("error configuring payinit daemon dependencies: %w", err)
	}
	d, err := daemon.NewDaemon(deps, daemon.OptionsFromConfig(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to create payinit daemon instance: %w", err)
	}

	runErr := make(chan error, 1)
	go func() {
		if err := d.StartAndManage(daemonCtx); err != nil && !errors.Is(err, context.Canceled) {
			runErr <- err
		}
		close(runErr)
	}()

	// Print --dev mode banner if required.
	if c.Dev {
		logger.Info("Launching daemon in dev mode", "addr", addr)
		banner := fmt.Sprintf("payinit daemon running in 'dev' mode.\n\n"+
			"  Local API:\thttp://%s/api/v1\n"+
			"  OpenAPI UI:\thttp://%s/docs\n"+
			"  Config file:\t%s\n",
			addr, addr, flags.ConfigFile)

		if flags.LogPath != "" {
			banner += fmt.Sprintf("  Log file:\t%s => (%s)\n", flags.LogPath, flags.LogLevel)
		}

		banner += "\nPress Ctrl+C to stop.\n\n"
		_, _ = fmt.Fprint(cobraCmd.OutOrStdout(), banner)
	}

	select {
	case <-daemonCtx.Done():
		logger.Info("Shutting down daemon")
		err := <-runErr // Wait for cleanup and deferred logging.
		return err      // Graceful Ctrl+C / SIGTERM.
	case err := <-runErr:
		if err != nil {
			logger.Error("daemon exited with error", "error", err)
		}
		return err // Propagate daemon failure.
	}
}

// resolveAddr prefers an explicit --addr flag, then the configured address, then the default.
func (c *ServeCmd) resolveAddr(cobraCmd *cobra.Command, cfg *config.Config) string {
	if cobraCmd.Flags().Changed("addr") {
		return strings.TrimSpace(c.Addr)
	}
	if a := strings.TrimSpace(cfg.API.Addr); a != "" {
		return a
	}
	return strings.TrimSpace(c.Addr)
}

func newPublisher(logger hclog.Logger, cfg config.EventsSection) (events.Publisher, error) {
	if !cfg.Enabled() {
		return events.Nop{}, nil
	}

	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		topic = config.DefaultEventsTopic
	}

	p, err := events.NewKafkaPublisher(logger, cfg.Brokers, topic)
	if err != nil {
		return nil, fmt.Errorf("error configuring event publisher: %w", err)
	}
	return p, nil
}
