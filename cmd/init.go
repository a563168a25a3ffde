package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cvforge/payinit/internal/cmd"
	cmdopts "github.com/cvforge/payinit/internal/cmd/options"
	"github.com/cvforge/payinit/internal/config"
	"github.com/cvforge/payinit/internal/flags"
)

// InitCmd writes a configuration skeleton for a new payment page.
type InitCmd struct {
	*cmd.BaseCmd
	cfgInitializer config.Initializer
}

// NewInitCmd creates the command that writes the configuration skeleton.
func NewInitCmd(baseCmd *cmd.BaseCmd, opt ...cmdopts.CmdOption) (*cobra.Command, error) {
	opts, err := cmdopts.NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	c := &InitCmd{
		BaseCmd:        baseCmd,
		cfgInitializer: opts.ConfigInitializer,
	}

	return &cobra.Command{
		Use:   "init",
		Short: "Writes a payment SDK configuration skeleton",
		Long: fmt.Sprintf(
			"Writes a configuration skeleton (%s by default, see --%s or %s) describing where the vendor "+
				"payment SDK is loaded from and where merchant credentials are read.\n\n"+
				"An existing file is never overwritten. Fill in [script] and [merchant], then run 'payinit check'.",
			flags.DefaultConfigFile,
			flags.FlagNameConfigFile,
			flags.EnvVarConfigFile,
		),
		Args: cobra.NoArgs,
		RunE: c.run,
	}, nil
}

func (c *InitCmd) run(cmd *cobra.Command, _ []string) error {
	logger, err := c.Logger()
	if err != nil {
		return err
	}

	file := strings.TrimSpace(flags.ConfigFile)
	if file == "" {
		file = flags.DefaultConfigFile
	}
	path, err := filepath.Abs(file)
	if err != nil {
		return fmt.Errorf("error resolving config file path '%s': %w", file, err)
	}

	if err := c.cfgInitializer.Init(path); err != nil {
		logger.Error("Writing config skeleton failed", "path", path, "error", err)
		return fmt.Errorf("error initializing payinit project: %w", err)
	}
	logger.Info("Wrote config skeleton", "path", path)

	return printNextSteps(cmd.OutOrStdout(), path)
}

func printNextSteps(w io.Writer, path string) error {
	_, err := fmt.Fprintf(w,
		"✅ Wrote %s\n\n"+
			"Next steps:\n"+
			"  1. List the vendor script URLs under [script] urls, in the order they should be tried\n"+
			"  2. Pick a [merchant] source (http, openbao or static) and its credentials\n"+
			"  3. Run 'payinit check' to load the SDK once, or 'payinit serve' to host payment dialogs\n",
		path,
	)
	return err
}
