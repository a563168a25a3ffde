package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cvforge/payinit/internal/cmd"
	cmdopts "github.com/cvforge/payinit/internal/cmd/options"
	"github.com/cvforge/payinit/internal/config"
	"github.com/cvforge/payinit/internal/flags"
)

type RootCmd struct {
	*cmd.BaseCmd
}

// Execute builds the root command and runs it.
func Execute() error {
	rootCmd, err := NewRootCmd(&RootCmd{BaseCmd: &cmd.BaseCmd{}})
	if err != nil {
		return err
	}

	return rootCmd.Execute()
}

// NewRootCmd creates the root command with every subcommand attached.
// Options are passed through to each subcommand.
func NewRootCmd(c *RootCmd, opt ...cmdopts.CmdOption) (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:               fmt.Sprintf("%s <command> [args]", cmd.AppName),
		Short:             "Resilient payment SDK initialization for hosted payment dialogs",
		Long:              c.longDescription(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		Version:           cmd.Version(),
		PersistentPreRunE: c.loadEnv,
	}

	// Global flags
	flags.InitFlags(rootCmd.PersistentFlags())

	fns := []func(baseCmd *cmd.BaseCmd, opt ...cmdopts.CmdOption) (*cobra.Command, error){
		NewInitCmd,
		NewCheckCmd,
		NewServeCmd,
	}

	for _, fn := range fns {
		tempCmd, err := fn(c.BaseCmd, opt...)
		if err != nil {
			return nil, err
		}
		rootCmd.AddCommand(tempCmd)
	}

	return rootCmd, nil
}

func (c *RootCmd) longDescription() string {
	return `The 'payinit' CLI loads a vendor payment SDK the way a payment dialog does: it injects the
vendor script with retries, fetches the merchant configuration, initializes the SDK and reports every
state transition. It can run a single check or serve dialogs over an HTTP API.`
}

// loadEnv loads the .env file before any command reads configuration or secrets.
func (c *RootCmd) loadEnv(_ *cobra.Command, _ []string) error {
	return config.LoadEnvFile(flags.EnvFile)
}
