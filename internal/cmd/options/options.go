package options

import (
	"fmt"

	"github.com/cvforge/payinit/internal/config"
	"github.com/cvforge/payinit/internal/dialog"
)

type CmdOption func(*CmdOptions) error

type CmdOptions struct {
	ConfigLoader      config.Loader
	ConfigInitializer config.Initializer
	BrowserLauncher   dialog.BrowserLauncher
}

func defaultOptions() CmdOptions {
	configLoader := &config.DefaultLoader{}
	return CmdOptions{
		ConfigLoader:      configLoader,
		ConfigInitializer: configLoader,
		BrowserLauncher:   dialog.LaunchRod,
	}
}

func NewOptions(opt ...CmdOption) (CmdOptions, error) {
	opts := defaultOptions()

	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(&opts); err != nil {
			return CmdOptions{}, err
		}
	}
	return opts, nil
}

func WithConfigLoader(l config.Loader) CmdOption {
	return func(o *CmdOptions) error {
		if l == nil {
			return fmt.Errorf("config loader cannot be nil")
		}
		o.ConfigLoader = l
		return nil
	}
}

func WithConfigInitializer(i config.Initializer) CmdOption {
	return func(o *CmdOptions) error {
		if i == nil {
			return fmt.Errorf("config initializer cannot be nil")
		}
		o.ConfigInitializer = i
		return nil
	}
}

// WithBrowserLauncher replaces the launcher used to start the browser dialogs run in.
func WithBrowserLauncher(l dialog.BrowserLauncher) CmdOption {
	return func(o *CmdOptions) error {
		if l == nil {
			return fmt.Errorf("browser launcher cannot be nil")
		}
		o.BrowserLauncher = l
		return nil
	}
}
