package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"lambda-janitor/internal/bootstrap"
	"lambda-janitor/internal/shared/config"
)

// Version is stamped at build time with -ldflags "-X lambda-janitor/internal/cli.Version=...".
var Version = "dev"

// ValidOutputs defines the allowed output formats.
var ValidOutputs = []string{"text", "json", "yaml"}

// RootOptions holds global flags and the hooks tests use to swap dependencies.
type RootOptions struct {
	Output string

	// LoadConfig defaults to config.Load.
	LoadConfig func() (config.Config, error)
	// BuildApp defaults to bootstrap.Build.
	BuildApp func(ctx context.Context, cfg config.Config) (*bootstrap.App, error)
}

// NewRootCommand creates the janitor command tree.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	if opts == nil {
		opts = &RootOptions{}
	}
	if opts.LoadConfig == nil {
		opts.LoadConfig = config.Load
	}
	if opts.BuildApp == nil {
		opts.BuildApp = bootstrap.Build
	}

	cmd := &cobra.Command{
		Use:   "janitor",
		Short: "Clean up unused AWS Lambda function versions",
		Long: `janitor deletes published Lambda versions that have not been used within the
retention window, and emails a warning for versions that will be deleted soon.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidOutput(opts.Output) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid output %q: must be one of %v", opts.Output, ValidOutputs))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", "text", "output format (text|json|yaml)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))
	return cmd
}

// loadApp reads configuration and wires the application.
func loadApp(ctx context.Context, opts *RootOptions) (*bootstrap.App, error) {
	cfg, err := opts.LoadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load configuration", err)
	}
	app, err := opts.BuildApp(ctx, cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "build application", err)
	}
	return app, nil
}

func isValidOutput(output string) bool {
	for _, o := range ValidOutputs {
		if o == output {
			return true
		}
	}
	return false
}
