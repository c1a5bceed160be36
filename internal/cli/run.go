package cli

import (
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lambda-janitor/internal/janitor"
	"lambda-janitor/internal/report"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	DryRun bool
	Now    string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Classify every version and act on the result",
		Long: `Run one cleanup pass: delete versions past the retention window and email a
warning listing versions that will be deleted within the alert window.

Example:
  janitor run --dry-run
  janitor run --now 2024-06-30T00:00:00Z --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := parseNow(opts.Now)
			if err != nil {
				return err
			}
			app, err := loadApp(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}

			dryRun := app.Config.DryRun
			if cmd.Flags().Changed("dry-run") {
				dryRun = opts.DryRun
			}

			sum, runErr := app.Runner.Run(cmd.Context(), janitor.RunOptions{Now: now, DryRun: dryRun})
			if err := writeOutput(cmd, opts.Output, sum, func(w io.Writer) error {
				return report.WriteSummaryText(w, sum)
			}); err != nil {
				return err
			}
			switch {
			case runErr != nil:
				return WrapExitError(ExitCommandError, "run failed", runErr)
			case sum.Failed():
				return NewExitError(ExitFailure, "run completed with failures")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "classify and notify without deleting (defaults to DRY_RUN)")
	cmd.Flags().StringVar(&opts.Now, "now", "", "evaluate as of this RFC3339 time instead of the current time")
	return cmd
}

// writeOutput renders v in the structured formats and falls back to text for the rest.
func writeOutput(cmd *cobra.Command, output string, v any, text func(io.Writer) error) error {
	switch output {
	case "json":
		return report.WriteJSON(cmd.OutOrStdout(), v)
	case "yaml":
		return report.WriteYAML(cmd.OutOrStdout(), v)
	default:
		return text(cmd.OutOrStdout())
	}
}

func parseNow(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, WrapExitError(ExitCommandError, "invalid --now", err)
	}
	return t.UTC(), nil
}
