package cli

import (
	"io"

	"github.com/spf13/cobra"

	"lambda-janitor/internal/report"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Now string
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show how every version would be classified, without side effects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := parseNow(opts.Now)
			if err != nil {
				return err
			}
			app, err := loadApp(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}

			plans, err := app.Runner.Plan(cmd.Context(), now)
			if err != nil {
				return WrapExitError(ExitCommandError, "plan failed", err)
			}
			return writeOutput(cmd, opts.Output, plans, func(w io.Writer) error {
				return report.WritePlanText(w, plans)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Now, "now", "", "evaluate as of this RFC3339 time instead of the current time")
	return cmd
}
