package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the janitor version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{"version": Version, "go": runtime.Version()}
			return writeOutput(cmd, rootOpts.Output, info, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "janitor %s (%s)\n", Version, runtime.Version())
				return err
			})
		},
	}
}
