package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "missingdata v%s\n", version)
			fmt.Fprintln(cmd.OutOrStdout(), "Missing-data mechanisms, imputation and scoring toolkit")
		},
	}
}
