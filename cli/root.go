// Package cli implements the missingdata command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/config"
)

// Version is set at build time.
var Version = "0.1.0"

var cfgFile string

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "missingdata",
		Short: "Missing-data mechanisms, imputation and scoring toolkit",
		Long: `missingdata generates synthetic datasets, injects MCAR/MAR/MNAR
missingness, imputes with classical and model-based methods, scores the
results against the ground truth and runs factorial studies across
mechanisms, rates and methods.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./missingdata.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format (table|json|csv)")

	rootCmd.AddCommand(
		newGenerateCommand(),
		newCorruptCommand(),
		newImputeCommand(),
		newScoreCommand(),
		newRunCommand(),
		newVerifyCommand(),
		newMethodsCommand(),
		newHistoryCommand(),
		newVersionCommand(Version),
	)
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// loadConfig loads the configuration with the executing command's flags
// applied on top of file and environment values.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(cfgFile, cmd.Flags())
}
