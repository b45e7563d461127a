package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/missing"
)

func newCorruptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corrupt",
		Short: "Inject missing values into a dataset",
		Long: `Inject missing values into one column of a complete CSV dataset
under a chosen mechanism: mcar removes cells at random, mar conditions the
removal probability on a fully observed driver column, mnar conditions it on
the value being removed itself.`,
		Example: `  # 30% missing completely at random
  missingdata corrupt --in wages.csv --target income --rate 0.3 --out holes.csv

  # Missingness in income driven by age
  missingdata corrupt --in wages.csv --target income --rate 0.3 \
    --mechanism mar --driver age --strength 1.5`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCorrupt(cmd)
		},
	}

	flags := cmd.Flags()
	flags.String("in", "", "input CSV path")
	flags.String("out", "", "output CSV path (default: stdout)")
	flags.String("mechanism", "mcar", "missingness mechanism (mcar|mar|mnar)")
	flags.String("target", "", "column that loses values")
	flags.Float64("rate", 0, "expected missingness rate in (0,1)")
	flags.String("driver", "", "conditioning column for mar")
	flags.Float64("strength", 1.0, "slope of the missingness probability")
	flags.Uint64("seed", 1, "random seed")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("rate")
	return cmd
}

func runCorrupt(cmd *cobra.Command) error {
	flags := cmd.Flags()
	inPath, _ := flags.GetString("in")
	outPath, _ := flags.GetString("out")
	mechanism, _ := flags.GetString("mechanism")
	target, _ := flags.GetString("target")
	rate, _ := flags.GetFloat64("rate")
	driver, _ := flags.GetString("driver")
	strength, _ := flags.GetFloat64("strength")
	seed, _ := flags.GetUint64("seed")

	table, err := readTable(inPath)
	if err != nil {
		return err
	}

	plan := missing.Plan{
		Mechanism: missing.Mechanism(mechanism),
		Target:    target,
		Rate:      rate,
		Driver:    driver,
		Strength:  strength,
	}
	rng := rand.New(rand.NewSource(seed))
	corrupted, injected, err := missing.Inject(table, []missing.Plan{plan}, rng)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "injected %d missing cells into %s\n", injected, target)
	return writeTable(cmd, outPath, corrupted)
}
