package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/impute"
	"github.com/Jac-Zac/Stat-Missing-Data-Project/report"
)

// methodDescriptions gives each registered method a one-line summary for the
// listing. A method without an entry still shows up, just undescribed.
var methodDescriptions = map[string]string{
	"deletion":   "listwise deletion, drops every row with a missing cell",
	"em":         "EM algorithm under a multivariate normal model",
	"forest":     "random-forest prediction from complete predictor rows",
	"gam":        "additive model with loess smoothers per predictor",
	"hotdeck":    "random donor draws from observed values, optionally within groups",
	"mean":       "substitutes the observed column mean",
	"median":     "substitutes the observed column median",
	"mi":         "multiple imputation via bootstrapped stochastic regression, pooled",
	"mode":       "substitutes the most frequent observed level",
	"regression": "linear regression on complete predictor rows",
	"stochastic": "regression prediction plus residual noise draws",
}

func newMethodsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List the registered imputation methods",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMethods(cmd)
		},
	}
}

type methodInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func runMethods(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	infos := make([]methodInfo, 0, len(impute.Names()))
	for _, name := range impute.Names() {
		infos = append(infos, methodInfo{Name: name, Description: methodDescriptions[name]})
	}

	if cfg.Output.Format == "json" {
		return report.WriteJSON(cmd.OutOrStdout(), infos)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Method", "Description"})
	for _, info := range infos {
		t.AppendRow(table.Row{info.Name, info.Description})
	}
	t.Render()
	return nil
}
