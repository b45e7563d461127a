// Package report renders study results, scores and dataset summaries as
// terminal tables, JSON or CSV.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/score"
	"github.com/Jac-Zac/Stat-Missing-Data-Project/study"
)

// metricOrder fixes the column order of the pivoted metric tables.
var metricOrder = []struct {
	suffix string
	header string
}{
	{"wasserstein", "W1"},
	{"jsd", "JSD"},
	{"ks", "KS"},
	{"rmse", "RMSE"},
	{"mae", "MAE"},
	{"match_rate", "Match"},
}

// RenderSummary prints the aggregated study summary, one row per
// method x mechanism x rate x column cell with the metrics pivoted into
// columns.
func RenderSummary(w io.Writer, result *study.Result) {
	type cellKey struct {
		method    string
		mechanism string
		rate      float64
		column    string
	}
	type cell struct {
		key     cellKey
		n       int
		metrics map[string]float64
	}

	var order []cellKey
	cells := make(map[cellKey]*cell)
	for _, s := range result.Summary {
		column, metric := splitMetric(s.Metric)
		k := cellKey{method: s.Method, mechanism: s.Mechanism, rate: s.Rate, column: column}
		c, ok := cells[k]
		if !ok {
			c = &cell{key: k, metrics: make(map[string]float64)}
			cells[k] = c
			order = append(order, k)
		}
		c.metrics[metric] = s.Mean
		if s.N > c.n {
			c.n = s.N
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := table.Row{"Method", "Mechanism", "Rate", "Column", "N"}
	for _, m := range metricOrder {
		header = append(header, m.header)
	}
	t.AppendHeader(header)

	for _, k := range order {
		c := cells[k]
		row := table.Row{k.method, k.mechanism, formatFloat(k.rate), k.column, c.n}
		for _, m := range metricOrder {
			if v, ok := c.metrics[m.suffix]; ok {
				row = append(row, formatFloat(v))
			} else {
				row = append(row, "-")
			}
		}
		t.AppendRow(row)
	}
	t.Render()

	_, _ = fmt.Fprintf(w, "run %s: %d trials, %d failed\n",
		result.ID, len(result.Trials), result.Failures())
}

// RenderColumnScores prints per-column scores, one row per scored column.
func RenderColumnScores(w io.Writer, scores []score.ColumnScore) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Column", "Kind", "Missing", "W1", "JSD", "KS", "RMSE", "MAE", "Match"})

	for _, cs := range scores {
		t.AppendRow(table.Row{
			cs.Column,
			cs.Kind,
			cs.MissingCells,
			formatMetric(cs.Wasserstein),
			formatMetric(cs.JSD),
			formatMetric(cs.KS),
			formatMetric(cs.RMSE),
			formatMetric(cs.MAE),
			formatMetric(cs.MatchRate),
		})
	}
	t.Render()
}

// RenderTableSummary prints descriptive statistics per column.
func RenderTableSummary(w io.Writer, summaries []score.ColumnSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Column", "Kind", "N", "Missing", "Mean", "Std Dev", "Min", "Median", "Max", "Mode"})

	for _, cs := range summaries {
		row := table.Row{
			cs.Name,
			cs.Kind,
			cs.N,
			fmt.Sprintf("%d (%.1f%%)", cs.MissingCount, cs.MissingRate*100),
		}
		if cs.Stats != nil {
			row = append(row,
				formatFloat(cs.Stats.Mean),
				formatFloat(cs.Stats.StdDev),
				formatFloat(cs.Stats.Min),
				formatFloat(cs.Stats.Median),
				formatFloat(cs.Stats.Max),
				"-")
		} else {
			mode := cs.Mode
			if mode == "" {
				mode = "-"
			}
			row = append(row, "-", "-", "-", "-", "-", mode)
		}
		t.AppendRow(row)
	}
	t.Render()
}

// RenderRunRecords prints the study run log, newest first.
func RenderRunRecords(w io.Writer, records []*study.RunRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Name", "Started", "Completed", "Trials", "Failures"})

	for _, rec := range records {
		completed := "-"
		if rec.CompletedAt != nil {
			completed = rec.CompletedAt.UTC().Format(time.RFC3339)
		}
		t.AppendRow(table.Row{
			rec.ID,
			rec.Name,
			rec.StartedAt.UTC().Format(time.RFC3339),
			completed,
			rec.Trials,
			rec.Failures,
		})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d runs)\n", len(records))
}

// RenderModelDrift prints the coefficient comparison of a model refit, one
// row per coefficient.
func RenderModelDrift(w io.Writer, drift *score.ModelDriftResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Coefficient", "Truth", "Imputed", "Delta"})

	t.AppendRow(table.Row{
		"(intercept)",
		formatFloat(drift.Truth.Intercept),
		formatFloat(drift.Imputed.Intercept),
		formatFloat(drift.CoefDelta["(intercept)"]),
	})
	names := make([]string, 0, len(drift.Truth.Coeffs))
	for name := range drift.Truth.Coeffs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t.AppendRow(table.Row{
			name,
			formatFloat(drift.Truth.Coeffs[name]),
			formatFloat(drift.Imputed.Coeffs[name]),
			formatFloat(drift.CoefDelta[name]),
		})
	}
	t.Render()

	_, _ = fmt.Fprintf(w, "max delta %s, R2 %s on truth (%d rows) vs %s imputed (%d rows)\n",
		formatFloat(drift.MaxDelta),
		formatFloat(drift.Truth.R2), drift.Truth.Rows,
		formatFloat(drift.Imputed.R2), drift.Imputed.Rows)
}

// RenderChecks prints the checks of a reproducibility validation.
func RenderChecks(w io.Writer, result *study.ReproducibilityResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Check", "Status", "Detail"})

	passed := 0
	for _, c := range result.Checks {
		status := "FAIL"
		if c.Passed {
			status = "ok"
			passed++
		}
		t.AppendRow(table.Row{c.Name, status, c.Detail})
	}
	t.Render()

	verdict := "NOT REPRODUCIBLE"
	if result.Passed {
		verdict = "reproducible"
	}
	_, _ = fmt.Fprintf(w, "trial %s: %d/%d checks passed, %s\n",
		result.TrialID, passed, len(result.Checks), verdict)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteCSV writes the study summary as flat CSV rows.
func WriteCSV(w io.Writer, result *study.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"method", "mechanism", "rate", "metric", "n", "mean", "stdDev", "ciLower", "ciUpper"}); err != nil {
		return fmt.Errorf("report: failed to write csv header: %w", err)
	}
	for _, s := range result.Summary {
		row := []string{
			s.Method,
			s.Mechanism,
			strconv.FormatFloat(s.Rate, 'g', -1, 64),
			s.Metric,
			strconv.Itoa(s.N),
			strconv.FormatFloat(s.Mean, 'g', -1, 64),
			strconv.FormatFloat(s.StdDev, 'g', -1, 64),
			strconv.FormatFloat(s.CILower, 'g', -1, 64),
			strconv.FormatFloat(s.CIUpper, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("report: failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteScoresCSV writes per-column scores as flat CSV rows. Metrics that did
// not apply are left empty.
func WriteScoresCSV(w io.Writer, scores []score.ColumnScore) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"column", "kind", "missing_cells", "wasserstein", "jsd", "ks", "rmse", "mae", "match_rate"}); err != nil {
		return fmt.Errorf("report: failed to write csv header: %w", err)
	}
	for _, cs := range scores {
		row := []string{
			cs.Column,
			cs.Kind,
			strconv.Itoa(cs.MissingCells),
			csvMetric(cs.Wasserstein),
			csvMetric(cs.JSD),
			csvMetric(cs.KS),
			csvMetric(cs.RMSE),
			csvMetric(cs.MAE),
			csvMetric(cs.MatchRate),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("report: failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvMetric(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

// splitMetric splits a flattened "column.metric" key on its last dot.
func splitMetric(key string) (column, metric string) {
	i := strings.LastIndex(key, ".")
	if i < 0 {
		return key, ""
	}
	return key[:i], key[i+1:]
}

func formatMetric(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatFloat(*v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}
