package impute

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
)

// Deletion removes every row that has a missing cell (listwise deletion).
type Deletion struct{}

func (Deletion) Name() string { return "deletion" }

func (Deletion) Impute(ctx context.Context, t *dataset.Table) (*dataset.Table, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	complete := t.CompleteRows()
	if len(complete) == 0 {
		return nil, fmt.Errorf("impute: deletion would drop every row of %s", t.Name)
	}
	return t.SelectRows(complete)
}

// SubstituteStat selects the location statistic for Substitute.
type SubstituteStat string

const (
	StatMean   SubstituteStat = "mean"
	StatMedian SubstituteStat = "median"
	StatMode   SubstituteStat = "mode"
)

// Substitute fills every missing cell of a column with a single location
// statistic of its observed values: mean or median for numeric columns, the
// most frequent value otherwise. Categorical columns always take the mode.
type Substitute struct {
	Stat SubstituteStat
}

func (s Substitute) Name() string { return string(s.Stat) }

func (s Substitute) Impute(ctx context.Context, t *dataset.Table) (*dataset.Table, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	out := t.Clone()
	for _, c := range incompleteColumns(out) {
		if err := requireObserved(c); err != nil {
			return nil, err
		}
		fill, err := s.fillValue(c)
		if err != nil {
			return nil, err
		}
		for _, i := range c.MissingIndices() {
			c.SetValue(i, fill)
		}
	}
	return out, nil
}

func (s Substitute) fillValue(c *dataset.Column) (float64, error) {
	obs := c.Observed()
	if c.Kind == dataset.Categorical {
		return modeValue(obs), nil
	}
	switch s.Stat {
	case StatMean:
		return stat.Mean(obs, nil), nil
	case StatMedian:
		sorted := append([]float64(nil), obs...)
		sort.Float64s(sorted)
		return stat.Quantile(0.5, stat.Empirical, sorted, nil), nil
	case StatMode:
		return modeValue(obs), nil
	default:
		return 0, fmt.Errorf("impute: unknown substitute statistic %q", s.Stat)
	}
}

// modeValue returns the most frequent value, breaking ties toward the
// smallest so the result is deterministic.
func modeValue(obs []float64) float64 {
	counts := map[float64]int{}
	for _, v := range obs {
		counts[v]++
	}
	best, bestN := 0.0, -1
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best
}
