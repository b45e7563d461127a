package score

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
)

// Summary holds descriptive statistics for one numeric sample.
type Summary struct {
	N        int     `json:"n"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Variance float64 `json:"variance"`
	Min      float64 `json:"min"`
	Q1       float64 `json:"q1"`
	Median   float64 `json:"median"`
	Q3       float64 `json:"q3"`
	Max      float64 `json:"max"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"`
}

// Describe computes descriptive statistics over xs.
func Describe(xs []float64) (Summary, error) {
	if len(xs) == 0 {
		return Summary{}, fmt.Errorf("describe: empty sample")
	}

	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	s := Summary{
		N:      len(xs),
		Mean:   stat.Mean(xs, nil),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Q1:     stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Q3:     stat.Quantile(0.75, stat.Empirical, sorted, nil),
	}
	if len(xs) > 1 {
		s.Variance = stat.Variance(xs, nil)
		s.StdDev = math.Sqrt(s.Variance)
	}
	s.Skewness = skewness(xs, s.Mean, s.StdDev)
	s.Kurtosis = kurtosis(xs, s.Mean, s.StdDev)
	return s, nil
}

// skewness is the sample-adjusted third standardized moment.
func skewness(xs []float64, mean, std float64) float64 {
	n := float64(len(xs))
	if n < 3 || std == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		z := (x - mean) / std
		sum += z * z * z
	}
	return (n / ((n - 1) * (n - 2))) * sum
}

// kurtosis is the sample-adjusted excess kurtosis.
func kurtosis(xs []float64, mean, std float64) float64 {
	n := float64(len(xs))
	if n < 4 || std == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		z := (x - mean) / std
		sum += z * z * z * z
	}
	adj := (n * (n + 1)) / ((n - 1) * (n - 2) * (n - 3))
	corr := (3 * (n - 1) * (n - 1)) / ((n - 2) * (n - 3))
	return adj*sum - corr
}

// LevelCount is one categorical level with its observed frequency.
type LevelCount struct {
	Level string `json:"level"`
	Count int    `json:"count"`
}

// ColumnSummary describes one table column, numeric or categorical.
type ColumnSummary struct {
	Name         string       `json:"name"`
	Kind         string       `json:"kind"`
	N            int          `json:"n"`
	MissingCount int          `json:"missing_count"`
	MissingRate  float64      `json:"missing_rate"`
	Stats        *Summary     `json:"stats,omitempty"`
	Levels       []LevelCount `json:"levels,omitempty"`
	Mode         string       `json:"mode,omitempty"`
	Entropy      float64      `json:"entropy,omitempty"`
}

// SummarizeTable describes every column of the table over its observed cells.
func SummarizeTable(t *dataset.Table) ([]ColumnSummary, error) {
	out := make([]ColumnSummary, 0, t.Cols())
	for _, c := range t.Columns {
		cs := ColumnSummary{
			Name:         c.Name,
			Kind:         c.Kind.String(),
			N:            c.Len(),
			MissingCount: c.MissingCount(),
		}
		if c.Len() > 0 {
			cs.MissingRate = float64(cs.MissingCount) / float64(c.Len())
		}
		obs := c.Observed()
		if len(obs) == 0 {
			out = append(out, cs)
			continue
		}
		switch c.Kind {
		case dataset.Numeric:
			s, err := Describe(obs)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.Name, err)
			}
			cs.Stats = &s
		case dataset.Categorical:
			counts := make([]int, len(c.Levels))
			for i, v := range c.Values {
				if !c.Missing[i] {
					counts[int(v)]++
				}
			}
			best := 0
			for code, n := range counts {
				cs.Levels = append(cs.Levels, LevelCount{Level: c.Levels[code], Count: n})
				if n > counts[best] {
					best = code
				}
			}
			cs.Mode = c.Levels[best]
			cs.Entropy = entropy(counts, len(obs))
		}
		out = append(out, cs)
	}
	return out, nil
}

// entropy is the Shannon entropy of the level frequencies, in bits.
func entropy(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, n := range counts {
		if n == 0 {
			continue
		}
		p := float64(n) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}
