package study

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/score"
)

const defaultConfidenceLevel = 0.95

// MethodSummary aggregates one metric for one method x mechanism x rate cell
// across replications.
type MethodSummary struct {
	Method    string  `json:"method"`    // Imputation method
	Mechanism string  `json:"mechanism"` // Missingness mechanism
	Rate      float64 `json:"rate"`      // Missingness rate
	Metric    string  `json:"metric"`    // column.metric key
	N         int     `json:"n"`         // Replications observed
	Mean      float64 `json:"mean"`      // Mean across replications
	StdDev    float64 `json:"stdDev"`    // Standard deviation
	CILower   float64 `json:"ciLower"`   // Confidence interval lower bound
	CIUpper   float64 `json:"ciUpper"`   // Confidence interval upper bound
}

type summaryKey struct {
	method    string
	mechanism string
	rate      float64
	metric    string
}

// Summarize aggregates successful trials per method x mechanism x rate and
// metric. Confidence intervals use Student-t quantiles on the replication
// spread; a single replication gets a degenerate interval at the mean.
func Summarize(trials []TrialResult, level float64) []MethodSummary {
	if level <= 0 || level >= 1 {
		level = defaultConfidenceLevel
	}

	groups := make(map[summaryKey][]float64)
	for _, tr := range trials {
		if tr.Failed() {
			continue
		}
		flat := score.Flatten(tr.Scores)
		for _, key := range score.MetricKeys(flat) {
			k := summaryKey{
				method:    tr.Trial.Method,
				mechanism: string(tr.Trial.Mechanism.Mechanism),
				rate:      tr.Trial.Rate,
				metric:    key,
			}
			groups[k] = append(groups[k], flat[key])
		}
	}

	summaries := make([]MethodSummary, 0, len(groups))
	for k, values := range groups {
		s := MethodSummary{
			Method:    k.method,
			Mechanism: k.mechanism,
			Rate:      k.rate,
			Metric:    k.metric,
			N:         len(values),
			Mean:      stat.Mean(values, nil),
		}
		if len(values) > 1 {
			s.StdDev = stat.StdDev(values, nil)
			s.CILower, s.CIUpper = confidenceInterval(s.Mean, s.StdDev, len(values), level)
		} else {
			s.CILower, s.CIUpper = s.Mean, s.Mean
		}
		summaries = append(summaries, s)
	}

	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.Method != b.Method {
			return a.Method < b.Method
		}
		if a.Mechanism != b.Mechanism {
			return a.Mechanism < b.Mechanism
		}
		if a.Rate != b.Rate {
			return a.Rate < b.Rate
		}
		return a.Metric < b.Metric
	})
	return summaries
}

// confidenceInterval computes a two-sided Student-t interval for the mean.
func confidenceInterval(mean, sd float64, n int, level float64) (float64, float64) {
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
	q := t.Quantile(1 - (1-level)/2)
	margin := q * sd / math.Sqrt(float64(n))
	return mean - margin, mean + margin
}
