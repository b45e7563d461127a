package impute

import (
	"context"
	"fmt"
	"math"

	"github.com/kshedden/statmodel/glm"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
)

// Multiple is multiple imputation: it draws M completed tables, each from a
// stochastic regression whose parameters are refit on a bootstrap resample of
// the observed rows, so the imputations carry both residual and parameter
// uncertainty. Categorical cells take a random observed donor per
// imputation. Impute pools the M tables into one (cell means, majority
// labels); ImputeMultiple exposes the raw draws for Rubin-style analysis.
type Multiple struct {
	m   int
	rng *rand.Rand
}

// NewMultiple builds the multiple imputer. Zero m defaults to 5.
func NewMultiple(m int, src rand.Source) (*Multiple, error) {
	if m == 0 {
		m = 5
	}
	if m < 2 {
		return nil, fmt.Errorf("impute: multiple imputation needs at least 2 draws, got %d", m)
	}
	return &Multiple{m: m, rng: rand.New(src)}, nil
}

func (*Multiple) Name() string { return "mi" }

// M returns the number of imputations.
func (mi *Multiple) M() int { return mi.m }

// ImputeMultiple returns the M completed tables.
func (mi *Multiple) ImputeMultiple(ctx context.Context, t *dataset.Table) ([]*dataset.Table, error) {
	tables := make([]*dataset.Table, mi.m)
	for k := range tables {
		if err := checkCtx(ctx); err != nil {
			return nil, err
		}
		out, err := mi.imputeOnce(t)
		if err != nil {
			return nil, fmt.Errorf("imputation %d: %w", k+1, err)
		}
		tables[k] = out
	}
	return tables, nil
}

func (mi *Multiple) Impute(ctx context.Context, t *dataset.Table) (*dataset.Table, error) {
	tables, err := mi.ImputeMultiple(ctx, t)
	if err != nil {
		return nil, err
	}
	return poolTables(t, tables)
}

func (mi *Multiple) imputeOnce(t *dataset.Table) (*dataset.Table, error) {
	out := t.Clone()
	for _, c := range incompleteColumns(out) {
		if err := requireObserved(c); err != nil {
			return nil, err
		}
		rows := c.ObservedIndices()
		preds := completePredictors(t, c.Name)

		switch {
		case c.Kind == dataset.Numeric && len(preds) > 0 && len(rows) > len(preds)+1:
			fit, err := mi.bootstrapFit(c, preds, rows)
			if err != nil {
				return nil, err
			}
			var noise *distuv.Normal
			if fit.residSD > 0 {
				noise = &distuv.Normal{Mu: 0, Sigma: fit.residSD, Src: mi.rng}
			}
			for _, i := range c.MissingIndices() {
				v := fit.predict(preds, i)
				if noise != nil {
					v += noise.Rand()
				}
				c.SetValue(i, v)
			}
		case c.Kind == dataset.Categorical:
			for _, i := range c.MissingIndices() {
				donor := rows[mi.rng.Intn(len(rows))]
				c.SetValue(i, c.Values[donor])
			}
		default:
			fill, err := fallbackFill(c)
			if err != nil {
				return nil, err
			}
			for _, i := range c.MissingIndices() {
				c.SetValue(i, fill)
			}
		}
	}
	return out, nil
}

// bootstrapFit refits the regression on a resample of the observed rows. A
// degenerate resample can defeat the fit; the plain observed rows are the
// fallback.
func (mi *Multiple) bootstrapFit(c *dataset.Column, preds []*dataset.Column, rows []int) (*linearFit, error) {
	boot := make([]int, len(rows))
	for k := range boot {
		boot[k] = rows[mi.rng.Intn(len(rows))]
	}
	fit, err := fitLinear(c, preds, boot, glm.GaussianFamily)
	if err == nil {
		return fit, nil
	}
	return fitLinear(c, preds, rows, glm.GaussianFamily)
}

// poolTables collapses the M draws into one table. Only the cells missing in
// orig are pooled, so observed cells pass through bit for bit: numeric cells
// average across draws, categorical cells take the majority label with ties
// broken toward the lowest code.
func poolTables(orig *dataset.Table, tables []*dataset.Table) (*dataset.Table, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("impute: nothing to pool")
	}
	out := tables[0].Clone()
	m := float64(len(tables))
	for ci, c := range out.Columns {
		for _, i := range orig.Columns[ci].MissingIndices() {
			switch c.Kind {
			case dataset.Numeric:
				sum := 0.0
				for _, tab := range tables {
					sum += tab.Columns[ci].Values[i]
				}
				c.SetValue(i, sum/m)
			case dataset.Categorical:
				counts := make([]int, len(c.Levels))
				for _, tab := range tables {
					counts[int(tab.Columns[ci].Values[i])]++
				}
				best := 0
				for code, n := range counts {
					if n > counts[best] {
						best = code
					}
				}
				c.SetValue(i, float64(best))
			}
		}
	}
	return out, nil
}

// PooledEstimate is the Rubin's-rules combination of per-imputation estimates
// of one scalar quantity.
type PooledEstimate struct {
	M        int     `json:"m"`
	Estimate float64 `json:"estimate"` // mean of the estimates
	Within   float64 `json:"within"`   // mean within-imputation variance
	Between  float64 `json:"between"`  // variance of the estimates
	Total    float64 `json:"total"`    // within + (1+1/m) * between
	SE       float64 `json:"se"`
}

// Pool applies Rubin's rules. variances may be nil when only point estimates
// are pooled; otherwise it must match estimates in length.
func Pool(estimates, variances []float64) (PooledEstimate, error) {
	m := len(estimates)
	if m < 2 {
		return PooledEstimate{}, fmt.Errorf("impute: pooling needs at least 2 estimates, got %d", m)
	}
	if variances != nil && len(variances) != m {
		return PooledEstimate{}, fmt.Errorf("impute: %d variances for %d estimates", len(variances), m)
	}

	p := PooledEstimate{
		M:        m,
		Estimate: stat.Mean(estimates, nil),
		Between:  stat.Variance(estimates, nil),
	}
	if variances != nil {
		p.Within = stat.Mean(variances, nil)
	}
	p.Total = p.Within + (1+1/float64(m))*p.Between
	if p.Total > 0 {
		p.SE = math.Sqrt(p.Total)
	}
	return p, nil
}
