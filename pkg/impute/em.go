package impute

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
)

// EM imputes the numeric columns jointly under a multivariate normal model.
// The E-step computes conditional means and covariances of each row's missing
// block given its observed block, the M-step re-estimates the mean vector and
// covariance matrix, and iteration stops on convergence or MaxIter. Missing
// cells take their final conditional means. Categorical columns fall back to
// mode substitution.
type EM struct {
	maxIter int
	tol     float64
}

// NewEM builds the EM imputer. Zero maxIter defaults to 100, zero tol to
// 1e-4.
func NewEM(maxIter int, tol float64) *EM {
	if maxIter <= 0 {
		maxIter = 100
	}
	if tol <= 0 {
		tol = 1e-4
	}
	return &EM{maxIter: maxIter, tol: tol}
}

func (*EM) Name() string { return "em" }

func (e *EM) Impute(ctx context.Context, t *dataset.Table) (*dataset.Table, error) {
	out := t.Clone()

	var cols []*dataset.Column
	for _, c := range out.Columns {
		if c.Kind == dataset.Numeric {
			if err := requireObserved(c); err != nil {
				return nil, err
			}
			cols = append(cols, c)
		}
	}
	if incomplete(cols) {
		if err := e.fitAndFill(ctx, cols); err != nil {
			return nil, err
		}
	}

	// Mode fill for whatever EM does not model.
	for _, c := range incompleteColumns(out) {
		if err := requireObserved(c); err != nil {
			return nil, err
		}
		fill, err := Substitute{Stat: StatMode}.fillValue(c)
		if err != nil {
			return nil, err
		}
		for _, i := range c.MissingIndices() {
			c.SetValue(i, fill)
		}
	}
	return out, nil
}

func incomplete(cols []*dataset.Column) bool {
	for _, c := range cols {
		if c.MissingCount() > 0 {
			return true
		}
	}
	return false
}

func (e *EM) fitAndFill(ctx context.Context, cols []*dataset.Column) error {
	d := len(cols)
	n := cols[0].Len()

	// Observed-data start: column means and a diagonal covariance.
	mu := make([]float64, d)
	sigma := mat.NewSymDense(d, nil)
	for j, c := range cols {
		obs := c.Observed()
		mu[j] = stat.Mean(obs, nil)
		v := stat.Variance(obs, nil)
		if v <= 0 || math.IsNaN(v) {
			v = 1e-6
		}
		sigma.SetSym(j, j, v)
	}

	filled := mat.NewDense(n, d, nil)
	for iter := 0; iter < e.maxIter; iter++ {
		if err := checkCtx(ctx); err != nil {
			return err
		}
		normal, ok := distmv.NewNormal(mu, sigma, nil)
		if !ok {
			ridge(sigma)
			normal, ok = distmv.NewNormal(mu, sigma, nil)
			if !ok {
				return fmt.Errorf("impute: em covariance is not positive definite after regularization")
			}
		}

		newMu := make([]float64, d)
		scatter := mat.NewDense(d, d, nil)
		for i := 0; i < n; i++ {
			row, cond, missingIdx, err := eStepRow(normal, cols, i, mu, sigma)
			if err != nil {
				return err
			}
			filled.SetRow(i, row)
			for a := 0; a < d; a++ {
				newMu[a] += row[a]
				for b := a; b < d; b++ {
					scatter.Set(a, b, scatter.At(a, b)+row[a]*row[b])
				}
			}
			// Conditional covariance of the missing block keeps the
			// second moments honest.
			if cond != nil {
				var cc mat.SymDense
				cond.CovarianceMatrix(&cc)
				for ai, a := range missingIdx {
					for bi, b := range missingIdx {
						if b >= a {
							scatter.Set(a, b, scatter.At(a, b)+cc.At(ai, bi))
						}
					}
				}
			}
		}

		for a := 0; a < d; a++ {
			newMu[a] /= float64(n)
		}
		newSigma := mat.NewSymDense(d, nil)
		for a := 0; a < d; a++ {
			for b := a; b < d; b++ {
				newSigma.SetSym(a, b, scatter.At(a, b)/float64(n)-newMu[a]*newMu[b])
			}
		}

		delta := paramDelta(mu, newMu, sigma, newSigma)
		mu, sigma = newMu, newSigma
		if delta < e.tol {
			break
		}
	}

	for j, c := range cols {
		for _, i := range c.MissingIndices() {
			c.SetValue(i, filled.At(i, j))
		}
	}
	return nil
}

// eStepRow returns the completed row and, when the row had missing entries,
// the conditional distribution of those entries with their index positions.
func eStepRow(normal *distmv.Normal, cols []*dataset.Column, i int, mu []float64, sigma *mat.SymDense) ([]float64, *distmv.Normal, []int, error) {
	d := len(cols)
	var observedIdx, missingIdx []int
	var observedVal []float64
	row := make([]float64, d)
	for j, c := range cols {
		if c.IsMissing(i) {
			missingIdx = append(missingIdx, j)
			continue
		}
		observedIdx = append(observedIdx, j)
		observedVal = append(observedVal, c.Values[i])
		row[j] = c.Values[i]
	}
	if len(missingIdx) == 0 {
		return row, nil, nil, nil
	}
	if len(observedIdx) == 0 {
		// Fully missing row: the marginal is the best guess.
		for j := range row {
			row[j] = mu[j]
		}
		marginal, ok := distmv.NewNormal(mu, sigma, nil)
		if !ok {
			return nil, nil, nil, fmt.Errorf("impute: em marginal is not positive definite")
		}
		idx := make([]int, d)
		for j := range idx {
			idx[j] = j
		}
		return row, marginal, idx, nil
	}

	cond, ok := normal.ConditionNormal(observedIdx, observedVal, nil)
	if !ok {
		return nil, nil, nil, fmt.Errorf("impute: em conditioning failed at row %d", i)
	}
	condMean := cond.Mean(nil)
	for k, j := range missingIdx {
		row[j] = condMean[k]
	}
	return row, cond, missingIdx, nil
}

func ridge(sigma *mat.SymDense) {
	d := sigma.SymmetricDim()
	tr := 0.0
	for j := 0; j < d; j++ {
		tr += sigma.At(j, j)
	}
	eps := 1e-6 * (tr/float64(d) + 1)
	for j := 0; j < d; j++ {
		sigma.SetSym(j, j, sigma.At(j, j)+eps)
	}
}

func paramDelta(mu, newMu []float64, sigma, newSigma *mat.SymDense) float64 {
	max := 0.0
	for j := range mu {
		if d := math.Abs(newMu[j] - mu[j]); d > max {
			max = d
		}
	}
	d := sigma.SymmetricDim()
	for a := 0; a < d; a++ {
		for b := a; b < d; b++ {
			if diff := math.Abs(newSigma.At(a, b) - sigma.At(a, b)); diff > max {
				max = diff
			}
		}
	}
	return max
}
