package impute

import (
	"context"
	"fmt"
	"math"

	"github.com/aclements/go-moremath/fit"
	"gonum.org/v1/gonum/stat"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
)

const (
	gamDegree      = 2
	gamMaxBackfit  = 10
	gamBackfitTol  = 1e-6
	gamMinTraining = 5
)

// GAM imputes numeric columns with an additive model: the target is fit as a
// sum of per-predictor LOESS smoothers combined by backfitting, and missing
// cells take the additive fit. One predictor degenerates to a single
// smoother. Categorical columns and columns without usable predictors fall
// back to substitution.
type GAM struct {
	span float64
}

// NewGAM builds the additive-model imputer. Zero span defaults to 0.5.
func NewGAM(span float64) (*GAM, error) {
	if span == 0 {
		span = 0.5
	}
	if span <= 0 || span > 1 {
		return nil, fmt.Errorf("impute: gam span must be in (0,1], got %v", span)
	}
	return &GAM{span: span}, nil
}

func (*GAM) Name() string { return "gam" }

func (g *GAM) Impute(ctx context.Context, t *dataset.Table) (*dataset.Table, error) {
	out := t.Clone()
	for _, c := range incompleteColumns(out) {
		if err := checkCtx(ctx); err != nil {
			return nil, err
		}
		if err := requireObserved(c); err != nil {
			return nil, err
		}
		preds := completePredictors(t, c.Name)
		rows := c.ObservedIndices()
		if c.Kind != dataset.Numeric || len(preds) == 0 || len(rows) < gamMinTraining {
			fill, err := fallbackFill(c)
			if err != nil {
				return nil, err
			}
			for _, i := range c.MissingIndices() {
				c.SetValue(i, fill)
			}
			continue
		}
		if err := g.backfit(c, preds, rows); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// backfit cycles LOESS smoothers over the partial residuals until the fitted
// values stop moving, then fills the missing cells with the additive
// prediction.
func (g *GAM) backfit(c *dataset.Column, preds []*dataset.Column, rows []int) error {
	n := len(rows)
	y := make([]float64, n)
	for k, i := range rows {
		y[k] = c.Values[i]
	}
	alpha := stat.Mean(y, nil)

	xTrain := make([][]float64, len(preds))
	for j, pc := range preds {
		xs := make([]float64, n)
		for k, i := range rows {
			xs[k] = pc.Values[i]
		}
		xTrain[j] = xs
	}

	smoothers := make([]func(float64) float64, len(preds))
	contrib := make([][]float64, len(preds))
	for j := range contrib {
		contrib[j] = make([]float64, n)
	}

	partial := make([]float64, n)
	for iter := 0; iter < gamMaxBackfit; iter++ {
		maxShift := 0.0
		for j := range preds {
			for k := range partial {
				partial[k] = y[k] - alpha
				for other := range preds {
					if other != j {
						partial[k] -= contrib[other][k]
					}
				}
			}
			smoothers[j] = fit.LOESS(xTrain[j], partial, gamDegree, g.span)
			for k, x := range xTrain[j] {
				next := smoothers[j](x)
				if d := math.Abs(next - contrib[j][k]); d > maxShift {
					maxShift = d
				}
				contrib[j][k] = next
			}
		}
		if maxShift < gamBackfitTol {
			break
		}
	}

	for _, i := range c.MissingIndices() {
		v := alpha
		for j, pc := range preds {
			v += smoothers[j](pc.Values[i])
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("impute: gam prediction for column %s row %d is not finite", c.Name, i)
		}
		c.SetValue(i, v)
	}
	return nil
}
