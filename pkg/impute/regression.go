package impute

import (
	"context"
	"fmt"
	"math"

	"github.com/kshedden/statmodel/glm"
	"github.com/kshedden/statmodel/statmodel"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
)

// Regression fills numeric columns with fitted values from a gaussian GLM of
// the column on the complete numeric columns. Binary categorical columns use
// a logistic GLM with a 0.5 threshold; categorical columns with more levels
// and columns without usable predictors fall back to mode or mean
// substitution.
type Regression struct{}

func (Regression) Name() string { return "regression" }

func (Regression) Impute(ctx context.Context, t *dataset.Table) (*dataset.Table, error) {
	return imputeRegression(ctx, t, nil)
}

// StochasticRegression is Regression plus residual noise: each numeric fill
// receives a N(0, residual sd) draw, and binary fills are sampled from the
// predicted probability instead of thresholded. This preserves the spread a
// deterministic fit flattens out.
type StochasticRegression struct {
	rng *rand.Rand
}

// NewStochasticRegression builds the noisy variant drawing from src.
func NewStochasticRegression(src rand.Source) *StochasticRegression {
	return &StochasticRegression{rng: rand.New(src)}
}

func (*StochasticRegression) Name() string { return "stochastic" }

func (s *StochasticRegression) Impute(ctx context.Context, t *dataset.Table) (*dataset.Table, error) {
	return imputeRegression(ctx, t, s.rng)
}

func imputeRegression(ctx context.Context, t *dataset.Table, rng *rand.Rand) (*dataset.Table, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	out := t.Clone()
	for _, c := range incompleteColumns(out) {
		if err := requireObserved(c); err != nil {
			return nil, err
		}
		preds := completePredictors(t, c.Name)
		switch {
		case c.Kind == dataset.Numeric && len(preds) > 0:
			if err := fillNumericRegression(c, preds, rng); err != nil {
				return nil, err
			}
		case c.Kind == dataset.Categorical && len(c.Levels) == 2 && len(preds) > 0:
			if err := fillBinaryRegression(c, preds, rng); err != nil {
				return nil, err
			}
		default:
			// No usable predictors, or a multi-level categorical target.
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

func fallbackFill(c *dataset.Column) (float64, error) {
	if c.Kind == dataset.Categorical {
		return Substitute{Stat: StatMode}.fillValue(c)
	}
	return Substitute{Stat: StatMean}.fillValue(c)
}

func fillNumericRegression(c *dataset.Column, preds []*dataset.Column, rng *rand.Rand) error {
	fit, err := fitLinear(c, preds, c.ObservedIndices(), glm.GaussianFamily)
	if err != nil {
		return err
	}
	var noise *distuv.Normal
	if rng != nil && fit.residSD > 0 {
		noise = &distuv.Normal{Mu: 0, Sigma: fit.residSD, Src: rng}
	}
	for _, i := range c.MissingIndices() {
		v := fit.predict(preds, i)
		if noise != nil {
			v += noise.Rand()
		}
		c.SetValue(i, v)
	}
	return nil
}

func fillBinaryRegression(c *dataset.Column, preds []*dataset.Column, rng *rand.Rand) error {
	fit, err := fitLinear(c, preds, c.ObservedIndices(), glm.BinomialFamily)
	if err != nil {
		return err
	}
	for _, i := range c.MissingIndices() {
		p := logistic(fit.predict(preds, i))
		var code float64
		if rng != nil {
			if rng.Float64() < p {
				code = 1
			}
		} else if p > 0.5 {
			code = 1
		}
		c.SetValue(i, code)
	}
	return nil
}

// linearFit is a fitted GLM of one column on an intercept plus predictors.
// params holds the intercept first, then one coefficient per predictor, in
// predictor order. For the gaussian family, predict returns fitted values;
// for binomial it returns the linear predictor (apply logistic for the
// probability).
type linearFit struct {
	params  []float64
	residSD float64
}

func fitLinear(target *dataset.Column, preds []*dataset.Column, rows []int, family glm.FamilyType) (*linearFit, error) {
	n := len(rows)
	p := len(preds) + 1
	if n <= p {
		return nil, fmt.Errorf("impute: column %s has %d observations for %d parameters", target.Name, n, p)
	}

	y := make([]float64, n)
	icept := make([]float64, n)
	for k, i := range rows {
		y[k] = target.Values[i]
		icept[k] = 1
	}
	data := [][]float64{y, icept}
	names := []string{"y", "icept"}
	for _, pc := range preds {
		xs := make([]float64, n)
		for k, i := range rows {
			xs[k] = pc.Values[i]
		}
		data = append(data, xs)
		names = append(names, pc.Name)
	}

	ds := statmodel.NewDataset(data, names)
	config := glm.DefaultConfig()
	config.Family = glm.NewFamily(family)
	model, err := glm.NewGLM(ds, "y", names[1:], config)
	if err != nil {
		return nil, err
	}
	result := model.Fit()
	params := result.Params()
	if len(params) != p {
		return nil, fmt.Errorf("impute: column %s fit returned %d parameters, expected %d", target.Name, len(params), p)
	}
	for _, b := range params {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return nil, fmt.Errorf("impute: column %s regression did not converge", target.Name)
		}
	}
	fit := &linearFit{params: append([]float64(nil), params...)}

	if family == glm.GaussianFamily {
		ssr := 0.0
		for k, i := range rows {
			r := y[k] - fit.predict(preds, i)
			ssr += r * r
		}
		if dof := n - p; dof > 0 {
			fit.residSD = math.Sqrt(ssr / float64(dof))
		}
	}
	return fit, nil
}

func (f *linearFit) predict(preds []*dataset.Column, i int) float64 {
	v := f.params[0]
	for j, pc := range preds {
		v += f.params[j+1] * pc.Values[i]
	}
	return v
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
