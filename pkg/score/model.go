package score

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
)

// ModelFit is an ordinary least squares fit of a response on predictors.
type ModelFit struct {
	Intercept float64            `json:"intercept"`
	Coeffs    map[string]float64 `json:"coeffs"`
	R2        float64            `json:"r2"`
	Rows      int                `json:"rows"`
}

// ModelDriftResult compares the same linear model fit on the ground-truth
// table and on an imputed table. Large coefficient deltas mean the imputation
// distorted the relationship the model estimates.
type ModelDriftResult struct {
	Truth     ModelFit           `json:"truth"`
	Imputed   ModelFit           `json:"imputed"`
	CoefDelta map[string]float64 `json:"coef_delta"`
	MaxDelta  float64            `json:"max_delta"`
}

// ModelDrift fits response ~ predictors by OLS on both tables and reports the
// coefficient drift. Only complete rows enter each fit.
func ModelDrift(truth, imputed *dataset.Table, response string, predictors []string) (*ModelDriftResult, error) {
	tf, err := FitOLS(truth, response, predictors)
	if err != nil {
		return nil, fmt.Errorf("fit on truth: %w", err)
	}
	mf, err := FitOLS(imputed, response, predictors)
	if err != nil {
		return nil, fmt.Errorf("fit on imputed: %w", err)
	}

	res := &ModelDriftResult{
		Truth:     *tf,
		Imputed:   *mf,
		CoefDelta: map[string]float64{},
	}
	res.MaxDelta = math.Abs(tf.Intercept - mf.Intercept)
	res.CoefDelta["(intercept)"] = res.MaxDelta
	for _, name := range predictors {
		d := math.Abs(tf.Coeffs[name] - mf.Coeffs[name])
		res.CoefDelta[name] = d
		if d > res.MaxDelta {
			res.MaxDelta = d
		}
	}
	return res, nil
}

// FitOLS estimates response = b0 + sum(b_j * predictor_j) over the complete
// rows of the table. Normal equations first, SVD least squares when the
// design matrix is rank deficient.
func FitOLS(t *dataset.Table, response string, predictors []string) (*ModelFit, error) {
	resp := t.Column(response)
	if resp == nil {
		return nil, fmt.Errorf("ols: unknown response column %q", response)
	}
	if resp.Kind != dataset.Numeric {
		return nil, fmt.Errorf("ols: response %s is not numeric", response)
	}
	if len(predictors) == 0 {
		return nil, fmt.Errorf("ols: no predictors")
	}
	cols := make([]*dataset.Column, len(predictors))
	for i, name := range predictors {
		c := t.Column(name)
		if c == nil {
			return nil, fmt.Errorf("ols: unknown predictor column %q", name)
		}
		if c.Kind != dataset.Numeric {
			return nil, fmt.Errorf("ols: predictor %s is not numeric", name)
		}
		cols[i] = c
	}

	rows := t.CompleteRows()
	p := len(predictors) + 1
	if len(rows) < p {
		return nil, fmt.Errorf("ols: %d complete rows for %d parameters", len(rows), p)
	}

	x := mat.NewDense(len(rows), p, nil)
	y := mat.NewVecDense(len(rows), nil)
	for ri, i := range rows {
		x.Set(ri, 0, 1)
		for j, c := range cols {
			x.Set(ri, j+1, c.Values[i])
		}
		y.SetVec(ri, resp.Values[i])
	}

	beta, err := solveOLS(x, y)
	if err != nil {
		return nil, err
	}

	fit := &ModelFit{
		Intercept: beta.AtVec(0),
		Coeffs:    map[string]float64{},
		Rows:      len(rows),
	}
	for j, name := range predictors {
		fit.Coeffs[name] = beta.AtVec(j + 1)
	}

	// R^2 from the residuals of the fitted values.
	var fitted mat.VecDense
	fitted.MulVec(x, beta)
	ybar := stat.Mean(y.RawVector().Data, nil)
	ssr, sst := 0.0, 0.0
	for i := 0; i < y.Len(); i++ {
		r := y.AtVec(i) - fitted.AtVec(i)
		d := y.AtVec(i) - ybar
		ssr += r * r
		sst += d * d
	}
	if sst > 0 {
		fit.R2 = 1 - ssr/sst
	}
	return fit, nil
}

func solveOLS(x *mat.Dense, y *mat.VecDense) (*mat.VecDense, error) {
	_, p := x.Dims()

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err == nil {
		var xty mat.VecDense
		xty.MulVec(x.T(), y)
		beta := mat.NewVecDense(p, nil)
		beta.MulVec(&xtxInv, &xty)
		return beta, nil
	}

	// Rank-deficient design: minimum-norm least squares via SVD.
	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return nil, fmt.Errorf("ols: svd factorization failed")
	}
	rank := svd.Rank(1e-12)
	if rank == 0 {
		return nil, fmt.Errorf("ols: design matrix has rank zero")
	}
	var b mat.Dense
	svd.SolveTo(&b, y, rank)
	beta := mat.NewVecDense(p, nil)
	for i := 0; i < p; i++ {
		beta.SetVec(i, b.At(i, 0))
	}
	return beta, nil
}
