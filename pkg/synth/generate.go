package synth

import (
	"fmt"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
)

// Generate draws a complete table described by spec. All randomness flows
// from src, so the same spec and seed reproduce the same table.
func Generate(spec Spec, src rand.Source) (*dataset.Table, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	t := dataset.NewTable(spec.Name)
	for _, cs := range spec.Columns {
		col, err := generateColumn(cs, spec.Rows, src)
		if err != nil {
			return nil, err
		}
		if err := t.Add(col); err != nil {
			return nil, err
		}
	}
	if spec.Correlated != nil {
		cols, err := generateCorrelated(spec.Correlated, spec.Rows, src)
		if err != nil {
			return nil, err
		}
		for _, col := range cols {
			if err := t.Add(col); err != nil {
				return nil, err
			}
		}
	}
	if spec.Response != nil {
		col, err := generateResponse(spec.Response, t, src)
		if err != nil {
			return nil, err
		}
		if err := t.Add(col); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func generateColumn(cs ColumnSpec, rows int, src rand.Source) (*dataset.Column, error) {
	switch cs.Dist {
	case DistNormal:
		d := distuv.Normal{Mu: cs.Mu, Sigma: cs.Sigma, Src: src}
		return drawNumeric(cs.Name, rows, d.Rand), nil
	case DistLogNormal:
		d := distuv.LogNormal{Mu: cs.Mu, Sigma: cs.Sigma, Src: src}
		return drawNumeric(cs.Name, rows, d.Rand), nil
	case DistUniform:
		d := distuv.Uniform{Min: cs.Min, Max: cs.Max, Src: src}
		return drawNumeric(cs.Name, rows, d.Rand), nil
	case DistExponential:
		d := distuv.Exponential{Rate: cs.Rate, Src: src}
		return drawNumeric(cs.Name, rows, d.Rand), nil
	case DistMixture:
		weights := make([]float64, len(cs.Components))
		comps := make([]distuv.Normal, len(cs.Components))
		for i, mc := range cs.Components {
			weights[i] = mc.Weight
			comps[i] = distuv.Normal{Mu: mc.Mu, Sigma: mc.Sigma, Src: src}
		}
		pick := distuv.NewCategorical(weights, src)
		return drawNumeric(cs.Name, rows, func() float64 {
			return comps[int(pick.Rand())].Rand()
		}), nil
	case DistCategorical:
		weights := cs.Weights
		if len(weights) == 0 {
			weights = make([]float64, len(cs.Levels))
			for i := range weights {
				weights[i] = 1
			}
		}
		pick := distuv.NewCategorical(weights, src)
		codes := make([]int, rows)
		for i := range codes {
			codes[i] = int(pick.Rand())
		}
		return dataset.NewCategoricalCodes(cs.Name, codes, cs.Levels)
	default:
		return nil, fmt.Errorf("column %s: unknown distribution %q", cs.Name, cs.Dist)
	}
}

func drawNumeric(name string, rows int, draw func() float64) *dataset.Column {
	values := make([]float64, rows)
	for i := range values {
		values[i] = draw()
	}
	return dataset.NewNumeric(name, values)
}

func generateCorrelated(cs *CorrelatedSpec, rows int, src rand.Source) ([]*dataset.Column, error) {
	d := len(cs.Names)
	flat := make([]float64, 0, d*d)
	for _, row := range cs.Cov {
		flat = append(flat, row...)
	}
	sigma := mat.NewSymDense(d, flat)
	normal, ok := distmv.NewNormal(cs.Mean, sigma, src)
	if !ok {
		return nil, fmt.Errorf("correlated block: covariance is not positive definite")
	}

	values := make([][]float64, d)
	for j := range values {
		values[j] = make([]float64, rows)
	}
	x := make([]float64, d)
	for i := 0; i < rows; i++ {
		normal.Rand(x)
		for j := range values {
			values[j][i] = x[j]
		}
	}

	cols := make([]*dataset.Column, d)
	for j, name := range cs.Names {
		cols[j] = dataset.NewNumeric(name, values[j])
	}
	return cols, nil
}

func generateResponse(rs *ResponseSpec, t *dataset.Table, src rand.Source) (*dataset.Column, error) {
	rows := t.Rows()
	values := make([]float64, rows)
	for i := range values {
		values[i] = rs.Intercept
	}
	// Sorted predictor order keeps the float accumulation reproducible.
	names := make([]string, 0, len(rs.Coeffs))
	for name := range rs.Coeffs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		beta := rs.Coeffs[name]
		pred := t.Column(name)
		if pred == nil {
			return nil, fmt.Errorf("response %s: unknown column %s", rs.Name, name)
		}
		if pred.Kind != dataset.Numeric {
			return nil, fmt.Errorf("response %s: column %s is not numeric", rs.Name, name)
		}
		for i := 0; i < rows; i++ {
			values[i] += beta * pred.Values[i]
		}
	}
	if rs.NoiseSigma > 0 {
		noise := distuv.Normal{Mu: 0, Sigma: rs.NoiseSigma, Src: src}
		for i := range values {
			values[i] += noise.Rand()
		}
	}
	return dataset.NewNumeric(rs.Name, values), nil
}
