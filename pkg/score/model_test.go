package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/synth"
)

func linearTable(t *testing.T, rows int, noise float64, seed uint64) *dataset.Table {
	t.Helper()
	spec := synth.Spec{
		Name: "linear",
		Rows: rows,
		Columns: []synth.ColumnSpec{
			{Name: "x1", Dist: synth.DistNormal, Mu: 0, Sigma: 1},
			{Name: "x2", Dist: synth.DistNormal, Mu: 5, Sigma: 2},
		},
		Response: &synth.ResponseSpec{
			Name:       "y",
			Intercept:  1.5,
			Coeffs:     map[string]float64{"x1": 2, "x2": -0.75},
			NoiseSigma: noise,
		},
	}
	tbl, err := synth.Generate(spec, rand.NewSource(seed))
	require.NoError(t, err)
	return tbl
}

func TestFitOLSRecoversCoefficients(t *testing.T) {
	tbl := linearTable(t, 500, 0, 1)

	fit, err := FitOLS(tbl, "y", []string{"x1", "x2"})
	require.NoError(t, err)

	assert.InDelta(t, 1.5, fit.Intercept, 1e-8)
	assert.InDelta(t, 2, fit.Coeffs["x1"], 1e-8)
	assert.InDelta(t, -0.75, fit.Coeffs["x2"], 1e-8)
	assert.InDelta(t, 1, fit.R2, 1e-9, "noise-free fit explains everything")
	assert.Equal(t, 500, fit.Rows)
}

func TestFitOLSWithNoise(t *testing.T) {
	tbl := linearTable(t, 5000, 1, 2)

	fit, err := FitOLS(tbl, "y", []string{"x1", "x2"})
	require.NoError(t, err)

	assert.InDelta(t, 2, fit.Coeffs["x1"], 0.1)
	assert.InDelta(t, -0.75, fit.Coeffs["x2"], 0.1)
	assert.Greater(t, fit.R2, 0.7)
}

func TestFitOLSValidation(t *testing.T) {
	tbl := linearTable(t, 50, 0, 3)

	_, err := FitOLS(tbl, "nope", []string{"x1"})
	assert.Error(t, err)

	_, err = FitOLS(tbl, "y", []string{"ghost"})
	assert.Error(t, err)

	_, err = FitOLS(tbl, "y", nil)
	assert.Error(t, err)
}

func TestModelDriftIdenticalTables(t *testing.T) {
	tbl := linearTable(t, 300, 0.5, 4)

	res, err := ModelDrift(tbl, tbl.Clone(), "y", []string{"x1", "x2"})
	require.NoError(t, err)

	assert.InDelta(t, 0, res.MaxDelta, 1e-12, "identical data fits identically")
	assert.InDelta(t, res.Truth.R2, res.Imputed.R2, 1e-12)
}
