package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
)

func TestRMSEAndMAE(t *testing.T) {
	truth := []float64{1, 2, 3, 4}
	imputed := []float64{1, 5, 3, 2}
	mask := []bool{false, true, false, true}

	rmse, err := RMSE(truth, imputed, mask)
	require.NoError(t, err)
	// Errors of 3 and 2 on the masked cells.
	assert.InDelta(t, 2.5495, rmse, 0.001)

	mae, err := MAE(truth, imputed, mask)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, mae, 1e-12)
}

func TestRMSEPerfectImputation(t *testing.T) {
	truth := []float64{1, 2, 3}
	mask := []bool{true, true, true}

	rmse, err := RMSE(truth, truth, mask)
	require.NoError(t, err)
	assert.Zero(t, rmse)
}

func TestCellwiseValidation(t *testing.T) {
	_, err := RMSE([]float64{1}, []float64{1, 2}, []bool{true})
	assert.Error(t, err, "length mismatch")

	_, err = MAE([]float64{1, 2}, []float64{1, 2}, []bool{false, false})
	assert.Error(t, err, "empty mask")
}

func TestMatchRate(t *testing.T) {
	truth := dataset.NewCategorical("g", []string{"a", "b", "a", "b"})
	imputed := dataset.NewCategorical("g", []string{"a", "b", "b", "b"})
	mask := []bool{false, true, true, true}

	mr, err := MatchRate(truth, imputed, mask)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, mr, 1e-12)

	num := dataset.NewNumeric("x", []float64{1, 2, 3, 4})
	_, err = MatchRate(truth, num, mask)
	assert.Error(t, err)
}
