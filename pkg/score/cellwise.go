package score

import (
	"fmt"
	"math"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
)

// RMSE is the root mean squared error between truth and imputed, restricted
// to the rows selected by mask (the cells that had been removed).
func RMSE(truth, imputed []float64, mask []bool) (float64, error) {
	sum, n, err := maskedSquares(truth, imputed, mask)
	if err != nil {
		return 0, fmt.Errorf("rmse: %w", err)
	}
	return math.Sqrt(sum / float64(n)), nil
}

// MAE is the mean absolute error between truth and imputed, restricted to the
// rows selected by mask.
func MAE(truth, imputed []float64, mask []bool) (float64, error) {
	if err := checkMaskedInput(truth, imputed, mask); err != nil {
		return 0, fmt.Errorf("mae: %w", err)
	}
	sum, n := 0.0, 0
	for i, m := range mask {
		if !m {
			continue
		}
		sum += math.Abs(truth[i] - imputed[i])
		n++
	}
	if n == 0 {
		return 0, fmt.Errorf("mae: mask selects no cells")
	}
	return sum / float64(n), nil
}

// MatchRate is the fraction of masked cells where the imputed categorical
// label equals the true one.
func MatchRate(truth, imputed *dataset.Column, mask []bool) (float64, error) {
	if truth.Kind != dataset.Categorical || imputed.Kind != dataset.Categorical {
		return 0, fmt.Errorf("match rate: both columns must be categorical")
	}
	if truth.Len() != imputed.Len() || truth.Len() != len(mask) {
		return 0, fmt.Errorf("match rate: length mismatch (%d, %d, %d)", truth.Len(), imputed.Len(), len(mask))
	}
	hits, n := 0, 0
	for i, m := range mask {
		if !m {
			continue
		}
		n++
		if !truth.IsMissing(i) && !imputed.IsMissing(i) && truth.Label(i) == imputed.Label(i) {
			hits++
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("match rate: mask selects no cells")
	}
	return float64(hits) / float64(n), nil
}

func maskedSquares(truth, imputed []float64, mask []bool) (float64, int, error) {
	if err := checkMaskedInput(truth, imputed, mask); err != nil {
		return 0, 0, err
	}
	sum, n := 0.0, 0
	for i, m := range mask {
		if !m {
			continue
		}
		d := truth[i] - imputed[i]
		sum += d * d
		n++
	}
	if n == 0 {
		return 0, 0, fmt.Errorf("mask selects no cells")
	}
	return sum, n, nil
}

func checkMaskedInput(truth, imputed []float64, mask []bool) error {
	if len(truth) != len(imputed) || len(truth) != len(mask) {
		return fmt.Errorf("length mismatch (%d, %d, %d)", len(truth), len(imputed), len(mask))
	}
	return nil
}
