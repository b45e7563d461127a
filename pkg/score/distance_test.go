package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
)

func normalSample(n int, mu, sigma float64, seed uint64) []float64 {
	d := distuv.Normal{Mu: mu, Sigma: sigma, Src: rand.NewSource(seed)}
	out := make([]float64, n)
	for i := range out {
		out[i] = d.Rand()
	}
	return out
}

func TestWasserstein1Identical(t *testing.T) {
	xs := normalSample(500, 0, 1, 1)

	w, err := Wasserstein1(xs, xs)
	require.NoError(t, err)
	assert.Zero(t, w)
}

func TestWasserstein1Shift(t *testing.T) {
	xs := normalSample(500, 0, 1, 2)
	shifted := make([]float64, len(xs))
	for i, x := range xs {
		shifted[i] = x + 2.5
	}

	w, err := Wasserstein1(xs, shifted)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, w, 1e-9, "translation moves W1 by the shift")
}

func TestWasserstein1Symmetric(t *testing.T) {
	p := normalSample(400, 0, 1, 3)
	q := normalSample(300, 1, 2, 4)

	a, err := Wasserstein1(p, q)
	require.NoError(t, err)
	b, err := Wasserstein1(q, p)
	require.NoError(t, err)
	assert.InDelta(t, a, b, 1e-12)
	assert.Greater(t, a, 0.0)
}

func TestWasserstein1UnequalSizes(t *testing.T) {
	p := []float64{0, 1}
	q := []float64{0, 0.5, 1}

	w, err := Wasserstein1(p, q)
	require.NoError(t, err)
	// ECDFs differ by 1/6 on (0,0.5) and (0.5,1).
	assert.InDelta(t, 1.0/6.0, w, 1e-12)
}

func TestWasserstein1Empty(t *testing.T) {
	_, err := Wasserstein1(nil, []float64{1})
	assert.Error(t, err)
}

func TestKolmogorovSmirnov(t *testing.T) {
	p := []float64{1, 2, 3, 4}
	q := []float64{1, 2, 3, 4}

	d, err := KolmogorovSmirnov(p, q)
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = KolmogorovSmirnov([]float64{0, 0, 0}, []float64{1, 1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1, d, 1e-12, "disjoint samples reach the maximum")
}

func TestJensenShannonIdentical(t *testing.T) {
	xs := normalSample(800, 5, 2, 5)

	js, err := JensenShannon(xs, xs, DensityOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 0, js, 1e-9)
}

func TestJensenShannonBoundsAndSymmetry(t *testing.T) {
	p := normalSample(800, 0, 1, 6)
	q := normalSample(800, 8, 1, 7)

	a, err := JensenShannon(p, q, DensityOptions{})
	require.NoError(t, err)
	b, err := JensenShannon(q, p, DensityOptions{})
	require.NoError(t, err)

	assert.InDelta(t, a, b, 1e-9, "symmetric")
	assert.Greater(t, a, 0.5, "well separated samples diverge strongly")
	assert.LessOrEqual(t, a, 1.0, "log base 2 bounds the divergence at 1")
}

func TestJensenShannonCloseDistributions(t *testing.T) {
	p := normalSample(2000, 0, 1, 8)
	q := normalSample(2000, 0.1, 1, 9)

	js, err := JensenShannon(p, q, DensityOptions{})
	require.NoError(t, err)
	assert.Less(t, js, 0.1, "near-identical distributions stay near zero")
}

func TestJensenShannonConstantSamples(t *testing.T) {
	js, err := JensenShannon([]float64{2, 2, 2}, []float64{2, 2}, DensityOptions{})
	require.NoError(t, err)
	assert.Zero(t, js)

	js, err = JensenShannon([]float64{2, 2}, []float64{3, 3}, DensityOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, js)
}

func TestJensenShannonLevels(t *testing.T) {
	p := dataset.NewCategorical("g", []string{"a", "a", "b", "b"})
	q := dataset.NewCategorical("g", []string{"a", "a", "b", "b"})

	js, err := JensenShannonLevels(p, q)
	require.NoError(t, err)
	assert.InDelta(t, 0, js, 1e-12)

	r := dataset.NewCategorical("g", []string{"c", "c", "c", "c"})
	js, err = JensenShannonLevels(p, r)
	require.NoError(t, err)
	assert.InDelta(t, 1, js, 1e-12, "disjoint level sets are maximally divergent")

	num := dataset.NewNumeric("x", []float64{1, 2})
	_, err = JensenShannonLevels(p, num)
	assert.Error(t, err)
}
