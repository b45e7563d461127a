package impute

import (
	"context"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/missing"
	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/synth"
)

// linearTable builds x complete and y = 2 + 3x with holes at the given rows.
func linearTable(t *testing.T, rows int, noise float64, holes []int, seed uint64) *dataset.Table {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	xs := make([]float64, rows)
	ys := make([]float64, rows)
	for i := range xs {
		xs[i] = -2 + 4*rng.Float64()
		ys[i] = 2 + 3*xs[i]
		if noise > 0 {
			ys[i] += rng.NormFloat64() * noise
		}
	}
	for _, i := range holes {
		ys[i] = math.NaN()
	}
	tab := dataset.NewTable("linear")
	require.NoError(t, tab.Add(dataset.NewNumeric("x", xs)))
	require.NoError(t, tab.Add(dataset.NewNumeric("y", ys)))
	return tab
}

func TestNamesAndNew(t *testing.T) {
	names := Names()
	assert.True(t, sort.StringsAreSorted(names))
	assert.Equal(t, []string{
		"deletion", "em", "forest", "gam", "hotdeck", "mean",
		"median", "mi", "mode", "regression", "stochastic",
	}, names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			m, err := New(name, Options{Seed: 7, Within: "grp"})
			require.NoError(t, err)
			assert.Equal(t, name, m.Name())
		})
	}

	_, err := New("oracle", Options{})
	assert.ErrorContains(t, err, `unknown method "oracle"`)
}

func TestDeletionDropsIncompleteRows(t *testing.T) {
	tab := dataset.NewTable("obs")
	require.NoError(t, tab.Add(dataset.NewNumeric("a", []float64{1, math.NaN(), 3, 4})))
	require.NoError(t, tab.Add(dataset.NewNumeric("b", []float64{0, 1, math.NaN(), 2})))

	out, err := Deletion{}.Impute(context.Background(), tab)
	require.NoError(t, err)

	assert.Less(t, out.Rows(), tab.Rows())
	assert.Equal(t, 2, out.Rows())
	assert.Zero(t, out.MissingCells())
	assert.Equal(t, []float64{1, 4}, out.Column("a").Values)

	// The input keeps its holes.
	assert.Equal(t, 2, tab.MissingCells())
}

func TestDeletionNeedsOneCompleteRow(t *testing.T) {
	tab := dataset.NewTable("gone")
	require.NoError(t, tab.Add(dataset.NewNumeric("a", []float64{math.NaN(), 1})))
	require.NoError(t, tab.Add(dataset.NewNumeric("b", []float64{0, math.NaN()})))

	_, err := Deletion{}.Impute(context.Background(), tab)
	assert.ErrorContains(t, err, "would drop every row")
}

func TestSubstituteMeanReproducesObservedMean(t *testing.T) {
	vals := []float64{2, 4, math.NaN(), 6, math.NaN(), 8}
	tab := dataset.NewTable("m")
	require.NoError(t, tab.Add(dataset.NewNumeric("v", vals)))
	want := stat.Mean(tab.Column("v").Observed(), nil)

	out, err := Substitute{Stat: StatMean}.Impute(context.Background(), tab)
	require.NoError(t, err)

	c := out.Column("v")
	assert.Zero(t, c.MissingCount())
	assert.InDelta(t, want, c.Values[2], 1e-12)
	assert.InDelta(t, want, c.Values[4], 1e-12)
	assert.InDelta(t, want, stat.Mean(c.Values, nil), 1e-12)
	// Observed cells stay put.
	assert.Equal(t, 2.0, c.Values[0])
	assert.Equal(t, 8.0, c.Values[5])
}

func TestSubstituteMedianAndMode(t *testing.T) {
	tab := dataset.NewTable("mm")
	require.NoError(t, tab.Add(dataset.NewNumeric("v", []float64{1, 2, math.NaN(), 100})))
	require.NoError(t, tab.Add(dataset.NewCategorical("g", []string{"a", "b", "a", ""})))

	out, err := Substitute{Stat: StatMedian}.Impute(context.Background(), tab)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, out.Column("v").Values[2], 1e-12)
	// Categorical columns always take the mode, whatever the statistic.
	assert.Equal(t, "a", out.Column("g").Label(3))

	out, err = Substitute{Stat: StatMode}.Impute(context.Background(), tab)
	require.NoError(t, err)
	assert.Equal(t, "a", out.Column("g").Label(3))
}

func TestSubstituteRejectsAllMissingColumn(t *testing.T) {
	tab := dataset.NewTable("void")
	require.NoError(t, tab.Add(dataset.NewNumeric("v", []float64{math.NaN(), math.NaN()})))

	_, err := Substitute{Stat: StatMean}.Impute(context.Background(), tab)
	assert.ErrorContains(t, err, "no observed values")
}

func TestHotDeckDrawsFromObservedDonors(t *testing.T) {
	vals := []float64{10, 20, math.NaN(), 30, math.NaN(), 20}
	tab := dataset.NewTable("hd")
	require.NoError(t, tab.Add(dataset.NewNumeric("v", vals)))

	h := NewHotDeck("", rand.NewSource(3))
	out, err := h.Impute(context.Background(), tab)
	require.NoError(t, err)

	donors := map[float64]bool{10: true, 20: true, 30: true}
	c := out.Column("v")
	assert.Zero(t, c.MissingCount())
	assert.True(t, donors[c.Values[2]])
	assert.True(t, donors[c.Values[4]])
}

func TestHotDeckRespectsGroups(t *testing.T) {
	tab := dataset.NewTable("hdg")
	require.NoError(t, tab.Add(dataset.NewCategorical("grp", []string{"a", "a", "a", "b", "b", "b"})))
	require.NoError(t, tab.Add(dataset.NewNumeric("v", []float64{1, 1, math.NaN(), 9, 9, math.NaN()})))

	h := NewHotDeck("grp", rand.NewSource(5))
	out, err := h.Impute(context.Background(), tab)
	require.NoError(t, err)

	c := out.Column("v")
	assert.Equal(t, 1.0, c.Values[2])
	assert.Equal(t, 9.0, c.Values[5])
}

func TestHotDeckSameSeedSameFills(t *testing.T) {
	build := func() *dataset.Table {
		tab := dataset.NewTable("d")
		_ = tab.Add(dataset.NewNumeric("v", []float64{1, 2, 3, 4, 5, math.NaN(), math.NaN(), math.NaN()}))
		return tab
	}
	a, err := NewHotDeck("", rand.NewSource(42)).Impute(context.Background(), build())
	require.NoError(t, err)
	b, err := NewHotDeck("", rand.NewSource(42)).Impute(context.Background(), build())
	require.NoError(t, err)
	assert.Equal(t, a.Column("v").Values, b.Column("v").Values)
}

func TestHotDeckGroupErrors(t *testing.T) {
	tab := dataset.NewTable("bad")
	require.NoError(t, tab.Add(dataset.NewNumeric("grp", []float64{1, 2})))
	require.NoError(t, tab.Add(dataset.NewNumeric("v", []float64{1, math.NaN()})))

	_, err := NewHotDeck("nope", rand.NewSource(1)).Impute(context.Background(), tab)
	assert.ErrorContains(t, err, `group column "nope" not found`)

	_, err = NewHotDeck("grp", rand.NewSource(1)).Impute(context.Background(), tab)
	assert.ErrorContains(t, err, "not categorical")
}

func TestRegressionRecoversLinearRelation(t *testing.T) {
	holes := []int{5, 40, 77, 123, 200}
	tab := linearTable(t, 300, 0, holes, 9)

	out, err := Regression{}.Impute(context.Background(), tab)
	require.NoError(t, err)

	x := out.Column("x")
	y := out.Column("y")
	assert.Zero(t, y.MissingCount())
	for _, i := range holes {
		assert.InDelta(t, 2+3*x.Values[i], y.Values[i], 1e-5)
	}
}

func TestStochasticRegressionAddsResidualNoise(t *testing.T) {
	holes := []int{3, 17, 51, 88, 140, 222}
	build := func() *dataset.Table { return linearTable(t, 300, 1.0, holes, 9) }

	a, err := NewStochasticRegression(rand.NewSource(1)).Impute(context.Background(), build())
	require.NoError(t, err)
	b, err := NewStochasticRegression(rand.NewSource(2)).Impute(context.Background(), build())
	require.NoError(t, err)
	c, err := NewStochasticRegression(rand.NewSource(1)).Impute(context.Background(), build())
	require.NoError(t, err)

	// Different seeds land on different draws, the same seed reproduces them.
	assert.NotEqual(t, a.Column("y").Values, b.Column("y").Values)
	assert.Equal(t, a.Column("y").Values, c.Column("y").Values)

	// Draws stay centered on the regression line.
	x := a.Column("x")
	for _, i := range holes {
		assert.InDelta(t, 2+3*x.Values[i], a.Column("y").Values[i], 6.0)
	}
}

func TestEMRecoversCorrelatedMeans(t *testing.T) {
	spec := synth.Spec{
		Name: "mvn",
		Rows: 4000,
		Correlated: &synth.CorrelatedSpec{
			Names: []string{"x1", "x2"},
			Mean:  []float64{5, -2},
			Cov:   [][]float64{{1, 0.8}, {0.8, 1}},
		},
	}
	truth, err := synth.Generate(spec, rand.NewSource(11))
	require.NoError(t, err)

	plans := []missing.Plan{{Mechanism: missing.MCAR, Target: "x2", Rate: 0.3}}
	holed, n, err := missing.Inject(truth, plans, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	require.Greater(t, n, 0)

	out, err := NewEM(0, 0).Impute(context.Background(), holed)
	require.NoError(t, err)

	c := out.Column("x2")
	assert.Zero(t, c.MissingCount())
	assert.InDelta(t, -2.0, stat.Mean(c.Values, nil), 0.1)

	// Observed cells are untouched.
	for _, i := range holed.Column("x2").ObservedIndices() {
		assert.Equal(t, holed.Column("x2").Values[i], c.Values[i])
	}
}

func TestGAMFitsQuadratic(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	rows := 240
	xs := make([]float64, rows)
	ys := make([]float64, rows)
	for i := range xs {
		xs[i] = -3 + 6*rng.Float64()
		ys[i] = 1 + 0.5*xs[i] + xs[i]*xs[i]
	}
	holes := []int{10, 60, 120, 180, 230}
	for _, i := range holes {
		ys[i] = math.NaN()
	}
	tab := dataset.NewTable("quad")
	require.NoError(t, tab.Add(dataset.NewNumeric("x", xs)))
	require.NoError(t, tab.Add(dataset.NewNumeric("y", ys)))

	g, err := NewGAM(0)
	require.NoError(t, err)
	out, err := g.Impute(context.Background(), tab)
	require.NoError(t, err)

	y := out.Column("y")
	assert.Zero(t, y.MissingCount())
	for _, i := range holes {
		want := 1 + 0.5*xs[i] + xs[i]*xs[i]
		assert.InDelta(t, want, y.Values[i], 0.25)
	}
}

func TestForestConstantColumn(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	ys := []float64{4, 4, 4, 4, math.NaN(), 4, 4, math.NaN(), 4, 4}

	tab := dataset.NewTable("rf-const")
	require.NoError(t, tab.Add(dataset.NewNumeric("x", xs)))
	require.NoError(t, tab.Add(dataset.NewNumeric("y", ys)))

	f, err := NewForest(10, 4)
	require.NoError(t, err)
	out, err := f.Impute(context.Background(), tab)
	require.NoError(t, err)

	y := out.Column("y")
	assert.Zero(t, y.MissingCount())
	for i := range ys {
		assert.Equal(t, 4.0, y.Values[i])
	}
}

func TestForestStaysInObservedRange(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	rows := 300
	xs := make([]float64, rows)
	ys := make([]float64, rows)
	labels := make([]string, rows)
	for i := range xs {
		xs[i] = 10 * rng.Float64()
		ys[i] = xs[i]
		if xs[i] < 5 {
			labels[i] = "lo"
		} else {
			labels[i] = "hi"
		}
	}
	for i := 0; i < 40; i++ {
		ys[i*7] = math.NaN()
	}
	labels[1], labels[8], labels[15] = "", "", ""

	tab := dataset.NewTable("rf")
	require.NoError(t, tab.Add(dataset.NewNumeric("x", xs)))
	require.NoError(t, tab.Add(dataset.NewNumeric("y", ys)))
	require.NoError(t, tab.Add(dataset.NewCategorical("band", labels)))

	f, err := NewForest(50, 8)
	require.NoError(t, err)
	out, err := f.Impute(context.Background(), tab)
	require.NoError(t, err)

	assert.Zero(t, out.MissingCells())

	obs := tab.Column("y").Observed()
	lo, hi := obs[0], obs[0]
	for _, v := range obs {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	for _, i := range tab.Column("y").MissingIndices() {
		v := out.Column("y").Values[i]
		assert.GreaterOrEqual(t, v, lo)
		assert.LessOrEqual(t, v, hi)
	}
	for _, i := range tab.Column("band").MissingIndices() {
		lbl := out.Column("band").Label(i)
		assert.Contains(t, []string{"lo", "hi"}, lbl)
	}
}

func TestMultipleImputationDrawsDiffer(t *testing.T) {
	holes := []int{4, 19, 63, 107, 151, 248}
	tab := linearTable(t, 300, 1.0, holes, 21)

	mi, err := NewMultiple(5, rand.NewSource(33))
	require.NoError(t, err)
	assert.Equal(t, 5, mi.M())

	draws, err := mi.ImputeMultiple(context.Background(), tab)
	require.NoError(t, err)
	require.Len(t, draws, 5)

	for _, d := range draws {
		assert.Zero(t, d.MissingCells())
	}
	assert.NotEqual(t, draws[0].Column("y").Values, draws[1].Column("y").Values)
}

func TestMultipleImputationPoolsCellMeans(t *testing.T) {
	holes := []int{4, 19, 63}
	tab := linearTable(t, 200, 1.0, holes, 21)

	mi, err := NewMultiple(4, rand.NewSource(8))
	require.NoError(t, err)
	draws, err := mi.ImputeMultiple(context.Background(), tab)
	require.NoError(t, err)

	pooled, err := poolTables(tab, draws)
	require.NoError(t, err)
	assert.Zero(t, pooled.MissingCells())

	for _, i := range holes {
		sum := 0.0
		for _, d := range draws {
			sum += d.Column("y").Values[i]
		}
		assert.InDelta(t, sum/4, pooled.Column("y").Values[i], 1e-12)
	}

	// Observed cells pass through untouched.
	for i, v := range tab.Column("y").Values {
		if !tab.Column("y").IsMissing(i) {
			assert.Equal(t, v, pooled.Column("y").Values[i])
		}
	}
}

func TestPoolRubinRules(t *testing.T) {
	p, err := Pool([]float64{1, 2, 3}, []float64{0.5, 0.5, 0.5})
	require.NoError(t, err)

	assert.Equal(t, 3, p.M)
	assert.InDelta(t, 2.0, p.Estimate, 1e-12)
	assert.InDelta(t, 0.5, p.Within, 1e-12)
	assert.InDelta(t, 1.0, p.Between, 1e-12)
	assert.InDelta(t, 0.5+(1+1.0/3)*1.0, p.Total, 1e-12)
	assert.InDelta(t, math.Sqrt(p.Total), p.SE, 1e-12)
	assert.GreaterOrEqual(t, p.Total, p.Within)
}

func TestPoolWithoutVariances(t *testing.T) {
	p, err := Pool([]float64{4, 6}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, p.Estimate, 1e-12)
	assert.Zero(t, p.Within)
	assert.InDelta(t, (1+0.5)*2.0, p.Total, 1e-12)
}

func TestPoolErrors(t *testing.T) {
	_, err := Pool([]float64{1}, nil)
	assert.ErrorContains(t, err, "at least 2 estimates")

	_, err = Pool([]float64{1, 2}, []float64{0.1})
	assert.ErrorContains(t, err, "2 estimates")
}

func TestConstructorValidation(t *testing.T) {
	cases := []struct {
		name    string
		build   func() error
		wantErr string
	}{
		{
			name:    "one draw",
			build:   func() error { _, err := NewMultiple(1, rand.NewSource(1)); return err },
			wantErr: "at least 2 draws",
		},
		{
			name:    "gam span too large",
			build:   func() error { _, err := NewGAM(1.5); return err },
			wantErr: "span must be in (0,1]",
		},
		{
			name:    "negative trees",
			build:   func() error { _, err := NewForest(-1, 0); return err },
			wantErr: "at least one tree",
		},
		{
			name:    "one bin",
			build:   func() error { _, err := NewForest(0, 1); return err },
			wantErr: "at least two bins",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorContains(t, tc.build(), tc.wantErr)
		})
	}
}

func TestImputeHonorsContext(t *testing.T) {
	tab := linearTable(t, 50, 1.0, []int{2, 9}, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mi, err := NewMultiple(3, rand.NewSource(1))
	require.NoError(t, err)
	_, err = mi.Impute(ctx, tab)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewEM(0, 0).Impute(ctx, tab)
	assert.ErrorIs(t, err, context.Canceled)
}
