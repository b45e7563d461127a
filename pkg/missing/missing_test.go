package missing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/synth"
)

func completeTable(t *testing.T, rows int, seed uint64) *dataset.Table {
	t.Helper()
	spec := synth.Spec{
		Name: "amputee",
		Rows: rows,
		Columns: []synth.ColumnSpec{
			{Name: "x", Dist: synth.DistNormal, Mu: 0, Sigma: 1},
			{Name: "z", Dist: synth.DistNormal, Mu: 10, Sigma: 3},
		},
	}
	tbl, err := synth.Generate(spec, rand.NewSource(seed))
	require.NoError(t, err)
	return tbl
}

func TestMCARRateAndIsolation(t *testing.T) {
	tbl := completeTable(t, 10000, 1)
	rng := rand.New(rand.NewSource(2))

	out, n, err := Inject(tbl, []Plan{{Mechanism: MCAR, Target: "x", Rate: 0.3}}, rng)
	require.NoError(t, err)

	assert.InDelta(t, 3000, float64(n), 150, "injected count tracks the rate")
	assert.Equal(t, n, out.Column("x").MissingCount())
	assert.Equal(t, 0, out.Column("z").MissingCount(), "non-target column untouched")
	assert.Equal(t, 0, tbl.MissingCells(), "input table untouched")
	require.NoError(t, out.Validate())
}

func TestMARDriverDependence(t *testing.T) {
	tbl := completeTable(t, 10000, 3)
	rng := rand.New(rand.NewSource(4))

	out, n, err := Inject(tbl, []Plan{{
		Mechanism: MAR, Target: "x", Rate: 0.3, Driver: "z", Strength: 2,
	}}, rng)
	require.NoError(t, err)
	assert.InDelta(t, 3000, float64(n), 200, "calibration hits the rate")

	x := out.Column("x")
	z := out.Column("z").Values
	var zMissing, zObserved []float64
	for i := 0; i < x.Len(); i++ {
		if x.IsMissing(i) {
			zMissing = append(zMissing, z[i])
		} else {
			zObserved = append(zObserved, z[i])
		}
	}
	assert.Greater(t, stat.Mean(zMissing, nil), stat.Mean(zObserved, nil),
		"positive strength removes rows with high driver values")
}

func TestMNARSelfCensoring(t *testing.T) {
	tbl := completeTable(t, 10000, 5)
	rng := rand.New(rand.NewSource(6))
	truth := tbl.Clone()

	out, n, err := Inject(tbl, []Plan{{
		Mechanism: MNAR, Target: "x", Rate: 0.25, Strength: 3,
	}}, rng)
	require.NoError(t, err)
	assert.InDelta(t, 2500, float64(n), 200)

	x := out.Column("x")
	orig := truth.Column("x").Values
	var lost, kept []float64
	for i := 0; i < x.Len(); i++ {
		if x.IsMissing(i) {
			lost = append(lost, orig[i])
		} else {
			kept = append(kept, orig[i])
		}
	}
	assert.Greater(t, stat.Mean(lost, nil), stat.Mean(kept, nil),
		"high values censor themselves")
}

func TestZeroStrengthDegeneratesToMCAR(t *testing.T) {
	tbl := completeTable(t, 5000, 7)
	rng := rand.New(rand.NewSource(8))

	out, n, err := Inject(tbl, []Plan{{
		Mechanism: MAR, Target: "x", Rate: 0.2, Driver: "z", Strength: 0,
	}}, rng)
	require.NoError(t, err)
	assert.InDelta(t, 1000, float64(n), 120)

	x := out.Column("x")
	z := out.Column("z").Values
	var zMissing, zObserved []float64
	for i := 0; i < x.Len(); i++ {
		if x.IsMissing(i) {
			zMissing = append(zMissing, z[i])
		} else {
			zObserved = append(zObserved, z[i])
		}
	}
	assert.InDelta(t, stat.Mean(zObserved, nil), stat.Mean(zMissing, nil), 0.25,
		"no driver effect at zero strength")
}

func TestInjectSequentialPlans(t *testing.T) {
	tbl := completeTable(t, 2000, 9)
	rng := rand.New(rand.NewSource(10))

	out, n, err := Inject(tbl, []Plan{
		{Mechanism: MCAR, Target: "x", Rate: 0.2},
		{Mechanism: MCAR, Target: "z", Rate: 0.1},
	}, rng)
	require.NoError(t, err)

	assert.Equal(t, n, out.MissingCells())
	assert.Greater(t, out.Column("x").MissingCount(), 0)
	assert.Greater(t, out.Column("z").MissingCount(), 0)
}

func TestInjectDeterministic(t *testing.T) {
	plans := []Plan{{Mechanism: MAR, Target: "x", Rate: 0.3, Driver: "z", Strength: 1.5}}

	a, _, err := Inject(completeTable(t, 1000, 11), plans, rand.New(rand.NewSource(12)))
	require.NoError(t, err)
	b, _, err := Inject(completeTable(t, 1000, 11), plans, rand.New(rand.NewSource(12)))
	require.NoError(t, err)

	assert.Equal(t, a.Column("x").Missing, b.Column("x").Missing)
}

func TestPlanValidation(t *testing.T) {
	tbl := completeTable(t, 100, 13)

	tests := []struct {
		name string
		plan Plan
	}{
		{name: "rate zero", plan: Plan{Mechanism: MCAR, Target: "x", Rate: 0}},
		{name: "rate one", plan: Plan{Mechanism: MCAR, Target: "x", Rate: 1}},
		{name: "unknown target", plan: Plan{Mechanism: MCAR, Target: "nope", Rate: 0.2}},
		{name: "unknown mechanism", plan: Plan{Mechanism: "sometimes", Target: "x", Rate: 0.2}},
		{name: "mar without driver", plan: Plan{Mechanism: MAR, Target: "x", Rate: 0.2}},
		{name: "mar driver equals target", plan: Plan{Mechanism: MAR, Target: "x", Rate: 0.2, Driver: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Inject(tbl, []Plan{tt.plan}, rand.New(rand.NewSource(1)))
			assert.Error(t, err)
		})
	}
}
