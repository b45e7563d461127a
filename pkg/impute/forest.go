package impute

import (
	"context"
	"fmt"
	"sort"

	randomforest "github.com/malaschitz/randomForest"
	"gonum.org/v1/gonum/stat"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
)

// Forest imputes with random-forest classification on the complete columns.
// Categorical targets take the majority vote. Numeric targets are discretized
// into quantile bins for training and the class votes are mapped back to a
// vote-weighted mix of bin medians. Columns without usable features fall back
// to substitution.
//
// The forest library seeds its own randomness, so this is the one method
// whose fills are not reproducible from Options.Seed.
type Forest struct {
	trees int
	bins  int
}

// NewForest builds the forest imputer. Zero trees defaults to 100, zero bins
// to 10.
func NewForest(trees, bins int) (*Forest, error) {
	if trees == 0 {
		trees = 100
	}
	if bins == 0 {
		bins = 10
	}
	if trees < 1 {
		return nil, fmt.Errorf("impute: forest needs at least one tree, got %d", trees)
	}
	if bins < 2 {
		return nil, fmt.Errorf("impute: forest needs at least two bins, got %d", bins)
	}
	return &Forest{trees: trees, bins: bins}, nil
}

func (*Forest) Name() string { return "forest" }

func (f *Forest) Impute(ctx context.Context, t *dataset.Table) (*dataset.Table, error) {
	out := t.Clone()
	for _, c := range incompleteColumns(out) {
		if err := checkCtx(ctx); err != nil {
			return nil, err
		}
		if err := requireObserved(c); err != nil {
			return nil, err
		}
		features := completeFeatures(t, c.Name)
		rows := c.ObservedIndices()
		if len(features) == 0 || len(rows) < gamMinTraining {
			fill, err := fallbackFill(c)
			if err != nil {
				return nil, err
			}
			for _, i := range c.MissingIndices() {
				c.SetValue(i, fill)
			}
			continue
		}
		if err := f.fillColumn(c, features, rows); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// completeFeatures returns every complete column except the target.
// Categorical features enter as level codes, which tree splits handle.
func completeFeatures(t *dataset.Table, target string) []*dataset.Column {
	var out []*dataset.Column
	for _, c := range t.Columns {
		if c.Name == target || c.MissingCount() > 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (f *Forest) fillColumn(c *dataset.Column, features []*dataset.Column, rows []int) error {
	classes, decode := f.encodeTarget(c, rows)

	// A single observed class has nothing to train on; decode it directly.
	if cls, ok := singleClass(classes); ok {
		votes := make([]float64, cls+1)
		votes[cls] = 1
		fill := decode(votes)
		for _, i := range c.MissingIndices() {
			c.SetValue(i, fill)
		}
		return nil
	}

	x := make([][]float64, len(rows))
	for k, i := range rows {
		x[k] = featureVector(features, i)
	}

	forest := randomforest.Forest{}
	forest.Data = randomforest.ForestData{X: x, Class: classes}
	forest.Train(f.trees)

	for _, i := range c.MissingIndices() {
		votes := forest.Vote(featureVector(features, i))
		c.SetValue(i, decode(votes))
	}
	return nil
}

func featureVector(features []*dataset.Column, i int) []float64 {
	v := make([]float64, len(features))
	for j, fc := range features {
		v[j] = fc.Values[i]
	}
	return v
}

// encodeTarget maps the observed target values to training classes and
// returns the decoder from class votes back to a fill value.
func (f *Forest) encodeTarget(c *dataset.Column, rows []int) ([]int, func([]float64) float64) {
	if c.Kind == dataset.Categorical {
		classes := make([]int, len(rows))
		for k, i := range rows {
			classes[k] = int(c.Values[i])
		}
		return classes, argmaxDecoder
	}

	ys := make([]float64, len(rows))
	for k, i := range rows {
		ys[k] = c.Values[i]
	}
	edges := quantileEdges(ys, f.bins)
	if len(edges) == 0 {
		// Zero spread: one bin, the constant is the only possible fill.
		v := ys[0]
		return make([]int, len(rows)), func([]float64) float64 { return v }
	}

	raw := make([]int, len(rows))
	present := map[int]bool{}
	for k, y := range ys {
		raw[k] = sort.SearchFloat64s(edges, y)
		present[raw[k]] = true
	}

	// Remap to contiguous classes so the forest trains on dense labels.
	bins := make([]int, 0, len(present))
	for b := range present {
		bins = append(bins, b)
	}
	sort.Ints(bins)
	remap := map[int]int{}
	for cls, b := range bins {
		remap[b] = cls
	}

	classes := make([]int, len(rows))
	grouped := make([][]float64, len(bins))
	for k, b := range raw {
		cls := remap[b]
		classes[k] = cls
		grouped[cls] = append(grouped[cls], ys[k])
	}
	medians := make([]float64, len(bins))
	for cls, group := range grouped {
		sort.Float64s(group)
		medians[cls] = stat.Quantile(0.5, stat.Empirical, group, nil)
	}

	decode := func(votes []float64) float64 {
		sum, total := 0.0, 0.0
		for cls, w := range votes {
			if cls < len(medians) && w > 0 {
				sum += w * medians[cls]
				total += w
			}
		}
		if total == 0 {
			return medians[len(medians)/2]
		}
		return sum / total
	}
	return classes, decode
}

func singleClass(classes []int) (int, bool) {
	for _, cls := range classes[1:] {
		if cls != classes[0] {
			return 0, false
		}
	}
	return classes[0], true
}

func argmaxDecoder(votes []float64) float64 {
	best := 0
	for cls, w := range votes {
		if w > votes[best] {
			best = cls
		}
	}
	return float64(best)
}

// quantileEdges returns the strictly increasing interior quantile cut points
// for the requested bin count.
func quantileEdges(ys []float64, bins int) []float64 {
	sorted := append([]float64(nil), ys...)
	sort.Float64s(sorted)
	var edges []float64
	for k := 1; k < bins; k++ {
		q := stat.Quantile(float64(k)/float64(bins), stat.Empirical, sorted, nil)
		if len(edges) == 0 || q > edges[len(edges)-1] {
			edges = append(edges, q)
		}
	}
	if len(edges) > 0 && edges[0] <= sorted[0] {
		// An edge at the minimum would leave bin zero empty.
		edges = edges[1:]
	}
	return edges
}
