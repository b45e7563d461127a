package score

import (
	"fmt"
	"sort"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
)

// Options bundles the tunables for a comparison run.
type Options struct {
	Density DensityOptions `json:"density"`
}

// ColumnScore carries every metric that applied to one imputed column.
// Pointer fields stay nil when a metric does not apply, for example cellwise
// errors after listwise deletion changed the row count.
type ColumnScore struct {
	Column       string   `json:"column"`
	Kind         string   `json:"kind"`
	MissingCells int      `json:"missing_cells"`
	Wasserstein  *float64 `json:"wasserstein,omitempty"`
	JSD          *float64 `json:"jsd,omitempty"`
	KS           *float64 `json:"ks,omitempty"`
	RMSE         *float64 `json:"rmse,omitempty"`
	MAE          *float64 `json:"mae,omitempty"`
	MatchRate    *float64 `json:"match_rate,omitempty"`
}

// Compare scores every column that lost cells in the corrupted table,
// comparing the imputed result against the ground truth.
func Compare(truth, corrupted, imputed *dataset.Table, o Options) ([]ColumnScore, error) {
	if truth.Rows() != corrupted.Rows() {
		return nil, fmt.Errorf("compare: truth has %d rows, corrupted has %d", truth.Rows(), corrupted.Rows())
	}
	var out []ColumnScore
	for _, cc := range corrupted.Columns {
		if cc.MissingCount() == 0 {
			continue
		}
		cs, err := CompareColumn(truth, corrupted, imputed, cc.Name, o)
		if err != nil {
			return nil, err
		}
		out = append(out, *cs)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("compare: corrupted table has no missing cells")
	}
	return out, nil
}

// CompareColumn scores a single column. Distributional metrics compare the
// observed values of the imputed column against the truth column; cellwise
// metrics apply only when the imputation preserved row identity.
func CompareColumn(truth, corrupted, imputed *dataset.Table, name string, o Options) (*ColumnScore, error) {
	tc := truth.Column(name)
	cc := corrupted.Column(name)
	ic := imputed.Column(name)
	if tc == nil || cc == nil || ic == nil {
		return nil, fmt.Errorf("compare: column %q absent from some table", name)
	}
	if tc.Kind != ic.Kind {
		return nil, fmt.Errorf("compare: column %s kind changed from %s to %s", name, tc.Kind, ic.Kind)
	}

	cs := &ColumnScore{
		Column:       name,
		Kind:         tc.Kind.String(),
		MissingCells: cc.MissingCount(),
	}
	sameRows := ic.Len() == tc.Len()

	switch tc.Kind {
	case dataset.Numeric:
		tobs, iobs := tc.Observed(), ic.Observed()
		w, err := Wasserstein1(tobs, iobs)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		ks, err := KolmogorovSmirnov(tobs, iobs)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		js, err := JensenShannon(tobs, iobs, o.Density)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		cs.Wasserstein = fptr(w)
		cs.KS = fptr(ks)
		cs.JSD = fptr(js)
		if sameRows {
			rmse, err := RMSE(tc.Values, ic.Values, cc.Missing)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", name, err)
			}
			mae, err := MAE(tc.Values, ic.Values, cc.Missing)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", name, err)
			}
			cs.RMSE = fptr(rmse)
			cs.MAE = fptr(mae)
		}
	case dataset.Categorical:
		js, err := JensenShannonLevels(tc, ic)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		cs.JSD = fptr(js)
		if sameRows {
			mr, err := MatchRate(tc, ic, cc.Missing)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", name, err)
			}
			cs.MatchRate = fptr(mr)
		}
	}
	return cs, nil
}

// Flatten turns column scores into "column.metric" keyed values, the shape
// the study aggregation works over.
func Flatten(scores []ColumnScore) map[string]float64 {
	out := map[string]float64{}
	for _, cs := range scores {
		put := func(metric string, v *float64) {
			if v != nil {
				out[cs.Column+"."+metric] = *v
			}
		}
		put("wasserstein", cs.Wasserstein)
		put("jsd", cs.JSD)
		put("ks", cs.KS)
		put("rmse", cs.RMSE)
		put("mae", cs.MAE)
		put("match_rate", cs.MatchRate)
	}
	return out
}

// MetricKeys lists the flattened metric names in stable order.
func MetricKeys(flat map[string]float64) []string {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fptr(v float64) *float64 { return &v }
