package score

import (
	"fmt"
	"math"
	"sort"

	"github.com/aclements/go-moremath/stats"
	"github.com/aclements/go-moremath/vec"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
)

// DensityOptions tunes the kernel density estimates behind JensenShannon.
type DensityOptions struct {
	GridSize  int     `json:"grid_size"` // evaluation grid points, default 512
	Bandwidth float64 `json:"bandwidth"` // fixed KDE bandwidth, Scott's rule when zero
	Widen     float64 `json:"widen"`     // grid margin in bandwidths, default 3
}

func (o DensityOptions) gridSize() int {
	if o.GridSize <= 0 {
		return 512
	}
	return o.GridSize
}

func (o DensityOptions) widen() float64 {
	if o.Widen <= 0 {
		return 3
	}
	return o.Widen
}

// Wasserstein1 is the first Wasserstein distance between the empirical
// distributions of p and q, computed as the integral of the absolute ECDF
// difference over the merged support. The samples may have different sizes.
func Wasserstein1(p, q []float64) (float64, error) {
	if len(p) == 0 || len(q) == 0 {
		return 0, fmt.Errorf("wasserstein: empty sample (%d and %d values)", len(p), len(q))
	}
	ps := sortedCopy(p)
	qs := sortedCopy(q)

	np, nq := float64(len(ps)), float64(len(qs))
	var total, prev float64
	i, j := 0, 0
	first := true
	for i < len(ps) || j < len(qs) {
		var t float64
		switch {
		case i >= len(ps):
			t = qs[j]
		case j >= len(qs):
			t = ps[i]
		case ps[i] <= qs[j]:
			t = ps[i]
		default:
			t = qs[j]
		}
		if !first {
			fp := float64(i) / np
			fq := float64(j) / nq
			total += math.Abs(fp-fq) * (t - prev)
		}
		for i < len(ps) && ps[i] == t {
			i++
		}
		for j < len(qs) && qs[j] == t {
			j++
		}
		prev = t
		first = false
	}
	return total, nil
}

// KolmogorovSmirnov is the two-sample KS statistic: the maximum absolute
// difference between the two empirical CDFs.
func KolmogorovSmirnov(p, q []float64) (float64, error) {
	if len(p) == 0 || len(q) == 0 {
		return 0, fmt.Errorf("kolmogorov-smirnov: empty sample (%d and %d values)", len(p), len(q))
	}
	ps := sortedCopy(p)
	qs := sortedCopy(q)

	np, nq := float64(len(ps)), float64(len(qs))
	var max float64
	i, j := 0, 0
	for i < len(ps) || j < len(qs) {
		var t float64
		switch {
		case i >= len(ps):
			t = qs[j]
		case j >= len(qs):
			t = ps[i]
		case ps[i] <= qs[j]:
			t = ps[i]
		default:
			t = qs[j]
		}
		for i < len(ps) && ps[i] == t {
			i++
		}
		for j < len(qs) && qs[j] == t {
			j++
		}
		if d := math.Abs(float64(i)/np - float64(j)/nq); d > max {
			max = d
		}
	}
	return max, nil
}

// JensenShannon is the Jensen-Shannon divergence between kernel density
// estimates of p and q, evaluated on a shared grid and computed in log base 2
// so the result lies in [0, 1].
func JensenShannon(p, q []float64, o DensityOptions) (float64, error) {
	if len(p) == 0 || len(q) == 0 {
		return 0, fmt.Errorf("jensen-shannon: empty sample (%d and %d values)", len(p), len(q))
	}

	sp := stats.Sample{Xs: append([]float64(nil), p...)}
	sq := stats.Sample{Xs: append([]float64(nil), q...)}

	bwp := o.Bandwidth
	if bwp == 0 {
		bwp = stats.BandwidthScott(sp)
	}
	bwq := o.Bandwidth
	if bwq == 0 {
		bwq = stats.BandwidthScott(sq)
	}
	// Constant samples defeat density estimation; compare the constants.
	if bwp <= 0 || bwq <= 0 {
		return jensenShannonDegenerate(sp, sq)
	}

	pmin, pmax := sp.Bounds()
	qmin, qmax := sq.Bounds()
	lo := math.Min(pmin-o.widen()*bwp, qmin-o.widen()*bwq)
	hi := math.Max(pmax+o.widen()*bwp, qmax+o.widen()*bwq)

	kp := stats.KDE{Sample: sp, Bandwidth: bwp}
	kq := stats.KDE{Sample: sq, Bandwidth: bwq}
	grid := vec.Linspace(lo, hi, o.gridSize())
	dp := normalize(vec.Map(kp.PDF, grid))
	dq := normalize(vec.Map(kq.PDF, grid))
	return jsd(dp, dq), nil
}

func jensenShannonDegenerate(sp, sq stats.Sample) (float64, error) {
	pmin, pmax := sp.Bounds()
	qmin, qmax := sq.Bounds()
	if pmin == pmax && qmin == qmax {
		if pmin == qmin {
			return 0, nil
		}
		return 1, nil
	}
	return 0, fmt.Errorf("jensen-shannon: zero bandwidth for non-constant sample")
}

// JensenShannonLevels is the Jensen-Shannon divergence between the level
// frequency distributions of two categorical columns.
func JensenShannonLevels(p, q *dataset.Column) (float64, error) {
	if p.Kind != dataset.Categorical || q.Kind != dataset.Categorical {
		return 0, fmt.Errorf("jensen-shannon levels: both columns must be categorical")
	}
	union := map[string]int{}
	for _, lev := range p.Levels {
		if _, ok := union[lev]; !ok {
			union[lev] = len(union)
		}
	}
	for _, lev := range q.Levels {
		if _, ok := union[lev]; !ok {
			union[lev] = len(union)
		}
	}
	fp, err := levelFreqs(p, union)
	if err != nil {
		return 0, err
	}
	fq, err := levelFreqs(q, union)
	if err != nil {
		return 0, err
	}
	return jsd(fp, fq), nil
}

func levelFreqs(c *dataset.Column, union map[string]int) ([]float64, error) {
	freqs := make([]float64, len(union))
	total := 0
	for i, v := range c.Values {
		if c.Missing[i] {
			continue
		}
		freqs[union[c.Levels[int(v)]]]++
		total++
	}
	if total == 0 {
		return nil, fmt.Errorf("jensen-shannon levels: column %s has no observed cells", c.Name)
	}
	for i := range freqs {
		freqs[i] /= float64(total)
	}
	return freqs, nil
}

// jsd computes the divergence between two probability vectors in bits,
// clamped to [0, 1] against floating point drift.
func jsd(dp, dq []float64) float64 {
	div := 0.0
	for i := range dp {
		m := (dp[i] + dq[i]) / 2
		if dp[i] > 0 && m > 0 {
			div += 0.5 * dp[i] * math.Log2(dp[i]/m)
		}
		if dq[i] > 0 && m > 0 {
			div += 0.5 * dq[i] * math.Log2(dq[i]/m)
		}
	}
	if div < 0 {
		return 0
	}
	if div > 1 {
		return 1
	}
	return div
}

func normalize(xs []float64) []float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	if sum <= 0 {
		return xs
	}
	for i := range xs {
		xs[i] /= sum
	}
	return xs
}

func sortedCopy(xs []float64) []float64 {
	out := append([]float64(nil), xs...)
	sort.Float64s(out)
	return out
}
