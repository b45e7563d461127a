package missing

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
)

// Mechanism classifies why a cell goes missing.
type Mechanism string

const (
	// MCAR removes cells completely at random.
	MCAR Mechanism = "mcar"
	// MAR removes cells with probability driven by another, fully observed
	// column.
	MAR Mechanism = "mar"
	// MNAR removes cells with probability driven by the unobserved value
	// itself (self-censoring).
	MNAR Mechanism = "mnar"
)

// Plan describes one injection: which column loses values, under which
// mechanism, at which expected rate. Driver names the conditioning column for
// MAR. Strength scales how steeply the missingness probability follows the
// standardized driver; zero degenerates to MCAR.
type Plan struct {
	Mechanism Mechanism `json:"mechanism"`
	Target    string    `json:"target"`
	Rate      float64   `json:"rate"`
	Driver    string    `json:"driver,omitempty"`
	Strength  float64   `json:"strength,omitempty"`
}

// Validate checks the plan against a table.
func (p Plan) Validate(t *dataset.Table) error {
	if p.Rate <= 0 || p.Rate >= 1 {
		return fmt.Errorf("plan %s/%s: rate must be in (0,1), got %v", p.Mechanism, p.Target, p.Rate)
	}
	target := t.Column(p.Target)
	if target == nil {
		return fmt.Errorf("plan %s/%s: unknown target column", p.Mechanism, p.Target)
	}
	switch p.Mechanism {
	case MCAR:
	case MAR:
		driver := t.Column(p.Driver)
		if driver == nil {
			return fmt.Errorf("plan mar/%s: unknown driver column %q", p.Target, p.Driver)
		}
		if driver.Kind != dataset.Numeric {
			return fmt.Errorf("plan mar/%s: driver %s is not numeric", p.Target, p.Driver)
		}
		if driver.Name == target.Name {
			return fmt.Errorf("plan mar/%s: driver equals target, use mnar", p.Target)
		}
		if driver.MissingCount() > 0 {
			return fmt.Errorf("plan mar/%s: driver %s already has missing cells", p.Target, p.Driver)
		}
	case MNAR:
		if target.Kind != dataset.Numeric {
			return fmt.Errorf("plan mnar/%s: target is not numeric", p.Target)
		}
	default:
		return fmt.Errorf("plan %q/%s: unknown mechanism", p.Mechanism, p.Target)
	}
	return nil
}

// Inject applies the plans in order to a copy of the table and returns the
// copy along with the number of newly missing cells. Cells that are already
// missing are never selected again.
func Inject(t *dataset.Table, plans []Plan, rng *rand.Rand) (*dataset.Table, int, error) {
	out := t.Clone()
	total := 0
	for _, p := range plans {
		n, err := apply(out, p, rng)
		if err != nil {
			return nil, 0, err
		}
		total += n
	}
	return out, total, nil
}

func apply(t *dataset.Table, p Plan, rng *rand.Rand) (int, error) {
	if err := p.Validate(t); err != nil {
		return 0, err
	}
	target := t.Column(p.Target)

	switch p.Mechanism {
	case MCAR:
		n := 0
		for i := 0; i < target.Len(); i++ {
			if target.IsMissing(i) {
				continue
			}
			if rng.Float64() < p.Rate {
				target.SetMissing(i)
				n++
			}
		}
		return n, nil
	case MAR:
		driver := t.Column(p.Driver)
		return applyLogistic(target, driver.Values, p, rng)
	case MNAR:
		// Self-censoring: the (soon unobservable) value drives its own
		// missingness.
		return applyLogistic(target, target.Values, p, rng)
	default:
		return 0, fmt.Errorf("plan %q/%s: unknown mechanism", p.Mechanism, p.Target)
	}
}

// applyLogistic removes candidate cells with probability
// logistic(a + strength*z), z the standardized driver, with the intercept a
// calibrated so the mean probability over candidates equals the plan rate.
func applyLogistic(target *dataset.Column, driver []float64, p Plan, rng *rand.Rand) (int, error) {
	var candidates []int
	var zs []float64
	for i := 0; i < target.Len(); i++ {
		if target.IsMissing(i) {
			continue
		}
		candidates = append(candidates, i)
		zs = append(zs, driver[i])
	}
	if len(candidates) == 0 {
		return 0, fmt.Errorf("plan %s/%s: no observed cells to remove", p.Mechanism, p.Target)
	}

	mean, std := stat.MeanStdDev(zs, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}
	for i, v := range zs {
		zs[i] = (v - mean) / std
	}

	a := calibrateIntercept(zs, p.Strength, p.Rate)
	n := 0
	for j, i := range candidates {
		if rng.Float64() < logistic(a+p.Strength*zs[j]) {
			target.SetMissing(i)
			n++
		}
	}
	return n, nil
}

// calibrateIntercept solves mean(logistic(a + s*z)) = rate for a by
// bisection. The mean is strictly increasing in a, so the root is unique.
func calibrateIntercept(zs []float64, strength, rate float64) float64 {
	lo, hi := -50.0, 50.0
	for iter := 0; iter < 200; iter++ {
		mid := (lo + hi) / 2
		if meanProb(zs, mid, strength) < rate {
			lo = mid
		} else {
			hi = mid
		}
		if hi-lo < 1e-12 {
			break
		}
	}
	return (lo + hi) / 2
}

func meanProb(zs []float64, a, strength float64) float64 {
	sum := 0.0
	for _, z := range zs {
		sum += logistic(a + strength*z)
	}
	return sum / float64(len(zs))
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
