package study

import (
	"fmt"
	"strconv"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/impute"
	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/missing"
	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/score"
	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/synth"
)

// Design describes a full factorial study: one synthetic data spec crossed
// with missingness plans, rates, imputation methods and replications. A
// single global seed makes the whole grid reproducible.
type Design struct {
	Name         string         `json:"name"`         // Study name
	Data         synth.Spec     `json:"data"`         // Synthetic data specification
	Mechanisms   []missing.Plan `json:"mechanisms"`   // Missingness plans (Rate overridden per trial)
	Rates        []float64      `json:"rates"`        // Missingness rates to cross
	Methods      []string       `json:"methods"`      // Imputation methods to cross
	Replications int            `json:"replications"` // Replications per cell
	Parallelism  int            `json:"parallelism"`  // Concurrent trials (0 = NumCPU)
	Seed         int64          `json:"seed"`         // Global seed
	Impute       impute.Options `json:"impute"`       // Shared imputer options
	Score        score.Options  `json:"score"`        // Scoring options
}

// Trial is one cell of the factorial grid.
type Trial struct {
	ID          string       `json:"id"`
	Mechanism   missing.Plan `json:"mechanism"`
	Rate        float64      `json:"rate"`
	Method      string       `json:"method"`
	Replication int          `json:"replication"`
	Seed        uint64       `json:"seed"`
}

// Validate reports the first problem that would make the design unrunnable.
func (d *Design) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("study: design needs a name")
	}
	if err := d.Data.Validate(); err != nil {
		return fmt.Errorf("study: data spec: %w", err)
	}
	if len(d.Mechanisms) == 0 {
		return fmt.Errorf("study: design needs at least one missingness plan")
	}
	if len(d.Rates) == 0 {
		return fmt.Errorf("study: design needs at least one missingness rate")
	}
	for _, r := range d.Rates {
		if r <= 0 || r >= 1 {
			return fmt.Errorf("study: rate %v is not in (0,1)", r)
		}
	}
	if len(d.Methods) == 0 {
		return fmt.Errorf("study: design needs at least one imputation method")
	}
	known := make(map[string]bool)
	for _, name := range impute.Names() {
		known[name] = true
	}
	for _, m := range d.Methods {
		if !known[m] {
			return fmt.Errorf("study: unknown imputation method %q (have %v)", m, impute.Names())
		}
	}
	if d.Replications < 1 {
		return fmt.Errorf("study: replications must be positive, got %d", d.Replications)
	}
	if d.Parallelism < 0 {
		return fmt.Errorf("study: parallelism must not be negative, got %d", d.Parallelism)
	}
	seen := make(map[string]bool)
	for _, t := range d.Trials() {
		if seen[t.ID] {
			return fmt.Errorf("study: duplicate trial id %s (plans need distinct mechanism/target pairs)", t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

// Trials expands the factorial grid into the ordered trial list. IDs are
// stable across runs so seeds, artifacts and history entries line up.
func (d *Design) Trials() []Trial {
	sm := NewSeedManager(d.Seed)
	var trials []Trial
	for _, plan := range d.Mechanisms {
		for _, rate := range d.Rates {
			for _, method := range d.Methods {
				for rep := 1; rep <= d.Replications; rep++ {
					id := trialID(plan, rate, method, rep)
					trials = append(trials, Trial{
						ID:          id,
						Mechanism:   plan,
						Rate:        rate,
						Method:      method,
						Replication: rep,
						Seed:        sm.TrialSeed(id),
					})
				}
			}
		}
	}
	return trials
}

func trialID(plan missing.Plan, rate float64, method string, rep int) string {
	mech := string(plan.Mechanism)
	if plan.Target != "" {
		mech += "-" + plan.Target
	}
	return fmt.Sprintf("trial_%s_%s_%s_r%d", mech, strconv.FormatFloat(rate, 'g', -1, 64), method, rep)
}
