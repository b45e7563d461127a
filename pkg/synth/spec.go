package synth

import (
	"fmt"
	"math"
)

// Distribution names accepted by ColumnSpec.Dist.
const (
	DistNormal      = "normal"
	DistLogNormal   = "lognormal"
	DistUniform     = "uniform"
	DistExponential = "exponential"
	DistMixture     = "mixture"
	DistCategorical = "categorical"
)

// MixtureComponent is one normal component of a mixture column.
type MixtureComponent struct {
	Weight float64 `json:"weight"` // relative component weight
	Mu     float64 `json:"mu"`     // component mean
	Sigma  float64 `json:"sigma"`  // component standard deviation
}

// ColumnSpec describes one independently generated column. The fields used
// depend on Dist: normal/lognormal read Mu and Sigma, uniform reads Min and
// Max, exponential reads Rate, mixture reads Components, categorical reads
// Levels and optional Weights.
type ColumnSpec struct {
	Name       string             `json:"name"`
	Dist       string             `json:"dist"`
	Mu         float64            `json:"mu,omitempty"`
	Sigma      float64            `json:"sigma,omitempty"`
	Min        float64            `json:"min,omitempty"`
	Max        float64            `json:"max,omitempty"`
	Rate       float64            `json:"rate,omitempty"`
	Levels     []string           `json:"levels,omitempty"`
	Weights    []float64          `json:"weights,omitempty"`
	Components []MixtureComponent `json:"components,omitempty"`
}

// CorrelatedSpec describes a jointly normal block of columns with the given
// mean vector and covariance matrix.
type CorrelatedSpec struct {
	Names []string    `json:"names"`
	Mean  []float64   `json:"mean"`
	Cov   [][]float64 `json:"cov"`
}

// ResponseSpec describes a linear response column
// y = intercept + sum(coeffs[c] * c) + N(0, noise_sigma^2), built from
// previously generated numeric columns. It gives the table a known
// relationship for conditional missingness and model-based scoring.
type ResponseSpec struct {
	Name       string             `json:"name"`
	Intercept  float64            `json:"intercept"`
	Coeffs     map[string]float64 `json:"coeffs"`
	NoiseSigma float64            `json:"noise_sigma"`
}

// Spec is a full synthetic dataset description.
type Spec struct {
	Name       string          `json:"name"`
	Rows       int             `json:"rows"`
	Columns    []ColumnSpec    `json:"columns"`
	Correlated *CorrelatedSpec `json:"correlated,omitempty"`
	Response   *ResponseSpec   `json:"response,omitempty"`
}

// Validate checks column definitions and distribution parameters before
// any generation happens.
func (s *Spec) Validate() error {
	if s.Rows <= 0 {
		return fmt.Errorf("spec %s: rows must be positive, got %d", s.Name, s.Rows)
	}
	names := map[string]bool{}
	claim := func(name string) error {
		if name == "" {
			return fmt.Errorf("spec %s: empty column name", s.Name)
		}
		if names[name] {
			return fmt.Errorf("spec %s: duplicate column %s", s.Name, name)
		}
		names[name] = true
		return nil
	}

	for _, c := range s.Columns {
		if err := claim(c.Name); err != nil {
			return err
		}
		if err := c.validate(); err != nil {
			return fmt.Errorf("spec %s: %w", s.Name, err)
		}
	}
	if s.Correlated != nil {
		if err := s.Correlated.validate(claim); err != nil {
			return fmt.Errorf("spec %s: %w", s.Name, err)
		}
	}
	if s.Response != nil {
		r := s.Response
		if err := claim(r.Name); err != nil {
			return err
		}
		if len(r.Coeffs) == 0 {
			return fmt.Errorf("spec %s: response %s has no coefficients", s.Name, r.Name)
		}
		if r.NoiseSigma < 0 {
			return fmt.Errorf("spec %s: response %s noise sigma is negative", s.Name, r.Name)
		}
		for pred := range r.Coeffs {
			if !names[pred] {
				return fmt.Errorf("spec %s: response %s references unknown column %s", s.Name, r.Name, pred)
			}
		}
	}
	return nil
}

func (c *ColumnSpec) validate() error {
	switch c.Dist {
	case DistNormal, DistLogNormal:
		if c.Sigma <= 0 {
			return fmt.Errorf("column %s: sigma must be positive", c.Name)
		}
	case DistUniform:
		if c.Min >= c.Max {
			return fmt.Errorf("column %s: min must be below max", c.Name)
		}
	case DistExponential:
		if c.Rate <= 0 {
			return fmt.Errorf("column %s: rate must be positive", c.Name)
		}
	case DistMixture:
		if len(c.Components) == 0 {
			return fmt.Errorf("column %s: mixture needs components", c.Name)
		}
		total := 0.0
		for _, mc := range c.Components {
			if mc.Weight <= 0 {
				return fmt.Errorf("column %s: component weight must be positive", c.Name)
			}
			if mc.Sigma <= 0 {
				return fmt.Errorf("column %s: component sigma must be positive", c.Name)
			}
			total += mc.Weight
		}
		if math.IsNaN(total) || total <= 0 {
			return fmt.Errorf("column %s: component weights sum to %v", c.Name, total)
		}
	case DistCategorical:
		if len(c.Levels) == 0 {
			return fmt.Errorf("column %s: categorical needs levels", c.Name)
		}
		if len(c.Weights) != 0 && len(c.Weights) != len(c.Levels) {
			return fmt.Errorf("column %s: %d weights for %d levels", c.Name, len(c.Weights), len(c.Levels))
		}
		for _, w := range c.Weights {
			if w <= 0 {
				return fmt.Errorf("column %s: level weight must be positive", c.Name)
			}
		}
	default:
		return fmt.Errorf("column %s: unknown distribution %q", c.Name, c.Dist)
	}
	return nil
}

func (cs *CorrelatedSpec) validate(claim func(string) error) error {
	d := len(cs.Names)
	if d == 0 {
		return fmt.Errorf("correlated block has no columns")
	}
	for _, name := range cs.Names {
		if err := claim(name); err != nil {
			return err
		}
	}
	if len(cs.Mean) != d {
		return fmt.Errorf("correlated block: %d means for %d columns", len(cs.Mean), d)
	}
	if len(cs.Cov) != d {
		return fmt.Errorf("correlated block: covariance has %d rows, expected %d", len(cs.Cov), d)
	}
	for i, row := range cs.Cov {
		if len(row) != d {
			return fmt.Errorf("correlated block: covariance row %d has %d entries, expected %d", i, len(row), d)
		}
		for j := i + 1; j < d; j++ {
			if math.Abs(row[j]-cs.Cov[j][i]) > 1e-9 {
				return fmt.Errorf("correlated block: covariance not symmetric at (%d,%d)", i, j)
			}
		}
	}
	return nil
}
