package impute

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/exp/rand"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
)

// Method fills the missing cells of a table. Implementations never mutate
// their input; they return a new table. Listwise deletion is the only method
// that changes the row count.
type Method interface {
	Name() string
	Impute(ctx context.Context, t *dataset.Table) (*dataset.Table, error)
}

// Options carries the per-method tunables. Zero values select defaults.
type Options struct {
	Seed        int64   `json:"seed"`         // randomness for stochastic methods
	Within      string  `json:"within"`       // hot-deck donor grouping column
	Imputations int     `json:"imputations"`  // multiple-imputation count, default 5
	MaxIter     int     `json:"max_iter"`     // EM iteration cap, default 100
	Tol         float64 `json:"tol"`          // EM convergence tolerance, default 1e-4
	Span        float64 `json:"span"`         // GAM loess span, default 0.5
	Trees       int     `json:"trees"`        // forest size, default 100
	Bins        int     `json:"bins"`         // forest bins for numeric targets, default 10
}

func (o Options) source() rand.Source {
	return rand.NewSource(uint64(o.Seed))
}

var builders = map[string]func(Options) (Method, error){
	"deletion": func(Options) (Method, error) { return Deletion{}, nil },
	"mean":     func(Options) (Method, error) { return Substitute{Stat: StatMean}, nil },
	"median":   func(Options) (Method, error) { return Substitute{Stat: StatMedian}, nil },
	"mode":     func(Options) (Method, error) { return Substitute{Stat: StatMode}, nil },
	"hotdeck": func(o Options) (Method, error) {
		return NewHotDeck(o.Within, o.source()), nil
	},
	"regression": func(Options) (Method, error) {
		return Regression{}, nil
	},
	"stochastic": func(o Options) (Method, error) {
		return NewStochasticRegression(o.source()), nil
	},
	"em": func(o Options) (Method, error) {
		return NewEM(o.MaxIter, o.Tol), nil
	},
	"mi": func(o Options) (Method, error) {
		return NewMultiple(o.Imputations, o.source())
	},
	"gam": func(o Options) (Method, error) {
		return NewGAM(o.Span)
	},
	"forest": func(o Options) (Method, error) {
		return NewForest(o.Trees, o.Bins)
	},
}

// New builds the named method.
func New(name string, o Options) (Method, error) {
	build, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("impute: unknown method %q (have %v)", name, Names())
	}
	return build(o)
}

// Names lists the registered methods in stable order.
func Names() []string {
	out := make([]string, 0, len(builders))
	for name := range builders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// incompleteColumns returns columns that have at least one missing cell, in
// table order.
func incompleteColumns(t *dataset.Table) []*dataset.Column {
	var out []*dataset.Column
	for _, c := range t.Columns {
		if c.MissingCount() > 0 {
			out = append(out, c)
		}
	}
	return out
}

// completePredictors returns the numeric columns without missing cells,
// excluding the named target.
func completePredictors(t *dataset.Table, target string) []*dataset.Column {
	var out []*dataset.Column
	for _, c := range t.Columns {
		if c.Name == target || c.Kind != dataset.Numeric {
			continue
		}
		if c.MissingCount() == 0 {
			out = append(out, c)
		}
	}
	return out
}

func requireObserved(c *dataset.Column) error {
	if len(c.ObservedIndices()) == 0 {
		return fmt.Errorf("impute: column %s has no observed values", c.Name)
	}
	return nil
}
