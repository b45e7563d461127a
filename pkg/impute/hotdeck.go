package impute

import (
	"context"
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
)

// HotDeck fills each missing cell with the value of a randomly drawn donor
// row observed in the same column. With a Within column set, donors are
// restricted to rows sharing the recipient's group level and fall back to the
// full donor pool when the group has none.
type HotDeck struct {
	within string
	rng    *rand.Rand
}

// NewHotDeck builds a hot-deck imputer drawing donors from src.
func NewHotDeck(within string, src rand.Source) *HotDeck {
	return &HotDeck{within: within, rng: rand.New(src)}
}

func (h *HotDeck) Name() string { return "hotdeck" }

func (h *HotDeck) Impute(ctx context.Context, t *dataset.Table) (*dataset.Table, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	var group *dataset.Column
	if h.within != "" {
		group = t.Column(h.within)
		if group == nil {
			return nil, fmt.Errorf("impute: hot-deck group column %q not found", h.within)
		}
		if group.Kind != dataset.Categorical {
			return nil, fmt.Errorf("impute: hot-deck group column %s is not categorical", h.within)
		}
	}

	out := t.Clone()
	for _, c := range incompleteColumns(out) {
		donors := c.ObservedIndices()
		if len(donors) == 0 {
			return nil, fmt.Errorf("impute: column %s has no donors", c.Name)
		}

		var byGroup map[int][]int
		if group != nil {
			byGroup = map[int][]int{}
			for _, i := range donors {
				if group.IsMissing(i) {
					continue
				}
				g := int(group.Values[i])
				byGroup[g] = append(byGroup[g], i)
			}
		}

		for _, i := range c.MissingIndices() {
			pool := donors
			if group != nil && !group.IsMissing(i) {
				if candidates := byGroup[int(group.Values[i])]; len(candidates) > 0 {
					pool = candidates
				}
			}
			donor := pool[h.rng.Intn(len(pool))]
			c.SetValue(i, c.Values[donor])
		}
	}
	return out, nil
}
