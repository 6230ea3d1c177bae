// Package allocator solves the multiple-choice knapsack behind a wedding
// budget plan: pick exactly one package per category, maximizing the sum of
// weight × quality while the total cost stays within the budget.
//
// The solver is a dynamic program over (category prefix, cumulative spend).
// Costs are integer cents, so spends are exact and only reachable spends are
// tracked. After each category the states form a frontier: a state is kept
// only if no cheaper (or equally cheap) state reaches at least its value.
//
// Ties are broken deterministically:
//
//  1. higher total value (values within a relative 1e-9 are equal);
//  2. lower total cost;
//  3. the lexicographically smaller choice vector, each category's choice
//     being the package position in catalog input order.
//
// Allocate is a pure function. It never mutates the catalog and performs no
// I/O, so concurrent calls sharing one catalog are safe.
package allocator

import (
	"fmt"
	"math"
	"sort"

	"nozze/internal/catalog"
	"nozze/internal/core"
)

const valueTolerance = 1e-9

type state struct {
	cost   int64
	value  float64
	parent int32 // position in the previous layer, -1 at the root
	choice int32 // package position within the category
}

// Allocate returns the best plan that fits the budget.
//
// It fails with core.ErrNegativeBudget for a negative budget,
// core.ErrEmptyCatalog for a nil or empty catalog, and
// *core.InfeasibleBudgetError when the cheapest package of every category
// already exceeds the budget.
func Allocate(budget core.Money, cat *catalog.Catalog) (core.Plan, error) {
	if budget.Cents < 0 {
		return core.Plan{}, core.ErrNegativeBudget
	}
	if cat == nil || cat.Len() == 0 {
		return core.Plan{}, core.ErrEmptyCatalog
	}
	if minimum := cat.MinimumCost(); minimum.Cents > budget.Cents {
		return core.Plan{}, &core.InfeasibleBudgetError{Budget: budget, MinimumCost: minimum}
	}

	groups := cat.Groups()
	choices := solve(budget.Cents, groups)
	return evaluate(budget, groups, choices), nil
}

// MinimumCost is the smallest budget for which Allocate succeeds.
func MinimumCost(cat *catalog.Catalog) core.Money {
	if cat == nil {
		return core.Money{}
	}
	return cat.MinimumCost()
}

// Evaluate builds the plan for an explicit selection: choices[i] is the
// position of the chosen package within the i-th category, in catalog input
// order. The budget is recorded on the plan but not enforced.
func Evaluate(budget core.Money, cat *catalog.Catalog, choices []int) (core.Plan, error) {
	if cat == nil || cat.Len() == 0 {
		return core.Plan{}, core.ErrEmptyCatalog
	}
	groups := cat.Groups()
	if len(choices) != len(groups) {
		return core.Plan{}, fmt.Errorf("expected %d choices, got %d", len(groups), len(choices))
	}
	for i, c := range choices {
		if c < 0 || c >= len(groups[i].Packages) {
			return core.Plan{}, fmt.Errorf("choice %d out of range for category %q", c, groups[i].Category.Name)
		}
	}
	return evaluate(budget, groups, choices), nil
}

func evaluate(budget core.Money, groups []catalog.Group, choices []int) core.Plan {
	plan := core.Plan{Budget: budget, Selections: make([]core.Selection, len(groups))}
	// Accumulate in catalog order, the same order the solver uses, so the
	// reported value matches the optimized one bit for bit.
	for i, g := range groups {
		sel := core.Selection{
			Category: g.Category.Name,
			Weight:   g.Category.Weight,
			Package:  g.Packages[choices[i]],
		}
		plan.Selections[i] = sel
		plan.TotalCost = plan.TotalCost.Add(sel.Package.Cost)
		plan.TotalValue += sel.Value()
	}
	core.SortSelections(plan.Selections)
	return plan
}

func solve(budget int64, groups []catalog.Group) []int {
	layers := make([][]state, len(groups)+1)
	layers[0] = []state{{parent: -1, choice: -1}}

	for k, g := range groups {
		prev := layers[k]
		// Generated in lexicographic order of choice vectors, as long as prev
		// is itself in that order.
		next := make([]state, 0, len(prev)*len(g.Packages))
		for pi, s := range prev {
			for ci, p := range g.Packages {
				cost := s.cost + p.Cost.Cents
				if cost > budget {
					continue
				}
				next = append(next, state{
					cost:   cost,
					value:  s.value + g.Category.Weight*p.Quality,
					parent: int32(pi),
					choice: int32(ci),
				})
			}
		}
		layers[k+1] = frontier(next)
	}

	last := layers[len(groups)]
	best := 0
	for i := 1; i < len(last); i++ {
		if better(last[i], last[best]) {
			best = i
		}
	}

	choices := make([]int, len(groups))
	idx := int32(best)
	for k := len(groups); k > 0; k-- {
		s := layers[k][idx]
		choices[k-1] = int(s.choice)
		idx = s.parent
	}
	return choices
}

// frontier drops every state dominated by a cheaper or equally cheap one and
// returns the survivors in their original (lexicographic) order.
func frontier(states []state) []state {
	if len(states) <= 1 {
		return states
	}
	order := make([]int, len(states))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return states[order[a]].cost < states[order[b]].cost
	})

	keep := make([]int, 0, len(states))
	haveBest := false
	var bestValue float64
	for start := 0; start < len(order); {
		end := start
		for end < len(order) && states[order[end]].cost == states[order[start]].cost {
			end++
		}
		// Among equal spends: highest value, then the earliest generated.
		pick := order[start]
		for _, i := range order[start+1 : end] {
			switch compareValue(states[i].value, states[pick].value) {
			case 1:
				pick = i
			case 0:
				if i < pick {
					pick = i
				}
			}
		}
		if !haveBest || compareValue(states[pick].value, bestValue) > 0 {
			keep = append(keep, pick)
			bestValue = states[pick].value
			haveBest = true
		}
		start = end
	}

	sort.Ints(keep)
	out := make([]state, len(keep))
	for i, k := range keep {
		out[i] = states[k]
	}
	return out
}

// better reports whether a beats b. Both come from the same layer, ordered
// lexicographically, so position settles full ties and is handled by the
// caller scanning in order.
func better(a, b state) bool {
	switch compareValue(a.value, b.value) {
	case 1:
		return true
	case -1:
		return false
	}
	return a.cost < b.cost
}

func compareValue(a, b float64) int {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	if math.Abs(a-b) <= valueTolerance*scale {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}
