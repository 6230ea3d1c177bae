package allocator

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nozze/internal/catalog"
	"nozze/internal/core"
)

func mustLoad(t *testing.T, cats []core.RawCategory, pkgs []core.RawPackage) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Load(cats, pkgs)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return c
}

func weddingCatalog(t *testing.T) *catalog.Catalog {
	return mustLoad(t,
		[]core.RawCategory{{Name: "Venue", Weight: 9}, {Name: "Photography", Weight: 7}},
		[]core.RawPackage{
			{Category: "Venue", Name: "Budget", Cost: 5000, Quality: 4},
			{Category: "Venue", Name: "Luxury", Cost: 15000, Quality: 9},
			{Category: "Photography", Name: "Budget", Cost: 1000, Quality: 3},
			{Category: "Photography", Name: "Luxury", Cost: 4000, Quality: 8},
		})
}

func chosen(p core.Plan) map[string]string {
	out := make(map[string]string, len(p.Selections))
	for _, s := range p.Selections {
		out[s.Category] = s.Package.Name
	}
	return out
}

func TestAllocateExampleScenario(t *testing.T) {
	cat := weddingCatalog(t)

	tests := []struct {
		budget int64
		want   map[string]string
		cost   int64
		value  float64
	}{
		{20000, map[string]string{"Venue": "Luxury", "Photography": "Luxury"}, 19000, 137},
		{10000, map[string]string{"Venue": "Budget", "Photography": "Luxury"}, 9000, 92},
		{8999, map[string]string{"Venue": "Budget", "Photography": "Budget"}, 6000, 57},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("budget_%d", tt.budget), func(t *testing.T) {
			plan, err := Allocate(core.FromDollars(tt.budget), cat)
			if err != nil {
				t.Fatalf("allocate: %v", err)
			}
			if diff := cmp.Diff(tt.want, chosen(plan)); diff != "" {
				t.Errorf("selection mismatch (-want +got):\n%s", diff)
			}
			if plan.TotalCost != core.FromDollars(tt.cost) {
				t.Errorf("total cost = %v, want %d", plan.TotalCost, tt.cost)
			}
			if plan.TotalValue != tt.value {
				t.Errorf("total value = %v, want %v", plan.TotalValue, tt.value)
			}
			if plan.Selections[0].Category != "Photography" {
				t.Errorf("selections not sorted by category: %+v", plan.Selections)
			}
		})
	}
}

func TestAllocateInfeasibilityBoundary(t *testing.T) {
	cat := weddingCatalog(t)

	_, err := Allocate(core.Money{Cents: 599999}, cat)
	var infeasible *core.InfeasibleBudgetError
	if !errors.As(err, &infeasible) {
		t.Fatalf("expected InfeasibleBudgetError, got %v", err)
	}
	if infeasible.MinimumCost != core.FromDollars(6000) {
		t.Fatalf("minimum cost = %v", infeasible.MinimumCost)
	}
	if got := MinimumCost(cat); got != infeasible.MinimumCost {
		t.Fatalf("MinimumCost = %v, want %v", got, infeasible.MinimumCost)
	}

	plan, err := Allocate(core.FromDollars(6000), cat)
	if err != nil {
		t.Fatalf("allocate at minimum: %v", err)
	}
	want := map[string]string{"Venue": "Budget", "Photography": "Budget"}
	if diff := cmp.Diff(want, chosen(plan)); diff != "" {
		t.Fatalf("expected cheapest packages (-want +got):\n%s", diff)
	}
	if plan.Remaining().Cents != 0 {
		t.Fatalf("remaining = %v", plan.Remaining())
	}
}

func TestAllocateRejectsBadInput(t *testing.T) {
	if _, err := Allocate(core.Money{Cents: -1}, weddingCatalog(t)); !errors.Is(err, core.ErrNegativeBudget) {
		t.Fatalf("expected ErrNegativeBudget, got %v", err)
	}
	if _, err := Allocate(core.FromDollars(100), nil); !errors.Is(err, core.ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
}

func TestAllocateTieBreak(t *testing.T) {
	t.Run("lower cost wins on equal value", func(t *testing.T) {
		cat := mustLoad(t,
			[]core.RawCategory{{Name: "Flowers", Weight: 0}, {Name: "Music", Weight: 2}},
			[]core.RawPackage{
				{Category: "Flowers", Name: "Luxury", Cost: 300, Quality: 9},
				{Category: "Flowers", Name: "Mid", Cost: 100, Quality: 5},
				{Category: "Flowers", Name: "Budget", Cost: 100, Quality: 1},
				{Category: "Music", Name: "DJ", Cost: 500, Quality: 3},
				{Category: "Music", Name: "Band", Cost: 900, Quality: 3},
			})
		plan, err := Allocate(core.FromDollars(5000), cat)
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		// Flowers has weight 0: every package is worth nothing, the two
		// cheapest tie on cost and the earlier listed one wins.
		want := map[string]string{"Flowers": "Mid", "Music": "DJ"}
		if diff := cmp.Diff(want, chosen(plan)); diff != "" {
			t.Fatalf("tie-break mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("fractional values compare with tolerance", func(t *testing.T) {
		cat := mustLoad(t,
			[]core.RawCategory{{Name: "Cake", Weight: 1}, {Name: "Favors", Weight: 1}},
			[]core.RawPackage{
				{Category: "Cake", Name: "Small", Cost: 200, Quality: 0.1},
				{Category: "Cake", Name: "Tiered", Cost: 240, Quality: 0.3},
				{Category: "Favors", Name: "Basic", Cost: 100, Quality: 0.2},
				{Category: "Favors", Name: "None", Cost: 50, Quality: 0},
			})
		plan, err := Allocate(core.FromDollars(300), cat)
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		// Small+Basic sums to 0.30000000000000004 at $300, Tiered+None to
		// 0.3 at $290. The values are equal, so the cheaper pair wins.
		want := map[string]string{"Cake": "Tiered", "Favors": "None"}
		if diff := cmp.Diff(want, chosen(plan)); diff != "" {
			t.Fatalf("tolerance tie-break mismatch (-want +got):\n%s", diff)
		}
	})
}

// exhaustive enumerates every combination in lexicographic order and keeps
// the best one under the same tie-break as Allocate.
func exhaustive(t *testing.T, budget core.Money, cat *catalog.Catalog) (core.Plan, bool) {
	t.Helper()
	groups := cat.Groups()
	choices := make([]int, len(groups))
	var best core.Plan
	found := false
	for {
		plan, err := Evaluate(budget, cat, choices)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if plan.TotalCost.Cents <= budget.Cents {
			if !found || compareValue(plan.TotalValue, best.TotalValue) > 0 ||
				(compareValue(plan.TotalValue, best.TotalValue) == 0 && plan.TotalCost.Cents < best.TotalCost.Cents) {
				best, found = plan, true
			}
		}
		i := len(choices) - 1
		for i >= 0 {
			choices[i]++
			if choices[i] < len(groups[i].Packages) {
				break
			}
			choices[i] = 0
			i--
		}
		if i < 0 {
			return best, found
		}
	}
}

func randomCatalog(t *testing.T, rng *rand.Rand) *catalog.Catalog {
	names := []string{"Venue", "Catering", "Photography", "Attire", "Music", "Flowers"}
	tiers := []string{"Budget", "Mid", "Luxury", "Premium"}
	n := 1 + rng.Intn(5)
	var cats []core.RawCategory
	var pkgs []core.RawPackage
	for i := 0; i < n; i++ {
		cats = append(cats, core.RawCategory{Name: names[i], Weight: float64(rng.Intn(11))})
		for j, m := 0, 1+rng.Intn(4); j < m; j++ {
			pkgs = append(pkgs, core.RawPackage{
				Category: names[i],
				Name:     tiers[j],
				Cost:     float64(50 * rng.Intn(40)),
				Quality:  float64(rng.Intn(11)),
			})
		}
	}
	return mustLoad(t, cats, pkgs)
}

func TestAllocateMatchesExhaustiveSearch(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		cat := randomCatalog(t, rng)
		lo, hi := cat.MinimumCost().Cents, cat.MaximumCost().Cents
		budget := core.Money{Cents: lo + rng.Int63n(hi-lo+1)}

		want, ok := exhaustive(t, budget, cat)
		if !ok {
			t.Fatalf("case %d: exhaustive search found no plan for %v", i, budget)
		}
		got, err := Allocate(budget, cat)
		if err != nil {
			t.Fatalf("case %d: allocate: %v", i, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("case %d: plan mismatch for budget %v (-exhaustive +allocate):\n%s", i, budget, diff)
		}
		if got.TotalCost.Cents > budget.Cents || len(got.Selections) != cat.Len() {
			t.Fatalf("case %d: infeasible plan %+v", i, got)
		}
	}
}

func TestAllocateMonotoneInBudget(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		cat := randomCatalog(t, rng)
		lo, hi := cat.MinimumCost().Cents, cat.MaximumCost().Cents
		prev := -1.0
		for b := lo; b <= hi+5000; b += 2500 {
			plan, err := Allocate(core.Money{Cents: b}, cat)
			if err != nil {
				t.Fatalf("case %d budget %d: %v", i, b, err)
			}
			if plan.TotalValue < prev {
				t.Fatalf("case %d: value decreased from %v to %v at budget %d", i, prev, plan.TotalValue, b)
			}
			prev = plan.TotalValue
		}
	}
}

func TestAllocateDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	cat := randomCatalog(t, rng)
	budget := cat.MaximumCost()
	first, err := Allocate(budget, cat)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := Allocate(budget, cat)
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("run %d differs:\n%s", i, diff)
		}
	}
}

func TestEvaluate(t *testing.T) {
	cat := weddingCatalog(t)
	plan, err := Evaluate(core.FromDollars(10000), cat, []int{1, 0})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if plan.TotalCost != core.FromDollars(16000) || plan.TotalValue != 102 {
		t.Fatalf("unexpected totals: %v %v", plan.TotalCost, plan.TotalValue)
	}
	if _, err := Evaluate(core.FromDollars(1), cat, []int{0}); err == nil {
		t.Fatalf("expected length error")
	}
	if _, err := Evaluate(core.FromDollars(1), cat, []int{0, 2}); err == nil {
		t.Fatalf("expected range error")
	}
}
