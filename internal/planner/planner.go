// Package planner compares the plans produced for a baseline budget and a
// reduced one, and caches solved plans by catalog digest and budget.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"nozze/internal/allocator"
	"nozze/internal/cache"
	"nozze/internal/catalog"
	"nozze/internal/core"
	"nozze/internal/sources"
)

var (
	ErrNegativeCut      = errors.New("cut amount cannot be negative")
	ErrCutExceedsBudget = errors.New("cut amount cannot make budget negative")
)

// Change is a category whose package differs between the two plans.
type Change struct {
	Category string
	Weight   float64
	From     core.Package
	To       core.Package
}

// CostDelta is the spend difference To - From.
func (c Change) CostDelta() core.Money {
	return c.To.Cost.Sub(c.From.Cost)
}

// ValueDelta is the weighted quality difference To - From.
func (c Change) ValueDelta() float64 {
	return c.Weight * (c.To.Quality - c.From.Quality)
}

// Comparison is the outcome of planning at a baseline budget and at the
// same budget reduced by a cut.
type Comparison struct {
	Cut       core.Money
	Baseline  core.Plan
	Reduced   core.Plan
	Changes   []Change
	ValueLost float64
	Savings   core.Money
}

// Planner solves plans, optionally through a cache. The zero value is not
// usable; call New.
type Planner struct {
	plans cache.Cache[core.Plan]
}

// New creates a planner. plans may be nil to disable caching.
func New(plans cache.Cache[core.Plan]) *Planner {
	return &Planner{plans: plans}
}

func planKey(cat *catalog.Catalog, budget core.Money) string {
	return fmt.Sprintf("%s:%d", cat.Digest(), budget.Cents)
}

// Plan returns the optimal plan for the budget.
func (p *Planner) Plan(ctx context.Context, budget core.Money, cat *catalog.Catalog) (core.Plan, error) {
	if err := ctx.Err(); err != nil {
		return core.Plan{}, err
	}
	if p.plans == nil || cat == nil {
		return allocator.Allocate(budget, cat)
	}

	key := planKey(cat, budget)
	if plan, ok := p.plans.Get(key); ok {
		slog.DebugContext(ctx, "Plan cache hit", "budget", budget.String())
		return clonePlan(plan), nil
	}

	plan, err := allocator.Allocate(budget, cat)
	if err != nil {
		return core.Plan{}, err
	}
	p.plans.Set(key, clonePlan(plan))
	return plan, nil
}

// clonePlan detaches the selections so cache entries never share a backing
// array with a caller.
func clonePlan(p core.Plan) core.Plan {
	p.Selections = slices.Clone(p.Selections)
	return p
}

// Compare plans the baseline budget and the budget reduced by cut. The two
// allocations run concurrently over the shared, read-only catalog.
func (p *Planner) Compare(ctx context.Context, cat *catalog.Catalog, budget, cut core.Money) (Comparison, error) {
	if budget.Cents < 0 {
		return Comparison{}, core.ErrNegativeBudget
	}
	if cut.Cents < 0 {
		return Comparison{}, ErrNegativeCut
	}
	if cut.Cents > budget.Cents {
		return Comparison{}, ErrCutExceedsBudget
	}

	var baseline, reduced core.Plan
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		baseline, err = p.Plan(gctx, budget, cat)
		if err != nil {
			return fmt.Errorf("baseline plan: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		reduced, err = p.Plan(gctx, budget.Sub(cut), cat)
		if err != nil {
			return fmt.Errorf("reduced plan: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Comparison{}, err
	}

	return Comparison{
		Cut:       cut,
		Baseline:  baseline,
		Reduced:   reduced,
		Changes:   Diff(baseline, reduced),
		ValueLost: baseline.TotalValue - reduced.TotalValue,
		Savings:   baseline.TotalCost.Sub(reduced.TotalCost),
	}, nil
}

// Diff lists the categories whose package differs between from and to, in
// the selection order of from. Categories missing from to are skipped.
func Diff(from, to core.Plan) []Change {
	var changes []Change
	for _, s := range from.Selections {
		other, ok := to.Lookup(s.Category)
		if !ok || core.SameName(s.Package.Name, other.Package.Name) {
			continue
		}
		changes = append(changes, Change{
			Category: s.Category,
			Weight:   s.Weight,
			From:     s.Package,
			To:       other.Package,
		})
	}
	return changes
}

// LoadCatalog reads the raw tables from a backend, validates them and applies
// the weight overrides, if any.
func LoadCatalog(ctx context.Context, r sources.CatalogReader, weights map[string]float64) (*catalog.Catalog, error) {
	cats, pkgs, err := r.ReadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := catalog.Load(cats, pkgs)
	if err != nil {
		return nil, err
	}
	if len(weights) == 0 {
		return cat, nil
	}
	return cat.WithWeights(weights)
}
