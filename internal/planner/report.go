package planner

import "nozze/internal/core"

// JSON views shared by the HTTP API and the scenario worker. Amounts are in
// currency units.
type (
	SelectionView struct {
		Category string  `json:"category"`
		Weight   float64 `json:"weight"`
		Package  string  `json:"package"`
		Cost     float64 `json:"cost"`
		Quality  float64 `json:"quality"`
		Value    float64 `json:"value"`
	}

	PlanView struct {
		Budget     float64         `json:"budget"`
		TotalCost  float64         `json:"total_cost"`
		Remaining  float64         `json:"remaining"`
		TotalValue float64         `json:"total_value"`
		Selections []SelectionView `json:"selections"`
	}

	ChangeView struct {
		Category    string  `json:"category"`
		PackageFull string  `json:"package_full"`
		CostFull    float64 `json:"cost_full"`
		QualityFull float64 `json:"quality_full"`
		PackageCut  string  `json:"package_cut"`
		CostCut     float64 `json:"cost_cut"`
		QualityCut  float64 `json:"quality_cut"`
		CostDelta   float64 `json:"cost_delta"`
		ValueDelta  float64 `json:"value_delta"`
	}

	Report struct {
		Cut       float64      `json:"cut"`
		Baseline  PlanView     `json:"baseline"`
		Reduced   PlanView     `json:"reduced"`
		Changes   []ChangeView `json:"changes"`
		ValueLost float64      `json:"value_lost"`
		Savings   float64      `json:"savings"`
	}
)

func NewPlanView(p core.Plan) PlanView {
	v := PlanView{
		Budget:     p.Budget.Dollars(),
		TotalCost:  p.TotalCost.Dollars(),
		Remaining:  p.Remaining().Dollars(),
		TotalValue: p.TotalValue,
		Selections: make([]SelectionView, len(p.Selections)),
	}
	for i, s := range p.Selections {
		v.Selections[i] = SelectionView{
			Category: s.Category,
			Weight:   s.Weight,
			Package:  s.Package.Name,
			Cost:     s.Package.Cost.Dollars(),
			Quality:  s.Package.Quality,
			Value:    s.Value(),
		}
	}
	return v
}

func NewReport(c Comparison) Report {
	r := Report{
		Cut:       c.Cut.Dollars(),
		Baseline:  NewPlanView(c.Baseline),
		Reduced:   NewPlanView(c.Reduced),
		Changes:   make([]ChangeView, len(c.Changes)),
		ValueLost: c.ValueLost,
		Savings:   c.Savings.Dollars(),
	}
	for i, ch := range c.Changes {
		r.Changes[i] = ChangeView{
			Category:    ch.Category,
			PackageFull: ch.From.Name,
			CostFull:    ch.From.Cost.Dollars(),
			QualityFull: ch.From.Quality,
			PackageCut:  ch.To.Name,
			CostCut:     ch.To.Cost.Dollars(),
			QualityCut:  ch.To.Quality,
			CostDelta:   ch.CostDelta().Dollars(),
			ValueDelta:  ch.ValueDelta(),
		}
	}
	return r
}
