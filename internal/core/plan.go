package core

import (
	"sort"
	"strings"
)

// Selection is the package chosen for one category.
type Selection struct {
	Category string
	Weight   float64
	Package  Package
}

// Value returns the weighted quality contributed by the selection.
func (s Selection) Value() float64 {
	return s.Weight * s.Package.Quality
}

// Plan assigns exactly one package to every category of a catalog.
// A Plan is never mutated once returned by the allocator.
type Plan struct {
	Budget     Money
	Selections []Selection // ordered by category name
	TotalCost  Money
	TotalValue float64
}

// Remaining returns the part of the budget left unspent.
func (p Plan) Remaining() Money {
	return Money{Cents: p.Budget.Cents - p.TotalCost.Cents}
}

// Lookup returns the selection for the given category.
func (p Plan) Lookup(category string) (Selection, bool) {
	for _, s := range p.Selections {
		if SameName(s.Category, category) {
			return s, true
		}
	}
	return Selection{}, false
}

// SortSelections orders selections by category name, case-insensitively.
func SortSelections(sel []Selection) {
	sort.SliceStable(sel, func(i, j int) bool {
		a, b := strings.ToLower(sel[i].Category), strings.ToLower(sel[j].Category)
		if a != b {
			return a < b
		}
		return sel[i].Category < sel[j].Category
	})
}
