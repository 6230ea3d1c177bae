package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNegativeBudget = errors.New("budget cannot be negative")
	ErrEmptyCatalog   = errors.New("catalog has no categories")
	ErrInvalidCatalog = errors.New("invalid catalog")
)

// CatalogError reports malformed or inconsistent catalog input.
// Row is 1-based within Table ("categories" or "packages"); Row 0 refers
// to the header of a tabular source.
type CatalogError struct {
	Table  string
	Row    int
	Field  string
	Value  string
	Reason string
}

func (e *CatalogError) Error() string {
	where := fmt.Sprintf("%s row %d", e.Table, e.Row)
	if e.Row == 0 {
		where = e.Table + " header"
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", where, e.Reason)
	}
	return fmt.Sprintf("%s: %s %q: %s", where, e.Field, e.Value, e.Reason)
}

// Is makes every CatalogError match ErrInvalidCatalog.
func (e *CatalogError) Is(target error) bool {
	return target == ErrInvalidCatalog
}

// InfeasibleBudgetError is returned when not even the cheapest package of
// every category fits in the budget.
type InfeasibleBudgetError struct {
	Budget      Money
	MinimumCost Money
}

func (e *InfeasibleBudgetError) Error() string {
	return fmt.Sprintf("budget too low: %s available, minimum required is %s", e.Budget, e.MinimumCost)
}
