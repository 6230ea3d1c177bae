// Package catalog validates raw category and package rows and exposes them
// as immutable tables for the allocator.
//
// Load is a pure transform: it performs no I/O and never writes back to the
// source the rows came from. A *Catalog is safe for concurrent readers.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"nozze/internal/core"
)

// Table names used in CatalogError.
const (
	TableCategories = "categories"
	TablePackages   = "packages"
	TableWeights    = "weights"
)

// Group is one category together with its candidate packages, in input order.
type Group struct {
	Category core.Category
	Packages []core.Package
}

type Catalog struct {
	categories []core.Category
	rows       []int            // input row of each category
	packages   [][]core.Package // parallel to categories
	index      map[string]int   // core.NameKey -> position
	digest     string
}

// Load validates the raw tables and builds a Catalog.
//
// Every violation is reported as a *core.CatalogError naming the offending
// row. When several rows are invalid the errors are joined; errors.As still
// yields the first one.
func Load(categories []core.RawCategory, packages []core.RawPackage) (*Catalog, error) {
	var errs []error
	fail := func(table string, row int, field, value, reason string) {
		errs = append(errs, &core.CatalogError{Table: table, Row: row, Field: field, Value: value, Reason: reason})
	}

	c := &Catalog{index: make(map[string]int, len(categories))}
	for i, rc := range categories {
		row := i + 1
		name := strings.TrimSpace(rc.Name)
		if name == "" {
			fail(TableCategories, row, "category", rc.Name, "name is empty")
			continue
		}
		key := core.NameKey(name)
		if pos, dup := c.index[key]; dup {
			fail(TableCategories, row, "category", name, fmt.Sprintf("duplicate of row %d", c.rows[pos]))
			continue
		}
		if reason := checkNumber(rc.Weight); reason != "" {
			fail(TableCategories, row, "weight", formatFloat(rc.Weight), reason)
		}
		c.index[key] = len(c.categories)
		c.rows = append(c.rows, row)
		c.categories = append(c.categories, core.Category{Name: name, Weight: rc.Weight})
	}

	c.packages = make([][]core.Package, len(c.categories))
	seen := make([]map[string]int, len(c.categories))
	for i, rp := range packages {
		row := i + 1
		catName := strings.TrimSpace(rp.Category)
		if catName == "" {
			fail(TablePackages, row, "category", rp.Category, "category is empty")
			continue
		}
		pos, ok := c.index[core.NameKey(catName)]
		if !ok {
			fail(TablePackages, row, "category", catName, "unknown category")
			continue
		}
		name := strings.TrimSpace(rp.Name)
		if name == "" {
			fail(TablePackages, row, "package", rp.Name, "name is empty")
			continue
		}
		cost, err := core.FromFloat(rp.Cost)
		if err != nil {
			fail(TablePackages, row, "cost", formatFloat(rp.Cost), costReason(rp.Cost))
			continue
		}
		if reason := checkNumber(rp.Quality); reason != "" {
			fail(TablePackages, row, "quality", formatFloat(rp.Quality), reason)
			continue
		}
		if seen[pos] == nil {
			seen[pos] = make(map[string]int)
		}
		if prev, dup := seen[pos][core.NameKey(name)]; dup {
			fail(TablePackages, row, "package", name, fmt.Sprintf("duplicate of row %d in category %q", prev, c.categories[pos].Name))
			continue
		}
		seen[pos][core.NameKey(name)] = row
		c.packages[pos] = append(c.packages[pos], core.Package{
			Category: c.categories[pos].Name,
			Name:     name,
			Cost:     cost,
			Quality:  rp.Quality,
		})
	}

	var maxTotal int64
	for pos, cat := range c.categories {
		if len(c.packages[pos]) == 0 {
			fail(TableCategories, c.rows[pos], "category", cat.Name, "has no packages")
			continue
		}
		var most int64
		for _, p := range c.packages[pos] {
			most = max(most, p.Cost.Cents)
		}
		if maxTotal > math.MaxInt64-most {
			fail(TableCategories, c.rows[pos], "category", cat.Name, "catalog cost range overflows")
			continue
		}
		maxTotal += most
	}

	switch {
	case len(errs) == 1:
		return nil, errs[0]
	case len(errs) > 1:
		return nil, errors.Join(errs...)
	case len(c.categories) == 0:
		return nil, core.ErrEmptyCatalog
	}
	if pos := c.valueOverflow(); pos >= 0 {
		cat := c.categories[pos]
		return nil, &core.CatalogError{Table: TableCategories, Row: c.rows[pos], Field: "weight", Value: formatFloat(cat.Weight), Reason: "value range overflows"}
	}
	c.digest = c.computeDigest()
	return c, nil
}

// valueOverflow returns the position of the first category whose best
// weight × quality, or the running sum of those bests, is not finite.
// It returns -1 when every plan value is representable.
func (c *Catalog) valueOverflow() int {
	var total float64
	for pos, cat := range c.categories {
		var best float64
		for _, p := range c.packages[pos] {
			v := cat.Weight * p.Quality
			if math.IsInf(v, 0) || math.IsNaN(v) {
				return pos
			}
			best = max(best, v)
		}
		total += best
		if math.IsInf(total, 0) {
			return pos
		}
	}
	return -1
}

func checkNumber(v float64) string {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return "must be finite"
	case v < 0:
		return "must not be negative"
	}
	return ""
}

func costReason(v float64) string {
	if reason := checkNumber(v); reason != "" {
		return reason
	}
	return "too large"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Len returns the number of categories.
func (c *Catalog) Len() int {
	return len(c.categories)
}

// Categories returns the categories in input order.
func (c *Catalog) Categories() []core.Category {
	return append([]core.Category(nil), c.categories...)
}

// Groups returns every category with its packages, in input order.
func (c *Catalog) Groups() []Group {
	out := make([]Group, len(c.categories))
	for i, cat := range c.categories {
		out[i] = Group{Category: cat, Packages: append([]core.Package(nil), c.packages[i]...)}
	}
	return out
}

// Packages returns the packages of a category, matched case-insensitively.
func (c *Catalog) Packages(category string) ([]core.Package, bool) {
	pos, ok := c.index[core.NameKey(category)]
	if !ok {
		return nil, false
	}
	return append([]core.Package(nil), c.packages[pos]...), true
}

// Weight looks up a category weight, matched case-insensitively.
func (c *Catalog) Weight(category string) (float64, bool) {
	pos, ok := c.index[core.NameKey(category)]
	if !ok {
		return 0, false
	}
	return c.categories[pos].Weight, true
}

// Weights returns the category name to weight table.
func (c *Catalog) Weights() map[string]float64 {
	out := make(map[string]float64, len(c.categories))
	for _, cat := range c.categories {
		out[cat.Name] = cat.Weight
	}
	return out
}

// MinimumCost is the sum of the cheapest package of every category: the
// smallest budget for which a plan exists.
func (c *Catalog) MinimumCost() core.Money {
	var total int64
	for _, pkgs := range c.packages {
		cheapest := pkgs[0].Cost.Cents
		for _, p := range pkgs[1:] {
			cheapest = min(cheapest, p.Cost.Cents)
		}
		total += cheapest
	}
	return core.Money{Cents: total}
}

// MaximumCost is the sum of the most expensive package of every category.
// Budgets above it never change the plan.
func (c *Catalog) MaximumCost() core.Money {
	var total int64
	for _, pkgs := range c.packages {
		var most int64
		for _, p := range pkgs {
			most = max(most, p.Cost.Cents)
		}
		total += most
	}
	return core.Money{Cents: total}
}

// Digest identifies the normalized content of the catalog, weights included.
func (c *Catalog) Digest() string {
	return c.digest
}

func (c *Catalog) computeDigest() string {
	h := sha256.New()
	for i, cat := range c.categories {
		fmt.Fprintf(h, "c\t%s\t%s\n", cat.Name, formatFloat(cat.Weight))
		for _, p := range c.packages[i] {
			fmt.Fprintf(h, "p\t%s\t%d\t%s\n", p.Name, p.Cost.Cents, formatFloat(p.Quality))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// WithWeights returns a new Catalog whose category weights are replaced by
// the given ones. Categories not mentioned keep their weight. Unknown or
// repeated names and invalid weights are reported as *core.CatalogError
// against the "weights" table, rows numbered in sorted name order.
func (c *Catalog) WithWeights(weights map[string]float64) (*Catalog, error) {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	out := &Catalog{
		categories: append([]core.Category(nil), c.categories...),
		rows:       c.rows,
		packages:   c.packages,
		index:      c.index,
	}
	var errs []error
	rowOf := make(map[int]int, len(names))
	for i, name := range names {
		w := weights[name]
		pos, ok := c.index[core.NameKey(name)]
		if !ok {
			errs = append(errs, &core.CatalogError{Table: TableWeights, Row: i + 1, Field: "category", Value: name, Reason: "unknown category"})
			continue
		}
		if prev, dup := rowOf[pos]; dup {
			errs = append(errs, &core.CatalogError{Table: TableWeights, Row: i + 1, Field: "category", Value: name, Reason: fmt.Sprintf("duplicate of row %d", prev)})
			continue
		}
		rowOf[pos] = i + 1
		if reason := checkNumber(w); reason != "" {
			errs = append(errs, &core.CatalogError{Table: TableWeights, Row: i + 1, Field: "weight", Value: formatFloat(w), Reason: reason})
			continue
		}
		out.categories[pos].Weight = w
	}
	if len(errs) == 1 {
		return nil, errs[0]
	}
	if len(errs) > 1 {
		return nil, errors.Join(errs...)
	}
	if pos := out.valueOverflow(); pos >= 0 {
		cat := out.categories[pos]
		if row, ok := rowOf[pos]; ok {
			return nil, &core.CatalogError{Table: TableWeights, Row: row, Field: "weight", Value: formatFloat(cat.Weight), Reason: "value range overflows"}
		}
		return nil, &core.CatalogError{Table: TableCategories, Row: out.rows[pos], Field: "weight", Value: formatFloat(cat.Weight), Reason: "value range overflows"}
	}
	out.digest = out.computeDigest()
	return out, nil
}

// Raw returns the normalized tables in the shape accepted by Load, so a
// caller can persist them.
func (c *Catalog) Raw() ([]core.RawCategory, []core.RawPackage) {
	cats := make([]core.RawCategory, len(c.categories))
	var pkgs []core.RawPackage
	for i, cat := range c.categories {
		cats[i] = core.RawCategory{Name: cat.Name, Weight: cat.Weight}
		for _, p := range c.packages[i] {
			pkgs = append(pkgs, core.RawPackage{
				Category: p.Category,
				Name:     p.Name,
				Cost:     p.Cost.Dollars(),
				Quality:  p.Quality,
			})
		}
	}
	return cats, pkgs
}
