package catalog

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nozze/internal/core"
)

func sampleRows() ([]core.RawCategory, []core.RawPackage) {
	cats := []core.RawCategory{
		{Name: "Venue", Weight: 9},
		{Name: "Photography", Weight: 7},
	}
	pkgs := []core.RawPackage{
		{Category: "Venue", Name: "Budget", Cost: 5000, Quality: 4},
		{Category: "venue", Name: "Luxury", Cost: 15000, Quality: 9},
		{Category: "Photography", Name: "Budget", Cost: 1000, Quality: 3},
		{Category: " Photography ", Name: "Luxury", Cost: 4000, Quality: 8},
	}
	return cats, pkgs
}

func TestLoad(t *testing.T) {
	cats, pkgs := sampleRows()
	c, err := Load(cats, pkgs)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d", c.Len())
	}
	venue, ok := c.Packages("VENUE")
	if !ok || len(venue) != 2 {
		t.Fatalf("venue packages: %v %v", venue, ok)
	}
	if venue[1].Category != "Venue" || venue[1].Cost.Cents != 1500000 {
		t.Fatalf("package not normalized: %+v", venue[1])
	}
	if w, ok := c.Weight("photography"); !ok || w != 7 {
		t.Fatalf("weight = %v %v", w, ok)
	}
	if got := c.MinimumCost(); got != core.FromDollars(6000) {
		t.Fatalf("minimum cost = %v", got)
	}
	if got := c.MaximumCost(); got != core.FromDollars(19000) {
		t.Fatalf("maximum cost = %v", got)
	}
	groups := c.Groups()
	if groups[0].Category.Name != "Venue" || groups[1].Category.Name != "Photography" {
		t.Fatalf("groups not in input order: %+v", groups)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cats []core.RawCategory, pkgs []core.RawPackage) ([]core.RawCategory, []core.RawPackage)
		table  string
		row    int
		reason string
	}{
		{
			name: "duplicate category",
			mutate: func(c []core.RawCategory, p []core.RawPackage) ([]core.RawCategory, []core.RawPackage) {
				return append(c, core.RawCategory{Name: "VENUE", Weight: 1}), p
			},
			table: TableCategories, row: 3, reason: "duplicate of row 1",
		},
		{
			name: "orphan package",
			mutate: func(c []core.RawCategory, p []core.RawPackage) ([]core.RawCategory, []core.RawPackage) {
				return c, append(p, core.RawPackage{Category: "Catering", Name: "Mid", Cost: 1, Quality: 1})
			},
			table: TablePackages, row: 5, reason: "unknown category",
		},
		{
			name: "negative cost",
			mutate: func(c []core.RawCategory, p []core.RawPackage) ([]core.RawCategory, []core.RawPackage) {
				p[2].Cost = -1
				return c, p
			},
			table: TablePackages, row: 3, reason: "must not be negative",
		},
		{
			name: "negative quality",
			mutate: func(c []core.RawCategory, p []core.RawPackage) ([]core.RawCategory, []core.RawPackage) {
				p[0].Quality = -2
				return c, p
			},
			table: TablePackages, row: 1, reason: "must not be negative",
		},
		{
			name: "non-finite weight",
			mutate: func(c []core.RawCategory, p []core.RawPackage) ([]core.RawCategory, []core.RawPackage) {
				c[1].Weight = math.Inf(1)
				return c, p
			},
			table: TableCategories, row: 2, reason: "must be finite",
		},
		{
			name: "negative weight",
			mutate: func(c []core.RawCategory, p []core.RawPackage) ([]core.RawCategory, []core.RawPackage) {
				c[0].Weight = -1
				return c, p
			},
			table: TableCategories, row: 1, reason: "must not be negative",
		},
		{
			name: "empty category",
			mutate: func(c []core.RawCategory, p []core.RawPackage) ([]core.RawCategory, []core.RawPackage) {
				return append(c, core.RawCategory{Name: "Catering", Weight: 8}), p
			},
			table: TableCategories, row: 3, reason: "has no packages",
		},
		{
			name: "duplicate package in category",
			mutate: func(c []core.RawCategory, p []core.RawPackage) ([]core.RawCategory, []core.RawPackage) {
				return c, append(p, core.RawPackage{Category: "Venue", Name: "budget", Cost: 1, Quality: 1})
			},
			table: TablePackages, row: 5, reason: "duplicate of row 1",
		},
		{
			name: "blank category name",
			mutate: func(c []core.RawCategory, p []core.RawPackage) ([]core.RawCategory, []core.RawPackage) {
				return append(c, core.RawCategory{Name: "  ", Weight: 1}), p
			},
			table: TableCategories, row: 3, reason: "name is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cats, pkgs := tt.mutate(sampleRows())
			_, err := Load(cats, pkgs)
			if !errors.Is(err, core.ErrInvalidCatalog) {
				t.Fatalf("expected catalog error, got %v", err)
			}
			var ce *core.CatalogError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *core.CatalogError, got %T", err)
			}
			if ce.Table != tt.table || ce.Row != tt.row || !strings.Contains(ce.Reason, tt.reason) {
				t.Fatalf("got %+v, want table=%s row=%d reason~%q", ce, tt.table, tt.row, tt.reason)
			}
		})
	}
}

func TestLoadRejectsOverflow(t *testing.T) {
	// Just under core.MaxCents once converted to cents.
	const nearMax = float64(core.MaxCents-1000) / 100

	manyCategories := func(n int) ([]core.RawCategory, []core.RawPackage) {
		var cats []core.RawCategory
		var pkgs []core.RawPackage
		for i := 0; i < n; i++ {
			name := fmt.Sprintf("C%04d", i)
			cats = append(cats, core.RawCategory{Name: name, Weight: 1})
			pkgs = append(pkgs, core.RawPackage{Category: name, Name: "Only", Cost: nearMax, Quality: 1})
		}
		return cats, pkgs
	}

	tests := []struct {
		name   string
		rows   func() ([]core.RawCategory, []core.RawPackage)
		table  string
		row    int
		field  string
		reason string
	}{
		{
			name: "cost too large for cents",
			rows: func() ([]core.RawCategory, []core.RawPackage) {
				c, p := sampleRows()
				p[1].Cost = 1e14
				return c, p
			},
			table: TablePackages, row: 2, field: "cost", reason: "too large",
		},
		{
			name:  "cost range overflows",
			rows:  func() ([]core.RawCategory, []core.RawPackage) { return manyCategories(1100) },
			table: TableCategories, field: "category", reason: "catalog cost range overflows",
		},
		{
			name: "weighted quality overflows",
			rows: func() ([]core.RawCategory, []core.RawPackage) {
				c, p := sampleRows()
				c[0].Weight = math.MaxFloat64
				return c, p
			},
			table: TableCategories, row: 1, field: "weight", reason: "value range overflows",
		},
		{
			name: "value sum overflows",
			rows: func() ([]core.RawCategory, []core.RawPackage) {
				c, p := sampleRows()
				c[0].Weight, c[1].Weight = 1e308/9, 1e308/8
				return c, p
			},
			table: TableCategories, row: 2, field: "weight", reason: "value range overflows",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.rows())
			var ce *core.CatalogError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *core.CatalogError, got %v", err)
			}
			if ce.Table != tt.table || ce.Field != tt.field || ce.Reason != tt.reason {
				t.Fatalf("got %+v, want table=%s field=%s reason=%q", ce, tt.table, tt.field, tt.reason)
			}
			if tt.row != 0 && ce.Row != tt.row {
				t.Fatalf("row = %d, want %d", ce.Row, tt.row)
			}
		})
	}
}

func TestLoadCollectsAllErrors(t *testing.T) {
	cats, pkgs := sampleRows()
	pkgs[0].Cost = -1
	pkgs[3].Quality = math.NaN()
	_, err := Load(cats, pkgs)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "packages row 1") || !strings.Contains(msg, "packages row 4") {
		t.Fatalf("expected both rows reported: %s", msg)
	}
}

func TestLoadEmpty(t *testing.T) {
	if _, err := Load(nil, nil); !errors.Is(err, core.ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
}

func TestWithWeights(t *testing.T) {
	cats, pkgs := sampleRows()
	c, err := Load(cats, pkgs)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	updated, err := c.WithWeights(map[string]float64{"photography": 10})
	if err != nil {
		t.Fatalf("with weights: %v", err)
	}
	if w, _ := updated.Weight("Photography"); w != 10 {
		t.Fatalf("updated weight = %v", w)
	}
	if w, _ := c.Weight("Photography"); w != 7 {
		t.Fatalf("original catalog mutated: %v", w)
	}
	if w, _ := updated.Weight("Venue"); w != 9 {
		t.Fatalf("untouched weight changed: %v", w)
	}
	if updated.Digest() == c.Digest() {
		t.Fatalf("digest should change with weights")
	}

	if _, err := c.WithWeights(map[string]float64{"Catering": 3}); !errors.Is(err, core.ErrInvalidCatalog) {
		t.Fatalf("expected unknown category error, got %v", err)
	}
	if _, err := c.WithWeights(map[string]float64{"Venue": -3}); !errors.Is(err, core.ErrInvalidCatalog) {
		t.Fatalf("expected negative weight error, got %v", err)
	}
}

func TestWithWeightsRejects(t *testing.T) {
	c, err := Load(sampleRows())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	tests := []struct {
		name    string
		weights map[string]float64
		want    core.CatalogError
	}{
		{
			name:    "same category twice",
			weights: map[string]float64{"venue": 1, "Venue": 9},
			want:    core.CatalogError{Table: TableWeights, Row: 2, Field: "category", Value: "venue", Reason: "duplicate of row 1"},
		},
		{
			name:    "weighted quality overflows",
			weights: map[string]float64{"Photography": 2, "Venue": 1e308},
			want:    core.CatalogError{Table: TableWeights, Row: 2, Field: "weight", Value: "1e+308", Reason: "value range overflows"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.WithWeights(tt.weights)
			var ce *core.CatalogError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *core.CatalogError, got %v", err)
			}
			if diff := cmp.Diff(tt.want, *ce); diff != "" {
				t.Fatalf("catalog error (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("sum overflows on an untouched category", func(t *testing.T) {
		cats, pkgs := sampleRows()
		cats[1].Weight = 1e307
		heavy, err := Load(cats, pkgs)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		_, err = heavy.WithWeights(map[string]float64{"Venue": 1.2e307})
		var ce *core.CatalogError
		if !errors.As(err, &ce) {
			t.Fatalf("expected *core.CatalogError, got %v", err)
		}
		want := core.CatalogError{Table: TableCategories, Row: 2, Field: "weight", Value: "1e+307", Reason: "value range overflows"}
		if diff := cmp.Diff(want, *ce); diff != "" {
			t.Fatalf("catalog error (-want +got):\n%s", diff)
		}
	})
}

func TestDigestStable(t *testing.T) {
	a, _ := Load(sampleRows())
	b, _ := Load(sampleRows())
	if a.Digest() == "" || a.Digest() != b.Digest() {
		t.Fatalf("digest not stable: %q vs %q", a.Digest(), b.Digest())
	}
}

func TestRawRoundTrip(t *testing.T) {
	c, err := Load(sampleRows())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	again, err := Load(c.Raw())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Digest() != c.Digest() {
		t.Fatalf("raw round trip changed the catalog")
	}
}
