package sources

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nozze/internal/core"
)

func TestDecodeCategories(t *testing.T) {
	got, err := DecodeCategories([][]string{
		{" Weight ", "Category"},
		{"9", "Venue"},
		{"", ""},
		{"7,5", " Photography "},
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []core.RawCategory{{Name: "Venue", Weight: 9}, {Name: "Photography", Weight: 7.5}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodePackages(t *testing.T) {
	got, err := DecodePackages([][]string{
		{"category", "name", "cost", "quality"},
		{"Venue", "Budget", "$5,000", "4"},
		{"Venue", "Luxury", "€ 15.000,50", "9"},
		{"Photography", "Budget", "1000"},
	})
	if err == nil {
		t.Fatalf("expected error for row without quality, got %v", got)
	}
	var ce *core.CatalogError
	if !errors.As(err, &ce) || ce.Row != 3 || ce.Field != ColQuality {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err = DecodePackages([][]string{
		{"category", "package", "cost", "quality"},
		{"Venue", "Budget", "$5,000", "4"},
		{"Venue", "Luxury", "€ 15.000,50", "9"},
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []core.RawPackage{
		{Category: "Venue", Name: "Budget", Cost: 5000, Quality: 4},
		{Category: "Venue", Name: "Luxury", Cost: 15000.5, Quality: 9},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		records [][]string
		pkgs    bool
		want    string
	}{
		{"empty", nil, false, `categories header: column "category": missing`},
		{"missing weight", [][]string{{"category"}}, false, `categories header: column "weight": missing`},
		{"bad weight", [][]string{{"category", "weight"}, {"Venue", "high"}}, false, `categories row 1: weight "high": not a number`},
		{"bad cost", [][]string{{"category", "package", "cost", "quality"}, {"Venue", "Budget", "-5", "1"}}, true, `packages row 1: cost "-5": not a valid amount`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.pkgs {
				_, err = DecodePackages(tt.records)
			} else {
				_, err = DecodeCategories(tt.records)
			}
			if err == nil || err.Error() != tt.want {
				t.Fatalf("got %v, want %s", err, tt.want)
			}
			if !errors.Is(err, core.ErrInvalidCatalog) {
				t.Fatalf("expected ErrInvalidCatalog, got %v", err)
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cats := []core.RawCategory{{Name: "Venue", Weight: 9}, {Name: "Cake", Weight: 2.5}}
	pkgs := []core.RawPackage{{Category: "Cake", Name: "Tiered", Cost: 240.75, Quality: 0.3}}

	gotCats, err := DecodeCategories(EncodeCategories(cats))
	if err != nil {
		t.Fatalf("decode categories: %v", err)
	}
	gotPkgs, err := DecodePackages(EncodePackages(pkgs))
	if err != nil {
		t.Fatalf("decode packages: %v", err)
	}
	if diff := cmp.Diff(cats, gotCats); diff != "" {
		t.Errorf("categories (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(pkgs, gotPkgs); diff != "" {
		t.Errorf("packages (-want +got):\n%s", diff)
	}
}
