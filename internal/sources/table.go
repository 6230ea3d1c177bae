package sources

import (
	"strconv"
	"strings"

	"nozze/internal/core"
)

// Column headers of the tabular catalog layout. Lookup is case-insensitive.
const (
	ColCategory = "category"
	ColWeight   = "weight"
	ColPackage  = "package"
	ColCost     = "cost"
	ColQuality  = "quality"

	TableCategories = "categories"
	TablePackages   = "packages"
)

// DecodeCategories turns a header row followed by data rows into raw
// categories. Blank rows are skipped; row numbers in errors count data rows.
func DecodeCategories(records [][]string) ([]core.RawCategory, error) {
	cols, rows, err := columns(TableCategories, records, ColCategory, ColWeight)
	if err != nil {
		return nil, err
	}
	out := make([]core.RawCategory, 0, len(rows))
	for i, r := range rows {
		w, err := parseNumber(TableCategories, i+1, ColWeight, cell(r, cols[ColWeight]))
		if err != nil {
			return nil, err
		}
		out = append(out, core.RawCategory{Name: cell(r, cols[ColCategory]), Weight: w})
	}
	return out, nil
}

// DecodePackages turns a header row followed by data rows into raw packages.
// Costs accept currency formatting such as "$5,000" or "€ 1.234,56".
func DecodePackages(records [][]string) ([]core.RawPackage, error) {
	cols, rows, err := columns(TablePackages, records, ColCategory, ColPackage, ColCost, ColQuality)
	if err != nil {
		return nil, err
	}
	out := make([]core.RawPackage, 0, len(rows))
	for i, r := range rows {
		row := i + 1
		raw := cell(r, cols[ColCost])
		cost, err := core.ParseAmount(raw)
		if err != nil {
			return nil, &core.CatalogError{Table: TablePackages, Row: row, Field: ColCost, Value: raw, Reason: "not a valid amount"}
		}
		q, err := parseNumber(TablePackages, row, ColQuality, cell(r, cols[ColQuality]))
		if err != nil {
			return nil, err
		}
		out = append(out, core.RawPackage{
			Category: cell(r, cols[ColCategory]),
			Name:     cell(r, cols[ColPackage]),
			Cost:     cost.Dollars(),
			Quality:  q,
		})
	}
	return out, nil
}

// EncodeCategories is the inverse of DecodeCategories.
func EncodeCategories(cats []core.RawCategory) [][]string {
	out := [][]string{{ColCategory, ColWeight}}
	for _, c := range cats {
		out = append(out, []string{c.Name, FormatNumber(c.Weight)})
	}
	return out
}

// EncodePackages is the inverse of DecodePackages.
func EncodePackages(pkgs []core.RawPackage) [][]string {
	out := [][]string{{ColCategory, ColPackage, ColCost, ColQuality}}
	for _, p := range pkgs {
		out = append(out, []string{p.Category, p.Name, FormatNumber(p.Cost), FormatNumber(p.Quality)})
	}
	return out
}

// FormatNumber renders a float without exponent or trailing zeros.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func columns(table string, records [][]string, required ...string) (map[string]int, [][]string, error) {
	if len(records) == 0 {
		return nil, nil, &core.CatalogError{Table: table, Field: "column", Value: required[0], Reason: "missing"}
	}
	header := records[0]
	cols := make(map[string]int, len(required))
	for _, name := range required {
		idx := indexOf(header, name)
		if idx == -1 && name == ColPackage {
			idx = indexOf(header, "name")
		}
		if idx == -1 {
			return nil, nil, &core.CatalogError{Table: table, Field: "column", Value: name, Reason: "missing"}
		}
		cols[name] = idx
	}

	var rows [][]string
	for _, r := range records[1:] {
		if !blank(r) {
			rows = append(rows, r)
		}
	}
	return cols, rows, nil
}

func parseNumber(table string, row int, field, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, &core.CatalogError{Table: table, Row: row, Field: field, Value: s, Reason: "not a number"}
	}
	return v, nil
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return i
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
