package google

import (
	"fmt"
	"strconv"
	"strings"

	"nozze/internal/core"
	"nozze/internal/sources"
)

// parseCatalog converts the value matrices of the two tabs, as returned by
// the Sheets API, into raw tables.
func parseCatalog(catValues, pkgValues [][]interface{}) ([]core.RawCategory, []core.RawPackage, error) {
	cats, err := sources.DecodeCategories(toRecords(catValues))
	if err != nil {
		return nil, nil, err
	}
	pkgs, err := sources.DecodePackages(toRecords(pkgValues))
	if err != nil {
		return nil, nil, err
	}
	return cats, pkgs, nil
}

func toRecords(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = toStrings(row)
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		case nil:
			out[i] = ""
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

// toValues converts records to the Sheets value matrix. Numeric cells are
// sent as numbers.
func toValues(records [][]string) [][]interface{} {
	out := make([][]interface{}, len(records))
	for i, r := range records {
		row := make([]interface{}, len(r))
		for j, v := range r {
			if f, err := strconv.ParseFloat(v, 64); err == nil && i > 0 {
				row[j] = f
				continue
			}
			row[j] = v
		}
		out[i] = row
	}
	return out
}
