package core

import "strings"

type (
	// RawCategory is a category row as supplied by a catalog source.
	RawCategory struct {
		Name   string
		Weight float64
	}

	// RawPackage is a package row as supplied by a catalog source.
	// Cost is expressed in currency units (dollars), not cents.
	RawPackage struct {
		Category string
		Name     string
		Cost     float64
		Quality  float64
	}

	Category struct {
		Name   string
		Weight float64 // importance multiplier applied to package quality
	}

	Package struct {
		Category string
		Name     string // tier label, e.g. "Budget", "Mid", "Luxury"
		Cost     Money
		Quality  float64
	}
)

// SameName reports whether two category or package names refer to the same
// entry. Names are compared case-insensitively, ignoring surrounding spaces.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// NameKey returns the normalized lookup key for a category or package name.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
