// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents so that sums of package costs are exact;
// float64 is only used at the edges (raw catalog rows, display).
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// MaxCents is the largest amount accepted from outside. Float inputs above
// 2^53 can no longer be represented to the cent.
const MaxCents = 1 << 53

type Money struct {
	Cents int64
}

// FromDollars converts a whole number of dollars to Money.
func FromDollars(d int64) Money {
	return Money{Cents: d * 100}
}

// FromFloat converts a currency amount to cents with half-away-from-zero
// rounding. Negative, non-finite and oversized values are rejected.
func FromFloat(v float64) (Money, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return Money{}, ErrInvalidAmount
	}
	cents := math.Round(v * 100)
	if cents >= MaxCents {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: int64(cents)}, nil
}

// ParseAmount converts a user supplied amount to Money.
//
// A "$" or "€" symbol on either side and inner spaces are ignored. When
// both "," and "." occur the last one is the decimal separator; a lone ","
// followed by exactly three digits (or repeated) is a thousands separator.
// Half-up rounding is applied on the third decimal place. Zero is accepted, negative values are not.
//
// Examples:
//
//	ParseAmount("20000")      -> 2000000 cents
//	ParseAmount("$40,000")    -> 4000000 cents
//	ParseAmount("1.234,56")   -> 123456 cents
//	ParseAmount("12,34")      -> 1234 cents
//	ParseAmount("12.345")     -> 1235 cents
//	ParseAmount("€ 1.234,56") -> 123456 cents
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	for _, sym := range []string{"$", "€"} {
		s = strings.TrimSuffix(strings.TrimPrefix(s, sym), sym)
	}
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	s = normalizeSeparators(s)

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return Money{}, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if iv >= MaxCents/100 {
		return Money{}, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return Money{Cents: iv*100 + fracCents}, nil
}

func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || len(s)-lastComma-1 == 3 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// Dollars returns the amount as float64 for display purposes.
// Use cents for calculations.
func (m Money) Dollars() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// String formats the amount as "$1,234.56".
func (m Money) String() string {
	c := m.Cents
	neg := c < 0
	if neg {
		c = -c
	}
	whole := strconv.FormatInt(c/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := fmt.Sprintf("$%s.%02d", b.String(), c%100)
	if neg {
		return "-" + out
	}
	return out
}
