// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing signed monetary amounts from strings
// and formatting them for display.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string to a signed amount rounded to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign. More than two fractional digits are rounded half-up.
// Returns ErrInvalidAmount for empty or malformed input.
//
// Examples:
//   ParseAmount("12.34")  -> 12.34
//   ParseAmount("-12,34") -> -12.34
//   ParseAmount("12.345") -> 12.35
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	if parts[0] == "" && (len(parts) == 1 || parts[1] == "") {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}
	// Guard against absurd magnitudes before handing off to decimal.
	if len(parts[0]) > 15 {
		return decimal.Zero, ErrInvalidAmount
	}
	if parts[0] == "" {
		s = "0" + s
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// FormatAmount renders an amount with an explicit sign and two decimals,
// e.g. "+20.00" or "-30.50".
func FormatAmount(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(2)
	}
	return "+" + d.StringFixed(2)
}
