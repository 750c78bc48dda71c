// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from the loosely
// formatted strings found in spreadsheets and forms.
package core

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a human formatted amount to a decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. When both
// appear, the rightmost one is the decimal separator and the other is treated
// as a thousands separator. A lone separator followed by exactly three digits
// also groups thousands ("1.234" is 1234), unless the head is zero. Currency
// markers ($, Bs, USD) and spaces are ignored. Negative values are rejected.
//
// Examples:
//
//	ParseAmount("12.34")     -> 12.34
//	ParseAmount("1.234,56")  -> 1234.56
//	ParseAmount("1.234")     -> 1234
//	ParseAmount("$ 1,234.5") -> 1234.5
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := s
	s = strings.TrimSpace(s)
	for _, sym := range []string{"USD", "usd", "Bs.", "Bs", "bs", "$"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || strings.HasPrefix(s, "-") {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, ErrInvalidAmount)
	}
	s = strings.TrimPrefix(s, "+")

	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") > 1 || thousandsGroup(s, comma) {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case strings.Count(s, ".") > 1 || (dot >= 0 && thousandsGroup(s, dot)):
		s = strings.ReplaceAll(s, ".", "")
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, ErrInvalidAmount)
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, ErrInvalidAmount)
	}
	return d, nil
}

// thousandsGroup reports whether the lone separator at i splits a 1-3 digit
// head from exactly three digits, as in "1.234" or "12,500". Amounts carry
// at most two decimals, so that shape is a thousands separator.
func thousandsGroup(s string, i int) bool {
	head, tail := s[:i], s[i+1:]
	if len(head) < 1 || len(head) > 3 || head[0] == '0' || len(tail) != 3 {
		return false
	}
	return allDigits(head) && allDigits(tail)
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Round2 rounds half away from zero to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Variation returns (current-previous)/previous*100, or 0 when previous is 0.
func Variation(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(hundred)
}

// Ratio returns num/den*100, or fallback when den is 0.
func Ratio(num, den, fallback decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return fallback
	}
	return num.Div(den).Mul(hundred)
}

// SafeDiv returns num/den, or 0 when den is 0.
func SafeDiv(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}
