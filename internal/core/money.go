// Package core provides the domain types of a utility-cost statement and
// their money and calendar helpers.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between cents, decimals and display strings.
package core

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencySuffix is appended to every displayed amount.
const CurrencySuffix = " €"

// maxCents keeps cents exactly representable as float64.
var maxCents = decimal.NewFromInt(1 << 53)

// ParseDecimalToCents converts a decimal string to cents with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Zero is a
// valid amount; negative values and malformed input return ErrInvalidAmount or
// ErrNegativeAmount.
//
// Examples:
//
//	ParseDecimalToCents("12.34")  -> 1234, nil
//	ParseDecimalToCents("12,34")  -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil (rounds half up)
//	ParseDecimalToCents("0")      -> 0, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.IsNegative() {
		return 0, ErrNegativeAmount
	}
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// ParseOptionalAmount parses a form value. Blank input yields an unset amount.
func ParseOptionalAmount(s string) (OptionalMoney, error) {
	if strings.TrimSpace(s) == "" {
		return OptionalMoney{}, nil
	}
	cents, err := ParseDecimalToCents(s)
	if err != nil {
		return OptionalMoney{}, err
	}
	return Some(cents), nil
}

// Euros returns the euro value as a float64 for arithmetic on shares.
func (m Money) Euros() float64 {
	return float64(m.Cents) / 100.0
}

// Decimal returns the amount as an exact decimal in euros.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with two decimals, e.g. "1200.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// FormValue is the text shown in an input field: empty when unset.
func (o OptionalMoney) FormValue() string {
	if !o.Set {
		return ""
	}
	return o.Money.String()
}

// MarshalJSON encodes the amount as a JSON number in euros, or null when unset.
func (o OptionalMoney) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return []byte(o.Money.String()), nil
}

// UnmarshalJSON accepts a JSON number in euros or null.
func (o *OptionalMoney) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*o = OptionalMoney{}
		return nil
	}
	cents, err := ParseDecimalToCents(string(data))
	if err != nil {
		return err
	}
	*o = Some(cents)
	return nil
}

// RoundShare rounds a computed share to cents. The exact binary value is
// rounded with ties to even, as %.2f does, so 2.675 becomes 2.67.
func RoundShare(v float64) decimal.Decimal {
	d, err := decimal.NewFromString(strconv.FormatFloat(v, 'f', 2, 64))
	if err != nil {
		// NaN and ±Inf
		return decimal.Zero
	}
	return d
}

// FormatAmount renders a computed share with two decimals and the currency
// suffix, e.g. "596.72 €".
func FormatAmount(v float64) string {
	return RoundShare(v).StringFixed(2) + CurrencySuffix
}
