// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package money implements the fixed-point currency amount used for targets,
// totals and donations.
package money

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a currency value in minor units (cents).
type Amount int64

// Max is the largest magnitude an amount may have, one trillion in major
// units.
const Max Amount = 1_000_000_000_000_00

var (
	// ErrPrecision is returned for values with more than two fractional digits.
	ErrPrecision = errors.New("amount has more than two decimal places")
	// ErrRange is returned for values beyond Max in either direction.
	ErrRange = errors.New("amount out of range")
)

var maxCents = decimal.NewFromInt(int64(Max))

// FromCents returns the amount for c minor units.
func FromCents(c int64) Amount {
	return Amount(c)
}

// FromMajor returns the amount for whole currency units.
func FromMajor(units int64) Amount {
	return Amount(units * 100)
}

// Parse reads a decimal string such as "250", "250.5" or "250.50".
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return fromDecimal(d)
}

func fromDecimal(d decimal.Decimal) (Amount, error) {
	if !d.Equal(d.Round(2)) {
		return 0, ErrPrecision
	}
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, ErrPrecision
	}
	if cents.Abs().GreaterThan(maxCents) {
		return 0, ErrRange
	}
	return Amount(cents.IntPart()), nil
}

// Cents returns the amount in minor units.
func (a Amount) Cents() int64 {
	return int64(a)
}

// IsPositive reports whether a > 0.
func (a Amount) IsPositive() bool {
	return a > 0
}

// Decimal returns a as a decimal in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// String formats a with exactly two fractional digits.
func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

// MarshalJSON renders the amount as a JSON number, e.g. 250.00.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// UnmarshalParam lets echo bind amounts from form and query values.
func (a *Amount) UnmarshalParam(param string) error {
	v, err := Parse(param)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// UnmarshalTOML reads integer, float and string TOML values.
func (a *Amount) UnmarshalTOML(value any) error {
	var s string
	switch v := value.(type) {
	case int64:
		s = strconv.FormatInt(v, 10)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		s = v
	default:
		return fmt.Errorf("invalid amount of type %T", value)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
