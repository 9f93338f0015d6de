package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Amount is a signed fixed-point currency value in milliunits
// (1/1000 of a currency unit). Negative amounts are debits (money
// leaving the account), positive amounts are credits. All providers are
// normalized to this convention.
type Amount int64

const milliunitsPerUnit = 1000

// AmountFromMilliunits wraps a raw milliunit value.
func AmountFromMilliunits(m int64) Amount {
	return Amount(m)
}

// ParseAmount parses a signed decimal string like "-12.50" into an
// Amount. At most three fractional digits are accepted.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" && fracPart == "" {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if intPart == "" {
		intPart = "0"
	}

	// ParseUint rejects signs, so a stray sign inside either part
	// fails here instead of being folded into the value.
	units, err := strconv.ParseUint(intPart, 10, 63)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	if len(fracPart) > 3 {
		return 0, fmt.Errorf("invalid amount %q: more than three fractional digits", s)
	}
	for len(fracPart) < 3 {
		fracPart += "0"
	}
	frac, err := strconv.ParseUint(fracPart, 10, 63)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	m := int64(units)*milliunitsPerUnit + int64(frac)
	if negative {
		m = -m
	}
	return Amount(m), nil
}

// Milliunits returns the raw milliunit value.
func (a Amount) Milliunits() int64 {
	return int64(a)
}

// String renders the amount with two decimal places, e.g. "-12.50",
// keeping the third decimal only when it is non-zero so every parseable
// value round-trips.
func (a Amount) String() string {
	m := int64(a)
	sign := ""
	if m < 0 {
		sign = "-"
		m = -m
	}
	if m%10 != 0 {
		return fmt.Sprintf("%s%d.%03d", sign, m/milliunitsPerUnit, m%milliunitsPerUnit)
	}
	return fmt.Sprintf("%s%d.%02d", sign, m/milliunitsPerUnit, (m%milliunitsPerUnit)/10)
}
