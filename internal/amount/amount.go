// =============================================================================
// SAF-T (AO) Validator - Decimal Amount Utilities
// =============================================================================
//
// This module consolidates the numeric helpers shared by the validator and
// the auto-fix transformers:
//   - Quantization to 2 places (monetary export) and 6 places (intermediate
//     quantity/unit-price math), rounding half away from zero
//   - Strict and lenient decimal parsing
//   - Percentage formatting (integer when exact, two places otherwise)
//
// All functions are pure; there is no package-level mutable state. Monetary
// comparisons elsewhere in the engine always go through Q2/Q6, never through
// floating point equality.
//
// =============================================================================

package amount

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformedNumber is returned when a value cannot be read as a decimal.
var ErrMalformedNumber = errors.New("malformed number")

// Tolerance is the absolute monetary tolerance in the minor currency unit.
// The comparison against it is inclusive.
var Tolerance = decimal.NewFromFloat(0.01)

// Hundred is the divisor for percentage math.
var Hundred = decimal.NewFromInt(100)

// =============================================================================
// QUANTIZATION
// =============================================================================

// Q2 quantizes to 2 decimal places, half away from zero.
// Used for every exported monetary value.
func Q2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// Q6 quantizes to 6 decimal places, half away from zero.
// Used for intermediate quantity*unit-price and VAT math.
func Q6(v decimal.Decimal) decimal.Decimal {
	return v.Round(6)
}

// Quantize quantizes to the requested number of places, half away from zero.
func Quantize(v decimal.Decimal, places int32) decimal.Decimal {
	return v.Round(places)
}

// WithinTolerance reports whether |a-b| <= Tolerance. The boundary itself is
// inside the tolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().Cmp(Tolerance) <= 0
}

// =============================================================================
// PARSING
// =============================================================================

// Parse reads a decimal in canonical dot notation. It fails with
// ErrMalformedNumber on anything else, including the empty string.
func Parse(text string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("%w: empty value", ErrMalformedNumber)
	}
	v, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedNumber, text)
	}
	return v, nil
}

// ParseLenient reads a decimal tolerating a locale comma as the separator,
// but only when the comma is unambiguous (exactly one, no dot present).
// It reports whether the value needed normalization.
func ParseLenient(text string) (v decimal.Decimal, normalized string, changed bool, err error) {
	trimmed := strings.TrimSpace(text)
	if strings.Count(trimmed, ",") == 1 && !strings.Contains(trimmed, ".") {
		candidate := strings.Replace(trimmed, ",", ".", 1)
		if v, err = Parse(candidate); err == nil {
			return v, candidate, true, nil
		}
	}
	v, err = Parse(trimmed)
	return v, trimmed, false, err
}

// ParseOrZero reads a decimal, falling back to zero on malformed input.
// The validator uses Parse; the transformers use this where the legacy files
// are known to carry junk that a later rule reports anyway.
func ParseOrZero(text string) decimal.Decimal {
	v, err := Parse(text)
	if err != nil {
		return decimal.Zero
	}
	return v
}

// =============================================================================
// FORMATTING
// =============================================================================

// Format2 renders a monetary value with exactly two decimal places.
func Format2(v decimal.Decimal) string {
	return Q2(v).StringFixed(2)
}

// Format6 renders an intermediate value with exactly six decimal places.
func Format6(v decimal.Decimal) string {
	return Q6(v).StringFixed(6)
}

// FormatPercentage renders a tax percentage the way the schema expects:
// an integer when the value is exact ("14"), two places otherwise ("14.25").
// Malformed input is returned unchanged so the caller can report it.
func FormatPercentage(text string) string {
	v, err := Parse(text)
	if err != nil {
		return text
	}
	if v.Equal(v.Truncate(0)) {
		return v.Truncate(0).String()
	}
	return v.StringFixed(2)
}
