// =============================================================================
// SAF-T (AO) Validator - NIF Structural Classification
// =============================================================================
//
// Heuristic classification of Angolan taxpayer identification numbers. The
// classifier is purely structural; confirming a plausible NIF against the
// AGT taxpayer registry is an external collaborator's concern.
//
// Accepted shapes:
//   - "999999999"            reserved placeholder for unidentified end consumers
//   - 10 digits              corporate NIF
//   - 9 digits + 2 letters + 3 digits   legacy personal NIF
//   - 9 to 14 alphanumerics  generic fallback
//
// Anything starting with a letter is manifestly wrong, as is a length
// outside 6..15. The remainder is possibly wrong: structurally salvageable
// but not matching any known shape.
//
// =============================================================================

package rules

import (
	"regexp"
	"strings"
	"unicode"
)

// Classification is the outcome of the structural NIF check.
type Classification int

const (
	// ManifestlyInvalid NIFs are reported as ERROR.
	ManifestlyInvalid Classification = iota

	// PossiblyInvalid NIFs are reported as WARNING.
	PossiblyInvalid

	// Plausible NIFs raise no Issue; they are eligible for the external
	// registry confirmation step.
	Plausible
)

// String renders the classification for reports.
func (c Classification) String() string {
	switch c {
	case ManifestlyInvalid:
		return "manifestly_invalid"
	case PossiblyInvalid:
		return "possibly_invalid"
	default:
		return "plausible"
	}
}

// ConsumerPlaceholderNIF is the reserved value for unidentified end consumers.
const ConsumerPlaceholderNIF = "999999999"

var (
	nifCorporate = regexp.MustCompile(`^\d{10}$`)
	nifLegacy    = regexp.MustCompile(`^\d{9}[A-Z]{2}\d{3}$`)
	nifFallback  = regexp.MustCompile(`^[A-Z0-9]{9,14}$`)
)

// NormalizeNIF strips non-alphanumeric characters and uppercases.
func NormalizeNIF(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// ClassifyNIF normalizes and classifies a raw NIF value.
func ClassifyNIF(raw string) Classification {
	nif := NormalizeNIF(raw)
	if nif == "" {
		return ManifestlyInvalid
	}
	if nif[0] >= 'A' && nif[0] <= 'Z' {
		return ManifestlyInvalid
	}
	if nif == ConsumerPlaceholderNIF {
		return Plausible
	}
	if nifCorporate.MatchString(nif) || nifLegacy.MatchString(nif) || nifFallback.MatchString(nif) {
		return Plausible
	}
	if len(nif) < 6 || len(nif) > 15 {
		return ManifestlyInvalid
	}
	return PossiblyInvalid
}

// SuggestNIF returns a repaired candidate for a non-plausible NIF and whether
// one exists. Two independent repairs are attempted, in order:
//
//  1. Dropping non-digit characters (country prefixes like "AO" glued onto
//     the number).
//  2. Restoring exactly one missing leading zero.
//
// Only a candidate that classifies as plausible is suggested.
func SuggestNIF(raw string) (string, bool) {
	nif := NormalizeNIF(raw)
	if ClassifyNIF(nif) == Plausible {
		return "", false
	}

	var digits strings.Builder
	for _, r := range nif {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if d := digits.String(); d != nif && d != "" && ClassifyNIF(d) == Plausible {
		return d, true
	}

	if padded := "0" + nif; ClassifyNIF(padded) == Plausible {
		return padded, true
	}
	return "", false
}
