// =============================================================================
// SAF-T (AO) Validator - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - schema
//   - rules
//   - autofix
//   - report
//   - engine
//
// =============================================================================

package types

import "fmt"

// =============================================================================
// SEVERITY
// =============================================================================

// Severity classifies a validation finding.
type Severity string

const (
	// SeverityError marks a finding the tax authority would reject the file for.
	SeverityError Severity = "ERROR"

	// SeverityWarning marks a finding that should be reviewed but does not by
	// itself make the file unsubmittable.
	SeverityWarning Severity = "WARNING"

	// SeverityInfo marks an informational finding.
	SeverityInfo Severity = "INFO"
)

// =============================================================================
// FIX MODE
// =============================================================================

// Mode selects the auto-fix strategy.
type Mode string

const (
	// ModeSoft applies only reversible, non-destructive normalizations.
	ModeSoft Mode = "soft"

	// ModeHard additionally applies structural reordering and recomputation.
	ModeHard Mode = "hard"
)

// Valid reports whether the mode is one of the supported strategies.
func (m Mode) Valid() bool {
	return m == ModeSoft || m == ModeHard
}

// =============================================================================
// TARGET REFERENCE
// =============================================================================

// Ref locates a finding or a fix inside the document.
// Any of the fields may be empty when not applicable.
type Ref struct {
	// XPath is the path to the offending element when known.
	XPath string

	// Document is the fiscal document identifier (InvoiceNo, PaymentRefNo,
	// DocumentNumber) the finding belongs to.
	Document string

	// Line is the LineNumber within the document, 0 when document-level.
	Line int

	// Field is the local name of the element concerned.
	Field string

	// SourceLine and SourceColumn are the raw input position when the
	// producer could determine them (schema violations mostly).
	SourceLine   int
	SourceColumn int
}

// String renders the reference for logs and reports.
func (r Ref) String() string {
	switch {
	case r.XPath != "":
		return r.XPath
	case r.Document != "" && r.Line > 0:
		return fmt.Sprintf("%s line %d", r.Document, r.Line)
	case r.Document != "":
		return r.Document
	case r.Field != "":
		return r.Field
	default:
		return ""
	}
}

// =============================================================================
// ISSUE
// =============================================================================

// Issue is an immutable validation finding. Issues are produced by the schema
// validator and the business rule engine only, and are never mutated after
// creation. Findings are data, not failures, so Issue does not implement the
// error interface.
type Issue struct {
	// Code identifies the violated rule, e.g. "TOTALS_MISMATCH".
	Code string

	// Severity is ERROR, WARNING or INFO.
	Severity Severity

	// Ref locates the finding.
	Ref Ref

	// Message is a human-readable description.
	Message string

	// SuggestedValue carries the value the engine would use to repair the
	// finding. Empty when no unambiguous suggestion exists.
	SuggestedValue string
}

// String renders the issue for logs and reports.
func (i Issue) String() string {
	ref := i.Ref.String()
	if ref == "" {
		return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Code, i.Message)
	}
	return fmt.Sprintf("[%s] %s at %s: %s", i.Severity, i.Code, ref, i.Message)
}

// =============================================================================
// FIX
// =============================================================================

// Fix is an immutable record of a transformation actually applied by the
// auto-fix transformer. A Fix corresponds to exactly one prior Issue, or to a
// normalization pass with no corresponding Issue (decimal separator cleanup,
// for example).
type Fix struct {
	// Code identifies the applied transformation, e.g. "INVOICE_TYPE_NORMALIZED".
	Code string

	// Ref locates the element that was rewritten.
	Ref Ref

	// PreviousValue is the value before the fix.
	PreviousValue string

	// NewValue is the value after the fix.
	NewValue string

	// Note carries optional free-form context for the report.
	Note string
}

// String renders the fix for logs and reports.
func (f Fix) String() string {
	return fmt.Sprintf("%s at %s: %q -> %q", f.Code, f.Ref.String(), f.PreviousValue, f.NewValue)
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summary aggregates the outcome of one validation run.
type Summary struct {
	// RunID uniquely identifies the invocation across report artifacts.
	RunID string

	// Errors, Warnings and Infos count issues by severity.
	Errors   int
	Warnings int
	Infos    int

	// DocumentsChecked is the number of source documents visited.
	DocumentsChecked int

	// RulesEvaluated is the number of catalog rules that applied.
	RulesEvaluated int
}

// Count increments the bucket for the issue severity.
func (s *Summary) Count(issue Issue) {
	switch issue.Severity {
	case SeverityError:
		s.Errors++
	case SeverityWarning:
		s.Warnings++
	default:
		s.Infos++
	}
}

// Summarize builds a Summary from a finished issue list.
func Summarize(runID string, issues []Issue) Summary {
	s := Summary{RunID: runID}
	for i := range issues {
		s.Count(issues[i])
	}
	return s
}
