// =============================================================================
// SAF-T (AO) Validator - Auto-Fix Transformer
// =============================================================================
//
// Rewrites a *copy* of the document to repair findings. Two strategies:
//
//   soft - reversible normalizations only (separator cleanup, known-bad code
//          replacement, ordering of line sub-elements)
//   hard - superset of soft, plus structural work (sibling block reordering,
//          line renumbering, recomputing totals from constituent lines)
//
// The caller's document is never touched: the pass clones the aggregate,
// mutates the clone and emits it as a Version with an incrementing suffix.
// Soft and hard passes use distinct suffixes so the provenance of how
// aggressively a file was touched stays inspectable. A fix that cannot be
// applied unambiguously is skipped and reported as AUTO_FIX_NOT_POSSIBLE;
// the pass always either completes fully or fails with ErrFixTransform and
// no Version.
//
// =============================================================================

package autofix

import (
	"errors"
	"fmt"

	"github.com/kwanza-dev/saft-ao-validator/internal/document"
	"github.com/kwanza-dev/saft-ao-validator/internal/types"
)

// ErrFixTransform marks a fix pass that could not complete; no Version is
// produced in that case.
var ErrFixTransform = errors.New("fix transform failed")

// Fix codes produced by the transformers.
const (
	CodeInvoiceTypeNormalized = "INVOICE_TYPE_NORMALIZED"
	CodeDecimalSeparator      = "DECIMAL_SEPARATOR_NORMALIZED"
	CodeAmountRequantized     = "AMOUNT_REQUANTIZED"
	CodeNIFZeroPadded         = "NIF_ZERO_PADDED"
	CodeCodeFieldSanitized    = "CODE_FIELD_SANITIZED"
	CodeHeaderTaxIDNormalized = "HEADER_TAX_ID_NORMALIZED"
	CodeTaxRegionAdded        = "TAX_COUNTRY_REGION_ADDED"
	CodeTaxPercentFormatted   = "TAX_PERCENTAGE_FORMATTED"
	CodeLineOrderNormalized   = "LINE_ORDER_NORMALIZED"
	CodeBlockOrderNormalized  = "BLOCK_ORDER_NORMALIZED"
	CodeLineRenumbered        = "LINE_RENUMBERED"
	CodeTotalsRecomputed      = "TOTALS_RECOMPUTED"
	CodeTaxTableEntryAdded    = "TAX_TABLE_ENTRY_ADDED"

	// CodeAutoFixNotPossible tags an input finding the strategy attempted
	// but could not resolve unambiguously.
	CodeAutoFixNotPossible = "AUTO_FIX_NOT_POSSIBLE"

	// CodeWorkDocBalanceRepaired is recorded by the engine when the raw
	// text needed WorkDocument tag balancing before it would parse.
	CodeWorkDocBalanceRepaired = "WORKDOC_BALANCE_REPAIRED"
)

// =============================================================================
// SCHEMA ELEMENT ORDERS
// =============================================================================

// Child sequences mandated by SAFTAO1.01_01.xsd for the blocks the
// transformers touch. Elements not listed keep their relative position at
// the tail.
var (
	lineOrder = []string{
		"LineNumber",
		"OrderReferences",
		"ProductCode",
		"ProductDescription",
		"Quantity",
		"UnitOfMeasure",
		"UnitPrice",
		"TaxBase",
		"TaxPointDate",
		"References",
		"Description",
		"ProductSerialNumber",
		"DebitAmount",
		"CreditAmount",
		"Tax",
		"TaxExemptionReason",
		"TaxExemptionCode",
		"SettlementAmount",
		"CustomsInformation",
	}

	documentTotalsOrder = []string{"TaxPayable", "NetTotal", "GrossTotal"}

	taxTableEntryOrder = []string{"TaxType", "TaxCode", "Description", "TaxPercentage"}
)

// =============================================================================
// VERSION
// =============================================================================

// Version is an immutable snapshot of a document after one fix pass.
type Version struct {
	// Seq is the monotonically increasing version number.
	Seq int

	// Mode is the strategy that produced the snapshot.
	Mode types.Mode

	// Suffix is the file-name suffix the caller should use when persisting,
	// e.g. "_v.02" for soft and "_vh.02" for hard passes.
	Suffix string

	// Document is the fixed snapshot. Never shared with the input document.
	Document *document.Document
}

// VersionSuffix renders the suffix for a sequence number and mode.
func VersionSuffix(seq int, mode types.Mode) string {
	if mode == types.ModeHard {
		return fmt.Sprintf("_vh.%02d", seq)
	}
	return fmt.Sprintf("_v.%02d", seq)
}

// =============================================================================
// TRANSFORMER
// =============================================================================

// Result is the outcome of one completed fix pass.
type Result struct {
	// Version is the fixed snapshot.
	Version *Version

	// Fixes lists every applied transformation, in application order.
	Fixes []types.Fix

	// Unresolved carries the input findings the pass attempted but could
	// not fix, each tagged AUTO_FIX_NOT_POSSIBLE, plus findings outside the
	// transformer's scope carried through untouched.
	Unresolved []types.Issue
}

// Transformer applies one strategy. Stateless across calls except for the
// configured sequence counter start.
type Transformer struct {
	mode          types.Mode
	defaultRegion string
	nextSeq       int
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithDefaultRegion overrides the jurisdiction filled into Tax blocks that
// lack a TaxCountryRegion. Default "AO".
func WithDefaultRegion(region string) Option {
	return func(t *Transformer) { t.defaultRegion = region }
}

// WithSequence sets the version number for the next pass. Versioned outputs
// historically start at 2 (the upload itself being version 1).
func WithSequence(seq int) Option {
	return func(t *Transformer) { t.nextSeq = seq }
}

// New creates a transformer for the given strategy.
func New(mode types.Mode, opts ...Option) (*Transformer, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrFixTransform, mode)
	}
	t := &Transformer{mode: mode, defaultRegion: "AO", nextSeq: 2}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Apply runs the strategy over a clone of doc. The input document and the
// input issues are never mutated.
func (t *Transformer) Apply(doc *document.Document, issues []types.Issue) (*Result, error) {
	if doc == nil || doc.Root == nil {
		return nil, fmt.Errorf("%w: nil document", ErrFixTransform)
	}

	pass := &pass{
		doc:           doc.Clone(),
		defaultRegion: t.defaultRegion,
	}

	pass.soft()
	if t.mode == types.ModeHard {
		// The soft step mutates the tree through views captured at clone
		// time; the structural step must read the normalized text.
		pass.doc.Refresh()
		pass.hard()
	}
	pass.doc.Refresh()

	result := &Result{
		Version: &Version{
			Seq:      t.nextSeq,
			Mode:     t.mode,
			Suffix:   VersionSuffix(t.nextSeq, t.mode),
			Document: pass.doc,
		},
		Fixes:      pass.fixes,
		Unresolved: t.carryUnresolved(issues, pass),
	}
	return result, nil
}

// carryUnresolved maps the input findings to the post-fix report: findings
// the pass repaired are dropped, findings it attempted but could not repair
// become AUTO_FIX_NOT_POSSIBLE, the rest pass through untouched.
func (t *Transformer) carryUnresolved(issues []types.Issue, pass *pass) []types.Issue {
	var out []types.Issue
	for _, issue := range issues {
		if pass.resolved[issueKey(issue)] {
			continue
		}
		if pass.attempted[issueKey(issue)] {
			out = append(out, types.Issue{
				Code:     CodeAutoFixNotPossible,
				Severity: issue.Severity,
				Ref:      issue.Ref,
				Message:  fmt.Sprintf("%s could not be fixed unambiguously: %s", issue.Code, issue.Message),
			})
			continue
		}
		out = append(out, issue)
	}
	return out
}

// issueKey identifies a finding by code and owning document. Invoice-scope
// findings carry the invoice number in Ref.Document, which survives the fix
// pass; exact XPath matching would not, since fixes move elements around.
func issueKey(issue types.Issue) string {
	return issue.Code + "|" + issue.Ref.Document
}

// =============================================================================
// PASS STATE
// =============================================================================

// pass accumulates the fix ledger for one clone.
type pass struct {
	doc           *document.Document
	defaultRegion string
	fixes         []types.Fix

	// resolved and attempted key input issues by code and location so the
	// transformer can map fixes back to findings.
	resolved  map[string]bool
	attempted map[string]bool
}

func (p *pass) record(fix types.Fix) {
	p.fixes = append(p.fixes, fix)
}

func (p *pass) markResolved(code, documentID string) {
	if p.resolved == nil {
		p.resolved = make(map[string]bool)
	}
	p.resolved[code+"|"+documentID] = true
}

func (p *pass) markAttempted(code, documentID string) {
	if p.attempted == nil {
		p.attempted = make(map[string]bool)
	}
	p.attempted[code+"|"+documentID] = true
}

// =============================================================================
// ORDERING HELPER
// =============================================================================

// reorderChildren rewrites parent's children to follow the given local-name
// sequence; children outside the sequence keep their relative order at the
// tail. Reports whether anything moved.
func reorderChildren(parent *document.Node, order []string) bool {
	rank := make(map[string]int, len(order))
	for i, name := range order {
		rank[name] = i
	}

	known := make([][]*document.Node, len(order))
	var others []*document.Node
	for _, child := range parent.Children {
		if i, ok := rank[child.Local]; ok {
			known[i] = append(known[i], child)
		} else {
			others = append(others, child)
		}
	}

	rebuilt := make([]*document.Node, 0, len(parent.Children))
	for _, bucket := range known {
		rebuilt = append(rebuilt, bucket...)
	}
	rebuilt = append(rebuilt, others...)

	changed := false
	for i := range rebuilt {
		if parent.Children[i] != rebuilt[i] {
			changed = true
			break
		}
	}
	parent.Children = rebuilt
	return changed
}
