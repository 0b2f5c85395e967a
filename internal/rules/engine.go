// =============================================================================
// SAF-T (AO) Validator - Business Rule Engine
// =============================================================================
//
// Evaluates the declarative rule catalog against a parsed document. The
// engine is a generic interpreter: each catalog entry names a check, a scope
// and constraint parameters, and the engine dispatches to one evaluator per
// check. Adding regulator guidance means adding catalog entries, not code.
//
// Determinism: rules run in catalog order within a fixed scope sweep:
// header first, then one forward pass over SourceDocuments in document
// order, then MasterFiles. Issues come back in discovery order. No rule
// reads the output of a later rule, findings never short-circuit, and the
// engine never mutates the document.
//
// =============================================================================

package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kwanza-dev/saft-ao-validator/internal/amount"
	"github.com/kwanza-dev/saft-ao-validator/internal/config"
	"github.com/kwanza-dev/saft-ao-validator/internal/document"
	"github.com/kwanza-dev/saft-ao-validator/internal/types"
)

// Issue codes produced by the rule engine.
const (
	CodeHashSequenceBroken  = "HASH_SEQUENCE_BROKEN"
	CodeTotalsMismatch      = "TOTALS_MISMATCH"
	CodeDateOrderInvalid    = "DATE_ORDER_INVALID"
	CodeUnresolvedReference = "UNRESOLVED_REFERENCE"
	CodeNIFManifestlyBad    = "NIF_MANIFESTLY_INVALID"
	CodeNIFPossiblyBad      = "NIF_POSSIBLY_INVALID"
	CodeDuplicateInvoiceNo  = "DUPLICATE_INVOICE_NO"
	CodeInvoiceTypeInvalid  = "INVOICE_TYPE_INVALID"
	CodeTaxRegionMissing    = "TAX_COUNTRY_REGION_MISSING"
)

// Engine evaluates one catalog. Safe for concurrent use across documents:
// evaluation keeps all per-run state on the stack.
type Engine struct {
	catalog *config.Catalog
	hasher  Hasher
}

// Option configures an Engine.
type Option func(*Engine)

// WithHasher plugs in the externally specified hash primitive. Without one
// the hash rule checks chain presence only.
func WithHasher(h Hasher) Option {
	return func(e *Engine) { e.hasher = h }
}

// New creates an engine for the given catalog. A nil catalog selects the
// built-in default.
func New(catalog *config.Catalog, opts ...Option) *Engine {
	if catalog == nil {
		catalog = config.DefaultCatalog()
	}
	e := &Engine{catalog: catalog}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs every applicable rule and returns the findings in discovery
// order, plus evaluation counters for the run summary.
func (e *Engine) Evaluate(doc *document.Document) ([]types.Issue, types.Summary) {
	var issues []types.Issue
	var summary types.Summary

	ref := e.referenceDate(doc)
	active := make([]config.Rule, 0, len(e.catalog.Rules))
	for _, rule := range e.catalog.Rules {
		if rule.AppliesOn(ref) {
			active = append(active, rule)
		}
	}
	summary.RulesEvaluated = len(active)
	summary.DocumentsChecked = len(doc.Invoices)

	// Header sweep.
	for _, rule := range active {
		if rule.Scope == "header" {
			issues = append(issues, e.evalHeader(rule, doc)...)
		}
	}

	// Forward pass over source documents. Per-pass state for the chained
	// checks lives here so discovery order matches document order.
	seen := make(map[string]int) // InvoiceNo -> 1-based first occurrence
	prevHash := ""
	for pos, inv := range doc.Invoices {
		for _, rule := range active {
			switch rule.Scope {
			case "invoice":
				issues = append(issues, e.evalInvoice(rule, doc, inv, prevHash, seen)...)
			case "line":
				issues = append(issues, e.evalLines(rule, inv)...)
			}
		}
		if _, dup := seen[inv.InvoiceNo]; !dup {
			seen[inv.InvoiceNo] = pos + 1
		}
		prevHash = inv.Hash
	}

	// MasterFiles sweep.
	for _, rule := range active {
		if rule.Scope == "masterfiles" {
			issues = append(issues, e.evalMasterFiles(rule, doc)...)
		}
	}

	for i := range issues {
		summary.Count(issues[i])
	}
	return issues, summary
}

// referenceDate anchors the applicability window: the header creation date
// when present and parsable, otherwise today.
func (e *Engine) referenceDate(doc *document.Document) time.Time {
	if doc.Header != nil {
		if t, err := time.Parse("2006-01-02", doc.Header.DateCreated); err == nil {
			return t
		}
	}
	return time.Now()
}

// =============================================================================
// HEADER SCOPE
// =============================================================================

func (e *Engine) evalHeader(rule config.Rule, doc *document.Document) []types.Issue {
	if rule.Check != config.CheckNIFFormat || doc.Header == nil {
		return nil
	}
	return nifIssues(doc.Header.TaxRegistrationNumber, types.Ref{
		XPath: "/AuditFile/Header/TaxRegistrationNumber",
		Field: "TaxRegistrationNumber",
	})
}

// =============================================================================
// INVOICE SCOPE
// =============================================================================

func (e *Engine) evalInvoice(rule config.Rule, doc *document.Document, inv *document.Invoice, prevHash string, seen map[string]int) []types.Issue {
	switch rule.Check {
	case config.CheckHashChain:
		return e.checkHashChain(inv, prevHash)
	case config.CheckTotals:
		return checkTotals(rule, inv)
	case config.CheckDateOrder:
		return checkDateOrder(inv)
	case config.CheckInvoiceType:
		return checkInvoiceType(rule, inv)
	case config.CheckDuplicateInvoiceNo:
		return checkDuplicate(inv, seen)
	default:
		return nil
	}
}

func (e *Engine) checkHashChain(inv *document.Invoice, prevHash string) []types.Issue {
	ref := types.Ref{Document: inv.InvoiceNo, Field: "Hash"}

	if strings.TrimSpace(inv.Hash) == "" {
		return []types.Issue{{
			Code:     CodeHashSequenceBroken,
			Severity: types.SeverityError,
			Ref:      ref,
			Message:  "document hash is missing, chain to predecessor cannot be verified",
		}}
	}
	if e.hasher == nil {
		return nil
	}
	expected := e.hasher.Chain(prevHash, inv)
	if inv.Hash != expected {
		return []types.Issue{{
			Code:     CodeHashSequenceBroken,
			Severity: types.SeverityError,
			Ref:      ref,
			Message:  "stored hash does not match the recomputed chain value",
		}}
	}
	return nil
}

func checkTotals(rule config.Rule, inv *document.Invoice) []types.Issue {
	tolerance := amount.ParseOrZero(rule.Param("tolerance", "0.01"))
	if tolerance.IsZero() {
		tolerance = amount.Tolerance
	}

	net, _, _, errNet := amount.ParseLenient(inv.NetTotal)
	tax, _, _, errTax := amount.ParseLenient(inv.TaxPayable)
	gross, _, _, errGross := amount.ParseLenient(inv.GrossTotal)

	ref := types.Ref{Document: inv.InvoiceNo, Field: "GrossTotal"}
	if inv.DocumentTotals() != nil {
		ref.SourceLine = inv.DocumentTotals().Line
	}

	if errNet != nil || errTax != nil || errGross != nil {
		return []types.Issue{{
			Code:     CodeTotalsMismatch,
			Severity: types.SeverityError,
			Ref:      ref,
			Message:  "document totals are not readable as decimals",
		}}
	}

	expected := expectedGross(inv, net, tax)
	if expected.Sub(gross).Abs().Cmp(tolerance) <= 0 {
		return nil
	}
	return []types.Issue{{
		Code:     CodeTotalsMismatch,
		Severity: types.SeverityError,
		Ref:      ref,
		Message: fmt.Sprintf("NetTotal %s + TaxPayable %s does not reconcile with GrossTotal %s",
			amount.Format2(net), amount.Format2(tax), amount.Format2(gross)),
		SuggestedValue: amount.Format2(expected),
	}}
}

// expectedGross applies the full totals identity:
// Gross = q2(Net - Settlement + Tax - Withholding).
func expectedGross(inv *document.Invoice, net, tax decimal.Decimal) decimal.Decimal {
	settlement := decimal.Zero
	withholding := decimal.Zero
	if totals := inv.DocumentTotals(); totals != nil {
		if s := totals.Find("Settlement", "SettlementAmount"); s != nil {
			settlement = amount.ParseOrZero(s.Text)
		}
		for _, w := range totals.ChildrenNamed("WithholdingTax") {
			if a := w.Child("WithholdingTaxAmount"); a != nil {
				withholding = withholding.Add(amount.ParseOrZero(a.Text))
			}
		}
	}
	return amount.Q2(net.Sub(settlement).Add(tax).Sub(withholding))
}

func checkDateOrder(inv *document.Invoice) []types.Issue {
	invoiceDate, err1 := time.Parse("2006-01-02", inv.InvoiceDate)
	entryDate, err2 := parseSystemEntryDate(inv.SystemEntryDate)
	if err1 != nil || err2 != nil {
		// Format violations belong to the schema validator.
		return nil
	}
	if !invoiceDate.After(entryDate) {
		return nil
	}
	return []types.Issue{{
		Code:     CodeDateOrderInvalid,
		Severity: types.SeverityError,
		Ref:      types.Ref{Document: inv.InvoiceNo, Field: "InvoiceDate"},
		Message: fmt.Sprintf("InvoiceDate %s is after SystemEntryDate %s",
			inv.InvoiceDate, inv.SystemEntryDate),
	}}
}

func parseSystemEntryDate(text string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02T15:04:05", text); err == nil {
		return t.Truncate(24 * time.Hour), nil
	}
	return time.Parse("2006-01-02", text)
}

func checkInvoiceType(rule config.Rule, inv *document.Invoice) []types.Issue {
	allowed := strings.Split(rule.Param("allowed", "FT,FR,ND,NC,AR"), ",")
	for _, code := range allowed {
		if inv.InvoiceType == strings.TrimSpace(code) {
			return nil
		}
	}

	issue := types.Issue{
		Code:     CodeInvoiceTypeInvalid,
		Severity: types.SeverityError,
		Ref:      types.Ref{Document: inv.InvoiceNo, Field: "InvoiceType"},
		Message:  fmt.Sprintf("InvoiceType %q is outside the schema enumeration", inv.InvoiceType),
	}
	// Known-bad historical codes carry their canonical replacement, e.g. the
	// retired "VD" (sale with immediate receipt) which maps to "FR".
	for _, pair := range strings.Split(rule.Param("replacement", ""), ";") {
		if from, to, ok := strings.Cut(pair, "="); ok && strings.TrimSpace(from) == inv.InvoiceType {
			issue.SuggestedValue = strings.TrimSpace(to)
			issue.Message = fmt.Sprintf("InvoiceType %q was retired, replacement is %q", inv.InvoiceType, issue.SuggestedValue)
		}
	}
	return []types.Issue{issue}
}

func checkDuplicate(inv *document.Invoice, seen map[string]int) []types.Issue {
	if inv.InvoiceNo == "" {
		return nil
	}
	first, dup := seen[inv.InvoiceNo]
	if !dup {
		return nil
	}
	return []types.Issue{{
		Code:     CodeDuplicateInvoiceNo,
		Severity: types.SeverityError,
		Ref:      types.Ref{Document: inv.InvoiceNo, Field: "InvoiceNo"},
		Message:  fmt.Sprintf("InvoiceNo %q already used in this series", inv.InvoiceNo),
		SuggestedValue: fmt.Sprintf("first occurrence: %s at position %d",
			inv.InvoiceNo, first),
	}}
}

// =============================================================================
// LINE SCOPE
// =============================================================================

func (e *Engine) evalLines(rule config.Rule, inv *document.Invoice) []types.Issue {
	if rule.Check != config.CheckTaxCountryRegion {
		return nil
	}
	var issues []types.Issue
	fallback := rule.Param("default", "AO")
	for _, line := range inv.Lines {
		tax := line.Tax()
		if tax == nil {
			continue
		}
		if tax.ChildText("TaxCountryRegion") != "" {
			continue
		}
		issues = append(issues, types.Issue{
			Code:     CodeTaxRegionMissing,
			Severity: types.SeverityError,
			Ref: types.Ref{
				Document: inv.InvoiceNo,
				Line:     line.LineNumber,
				Field:    "TaxCountryRegion",
			},
			Message:        "Tax block has no TaxCountryRegion",
			SuggestedValue: fallback,
		})
	}
	return issues
}

// =============================================================================
// MASTERFILES SCOPE
// =============================================================================

func (e *Engine) evalMasterFiles(rule config.Rule, doc *document.Document) []types.Issue {
	switch rule.Check {
	case config.CheckCrossReference:
		return checkCrossReferences(doc)
	case config.CheckNIFFormat:
		var issues []types.Issue
		for _, c := range doc.Customers {
			issues = append(issues, nifIssues(c.CustomerTaxID, types.Ref{
				Document: c.CustomerID,
				Field:    "CustomerTaxID",
			})...)
		}
		for _, s := range doc.Suppliers {
			issues = append(issues, nifIssues(s.SupplierTaxID, types.Ref{
				Document: s.SupplierID,
				Field:    "SupplierTaxID",
			})...)
		}
		return issues
	default:
		return nil
	}
}

// checkCrossReferences verifies every identifier used by a source document
// or ledger transaction against its MasterFiles catalog. Reported once per
// distinct missing identifier, at its first use.
func checkCrossReferences(doc *document.Document) []types.Issue {
	var issues []types.Issue
	reportedCustomers := make(map[string]struct{})
	reportedSuppliers := make(map[string]struct{})
	reportedProducts := make(map[string]struct{})
	reportedAccounts := make(map[string]struct{})
	reportedTaxKeys := make(map[string]struct{})

	for _, inv := range doc.Invoices {
		if inv.CustomerID != "" {
			if _, ok := doc.CustomerByID(inv.CustomerID); !ok {
				if _, done := reportedCustomers[inv.CustomerID]; !done {
					reportedCustomers[inv.CustomerID] = struct{}{}
					issues = append(issues, types.Issue{
						Code:     CodeUnresolvedReference,
						Severity: types.SeverityError,
						Ref:      types.Ref{Document: inv.InvoiceNo, Field: "CustomerID"},
						Message:  fmt.Sprintf("CustomerID %q is not present in the Customer catalog", inv.CustomerID),
					})
				}
			}
		}
		for _, line := range inv.Lines {
			if line.ProductCode != "" {
				if _, ok := doc.ProductByCode(line.ProductCode); !ok {
					if _, done := reportedProducts[line.ProductCode]; !done {
						reportedProducts[line.ProductCode] = struct{}{}
						issues = append(issues, types.Issue{
							Code:     CodeUnresolvedReference,
							Severity: types.SeverityError,
							Ref:      types.Ref{Document: inv.InvoiceNo, Line: line.LineNumber, Field: "ProductCode"},
							Message:  fmt.Sprintf("ProductCode %q is not present in the Product catalog", line.ProductCode),
						})
					}
				}
			}
			if tax := line.Tax(); tax != nil {
				key := document.TaxKey(tax.ChildText("TaxType"), tax.ChildText("TaxCode"), tax.ChildText("TaxPercentage"))
				if _, ok := doc.TaxTableEntryByKey(key); !ok {
					if _, done := reportedTaxKeys[key]; !done {
						reportedTaxKeys[key] = struct{}{}
						issues = append(issues, types.Issue{
							Code:     CodeUnresolvedReference,
							Severity: types.SeverityWarning,
							Ref:      types.Ref{Document: inv.InvoiceNo, Line: line.LineNumber, Field: "Tax"},
							Message:  fmt.Sprintf("tax combination %s has no TaxTable entry", key),
						})
					}
				}
			}
		}
	}

	for _, tr := range doc.Transactions {
		for _, line := range tr.Lines {
			if line.AccountID != "" {
				if _, ok := doc.AccountByID(line.AccountID); !ok {
					if _, done := reportedAccounts[line.AccountID]; !done {
						reportedAccounts[line.AccountID] = struct{}{}
						issues = append(issues, types.Issue{
							Code:     CodeUnresolvedReference,
							Severity: types.SeverityError,
							Ref:      types.Ref{Document: tr.TransactionID, Field: "AccountID"},
							Message:  fmt.Sprintf("AccountID %q is not present in the GeneralLedgerAccounts catalog", line.AccountID),
						})
					}
				}
			}
			if line.CustomerID != "" {
				if _, ok := doc.CustomerByID(line.CustomerID); !ok {
					if _, done := reportedCustomers[line.CustomerID]; !done {
						reportedCustomers[line.CustomerID] = struct{}{}
						issues = append(issues, types.Issue{
							Code:     CodeUnresolvedReference,
							Severity: types.SeverityError,
							Ref:      types.Ref{Document: tr.TransactionID, Field: "CustomerID"},
							Message:  fmt.Sprintf("CustomerID %q is not present in the Customer catalog", line.CustomerID),
						})
					}
				}
			}
			if line.SupplierID != "" {
				if _, ok := doc.SupplierByID(line.SupplierID); !ok {
					if _, done := reportedSuppliers[line.SupplierID]; !done {
						reportedSuppliers[line.SupplierID] = struct{}{}
						issues = append(issues, types.Issue{
							Code:     CodeUnresolvedReference,
							Severity: types.SeverityError,
							Ref:      types.Ref{Document: tr.TransactionID, Field: "SupplierID"},
							Message:  fmt.Sprintf("SupplierID %q is not present in the Supplier catalog", line.SupplierID),
						})
					}
				}
			}
		}
	}
	return issues
}

// =============================================================================
// SHARED NIF HELPER
// =============================================================================

func nifIssues(raw string, ref types.Ref) []types.Issue {
	switch ClassifyNIF(raw) {
	case Plausible:
		return nil
	case ManifestlyInvalid:
		issue := types.Issue{
			Code:     CodeNIFManifestlyBad,
			Severity: types.SeverityError,
			Ref:      ref,
			Message:  fmt.Sprintf("NIF %q is manifestly invalid", raw),
		}
		if suggestion, ok := SuggestNIF(raw); ok {
			issue.SuggestedValue = suggestion
		}
		return []types.Issue{issue}
	default:
		issue := types.Issue{
			Code:     CodeNIFPossiblyBad,
			Severity: types.SeverityWarning,
			Ref:      ref,
			Message:  fmt.Sprintf("NIF %q does not match any known shape", raw),
		}
		if suggestion, ok := SuggestNIF(raw); ok {
			issue.SuggestedValue = suggestion
		}
		return []types.Issue{issue}
	}
}
