// =============================================================================
// SAF-T (AO) Validator - Soft Fix Strategy
// =============================================================================
//
// Reversible normalizations only. Every step is idempotent: running the pass
// over its own output produces zero fixes. Tax rates and monetary values are
// never changed beyond re-quantization within the reconciliation tolerance.
//
// =============================================================================

package autofix

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kwanza-dev/saft-ao-validator/internal/amount"
	"github.com/kwanza-dev/saft-ao-validator/internal/document"
	"github.com/kwanza-dev/saft-ao-validator/internal/rules"
	"github.com/kwanza-dev/saft-ao-validator/internal/types"
)

// retiredInvoiceTypes maps document type codes retired from the current
// schema revision to their successors.
var retiredInvoiceTypes = map[string]string{
	"VD": "FR",
}

// amountFields lists the per-line monetary leaves normalized to two decimal
// places. Quantity and UnitPrice get separator cleanup only; their scale is
// six places and legitimate values often carry fewer.
var lineAmountFields = []string{"DebitAmount", "CreditAmount", "SettlementAmount", "TaxBase"}

func (p *pass) soft() {
	p.normalizeHeaderTaxID()
	p.fixCustomerNIFs()
	p.formatTaxTable()
	for _, inv := range p.doc.Invoices {
		p.softInvoice(inv)
	}
}

// =============================================================================
// HEADER AND MASTER FILES
// =============================================================================

// normalizeHeaderTaxID strips separator noise from the company tax number.
// "5417 123 456" and "5417-123-456" are common spreadsheet-export artifacts.
func (p *pass) normalizeHeaderTaxID() {
	h := p.doc.Header
	if h == nil || h.Node() == nil {
		return
	}
	digits := keepDigits(h.TaxRegistrationNumber)
	if digits == "" || digits == h.TaxRegistrationNumber {
		return
	}
	h.Node().SetChildText("TaxRegistrationNumber", digits)
	p.record(types.Fix{
		Code:          CodeHeaderTaxIDNormalized,
		Ref:           types.Ref{XPath: "Header/TaxRegistrationNumber", Field: "TaxRegistrationNumber"},
		PreviousValue: h.TaxRegistrationNumber,
		NewValue:      digits,
		Note:          "removed non-digit characters",
	})
	p.markResolved(rules.CodeNIFManifestlyBad, "")
	p.markResolved(rules.CodeNIFPossiblyBad, "")
}

// fixCustomerNIFs repairs customer tax numbers where the repair is
// unambiguous: a missing leading zero on an otherwise digits-only number.
// Numbers needing character stripping stay findings with a suggestion.
func (p *pass) fixCustomerNIFs() {
	for _, c := range p.doc.Customers {
		if rules.ClassifyNIF(c.CustomerTaxID) == rules.Plausible {
			continue
		}
		if keepDigits(c.CustomerTaxID) != c.CustomerTaxID {
			continue
		}
		suggested, ok := rules.SuggestNIF(c.CustomerTaxID)
		if !ok || suggested == c.CustomerTaxID {
			continue
		}
		c.Node().SetChildText("CustomerTaxID", suggested)
		p.record(types.Fix{
			Code: CodeNIFZeroPadded,
			Ref: types.Ref{
				XPath:    fmt.Sprintf("MasterFiles/Customer[%s]/CustomerTaxID", c.CustomerID),
				Document: c.CustomerID,
				Field:    "CustomerTaxID",
			},
			PreviousValue: c.CustomerTaxID,
			NewValue:      suggested,
			Note:          "missing leading zero restored",
		})
		p.markResolved(rules.CodeNIFManifestlyBad, c.CustomerID)
		p.markResolved(rules.CodeNIFPossiblyBad, c.CustomerID)
	}
}

// formatTaxTable normalizes TaxPercentage rendering: integral rates print
// without a fraction, everything else with two places. The rate value itself
// is never changed.
func (p *pass) formatTaxTable() {
	for _, entry := range p.doc.TaxTable {
		formatted := amount.FormatPercentage(entry.TaxPercentage)
		if formatted == entry.TaxPercentage {
			continue
		}
		entry.Node().SetChildText("TaxPercentage", formatted)
		p.record(types.Fix{
			Code: CodeTaxPercentFormatted,
			Ref: types.Ref{
				XPath: fmt.Sprintf("MasterFiles/TaxTable/TaxTableEntry[%s]/TaxPercentage", entry.TaxCode),
				Field: "TaxPercentage",
			},
			PreviousValue: entry.TaxPercentage,
			NewValue:      formatted,
		})
	}
}

// =============================================================================
// INVOICES
// =============================================================================

func (p *pass) softInvoice(inv *document.Invoice) {
	// The invoice number identifies findings across the pass; keep the
	// pre-sanitization value for that mapping.
	originalNo := inv.InvoiceNo

	p.sanitizeCodeField(inv.Node(), "InvoiceNo", originalNo)
	p.normalizeInvoiceType(inv, originalNo)

	if totals := inv.DocumentTotals(); totals != nil {
		for _, field := range documentTotalsOrder {
			p.normalizeAmount(totals, field, true, originalNo)
		}
		if settlement := totals.Child("Settlement"); settlement != nil {
			p.normalizeAmount(settlement, "SettlementAmount", true, originalNo)
		}
		if withholding := totals.Child("WithholdingTax"); withholding != nil {
			p.normalizeAmount(withholding, "WithholdingTaxAmount", true, originalNo)
		}
	}

	for _, line := range inv.Lines {
		p.softLine(line, originalNo)
	}
}

func (p *pass) softLine(line *document.Line, invoiceNo string) {
	node := line.Node()

	p.sanitizeCodeField(node, "ProductCode", invoiceNo)

	p.normalizeAmount(node, "Quantity", false, invoiceNo)
	p.normalizeAmount(node, "UnitPrice", false, invoiceNo)
	for _, field := range lineAmountFields {
		p.normalizeAmount(node, field, true, invoiceNo)
	}

	if tax := line.Tax(); tax != nil {
		p.ensureTaxCountryRegion(tax, line, invoiceNo)
		if pct := tax.Child("TaxPercentage"); pct != nil && pct.Text != "" {
			formatted := amount.FormatPercentage(pct.Text)
			if formatted != pct.Text {
				p.record(types.Fix{
					Code:          CodeTaxPercentFormatted,
					Ref:           p.lineRef(invoiceNo, line, "TaxPercentage"),
					PreviousValue: pct.Text,
					NewValue:      formatted,
				})
				pct.Text = formatted
			}
		}
	}

	if reorderChildren(node, lineOrder) {
		p.record(types.Fix{
			Code: CodeLineOrderNormalized,
			Ref:  p.lineRef(invoiceNo, line, ""),
			Note: "line sub-elements reordered to the schema sequence",
		})
	}
}

// normalizeInvoiceType replaces retired document type codes.
func (p *pass) normalizeInvoiceType(inv *document.Invoice, invoiceNo string) {
	replacement, retired := retiredInvoiceTypes[inv.InvoiceType]
	if !retired {
		return
	}
	inv.Node().SetChildText("InvoiceType", replacement)
	p.record(types.Fix{
		Code: CodeInvoiceTypeNormalized,
		Ref: types.Ref{
			XPath:    fmt.Sprintf("SourceDocuments/SalesInvoices/Invoice[%s]/InvoiceType", invoiceNo),
			Document: invoiceNo,
			Field:    "InvoiceType",
		},
		PreviousValue: inv.InvoiceType,
		NewValue:      replacement,
		Note:          "document type code retired in the current schema revision",
	})
	p.markResolved(rules.CodeInvoiceTypeInvalid, invoiceNo)
}

// ensureTaxCountryRegion inserts the jurisdiction element directly after
// TaxCode, where the schema sequence expects it.
func (p *pass) ensureTaxCountryRegion(tax *document.Node, line *document.Line, invoiceNo string) {
	if region := tax.Child("TaxCountryRegion"); region != nil {
		if region.Text != "" {
			return
		}
		region.Text = p.defaultRegion
	} else {
		tax.InsertAfter("TaxCode", &document.Node{Local: "TaxCountryRegion", Text: p.defaultRegion})
	}
	p.record(types.Fix{
		Code:     CodeTaxRegionAdded,
		Ref:      p.lineRef(invoiceNo, line, "TaxCountryRegion"),
		NewValue: p.defaultRegion,
	})
	p.markResolved(rules.CodeTaxRegionMissing, invoiceNo)
}

// =============================================================================
// FIELD HELPERS
// =============================================================================

// normalizeAmount repairs the decimal separator of one numeric leaf and,
// when requantize is set, rewrites it at two decimal places. Re-quantization
// moves the value by less than half a cent, inside the reconciliation
// tolerance.
func (p *pass) normalizeAmount(parent *document.Node, local string, requantize bool, invoiceNo string) {
	node := parent.Child(local)
	if node == nil || node.Text == "" {
		return
	}
	v, normalized, changed, err := amount.ParseLenient(node.Text)
	if err != nil {
		return
	}
	ref := types.Ref{
		XPath:    fmt.Sprintf("SourceDocuments/SalesInvoices/Invoice[%s]//%s", invoiceNo, local),
		Document: invoiceNo,
		Field:    local,
	}
	if changed {
		p.record(types.Fix{
			Code:          CodeDecimalSeparator,
			Ref:           ref,
			PreviousValue: node.Text,
			NewValue:      normalized,
			Note:          "decimal comma replaced with dot",
		})
		node.Text = normalized
	}
	if !requantize {
		return
	}
	want := amount.Format2(v)
	if want == node.Text {
		return
	}
	p.record(types.Fix{
		Code:          CodeAmountRequantized,
		Ref:           ref,
		PreviousValue: node.Text,
		NewValue:      want,
	})
	node.Text = want
}

// sanitizeCodeField removes non-printable characters from an identifier
// leaf. Embedded control characters are a recurring artifact of exports
// from legacy billing systems.
func (p *pass) sanitizeCodeField(parent *document.Node, local, invoiceNo string) {
	node := parent.Child(local)
	if node == nil || node.Text == "" {
		return
	}
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || !unicode.IsGraphic(r) {
			return -1
		}
		return r
	}, node.Text)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == node.Text || cleaned == "" {
		return
	}
	p.record(types.Fix{
		Code: CodeCodeFieldSanitized,
		Ref: types.Ref{
			XPath:    fmt.Sprintf("SourceDocuments/SalesInvoices/Invoice[%s]/%s", invoiceNo, local),
			Document: invoiceNo,
			Field:    local,
		},
		PreviousValue: node.Text,
		NewValue:      cleaned,
		Note:          "removed non-printable characters",
	})
	node.Text = cleaned
}

func (p *pass) lineRef(invoiceNo string, line *document.Line, field string) types.Ref {
	return types.Ref{
		XPath:    fmt.Sprintf("SourceDocuments/SalesInvoices/Invoice[%s]/Line[%d]", invoiceNo, line.LineNumber),
		Document: invoiceNo,
		Line:     line.LineNumber,
		Field:    field,
	}
}

func keepDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
