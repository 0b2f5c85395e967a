// =============================================================================
// SAF-T (AO) Validator - Hard Fix Strategy
// =============================================================================
//
// Structural repairs on top of the soft pass: sibling block reordering, line
// renumbering, recomputing header totals from constituent lines, master-file
// backfill. Runs only on explicit request; every change is still recorded
// in the fix ledger with the previous value.
//
// =============================================================================

package autofix

import (
	"fmt"
	"strconv"

	"github.com/kwanza-dev/saft-ao-validator/internal/amount"
	"github.com/kwanza-dev/saft-ao-validator/internal/document"
	"github.com/kwanza-dev/saft-ao-validator/internal/rules"
	"github.com/kwanza-dev/saft-ao-validator/internal/types"
	"github.com/shopspring/decimal"
)

func (p *pass) hard() {
	p.reorderTaxTable()
	for _, inv := range p.doc.Invoices {
		p.renumberLines(inv)
		p.reorderTotals(inv)
		p.recomputeTotals(inv)
	}
	p.backfillTaxTable()
}

// =============================================================================
// STRUCTURAL REORDERING
// =============================================================================

func (p *pass) reorderTaxTable() {
	for _, entry := range p.doc.TaxTable {
		if reorderChildren(entry.Node(), taxTableEntryOrder) {
			p.record(types.Fix{
				Code: CodeBlockOrderNormalized,
				Ref: types.Ref{
					XPath: fmt.Sprintf("MasterFiles/TaxTable/TaxTableEntry[%s]", entry.TaxCode),
				},
				Note: "tax table entry children reordered to the schema sequence",
			})
		}
	}
}

func (p *pass) reorderTotals(inv *document.Invoice) {
	totals := inv.DocumentTotals()
	if totals == nil {
		return
	}
	if reorderChildren(totals, documentTotalsOrder) {
		p.record(types.Fix{
			Code: CodeBlockOrderNormalized,
			Ref: types.Ref{
				XPath:    fmt.Sprintf("SourceDocuments/SalesInvoices/Invoice[%s]/DocumentTotals", inv.InvoiceNo),
				Document: inv.InvoiceNo,
			},
			Note: "document totals reordered to the schema sequence",
		})
	}
}

// renumberLines forces line numbers into the sequential 1..n contract.
func (p *pass) renumberLines(inv *document.Invoice) {
	for j, line := range inv.Lines {
		want := j + 1
		if line.LineNumber == want {
			continue
		}
		previous := line.Node().ChildText("LineNumber")
		line.Node().SetChildText("LineNumber", strconv.Itoa(want))
		line.LineNumber = want
		p.record(types.Fix{
			Code: CodeLineRenumbered,
			Ref: types.Ref{
				XPath:    fmt.Sprintf("SourceDocuments/SalesInvoices/Invoice[%s]/Line[%d]", inv.InvoiceNo, want),
				Document: inv.InvoiceNo,
				Line:     want,
				Field:    "LineNumber",
			},
			PreviousValue: previous,
			NewValue:      strconv.Itoa(want),
		})
	}
}

// =============================================================================
// TOTALS RECOMPUTATION
// =============================================================================

// recomputeTotals rewrites the header totals from the constituent lines, but
// only when the lines corroborate the stated net amount within tolerance.
// A net amount the lines cannot reproduce means the source of the error is
// unknowable, so the finding is surfaced as not auto-fixable instead.
func (p *pass) recomputeTotals(inv *document.Invoice) {
	totals := inv.DocumentTotals()
	if totals == nil || len(inv.Lines) == 0 {
		return
	}

	statedNet, err := amount.Parse(totals.ChildText("NetTotal"))
	if err != nil {
		p.markAttempted(rules.CodeTotalsMismatch, inv.InvoiceNo)
		return
	}
	statedTax := amount.ParseOrZero(totals.ChildText("TaxPayable"))
	statedGross := amount.ParseOrZero(totals.ChildText("GrossTotal"))
	settlement := amount.ParseOrZero(nodeText(totals.Find("Settlement", "SettlementAmount")))
	withholding := amount.ParseOrZero(nodeText(totals.Find("WithholdingTax", "WithholdingTaxAmount")))

	expectedGross := amount.Q2(statedNet.Sub(settlement).Add(statedTax).Sub(withholding))
	if amount.WithinTolerance(statedGross, expectedGross) {
		return
	}

	lineNet, lineVat := sumLines(inv)
	if !amount.WithinTolerance(amount.Q2(lineNet), amount.Q2(statedNet)) {
		p.markAttempted(rules.CodeTotalsMismatch, inv.InvoiceNo)
		return
	}

	newNet := amount.Q2(lineNet)
	newTax := amount.Q2(lineVat)
	newGross := amount.Q2(newNet.Sub(settlement).Add(newTax).Sub(withholding))
	previous := totals.ChildText("GrossTotal")

	totals.SetChildText("NetTotal", amount.Format2(newNet))
	totals.SetChildText("TaxPayable", amount.Format2(newTax))
	totals.SetChildText("GrossTotal", amount.Format2(newGross))

	p.record(types.Fix{
		Code: CodeTotalsRecomputed,
		Ref: types.Ref{
			XPath:    fmt.Sprintf("SourceDocuments/SalesInvoices/Invoice[%s]/DocumentTotals", inv.InvoiceNo),
			Document: inv.InvoiceNo,
			Field:    "GrossTotal",
		},
		PreviousValue: previous,
		NewValue:      amount.Format2(newGross),
		Note:          "totals recomputed from lines",
	})
	p.markResolved(rules.CodeTotalsMismatch, inv.InvoiceNo)
}

func nodeText(n *document.Node) string {
	if n == nil {
		return ""
	}
	return n.Text
}

// sumLines accumulates net and VAT amounts across the invoice lines.
// Credits are sales, debits are returns; VAT per line is quantized at six
// places before summation, matching how billing systems accumulate it.
func sumLines(inv *document.Invoice) (net, vat decimal.Decimal) {
	for _, line := range inv.Lines {
		credit := amount.ParseOrZero(line.CreditAmount)
		debit := amount.ParseOrZero(line.DebitAmount)
		lineAmount := amount.Q6(credit.Sub(debit))
		net = net.Add(lineAmount)

		if tax := line.Tax(); tax != nil {
			pct := amount.ParseOrZero(tax.ChildText("TaxPercentage"))
			vat = vat.Add(amount.Q6(lineAmount.Mul(pct).Div(amount.Hundred)))
		}
	}
	return net, vat
}

// =============================================================================
// MASTER-FILE BACKFILL
// =============================================================================

// backfillTaxTable appends a TaxTableEntry for every tax combination the
// lines reference that the table does not declare.
func (p *pass) backfillTaxTable() {
	table := p.doc.Root.Find("MasterFiles", "TaxTable")
	if table == nil {
		return
	}

	declared := make(map[string]bool, len(p.doc.TaxTable))
	for _, entry := range p.doc.TaxTable {
		declared[entry.Key()] = true
	}

	for _, inv := range p.doc.Invoices {
		for _, line := range inv.Lines {
			tax := line.Tax()
			if tax == nil {
				continue
			}
			taxType := tax.ChildText("TaxType")
			taxCode := tax.ChildText("TaxCode")
			pct := tax.ChildText("TaxPercentage")
			if taxType == "" || taxCode == "" {
				continue
			}
			key := document.TaxKey(taxType, taxCode, pct)
			if declared[key] {
				continue
			}
			declared[key] = true

			entry := &document.Node{Local: "TaxTableEntry"}
			entry.Children = []*document.Node{
				{Local: "TaxType", Text: taxType},
				{Local: "TaxCode", Text: taxCode},
				{Local: "Description", Text: "Entrada adicionada automaticamente"},
				{Local: "TaxPercentage", Text: amount.FormatPercentage(pct)},
			}
			table.Children = append(table.Children, entry)

			p.record(types.Fix{
				Code: CodeTaxTableEntryAdded,
				Ref: types.Ref{
					XPath:    "MasterFiles/TaxTable",
					Document: inv.InvoiceNo,
					Line:     line.LineNumber,
				},
				NewValue: key,
				Note:     "tax table entry added for a combination the lines reference",
			})
		}
	}
}
