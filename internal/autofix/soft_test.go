package autofix

import (
	"fmt"
	"strings"
	"testing"

	"github.com/kwanza-dev/saft-ao-validator/internal/document"
	"github.com/kwanza-dev/saft-ao-validator/internal/rules"
	"github.com/kwanza-dev/saft-ao-validator/internal/types"
)

const fixableFile = `<?xml version="1.0" encoding="UTF-8"?>
<AuditFile xmlns="urn:OECD:StandardAuditFile-Tax:AO_1.01_01">
  <Header>
    <TaxRegistrationNumber>5417 123 456</TaxRegistrationNumber>
    <CompanyName>Empresa Exemplo</CompanyName>
    <FiscalYear>2025</FiscalYear>
    <DateCreated>2025-02-01</DateCreated>
    <CurrencyCode>AOA</CurrencyCode>
  </Header>
  <MasterFiles>
    <Customer>
      <CustomerID>C001</CustomerID>
      <CustomerTaxID>12345678</CustomerTaxID>
      <CompanyName>Cliente Um</CompanyName>
    </Customer>
    <Product>
      <ProductCode>P001</ProductCode>
      <ProductDescription>Produto Um</ProductDescription>
    </Product>
    <TaxTable>
      <TaxTableEntry>
        <TaxType>IVA</TaxType>
        <TaxCode>NOR</TaxCode>
        <Description>Taxa normal</Description>
        <TaxPercentage>14.00</TaxPercentage>
      </TaxTableEntry>
    </TaxTable>
  </MasterFiles>
  <SourceDocuments>
    <SalesInvoices>
      <Invoice>
        <InvoiceNo>VD 2025/1</InvoiceNo>
        <Hash>abc123</Hash>
        <InvoiceDate>2025-01-10</InvoiceDate>
        <InvoiceType>VD</InvoiceType>
        <SystemEntryDate>2025-01-10T09:00:00</SystemEntryDate>
        <CustomerID>C001</CustomerID>
        <Line>
          <LineNumber>1</LineNumber>
          <ProductCode>P001</ProductCode>
          <Quantity>2</Quantity>
          <UnitPrice>50.00</UnitPrice>
          <CreditAmount>100,00</CreditAmount>
          <Tax>
            <TaxType>IVA</TaxType>
            <TaxCode>NOR</TaxCode>
            <TaxPercentage>14</TaxPercentage>
          </Tax>
        </Line>
        <DocumentTotals>
          <TaxPayable>14,00</TaxPayable>
          <NetTotal>100.5</NetTotal>
          <GrossTotal>114.50</GrossTotal>
        </DocumentTotals>
      </Invoice>
    </SalesInvoices>
  </SourceDocuments>
</AuditFile>`

func mustParse(t *testing.T, xml string) *document.Document {
	t.Helper()
	doc, err := document.Parse(strings.NewReader(xml))
	if err != nil {
		t.Fatalf("parse test document: %v", err)
	}
	return doc
}

func mustApply(t *testing.T, mode types.Mode, doc *document.Document, issues []types.Issue) *Result {
	t.Helper()
	transformer, err := New(mode)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := transformer.Apply(doc, issues)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return result
}

func fixesByCode(fixes []types.Fix, code string) []types.Fix {
	var out []types.Fix
	for _, fix := range fixes {
		if fix.Code == code {
			out = append(out, fix)
		}
	}
	return out
}

func TestSoftPassLeavesInputUntouched(t *testing.T) {
	doc := mustParse(t, fixableFile)
	before, err := document.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	mustApply(t, types.ModeSoft, doc, nil)

	after, err := document.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if before != after {
		t.Error("fix pass mutated the input document")
	}
}

func TestSoftNormalizesRetiredInvoiceType(t *testing.T) {
	doc := mustParse(t, fixableFile)
	result := mustApply(t, types.ModeSoft, doc, nil)

	got := fixesByCode(result.Fixes, CodeInvoiceTypeNormalized)
	if len(got) != 1 {
		t.Fatalf("INVOICE_TYPE_NORMALIZED fixes = %d, want 1", len(got))
	}
	if got[0].PreviousValue != "VD" || got[0].NewValue != "FR" {
		t.Errorf("fix = %q -> %q, want VD -> FR", got[0].PreviousValue, got[0].NewValue)
	}
	if result.Version.Document.Invoices[0].InvoiceType != "FR" {
		t.Errorf("fixed InvoiceType = %q", result.Version.Document.Invoices[0].InvoiceType)
	}
}

func TestSoftNormalizesDecimalSeparators(t *testing.T) {
	doc := mustParse(t, fixableFile)
	result := mustApply(t, types.ModeSoft, doc, nil)

	if got := fixesByCode(result.Fixes, CodeDecimalSeparator); len(got) != 2 {
		t.Fatalf("DECIMAL_SEPARATOR_NORMALIZED fixes = %d, want 2 (TaxPayable, CreditAmount)", len(got))
	}

	inv := result.Version.Document.Invoices[0]
	if inv.TaxPayable != "14.00" {
		t.Errorf("TaxPayable = %q, want 14.00", inv.TaxPayable)
	}
	if inv.Lines[0].CreditAmount != "100.00" {
		t.Errorf("CreditAmount = %q, want 100.00", inv.Lines[0].CreditAmount)
	}
}

func TestSoftRequantizesTotals(t *testing.T) {
	doc := mustParse(t, fixableFile)
	result := mustApply(t, types.ModeSoft, doc, nil)

	got := fixesByCode(result.Fixes, CodeAmountRequantized)
	found := false
	for _, fix := range got {
		if fix.PreviousValue == "100.5" && fix.NewValue == "100.50" {
			found = true
		}
	}
	if !found {
		t.Errorf("NetTotal 100.5 not requantized: %v", got)
	}
	if result.Version.Document.Invoices[0].NetTotal != "100.50" {
		t.Errorf("NetTotal = %q", result.Version.Document.Invoices[0].NetTotal)
	}
}

func TestSoftInsertsTaxCountryRegionAfterTaxCode(t *testing.T) {
	doc := mustParse(t, fixableFile)
	result := mustApply(t, types.ModeSoft, doc, nil)

	if got := fixesByCode(result.Fixes, CodeTaxRegionAdded); len(got) != 1 {
		t.Fatalf("TAX_COUNTRY_REGION_ADDED fixes = %d, want 1", len(got))
	}

	tax := result.Version.Document.Invoices[0].Lines[0].Tax()
	var names []string
	for _, child := range tax.Children {
		names = append(names, child.Local)
	}
	want := []string{"TaxType", "TaxCode", "TaxCountryRegion", "TaxPercentage"}
	if fmt.Sprint(names) != fmt.Sprint(want) {
		t.Errorf("Tax children = %v, want %v", names, want)
	}
	if tax.ChildText("TaxCountryRegion") != "AO" {
		t.Errorf("TaxCountryRegion = %q, want AO", tax.ChildText("TaxCountryRegion"))
	}
}

func TestSoftRepairsHeaderAndCustomerNIF(t *testing.T) {
	doc := mustParse(t, fixableFile)
	result := mustApply(t, types.ModeSoft, doc, nil)

	fixed := result.Version.Document
	if got := fixed.Header.TaxRegistrationNumber; got != "5417123456" {
		t.Errorf("header tax number = %q, want 5417123456", got)
	}
	if got := fixed.Customers[0].CustomerTaxID; got != "012345678" {
		t.Errorf("customer NIF = %q, want 012345678", got)
	}
	if rules.ClassifyNIF(fixed.Customers[0].CustomerTaxID) != rules.Plausible {
		t.Error("repaired customer NIF not plausible")
	}
}

func TestSoftFormatsTaxPercentage(t *testing.T) {
	doc := mustParse(t, fixableFile)
	result := mustApply(t, types.ModeSoft, doc, nil)

	// Table entry "14.00" normalizes to "14", matching the line's rendering.
	if got := result.Version.Document.TaxTable[0].TaxPercentage; got != "14" {
		t.Errorf("TaxPercentage = %q, want 14", got)
	}
}

func TestSoftReordersLineElements(t *testing.T) {
	in := strings.Replace(fixableFile,
		`<LineNumber>1</LineNumber>
          <ProductCode>P001</ProductCode>
          <Quantity>2</Quantity>
          <UnitPrice>50.00</UnitPrice>
          <CreditAmount>100,00</CreditAmount>`,
		`<CreditAmount>100,00</CreditAmount>
          <LineNumber>1</LineNumber>
          <UnitPrice>50.00</UnitPrice>
          <Quantity>2</Quantity>
          <ProductCode>P001</ProductCode>`, 1)
	doc := mustParse(t, in)
	result := mustApply(t, types.ModeSoft, doc, nil)

	if got := fixesByCode(result.Fixes, CodeLineOrderNormalized); len(got) != 1 {
		t.Fatalf("LINE_ORDER_NORMALIZED fixes = %d, want 1", len(got))
	}

	line := result.Version.Document.Invoices[0].Lines[0].Node()
	var names []string
	for _, child := range line.Children {
		names = append(names, child.Local)
	}
	want := []string{"LineNumber", "ProductCode", "Quantity", "UnitPrice", "CreditAmount", "Tax"}
	if fmt.Sprint(names) != fmt.Sprint(want) {
		t.Errorf("line children = %v, want %v", names, want)
	}
}

func TestSoftPassIsIdempotent(t *testing.T) {
	doc := mustParse(t, fixableFile)
	first := mustApply(t, types.ModeSoft, doc, nil)
	if len(first.Fixes) == 0 {
		t.Fatal("expected fixes on first pass")
	}

	second := mustApply(t, types.ModeSoft, first.Version.Document, nil)
	if len(second.Fixes) != 0 {
		t.Errorf("second pass over fixed output produced fixes: %v", second.Fixes)
	}
}

func TestSoftNeverTouchesTaxRates(t *testing.T) {
	doc := mustParse(t, fixableFile)
	result := mustApply(t, types.ModeSoft, doc, nil)

	// Formatting may change, the numeric rate may not.
	tax := result.Version.Document.Invoices[0].Lines[0].Tax()
	if got := tax.ChildText("TaxPercentage"); got != "14" {
		t.Errorf("line TaxPercentage = %q, rate changed", got)
	}
}

func TestSoftVersionSuffix(t *testing.T) {
	doc := mustParse(t, fixableFile)
	result := mustApply(t, types.ModeSoft, doc, nil)
	if result.Version.Suffix != "_v.02" {
		t.Errorf("Suffix = %q, want _v.02", result.Version.Suffix)
	}

	transformer, err := New(types.ModeSoft, WithSequence(7))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := transformer.Apply(doc, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Version.Suffix != "_v.07" {
		t.Errorf("Suffix = %q, want _v.07", res.Version.Suffix)
	}
}

func TestUnresolvedIssuesCarryThrough(t *testing.T) {
	doc := mustParse(t, fixableFile)
	unresolved := types.Issue{
		Code:     rules.CodeUnresolvedReference,
		Severity: types.SeverityError,
		Ref:      types.Ref{Document: "VD 2025/1", Field: "CustomerID"},
		Message:  `CustomerID "C999" is not present in the Customer catalog`,
	}
	result := mustApply(t, types.ModeSoft, doc, []types.Issue{unresolved})

	found := false
	for _, issue := range result.Unresolved {
		if issue.Code == rules.CodeUnresolvedReference {
			found = true
		}
	}
	if !found {
		t.Errorf("out-of-scope finding was not carried: %v", result.Unresolved)
	}
}

func TestResolvedIssuesDropFromCarry(t *testing.T) {
	doc := mustParse(t, fixableFile)
	resolved := types.Issue{
		Code:     rules.CodeInvoiceTypeInvalid,
		Severity: types.SeverityError,
		Ref:      types.Ref{Document: "VD 2025/1", Field: "InvoiceType"},
	}
	result := mustApply(t, types.ModeSoft, doc, []types.Issue{resolved})

	for _, issue := range result.Unresolved {
		if issue.Code == rules.CodeInvoiceTypeInvalid {
			t.Errorf("fixed finding still carried: %v", issue)
		}
	}
}

func TestSoftNIFRepairPadsOnly(t *testing.T) {
	// A country-prefixed tax number needs character stripping, which is a
	// suggestion for the report, not a write-back. Only the digits-only
	// missing-zero case is repaired in place.
	in := strings.Replace(fixableFile,
		"<CustomerTaxID>12345678</CustomerTaxID>",
		"<CustomerTaxID>AO5417123456</CustomerTaxID>", 1)

	doc := mustParse(t, in)
	result := mustApply(t, types.ModeSoft, doc, nil)

	if got := fixesByCode(result.Fixes, CodeNIFZeroPadded); len(got) != 0 {
		t.Errorf("prefixed NIF repaired in the soft pass: %v", got)
	}
	nif := result.Version.Document.Customers[0].CustomerTaxID
	if nif != "AO5417123456" {
		t.Errorf("CustomerTaxID = %q, want untouched original", nif)
	}
}
