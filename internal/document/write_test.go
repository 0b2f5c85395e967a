package document

import (
	"strings"
	"testing"
)

func TestMarshalRoundtrip(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleAuditFile))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	out, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	reparsed, err := Parse(strings.NewReader(out))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if reparsed.Namespace != doc.Namespace {
		t.Errorf("namespace = %q, want %q", reparsed.Namespace, doc.Namespace)
	}
	if len(reparsed.Invoices) != len(doc.Invoices) {
		t.Fatalf("invoices = %d, want %d", len(reparsed.Invoices), len(doc.Invoices))
	}
	if reparsed.Invoices[0].GrossTotal != "114.00" {
		t.Errorf("GrossTotal = %q after roundtrip", reparsed.Invoices[0].GrossTotal)
	}
}

func TestMarshalPreservesChildOrder(t *testing.T) {
	// DocumentTotals order here is deliberately schema-invalid; the writer
	// must not "fix" it.
	in := `<AuditFile xmlns="urn:OECD:StandardAuditFile-Tax:AO_1.01_01">
  <SourceDocuments><SalesInvoices><Invoice>
    <InvoiceNo>FT 1</InvoiceNo>
    <DocumentTotals>
      <GrossTotal>114.00</GrossTotal>
      <NetTotal>100.00</NetTotal>
      <TaxPayable>14.00</TaxPayable>
    </DocumentTotals>
  </Invoice></SalesInvoices></SourceDocuments>
</AuditFile>`
	doc, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	gross := strings.Index(out, "<GrossTotal>")
	net := strings.Index(out, "<NetTotal>")
	tax := strings.Index(out, "<TaxPayable>")
	if !(gross < net && net < tax) {
		t.Errorf("child order changed by serialization:\n%s", out)
	}
}

func TestMarshalEscapesText(t *testing.T) {
	in := `<AuditFile xmlns="urn:OECD:StandardAuditFile-Tax:AO_1.01_01">
  <Header><CompanyName>Sousa &amp; Filhos &lt;Lda&gt;</CompanyName></Header>
</AuditFile>`
	doc, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(out, "Sousa &amp; Filhos") {
		t.Errorf("ampersand not escaped:\n%s", out)
	}
	reparsed, err := Parse(strings.NewReader(out))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if got := reparsed.Header.CompanyName; got != "Sousa & Filhos <Lda>" {
		t.Errorf("CompanyName after roundtrip = %q", got)
	}
}
