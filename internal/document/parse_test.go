package document

import (
	"errors"
	"strings"
	"testing"
)

const sampleAuditFile = `<?xml version="1.0" encoding="UTF-8"?>
<AuditFile xmlns="urn:OECD:StandardAuditFile-Tax:AO_1.01_01">
  <Header>
    <TaxRegistrationNumber>5417123456</TaxRegistrationNumber>
    <CompanyName>Empresa Exemplo</CompanyName>
    <FiscalYear>2025</FiscalYear>
    <DateCreated>2025-02-01</DateCreated>
    <CurrencyCode>AOA</CurrencyCode>
  </Header>
  <MasterFiles>
    <Customer>
      <CustomerID>C001</CustomerID>
      <CustomerTaxID>541712345</CustomerTaxID>
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
        <TaxPercentage>14</TaxPercentage>
      </TaxTableEntry>
    </TaxTable>
  </MasterFiles>
  <SourceDocuments>
    <SalesInvoices>
      <Invoice>
        <InvoiceNo>FT 2025/1</InvoiceNo>
        <Hash>abc123</Hash>
        <InvoiceDate>2025-01-10</InvoiceDate>
        <InvoiceType>FT</InvoiceType>
        <SystemEntryDate>2025-01-10T09:00:00</SystemEntryDate>
        <CustomerID>C001</CustomerID>
        <Line>
          <LineNumber>1</LineNumber>
          <ProductCode>P001</ProductCode>
          <Quantity>2</Quantity>
          <UnitPrice>50.00</UnitPrice>
          <CreditAmount>100.00</CreditAmount>
          <Tax>
            <TaxType>IVA</TaxType>
            <TaxCode>NOR</TaxCode>
            <TaxCountryRegion>AO</TaxCountryRegion>
            <TaxPercentage>14</TaxPercentage>
          </Tax>
        </Line>
        <DocumentTotals>
          <TaxPayable>14.00</TaxPayable>
          <NetTotal>100.00</NetTotal>
          <GrossTotal>114.00</GrossTotal>
        </DocumentTotals>
      </Invoice>
    </SalesInvoices>
  </SourceDocuments>
</AuditFile>`

func TestParseBuildsViews(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleAuditFile))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if doc.Namespace != NamespaceAO101 {
		t.Errorf("Namespace = %q, want %q", doc.Namespace, NamespaceAO101)
	}
	if doc.Header == nil || doc.Header.TaxRegistrationNumber != "5417123456" {
		t.Fatalf("Header not populated: %+v", doc.Header)
	}
	if len(doc.Customers) != 1 || doc.Customers[0].CustomerID != "C001" {
		t.Fatalf("Customers = %+v", doc.Customers)
	}
	if _, ok := doc.CustomerByID("C001"); !ok {
		t.Error("CustomerByID(C001) not found")
	}
	if _, ok := doc.TaxTableEntryByKey("IVA/NOR/14"); !ok {
		t.Error("TaxTableEntryByKey(IVA/NOR/14) not found")
	}

	if len(doc.Invoices) != 1 {
		t.Fatalf("Invoices = %d, want 1", len(doc.Invoices))
	}
	inv := doc.Invoices[0]
	if inv.InvoiceNo != "FT 2025/1" || inv.Hash != "abc123" || inv.GrossTotal != "114.00" {
		t.Errorf("invoice view = %+v", inv)
	}
	if len(inv.Lines) != 1 || inv.Lines[0].LineNumber != 1 {
		t.Fatalf("Lines = %+v", inv.Lines)
	}
	if inv.Lines[0].Tax() == nil {
		t.Error("line Tax block not reachable")
	}
}

func TestParseRecordsPositions(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleAuditFile))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	header := doc.Root.Child("Header")
	if header == nil || header.Line == 0 {
		t.Errorf("Header position not recorded: %+v", header)
	}
}

func TestParseRejectsUnknownNamespace(t *testing.T) {
	in := `<AuditFile xmlns="urn:example:other"><Header/></AuditFile>`
	if _, err := Parse(strings.NewReader(in)); !errors.Is(err, ErrUnknownNamespace) {
		t.Errorf("Parse error = %v, want ErrUnknownNamespace", err)
	}
}

func TestParseRejectsMalformedXML(t *testing.T) {
	in := `<AuditFile xmlns="urn:OECD:StandardAuditFile-Tax:AO_1.01_01"><Header>`
	if _, err := Parse(strings.NewReader(in)); !errors.Is(err, ErrUnparsableDocument) {
		t.Errorf("Parse error = %v, want ErrUnparsableDocument", err)
	}
}

func TestParseToleratesSchemaInvalidContent(t *testing.T) {
	// Wrong child order and missing elements parse fine; the schema
	// validator owns those findings.
	in := `<AuditFile xmlns="urn:OECD:StandardAuditFile-Tax:AO_1.01_01">
  <SourceDocuments><SalesInvoices><Invoice>
    <InvoiceType>FT</InvoiceType>
    <InvoiceNo>FT 1</InvoiceNo>
  </Invoice></SalesInvoices></SourceDocuments>
</AuditFile>`
	doc, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Header != nil {
		t.Error("expected nil Header")
	}
	if len(doc.Invoices) != 1 || doc.Invoices[0].InvoiceNo != "FT 1" {
		t.Errorf("Invoices = %+v", doc.Invoices)
	}
}

func TestCloneIsolatesMutations(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleAuditFile))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	clone := doc.Clone()
	clone.Invoices[0].Node().SetChildText("InvoiceType", "FR")
	clone.Refresh()

	if clone.Invoices[0].InvoiceType != "FR" {
		t.Errorf("clone InvoiceType = %q, want FR", clone.Invoices[0].InvoiceType)
	}
	if doc.Invoices[0].InvoiceType != "FT" {
		t.Errorf("original InvoiceType = %q, mutation leaked through clone", doc.Invoices[0].InvoiceType)
	}
	if doc.Invoices[0].Node().ChildText("InvoiceType") != "FT" {
		t.Error("original tree mutated through clone")
	}
}

const ledgerAuditFile = `<?xml version="1.0" encoding="UTF-8"?>
<AuditFile xmlns="urn:OECD:StandardAuditFile-Tax:AO_1.01_01">
  <Header>
    <TaxRegistrationNumber>5417123456</TaxRegistrationNumber>
    <FiscalYear>2025</FiscalYear>
  </Header>
  <MasterFiles>
    <GeneralLedgerAccounts>
      <Account>
        <AccountID>11</AccountID>
        <AccountDescription>Caixa</AccountDescription>
      </Account>
    </GeneralLedgerAccounts>
    <Supplier>
      <SupplierID>S001</SupplierID>
      <SupplierTaxID>541712345</SupplierTaxID>
      <CompanyName>Fornecedor Um</CompanyName>
    </Supplier>
  </MasterFiles>
  <GeneralLedgerEntries>
    <Journal>
      <JournalID>J1</JournalID>
      <Transaction>
        <TransactionID>2025-01-10 J1 1</TransactionID>
        <Period>1</Period>
        <TransactionDate>2025-01-10</TransactionDate>
        <Lines>
          <DebitLine>
            <RecordID>1</RecordID>
            <AccountID>11</AccountID>
            <DebitAmount>114.00</DebitAmount>
          </DebitLine>
          <CreditLine>
            <RecordID>2</RecordID>
            <AccountID>71</AccountID>
            <SupplierID>S001</SupplierID>
            <CreditAmount>114.00</CreditAmount>
          </CreditLine>
        </Lines>
      </Transaction>
    </Journal>
  </GeneralLedgerEntries>
</AuditFile>`

func TestParseBuildsLedgerViews(t *testing.T) {
	doc, err := Parse(strings.NewReader(ledgerAuditFile))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(doc.Suppliers) != 1 || doc.Suppliers[0].SupplierTaxID != "541712345" {
		t.Errorf("Suppliers = %+v", doc.Suppliers)
	}
	if _, ok := doc.SupplierByID("S001"); !ok {
		t.Error("SupplierByID(S001) not found")
	}
	if len(doc.Accounts) != 1 || doc.Accounts[0].AccountDescription != "Caixa" {
		t.Errorf("Accounts = %+v", doc.Accounts)
	}
	if _, ok := doc.AccountByID("11"); !ok {
		t.Error("AccountByID(11) not found")
	}

	if len(doc.Transactions) != 1 {
		t.Fatalf("Transactions = %d, want 1", len(doc.Transactions))
	}
	tr := doc.Transactions[0]
	if tr.TransactionID != "2025-01-10 J1 1" || tr.JournalID != "J1" {
		t.Errorf("transaction = %+v", tr)
	}
	if len(tr.Lines) != 2 {
		t.Fatalf("transaction lines = %d, want 2", len(tr.Lines))
	}
	if tr.Lines[0].AccountID != "11" || tr.Lines[0].Amount != "114.00" {
		t.Errorf("debit line = %+v", tr.Lines[0])
	}
	if tr.Lines[1].SupplierID != "S001" || tr.Lines[1].Amount != "114.00" {
		t.Errorf("credit line = %+v", tr.Lines[1])
	}
}

func TestTaxKeyNormalizesPercentage(t *testing.T) {
	tests := []struct {
		pct  string
		want string
	}{
		{"14", "IVA/NOR/14"},
		{"14.00", "IVA/NOR/14"},
		{"14.0", "IVA/NOR/14"},
		{" 14 ", "IVA/NOR/14"},
		{"5.5", "IVA/NOR/5.5"},
		{"garbled", "IVA/NOR/garbled"},
		{"", "IVA/NOR/"},
	}
	for _, tt := range tests {
		if got := TaxKey("IVA", "NOR", tt.pct); got != tt.want {
			t.Errorf("TaxKey(IVA, NOR, %q) = %q, want %q", tt.pct, got, tt.want)
		}
	}
}
