// =============================================================================
// SAF-T (AO) Validator - Streaming Parse
// =============================================================================
//
// Builds the Document aggregate from raw XML. Parsing is token-streamed via
// encoding/xml so that peak memory stays proportional to the element tree,
// never to intermediate token buffers, and positions come straight from the
// decoder.
//
// The parser accepts schema-invalid documents: wrong child order, missing
// required elements or bad text values all parse fine and are left for the
// schema validator and rule engine to report. Only input that is not
// well-formed XML fails, with ErrUnparsableDocument.
//
// =============================================================================

package document

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrUnparsableDocument marks input that is not well-formed XML.
var ErrUnparsableDocument = errors.New("unparsable document")

// ErrUnknownNamespace marks a root element outside the recognized
// SAF-T (AO) namespaces.
var ErrUnknownNamespace = errors.New("unknown SAF-T namespace")

// recognizedNamespaces in preference order.
var recognizedNamespaces = []string{NamespaceAO101, NamespaceAO100}

// =============================================================================
// NAMESPACE DETECTION
// =============================================================================

// DetectNamespace inspects the root element of raw XML and returns the
// SAF-T (AO) namespace URI it declares. Pure function of its input.
func DetectNamespace(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnparsableDocument, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, ns := range recognizedNamespaces {
			if start.Name.Space == ns {
				return ns, nil
			}
		}
		return "", fmt.Errorf("%w: %q", ErrUnknownNamespace, start.Name.Space)
	}
}

// =============================================================================
// PARSE
// =============================================================================

// Parse reads raw XML into a Document. The namespace is resolved from the
// root element; the element tree and the typed views are built in one pass.
func Parse(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)

	var (
		root  *Node
		stack []*Node
		ns    string
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparsableDocument, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if root == nil {
				found := false
				for _, candidate := range recognizedNamespaces {
					if t.Name.Space == candidate {
						ns = candidate
						found = true
						break
					}
				}
				if !found {
					return nil, fmt.Errorf("%w: %q", ErrUnknownNamespace, t.Name.Space)
				}
			}
			line, col := dec.InputPos()
			node := &Node{Local: t.Name.Local, Line: line, Column: col}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			} else {
				root = node
			}
			stack = append(stack, node)

		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}

		case xml.CharData:
			if len(stack) > 0 {
				cur := stack[len(stack)-1]
				// Leaf text only; whitespace between elements is ignored.
				if text := strings.TrimSpace(string(t)); text != "" {
					cur.Text += text
				}
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrUnparsableDocument)
	}

	doc := &Document{Namespace: ns, Root: root}
	doc.buildViews()
	return doc, nil
}

// =============================================================================
// TYPED VIEW CONSTRUCTION
// =============================================================================

// buildViews populates the typed views from the element tree. Called after
// parse and after every clone, so views never dangle into an old tree.
func (d *Document) buildViews() {
	d.Customers = nil
	d.Suppliers = nil
	d.Products = nil
	d.Accounts = nil
	d.TaxTable = nil
	d.Transactions = nil
	d.Invoices = nil
	d.customerIndex = make(map[string]*Customer)
	d.supplierIndex = make(map[string]*Supplier)
	d.productIndex = make(map[string]*Product)
	d.accountIndex = make(map[string]*Account)
	d.taxTableIndex = make(map[string]*TaxTableEntry)

	if h := d.Root.Child("Header"); h != nil {
		d.Header = &Header{
			TaxRegistrationNumber: h.ChildText("TaxRegistrationNumber"),
			CompanyName:           h.ChildText("CompanyName"),
			FiscalYear:            h.ChildText("FiscalYear"),
			CurrencyCode:          h.ChildText("CurrencyCode"),
			DateCreated:           h.ChildText("DateCreated"),
			TaxAccountingBasis:    h.ChildText("TaxAccountingBasis"),
			node:                  h,
		}
	} else {
		d.Header = nil
	}

	if mf := d.Root.Child("MasterFiles"); mf != nil {
		for _, n := range mf.ChildrenNamed("Customer") {
			c := &Customer{
				CustomerID:    n.ChildText("CustomerID"),
				CustomerTaxID: n.ChildText("CustomerTaxID"),
				CompanyName:   n.ChildText("CompanyName"),
				node:          n,
			}
			d.Customers = append(d.Customers, c)
			if c.CustomerID != "" {
				if _, exists := d.customerIndex[c.CustomerID]; !exists {
					d.customerIndex[c.CustomerID] = c
				}
			}
		}
		for _, n := range mf.ChildrenNamed("Supplier") {
			s := &Supplier{
				SupplierID:    n.ChildText("SupplierID"),
				SupplierTaxID: n.ChildText("SupplierTaxID"),
				CompanyName:   n.ChildText("CompanyName"),
				node:          n,
			}
			d.Suppliers = append(d.Suppliers, s)
			if s.SupplierID != "" {
				if _, exists := d.supplierIndex[s.SupplierID]; !exists {
					d.supplierIndex[s.SupplierID] = s
				}
			}
		}
		if gla := mf.Child("GeneralLedgerAccounts"); gla != nil {
			for _, n := range gla.ChildrenNamed("Account") {
				a := &Account{
					AccountID:          n.ChildText("AccountID"),
					AccountDescription: n.ChildText("AccountDescription"),
					node:               n,
				}
				d.Accounts = append(d.Accounts, a)
				if a.AccountID != "" {
					if _, exists := d.accountIndex[a.AccountID]; !exists {
						d.accountIndex[a.AccountID] = a
					}
				}
			}
		}
		for _, n := range mf.ChildrenNamed("Product") {
			p := &Product{
				ProductCode:        n.ChildText("ProductCode"),
				ProductDescription: n.ChildText("ProductDescription"),
				node:               n,
			}
			d.Products = append(d.Products, p)
			if p.ProductCode != "" {
				if _, exists := d.productIndex[p.ProductCode]; !exists {
					d.productIndex[p.ProductCode] = p
				}
			}
		}
		if tt := mf.Child("TaxTable"); tt != nil {
			for _, n := range tt.ChildrenNamed("TaxTableEntry") {
				e := &TaxTableEntry{
					TaxType:       n.ChildText("TaxType"),
					TaxCode:       n.ChildText("TaxCode"),
					Description:   n.ChildText("Description"),
					TaxPercentage: n.ChildText("TaxPercentage"),
					node:          n,
				}
				d.TaxTable = append(d.TaxTable, e)
				if _, exists := d.taxTableIndex[e.Key()]; !exists {
					d.taxTableIndex[e.Key()] = e
				}
			}
		}
	}

	if gle := d.Root.Child("GeneralLedgerEntries"); gle != nil {
		for _, j := range gle.ChildrenNamed("Journal") {
			journalID := j.ChildText("JournalID")
			for _, n := range j.ChildrenNamed("Transaction") {
				tr := &Transaction{
					TransactionID:   n.ChildText("TransactionID"),
					JournalID:       journalID,
					Period:          n.ChildText("Period"),
					TransactionDate: n.ChildText("TransactionDate"),
					node:            n,
				}
				if lines := n.Child("Lines"); lines != nil {
					for _, ln := range lines.Children {
						if ln.Local != "DebitLine" && ln.Local != "CreditLine" {
							continue
						}
						amt := ln.ChildText("DebitAmount")
						if amt == "" {
							amt = ln.ChildText("CreditAmount")
						}
						tr.Lines = append(tr.Lines, &LedgerLine{
							RecordID:   ln.ChildText("RecordID"),
							AccountID:  ln.ChildText("AccountID"),
							CustomerID: ln.ChildText("CustomerID"),
							SupplierID: ln.ChildText("SupplierID"),
							Amount:     amt,
							node:       ln,
						})
					}
				}
				d.Transactions = append(d.Transactions, tr)
			}
		}
	}

	if si := d.Root.Find("SourceDocuments", "SalesInvoices"); si != nil {
		for _, n := range si.ChildrenNamed("Invoice") {
			inv := &Invoice{
				InvoiceNo:       n.ChildText("InvoiceNo"),
				InvoiceType:     n.ChildText("InvoiceType"),
				InvoiceDate:     n.ChildText("InvoiceDate"),
				SystemEntryDate: n.ChildText("SystemEntryDate"),
				Hash:            n.ChildText("Hash"),
				node:            n,
			}
			if cid := n.ChildText("CustomerID"); cid != "" {
				inv.CustomerID = cid
			}
			if totals := n.Child("DocumentTotals"); totals != nil {
				inv.NetTotal = totals.ChildText("NetTotal")
				inv.TaxPayable = totals.ChildText("TaxPayable")
				inv.GrossTotal = totals.ChildText("GrossTotal")
			}
			for _, ln := range n.ChildrenNamed("Line") {
				line := &Line{
					ProductCode:  ln.ChildText("ProductCode"),
					Quantity:     ln.ChildText("Quantity"),
					UnitPrice:    ln.ChildText("UnitPrice"),
					DebitAmount:  ln.ChildText("DebitAmount"),
					CreditAmount: ln.ChildText("CreditAmount"),
					node:         ln,
				}
				if v, err := strconv.Atoi(ln.ChildText("LineNumber")); err == nil {
					line.LineNumber = v
				}
				inv.Lines = append(inv.Lines, line)
			}
			d.Invoices = append(d.Invoices, inv)
		}
	}
}
