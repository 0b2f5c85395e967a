// =============================================================================
// SAF-T (AO) Validator - Document Model
// =============================================================================
//
// In-memory representation of one SAF-T (AO) submission. The model keeps two
// coordinated views of the file:
//
//   1. A generic element tree (Node) that preserves every element, its text
//      and the exact child order as parsed. Untouched content round-trips
//      verbatim through serialization.
//   2. Typed views (Header, Customer, Supplier, Product, Account,
//      TaxTableEntry, Invoice, Line, Transaction) that the rule engine
//      evaluates. Each typed struct holds a pointer to
//      its tree node so the auto-fix transformers mutate the tree and the
//      typed view from one place.
//
// The model is deliberately tolerant: a document that violates the XSD still
// parses into this structure so the business rules can run and report. Only
// input that breaks XML well-formedness is rejected (see parse.go).
//
// =============================================================================

package document

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Recognized SAF-T (AO) namespaces, newest first.
const (
	NamespaceAO101 = "urn:OECD:StandardAuditFile-Tax:AO_1.01_01"
	NamespaceAO100 = "urn:OECD:StandardAuditFile-Tax:AO_1.00_01"
)

// =============================================================================
// ELEMENT TREE
// =============================================================================

// Node is one XML element: local name, text content and ordered children.
// Mixed content is not a concern for SAF-T documents, so a node carries
// either text or children.
type Node struct {
	// Local is the element local name without namespace prefix.
	Local string

	// Text is the trimmed character data for leaf elements.
	Text string

	// Children are the child elements in document order.
	Children []*Node

	// Line and Column are the position of the start tag in the raw input.
	Line   int
	Column int
}

// Child returns the first direct child with the given local name, or nil.
func (n *Node) Child(local string) *Node {
	for _, c := range n.Children {
		if c.Local == local {
			return c
		}
	}
	return nil
}

// ChildText returns the trimmed text of the first direct child with the
// given local name, or the empty string.
func (n *Node) ChildText(local string) string {
	if c := n.Child(local); c != nil {
		return strings.TrimSpace(c.Text)
	}
	return ""
}

// ChildrenNamed returns every direct child with the given local name.
func (n *Node) ChildrenNamed(local string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Local == local {
			out = append(out, c)
		}
	}
	return out
}

// Find walks the given local-name path from this node and returns the first
// match, or nil. Find("MasterFiles", "TaxTable") behaves like the XPath
// ./MasterFiles/TaxTable.
func (n *Node) Find(path ...string) *Node {
	cur := n
	for _, local := range path {
		cur = cur.Child(local)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// SetChildText sets the text of the first child with the given local name,
// appending a new child when none exists. It returns the affected node.
func (n *Node) SetChildText(local, text string) *Node {
	c := n.Child(local)
	if c == nil {
		c = &Node{Local: local}
		n.Children = append(n.Children, c)
	}
	c.Text = text
	return c
}

// RemoveChild removes the given direct child, reporting whether it was found.
func (n *Node) RemoveChild(child *Node) bool {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			return true
		}
	}
	return false
}

// InsertAfter places child immediately after the sibling with the given
// local name, or appends when no such sibling exists.
func (n *Node) InsertAfter(afterLocal string, child *Node) {
	for i, c := range n.Children {
		if c.Local == afterLocal {
			n.Children = append(n.Children[:i+1], append([]*Node{child}, n.Children[i+1:]...)...)
			return
		}
	}
	n.Children = append(n.Children, child)
}

// Clone deep-copies the node and its subtree.
func (n *Node) Clone() *Node {
	out := &Node{Local: n.Local, Text: n.Text, Line: n.Line, Column: n.Column}
	if len(n.Children) > 0 {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// =============================================================================
// TYPED VIEWS
// =============================================================================

// Header carries the submission-level identifiers the rules check.
type Header struct {
	TaxRegistrationNumber string
	CompanyName           string
	FiscalYear            string
	CurrencyCode          string
	DateCreated           string
	TaxAccountingBasis    string

	node *Node
}

// Node returns the underlying Header element.
func (h *Header) Node() *Node { return h.node }

// Customer is one MasterFiles customer catalog entry.
type Customer struct {
	CustomerID    string
	CustomerTaxID string
	CompanyName   string

	node *Node
}

// Node returns the underlying Customer element.
func (c *Customer) Node() *Node { return c.node }

// Product is one MasterFiles product catalog entry.
type Product struct {
	ProductCode        string
	ProductDescription string

	node *Node
}

// Node returns the underlying Product element.
func (p *Product) Node() *Node { return p.node }

// Supplier is one MasterFiles supplier catalog entry.
type Supplier struct {
	SupplierID    string
	SupplierTaxID string
	CompanyName   string

	node *Node
}

// Node returns the underlying Supplier element.
func (s *Supplier) Node() *Node { return s.node }

// Account is one GeneralLedgerAccounts chart-of-accounts entry.
type Account struct {
	AccountID          string
	AccountDescription string

	node *Node
}

// Node returns the underlying Account element.
func (a *Account) Node() *Node { return a.node }

// TaxTableEntry is one MasterFiles tax table entry.
type TaxTableEntry struct {
	TaxType       string
	TaxCode       string
	Description   string
	TaxPercentage string

	node *Node
}

// Node returns the underlying TaxTableEntry element.
func (t *TaxTableEntry) Node() *Node { return t.node }

// Key identifies the entry for cross-reference checks: type/code/percentage.
func (t *TaxTableEntry) Key() string {
	return TaxKey(t.TaxType, t.TaxCode, t.TaxPercentage)
}

// TaxKey builds the tax-combination lookup key. The percentage component is
// compared numerically, so a table entry declaring "14.00" matches a line
// writing "14". Unreadable percentages keep their raw text.
func TaxKey(taxType, taxCode, taxPercentage string) string {
	pct := strings.TrimSpace(taxPercentage)
	if v, err := decimal.NewFromString(pct); err == nil {
		pct = v.String()
	}
	return taxType + "/" + taxCode + "/" + pct
}

// Line is one line of a source document. The sub-element order inside the
// node is schema-mandated and must survive any rewrite untouched unless a
// transformer explicitly reorders it.
type Line struct {
	LineNumber   int
	ProductCode  string
	Quantity     string
	UnitPrice    string
	DebitAmount  string
	CreditAmount string

	node *Node
}

// Node returns the underlying Line element.
func (l *Line) Node() *Node { return l.node }

// Tax returns the Tax block of the line, or nil.
func (l *Line) Tax() *Node { return l.node.Child("Tax") }

// Invoice is one SourceDocuments sales invoice.
type Invoice struct {
	InvoiceNo       string
	InvoiceType     string
	InvoiceDate     string
	SystemEntryDate string
	Hash            string
	CustomerID      string
	Lines           []*Line

	// Totals as stated in the file, raw text so malformed values survive
	// into rule evaluation.
	NetTotal   string
	TaxPayable string
	GrossTotal string

	node *Node
}

// Node returns the underlying Invoice element.
func (inv *Invoice) Node() *Node { return inv.node }

// DocumentTotals returns the totals block, or nil when missing.
func (inv *Invoice) DocumentTotals() *Node { return inv.node.Child("DocumentTotals") }

// LedgerLine is one debit or credit line of a ledger transaction. CustomerID
// and SupplierID are optional counterparty references; Amount is the raw
// DebitAmount or CreditAmount text, whichever the line carries.
type LedgerLine struct {
	RecordID   string
	AccountID  string
	CustomerID string
	SupplierID string
	Amount     string

	node *Node
}

// Node returns the underlying line element.
func (l *LedgerLine) Node() *Node { return l.node }

// Transaction is one GeneralLedgerEntries journal transaction with its
// debit and credit lines in document order.
type Transaction struct {
	TransactionID   string
	JournalID       string
	Period          string
	TransactionDate string
	Lines           []*LedgerLine

	node *Node
}

// Node returns the underlying Transaction element.
func (t *Transaction) Node() *Node { return t.node }

// =============================================================================
// DOCUMENT AGGREGATE
// =============================================================================

// Document is the root aggregate for one submission.
type Document struct {
	// Namespace is the detected SAF-T (AO) namespace URI.
	Namespace string

	// Root is the AuditFile element tree.
	Root *Node

	Header *Header

	// MasterFiles catalogs, insertion-ordered with index maps for lookups.
	Customers     []*Customer
	Suppliers     []*Supplier
	Products      []*Product
	Accounts      []*Account
	TaxTable      []*TaxTableEntry
	customerIndex map[string]*Customer
	supplierIndex map[string]*Supplier
	productIndex  map[string]*Product
	accountIndex  map[string]*Account
	taxTableIndex map[string]*TaxTableEntry

	// Transactions are the GeneralLedgerEntries journal transactions in
	// document order, across journals.
	Transactions []*Transaction

	// Invoices are the SourceDocuments sales invoices in document order.
	Invoices []*Invoice
}

// CustomerByID looks up a MasterFiles customer.
func (d *Document) CustomerByID(id string) (*Customer, bool) {
	c, ok := d.customerIndex[id]
	return c, ok
}

// SupplierByID looks up a MasterFiles supplier.
func (d *Document) SupplierByID(id string) (*Supplier, bool) {
	s, ok := d.supplierIndex[id]
	return s, ok
}

// ProductByCode looks up a MasterFiles product.
func (d *Document) ProductByCode(code string) (*Product, bool) {
	p, ok := d.productIndex[code]
	return p, ok
}

// AccountByID looks up a chart-of-accounts entry.
func (d *Document) AccountByID(id string) (*Account, bool) {
	a, ok := d.accountIndex[id]
	return a, ok
}

// TaxTableEntryByKey looks up a tax table entry by type/code/percentage.
func (d *Document) TaxTableEntryByKey(key string) (*TaxTableEntry, bool) {
	t, ok := d.taxTableIndex[key]
	return t, ok
}

// Clone deep-copies the document: the element tree is cloned and the typed
// views are rebuilt against the new tree. The transformer works on clones
// only, so the caller's original is mechanically immutable.
func (d *Document) Clone() *Document {
	out := &Document{Namespace: d.Namespace, Root: d.Root.Clone()}
	out.buildViews()
	return out
}

// Refresh rebuilds the typed views after direct mutations of the element
// tree. Node pointers held by callers stay valid; view structs are replaced.
func (d *Document) Refresh() {
	d.buildViews()
}
