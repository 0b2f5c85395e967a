// =============================================================================
// SAF-T (AO) Validator - Document Serialization
// =============================================================================
//
// Writes the element tree back to XML. The writer emits the standard
// declaration, re-declares the detected namespace on the root element and
// indents with two spaces. Child order is whatever the tree carries, which
// is exactly why the transformers reorder the tree rather than the output.
//
// =============================================================================

package document

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const indentUnit = "  "

// Write serializes the document to w.
func Write(doc *Document, w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(xml.Header); err != nil {
		return fmt.Errorf("write xml declaration: %w", err)
	}
	if err := writeNode(bw, doc.Root, doc.Namespace, 0); err != nil {
		return err
	}
	return bw.Flush()
}

// Marshal serializes the document to a string, mostly for tests and for the
// post-fix schema pass.
func Marshal(doc *Document) (string, error) {
	var sb strings.Builder
	if err := Write(doc, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func writeNode(w *bufio.Writer, n *Node, ns string, depth int) error {
	indent := strings.Repeat(indentUnit, depth)

	open := n.Local
	if depth == 0 && ns != "" {
		open = fmt.Sprintf("%s xmlns=%q", n.Local, ns)
	}

	if len(n.Children) == 0 {
		if n.Text == "" {
			_, err := fmt.Fprintf(w, "%s<%s/>\n", indent, open)
			return err
		}
		if _, err := fmt.Fprintf(w, "%s<%s>", indent, open); err != nil {
			return err
		}
		if err := xml.EscapeText(w, []byte(n.Text)); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "</%s>\n", n.Local)
		return err
	}

	if _, err := fmt.Fprintf(w, "%s<%s>\n", indent, open); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := writeNode(w, c, ns, depth+1); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s</%s>\n", indent, n.Local)
	return err
}
