// =============================================================================
// SAF-T (AO) Validator - WorkDocument Tag Balance Repair
// =============================================================================
//
// Some upstream exporters emit WorkingDocuments sections with duplicated
// closing tags or unclosed WorkDocument blocks, which makes the whole file
// unparsable. This raw-text repair runs before parsing: duplicate closers
// are dropped, a missing closer is injected before the next opener, and
// anything still open at the end is closed before its enclosing section.
//
// =============================================================================

package document

import (
	"regexp"
	"strings"
)

var workDocumentTag = regexp.MustCompile(`<(/?)WorkDocument\b[^>]*>`)

// RepairWorkDocumentBalance returns text with WorkDocument open/close tags
// balanced, reporting whether any change was made.
func RepairWorkDocumentBalance(text string) (string, bool) {
	var (
		out     strings.Builder
		stack   []string
		lastEnd int
		changed bool
	)

	for _, loc := range workDocumentTag.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		out.WriteString(text[lastEnd:start])

		tag := text[start:end]
		closing := loc[3] > loc[2] // the "/" capture is non-empty

		if closing {
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
				out.WriteString(tag)
			} else {
				// Orphan closer, drop it.
				changed = true
			}
		} else {
			for len(stack) > 0 {
				indent := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				out.WriteString("</WorkDocument>\n" + indent)
				changed = true
			}
			stack = append(stack, detectIndent(text, start))
			out.WriteString(tag)
		}
		lastEnd = end
	}

	tail := text[lastEnd:]
	if len(stack) > 0 {
		changed = true
		var closers strings.Builder
		for len(stack) > 0 {
			indent := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			closers.WriteString("</WorkDocument>\n" + indent)
		}
		// Close before the section end so the injected tags wrap the
		// dangling document's remaining content.
		insertAt := strings.Index(tail, "</WorkingDocuments>")
		if insertAt < 0 {
			insertAt = strings.Index(tail, "</SourceDocuments>")
		}
		if insertAt < 0 {
			insertAt = len(tail)
		}
		tail = tail[:insertAt] + closers.String() + tail[insertAt:]
	}
	out.WriteString(tail)

	return out.String(), changed
}

// detectIndent returns the whitespace preceding pos on its line, or the
// empty string when the tag does not start a line.
func detectIndent(text string, pos int) string {
	lineStart := strings.LastIndexByte(text[:pos], '\n') + 1
	indent := text[lineStart:pos]
	if strings.TrimSpace(indent) != "" {
		return ""
	}
	return indent
}
