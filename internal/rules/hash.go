// =============================================================================
// SAF-T (AO) Validator - Document Hash Chain
// =============================================================================
//
// Each source document carries a hash chaining to the previous document in
// the series. The exact primitive (fields, encoding, signature) is defined
// by regulator specification outside this repository, so the engine treats
// it as pluggable: the rule only recomputes and compares when a Hasher is
// configured, and otherwise checks chain presence.
//
// ChainSHA256 is the reference implementation used by tests and by callers
// whose files carry the unsigned chain.
//
// =============================================================================

package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/kwanza-dev/saft-ao-validator/internal/document"
)

// Hasher recomputes the expected chained hash for a source document given
// the previous document's stored hash ("" for the first in the series).
type Hasher interface {
	Chain(prevHash string, inv *document.Invoice) string
}

// ChainSHA256 hashes the canonical field sequence
// InvoiceDate;SystemEntryDate;InvoiceNo;GrossTotal;prevHash with SHA-256,
// hex encoded.
type ChainSHA256 struct{}

// Chain implements Hasher.
func (ChainSHA256) Chain(prevHash string, inv *document.Invoice) string {
	canonical := strings.Join([]string{
		inv.InvoiceDate,
		inv.SystemEntryDate,
		inv.InvoiceNo,
		inv.GrossTotal,
		prevHash,
	}, ";")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
