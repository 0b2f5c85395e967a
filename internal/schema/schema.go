// =============================================================================
// SAF-T (AO) Validator - XSD Schema Validation
// =============================================================================
//
// Thin wrapper around github.com/jacoelho/xsd that turns structural schema
// violations into Issues. Validation failures are never returned as errors:
// the only error path is failing to load or compile the schema resource
// itself. The validator never mutates the document it checks.
//
// The schema file is caller-supplied (the engine does not pick or download
// schema versions); the official resource is SAFTAO1.01_01.xsd from the AGT.
//
// =============================================================================

package schema

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jacoelho/xsd"
	xsderrors "github.com/jacoelho/xsd/errors"

	"github.com/kwanza-dev/saft-ao-validator/internal/types"
)

// ErrSchemaResource marks a schema file that could not be loaded or compiled.
var ErrSchemaResource = errors.New("schema resource")

// IssueCode is the single code carried by all structural findings; the
// W3C cvc code from the underlying validator is preserved in the message.
const IssueCode = "XSD"

// Validator validates documents against one compiled XSD.
type Validator struct {
	schema *xsd.Schema
}

// Load compiles the schema at path. Fails with ErrSchemaResource when the
// file is missing or not a valid schema.
func Load(path string) (*Validator, error) {
	s, err := xsd.CompileFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaResource, err)
	}
	return &Validator{schema: s}, nil
}

// Validate checks raw XML against the schema and returns one ERROR Issue per
// violation, in the order the validator reports them. A conforming document
// yields a nil slice.
func (v *Validator) Validate(r io.Reader) []types.Issue {
	err := v.schema.Validate(r)
	if err == nil {
		return nil
	}

	violations, ok := xsderrors.AsValidations(err)
	if !ok {
		// Not a validation list: the reader itself failed. Surface it as a
		// single structural finding so the run still renders completely.
		return []types.Issue{{
			Code:     IssueCode,
			Severity: types.SeverityError,
			Message:  err.Error(),
		}}
	}

	issues := make([]types.Issue, 0, len(violations))
	for _, violation := range violations {
		message := violation.Message
		if violation.Code != "" {
			message = fmt.Sprintf("[%s] %s", violation.Code, violation.Message)
		}
		issues = append(issues, types.Issue{
			Code:     IssueCode,
			Severity: types.SeverityError,
			Ref: types.Ref{
				XPath:        violation.Path,
				Field:        lastPathSegment(violation.Path),
				SourceLine:   violation.Line,
				SourceColumn: violation.Column,
			},
			Message: message,
		})
	}
	return issues
}

// ValidateString is a convenience for re-checking serialized fix output.
func (v *Validator) ValidateString(xml string) []types.Issue {
	return v.Validate(strings.NewReader(xml))
}

func lastPathSegment(path string) string {
	if path == "" {
		return ""
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	last := segments[len(segments)-1]
	// Strip positional predicates like Line[2].
	if i := strings.IndexByte(last, '['); i > 0 {
		last = last[:i]
	}
	return last
}
