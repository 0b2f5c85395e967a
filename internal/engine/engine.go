// =============================================================================
// SAF-T (AO) Validator - Run Orchestration
// =============================================================================
//
// Engine ties the layers together for one input file: raw-text repair,
// schema validation, parse, rule evaluation, and optionally a fix pass with
// post-fix re-validation. The engine holds no per-file state; every call
// gets a fresh run identifier and streams its findings to the configured
// sinks.
//
// =============================================================================

package engine

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kwanza-dev/saft-ao-validator/internal/autofix"
	"github.com/kwanza-dev/saft-ao-validator/internal/config"
	"github.com/kwanza-dev/saft-ao-validator/internal/document"
	"github.com/kwanza-dev/saft-ao-validator/internal/report"
	"github.com/kwanza-dev/saft-ao-validator/internal/rules"
	"github.com/kwanza-dev/saft-ao-validator/internal/schema"
	"github.com/kwanza-dev/saft-ao-validator/internal/types"
)

// ErrEngineSetup marks a configuration problem detected while building the
// engine, before any input is read.
var ErrEngineSetup = errors.New("engine setup")

// Engine runs validations and fix passes. Safe for sequential reuse across
// files; construction cost (schema compilation) is paid once.
type Engine struct {
	settings *config.Settings
	schema   *schema.Validator
	rules    *rules.Engine
	sink     report.Sink
	logger   *logrus.Logger
	hasher   rules.Hasher
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink attaches a report sink; findings and fixes stream to it as runs
// produce them.
func WithSink(sink report.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

// SetSink replaces the report sink between runs. Callers processing many
// files reuse one engine (schema compilation is the expensive part) and
// attach a fresh per-file sink before each run.
func (e *Engine) SetSink(sink report.Sink) { e.sink = sink }

// WithLogger overrides the logrus standard logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithHasher enables full hash-chain recomputation using the given
// implementation. Without it the chain check verifies presence only.
func WithHasher(h rules.Hasher) Option {
	return func(e *Engine) { e.hasher = h }
}

// New builds an engine from settings: the schema is compiled from
// Settings.SchemaPath and the rule catalog loaded from Settings.RulesPath,
// falling back to the built-in catalog when no path is set.
func New(settings *config.Settings, opts ...Option) (*Engine, error) {
	if settings == nil {
		def := config.DefaultSettings()
		settings = &def
	}

	e := &Engine{settings: settings, logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(e)
	}

	if settings.SchemaPath != "" {
		validator, err := schema.Load(settings.SchemaPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEngineSetup, err)
		}
		e.schema = validator
	} else {
		e.logger.Warn("no schema path configured, structural validation disabled")
	}

	catalog := config.DefaultCatalog()
	if settings.RulesPath != "" {
		loaded, err := config.LoadCatalog(settings.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEngineSetup, err)
		}
		catalog = loaded
	}
	e.rules = rules.New(catalog, rules.WithHasher(e.hasher))

	return e, nil
}

// =============================================================================
// VALIDATE
// =============================================================================

// ValidationResult is the outcome of one validation run.
type ValidationResult struct {
	// RunID uniquely identifies this run in reports and logs.
	RunID string

	// Valid reports whether the file produced no ERROR-severity findings,
	// schema findings included.
	Valid bool

	// Repaired reports whether the raw text needed WorkDocument tag
	// balancing before it would parse.
	Repaired bool

	// Issues lists every finding, schema first, then rule findings in
	// evaluation order.
	Issues []types.Issue

	Summary types.Summary
}

// Validate runs schema validation and the rule catalog over one input.
// The input is never modified. An input that cannot be parsed at all is an
// error, not a finding. An empty runID gets a generated one.
func (e *Engine) Validate(r io.Reader, runID string) (*ValidationResult, error) {
	if runID == "" {
		runID = uuid.NewString()
	}

	text, repaired, err := e.readAndRepair(r)
	if err != nil {
		return nil, err
	}

	issues := e.validateSchema(text)

	doc, err := document.Parse(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	ruleIssues, ruleSummary := e.rules.Evaluate(doc)
	issues = append(issues, ruleIssues...)

	summary := types.Summarize(runID, issues)
	summary.DocumentsChecked = ruleSummary.DocumentsChecked
	summary.RulesEvaluated = ruleSummary.RulesEvaluated
	e.logger.WithFields(logrus.Fields{
		"run_id":   runID,
		"errors":   summary.Errors,
		"warnings": summary.Warnings,
	}).Info("validation run complete")

	if err := e.streamIssues(issues); err != nil {
		return nil, err
	}

	return &ValidationResult{
		RunID:    runID,
		Valid:    summary.Errors == 0,
		Repaired: repaired,
		Issues:   issues,
		Summary:  summary,
	}, nil
}

// =============================================================================
// AUTO-FIX
// =============================================================================

// FixResult is the outcome of one fix run.
type FixResult struct {
	RunID string

	// Version is the fixed snapshot, ready to persist.
	Version *autofix.Version

	// SchemaValid reports whether the fixed snapshot passes schema
	// validation. Callers persist invalid snapshots under a marker suffix.
	SchemaValid bool

	// Fixes is the applied-fix ledger, in application order.
	Fixes []types.Fix

	// Issues holds the post-fix findings: re-evaluated rule findings,
	// AUTO_FIX_NOT_POSSIBLE carries, and schema regressions.
	Issues []types.Issue

	Summary types.Summary
}

// AutoFix validates, applies the requested strategy to a copy, re-validates
// the copy, and returns the new version with its fix ledger. The input
// document is never modified.
func (e *Engine) AutoFix(r io.Reader, mode types.Mode, seq int, runID string) (*FixResult, error) {
	if runID == "" {
		runID = uuid.NewString()
	}

	text, repaired, err := e.readAndRepair(r)
	if err != nil {
		return nil, err
	}

	preSchema := e.validateSchema(text)

	doc, err := document.Parse(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	preIssues, _ := e.rules.Evaluate(doc)

	transformer, err := autofix.New(mode,
		autofix.WithDefaultRegion(e.settings.DefaultTaxCountryRegion),
		autofix.WithSequence(seq),
	)
	if err != nil {
		return nil, err
	}
	result, err := transformer.Apply(doc, preIssues)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	fixes := result.Fixes
	if repaired {
		fixes = append([]types.Fix{{
			Code: autofix.CodeWorkDocBalanceRepaired,
			Note: "unbalanced WorkDocument tags repaired before parsing",
		}}, fixes...)
	}

	// Re-validate the fixed snapshot. Schema findings absent before the
	// pass are regressions the pass introduced; flag them as such.
	fixedText, err := document.Marshal(result.Version.Document)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	postSchema := e.validateSchema(fixedText)
	known := make(map[string]bool, len(preSchema))
	for _, issue := range preSchema {
		known[issue.Ref.XPath+"|"+issue.Message] = true
	}
	for i := range postSchema {
		if !known[postSchema[i].Ref.XPath+"|"+postSchema[i].Message] {
			postSchema[i].Message = "introduced by the fix pass: " + postSchema[i].Message
		}
	}

	postRules, postSummary := e.rules.Evaluate(result.Version.Document)

	issues := make([]types.Issue, 0, len(postSchema)+len(postRules)+len(result.Unresolved))
	issues = append(issues, postSchema...)
	issues = append(issues, postRules...)
	for _, issue := range result.Unresolved {
		if issue.Code == autofix.CodeAutoFixNotPossible {
			issues = append(issues, issue)
		}
	}

	summary := types.Summarize(runID, issues)
	summary.DocumentsChecked = postSummary.DocumentsChecked
	summary.RulesEvaluated = postSummary.RulesEvaluated
	e.logger.WithFields(logrus.Fields{
		"run_id":  runID,
		"mode":    string(mode),
		"fixes":   len(fixes),
		"errors":  summary.Errors,
		"version": result.Version.Suffix,
	}).Info("fix run complete")

	if err := e.streamFixes(fixes); err != nil {
		return nil, err
	}
	if err := e.streamIssues(issues); err != nil {
		return nil, err
	}

	return &FixResult{
		RunID:       runID,
		Version:     result.Version,
		SchemaValid: len(postSchema) == 0,
		Fixes:       fixes,
		Issues:      issues,
		Summary:     summary,
	}, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

// validateSchema runs the structural pass, or nothing when no schema is
// configured.
func (e *Engine) validateSchema(text string) []types.Issue {
	if e.schema == nil {
		return nil
	}
	return e.schema.ValidateString(text)
}

// readAndRepair slurps the input and applies the raw-text WorkDocument tag
// repair, the one fix that has to happen before parsing.
func (e *Engine) readAndRepair(r io.Reader) (string, bool, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", false, fmt.Errorf("failed to read input: %w", err)
	}
	text, repaired := document.RepairWorkDocumentBalance(string(raw))
	if repaired {
		e.logger.Warn("repaired unbalanced WorkDocument tags before parsing")
	}
	return text, repaired, nil
}

func (e *Engine) streamIssues(issues []types.Issue) error {
	if e.sink == nil {
		return nil
	}
	for _, issue := range issues {
		if err := e.sink.RecordIssue(issue); err != nil {
			return fmt.Errorf("report sink: %w", err)
		}
	}
	return nil
}

func (e *Engine) streamFixes(fixes []types.Fix) error {
	if e.sink == nil {
		return nil
	}
	for _, fix := range fixes {
		if err := e.sink.RecordFix(fix); err != nil {
			return fmt.Errorf("report sink: %w", err)
		}
	}
	return nil
}
