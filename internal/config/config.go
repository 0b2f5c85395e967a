// =============================================================================
// SAF-T (AO) Validator - Configuration
// =============================================================================
//
// This module loads the two configuration inputs of the engine:
//
//   1. Engine settings (config.yaml): schema path, output directory, report
//      options, logging level.
//   2. The declarative rule catalog (rules.yaml): one entry per business
//      rule with scope, applicability window and constraint parameters. The
//      catalog is produced by the external AGT ingestion pipeline; this
//      module only loads and sanity-checks it.
//
// New regulator guidance lands as new catalog entries, not as code changes:
// the rule engine interprets the catalog generically (see internal/rules).
//
// Struct-level sanity checks use go-playground/validator so a broken catalog
// fails loudly at load time instead of silently skipping rules.
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// ENGINE SETTINGS
// =============================================================================

// Settings holds the global application configuration from config.yaml.
type Settings struct {
	// SchemaPath points to the official XSD, e.g. "./schemas/SAFTAO1.01_01.xsd".
	SchemaPath string `yaml:"schema_path" validate:"required"`

	// RulesPath points to the rule catalog YAML. Empty selects the built-in
	// default catalog.
	RulesPath string `yaml:"rules_path"`

	// OutputDir is where fixed XML versions and reports are written.
	// Default: the input file's directory.
	OutputDir string `yaml:"output_dir"`

	// ReportFormat selects the report sink: "xlsx" or "log".
	// Default: "xlsx"
	ReportFormat string `yaml:"report_format" validate:"omitempty,oneof=xlsx log"`

	// LogLevel controls verbosity: "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// DefaultTaxCountryRegion is the jurisdiction filled into Tax blocks that
	// lack one. Default: "AO"
	DefaultTaxCountryRegion string `yaml:"default_tax_country_region"`
}

// DefaultSettings returns the settings used when no config file is given.
func DefaultSettings() Settings {
	return Settings{
		SchemaPath:              "./schemas/SAFTAO1.01_01.xsd",
		ReportFormat:            "xlsx",
		LogLevel:                "info",
		DefaultTaxCountryRegion: "AO",
	}
}

// LoadSettings loads and validates config.yaml.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("read settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("parse settings file: %w", err)
	}
	if err := validate.Struct(settings); err != nil {
		return settings, fmt.Errorf("invalid settings: %w", err)
	}
	return settings, nil
}

// =============================================================================
// RULE CATALOG
// =============================================================================

// Check names understood by the rule engine. A catalog entry whose check is
// not in this set fails validation at load time.
const (
	CheckHashChain          = "hash_chain"
	CheckTotals             = "totals_reconciliation"
	CheckDateOrder          = "date_order"
	CheckCrossReference     = "cross_reference"
	CheckNIFFormat          = "nif_format"
	CheckDuplicateInvoiceNo = "duplicate_invoice_no"
	CheckInvoiceType        = "invoice_type"
	CheckTaxCountryRegion   = "tax_country_region"
)

// Rule is one declarative catalog entry.
type Rule struct {
	// ID is the unique rule identifier, e.g. "AGT-TOTALS-001".
	ID string `yaml:"id" validate:"required"`

	// Check selects the evaluation algorithm.
	Check string `yaml:"check" validate:"required,oneof=hash_chain totals_reconciliation date_order cross_reference nif_format duplicate_invoice_no invoice_type tax_country_region"`

	// Scope restricts where the check runs: "header", "invoice", "line",
	// "masterfiles". The engine also uses it to order the forward pass.
	Scope string `yaml:"scope" validate:"required,oneof=header invoice line masterfiles"`

	// AppliesSince/AppliesUntil bound the applicability window (inclusive,
	// "2006-01-02"). Empty means unbounded.
	AppliesSince string `yaml:"applies_since,omitempty"`
	AppliesUntil string `yaml:"applies_until,omitempty"`

	// Params carries per-rule constraint parameters, e.g. tolerance or the
	// allowed invoice type codes.
	Params map[string]string `yaml:"params,omitempty"`
}

// AppliesOn reports whether the rule applies on the given reference date.
// An unparsable window bound is treated as unbounded; the catalog validator
// reported it already.
func (r Rule) AppliesOn(ref time.Time) bool {
	if r.AppliesSince != "" {
		if since, err := time.Parse("2006-01-02", r.AppliesSince); err == nil && ref.Before(since) {
			return false
		}
	}
	if r.AppliesUntil != "" {
		if until, err := time.Parse("2006-01-02", r.AppliesUntil); err == nil && ref.After(until) {
			return false
		}
	}
	return true
}

// Param returns a rule parameter, or the given default when absent.
func (r Rule) Param(key, fallback string) string {
	if v, ok := r.Params[key]; ok {
		return v
	}
	return fallback
}

// Catalog is the ordered rule list. Evaluation order is declaration order.
type Catalog struct {
	// SchemaVersion tracks the catalog format, bumped by the ingestion
	// pipeline when the layout changes.
	SchemaVersion string `yaml:"schema_version"`

	Rules []Rule `yaml:"rules" validate:"required,min=1,dive"`
}

var validate = validator.New()

// LoadCatalog loads and validates a rule catalog YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule catalog: %w", err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse rule catalog: %w", err)
	}
	if err := validate.Struct(catalog); err != nil {
		return nil, fmt.Errorf("invalid rule catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(catalog.Rules))
	for _, rule := range catalog.Rules {
		if _, dup := seen[rule.ID]; dup {
			return nil, fmt.Errorf("invalid rule catalog: duplicate rule id %q", rule.ID)
		}
		seen[rule.ID] = struct{}{}
	}
	return &catalog, nil
}

// DefaultCatalog returns the built-in catalog matching current AGT guidance.
// The declared order is the evaluation order.
func DefaultCatalog() *Catalog {
	return &Catalog{
		SchemaVersion: "1",
		Rules: []Rule{
			{ID: "AGT-HEADER-NIF", Check: CheckNIFFormat, Scope: "header"},
			{ID: "AGT-HASH-001", Check: CheckHashChain, Scope: "invoice"},
			{ID: "AGT-TOTALS-001", Check: CheckTotals, Scope: "invoice", Params: map[string]string{"tolerance": "0.01"}},
			{ID: "AGT-DATES-001", Check: CheckDateOrder, Scope: "invoice"},
			{ID: "AGT-DOCTYPE-001", Check: CheckInvoiceType, Scope: "invoice", Params: map[string]string{
				"allowed":     "FT,FR,ND,NC,AR,TV,RP,RE,CS,LD,RA",
				"replacement": "VD=FR",
			}},
			{ID: "AGT-DUPLICATES-001", Check: CheckDuplicateInvoiceNo, Scope: "invoice"},
			{ID: "AGT-TAXREGION-001", Check: CheckTaxCountryRegion, Scope: "line", Params: map[string]string{"default": "AO"}},
			{ID: "AGT-XREF-001", Check: CheckCrossReference, Scope: "masterfiles"},
			{ID: "AGT-CUSTOMER-NIF", Check: CheckNIFFormat, Scope: "masterfiles"},
		},
	}
}
