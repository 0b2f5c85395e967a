// =============================================================================
// SAF-T (AO) Validator - Validate Command
// =============================================================================
//
// This file implements the 'validate' command, which checks one or more
// SAF-T files against the schema and the rule catalog without modifying
// them. The exit code reflects the worst outcome across all inputs.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kwanza-dev/saft-ao-validator/internal/engine"
	"github.com/kwanza-dev/saft-ao-validator/internal/report"
	"github.com/kwanza-dev/saft-ao-validator/pkg/utils"
)

// reportOverride lets the operator force the report format per invocation.
var reportOverride string

var validateCmd = &cobra.Command{
	Use:   "validate <file> [file...]",
	Short: "Validate SAF-T files against the schema and consistency rules",
	Long: `Validate runs each file through XSD validation and the consistency
rule catalog: hash chain continuity, totals reconciliation, date ordering,
cross references, tax number plausibility and duplicate detection.

The files are never modified. Findings go to the configured report sink;
the command exits non-zero if any file has ERROR-severity findings.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(
		&reportOverride,
		"report",
		"",
		"Report format for this run: xlsx or log (default from configuration)",
	)
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if reportOverride != "" {
		settings.ReportFormat = reportOverride
	}

	eng, err := engine.New(settings, engine.WithLogger(logger))
	if err != nil {
		return err
	}

	fm := utils.NewFileManager("", settings.OutputDir)
	if err := fm.EnsureDirectories(); err != nil {
		return err
	}

	failed := false
	for _, path := range args {
		runID := uuid.NewString()

		sink, err := buildSink(settings.ReportFormat, fm, path, runID)
		if err != nil {
			return err
		}
		eng.SetSink(sink)

		result, err := validateOne(eng, path, runID)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := sink.Flush(); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		status := "VALID"
		if !result.Valid {
			status = "INVALID"
			failed = true
		}
		fmt.Printf("%s: %s (%d errors, %d warnings, %d documents checked)\n",
			path, status,
			result.Summary.Errors, result.Summary.Warnings,
			result.Summary.DocumentsChecked)
	}

	if failed {
		os.Exit(1)
	}
	return nil
}

func validateOne(eng *engine.Engine, path, runID string) (*engine.ValidationResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	return eng.Validate(f, runID)
}

// buildSink assembles the report sink for one file run. The log sink is
// always attached; the Excel sink joins it when the configuration asks for
// a workbook.
func buildSink(format string, fm *utils.FileManager, path, runID string) (report.Sink, error) {
	logSink := report.NewLogSink(logger, runID)
	if format != "xlsx" {
		return logSink, nil
	}

	excelSink, err := report.NewExcelSink(fm.ReportPath(path, runID), runID)
	if err != nil {
		return nil, err
	}
	return report.MultiSink{logSink, excelSink}, nil
}
