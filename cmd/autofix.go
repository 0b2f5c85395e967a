// =============================================================================
// SAF-T (AO) Validator - Autofix Command
// =============================================================================
//
// This file implements the 'autofix' command: validate a file, apply the
// requested fix strategy to a copy, re-validate the copy and write it out
// under a versioned name. The original file is never modified.
//
// VERSIONING:
//   - Soft passes write <name>_v.NN.xml, hard passes <name>_vh.NN.xml
//   - A fixed output that still fails schema validation gets an additional
//     _invalido marker in its name
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kwanza-dev/saft-ao-validator/internal/document"
	"github.com/kwanza-dev/saft-ao-validator/internal/engine"
	"github.com/kwanza-dev/saft-ao-validator/internal/types"
	"github.com/kwanza-dev/saft-ao-validator/pkg/utils"
)

var (
	fixMode      string
	outputDirOpt string
)

var autofixCmd = &cobra.Command{
	Use:   "autofix <file> [file...]",
	Short: "Apply deterministic fixes to SAF-T files and write versioned copies",
	Long: `Autofix validates each file, applies the selected fix strategy to a
copy and writes the copy under a versioned name next to a full ledger of
every change (previous value, new value, reason).

Strategies:
  soft  Reversible normalizations only: decimal separators, retired document
        type codes, missing jurisdiction elements, element ordering inside
        lines. Running soft twice produces no further changes.
  hard  Everything soft does, plus structural repairs: sibling block
        reordering, line renumbering, recomputing totals from lines and
        backfilling the tax table. Use when a soft pass leaves the file
        unsubmittable.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAutofix,
}

func init() {
	autofixCmd.Flags().StringVar(
		&fixMode,
		"mode",
		"soft",
		"Fix strategy: soft (reversible only) or hard (structural repairs)",
	)
	autofixCmd.Flags().StringVar(
		&outputDirOpt,
		"output-dir",
		"",
		"Directory for fixed versions and reports (default from configuration)",
	)
	autofixCmd.Flags().StringVar(
		&reportOverride,
		"report",
		"",
		"Report format for this run: xlsx or log (default from configuration)",
	)
	rootCmd.AddCommand(autofixCmd)
}

func runAutofix(cmd *cobra.Command, args []string) error {
	mode := types.Mode(fixMode)
	if !mode.Valid() {
		return fmt.Errorf("unknown fix mode %q (want soft or hard)", fixMode)
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if outputDirOpt != "" {
		settings.OutputDir = outputDirOpt
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

	for _, path := range args {
		if err := autofixOne(eng, fm, settings.ReportFormat, path, mode); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func autofixOne(eng *engine.Engine, fm *utils.FileManager, reportFormat, path string, mode types.Mode) error {
	runID := uuid.NewString()

	kind := "v"
	if mode == types.ModeHard {
		kind = "vh"
	}
	seq, err := fm.NextSequence(path, kind)
	if err != nil {
		return err
	}

	sink, err := buildSink(reportFormat, fm, path, runID)
	if err != nil {
		return err
	}
	eng.SetSink(sink)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	result, err := eng.AutoFix(f, mode, seq, runID)
	f.Close()
	if err != nil {
		return err
	}
	if err := sink.Flush(); err != nil {
		return err
	}

	content, err := document.Marshal(result.Version.Document)
	if err != nil {
		return err
	}
	outPath := fm.VersionedPath(path, result.Version.Suffix, !result.SchemaValid)
	if err := utils.WriteFileAtomic(outPath, []byte(content)); err != nil {
		return err
	}

	fmt.Printf("%s: %d fixes applied, %d findings remain -> %s\n",
		path, len(result.Fixes), len(result.Issues), outPath)
	if !result.SchemaValid {
		fmt.Printf("%s: fixed version still fails schema validation\n", path)
	}
	return nil
}
