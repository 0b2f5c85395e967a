// =============================================================================
// SAF-T (AO) Validator - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the validator, including:
//   - Input file discovery
//   - Versioned output naming (_v.NN for soft passes, _vh.NN for hard passes)
//   - Atomic output writing
//   - Report file naming
//   - Directory management
//
// VERSIONING STRATEGY:
//   - The uploaded file counts as version 1; fixed outputs start at 02
//   - Soft and hard passes number independently under distinct suffixes
//   - A fixed output that still fails schema validation is written under an
//     additional _invalido marker so reviewers spot it immediately
//
// =============================================================================

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the validator.
type FileManager struct {
	// InputDir is the directory where input files are placed.
	InputDir string

	// OutputDir is the directory where fixed versions and reports are placed.
	OutputDir string
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir string) *FileManager {
	return &FileManager{
		InputDir:  inputDir,
		OutputDir: outputDir,
	}
}

// EnsureDirectories creates all required directories if they don't exist.
func (fm *FileManager) EnsureDirectories() error {
	dirs := []string{fm.InputDir, fm.OutputDir}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DiscoverInputFiles scans the input directory for files matching the pattern.
//
// PARAMETERS:
//   - pattern: A glob pattern to match files (e.g., "*.xml").
//     If empty, defaults to "*.xml".
//
// RETURNS:
//   - A slice of file paths.
//   - An error if the directory cannot be read.
func (fm *FileManager) DiscoverInputFiles(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*.xml"
	}

	fullPattern := filepath.Join(fm.InputDir, pattern)

	files, err := filepath.Glob(fullPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var result []string
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			result = append(result, file)
		}
	}

	return result, nil
}

// =============================================================================
// VERSIONED OUTPUT NAMING
// =============================================================================

// versionPattern extracts the sequence number from an existing versioned
// file name, e.g. "saft_v.03.xml" or "saft_vh.02_invalido.xml".
var versionPattern = regexp.MustCompile(`_(v|vh)\.(\d{2})(?:_invalido)?\.xml$`)

// baseStem strips the extension and any version decoration from a file name,
// so re-running over a fixed output chains versions instead of stacking
// suffixes.
func baseStem(inputPath string) string {
	name := filepath.Base(inputPath)
	if m := versionPattern.FindStringIndex(name); m != nil {
		return name[:m[0]]
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// NextSequence returns the next free version number in the output directory
// for the given input file and suffix kind ("v" or "vh"). The first fixed
// output of a file is version 2.
func (fm *FileManager) NextSequence(inputPath, kind string) (int, error) {
	stem := baseStem(inputPath)

	matches, err := filepath.Glob(filepath.Join(fm.OutputDir, stem+"_"+kind+".*.xml"))
	if err != nil {
		return 0, fmt.Errorf("failed to scan output directory: %w", err)
	}

	next := 2
	for _, match := range matches {
		sub := versionPattern.FindStringSubmatch(filepath.Base(match))
		if sub == nil || sub[1] != kind {
			continue
		}
		seq, err := strconv.Atoi(sub[2])
		if err != nil {
			continue
		}
		if seq >= next {
			next = seq + 1
		}
	}

	return next, nil
}

// VersionedPath constructs the output path for a fixed version.
//
// PARAMETERS:
//   - inputPath: The original input file path (only its base name is used).
//   - suffix: The version suffix, e.g. "_v.02" or "_vh.03".
//   - invalid: Whether the fixed output still fails schema validation.
//
// EXAMPLE:
//   inputPath "uploads/saft_jan.xml", suffix "_v.02", invalid false
//   -> "<OutputDir>/saft_jan_v.02.xml"
func (fm *FileManager) VersionedPath(inputPath, suffix string, invalid bool) string {
	name := baseStem(inputPath) + suffix
	if invalid {
		name += "_invalido"
	}
	return filepath.Join(fm.OutputDir, name+".xml")
}

// ReportPath constructs the path for a run's report workbook.
func (fm *FileManager) ReportPath(inputPath, runID string) string {
	name := fmt.Sprintf("%s_report_%s_%s.xlsx",
		baseStem(inputPath),
		time.Now().Format("20060102_150405"),
		runID)
	return filepath.Join(fm.OutputDir, name)
}

// =============================================================================
// OUTPUT WRITING
// =============================================================================

// WriteFileAtomic writes content to path via a temporary file and rename, so
// a crash mid-write never leaves a truncated output behind.
func WriteFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close output: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move output into place: %w", err)
	}

	return nil
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
