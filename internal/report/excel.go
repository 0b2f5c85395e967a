// =============================================================================
// SAF-T (AO) Validator - Excel Report Writer
// =============================================================================
//
// One workbook per run: a Findings sheet and a Fixes sheet, each row stamped
// with the run identifier and a timestamp. The workbook is built in memory
// and written out on Flush.
//
// =============================================================================

package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kwanza-dev/saft-ao-validator/internal/types"
)

const (
	sheetIssues = "Findings"
	sheetFixes  = "Fixes"
)

var issueHeader = []interface{}{
	"Timestamp", "Run ID", "Severity", "Code", "Message",
	"XPath", "Document", "Line", "Field", "Suggested Value",
}

var fixHeader = []interface{}{
	"Timestamp", "Run ID", "Code", "XPath", "Document",
	"Line", "Field", "Previous Value", "New Value", "Note",
}

// ExcelSink accumulates records into an xlsx workbook.
type ExcelSink struct {
	file     *excelize.File
	path     string
	runID    string
	now      func() time.Time
	issueRow int
	fixRow   int
}

// NewExcelSink prepares a workbook that Flush will save to path.
func NewExcelSink(path, runID string) (*ExcelSink, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetIssues); err != nil {
		return nil, fmt.Errorf("failed to prepare report workbook: %w", err)
	}
	if _, err := f.NewSheet(sheetFixes); err != nil {
		return nil, fmt.Errorf("failed to prepare report workbook: %w", err)
	}

	if err := f.SetSheetRow(sheetIssues, "A1", &issueHeader); err != nil {
		return nil, fmt.Errorf("failed to write report header: %w", err)
	}
	if err := f.SetSheetRow(sheetFixes, "A1", &fixHeader); err != nil {
		return nil, fmt.Errorf("failed to write report header: %w", err)
	}

	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(sheetIssues, "A1", "J1", style)
		_ = f.SetCellStyle(sheetFixes, "A1", "J1", style)
	}

	return &ExcelSink{
		file:     f,
		path:     path,
		runID:    runID,
		now:      time.Now,
		issueRow: 2,
		fixRow:   2,
	}, nil
}

// Path reports where Flush will write the workbook.
func (s *ExcelSink) Path() string { return s.path }

func (s *ExcelSink) RecordIssue(issue types.Issue) error {
	cell, err := excelize.CoordinatesToCellName(1, s.issueRow)
	if err != nil {
		return err
	}
	row := []interface{}{
		s.now().Format(time.RFC3339),
		s.runID,
		string(issue.Severity),
		issue.Code,
		issue.Message,
		issue.Ref.XPath,
		issue.Ref.Document,
		issue.Ref.Line,
		issue.Ref.Field,
		issue.SuggestedValue,
	}
	if err := s.file.SetSheetRow(sheetIssues, cell, &row); err != nil {
		return fmt.Errorf("failed to write finding row: %w", err)
	}
	s.issueRow++
	return nil
}

func (s *ExcelSink) RecordFix(fix types.Fix) error {
	cell, err := excelize.CoordinatesToCellName(1, s.fixRow)
	if err != nil {
		return err
	}
	row := []interface{}{
		s.now().Format(time.RFC3339),
		s.runID,
		fix.Code,
		fix.Ref.XPath,
		fix.Ref.Document,
		fix.Ref.Line,
		fix.Ref.Field,
		fix.PreviousValue,
		fix.NewValue,
		fix.Note,
	}
	if err := s.file.SetSheetRow(sheetFixes, cell, &row); err != nil {
		return fmt.Errorf("failed to write fix row: %w", err)
	}
	s.fixRow++
	return nil
}

// Flush saves the workbook and releases its resources.
func (s *ExcelSink) Flush() error {
	defer s.file.Close()
	if err := s.file.SaveAs(s.path); err != nil {
		return fmt.Errorf("failed to save report workbook: %w", err)
	}
	return nil
}
