// =============================================================================
// SAF-T (AO) Validator - Report Sinks
// =============================================================================
//
// Findings and fixes stream to pluggable sinks as the run produces them.
// Two implementations ship: a structured-log sink for pipelines and an Excel
// workbook sink for the reviewers at the tax desk. A MultiSink fans out to
// both when the operator wants a file and live output at once.
//
// =============================================================================

package report

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/kwanza-dev/saft-ao-validator/internal/types"
)

// Sink receives findings and applied fixes during a run. Implementations
// may buffer; Flush makes everything durable.
type Sink interface {
	RecordIssue(issue types.Issue) error
	RecordFix(fix types.Fix) error
	Flush() error
}

// =============================================================================
// MULTI SINK
// =============================================================================

// MultiSink fans every record out to all members. Errors are collected, not
// short-circuited, so one failing sink does not starve the others.
type MultiSink []Sink

func (m MultiSink) RecordIssue(issue types.Issue) error {
	var errs []error
	for _, s := range m {
		if err := s.RecordIssue(issue); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) RecordFix(fix types.Fix) error {
	var errs []error
	for _, s := range m {
		if err := s.RecordFix(fix); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Flush() error {
	var errs []error
	for _, s := range m {
		if err := s.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// LOG SINK
// =============================================================================

// LogSink emits each record as one structured log entry. Severity maps to
// the log level so downstream filters work out of the box.
type LogSink struct {
	logger *logrus.Logger
	runID  string
}

// NewLogSink wraps a configured logger. A nil logger falls back to the
// logrus standard logger.
func NewLogSink(logger *logrus.Logger, runID string) *LogSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogSink{logger: logger, runID: runID}
}

func (s *LogSink) RecordIssue(issue types.Issue) error {
	entry := s.logger.WithFields(logrus.Fields{
		"run_id":   s.runID,
		"code":     issue.Code,
		"xpath":    issue.Ref.XPath,
		"document": issue.Ref.Document,
		"line":     issue.Ref.Line,
		"field":    issue.Ref.Field,
	})
	if issue.SuggestedValue != "" {
		entry = entry.WithField("suggested", issue.SuggestedValue)
	}
	switch issue.Severity {
	case types.SeverityError:
		entry.Error(issue.Message)
	case types.SeverityWarning:
		entry.Warn(issue.Message)
	default:
		entry.Info(issue.Message)
	}
	return nil
}

func (s *LogSink) RecordFix(fix types.Fix) error {
	s.logger.WithFields(logrus.Fields{
		"run_id":   s.runID,
		"code":     fix.Code,
		"xpath":    fix.Ref.XPath,
		"document": fix.Ref.Document,
		"previous": fix.PreviousValue,
		"new":      fix.NewValue,
	}).Info(fixMessage(fix))
	return nil
}

func (s *LogSink) Flush() error { return nil }

func fixMessage(fix types.Fix) string {
	if fix.Note != "" {
		return fix.Note
	}
	return "fix applied"
}
