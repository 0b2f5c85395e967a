package types

import "testing"

func TestModeValid(t *testing.T) {
	tests := []struct {
		mode Mode
		want bool
	}{
		{ModeSoft, true},
		{ModeHard, true},
		{Mode(""), false},
		{Mode("aggressive"), false},
		{Mode("SOFT"), false},
	}
	for _, tt := range tests {
		if got := tt.mode.Valid(); got != tt.want {
			t.Errorf("Mode(%q).Valid() = %v, want %v", tt.mode, got, tt.want)
		}
	}
}

func TestRefString(t *testing.T) {
	tests := []struct {
		name string
		ref  Ref
		want string
	}{
		{"xpath wins", Ref{XPath: "/AuditFile/Header", Document: "FT 2025/1"}, "/AuditFile/Header"},
		{"document and line", Ref{Document: "FT 2025/1", Line: 3}, "FT 2025/1 line 3"},
		{"document only", Ref{Document: "FT 2025/1"}, "FT 2025/1"},
		{"field only", Ref{Field: "GrossTotal"}, "GrossTotal"},
		{"empty", Ref{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ref.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIssueString(t *testing.T) {
	issue := Issue{
		Code:     "TOTALS_MISMATCH",
		Severity: SeverityError,
		Ref:      Ref{Document: "FT 2025/1"},
		Message:  "stated gross does not match",
	}
	want := "[ERROR] TOTALS_MISMATCH at FT 2025/1: stated gross does not match"
	if got := issue.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	issue.Ref = Ref{}
	want = "[ERROR] TOTALS_MISMATCH: stated gross does not match"
	if got := issue.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestSummarize(t *testing.T) {
	issues := []Issue{
		{Severity: SeverityError},
		{Severity: SeverityError},
		{Severity: SeverityWarning},
		{Severity: SeverityInfo},
		{Severity: Severity("odd")},
	}
	s := Summarize("run-1", issues)
	if s.RunID != "run-1" {
		t.Errorf("RunID = %q", s.RunID)
	}
	if s.Errors != 2 || s.Warnings != 1 || s.Infos != 2 {
		t.Errorf("counts = %d/%d/%d, want 2/1/2", s.Errors, s.Warnings, s.Infos)
	}
}
