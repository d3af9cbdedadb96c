package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeReport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write report: %v", err)
	}
	return path
}

// TestParseReportFile verifies a well-formed report with extra columns.
func TestParseReportFile(t *testing.T) {
	path := writeReport(t,
		"date,metric,value,region,unit\n"+
			"2026-02-01,cpu_usage,73.5,eu-west,percent\n"+
			"2026-02-02,mem_usage,41.0,eu-west,percent\n")

	rows, err := ParseReportFile(path)
	if err != nil {
		t.Fatalf("ParseReportFile error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	first := rows[0]
	if !first.ReportDate.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ReportDate = %v, want 2026-02-01", first.ReportDate)
	}
	if first.Metric != "cpu_usage" {
		t.Errorf("Metric = %q, want cpu_usage", first.Metric)
	}
	if first.Value != 73.5 {
		t.Errorf("Value = %f, want 73.5", first.Value)
	}
	if first.Extra["region"] != "eu-west" || first.Extra["unit"] != "percent" {
		t.Errorf("Extra = %v, want region and unit carried along", first.Extra)
	}
	if _, ok := first.Extra["metric"]; ok {
		t.Error("core column leaked into extra fields")
	}
}

// TestParseReportFileColumnOrder verifies that columns are found by
// header name, not position.
func TestParseReportFileColumnOrder(t *testing.T) {
	path := writeReport(t,
		"Value, Metric ,date\n"+
			"3.14,disk_io,2026-02-01\n")

	rows, err := ParseReportFile(path)
	if err != nil {
		t.Fatalf("ParseReportFile error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Metric != "disk_io" || rows[0].Value != 3.14 {
		t.Errorf("row = %+v, columns not matched by name", rows[0])
	}
}

// TestParseReportFileHeaderOnly verifies that an empty report is valid.
func TestParseReportFileHeaderOnly(t *testing.T) {
	path := writeReport(t, "date,metric,value\n")

	rows, err := ParseReportFile(path)
	if err != nil {
		t.Fatalf("ParseReportFile error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}
}

// TestParseReportFileErrors verifies that malformed input fails the
// whole file with a line-numbered message.
func TestParseReportFileErrors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "empty file",
			content: "",
			wantErr: "missing header",
		},
		{
			name:    "missing required column",
			content: "date,metric\n2026-02-01,cpu\n",
			wantErr: "must contain",
		},
		{
			name:    "bad date",
			content: "date,metric,value\nnot-a-date,cpu,1.0\n",
			wantErr: "bad date at line 2",
		},
		{
			name:    "bad value",
			content: "date,metric,value\n2026-02-01,cpu,high\n",
			wantErr: "bad value at line 2",
		},
		{
			name:    "empty metric",
			content: "date,metric,value\n2026-02-01,,1.0\n",
			wantErr: "empty metric at line 2",
		},
		{
			name:    "ragged row",
			content: "date,metric,value\n2026-02-01,cpu,1.0,extra\n",
			wantErr: "line 2",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeReport(t, tc.content)
			_, err := ParseReportFile(path)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tc.wantErr)
			}
		})
	}
}
