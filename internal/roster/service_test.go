package roster

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestParseRosterRows(t *testing.T) {
	tests := []struct {
		name       string
		rows       [][]string
		wantParsed int
		wantFailed int
		wantNilRpt bool
	}{
		{
			name:       "empty sheet",
			rows:       nil,
			wantNilRpt: true,
		},
		{
			name:       "missing student_id column",
			rows:       [][]string{{"full_name"}, {"Ada Lovelace"}},
			wantNilRpt: true,
		},
		{
			name:       "missing full_name column",
			rows:       [][]string{{"student_id"}, {"905001234"}},
			wantNilRpt: true,
		},
		{
			name: "all rows valid",
			rows: [][]string{
				{"student_id", "full_name"},
				{"905001234", "Ada Lovelace"},
				{"905001235", "Grace Hopper"},
			},
			wantParsed: 2,
		},
		{
			name: "header case and whitespace tolerated",
			rows: [][]string{
				{" Student_ID ", "FULL_NAME"},
				{"905001234", "Ada Lovelace"},
			},
			wantParsed: 1,
		},
		{
			name: "extra columns ignored",
			rows: [][]string{
				{"email", "student_id", "full_name"},
				{"ada@example.edu", "905001234", "Ada Lovelace"},
			},
			wantParsed: 1,
		},
		{
			name: "bad rows collected not fatal",
			rows: [][]string{
				{"student_id", "full_name"},
				{"not-a-number", "Ada Lovelace"},
				{"12345", "Grace Hopper"},
				{"905001234", "X"},
				{"905001235", "Katherine Johnson"},
			},
			wantParsed: 1,
			wantFailed: 3,
		},
		{
			name: "short row treated as missing cells",
			rows: [][]string{
				{"student_id", "full_name"},
				{"905001234"},
			},
			wantFailed: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, report := parseRosterRows(tc.rows)
			if tc.wantNilRpt {
				if report != nil {
					t.Fatalf("expected nil report, got %+v", report)
				}
				return
			}
			if report == nil {
				t.Fatal("expected a report")
			}
			if len(parsed) != tc.wantParsed {
				t.Fatalf("expected %d parsed rows, got %d", tc.wantParsed, len(parsed))
			}
			if report.FailedRows != tc.wantFailed {
				t.Fatalf("expected %d failed rows, got %d (%+v)", tc.wantFailed, report.FailedRows, report.Errors)
			}
			if report.TotalRows != len(tc.rows)-1 {
				t.Fatalf("expected %d total rows, got %d", len(tc.rows)-1, report.TotalRows)
			}
		})
	}
}

func buildRosterXLSX(t *testing.T, rows [][]string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write xlsx: %v", err)
	}
	return buf
}

// Imports where every row fails validation never reach the store, so a nil
// database is enough here.
func TestImportExcelAllRowsInvalid(t *testing.T) {
	svc := NewService(nil)
	buf := buildRosterXLSX(t, [][]string{
		{"student_id", "full_name"},
		{"12345", "Ada Lovelace"},
		{"905001234", "X"},
	})

	report, err := svc.ImportExcel(context.Background(), 1, buf)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.TotalRows != 2 || report.SuccessRows != 0 || report.FailedRows != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.Errors) != 2 {
		t.Fatalf("expected 2 row errors, got %+v", report.Errors)
	}
}

func TestImportExcelMissingColumns(t *testing.T) {
	svc := NewService(nil)
	buf := buildRosterXLSX(t, [][]string{
		{"name", "email"},
		{"Ada Lovelace", "ada@example.edu"},
	})

	if _, err := svc.ImportExcel(context.Background(), 1, buf); err == nil || !strings.Contains(err.Error(), "missing required columns") {
		t.Fatalf("expected missing-columns error, got %v", err)
	}
}

func TestImportExcelNotASpreadsheet(t *testing.T) {
	svc := NewService(nil)
	if _, err := svc.ImportExcel(context.Background(), 1, strings.NewReader("definitely,a,csv")); err == nil {
		t.Fatal("expected error for non-xlsx input")
	}
}
