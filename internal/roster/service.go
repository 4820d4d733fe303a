package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"oqas/internal/attendance"
	"oqas/internal/auth"
)

var ErrModuleNotFound = errors.New("module not found")

// Module is a course unit owned by a lecturer.
type Module struct {
	ModuleID     int64     `json:"module_id"`
	ModuleCode   string    `json:"module_code"`
	ModuleName   string    `json:"module_name"`
	LecturerID   int64     `json:"lecturer_id"`
	PlannedWeeks int       `json:"planned_weeks"`
	CreatedAt    time.Time `json:"created_at"`
}

type ImportRowError struct {
	Row       int    `json:"row"`
	StudentID string `json:"student_id,omitempty"`
	Error     string `json:"error"`
}

type ImportReport struct {
	TotalRows   int              `json:"total_rows"`
	SuccessRows int              `json:"success_rows"`
	FailedRows  int              `json:"failed_rows"`
	Errors      []ImportRowError `json:"errors"`
}

type Service struct {
	db *sql.DB
}

func NewService(conn *sql.DB) *Service {
	return &Service{db: conn}
}

// GetModule loads one module.
func (s *Service) GetModule(ctx context.Context, moduleID int64) (*Module, error) {
	var m Module
	err := s.db.QueryRowContext(ctx, `
		SELECT module_id, module_code, module_name, lecturer_id, planned_weeks, created_at
		FROM modules
		WHERE module_id = $1
	`, moduleID).Scan(&m.ModuleID, &m.ModuleCode, &m.ModuleName, &m.LecturerID, &m.PlannedWeeks, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrModuleNotFound
		}
		return nil, fmt.Errorf("load module: %w", err)
	}
	return &m, nil
}

// ListModulesByLecturer returns the lecturer's modules ordered by code.
func (s *Service) ListModulesByLecturer(ctx context.Context, lecturerID int64) ([]Module, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT module_id, module_code, module_name, lecturer_id, planned_weeks, created_at
		FROM modules
		WHERE lecturer_id = $1
		ORDER BY module_code
	`, lecturerID)
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	defer rows.Close()

	modules := make([]Module, 0)
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ModuleID, &m.ModuleCode, &m.ModuleName, &m.LecturerID, &m.PlannedWeeks, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// EnrollStudent adds a student to a module roster, creating the student row if
// needed. Both inserts run in one transaction.
func (s *Service) EnrollStudent(ctx context.Context, moduleID, studentID int64, fullName string) error {
	if !attendance.ValidStudentID(studentID) {
		return attendance.ErrInvalidStudentID
	}
	name := strings.TrimSpace(fullName)
	if utf8.RuneCountInString(name) < 2 {
		return attendance.ErrInvalidStudentName
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM modules WHERE module_id = $1)
	`, moduleID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check module: %w", err)
	}
	if !exists {
		return ErrModuleNotFound
	}

	hash, err := auth.PlaceholderPasswordHash()
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enroll tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (user_id, username, password_hash, role, full_name)
		VALUES ($1, $2, $3, 'student', $4)
		ON CONFLICT (user_id) DO NOTHING
	`, studentID, strconv.FormatInt(studentID, 10), hash, name); err != nil {
		return fmt.Errorf("create student: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO module_students (module_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT (module_id, student_id) DO NOTHING
	`, moduleID, studentID); err != nil {
		return fmt.Errorf("enroll student: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enroll: %w", err)
	}
	return nil
}

// ImportExcel bulk-enrolls students from an xlsx sheet with student_id and
// full_name columns. Rows are processed independently; failures land in the
// report instead of aborting the import.
func (s *Service) ImportExcel(ctx context.Context, moduleID int64, r io.Reader) (*ImportReport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open excel: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel sheet is empty")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	parsed, report := parseRosterRows(rows)
	if report == nil {
		return nil, errors.New("missing required columns: student_id, full_name")
	}

	for _, row := range parsed {
		if err := s.EnrollStudent(ctx, moduleID, row.studentID, row.fullName); err != nil {
			report.FailedRows++
			report.Errors = append(report.Errors, ImportRowError{
				Row:       row.rowNo,
				StudentID: strconv.FormatInt(row.studentID, 10),
				Error:     err.Error(),
			})
			continue
		}
		report.SuccessRows++
	}
	return report, nil
}

type rosterRow struct {
	rowNo     int
	studentID int64
	fullName  string
}

// parseRosterRows validates the header and extracts well-formed rows. It
// returns a nil report when required columns are missing. Malformed rows are
// recorded in the report and skipped.
func parseRosterRows(rows [][]string) ([]rosterRow, *ImportReport) {
	if len(rows) == 0 {
		return nil, nil
	}

	header := map[string]int{}
	for i, h := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(h))] = i
	}
	idCol, okID := header["student_id"]
	nameCol, okName := header["full_name"]
	if !okID || !okName {
		return nil, nil
	}

	report := &ImportReport{Errors: make([]ImportRowError, 0)}
	out := make([]rosterRow, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		rowNo := i + 1
		row := rows[i]
		report.TotalRows++

		get := func(col int) string {
			if col >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[col])
		}

		rawID := get(idCol)
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil || !attendance.ValidStudentID(id) {
			report.FailedRows++
			report.Errors = append(report.Errors, ImportRowError{Row: rowNo, StudentID: rawID, Error: "invalid student id"})
			continue
		}
		name := get(nameCol)
		if utf8.RuneCountInString(name) < 2 {
			report.FailedRows++
			report.Errors = append(report.Errors, ImportRowError{Row: rowNo, StudentID: rawID, Error: "invalid full name"})
			continue
		}
		out = append(out, rosterRow{rowNo: rowNo, studentID: id, fullName: name})
	}
	return out, report
}
