package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// StudentAttendance is the per-student attendance record for one module.
type StudentAttendance struct {
	StudentID            int64   `json:"student_id"`
	StudentName          string  `json:"student_name"`
	TotalSessions        int     `json:"total_sessions"`
	AttendedSessions     int     `json:"attended_sessions"`
	AttendancePercentage float64 `json:"attendance_percentage"`
	GradeContribution    float64 `json:"grade_contribution"`
}

// SummarySkip names a student whose individual computation could not be
// completed; skipped students are excluded from the module average but not
// silently dropped.
type SummarySkip struct {
	StudentID   int64  `json:"student_id"`
	StudentName string `json:"student_name"`
	Reason      string `json:"reason"`
}

// Summary aggregates attendance for a whole module.
type Summary struct {
	ModuleID      int64               `json:"module_id"`
	ModuleCode    string              `json:"module_code"`
	ModuleName    string              `json:"module_name"`
	TotalSessions int                 `json:"total_sessions"`
	Students      []StudentAttendance `json:"students"`
	Skipped       []SummarySkip       `json:"skipped,omitempty"`
	ModuleAverage float64             `json:"module_average"`
}

// HistoryEntry is one attendance record joined with its session and module.
type HistoryEntry struct {
	AttendanceID int64     `json:"attendance_id"`
	SessionID    int64     `json:"session_id"`
	ModuleID     int64     `json:"module_id"`
	ModuleCode   string    `json:"module_code"`
	ModuleName   string    `json:"module_name"`
	WeekNumber   int       `json:"week_number"`
	SessionDate  time.Time `json:"session_date"`
	Status       string    `json:"status"`
	CheckinTime  time.Time `json:"checkin_time"`
}

// AnalyticsService derives attendance metrics from persisted check-ins. Reads
// are non-transactional; results are consistent within a call and eventually
// consistent with concurrent writers.
type AnalyticsService struct {
	db *sql.DB
}

func NewAnalyticsService(conn *sql.DB) *AnalyticsService {
	return &AnalyticsService{db: conn}
}

// StudentPercentage computes attendance percentage and grade contribution for
// one student in one module. A module with zero sessions has an undefined
// percentage and yields ErrNoSessions; the division is never performed.
func (s *AnalyticsService) StudentPercentage(ctx context.Context, studentID, moduleID int64) (*StudentAttendance, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `
		SELECT full_name FROM users WHERE user_id = $1
	`, studentID).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("load student: %w", err)
	}

	var total int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions WHERE module_id = $1
	`, moduleID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	if total == 0 {
		return nil, ErrNoSessions
	}

	var attended int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM attendance a
		JOIN sessions s ON s.session_id = a.session_id
		WHERE a.student_id = $1 AND s.module_id = $2
	`, studentID, moduleID).Scan(&attended)
	if err != nil {
		return nil, fmt.Errorf("count attendance: %w", err)
	}

	return buildStudentAttendance(studentID, name, total, attended), nil
}

// ModuleSummary computes StudentPercentage for every student with at least one
// record in the module plus every rostered student, and averages the
// percentages. A module with zero students reports an average of 0 and an
// empty list.
func (s *AnalyticsService) ModuleSummary(ctx context.Context, moduleID int64) (*Summary, error) {
	summary := &Summary{ModuleID: moduleID, Students: []StudentAttendance{}}

	err := s.db.QueryRowContext(ctx, `
		SELECT module_code, module_name FROM modules WHERE module_id = $1
	`, moduleID).Scan(&summary.ModuleCode, &summary.ModuleName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrModuleNotFound
		}
		return nil, fmt.Errorf("load module: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions WHERE module_id = $1
	`, moduleID).Scan(&summary.TotalSessions)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT u.user_id, u.full_name, COUNT(a.attendance_id) AS attended
		FROM users u
		JOIN (
			SELECT a.student_id
			FROM attendance a
			JOIN sessions s ON s.session_id = a.session_id
			WHERE s.module_id = $1
			UNION
			SELECT student_id FROM module_students WHERE module_id = $1
		) m ON m.student_id = u.user_id
		LEFT JOIN attendance a
			ON a.student_id = u.user_id
			AND a.session_id IN (SELECT session_id FROM sessions WHERE module_id = $1)
		GROUP BY u.user_id, u.full_name
		ORDER BY u.full_name
	`, moduleID)
	if err != nil {
		return nil, fmt.Errorf("query per-student attendance: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id       int64
			name     string
			attended int
		)
		if err := rows.Scan(&id, &name, &attended); err != nil {
			return nil, fmt.Errorf("scan per-student row: %w", err)
		}
		if summary.TotalSessions == 0 {
			summary.Skipped = append(summary.Skipped, SummarySkip{
				StudentID:   id,
				StudentName: name,
				Reason:      ErrNoSessions.Error(),
			})
			continue
		}
		summary.Students = append(summary.Students, *buildStudentAttendance(id, name, summary.TotalSessions, attended))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate per-student rows: %w", err)
	}

	summary.ModuleAverage = averagePercentage(summary.Students)
	return summary, nil
}

// StudentHistory returns up to limit records for the student, most recent
// check-in first. limit <= 0 means the default of 50; anything above the cap
// is clamped. The result is a snapshot; a fresh call re-queries current state.
func (s *AnalyticsService) StudentHistory(ctx context.Context, studentID int64, limit int) ([]HistoryEntry, error) {
	limit = clampHistoryLimit(limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.attendance_id, a.session_id, s.module_id, m.module_code, m.module_name,
			s.week_number, s.session_date, a.status, a.checkin_time
		FROM attendance a
		JOIN sessions s ON s.session_id = a.session_id
		JOIN modules m ON m.module_id = s.module_id
		WHERE a.student_id = $1
		ORDER BY a.checkin_time DESC
		LIMIT $2
	`, studentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(
			&e.AttendanceID, &e.SessionID, &e.ModuleID, &e.ModuleCode, &e.ModuleName,
			&e.WeekNumber, &e.SessionDate, &e.Status, &e.CheckinTime,
		); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return entries, nil
}

// clampHistoryLimit bounds the caller-supplied limit. The query's LIMIT and
// the slice capacity hint both derive from it, so it must never pass through
// unchecked.
func clampHistoryLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultHistoryLimit
	case limit > maxHistoryLimit:
		return maxHistoryLimit
	}
	return limit
}

func buildStudentAttendance(studentID int64, name string, total, attended int) *StudentAttendance {
	pct := round2(float64(attended) / float64(total) * 100)
	return &StudentAttendance{
		StudentID:            studentID,
		StudentName:          name,
		TotalSessions:        total,
		AttendedSessions:     attended,
		AttendancePercentage: pct,
		GradeContribution:    ApplyGradingRule(pct, DefaultMaxGrade),
	}
}

func averagePercentage(students []StudentAttendance) float64 {
	if len(students) == 0 {
		return 0
	}
	sum := 0.0
	for _, st := range students {
		sum += st.AttendancePercentage
	}
	return round2(sum / float64(len(students)))
}
