package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"oqas/internal/auth"
	"oqas/internal/db"
)

var (
	ErrInvalidStudentID   = errors.New("invalid student id format")
	ErrInvalidStudentName = errors.New("invalid student name")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionNotActive   = errors.New("session not active")
	ErrAlreadyCheckedIn   = errors.New("already checked in")
	ErrStudentNotFound    = errors.New("student not found")
	ErrModuleNotFound     = errors.New("module not found")
	ErrNoSessions         = errors.New("module has no sessions")
)

// Institutional student ids: 9 digits in the reserved 90500xxxx range.
var studentIDPattern = regexp.MustCompile(`^90500\d{4}$`)

// ValidStudentID reports whether id falls in the institutional student range.
func ValidStudentID(id int64) bool {
	return studentIDPattern.MatchString(strconv.FormatInt(id, 10))
}

// Checkin is a persisted attendance record.
type Checkin struct {
	ID          int64     `json:"id"`
	SessionID   int64     `json:"session_id"`
	StudentID   int64     `json:"student_id"`
	Status      string    `json:"status"`
	CheckinTime time.Time `json:"checkin_time"`
}

// SubmissionService records attendance check-ins. It is stateless; the store
// is the only shared resource and the UNIQUE (session_id, student_id)
// constraint is the authoritative duplicate guard.
type SubmissionService struct {
	db *sql.DB
}

func NewSubmissionService(conn *sql.DB) *SubmissionService {
	return &SubmissionService{db: conn}
}

// Submit validates a check-in and persists it atomically. Preconditions are
// checked in order and fail fast; nothing touches the store until the id and
// name are well-formed. The student row is created lazily inside the same
// transaction as the attendance insert, so a failed insert never strands a
// student.
func (s *SubmissionService) Submit(ctx context.Context, sessionID, studentID int64, studentName string) (*Checkin, error) {
	if !ValidStudentID(studentID) {
		return nil, ErrInvalidStudentID
	}
	name := strings.TrimSpace(studentName)
	if utf8.RuneCountInString(name) < 2 {
		return nil, ErrInvalidStudentName
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin submit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT status
		FROM sessions
		WHERE session_id = $1
	`, sessionID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if status != "active" {
		return nil, ErrSessionNotActive
	}

	// Friendly-path duplicate check; the unique constraint below stays
	// authoritative under concurrent submits.
	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM attendance
			WHERE session_id = $1 AND student_id = $2
		)
	`, sessionID, studentID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check prior record: %w", err)
	}
	if exists {
		return nil, ErrAlreadyCheckedIn
	}

	var studentExists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)
	`, studentID).Scan(&studentExists)
	if err != nil {
		return nil, fmt.Errorf("check student: %w", err)
	}
	if !studentExists {
		hash, err := auth.PlaceholderPasswordHash()
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (user_id, username, password_hash, role, full_name)
			VALUES ($1, $2, $3, 'student', $4)
			ON CONFLICT (user_id) DO NOTHING
		`, studentID, strconv.FormatInt(studentID, 10), hash, name); err != nil {
			return nil, fmt.Errorf("create student: %w", err)
		}
	}

	// Captured once so the stored and returned timestamps agree.
	checkinTime := time.Now().UTC()

	rec := Checkin{
		SessionID:   sessionID,
		StudentID:   studentID,
		Status:      "present",
		CheckinTime: checkinTime,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO attendance (session_id, student_id, status, checkin_time)
		VALUES ($1, $2, 'present', $3)
		RETURNING attendance_id
	`, sessionID, studentID, checkinTime).Scan(&rec.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrAlreadyCheckedIn
		}
		return nil, fmt.Errorf("insert attendance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit submit: %w", err)
	}
	return &rec, nil
}
