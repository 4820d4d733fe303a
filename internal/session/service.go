package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"oqas/internal/db"
)

var (
	ErrModuleNotFound  = errors.New("module not found")
	ErrAlreadyOpen     = errors.New("module already has an active session")
	ErrNoActiveSession = errors.New("no active session")
)

// Session is a single scheduled class meeting of a module.
type Session struct {
	SessionID   int64      `json:"session_id"`
	ModuleID    int64      `json:"module_id"`
	WeekNumber  int        `json:"week_number"`
	SessionDate time.Time  `json:"session_date"`
	Status      string     `json:"status"`
	RunID       *int64     `json:"run_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// StartedSession bundles a freshly opened session with its check-in token and
// QR code.
type StartedSession struct {
	Session
	Token      string `json:"token"`
	CheckinURL string `json:"checkin_url"`
	QRPNG      string `json:"qr_png_base64"`
}

// Service owns session lifecycle: opening, closing, and looking up the active
// session of a module. The attendance core only reads session state.
type Service struct {
	db    *sql.DB
	qr    *QRIssuer
	runID int64
}

func NewService(conn *sql.DB, qr *QRIssuer, runID int64) *Service {
	return &Service{db: conn, qr: qr, runID: runID}
}

// Start opens a session for the module. At most one session per module may be
// active; the partial unique index on sessions is the authoritative guard, the
// pre-check just yields the friendly error.
func (s *Service) Start(ctx context.Context, moduleID int64, weekNumber int) (*StartedSession, error) {
	if weekNumber < 1 {
		return nil, fmt.Errorf("week number must be positive")
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM modules WHERE module_id = $1)
	`, moduleID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check module: %w", err)
	}
	if !exists {
		return nil, ErrModuleNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin start tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var open bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sessions WHERE module_id = $1 AND status = 'active'
		)
	`, moduleID).Scan(&open)
	if err != nil {
		return nil, fmt.Errorf("check active session: %w", err)
	}
	if open {
		return nil, ErrAlreadyOpen
	}

	var out StartedSession
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sessions (module_id, week_number, session_date, status, run_id)
		VALUES ($1, $2, CURRENT_DATE, 'active', $3)
		RETURNING session_id, module_id, week_number, session_date, status, run_id, created_at
	`, moduleID, weekNumber, s.runID).Scan(
		&out.SessionID, &out.ModuleID, &out.WeekNumber, &out.SessionDate,
		&out.Status, &out.RunID, &out.CreatedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrAlreadyOpen
		}
		return nil, fmt.Errorf("insert session: %w", err)
	}

	// Token and QR are produced before the commit, so a signing or encoding
	// failure rolls the session back instead of leaving it open without a
	// scannable code.
	if err := s.attachToken(&out); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit start: %w", err)
	}
	return &out, nil
}

// attachToken signs a fresh check-in token for the session and renders its QR.
func (s *Service) attachToken(out *StartedSession) error {
	token, err := s.qr.IssueSessionToken(out.ModuleID, out.SessionID, s.runID, out.SessionDate.Format("2006-01-02"))
	if err != nil {
		return err
	}
	out.Token = token
	out.CheckinURL = s.qr.CheckinURL(token)
	if out.QRPNG, err = s.qr.QRPNGBase64(out.CheckinURL); err != nil {
		return err
	}
	return nil
}

// Close ends an active session. Closing an already ended or unknown session
// yields ErrNoActiveSession.
func (s *Service) Close(ctx context.Context, sessionID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = 'ended', ended_at = now()
		WHERE session_id = $1 AND status = 'active'
	`, sessionID)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close session rows: %w", err)
	}
	if affected == 0 {
		return ErrNoActiveSession
	}
	return nil
}

// Active returns the currently open session of a module with a freshly issued
// check-in token, so a lecturer can recover the QR after a page reload or a
// token expiry without closing the session.
func (s *Service) Active(ctx context.Context, moduleID int64) (*StartedSession, error) {
	var out StartedSession
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, module_id, week_number, session_date, status, run_id, created_at, ended_at
		FROM sessions
		WHERE module_id = $1 AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1
	`, moduleID).Scan(
		&out.SessionID, &out.ModuleID, &out.WeekNumber, &out.SessionDate,
		&out.Status, &out.RunID, &out.CreatedAt, &out.EndedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("load active session: %w", err)
	}
	if err := s.attachToken(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
