package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		full_name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS modules (
		module_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		module_code TEXT NOT NULL UNIQUE,
		module_name TEXT NOT NULL,
		lecturer_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
		planned_weeks INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS module_students (
		module_id BIGINT NOT NULL REFERENCES modules(module_id) ON DELETE CASCADE,
		student_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
		added_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (module_id, student_id)
	)`,
	`CREATE TABLE IF NOT EXISTS app_runs (
		run_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		session_seed TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		session_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		module_id BIGINT NOT NULL REFERENCES modules(module_id) ON DELETE CASCADE,
		week_number INTEGER NOT NULL,
		session_date DATE NOT NULL,
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'ended')),
		run_id BIGINT REFERENCES app_runs(run_id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		ended_at TIMESTAMPTZ
	)`,
	// One open session per module at a time.
	`CREATE UNIQUE INDEX IF NOT EXISTS sessions_one_active_per_module
		ON sessions (module_id) WHERE status = 'active'`,
	`CREATE TABLE IF NOT EXISTS attendance (
		attendance_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		session_id BIGINT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
		student_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT 'present',
		checkin_time TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (session_id, student_id)
	)`,
	`CREATE INDEX IF NOT EXISTS attendance_student_checkin_idx
		ON attendance (student_id, checkin_time DESC)`,
}

// EnsureSchema creates all tables if they are missing. Safe to run at every
// startup.
func EnsureSchema(ctx context.Context, conn *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// RecordAppRun inserts a row identifying this process start and returns its id.
// Sessions opened while the process lives reference it.
func RecordAppRun(ctx context.Context, conn *sql.DB) (int64, error) {
	var runID int64
	err := conn.QueryRowContext(ctx, `
		INSERT INTO app_runs (session_seed)
		VALUES ($1)
		RETURNING run_id
	`, uuid.NewString()).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("record app run: %w", err)
	}
	return runID, nil
}
