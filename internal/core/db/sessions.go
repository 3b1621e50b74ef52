package db

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/termbridge/termbridge/internal/core/models"
)

// ErrNoRow is returned when a lookup matches nothing.
var ErrNoRow = errors.New("no matching row")

// IsTokenConflict reports whether err is the UNIQUE violation raised when two
// live sessions would share a token.
func IsTokenConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "sessions.token")
}

// InsertSession persists a newly created session.
func (db *DB) InsertSession(s *models.Session) error {
	_, err := db.conn.Exec(`
		INSERT INTO sessions (id, token, channel, working_dir, description, status,
			command_count, max_commands, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Token, s.Channel, s.WorkingDir, s.Description, s.Status,
		s.CommandCount, s.MaxCommands, s.CreatedAt, s.ExpiresAt)
	return err
}

const sessionColumns = `id, token, channel, working_dir, description, status,
	command_count, max_commands, created_at, expires_at, last_command_at`

func scanSession(row interface{ Scan(...any) error }) (*models.Session, error) {
	var s models.Session
	var lastCommand sql.NullTime
	err := row.Scan(&s.ID, &s.Token, &s.Channel, &s.WorkingDir, &s.Description,
		&s.Status, &s.CommandCount, &s.MaxCommands, &s.CreatedAt, &s.ExpiresAt,
		&lastCommand)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRow
		}
		return nil, err
	}
	if lastCommand.Valid {
		s.LastCommandAt = lastCommand.Time
	}
	return &s, nil
}

// GetSession loads one session by id.
func (db *DB) GetSession(id string) (*models.Session, error) {
	row := db.conn.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// GetSessionByToken resolves a token to its session via the token index.
func (db *DB) GetSessionByToken(token string) (*models.Session, error) {
	row := db.conn.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE token = ?`, token)
	return scanSession(row)
}

// RecordSessionUsage increments the command counter and stamps the
// last-command time. Callers guarantee at most one call per executed command.
func (db *DB) RecordSessionUsage(id string, at time.Time) error {
	res, err := db.conn.Exec(`
		UPDATE sessions
		SET command_count = command_count + 1, last_command_at = ?, status = ?
		WHERE id = ?
	`, at, models.SessionActive, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNoRow
	}
	return nil
}

// DeleteSession removes a session record.
func (db *DB) DeleteSession(id string) error {
	_, err := db.conn.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// DeleteExpiredSessions removes every session whose TTL elapsed before now
// and returns how many were swept.
func (db *DB) DeleteExpiredSessions(now time.Time) (int, error) {
	res, err := db.conn.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ListSessions returns all sessions, newest first.
func (db *DB) ListSessions() ([]models.Session, error) {
	rows, err := db.conn.Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
