package db

import (
	"database/sql"
	"errors"
	"time"

	"github.com/termbridge/termbridge/internal/core/models"
)

// InsertCommand appends a command to the relay queue.
func (db *DB) InsertCommand(c *models.QueuedCommand) error {
	_, err := db.conn.Exec(`
		INSERT INTO commands (id, session_id, text, channel, sender_id, message_id,
			status, retries, max_retries, retry_at, queued_at, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.SessionID, c.Text, c.Channel, c.SenderID, c.MessageID,
		c.Status, c.Retries, c.MaxRetries, c.RetryAt, c.QueuedAt, c.LastError)
	return err
}

// UpdateCommand persists a state transition for one queue item.
func (db *DB) UpdateCommand(c *models.QueuedCommand) error {
	_, err := db.conn.Exec(`
		UPDATE commands
		SET status = ?, retries = ?, retry_at = ?, executed_at = ?,
			completed_at = ?, failed_at = ?, last_error = ?
		WHERE id = ?
	`, c.Status, c.Retries, c.RetryAt, nullTime(c.ExecutedAt),
		nullTime(c.CompletedAt), nullTime(c.FailedAt), c.LastError, c.ID)
	return err
}

const commandColumns = `id, session_id, text, channel, sender_id, message_id,
	status, retries, max_retries, retry_at, queued_at, executed_at,
	completed_at, failed_at, last_error`

func scanCommand(row interface{ Scan(...any) error }) (*models.QueuedCommand, error) {
	var c models.QueuedCommand
	var executed, completed, failed sql.NullTime
	err := row.Scan(&c.ID, &c.SessionID, &c.Text, &c.Channel, &c.SenderID,
		&c.MessageID, &c.Status, &c.Retries, &c.MaxRetries, &c.RetryAt,
		&c.QueuedAt, &executed, &completed, &failed, &c.LastError)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRow
		}
		return nil, err
	}
	if executed.Valid {
		c.ExecutedAt = executed.Time
	}
	if completed.Valid {
		c.CompletedAt = completed.Time
	}
	if failed.Valid {
		c.FailedAt = failed.Time
	}
	return &c, nil
}

// ListDueCommands returns the queued commands eligible to run at now, in
// queue order.
func (db *DB) ListDueCommands(now time.Time) ([]models.QueuedCommand, error) {
	rows, err := db.conn.Query(`
		SELECT `+commandColumns+` FROM commands
		WHERE status = ? AND retry_at <= ?
		ORDER BY queued_at ASC
	`, models.CommandQueued, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCommands(rows)
}

// ListCommands returns every retained queue item, newest first.
func (db *DB) ListCommands() ([]models.QueuedCommand, error) {
	rows, err := db.conn.Query(`SELECT ` + commandColumns + ` FROM commands ORDER BY queued_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCommands(rows)
}

func collectCommands(rows *sql.Rows) ([]models.QueuedCommand, error) {
	var out []models.QueuedCommand
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CountCommandsByStatus returns queue depth per status.
func (db *DB) CountCommandsByStatus() (map[string]int, error) {
	rows, err := db.conn.Query(`SELECT status, COUNT(*) FROM commands GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// DeleteCompletedBefore purges completed items older than the cutoff. Failed
// items are never purged here; they are kept for audit.
func (db *DB) DeleteCompletedBefore(cutoff time.Time) (int, error) {
	res, err := db.conn.Exec(`
		DELETE FROM commands WHERE status = ? AND completed_at <= ?
	`, models.CommandCompleted, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
