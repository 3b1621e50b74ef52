package db

func (db *DB) initSchema() error {
	schema := `
	-- Sessions table. The UNIQUE token column is both the resolution index
	-- and the collision guard for concurrently live sessions.
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		token TEXT UNIQUE NOT NULL,
		channel TEXT NOT NULL,
		working_dir TEXT,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'waiting',
		command_count INTEGER NOT NULL DEFAULT 0,
		max_commands INTEGER NOT NULL DEFAULT 10,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		last_command_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);

	-- Relay queue table. Completed rows are retained for an audit window,
	-- failed rows indefinitely.
	CREATE TABLE IF NOT EXISTS commands (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		text TEXT NOT NULL,
		channel TEXT,
		sender_id TEXT,
		message_id TEXT,
		status TEXT NOT NULL DEFAULT 'queued',
		retries INTEGER NOT NULL DEFAULT 0,
		max_retries INTEGER NOT NULL DEFAULT 3,
		retry_at DATETIME NOT NULL,
		queued_at DATETIME NOT NULL,
		executed_at DATETIME,
		completed_at DATETIME,
		failed_at DATETIME,
		last_error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_commands_status ON commands(status);
	CREATE INDEX IF NOT EXISTS idx_commands_session_id ON commands(session_id);
	CREATE INDEX IF NOT EXISTS idx_commands_queued_at ON commands(queued_at);
	`

	_, err := db.conn.Exec(schema)
	return err
}
