package models

import "time"

// Queued command status values.
const (
	CommandQueued    = "queued"
	CommandExecuting = "executing"
	CommandCompleted = "completed"
	CommandFailed    = "failed"
)

// QueuedCommand is one pending (or retained) command in the relay queue.
type QueuedCommand struct {
	ID          string // relay-assigned, time-ordered with a random suffix
	SessionID   string
	Text        string
	Channel     string // origin channel tag
	SenderID    string // origin sender/user identifier
	MessageID   string // origin message identifier
	Status      string
	Retries     int
	MaxRetries  int
	RetryAt     time.Time // earliest next attempt
	QueuedAt    time.Time
	ExecutedAt  time.Time // zero until first attempt
	CompletedAt time.Time
	FailedAt    time.Time
	LastError   string
}

// Terminal reports whether the command will never execute again.
func (c *QueuedCommand) Terminal() bool {
	return c.Status == CommandCompleted || c.Status == CommandFailed
}

// Due reports whether a queued command is eligible for execution at now.
func (c *QueuedCommand) Due(now time.Time) bool {
	return c.Status == CommandQueued && !now.Before(c.RetryAt)
}
