package models

import (
	"errors"
	"time"
)

// Session status values. Expired is derived from ExpiresAt and is only
// persisted when a record happens to be rewritten after the fact.
const (
	SessionWaiting = "waiting"
	SessionActive  = "active"
	SessionExpired = "expired"
)

// Session is a time- and usage-bounded authorization scope linking a
// dispatched notification to the right to submit further commands.
type Session struct {
	ID            string // UUID, allocated at notification time
	Token         string // 8-char uppercase alphanumeric, human-typeable
	Channel       string // originating notification channel tag
	WorkingDir    string // working directory captured at creation
	Description   string // task description shown on the notification card
	Status        string
	CommandCount  int
	MaxCommands   int
	CreatedAt     time.Time
	ExpiresAt     time.Time
	LastCommandAt time.Time // zero until the first command executes
}

// Validate checks if the session has required fields
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if s.Token == "" {
		return errors.New("session token is required")
	}
	return nil
}

// Expired reports whether the session's TTL has elapsed.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Exhausted reports whether the session has used up its command budget.
func (s *Session) Exhausted() bool {
	return s.CommandCount >= s.MaxCommands
}

// Usable reports whether a command may still be authorized against this
// session: not expired and not exhausted.
func (s *Session) Usable(now time.Time) bool {
	return !s.Expired(now) && !s.Exhausted()
}
