// Package executor defines the contract for submitting an authorized command
// to the live interactive session, plus the tmux implementation.
package executor

import (
	"context"

	"github.com/termbridge/termbridge/internal/core/models"
)

// Adapter submits one command to the live session. Implementations must be
// safe to call repeatedly for the same command (the relay queue retries on
// failure) and must bound their own execution time so a stuck session never
// blocks the drain loop indefinitely.
type Adapter interface {
	Submit(ctx context.Context, command string, sess *models.Session) error
}
