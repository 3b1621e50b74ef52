// Package relay holds the durable FIFO that decouples "command received"
// from "command executed", with bounded retry and a periodic drain loop.
package relay

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/termbridge/termbridge/internal/core/db"
	"github.com/termbridge/termbridge/internal/core/executor"
	"github.com/termbridge/termbridge/internal/core/models"
)

// SessionStore is the slice of the session store the queue needs: load a
// still-usable session for execution and count usage afterwards.
type SessionStore interface {
	Validate(id string) (*models.Session, error)
	RecordUsage(id string) error
}

// Notification kinds delivered to observers.
const (
	NotifyQueued    = "queued"
	NotifyCompleted = "completed"
	NotifyFailed    = "failed"
)

// Notification reports a queue item transition to registered observers.
type Notification struct {
	Kind    string
	Command models.QueuedCommand
	Err     string // set for NotifyFailed
}

// Observer receives queue notifications. Observers are called synchronously
// in registration order, so delivery is ordered within a tick.
type Observer func(Notification)

// AuditWindow is how long completed items are retained before Cleanup
// drops them. Failed items are kept indefinitely.
const AuditWindow = 24 * time.Hour

// Options tune the queue's timing and retry policy.
type Options struct {
	DrainInterval   time.Duration // how often the drain tick fires
	CleanupInterval time.Duration // how often completed items are purged
	RetryDelay      time.Duration // backoff unit; attempt n waits n*RetryDelay
	MaxRetries      int
}

func (o *Options) fill() {
	if o.DrainInterval == 0 {
		o.DrainInterval = 5 * time.Second
	}
	if o.CleanupInterval == 0 {
		o.CleanupInterval = time.Hour
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = time.Minute
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
}

// Queue is the relay queue. All state lives in the commands table; the queue
// itself only holds the drain machinery.
type Queue struct {
	db       *db.DB
	sessions SessionStore
	exec     executor.Adapter
	opts     Options

	// Single-flight guard for the drain loop: a tick that fires while the
	// previous one still runs is skipped entirely, never queued for later.
	drainMu sync.Mutex

	obsMu     sync.Mutex
	observers []Observer

	now func() time.Time // swapped in tests
}

// New creates a relay queue backed by the given database.
func New(database *db.DB, sessions SessionStore, exec executor.Adapter, opts Options) *Queue {
	opts.fill()
	return &Queue{
		db:       database,
		sessions: sessions,
		exec:     exec,
		opts:     opts,
		now:      time.Now,
	}
}

// Notify registers an observer for queue transitions.
func (q *Queue) Notify(obs Observer) {
	q.obsMu.Lock()
	defer q.obsMu.Unlock()
	q.observers = append(q.observers, obs)
}

func (q *Queue) publish(n Notification) {
	q.obsMu.Lock()
	observers := make([]Observer, len(q.observers))
	copy(observers, q.observers)
	q.obsMu.Unlock()

	for _, obs := range observers {
		obs(n)
	}
}

// Enqueue appends a validated command to the queue.
func (q *Queue) Enqueue(sessionID, text, channel, senderID, messageID string) (*models.QueuedCommand, error) {
	now := q.now()
	cmd := &models.QueuedCommand{
		ID:         fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8]),
		SessionID:  sessionID,
		Text:       text,
		Channel:    channel,
		SenderID:   senderID,
		MessageID:  messageID,
		Status:     models.CommandQueued,
		Retries:    0,
		MaxRetries: q.opts.MaxRetries,
		RetryAt:    now,
		QueuedAt:   now,
	}
	if err := q.db.InsertCommand(cmd); err != nil {
		return nil, fmt.Errorf("failed to enqueue command: %w", err)
	}
	log.Printf("relay: queued command %s for session %s", cmd.ID, sessionID)
	q.publish(Notification{Kind: NotifyQueued, Command: *cmd})
	return cmd, nil
}

// Run drives the drain and cleanup tickers until ctx is done. The tick in
// flight when ctx is cancelled finishes naturally; execution is never
// aborted mid-command.
func (q *Queue) Run(ctx context.Context) {
	drain := time.NewTicker(q.opts.DrainInterval)
	defer drain.Stop()
	cleanup := time.NewTicker(q.opts.CleanupInterval)
	defer cleanup.Stop()

	// Pick up anything persisted before a restart.
	q.Drain(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("relay: drain loop stopping")
			return
		case <-drain.C:
			q.Drain(ctx)
		case <-cleanup.C:
			if n, err := q.Cleanup(); err != nil {
				log.Printf("relay: cleanup failed: %v", err)
			} else if n > 0 {
				log.Printf("relay: purged %d completed command(s)", n)
			}
		}
	}
}

// Drain executes every currently due item sequentially, in queue order. If a
// previous drain is still running the call returns immediately: the skip is
// the policy, ticks never stack.
func (q *Queue) Drain(ctx context.Context) {
	if !q.drainMu.TryLock() {
		log.Printf("relay: drain already in flight, skipping tick")
		return
	}
	defer q.drainMu.Unlock()

	due, err := q.db.ListDueCommands(q.now())
	if err != nil {
		log.Printf("relay: failed to list due commands: %v", err)
		return
	}

	// Shutdown cancels the ticker, not the commands already being drained.
	execCtx := context.WithoutCancel(ctx)
	for i := range due {
		q.executeOne(execCtx, &due[i])
	}
}

func (q *Queue) executeOne(ctx context.Context, cmd *models.QueuedCommand) {
	cmd.Status = models.CommandExecuting
	cmd.ExecutedAt = q.now()
	if err := q.db.UpdateCommand(cmd); err != nil {
		log.Printf("relay: failed to persist executing state for %s: %v", cmd.ID, err)
	}

	err := q.submit(ctx, cmd)
	if err == nil {
		cmd.Status = models.CommandCompleted
		cmd.CompletedAt = q.now()
		cmd.LastError = ""
		if err := q.db.UpdateCommand(cmd); err != nil {
			log.Printf("relay: failed to persist completion of %s: %v", cmd.ID, err)
		}
		if err := q.sessions.RecordUsage(cmd.SessionID); err != nil {
			log.Printf("relay: %v", err)
		}
		log.Printf("relay: command %s completed", cmd.ID)
		q.publish(Notification{Kind: NotifyCompleted, Command: *cmd})
		return
	}

	cmd.Retries++
	cmd.LastError = err.Error()
	if cmd.Retries >= cmd.MaxRetries {
		cmd.Status = models.CommandFailed
		cmd.FailedAt = q.now()
		if err := q.db.UpdateCommand(cmd); err != nil {
			log.Printf("relay: failed to persist failure of %s: %v", cmd.ID, err)
		}
		log.Printf("relay: command %s failed permanently after %d attempts: %v", cmd.ID, cmd.Retries, err)
		q.publish(Notification{Kind: NotifyFailed, Command: *cmd, Err: cmd.LastError})
		return
	}

	// Linear backoff: the nth retry waits n backoff units.
	cmd.Status = models.CommandQueued
	cmd.RetryAt = q.now().Add(time.Duration(cmd.Retries) * q.opts.RetryDelay)
	if err := q.db.UpdateCommand(cmd); err != nil {
		log.Printf("relay: failed to persist requeue of %s: %v", cmd.ID, err)
	}
	log.Printf("relay: command %s failed (attempt %d/%d), retrying at %s: %v",
		cmd.ID, cmd.Retries, cmd.MaxRetries, cmd.RetryAt.Format(time.RFC3339), err)
}

func (q *Queue) submit(ctx context.Context, cmd *models.QueuedCommand) error {
	sess, err := q.sessions.Validate(cmd.SessionID)
	if err != nil {
		return fmt.Errorf("session %s no longer valid: %w", cmd.SessionID, err)
	}
	return q.exec.Submit(ctx, cmd.Text, sess)
}

// Cleanup drops completed items older than the audit window. Failed items
// are left alone.
func (q *Queue) Cleanup() (int, error) {
	return q.db.DeleteCompletedBefore(q.now().Add(-AuditWindow))
}

// Status returns queue depth per status.
func (q *Queue) Status() (map[string]int, error) {
	return q.db.CountCommandsByStatus()
}

// List returns every retained queue item, newest first.
func (q *Queue) List() ([]models.QueuedCommand, error) {
	return q.db.ListCommands()
}
