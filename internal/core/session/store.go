package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/termbridge/termbridge/internal/core/db"
	"github.com/termbridge/termbridge/internal/core/models"
)

// ErrNotFound covers unknown, expired, and exhausted sessions alike; callers
// drop the command without distinguishing why.
var ErrNotFound = errors.New("session not found")

// How many times Create retries token generation when it collides with a
// live session's token.
const maxTokenAttempts = 5

// Metadata captures the notification context a session is created for.
type Metadata struct {
	Channel     string
	WorkingDir  string
	Description string
}

// Store owns session persistence. Other components only read through it.
type Store struct {
	db          *db.DB
	ttl         time.Duration
	maxCommands int
	now         func() time.Time // swapped in tests
}

// NewStore creates a session store with the given TTL and command budget.
func NewStore(database *db.DB, ttl time.Duration, maxCommands int) *Store {
	return &Store{
		db:          database,
		ttl:         ttl,
		maxCommands: maxCommands,
		now:         time.Now,
	}
}

// Create allocates an id and token, stamps the TTL, and persists the session.
// Token collisions with a live session regenerate rather than resolve
// ambiguously.
func (s *Store) Create(meta Metadata) (*models.Session, error) {
	now := s.now()
	sess := &models.Session{
		ID:           uuid.NewString(),
		Channel:      meta.Channel,
		WorkingDir:   meta.WorkingDir,
		Description:  meta.Description,
		Status:       models.SessionWaiting,
		CommandCount: 0,
		MaxCommands:  s.maxCommands,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := GenerateToken()
		if err != nil {
			return nil, err
		}
		sess.Token = token

		err = s.db.InsertSession(sess)
		if err == nil {
			return sess, nil
		}
		if db.IsTokenConflict(err) {
			log.Printf("session: token %s collides with a live session, regenerating", token)
			continue
		}
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	return nil, fmt.Errorf("failed to allocate a unique token after %d attempts", maxTokenAttempts)
}

// ResolveToken maps a human-typed token to a session id.
func (s *Store) ResolveToken(token string) (string, error) {
	sess, err := s.db.GetSessionByToken(token)
	if err != nil {
		if !errors.Is(err, db.ErrNoRow) {
			// Storage failure reads as not-found: fail closed.
			log.Printf("session: token lookup failed: %v", err)
		}
		return "", ErrNotFound
	}
	return sess.ID, nil
}

// Validate loads a session and checks it is still usable. An expired record
// is deleted on the spot; an exhausted one is kept (inspectable but inert).
func (s *Store) Validate(id string) (*models.Session, error) {
	sess, err := s.db.GetSession(id)
	if err != nil {
		if !errors.Is(err, db.ErrNoRow) {
			log.Printf("session: load failed for %s: %v", id, err)
		}
		return nil, ErrNotFound
	}

	if sess.Expired(s.now()) {
		if err := s.db.DeleteSession(id); err != nil {
			log.Printf("session: failed to delete expired session %s: %v", id, err)
		}
		return nil, ErrNotFound
	}
	if sess.Exhausted() {
		return nil, ErrNotFound
	}
	return sess, nil
}

// RecordUsage counts one successfully forwarded command against the session.
// Not idempotent: calling twice for the same command over-counts.
func (s *Store) RecordUsage(id string) error {
	if err := s.db.RecordSessionUsage(id, s.now()); err != nil {
		return fmt.Errorf("failed to record session usage: %w", err)
	}
	return nil
}

// Delete removes a session outright. Used to roll back when notification
// dispatch fails after the session was created.
func (s *Store) Delete(id string) error {
	return s.db.DeleteSession(id)
}

// Get loads a session without the usability checks Validate applies.
func (s *Store) Get(id string) (*models.Session, error) {
	sess, err := s.db.GetSession(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return sess, nil
}

// List returns every persisted session, newest first.
func (s *Store) List() ([]models.Session, error) {
	return s.db.ListSessions()
}

// SweepExpired removes every session past its TTL and returns the count.
func (s *Store) SweepExpired() (int, error) {
	return s.db.DeleteExpiredSessions(s.now())
}

// RunSweeper deletes expired sessions on a fixed interval until ctx is done,
// so stale records disappear even when nothing ever touches them again.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepExpired()
			if err != nil {
				log.Printf("session: sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("session: swept %d expired session(s)", n)
			}
		}
	}
}
