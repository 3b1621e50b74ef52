package executor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/termbridge/termbridge/internal/core/models"
)

// DefaultSubmitTimeout bounds one tmux round-trip.
const DefaultSubmitTimeout = 10 * time.Second

// Tmux submits commands by pasting them into a tmux session's active pane.
// Text goes through a named buffer (load-buffer/paste-buffer) so arbitrary
// command content never hits send-keys quoting rules.
type Tmux struct {
	// Session is the target tmux session name.
	Session string
	// Timeout for a single submit. Zero means DefaultSubmitTimeout.
	Timeout time.Duration
}

// NewTmux creates a tmux adapter targeting the named session.
func NewTmux(session string) *Tmux {
	return &Tmux{Session: session}
}

// Submit pastes the command into the pane and presses Enter.
func (t *Tmux) Submit(ctx context.Context, command string, sess *models.Session) error {
	timeout := t.Timeout
	if timeout == 0 {
		timeout = DefaultSubmitTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := t.Session
	if target == "" {
		return fmt.Errorf("no tmux session configured")
	}

	if err := t.run(ctx, nil, "has-session", "-t", target); err != nil {
		return fmt.Errorf("tmux session %q not running: %w", target, err)
	}

	bufName := fmt.Sprintf("termbridge-%d", time.Now().UnixNano())
	if err := t.run(ctx, strings.NewReader(command), "load-buffer", "-b", bufName, "-"); err != nil {
		return fmt.Errorf("failed to load tmux buffer: %w", err)
	}
	defer func() {
		_ = t.run(context.Background(), nil, "delete-buffer", "-b", bufName)
	}()

	if err := t.run(ctx, nil, "paste-buffer", "-b", bufName, "-t", target); err != nil {
		return fmt.Errorf("failed to paste tmux buffer: %w", err)
	}
	if err := t.run(ctx, nil, "send-keys", "-t", target, "Enter"); err != nil {
		return fmt.Errorf("failed to send enter: %w", err)
	}
	return nil
}

func (t *Tmux) run(ctx context.Context, stdin *strings.Reader, args ...string) error {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("tmux %s: %v (%s)", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
