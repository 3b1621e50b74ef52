// Package feishu renders and delivers outbound notification cards. The card
// carries the session token the user echoes back, plus interaction buttons.
package feishu

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cbroglie/mustache"
	"github.com/dustin/go-humanize"
	"github.com/termbridge/termbridge/internal/core/models"
	"github.com/termbridge/termbridge/internal/core/relay"
)

// DefaultCardBody is the mustache template for the card's main text block.
const DefaultCardBody = `**{{description}}**

Working directory: {{working_dir}}
Reply with ` + "`session #{{token}} <command>`" + ` to continue.
{{#expires_in}}This session expires {{expires_in}} and accepts up to {{max_commands}} commands.{{/expires_in}}`

// Notifier posts messages to a configured incoming-webhook URL.
type Notifier struct {
	WebhookURL string
	// CardBody overrides DefaultCardBody when set.
	CardBody string
	Client   *http.Client
}

// New creates a notifier for the given webhook URL.
func New(webhookURL string) *Notifier {
	return &Notifier{
		WebhookURL: webhookURL,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// SendSessionCard dispatches the interactive card announcing a new session.
func (n *Notifier) SendSessionCard(sess *models.Session) error {
	body, err := n.renderBody(sess)
	if err != nil {
		// Fall back to a plain line rather than losing the notification.
		body = fmt.Sprintf("Task ready. Reply with `session #%s <command>` to continue.", sess.Token)
	}

	card := map[string]any{
		"header": map[string]any{
			"title": map[string]any{"tag": "plain_text", "content": "Task finished"},
			"template": "blue",
		},
		"elements": []any{
			map[string]any{
				"tag":  "div",
				"text": map[string]any{"tag": "lark_md", "content": body},
			},
			map[string]any{
				"tag": "action",
				"actions": []any{
					cardButton("View details", "view_details", sess.ID),
					cardButton("Copy session ID", "copy_session_id", sess.ID),
					cardButton("Go to terminal", "goto_terminal", sess.ID),
				},
			},
		},
	}
	return n.post(map[string]any{"msg_type": "interactive", "card": card})
}

// SendText posts a plain text message (used for failure notifications).
func (n *Notifier) SendText(text string) error {
	return n.post(map[string]any{
		"msg_type": "text",
		"content":  map[string]any{"text": text},
	})
}

// QueueObserver adapts the notifier to relay queue notifications: permanent
// failures are reported back to the channel.
func (n *Notifier) QueueObserver(note relay.Notification) {
	if note.Kind != relay.NotifyFailed {
		return
	}
	msg := fmt.Sprintf("Command failed permanently after %d attempts: %s\n%s",
		note.Command.Retries, note.Command.Text, note.Err)
	if err := n.SendText(msg); err != nil {
		// Nothing left to do; the failure is already persisted for audit.
		log.Printf("feishu: failed to deliver failure notification: %v", err)
	}
}

func (n *Notifier) renderBody(sess *models.Session) (string, error) {
	tmpl := n.CardBody
	if tmpl == "" {
		tmpl = DefaultCardBody
	}
	return mustache.Render(tmpl, map[string]any{
		"description":  sess.Description,
		"working_dir":  sess.WorkingDir,
		"token":        sess.Token,
		"max_commands": sess.MaxCommands,
		"expires_in":   humanize.Time(sess.ExpiresAt),
	})
}

func cardButton(label, action, sessionID string) map[string]any {
	return map[string]any{
		"tag":  "button",
		"text": map[string]any{"tag": "plain_text", "content": label},
		"type": "default",
		"value": map[string]any{
			"action":     action,
			"session_id": sessionID,
		},
	}
}

func (n *Notifier) post(payload any) error {
	if n.WebhookURL == "" {
		return fmt.Errorf("no webhook URL configured")
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Post(n.WebhookURL, "application/json", bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	var wr webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err == nil && wr.Code != 0 {
		return fmt.Errorf("webhook rejected message: code=%d msg=%s", wr.Code, wr.Msg)
	}
	return nil
}
