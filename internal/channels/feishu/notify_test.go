package feishu

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/termbridge/termbridge/internal/core/models"
	"github.com/termbridge/termbridge/internal/core/relay"
)

func captureServer(t *testing.T) (*httptest.Server, *[][]byte) {
	t.Helper()
	var bodies [][]byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"msg":"success"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &bodies
}

func testSession() *models.Session {
	return &models.Session{
		ID:          "6a6f1c9e-0b9f-4a57-9d35-1f6c7b3e9a01",
		Token:       "AB12CD34",
		Channel:     "feishu",
		WorkingDir:  "/srv/app",
		Description: "build finished",
		MaxCommands: 10,
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(24 * time.Hour),
	}
}

func TestSendSessionCard(t *testing.T) {
	srv, bodies := captureServer(t)
	n := New(srv.URL)

	if err := n.SendSessionCard(testSession()); err != nil {
		t.Fatalf("SendSessionCard: %v", err)
	}

	if len(*bodies) != 1 {
		t.Fatalf("got %d webhook posts, want 1", len(*bodies))
	}
	raw := string((*bodies)[0])

	var payload map[string]any
	if err := json.Unmarshal((*bodies)[0], &payload); err != nil {
		t.Fatalf("webhook payload is not JSON: %v", err)
	}
	if payload["msg_type"] != "interactive" {
		t.Errorf("msg_type = %v, want interactive", payload["msg_type"])
	}
	// The card must carry the token the user echoes back, and all three
	// interaction buttons.
	if !strings.Contains(raw, "AB12CD34") {
		t.Error("card does not mention the session token")
	}
	for _, action := range []string{"view_details", "copy_session_id", "goto_terminal"} {
		if !strings.Contains(raw, action) {
			t.Errorf("card is missing %s button", action)
		}
	}
	if !strings.Contains(raw, "build finished") {
		t.Error("card does not mention the task description")
	}
}

func TestSendText(t *testing.T) {
	srv, bodies := captureServer(t)
	n := New(srv.URL)

	if err := n.SendText("hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if len(*bodies) != 1 || !strings.Contains(string((*bodies)[0]), "hello") {
		t.Fatalf("unexpected webhook posts: %v", bodies)
	}
}

func TestPostRejectedByPlatform(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":19001,"msg":"invalid receive_id"}`))
	}))
	defer srv.Close()

	n := New(srv.URL)
	if err := n.SendText("hello"); err == nil {
		t.Error("SendText succeeded despite platform rejection")
	}
}

func TestQueueObserverReportsOnlyFailures(t *testing.T) {
	srv, bodies := captureServer(t)
	n := New(srv.URL)

	cmd := models.QueuedCommand{ID: "c1", Text: "make deploy", Retries: 3}
	n.QueueObserver(relay.Notification{Kind: relay.NotifyQueued, Command: cmd})
	n.QueueObserver(relay.Notification{Kind: relay.NotifyCompleted, Command: cmd})
	if len(*bodies) != 0 {
		t.Fatalf("non-failure notifications produced %d posts", len(*bodies))
	}

	n.QueueObserver(relay.Notification{Kind: relay.NotifyFailed, Command: cmd, Err: "tmux gone"})
	if len(*bodies) != 1 {
		t.Fatalf("failure notification produced %d posts, want 1", len(*bodies))
	}
	if !strings.Contains(string((*bodies)[0]), "make deploy") {
		t.Error("failure message does not mention the command")
	}
}

func TestSendWithoutWebhookURL(t *testing.T) {
	n := New("")
	if err := n.SendText("hello"); err == nil {
		t.Error("SendText succeeded with no webhook URL")
	}
}
