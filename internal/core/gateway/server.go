// Package gateway terminates inbound channel callbacks: it verifies
// authenticity, answers the activation handshake, and turns message events
// into validated command events for the relay queue.
package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/termbridge/termbridge/internal/core/extract"
	"github.com/termbridge/termbridge/internal/core/models"
	"github.com/termbridge/termbridge/internal/core/security"
	"github.com/termbridge/termbridge/internal/core/session"
)

// Verification header names (channel-specific, Lark-style).
const (
	headerTimestamp = "X-Lark-Request-Timestamp"
	headerNonce     = "X-Lark-Request-Nonce"
	headerSignature = "X-Lark-Signature"
)

// SessionValidator authorizes a resolved session id.
type SessionValidator interface {
	Validate(id string) (*models.Session, error)
}

// Gateway is the HTTP boundary. It never blocks on downstream work: accepted
// commands go into a bounded channel and the callback is acked immediately.
type Gateway struct {
	secret    string // empty disables signature verification
	channel   string // origin channel tag stamped onto command events
	extractor *extract.Extractor
	sessions  SessionValidator

	commands     chan CommandEvent
	interactions map[string]InteractionHandler
}

// New creates a gateway. secret may be empty, which skips signature
// verification (explicit opt-out for channels without one).
func New(secret, channel string, extractor *extract.Extractor, sessions SessionValidator, buffer int) *Gateway {
	if buffer <= 0 {
		buffer = 64
	}
	return &Gateway{
		secret:       secret,
		channel:      channel,
		extractor:    extractor,
		sessions:     sessions,
		commands:     make(chan CommandEvent, buffer),
		interactions: make(map[string]InteractionHandler),
	}
}

// Commands is the stream of validated command events.
func (g *Gateway) Commands() <-chan CommandEvent {
	return g.commands
}

// HandleInteraction registers the handler for one card action kind.
func (g *Gateway) HandleInteraction(action string, h InteractionHandler) {
	g.interactions[action] = h
}

// ServeHTTP implements the callback endpoint.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if g.secret != "" {
		if !g.verifySignature(r.Header, body) {
			log.Printf("gateway: signature mismatch from %s", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// Subscription activation handshake: echo the challenge.
	if env.Type == "url_verification" {
		writeJSON(w, http.StatusOK, map[string]string{"challenge": env.Challenge})
		return
	}

	if env.Event != nil {
		g.dispatch(env.Event)
	}

	// Callbacks are acked quickly and separately from any asynchronous
	// effect, even when the event produced no command.
	writeJSON(w, http.StatusOK, map[string]any{"code": 0, "msg": "success"})
}

// verifySignature recomputes sha256(timestamp + nonce + secret + body) and
// compares against the header-supplied signature.
func (g *Gateway) verifySignature(h http.Header, body []byte) bool {
	timestamp := h.Get(headerTimestamp)
	nonce := h.Get(headerNonce)
	signature := h.Get(headerSignature)
	if signature == "" {
		return false
	}
	sum := sha256.Sum256(append([]byte(timestamp+nonce+g.secret), body...))
	return hex.EncodeToString(sum[:]) == signature
}

func (g *Gateway) dispatch(ev *innerEvent) {
	switch ev.Type {
	case eventMessage:
		g.handleMessage(ev)
	case eventCardAction:
		g.handleCardAction(ev)
	default:
		log.Printf("gateway: ignoring event type %q", ev.Type)
	}
}

// handleMessage runs the command pipeline: extract, authorize, filter,
// raise. Every rejection is silent toward the sender; the callback was
// already going to be acked.
func (g *Gateway) handleMessage(ev *innerEvent) {
	extracted, ok := g.extractor.Extract(ev.Text)
	if !ok {
		return
	}

	if _, err := g.sessions.Validate(extracted.SessionID); err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			log.Printf("gateway: session validation failed: %v", err)
		}
		return
	}

	if !security.IsSafe(extracted.Command) {
		log.Printf("gateway: security filter rejected command from %s for session %s",
			ev.SenderID, extracted.SessionID)
		return
	}

	event := CommandEvent{
		SessionID: extracted.SessionID,
		Command:   extracted.Command,
		Channel:   g.channel,
		SenderID:  ev.SenderID,
		MessageID: ev.MessageID,
	}
	select {
	case g.commands <- event:
	default:
		// The consumer fell badly behind; dropping beats blocking the
		// callback response past the platform's timeout.
		log.Printf("gateway: command channel full, dropping command for session %s", extracted.SessionID)
	}
}

func (g *Gateway) handleCardAction(ev *innerEvent) {
	if ev.Action == nil {
		log.Printf("gateway: card action event without action payload")
		return
	}
	handler, ok := g.interactions[ev.Action.Value.Action]
	if !ok {
		log.Printf("gateway: no handler for action %q", ev.Action.Value.Action)
		return
	}
	handler(Interaction{
		Action:    ev.Action.Value.Action,
		SessionID: ev.Action.Value.SessionID,
		ActorID:   ev.SenderID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
