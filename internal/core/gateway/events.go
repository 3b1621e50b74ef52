package gateway

// Inbound payload shapes for the webhook callback. The platform wraps every
// event in an envelope; url_verification arrives exactly once, when the
// subscription is activated.
type envelope struct {
	Type      string      `json:"type"`
	Challenge string      `json:"challenge,omitempty"`
	Event     *innerEvent `json:"event,omitempty"`
}

type innerEvent struct {
	Type      string      `json:"type"`
	Text      string      `json:"text"`
	SenderID  string      `json:"open_id"`
	MessageID string      `json:"message_id"`
	Action    *cardAction `json:"action,omitempty"`
}

type cardAction struct {
	Value actionValue `json:"value"`
}

type actionValue struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
}

// Inner event types.
const (
	eventMessage    = "message"
	eventCardAction = "card_action"
)

// Interaction action discriminants carried in card button values.
const (
	ActionViewDetails   = "view_details"
	ActionCopySessionID = "copy_session_id"
	ActionGotoTerminal  = "goto_terminal"
)

// CommandEvent is a fully validated command raised toward the relay queue.
type CommandEvent struct {
	SessionID string
	Command   string
	Channel   string
	SenderID  string
	MessageID string
}

// Interaction is a card button press raised toward a registered handler.
type Interaction struct {
	Action    string
	SessionID string
	ActorID   string
}

// InteractionHandler handles one card action kind.
type InteractionHandler func(Interaction)
