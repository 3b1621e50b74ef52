// Package extract turns free-form chat replies into commands bound to a
// session. It only reads sessions; resolution is delegated to the store.
package extract

import (
	"regexp"
	"strings"
)

// TokenResolver maps a human-typed token to a session id.
type TokenResolver interface {
	ResolveToken(token string) (string, error)
}

var (
	// "session AB12CD34", "session: AB12CD34", "会话 AB12CD34", "#AB12CD34"
	keywordTokenRe = regexp.MustCompile(`(?i)(?:session|会话)\s*[:：#]?\s*([A-Za-z0-9]{6,8})\b`)
	hashTokenRe    = regexp.MustCompile(`#([A-Za-z0-9]{6,8})\b`)
	uuidRe         = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

	// Imperative lead-ins stripped from the start of the remaining text.
	leadInRe     = regexp.MustCompile(`(?i)^(?:(?:please|pls|run|execute|exec)\b|请|运行|执行)[\s,:，：]*`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// Extracted is a reply successfully bound to a session.
type Extracted struct {
	SessionID string
	Command   string
}

// Extractor parses reply text from any channel.
type Extractor struct {
	resolver TokenResolver
}

// New creates an extractor that resolves tokens through r.
func New(r TokenResolver) *Extractor {
	return &Extractor{resolver: r}
}

// Extract finds a session reference in text and returns the referenced
// session id plus the cleaned command. ok is false when the message carries
// no resolvable reference or no command text survives cleaning; such
// messages are dropped upstream.
func (e *Extractor) Extract(text string) (Extracted, bool) {
	sessionID, found := e.findSession(text)
	if !found {
		return Extracted{}, false
	}

	command := cleanCommand(text)
	if command == "" {
		return Extracted{}, false
	}
	return Extracted{SessionID: sessionID, Command: command}, true
}

func (e *Extractor) findSession(text string) (string, bool) {
	// Token references first: keyword form, then the bare #TOKEN marker.
	var tokens []string
	for _, m := range keywordTokenRe.FindAllStringSubmatch(text, -1) {
		tokens = append(tokens, m[1])
	}
	for _, m := range hashTokenRe.FindAllStringSubmatch(text, -1) {
		tokens = append(tokens, m[1])
	}
	for _, token := range tokens {
		if id, err := e.resolver.ResolveToken(strings.ToUpper(token)); err == nil {
			return id, true
		}
	}
	if len(tokens) > 0 {
		// A token was quoted but resolves to nothing; do not fall through to
		// guessing, the reply is dropped.
		return "", false
	}

	// No token form anywhere: a raw UUID is taken as a session id directly.
	if id := uuidRe.FindString(text); id != "" {
		return id, true
	}
	return "", false
}

func cleanCommand(text string) string {
	text = keywordTokenRe.ReplaceAllString(text, "")
	text = hashTokenRe.ReplaceAllString(text, "")
	text = uuidRe.ReplaceAllString(text, "")

	text = strings.TrimSpace(text)
	for {
		stripped := leadInRe.ReplaceAllString(text, "")
		if stripped == text {
			break
		}
		text = strings.TrimSpace(stripped)
	}

	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
