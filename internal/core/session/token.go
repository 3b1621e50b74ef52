package session

import (
	"crypto/rand"
	"fmt"
)

const (
	tokenLength  = 8
	tokenCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateToken returns a short uppercase alphanumeric token a user can echo
// back from a chat reply to identify a session.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = tokenCharset[int(b)%len(tokenCharset)]
	}
	return string(buf), nil
}
