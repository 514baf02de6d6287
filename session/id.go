package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	idBytes      = 16
	idEncodedLen = 22
)

var idEncoding = base64.RawURLEncoding.Strict()

// NewID returns a random 128-bit session id in unpadded base64url.
func NewID() (string, error) {
	var raw [idBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("session: read random: %w", err)
	}
	return idEncoding.EncodeToString(raw[:]), nil
}

// ValidID reports whether id has the exact shape NewID produces.
func ValidID(id string) bool {
	if len(id) != idEncodedLen {
		return false
	}
	raw, err := idEncoding.DecodeString(id)
	return err == nil && len(raw) == idBytes
}
