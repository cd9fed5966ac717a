package util

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns a lowercase ULID, optionally prefixed.
func NewID(prefix string) string {
	id := strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String())
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

// ValidDocumentID accepts the ids minted by NewID and any other
// non-empty token of url-safe characters up to 64 bytes.
func ValidDocumentID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
