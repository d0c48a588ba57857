package credentials

import (
	"crypto/sha256"
	"fmt"
)

// Name is the credential type the node requires.
const Name = "medullarApi"

// Credential holds the Medullar API key used for every upstream call.
type Credential struct {
	APIKey string
}

// Fingerprint returns the SHA-256 hex digest of an API key. It is stable and
// safe to use as a rate limit or audit key.
func Fingerprint(key string) string {
	h := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", h)
}

// SafePrefix returns a safe-to-log prefix of an API key (never the full key).
func SafePrefix(key string) string {
	if len(key) > 8 {
		return key[:8] + "..."
	}
	return "***"
}
