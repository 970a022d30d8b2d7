// Package tokens generates invite tokens and their one-way hashes.
package tokens

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// TokenBytes is the entropy of a generated token.
const TokenBytes = 32

// domainTag separates invite hashes from any other use of BLAKE3 in the app.
var domainTag = []byte("huddle.invite.v1")

// Generate returns a new URL-safe raw token and its hash. Only the hash
// may be persisted.
func Generate() (raw, hash string, err error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, Hash(raw), nil
}

// Hash returns the hex BLAKE3 digest used to look up a presented token.
func Hash(raw string) string {
	h := blake3.New()
	_, _ = h.Write(domainTag)
	_, _ = h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil))
}
