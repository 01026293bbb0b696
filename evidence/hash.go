package evidence

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashBytes computes the dedup key for raw image content.
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// HashMessage computes the dedup key for an email or text message from its
// sender, recipient, and body. The separator keeps field boundaries from
// colliding across different splits of the same concatenation.
func HashMessage(sender, recipient, body string) string {
	h := sha256.New()
	h.Write([]byte(sender))
	h.Write([]byte{0})
	h.Write([]byte(recipient))
	h.Write([]byte{0})
	h.Write([]byte(body))
	return hex.EncodeToString(h.Sum(nil))
}
