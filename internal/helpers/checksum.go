package helpers

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Bytes returns the hex-encoded SHA-256 digest of input. Used to
// identify script and module content in logs without dumping the content
// itself.
func SHA256Bytes(input []byte) string {
	hash := sha256.Sum256(input)
	return hex.EncodeToString(hash[:])
}

// ShortChecksum returns a 12-character prefix of the content digest, enough
// to tell modules apart in log lines.
func ShortChecksum(input []byte) string {
	return SHA256Bytes(input)[:12]
}
