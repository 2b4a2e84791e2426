package webhook

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature checks a GitHub-style payload signature: "sha256=" +
// hex(HMAC-SHA256(secret, body)) compared in constant time.  It must be
// fed the raw request body; re-serialising parsed JSON changes the byte
// sequence and breaks verification.  Returns false on a missing signature
// or empty secret, never an error.
func VerifySignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// GenerateSecret returns a new random webhook secret (32 bytes, hex).
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
