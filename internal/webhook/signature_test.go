package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureRoundtrip(t *testing.T) {
	body := []byte(`{"action":"opened","repository":{"full_name":"octo/repo"}}`)
	secret := "hook-secret"

	assert.True(t, VerifySignature(body, sign(body, secret), secret))
}

func TestVerifySignatureRejectsAlteredBody(t *testing.T) {
	body := []byte(`{"action":"opened"}`)
	secret := "hook-secret"
	sig := sign(body, secret)

	altered := append([]byte(nil), body...)
	altered[0] ^= 0x01
	assert.False(t, VerifySignature(altered, sig, secret))
}

func TestVerifySignatureRejectsAlteredSignature(t *testing.T) {
	body := []byte(`{"action":"opened"}`)
	secret := "hook-secret"
	sig := []byte(sign(body, secret))

	sig[len(sig)-1] ^= 0x01
	assert.False(t, VerifySignature(body, string(sig), secret))
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"action":"opened"}`)
	assert.False(t, VerifySignature(body, sign(body, "secret-a"), "secret-b"))
}

func TestVerifySignatureMissingInputs(t *testing.T) {
	body := []byte(`{}`)
	assert.False(t, VerifySignature(body, "", "secret"))
	assert.False(t, VerifySignature(body, sign(body, "secret"), ""))
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	require.NoError(t, err)
	b, err := GenerateSecret()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
