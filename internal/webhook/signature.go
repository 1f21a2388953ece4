package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignaturePrefix is the scheme tag carried in the signature header.
const SignaturePrefix = "sha256="

// Sign computes the signature the task API attaches to a delivery:
// HMAC-SHA256 over the raw request body, hex encoded, with the scheme
// prefix.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature header against the raw
// body bytes. The comparison is constant time. Callers must pass the
// body exactly as read off the wire: re-serializing parsed JSON is not
// guaranteed to reproduce the original byte sequence.
func VerifySignature(payload []byte, secret, receivedSignature string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(receivedSignature))
}
