package webhook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign(t *testing.T) {
	payload := []byte(`{"event":"task.created","data":{"id":"t-1"}}`)

	sig := Sign(payload, "secret-1")

	require.True(t, strings.HasPrefix(sig, SignaturePrefix))
	// sha256 hex digest after the prefix
	assert.Len(t, strings.TrimPrefix(sig, SignaturePrefix), 64)

	// Deterministic for the same inputs.
	assert.Equal(t, sig, Sign(payload, "secret-1"))

	// Different secret, different signature.
	assert.NotEqual(t, sig, Sign(payload, "secret-2"))
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"event":"task.created","data":{"id":"t-1"}}`)
	secret := "test-secret"
	valid := Sign(payload, secret)

	tests := []struct {
		name      string
		payload   []byte
		secret    string
		signature string
		want      bool
	}{
		{
			name:      "valid signature",
			payload:   payload,
			secret:    secret,
			signature: valid,
			want:      true,
		},
		{
			name:      "wrong secret",
			payload:   payload,
			secret:    "other-secret",
			signature: valid,
			want:      false,
		},
		{
			name:      "tampered payload",
			payload:   []byte(`{"event":"task.created","data":{"id":"t-2"}}`),
			secret:    secret,
			signature: valid,
			want:      false,
		},
		{
			name:      "missing prefix",
			payload:   payload,
			secret:    secret,
			signature: strings.TrimPrefix(valid, SignaturePrefix),
			want:      false,
		},
		{
			name:      "empty signature",
			payload:   payload,
			secret:    secret,
			signature: "",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifySignature(tt.payload, tt.secret, tt.signature))
		})
	}
}

func TestVerifySignatureSingleByteFlip(t *testing.T) {
	payload := []byte(`{"event":"task.created","data":{"id":"t-1"}}`)
	secret := "test-secret"
	valid := Sign(payload, secret)

	for i := 0; i < len(payload); i++ {
		flipped := make([]byte, len(payload))
		copy(flipped, payload)
		flipped[i] ^= 0x01

		assert.False(t, VerifySignature(flipped, secret, valid),
			"flip at byte %d must invalidate the signature", i)
	}
}
