package trust

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanasol-ws/dualauth/internal/token"
)

func newSelfSignedToken(t *testing.T) (*token.Decoded, ed25519.PrivateKey) {
	t.Helper()
	public, private, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	header := &token.Header{
		Algorithm: token.AlgorithmEdDSA,
		Type:      token.TypeJWT,
		JWK:       token.NewEmbeddedKey(public),
	}
	claims := &token.Claims{
		Subject:   "player-1",
		Issuer:    "https://sessions.sanasol.ws",
		IssuedAt:  1767225600,
		ExpiresAt: 4102444800,
		TokenID:   "jti-1",
	}

	signingInput, err := token.SigningInput(header, claims)
	require.NoError(t, err)
	compact := token.Compact(signingInput, ed25519.Sign(private, signingInput))

	decoded, err := token.DecodeUnverified(compact)
	require.NoError(t, err)
	return decoded, private
}

func TestIsSelfSigned(t *testing.T) {
	decoded, _ := newSelfSignedToken(t)
	assert.True(t, IsSelfSigned(decoded.Header))

	assert.False(t, IsSelfSigned(nil))
	assert.False(t, IsSelfSigned(&token.Header{Algorithm: token.AlgorithmEdDSA, KeyID: "kid-1"}))
	assert.False(t, IsSelfSigned(&token.Header{
		Algorithm: token.AlgorithmEdDSA,
		JWK:       &token.EmbeddedKey{KeyType: "EC", Curve: "P-256", X: "AA"},
	}))
}

func TestVerifyEmbedded(t *testing.T) {
	decoded, _ := newSelfSignedToken(t)
	assert.NoError(t, VerifyEmbedded(decoded))
}

func TestVerifyEmbedded_TamperedSignature(t *testing.T) {
	decoded, _ := newSelfSignedToken(t)
	decoded.Signature[0] ^= 0xFF
	assert.ErrorIs(t, VerifyEmbedded(decoded), ErrSignatureInvalid)
}

func TestVerifyEmbedded_SwappedKey(t *testing.T) {
	// A forged token: claims signed by one key, header advertising another
	decoded, _ := newSelfSignedToken(t)
	otherPublic, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	decoded.Header.JWK.X = base64.RawURLEncoding.EncodeToString(otherPublic)
	assert.ErrorIs(t, VerifyEmbedded(decoded), ErrSignatureInvalid)
}

func TestVerifyEmbedded_NotSelfSigned(t *testing.T) {
	decoded := &token.Decoded{
		Header: &token.Header{Algorithm: token.AlgorithmEdDSA, KeyID: "kid-1"},
	}
	assert.ErrorIs(t, VerifyEmbedded(decoded), ErrUnknownKey)
}

func TestVerifyEmbedded_IgnoresPrivateScalar(t *testing.T) {
	// A header may carry d; verification only ever reads the public point
	decoded, private := newSelfSignedToken(t)
	decoded.Header.JWK.D = base64.RawURLEncoding.EncodeToString(private.Seed())
	assert.NoError(t, VerifyEmbedded(decoded))
}

func TestBypassPolicy(t *testing.T) {
	selfSigned, _ := newSelfSignedToken(t)
	kidToken := &token.Decoded{
		Header: &token.Header{Algorithm: token.AlgorithmEdDSA, KeyID: "kid-1"},
	}

	enabled := NewBypassPolicy(true)
	assert.True(t, enabled.ShouldBypassExchange(selfSigned))
	assert.False(t, enabled.ShouldBypassExchange(kidToken))

	disabled := NewBypassPolicy(false)
	assert.False(t, disabled.ShouldBypassExchange(selfSigned))
}
