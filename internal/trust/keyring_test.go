package trust

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanasol-ws/dualauth/internal/token"
)

func TestKeyring_RefForToken(t *testing.T) {
	f := newVerifierFixture(t)
	keyring := f.verifier.keyring

	selfSigned, _ := newSelfSignedToken(t)
	ref := keyring.RefForToken(selfSigned)
	assert.Equal(t, KeyRefEmbedded, ref.Kind)
	require.NotNil(t, ref.Embedded)

	local := &token.Decoded{
		Header: &token.Header{Algorithm: token.AlgorithmEdDSA, KeyID: "kid-1"},
		Claims: &token.Claims{Issuer: "https://sessions.sanasol.ws"},
	}
	ref = keyring.RefForToken(local)
	assert.Equal(t, KeyRefLocal, ref.Kind)
	assert.Equal(t, "kid-1", ref.KeyID)

	official := &token.Decoded{
		Header: &token.Header{Algorithm: token.AlgorithmEdDSA, KeyID: "official-key-1"},
		Claims: &token.Claims{Issuer: "https://sessions.hytale.com"},
	}
	ref = keyring.RefForToken(official)
	assert.Equal(t, KeyRefOfficial, ref.Kind)
	assert.Equal(t, "https://sessions.hytale.com", ref.Issuer)

	foreign := &token.Decoded{
		Header: &token.Header{Algorithm: token.AlgorithmEdDSA, KeyID: "peer-kid"},
		Claims: &token.Claims{Issuer: "https://peer.example"},
	}
	ref = keyring.RefForToken(foreign)
	assert.Equal(t, KeyRefForeign, ref.Kind)
	assert.Equal(t, "https://peer.example", ref.Issuer)
}

func TestKeyring_MergedKeySet(t *testing.T) {
	f := newVerifierFixture(t)
	keyring := f.verifier.keyring
	ctx := context.Background()

	// Before any discovery the set holds only the local key
	set, err := keyring.MergedKeySet(ctx)
	require.NoError(t, err)
	require.Len(t, set.Keys, 1)

	record, err := f.local.PublicKeyRecord(ctx)
	require.NoError(t, err)
	assert.Equal(t, record.KeyID, set.Keys[0].KeyID)
	assert.Equal(t, token.KeyTypeOKP, set.Keys[0].KeyType)
	assert.Equal(t, token.CurveEd25519, set.Keys[0].Curve)
	assert.Equal(t, token.AlgorithmEdDSA, set.Keys[0].Algorithm)

	// A discovered foreign key joins the merged set
	compact, err := f.peer.SignClaims(&token.Claims{
		Subject:   "remote-player",
		ExpiresAt: f.clock.Now().Unix() + 3600,
		TokenID:   "jti-1",
	})
	require.NoError(t, err)
	_, err = f.verifier.Verify(ctx, compact)
	require.NoError(t, err)

	set, err = keyring.MergedKeySet(ctx)
	require.NoError(t, err)
	require.Len(t, set.Keys, 2)

	kids := []string{set.Keys[0].KeyID, set.Keys[1].KeyID}
	assert.Contains(t, kids, record.KeyID)
	assert.Contains(t, kids, f.peer.KeyID())
}

func TestKeyring_ResolveKeyUnknownKinds(t *testing.T) {
	f := newVerifierFixture(t)
	keyring := f.verifier.keyring
	ctx := context.Background()

	// Foreign ref without a kid cannot be looked up
	_, err := keyring.ResolveKey(ctx, KeyRef{Kind: KeyRefForeign, Issuer: "https://peer.example"})
	assert.ErrorIs(t, err, ErrUnknownKey)

	// Official ref outside the allow-list
	_, err = keyring.ResolveKey(ctx, KeyRef{
		Kind:   KeyRefOfficial,
		Issuer: "https://not-official.example",
		KeyID:  "kid-1",
	})
	assert.ErrorIs(t, err, ErrUnknownKey)
}
