package trust

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/sanasol-ws/dualauth/internal/issuer"
	"github.com/sanasol-ws/dualauth/internal/keys"
	"github.com/sanasol-ws/dualauth/internal/token"
)

// KeyRefKind discriminates the three ways a token can name its verification
// key.
type KeyRefKind int

const (
	// KeyRefEmbedded means the header carries the key itself.
	KeyRefEmbedded KeyRefKind = iota

	// KeyRefLocal means the kid should match this deployment's signing key.
	KeyRefLocal

	// KeyRefOfficial means the issuer is on the vendor allow-list.
	KeyRefOfficial

	// KeyRefForeign means the key must be discovered from the issuer's JWKS.
	KeyRefForeign
)

// KeyRef names the verification key for one token. Exactly one variant
// applies; RefForToken derives it from the header and issuer so call sites
// never pattern-match on headers themselves.
type KeyRef struct {
	Kind     KeyRefKind
	KeyID    string
	Issuer   string
	Embedded *token.EmbeddedKey
}

// Keyring resolves key references against the local store, the official
// allow-list, and the foreign key federation. It is the single verification
// key source for the whole service.
type Keyring struct {
	local      keys.Store
	resolver   *issuer.Resolver
	federation *Federation
	official   *OfficialIssuers
}

// KeyringConfig configures key resolution
type KeyringConfig struct {
	// Local is the process signing key store
	Local keys.Store

	// Resolver classifies token issuers
	Resolver *issuer.Resolver

	// Federation discovers foreign issuer keys
	Federation *Federation

	// Official verifies allow-listed vendor issuers (optional)
	Official *OfficialIssuers
}

// NewKeyring creates a new keyring
func NewKeyring(cfg KeyringConfig) *Keyring {
	return &Keyring{
		local:      cfg.Local,
		resolver:   cfg.Resolver,
		federation: cfg.Federation,
		official:   cfg.Official,
	}
}

// RefForToken derives the key reference for a decoded token.
func (r *Keyring) RefForToken(decoded *token.Decoded) KeyRef {
	if IsSelfSigned(decoded.Header) {
		return KeyRef{Kind: KeyRefEmbedded, Embedded: decoded.Header.JWK}
	}

	iss := decoded.Claims.Issuer
	switch r.resolver.Classify(iss) {
	case issuer.ClassLocal:
		return KeyRef{Kind: KeyRefLocal, KeyID: decoded.Header.KeyID}
	case issuer.ClassOfficial:
		return KeyRef{Kind: KeyRefOfficial, KeyID: decoded.Header.KeyID, Issuer: iss}
	default:
		return KeyRef{Kind: KeyRefForeign, KeyID: decoded.Header.KeyID, Issuer: iss}
	}
}

// ResolveKey returns the public key a KeyRef names, or ErrUnknownKey.
func (r *Keyring) ResolveKey(ctx context.Context, ref KeyRef) (ed25519.PublicKey, error) {
	switch ref.Kind {
	case KeyRefEmbedded:
		public, err := ref.Embedded.PublicKey()
		if err != nil {
			return nil, ErrUnknownKey
		}
		return public, nil

	case KeyRefLocal:
		record, err := r.local.PublicKeyRecord(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load local signing key: %w", err)
		}
		if ref.KeyID != record.KeyID {
			return nil, ErrUnknownKey
		}
		return record.Key.(ed25519.PublicKey), nil

	case KeyRefOfficial:
		if r.official == nil {
			return nil, ErrUnknownKey
		}
		return r.official.GetKey(ctx, ref.Issuer, ref.KeyID)

	case KeyRefForeign:
		if ref.KeyID == "" {
			return nil, ErrUnknownKey
		}
		return r.federation.GetKey(ctx, ref.Issuer, ref.KeyID)

	default:
		return nil, ErrUnknownKey
	}
}

// JWK is one published verification key in a JWKS document.
type JWK struct {
	KeyType   string `json:"kty"`
	Curve     string `json:"crv"`
	X         string `json:"x"`
	KeyID     string `json:"kid"`
	Use       string `json:"use,omitempty"`
	Algorithm string `json:"alg,omitempty"`
}

// JWKS is the document served at /.well-known/jwks.json.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// MergedKeySet returns the local signing key plus every live foreign key.
// Downstream consumers that cannot issue per-token lookups verify against
// this union. Official keys stay with their own issuers; consumers reach
// them by reference.
func (r *Keyring) MergedKeySet(ctx context.Context) (*JWKS, error) {
	record, err := r.local.PublicKeyRecord(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load local signing key: %w", err)
	}

	set := &JWKS{Keys: []JWK{publicJWK(record.KeyID, record.Key.(ed25519.PublicKey))}}
	for _, fk := range r.federation.LiveKeys() {
		set.Keys = append(set.Keys, publicJWK(fk.KeyID, fk.Key))
	}
	return set, nil
}

func publicJWK(keyID string, public ed25519.PublicKey) JWK {
	return JWK{
		KeyType:   token.KeyTypeOKP,
		Curve:     token.CurveEd25519,
		X:         base64.RawURLEncoding.EncodeToString(public),
		KeyID:     keyID,
		Use:       "sig",
		Algorithm: token.AlgorithmEdDSA,
	}
}
