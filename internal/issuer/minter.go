package issuer

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sanasol-ws/dualauth/internal/clock"
	"github.com/sanasol-ws/dualauth/internal/keys"
	"github.com/sanasol-ws/dualauth/internal/token"
)

// DefaultTTL is the default lifetime for every token the service emits.
const DefaultTTL = 10 * time.Hour

// Minter signs claim sets into compact tokens. All emission paths go through
// here so iat/exp/jti handling and header construction stay in one place.
type Minter struct {
	keys  keys.Store
	clock clock.Clock
	ttl   time.Duration
}

// MinterConfig configures the token minter
type MinterConfig struct {
	// Keys is the process key store used for locally signed tokens
	Keys keys.Store

	// TTL is the token lifetime (defaults to DefaultTTL)
	TTL time.Duration

	// Clock is an optional time source (defaults to system clock)
	Clock clock.Clock
}

// NewMinter creates a new token minter
func NewMinter(cfg MinterConfig) *Minter {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Minter{
		keys:  cfg.Keys,
		clock: clk,
		ttl:   ttl,
	}
}

// TTL returns the configured default token lifetime.
func (m *Minter) TTL() time.Duration {
	return m.ttl
}

// MintRequest describes the claims of a token to emit. Issuer must already
// be resolved for the request that triggered the emission.
type MintRequest struct {
	Issuer       string
	Subject      string
	Name         string
	Username     string
	Scope        string
	Audience     string
	Entitlements []string

	// Fingerprint, when set, binds the token to a transport certificate.
	// It is embedded verbatim; the minter never computes fingerprints.
	Fingerprint string

	// TTL overrides the minter default when non-zero.
	TTL time.Duration
}

// Minted is an emitted token with its final claim set.
type Minted struct {
	Token     string
	Claims    *token.Claims
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ExpiresIn returns the token lifetime in whole seconds.
func (m *Minted) ExpiresIn() int64 {
	return int64(m.ExpiresAt.Sub(m.IssuedAt).Seconds())
}

// Mint emits a token signed by the local key store, with the local kid in
// the header.
func (m *Minter) Mint(ctx context.Context, req *MintRequest) (*Minted, error) {
	keyID, err := m.keys.KeyID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get signing key id: %w", err)
	}

	header := &token.Header{
		Algorithm: token.AlgorithmEdDSA,
		Type:      token.TypeJWT,
		KeyID:     keyID,
	}

	return m.mint(ctx, header, req, m.keys)
}

// MintSelfSigned emits a token whose header embeds the given key. When the
// embedded key carries a private scalar the token is signed with it, so the
// caller can verify with the key it already holds; otherwise the local key
// store signs and the header carries the local kid. The published header
// never includes the private scalar.
func (m *Minter) MintSelfSigned(ctx context.Context, req *MintRequest, embedded *token.EmbeddedKey) (*Minted, error) {
	private, ok, err := embedded.PrivateKey()
	if err != nil {
		return nil, fmt.Errorf("invalid embedded key: %w", err)
	}

	// A locally signed token must carry the local kid, not the embedded
	// key, or verifiers would check the signature against the wrong key.
	if !ok {
		return m.Mint(ctx, req)
	}

	header := &token.Header{
		Algorithm: token.AlgorithmEdDSA,
		Type:      token.TypeJWT,
		JWK:       embedded.WithoutPrivate(),
	}
	return m.mint(ctx, header, req, embeddedSigner{key: private})
}

func (m *Minter) mint(ctx context.Context, header *token.Header, req *MintRequest, signer token.Signer) (*Minted, error) {
	ttl := req.TTL
	if ttl == 0 {
		ttl = m.ttl
	}

	scope := req.Scope
	if scope == "" {
		scope = token.DefaultScope
	}

	now := m.clock.Now()
	expiresAt := now.Add(ttl)

	claims := &token.Claims{
		Subject:      req.Subject,
		Name:         req.Name,
		Username:     req.Username,
		Entitlements: req.Entitlements,
		Scope:        scope,
		IssuedAt:     now.Unix(),
		ExpiresAt:    expiresAt.Unix(),
		Issuer:       req.Issuer,
		TokenID:      uuid.NewString(),
		Audience:     req.Audience,
	}
	if req.Fingerprint != "" {
		claims.Confirmation = &token.Confirmation{X5TS256: req.Fingerprint}
	}

	compact, err := token.Encode(ctx, header, claims, signer)
	if err != nil {
		return nil, err
	}

	return &Minted{
		Token:     compact,
		Claims:    claims,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// embeddedSigner signs with a caller-provided embedded private key. The key
// lives only for the duration of the mint and is never stored.
type embeddedSigner struct {
	key ed25519.PrivateKey
}

func (s embeddedSigner) Sign(_ context.Context, data []byte) ([]byte, error) {
	return ed25519.Sign(s.key, data), nil
}
