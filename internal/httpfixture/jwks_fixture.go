package httpfixture

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/sanasol-ws/dualauth/internal/token"
)

// JWKSFixture plays the role of a foreign issuer: it serves a JWKS document
// at <issuer>/.well-known/jwks.json and signs compact tokens with the
// matching Ed25519 private key.
type JWKSFixture struct {
	issuer     string
	jwksURL    string
	keyID      string
	publicKey  ed25519.PublicKey
	privateKey ed25519.PrivateKey
	jwks       jwk.Set
}

// JWKSFixtureConfig configures a JWKS fixture
type JWKSFixtureConfig struct {
	// Issuer is the issuer URL (for iss claims and the JWKS path)
	Issuer string

	// KeyID is the key identifier (defaults to "test-key-1")
	KeyID string
}

// NewJWKSFixture creates a fixture issuer with a fresh Ed25519 key pair
func NewJWKSFixture(cfg JWKSFixtureConfig) (*JWKSFixture, error) {
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}
	keyID := cfg.KeyID
	if keyID == "" {
		keyID = "test-key-1"
	}

	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	publicJWK, err := jwk.Import(public)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK: %w", err)
	}
	if err := publicJWK.Set(jwk.KeyIDKey, keyID); err != nil {
		return nil, fmt.Errorf("failed to set key ID: %w", err)
	}
	if err := publicJWK.Set(jwk.AlgorithmKey, jwa.EdDSA()); err != nil {
		return nil, fmt.Errorf("failed to set algorithm: %w", err)
	}

	jwks := jwk.NewSet()
	if err := jwks.AddKey(publicJWK); err != nil {
		return nil, fmt.Errorf("failed to add key to JWKS: %w", err)
	}

	return &JWKSFixture{
		issuer:     cfg.Issuer,
		jwksURL:    cfg.Issuer + "/.well-known/jwks.json",
		keyID:      keyID,
		publicKey:  public,
		privateKey: private,
		jwks:       jwks,
	}, nil
}

// GetFixture implements FixtureProvider; it answers only the JWKS URL.
func (f *JWKSFixture) GetFixture(req *http.Request) *Fixture {
	if req.URL.String() != f.jwksURL {
		return nil
	}

	jwksJSON, err := json.Marshal(f.jwks)
	if err != nil {
		return &Fixture{
			StatusCode: 500,
			Body:       fmt.Sprintf(`{"error": "failed to serialize JWKS: %v"}`, err),
		}
	}
	return &Fixture{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(jwksJSON),
	}
}

// Issuer returns the issuer URL
func (f *JWKSFixture) Issuer() string {
	return f.issuer
}

// JWKSURL returns the JWKS URL this fixture serves
func (f *JWKSFixture) JWKSURL() string {
	return f.jwksURL
}

// KeyID returns the key identifier
func (f *JWKSFixture) KeyID() string {
	return f.keyID
}

// PublicKey returns the fixture's public key
func (f *JWKSFixture) PublicKey() ed25519.PublicKey {
	return f.publicKey
}

// SignClaims signs a compact token over the given claims with the fixture's
// private key and kid. The issuer claim is forced to the fixture's issuer.
func (f *JWKSFixture) SignClaims(claims *token.Claims) (string, error) {
	claims.Issuer = f.issuer
	header := &token.Header{
		Algorithm: token.AlgorithmEdDSA,
		Type:      token.TypeJWT,
		KeyID:     f.keyID,
	}
	return token.Encode(context.Background(), header, claims, signerFunc(func(_ context.Context, data []byte) ([]byte, error) {
		return ed25519.Sign(f.privateKey, data), nil
	}))
}

type signerFunc func(ctx context.Context, data []byte) ([]byte, error)

func (s signerFunc) Sign(ctx context.Context, data []byte) ([]byte, error) {
	return s(ctx, data)
}
