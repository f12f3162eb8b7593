package token

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
)

// AlgorithmEdDSA is the only algorithm a token header may advertise.
const AlgorithmEdDSA = "EdDSA"

// KeyTypeOKP and CurveEd25519 identify the embedded key shape (RFC 8037).
const (
	KeyTypeOKP   = "OKP"
	CurveEd25519 = "Ed25519"
)

// EmbeddedKey is a JWK carried inside a token header. For self-signed
// tokens it is both identity and verifier: the public point x verifies the
// token's own signature. A private scalar d may ride along; verification
// never consults it.
type EmbeddedKey struct {
	KeyType   string `json:"kty"`
	Curve     string `json:"crv"`
	X         string `json:"x"`
	D         string `json:"d,omitempty"`
	Use       string `json:"use,omitempty"`
	Algorithm string `json:"alg,omitempty"`
}

// NewEmbeddedKey builds the published form of an Ed25519 public key.
func NewEmbeddedKey(public ed25519.PublicKey) *EmbeddedKey {
	return &EmbeddedKey{
		KeyType:   KeyTypeOKP,
		Curve:     CurveEd25519,
		X:         base64.RawURLEncoding.EncodeToString(public),
		Use:       "sig",
		Algorithm: AlgorithmEdDSA,
	}
}

// IsEd25519 reports whether the embedded key declares the shape the service
// accepts. The alg field is optional on inbound keys; kty and crv are not.
func (k *EmbeddedKey) IsEd25519() bool {
	if k == nil {
		return false
	}
	if k.Algorithm != "" && k.Algorithm != AlgorithmEdDSA {
		return false
	}
	return k.KeyType == KeyTypeOKP && k.Curve == CurveEd25519 && k.X != ""
}

// PublicKey decodes the public point.
func (k *EmbeddedKey) PublicKey() (ed25519.PublicKey, error) {
	if !k.IsEd25519() {
		return nil, fmt.Errorf("embedded key is not an Ed25519 signature key")
	}
	x, err := base64.RawURLEncoding.DecodeString(k.X)
	if err != nil {
		return nil, fmt.Errorf("failed to decode embedded public point: %w", err)
	}
	if len(x) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("embedded public point is %d bytes, want %d", len(x), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(x), nil
}

// PrivateKey decodes the private scalar when present. The returned bool
// reports presence; absence is not an error.
func (k *EmbeddedKey) PrivateKey() (ed25519.PrivateKey, bool, error) {
	if k == nil || k.D == "" {
		return nil, false, nil
	}
	d, err := base64.RawURLEncoding.DecodeString(k.D)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode embedded private scalar: %w", err)
	}
	if len(d) != ed25519.SeedSize {
		return nil, false, fmt.Errorf("embedded private scalar is %d bytes, want %d", len(d), ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(d), true, nil
}

// WithoutPrivate returns a copy safe to publish: the private scalar, when
// present, is stripped.
func (k *EmbeddedKey) WithoutPrivate() *EmbeddedKey {
	if k == nil {
		return nil
	}
	pub := *k
	pub.D = ""
	return &pub
}
