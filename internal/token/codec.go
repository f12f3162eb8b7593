// Package token implements the compact signed-token envelope shared by the
// session service, game clients, and game servers.
//
// A token is three URL-safe-base64 segments joined by dots:
// header.claims.signature. Header and claims are minimal JSON documents;
// the signature is a detached Ed25519 signature over the UTF-8 bytes of
// "header.claims". The codec performs no I/O and no key selection; callers
// verify after resolving a key from the header.
package token

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedToken is returned when input does not parse into three base64
// segments, or header/claims JSON is invalid, or alg is not EdDSA.
var ErrMalformedToken = errors.New("malformed token")

// TypeJWT is the typ header value for all emitted tokens.
const TypeJWT = "JWT"

// Header is the token header. Exactly one of KeyID or JWK identifies the
// verification key: kid resolves through discovery, jwk is self-contained.
type Header struct {
	Algorithm string       `json:"alg"`
	Type      string       `json:"typ,omitempty"`
	KeyID     string       `json:"kid,omitempty"`
	JWK       *EmbeddedKey `json:"jwk,omitempty"`
}

// Confirmation binds a token to an external secret, currently only a
// transport certificate fingerprint (RFC 7800 x5t#S256).
type Confirmation struct {
	X5TS256 string `json:"x5t#S256,omitempty"`
}

// Claims is the claim set carried inside a token.
type Claims struct {
	Subject      string        `json:"sub"`
	Name         string        `json:"name,omitempty"`
	Username     string        `json:"username,omitempty"`
	Entitlements []string      `json:"entitlements,omitempty"`
	Scope        string        `json:"scope,omitempty"`
	IssuedAt     int64         `json:"iat"`
	ExpiresAt    int64         `json:"exp"`
	Issuer       string        `json:"iss"`
	TokenID      string        `json:"jti"`
	Audience     string        `json:"aud,omitempty"`
	Confirmation *Confirmation `json:"cnf,omitempty"`
}

// Fingerprint returns the bound transport certificate fingerprint, if any.
func (c *Claims) Fingerprint() string {
	if c.Confirmation == nil {
		return ""
	}
	return c.Confirmation.X5TS256
}

// Signer produces a detached signature over arbitrary bytes.
// keys.Store satisfies this; so does an embedded-key signer.
type Signer interface {
	Sign(ctx context.Context, data []byte) ([]byte, error)
}

// SigningInput serializes header and claims and returns the bytes that get
// signed: base64url(headerJSON) + "." + base64url(claimsJSON).
func SigningInput(header *Header, claims *Claims) ([]byte, error) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal header: %w", err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal claims: %w", err)
	}

	var b strings.Builder
	b.WriteString(base64.RawURLEncoding.EncodeToString(headerJSON))
	b.WriteByte('.')
	b.WriteString(base64.RawURLEncoding.EncodeToString(claimsJSON))
	return []byte(b.String()), nil
}

// Compact assembles the final token from a signing input and its signature.
func Compact(signingInput, signature []byte) string {
	return string(signingInput) + "." + base64.RawURLEncoding.EncodeToString(signature)
}

// Encode serializes and signs a token in one step.
func Encode(ctx context.Context, header *Header, claims *Claims, signer Signer) (string, error) {
	signingInput, err := SigningInput(header, claims)
	if err != nil {
		return "", err
	}
	signature, err := signer.Sign(ctx, signingInput)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return Compact(signingInput, signature), nil
}

// Decoded is the result of parsing a compact token without verification.
type Decoded struct {
	Header *Header
	Claims *Claims

	// SigningInput is the exact bytes the signature covers.
	SigningInput []byte

	// Signature is the raw detached signature bytes.
	Signature []byte
}

// DecodeUnverified splits and parses a compact token. It rejects anything
// that is not exactly three base64url segments with an EdDSA header, and
// performs no cryptographic check; that is the caller's job after picking
// a key from the header.
func DecodeUnverified(compact string) (*Decoded, error) {
	parts := strings.Split(compact, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: header segment: %v", ErrMalformedToken, err)
	}
	claimsJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: claims segment: %v", ErrMalformedToken, err)
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: signature segment: %v", ErrMalformedToken, err)
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("%w: header JSON: %v", ErrMalformedToken, err)
	}
	if header.Algorithm != AlgorithmEdDSA {
		return nil, fmt.Errorf("%w: unsupported alg %q", ErrMalformedToken, header.Algorithm)
	}

	var claims Claims
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return nil, fmt.Errorf("%w: claims JSON: %v", ErrMalformedToken, err)
	}

	return &Decoded{
		Header:       &header,
		Claims:       &claims,
		SigningInput: []byte(parts[0] + "." + parts[1]),
		Signature:    signature,
	}, nil
}

// Verify checks the detached signature over signingInput with the given
// Ed25519 public key.
func Verify(signingInput, signature []byte, key ed25519.PublicKey) bool {
	if len(key) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(key, signingInput, signature)
}
