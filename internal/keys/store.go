// Package keys owns the process signing key.
//
// The service signs every token with a single long-lived Ed25519 keypair
// identified by a stable key id. The private half never leaves this package;
// everything else borrows the public record.
package keys

import (
	"context"
	"crypto"
)

// AlgorithmEdDSA is the only signing algorithm the service emits or accepts.
const AlgorithmEdDSA = "EdDSA"

// PublicKey is the published verification record for a signing key.
type PublicKey struct {
	// KeyID is the unique identifier for this key (kid)
	KeyID string

	// Algorithm is the signing algorithm, always "EdDSA" here
	Algorithm string

	// Key is the actual public key material (ed25519.PublicKey)
	Key crypto.PublicKey

	// Use indicates the intended use of the key ("sig")
	Use string
}

// Store provides signing with the process key and access to its public record.
type Store interface {
	// PublicKeyRecord returns the stable public record for the signing key.
	PublicKeyRecord(ctx context.Context) (PublicKey, error)

	// Sign produces a detached signature over data with the signing key.
	Sign(ctx context.Context, data []byte) ([]byte, error)

	// KeyID returns the stable key id.
	KeyID(ctx context.Context) (string, error)

	// Algorithm returns the signing algorithm tag.
	Algorithm() string
}
