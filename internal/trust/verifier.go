package trust

import (
	"context"

	"github.com/sanasol-ws/dualauth/internal/clock"
	"github.com/sanasol-ws/dualauth/internal/token"
)

// Verifier performs full token verification: decode, key resolution,
// signature check, expiry check.
type Verifier struct {
	keyring *Keyring
	clock   clock.Clock
}

// VerifierConfig configures token verification
type VerifierConfig struct {
	// Keyring resolves verification keys
	Keyring *Keyring

	// Clock is an optional time source (defaults to system clock)
	Clock clock.Clock
}

// NewVerifier creates a new token verifier
func NewVerifier(cfg VerifierConfig) *Verifier {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Verifier{
		keyring: cfg.Keyring,
		clock:   clk,
	}
}

// Verify decodes and verifies a compact token. It returns the decoded token
// on success, token.ErrMalformedToken when the input does not parse, and
// ErrUnknownKey, ErrSignatureInvalid, or ErrExpiredToken otherwise.
func (v *Verifier) Verify(ctx context.Context, compact string) (*token.Decoded, error) {
	decoded, err := token.DecodeUnverified(compact)
	if err != nil {
		return nil, err
	}
	if err := v.VerifyDecoded(ctx, decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

// VerifyDecoded verifies an already-decoded token.
func (v *Verifier) VerifyDecoded(ctx context.Context, decoded *token.Decoded) error {
	ref := v.keyring.RefForToken(decoded)
	key, err := v.keyring.ResolveKey(ctx, ref)
	if err != nil {
		return err
	}
	if !token.Verify(decoded.SigningInput, decoded.Signature, key) {
		return ErrSignatureInvalid
	}
	if decoded.Claims.ExpiresAt != 0 && v.clock.Now().Unix() >= decoded.Claims.ExpiresAt {
		return ErrExpiredToken
	}
	return nil
}
