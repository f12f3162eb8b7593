package trust

import (
	"github.com/sanasol-ws/dualauth/internal/token"
)

// IsSelfSigned reports whether a token header carries its own verification
// key: an embedded Ed25519 public point whose algorithm, when declared, is
// EdDSA. Any private scalar riding along is ignored.
func IsSelfSigned(header *token.Header) bool {
	return header != nil && header.JWK.IsEd25519()
}

// VerifyEmbedded checks a decoded token against the key embedded in its own
// header. Trust is deliberately anchored downstream: the caller decides what
// a self-attested identity is worth.
func VerifyEmbedded(decoded *token.Decoded) error {
	if !IsSelfSigned(decoded.Header) {
		return ErrUnknownKey
	}
	public, err := decoded.Header.JWK.PublicKey()
	if err != nil {
		return ErrUnknownKey
	}
	if !token.Verify(decoded.SigningInput, decoded.Signature, public) {
		return ErrSignatureInvalid
	}
	return nil
}

// BypassPolicy decides whether the exchange endpoints substitute a freshly
// minted replacement token when presented a self-signed token, instead of
// running the normal grant verification.
type BypassPolicy struct {
	acceptSelfSigned bool
}

// NewBypassPolicy creates the exchange bypass policy
func NewBypassPolicy(acceptSelfSigned bool) *BypassPolicy {
	return &BypassPolicy{acceptSelfSigned: acceptSelfSigned}
}

// ShouldBypassExchange reports whether the given decoded token takes the
// self-signed substitution path on the authorize and exchange endpoints.
func (p *BypassPolicy) ShouldBypassExchange(decoded *token.Decoded) bool {
	return p.acceptSelfSigned && IsSelfSigned(decoded.Header)
}
