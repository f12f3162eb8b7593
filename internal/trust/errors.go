// Package trust decides which keys may verify which tokens. It federates
// verification keys from foreign issuers, consults the official allow-list,
// accepts self-signed tokens, and routes every verification through a single
// key resolution path.
package trust

import "errors"

// Common verification errors
var (
	// ErrUnknownKey means no verifying key could be found for the token.
	// Upstream fetch failures collapse into this; verifiers reject without
	// detail.
	ErrUnknownKey = errors.New("unknown verification key")

	// ErrSignatureInvalid means a key was found but the signature check
	// failed.
	ErrSignatureInvalid = errors.New("token signature invalid")

	// ErrExpiredToken means the token verified but its exp has passed.
	ErrExpiredToken = errors.New("token expired")
)
