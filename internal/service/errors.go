package service

import "errors"

// Exchange error kinds. The HTTP shell translates these to status codes;
// the state machine itself never partially emits: either a complete token
// set is returned or one of these comes back and no response-visible side
// effect persists.
var (
	// ErrMissingClaim means a required input claim or field is absent.
	ErrMissingClaim = errors.New("missing required claim")

	// ErrPersistenceFatal means a critical registry write failed; the
	// session would not be visible to subsequent requests.
	ErrPersistenceFatal = errors.New("session registry write failed")
)
