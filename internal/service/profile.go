package service

import (
	"context"

	"github.com/sanasol-ws/dualauth/internal/claims"
)

// ProfileSource fetches profile attributes for a subject from wherever a
// deployment keeps them. Implementations live in internal/datasource.
type ProfileSource interface {
	// Fetch returns the attributes known for a subject. A nil map with a
	// nil error means "nothing known"; errors are fatal for the fetch but
	// callers decide whether they are fatal for the request.
	Fetch(ctx context.Context, subject string) (claims.Claims, error)
}

// MapperInput is what an entitlement mapper sees for one evaluation.
type MapperInput struct {
	// Subject is the player uuid
	Subject string

	// Username is the display name, when known
	Username string

	// Attributes is the datasource output for this subject (may be nil)
	Attributes claims.Claims
}

// EntitlementMapper derives the entitlements list for a subject.
// Implementations live in internal/mapper.
type EntitlementMapper interface {
	// Map returns the entitlements for the input. nil means none.
	Map(ctx context.Context, input *MapperInput) ([]string, error)
}

// Profile is the response shape of the game-profile endpoint.
type Profile struct {
	UUID             string   `json:"uuid"`
	Username         string   `json:"username"`
	Entitlements     []string `json:"entitlements"`
	CreatedAt        int64    `json:"createdAt"`
	NextNameChangeAt int64    `json:"nextNameChangeAt"`
	Skin             string   `json:"skin,omitempty"`
}
