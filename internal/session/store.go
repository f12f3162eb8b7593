// Package session persists the session and grant records behind the
// exchange state machine.
package session

import (
	"context"
	"errors"
)

// ErrUnavailable wraps storage backend failures. Handlers map it to 503.
var ErrUnavailable = errors.New("session store unavailable")

// SessionRecord is the persisted state of one player session.
type SessionRecord struct {
	// PlayerID is the player uuid (the token sub claim)
	PlayerID string `json:"player_id"`

	// Username is the display name attached at session creation
	Username string `json:"username,omitempty"`

	// TokenID is the jti of the session token that created this record
	TokenID string `json:"token_id"`

	// Audience is set once the session is bound to a server
	Audience string `json:"audience,omitempty"`

	IssuedAt  int64 `json:"issued_at"`
	ExpiresAt int64 `json:"expires_at"`
}

// GrantRecord is the persisted state of one authorization grant.
type GrantRecord struct {
	// PlayerID is the granted player uuid
	PlayerID string `json:"player_id"`

	// TokenID is the jti of the grant token
	TokenID string `json:"token_id"`

	// Audience is the server the grant is bound to
	Audience string `json:"audience"`

	IssuedAt  int64 `json:"issued_at"`
	ExpiresAt int64 `json:"expires_at"`
}

// Store is the session registry. Records are keyed by player id (sessions)
// and grant token id (grants); writes replace whole records atomically.
type Store interface {
	// PutSession stores a session record, replacing any existing record
	// for the same player.
	PutSession(ctx context.Context, record *SessionRecord) error

	// GetSession returns the session record for a player. The bool reports
	// whether a live record was found.
	GetSession(ctx context.Context, playerID string) (*SessionRecord, bool, error)

	// DeleteSession removes a player's session record. Deleting an absent
	// record is not an error.
	DeleteSession(ctx context.Context, playerID string) error

	// PutGrant stores a grant record keyed by its token id.
	PutGrant(ctx context.Context, record *GrantRecord) error

	// GetGrant returns the grant record for a grant token id.
	GetGrant(ctx context.Context, tokenID string) (*GrantRecord, bool, error)

	// DeleteGrant removes a grant record. Absence is not an error.
	DeleteGrant(ctx context.Context, tokenID string) error

	// Close releases backend resources.
	Close() error
}
