// Package datasource provides profile attribute sources: static maps,
// Lua scripts, and caching decorators (in-memory and distributed).
package datasource

import (
	"context"

	"github.com/sanasol-ws/dualauth/internal/claims"
)

// StaticSource serves profile attributes from an in-memory map keyed by
// subject. Useful for tests and small fixed deployments.
type StaticSource struct {
	profiles map[string]claims.Claims
}

// NewStaticSource creates a static source. A nil map yields a source that
// knows nothing.
func NewStaticSource(profiles map[string]claims.Claims) *StaticSource {
	if profiles == nil {
		profiles = make(map[string]claims.Claims)
	}
	return &StaticSource{profiles: profiles}
}

// Fetch implements service.ProfileSource
func (s *StaticSource) Fetch(_ context.Context, subject string) (claims.Claims, error) {
	attrs, ok := s.profiles[subject]
	if !ok {
		return nil, nil
	}
	// Copy so callers cannot mutate the source
	return attrs.Copy(), nil
}
