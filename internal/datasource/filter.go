package datasource

import (
	"context"

	"github.com/sanasol-ws/dualauth/internal/claims"
	"github.com/sanasol-ws/dualauth/internal/service"
)

// FilteringSource applies a claims filter to a backing source's output, so
// deployments can keep internal attributes out of tokens and profiles.
type FilteringSource struct {
	source service.ProfileSource
	filter claims.Filter
}

// NewFilteringSource wraps source with the given filter
func NewFilteringSource(source service.ProfileSource, filter claims.Filter) *FilteringSource {
	return &FilteringSource{source: source, filter: filter}
}

// Fetch implements service.ProfileSource
func (s *FilteringSource) Fetch(ctx context.Context, subject string) (claims.Claims, error) {
	attrs, err := s.source.Fetch(ctx, subject)
	if err != nil {
		return nil, err
	}
	return s.filter.Filter(attrs), nil
}

var _ service.ProfileSource = (*FilteringSource)(nil)
