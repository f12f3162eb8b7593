package datasource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanasol-ws/dualauth/internal/claims"
)

func TestFilteringSource_Fetch(t *testing.T) {
	backing := NewStaticSource(map[string]claims.Claims{
		"u1": {"tier": "founder", "internal_id": 42},
	})
	source := NewFilteringSource(backing, claims.NewDenyListFilter([]string{"internal_id"}))

	attrs, err := source.Fetch(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, claims.Claims{"tier": "founder"}, attrs)

	// Unknown subjects stay nil rather than becoming an empty map
	attrs, err = source.Fetch(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, attrs)
}

func TestFilteringSource_PropagatesErrors(t *testing.T) {
	backing := &countingSource{err: assert.AnError}
	source := NewFilteringSource(backing, &claims.PassThroughFilter{})

	_, err := source.Fetch(context.Background(), "u1")
	assert.ErrorIs(t, err, assert.AnError)
}
