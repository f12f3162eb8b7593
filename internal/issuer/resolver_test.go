package issuer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestResolver() *Resolver {
	return NewResolver(ResolverConfig{
		BaseDomain:    "sessions.sanasol.ws",
		LocalHosts:    []string{"localhost"},
		OfficialHosts: []string{"sessions.hytale.com"},
	})
}

func TestResolver_ResolveForRequest(t *testing.T) {
	r := newTestResolver()

	tests := []struct {
		name string
		host string
		want string
	}{
		{
			name: "base domain itself",
			host: "sessions.sanasol.ws",
			want: "https://sessions.sanasol.ws",
		},
		{
			name: "subdomain within base domain keeps its name",
			host: "eu.sessions.sanasol.ws",
			want: "https://eu.sessions.sanasol.ws",
		},
		{
			name: "port is stripped",
			host: "eu.sessions.sanasol.ws:8443",
			want: "https://eu.sessions.sanasol.ws",
		},
		{
			name: "unrelated host falls back to base domain",
			host: "evil.example.com",
			want: "https://sessions.sanasol.ws",
		},
		{
			name: "empty host falls back",
			host: "",
			want: "https://sessions.sanasol.ws",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.ResolveForRequest(tt.host))
		})
	}
}

func TestResolver_Classify(t *testing.T) {
	r := newTestResolver()

	tests := []struct {
		name   string
		issuer string
		want   Class
	}{
		{name: "base domain is local", issuer: "https://sessions.sanasol.ws", want: ClassLocal},
		{name: "configured local host", issuer: "https://localhost", want: ClassLocal},
		{name: "local with port", issuer: "https://localhost:8443", want: ClassLocal},
		{name: "official allow-list", issuer: "https://sessions.hytale.com", want: ClassOfficial},
		{name: "anything else is foreign", issuer: "https://peer.example", want: ClassForeign},
		{name: "subdomain of base is local", issuer: "https://eu.sessions.sanasol.ws", want: ClassLocal},
		{name: "bare host tolerated", issuer: "sessions.hytale.com", want: ClassOfficial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Classify(tt.issuer))
		})
	}
}

func TestResolver_MatchesRequestHost(t *testing.T) {
	r := newTestResolver()

	assert.True(t, r.MatchesRequestHost("https://eu.sessions.sanasol.ws", "eu.sessions.sanasol.ws:443"))
	assert.False(t, r.MatchesRequestHost("https://eu.sessions.sanasol.ws", "sessions.sanasol.ws"))
}
