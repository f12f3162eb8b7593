// Package issuer binds tokens to the issuer they are emitted under and
// classifies incoming issuers for trust decisions.
package issuer

import (
	"net"
	"net/url"
	"strings"
)

// Class is the trust classification of an issuer.
type Class string

const (
	// ClassLocal is this deployment's own issuer family.
	ClassLocal Class = "local"

	// ClassOfficial is a configured allow-list of vendor issuers whose
	// trust is handled outside JWKS federation.
	ClassOfficial Class = "official"

	// ClassForeign is any other issuer; keys are discovered on demand.
	ClassForeign Class = "foreign"
)

// Resolver derives the issuer for newly issued tokens from the request host
// and classifies incoming issuers.
//
// A single deployment serves a family of issuers: any host within the base
// domain resolves to itself, so clients patched for different subdomains
// each see their expected iss claim.
type Resolver struct {
	baseDomain    string
	localHosts    map[string]bool
	officialHosts map[string]bool
}

// ResolverConfig configures the issuer resolver
type ResolverConfig struct {
	// BaseDomain is the domain suffix this deployment answers for, and the
	// fallback issuer host for requests arriving under other names.
	BaseDomain string

	// LocalHosts are additional hosts classified as local. The base domain
	// is always local.
	LocalHosts []string

	// OfficialHosts is the allow-list of official vendor issuer hosts.
	OfficialHosts []string
}

// NewResolver creates a new issuer resolver
func NewResolver(cfg ResolverConfig) *Resolver {
	local := make(map[string]bool, len(cfg.LocalHosts)+1)
	local[cfg.BaseDomain] = true
	for _, h := range cfg.LocalHosts {
		local[h] = true
	}

	official := make(map[string]bool, len(cfg.OfficialHosts))
	for _, h := range cfg.OfficialHosts {
		official[h] = true
	}

	return &Resolver{
		baseDomain:    cfg.BaseDomain,
		localHosts:    local,
		officialHosts: official,
	}
}

// ResolveForRequest derives the issuer URL for a token issued in response
// to a request that arrived under hostHeader. Hosts within the base domain
// keep their own name; everything else falls back to the base domain.
func (r *Resolver) ResolveForRequest(hostHeader string) string {
	host := stripPort(hostHeader)
	if host != "" && strings.Contains(host, r.baseDomain) {
		return "https://" + host
	}
	return "https://" + r.baseDomain
}

// Classify determines the trust class of an issuer URL. Every host within
// the base domain is local: resolution issues under those names with the
// local signing key, so classification has to mirror it.
func (r *Resolver) Classify(issuerURL string) Class {
	host := issuerHost(issuerURL)
	switch {
	case r.localHosts[host] || strings.Contains(host, r.baseDomain):
		return ClassLocal
	case r.officialHosts[host]:
		return ClassOfficial
	default:
		return ClassForeign
	}
}

// MatchesRequestHost reports whether the issuer's host equals the host the
// request arrived under. The HTTP shell uses this for issuer redirects.
func (r *Resolver) MatchesRequestHost(issuerURL, hostHeader string) bool {
	return issuerHost(issuerURL) == stripPort(hostHeader)
}

// stripPort removes any port from a host header value.
func stripPort(hostHeader string) string {
	if hostHeader == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(hostHeader); err == nil {
		return host
	}
	return hostHeader
}

// issuerHost extracts the host from an issuer URL, tolerating bare hosts.
func issuerHost(issuerURL string) string {
	if u, err := url.Parse(issuerURL); err == nil && u.Host != "" {
		return stripPort(u.Host)
	}
	return stripPort(strings.TrimPrefix(strings.TrimPrefix(issuerURL, "https://"), "http://"))
}
