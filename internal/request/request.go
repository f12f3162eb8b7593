// Package request provides the request context threaded from the HTTP shell
// into the session service. There is no hidden request-scoped global state;
// everything a component needs about the incoming request travels here.
package request

// Context carries attributes of the incoming request that the core consumes.
type Context struct {
	// Host is the HTTP Host header the request arrived under, without
	// transport details. The issuer resolver derives the iss claim from it.
	Host string

	// BearerToken is the raw token from the Authorization header, if any.
	// It is not verified at extraction time.
	BearerToken string

	// Subject is the contextual player id for this request. The shell fills
	// it from a presented bearer token when one parses, or generates a
	// fallback id. Refresh falls back to it when the presented session token
	// is unparseable.
	Subject string

	// Username is the contextual display name, when known.
	Username string

	// RemoteAddr is the client address, for logging only.
	RemoteAddr string

	// UserAgent is the client user agent, for logging only.
	UserAgent string
}
