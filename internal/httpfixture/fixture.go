// Package httpfixture provides canned HTTP responses for tests that
// exercise outbound HTTP without a network.
package httpfixture

import (
	"net/http"
	"time"
)

// Fixture is a canned HTTP response.
type Fixture struct {
	StatusCode int
	Headers    map[string]string
	Body       string

	// Delay, when set, is simulated via the transport's clock before the
	// response is returned.
	Delay *time.Duration
}

// FixtureProvider maps requests to fixtures. Returning nil means "no
// fixture for this request".
type FixtureProvider interface {
	GetFixture(req *http.Request) *Fixture
}

// FuncProvider adapts a function to the FixtureProvider interface.
type FuncProvider func(req *http.Request) *Fixture

// NewFuncProvider wraps a function as a FixtureProvider
func NewFuncProvider(fn func(req *http.Request) *Fixture) FuncProvider {
	return FuncProvider(fn)
}

// GetFixture implements FixtureProvider
func (f FuncProvider) GetFixture(req *http.Request) *Fixture {
	return f(req)
}

// MultiProvider consults providers in order and returns the first fixture.
type MultiProvider []FixtureProvider

// GetFixture implements FixtureProvider
func (m MultiProvider) GetFixture(req *http.Request) *Fixture {
	for _, p := range m {
		if fixture := p.GetFixture(req); fixture != nil {
			return fixture
		}
	}
	return nil
}
