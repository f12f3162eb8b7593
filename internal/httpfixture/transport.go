package httpfixture

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sanasol-ws/dualauth/internal/clock"
)

// Transport is an http.RoundTripper backed by a FixtureProvider.
type Transport struct {
	provider FixtureProvider
	fallback http.RoundTripper
	strict   bool
	clock    clock.Clock
}

// TransportConfig configures the fixture transport
type TransportConfig struct {
	Provider FixtureProvider

	// Fallback handles requests with no fixture (optional)
	Fallback http.RoundTripper

	// Strict makes unmatched requests an error even with a fallback
	Strict bool

	// Clock simulates fixture delays (defaults to system clock)
	Clock clock.Clock
}

// NewTransport creates a new fixture transport
func NewTransport(cfg TransportConfig) *Transport {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Transport{
		provider: cfg.Provider,
		fallback: cfg.Fallback,
		strict:   cfg.Strict,
		clock:    clk,
	}
}

// Client returns an *http.Client using this transport.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	fixture := t.provider.GetFixture(req)
	if fixture == nil {
		if t.strict || t.fallback == nil {
			return nil, fmt.Errorf("no fixture for request: %s %s", req.Method, req.URL)
		}
		return t.fallback.RoundTrip(req)
	}

	if fixture.Delay != nil {
		t.clock.Sleep(*fixture.Delay)
	}

	resp := &http.Response{
		StatusCode: fixture.StatusCode,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(fixture.Body)),
		Request:    req,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
	}
	for key, value := range fixture.Headers {
		resp.Header.Set(key, value)
	}
	return resp, nil
}
