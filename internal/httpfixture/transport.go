package httpfixture

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/project-kessel/orgaud/internal/clock"
)

// ErrNoFixture is returned by a strict transport when no fixture matches
var ErrNoFixture = errors.New("no fixture provided")

// Transport implements http.RoundTripper using a FixtureProvider
type Transport struct {
	provider FixtureProvider
	fallback http.RoundTripper // optional fallback to real HTTP
	strict   bool              // if true, error when no fixture provided
	clock    clock.Clock       // clock for simulating delays

	mu       sync.Mutex
	requests []string
}

// TransportConfig configures the fixture transport
type TransportConfig struct {
	Provider FixtureProvider
	Fallback http.RoundTripper // optional fallback transport
	Strict   bool              // if true, error when provider returns nil
	Clock    clock.Clock       // optional clock for delays (defaults to system clock)
}

// NewTransport creates a new fixture transport
func NewTransport(config TransportConfig) *Transport {
	clk := config.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Transport{
		provider: config.Provider,
		fallback: config.Fallback,
		strict:   config.Strict,
		clock:    clk,
	}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	t.requests = append(t.requests, req.Method+" "+req.URL.String())
	t.mu.Unlock()

	if err := req.Context().Err(); err != nil {
		return nil, err
	}

	var fixture *Fixture
	if t.provider != nil {
		fixture = t.provider.GetFixture(req)
	}

	if fixture != nil {
		if fixture.Delay != nil {
			t.clock.Sleep(*fixture.Delay)
		}
		return createResponse(fixture, req), nil
	}

	if t.strict {
		return nil, fmt.Errorf("%w for request: %s %s", ErrNoFixture, req.Method, req.URL)
	}

	if t.fallback != nil {
		return t.fallback.RoundTrip(req)
	}

	return nil, fmt.Errorf("%w and no fallback configured", ErrNoFixture)
}

// Requests returns the "METHOD URL" of every request seen, in order
func (t *Transport) Requests() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.requests...)
}

// createResponse creates an HTTP response from a fixture
func createResponse(fixture *Fixture, req *http.Request) *http.Response {
	resp := &http.Response{
		StatusCode: fixture.StatusCode,
		Status:     fmt.Sprintf("%d %s", fixture.StatusCode, http.StatusText(fixture.StatusCode)),
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

	return resp
}
