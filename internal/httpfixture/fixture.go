// Package httpfixture serves canned HTTP responses so scripted directories
// can run without reaching real services.
package httpfixture

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// URL match types for fixture rules
const (
	URLTypeExact   = "exact"
	URLTypePrefix  = "prefix"
	URLTypePattern = "pattern"
)

// Fixture is a canned HTTP response
type Fixture struct {
	StatusCode int               `json:"status_code" yaml:"status_code" koanf:"status_code"`
	Headers    map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" koanf:"headers"`
	Body       string            `json:"body,omitempty" yaml:"body,omitempty" koanf:"body"`

	// Delay is slept (on the transport clock) before the response is returned
	Delay *time.Duration `json:"delay,omitempty" yaml:"delay,omitempty" koanf:"delay"`
}

// FixtureProvider returns the fixture for a request, or nil if it has none
type FixtureProvider interface {
	GetFixture(req *http.Request) *Fixture
}

// FixtureRequest describes the requests a rule applies to
type FixtureRequest struct {
	// Method is the HTTP method, or "*" for any method
	Method string `json:"method" yaml:"method" koanf:"method"`

	// URL is matched against the full request URL according to URLType
	URL string `json:"url" yaml:"url" koanf:"url"`

	// URLType is one of exact (default), prefix or pattern (anchored regexp)
	URLType string `json:"url_type,omitempty" yaml:"url_type,omitempty" koanf:"url_type"`

	// Headers must all be present on the request with the given values
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" koanf:"headers"`
}

// HTTPFixtureRule pairs a request matcher with its response
type HTTPFixtureRule struct {
	Request  FixtureRequest `json:"request" yaml:"request" koanf:"request"`
	Response Fixture        `json:"response" yaml:"response" koanf:"response"`
}

// RuleBasedProvider returns the response of the first matching rule
type RuleBasedProvider struct {
	rules    []HTTPFixtureRule
	patterns []*regexp.Regexp
}

// NewRuleBasedProvider creates a provider from rules.
// Rules with an invalid pattern never match; use ValidateRules to reject them up front.
func NewRuleBasedProvider(rules []HTTPFixtureRule) *RuleBasedProvider {
	patterns := make([]*regexp.Regexp, len(rules))
	for i, rule := range rules {
		if rule.Request.URLType == URLTypePattern {
			patterns[i], _ = regexp.Compile("^" + rule.Request.URL + "$")
		}
	}
	return &RuleBasedProvider{rules: rules, patterns: patterns}
}

// ValidateRules checks URL types and patterns
func ValidateRules(rules []HTTPFixtureRule) error {
	for i, rule := range rules {
		switch rule.Request.URLType {
		case "", URLTypeExact, URLTypePrefix:
		case URLTypePattern:
			if _, err := regexp.Compile("^" + rule.Request.URL + "$"); err != nil {
				return fmt.Errorf("fixture rule %d: invalid url pattern: %w", i, err)
			}
		default:
			return fmt.Errorf("fixture rule %d: unknown url type %q", i, rule.Request.URLType)
		}
		if rule.Response.StatusCode == 0 {
			return fmt.Errorf("fixture rule %d: response status code is required", i)
		}
	}
	return nil
}

// GetFixture implements FixtureProvider
func (p *RuleBasedProvider) GetFixture(req *http.Request) *Fixture {
	for i := range p.rules {
		if p.matches(i, req) {
			fixture := p.rules[i].Response
			return &fixture
		}
	}
	return nil
}

func (p *RuleBasedProvider) matches(i int, req *http.Request) bool {
	rule := p.rules[i].Request

	if rule.Method != "" && rule.Method != "*" && !strings.EqualFold(rule.Method, req.Method) {
		return false
	}

	url := req.URL.String()
	switch rule.URLType {
	case "", URLTypeExact:
		if url != rule.URL {
			return false
		}
	case URLTypePrefix:
		if !strings.HasPrefix(url, rule.URL) {
			return false
		}
	case URLTypePattern:
		if p.patterns[i] == nil || !p.patterns[i].MatchString(url) {
			return false
		}
	default:
		return false
	}

	for key, value := range rule.Headers {
		if req.Header.Get(key) != value {
			return false
		}
	}
	return true
}

// MapProvider looks fixtures up by "METHOD URL"
type MapProvider struct {
	fixtures map[string]*Fixture
}

// NewMapProvider creates a provider keyed by "METHOD URL"
func NewMapProvider(fixtures map[string]*Fixture) *MapProvider {
	return &MapProvider{fixtures: fixtures}
}

// GetFixture implements FixtureProvider
func (p *MapProvider) GetFixture(req *http.Request) *Fixture {
	return p.fixtures[req.Method+" "+req.URL.String()]
}

// FuncProvider adapts a function to FixtureProvider
type FuncProvider struct {
	fn func(req *http.Request) *Fixture
}

// NewFuncProvider creates a provider backed by fn
func NewFuncProvider(fn func(req *http.Request) *Fixture) *FuncProvider {
	return &FuncProvider{fn: fn}
}

// GetFixture implements FixtureProvider
func (p *FuncProvider) GetFixture(req *http.Request) *Fixture {
	return p.fn(req)
}
