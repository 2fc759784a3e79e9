package config

import (
	"fmt"

	"github.com/project-kessel/orgaud/internal/httpfixture"
)

// BuildHTTPFixtureProvider creates a rule based HTTP fixture provider from fixture configurations
// Returns nil if no fixtures are configured (normal production mode)
func BuildHTTPFixtureProvider(fixtures []FixtureConfig) (httpfixture.FixtureProvider, error) {
	if len(fixtures) == 0 {
		return nil, nil
	}

	rules := make([]httpfixture.HTTPFixtureRule, 0, len(fixtures))
	for i, f := range fixtures {
		if f.Type != "" && f.Type != "http_rule" {
			return nil, fmt.Errorf("fixture %d: unknown fixture type: %s (supported: http_rule)", i, f.Type)
		}
		rules = append(rules, httpfixture.HTTPFixtureRule{
			Request:  f.Request,
			Response: f.Response,
		})
	}

	if err := httpfixture.ValidateRules(rules); err != nil {
		return nil, err
	}

	return httpfixture.NewRuleBasedProvider(rules), nil
}
