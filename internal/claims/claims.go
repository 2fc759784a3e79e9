// Package claims holds the generic claim map shared by token surfaces.
package claims

import (
	"maps"
	"strings"
)

// Claims is a set of named JWT claims
type Claims map[string]any

// Copy returns a shallow copy of the claims
// Returns nil for nil claims
func (c Claims) Copy() Claims {
	if c == nil {
		return nil
	}
	return maps.Clone(c)
}

// Merge copies all claims from other into c, overwriting existing keys
func (c Claims) Merge(other Claims) {
	maps.Copy(c, other)
}

// GetString returns the claim as a string, or "" if absent or not a string
func (c Claims) GetString(key string) string {
	if s, ok := c[key].(string); ok {
		return s
	}
	return ""
}

// GetStrings returns the claim as a list of strings.
// A single string claim is returned as a one element list, non-string list
// elements are dropped.
func (c Claims) GetStrings(key string) []string {
	switch v := c[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// IsBlank reports whether s is empty or only whitespace
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
