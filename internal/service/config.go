package service

import (
	"maps"
	"strconv"
	"strings"
)

// Inclusion gate option names shared by OIDC mappers
const (
	IncludeInAccessToken            = "access.token.claim"
	IncludeInIntrospection          = "introspection.token.claim"
	IncludeInLightweightAccessToken = "lightweight.claim"
)

// ConfigPropertyType tells the host how to render a config option
type ConfigPropertyType string

const (
	ConfigPropertyBoolean ConfigPropertyType = "boolean"
	ConfigPropertyString  ConfigPropertyType = "String"
	ConfigPropertyText    ConfigPropertyType = "Text"
)

// ConfigProperty declares one option of a mapper configuration
type ConfigProperty struct {
	Name         string             `json:"name"`
	Label        string             `json:"label"`
	HelpText     string             `json:"help_text,omitempty"`
	Type         ConfigPropertyType `json:"type"`
	DefaultValue string             `json:"default_value,omitempty"`
}

// IncludeInTokensConfig returns the inclusion gate properties rendered as
// "include in ..." toggles by the host
func IncludeInTokensConfig() []ConfigProperty {
	return []ConfigProperty{
		{
			Name:         IncludeInAccessToken,
			Label:        "Add to access token",
			HelpText:     "Should the claim be added to the access token?",
			Type:         ConfigPropertyBoolean,
			DefaultValue: "true",
		},
		{
			Name:         IncludeInLightweightAccessToken,
			Label:        "Add to lightweight access token",
			HelpText:     "Should the claim be added to the access token when lightweight access tokens are in use?",
			Type:         ConfigPropertyBoolean,
			DefaultValue: "false",
		},
		{
			Name:         IncludeInIntrospection,
			Label:        "Add to token introspection",
			HelpText:     "Should the claim be added to the token introspection response?",
			Type:         ConfigPropertyBoolean,
			DefaultValue: "true",
		},
	}
}

// MapperConfig maps option names to string values
type MapperConfig map[string]string

// Lookup returns the raw value and whether the option is present
func (c MapperConfig) Lookup(name string) (string, bool) {
	v, ok := c[name]
	return v, ok
}

// Bool reads a tri-state boolean option: absent yields def, present yields
// the parsed value. Unparseable values are false.
func (c MapperConfig) Bool(name string, def bool) bool {
	v, ok := c[name]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false
	}
	return b
}

// Copy returns a copy of the configuration
func (c MapperConfig) Copy() MapperConfig {
	if c == nil {
		return MapperConfig{}
	}
	return maps.Clone(c)
}

// AccessTokenGate returns the inclusion gate consulted for an access token
// and whether it is open.
//
// When the session uses lightweight access tokens only the lightweight gate
// counts (absent means closed). Otherwise the access token gate applies, with
// absent meaning open so models persisted before the toggles existed keep
// contributing.
func AccessTokenGate(config MapperConfig, session *Session) (string, bool) {
	if session != nil && session.LightweightAccessTokens {
		return IncludeInLightweightAccessToken, config.Bool(IncludeInLightweightAccessToken, false)
	}
	return IncludeInAccessToken, config.Bool(IncludeInAccessToken, true)
}

// IntrospectionGate returns the introspection inclusion gate and whether it
// is open. Absent means open.
func IntrospectionGate(config MapperConfig) (string, bool) {
	return IncludeInIntrospection, config.Bool(IncludeInIntrospection, true)
}

// MapperModel is a configured instance of a protocol mapper
type MapperModel struct {
	// Name is the model name shown to administrators
	Name string `json:"name" yaml:"name"`

	// ProtocolMapper is the provider id of the mapper implementation
	ProtocolMapper string `json:"protocol_mapper" yaml:"protocol_mapper"`

	// Config holds the model options
	Config MapperConfig `json:"config" yaml:"config"`
}
