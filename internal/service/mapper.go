package service

import (
	"context"
)

// Descriptor is the static metadata a protocol mapper exposes to the host
type Descriptor struct {
	// ID is the provider identifier used to bind mapper models back to the
	// implementation. It must be unique within a registry.
	ID string `json:"id"`

	// DisplayType is the human readable mapper name
	DisplayType string `json:"display_type"`

	// DisplayCategory groups mappers in the host UI
	DisplayCategory string `json:"display_category"`

	// HelpText describes what the mapper does
	HelpText string `json:"help_text"`

	// ConfigProperties declares the options a mapper model may carry
	ConfigProperties []ConfigProperty `json:"config_properties"`
}

// ProtocolMapper is a pluggable transform the host runs during token construction
type ProtocolMapper interface {
	// Descriptor returns the mapper metadata
	Descriptor() Descriptor
}

// AccessTokenMapper contributes to access tokens
type AccessTokenMapper interface {
	ProtocolMapper

	// TransformAccessToken enriches the token in place and returns it.
	// Data problems never fail the transform; the token is returned unchanged
	// or partially enriched instead.
	TransformAccessToken(ctx context.Context, token Token, config MapperConfig, session *Session, directory Directory) Token
}

// IntrospectionMapper contributes to token introspection responses
type IntrospectionMapper interface {
	ProtocolMapper

	// TransformIntrospection enriches the introspection response in place and returns it
	TransformIntrospection(ctx context.Context, token Token, config MapperConfig, session *Session, directory Directory) Token
}

// ConfigValidator is an optional interface for mappers that can reject a
// model configuration before it is used
type ConfigValidator interface {
	ValidateConfig(config MapperConfig) error
}
