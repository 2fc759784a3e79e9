package service

import (
	"context"
	"slices"
	"strings"
)

// StubAudienceMapper is a simple stub mapper for testing.
// It adds a fixed set of audiences to access tokens and introspection responses
// and records the sessions it was invoked with.
type StubAudienceMapper struct {
	id        string
	audiences []string

	// Sessions holds the session of every invocation, in order
	Sessions []*Session
}

// NewStubAudienceMapper creates a new stub mapper registered under id
func NewStubAudienceMapper(id string, audiences ...string) *StubAudienceMapper {
	return &StubAudienceMapper{
		id:        id,
		audiences: audiences,
	}
}

// Descriptor implements the ProtocolMapper interface
func (s *StubAudienceMapper) Descriptor() Descriptor {
	return Descriptor{
		ID:               s.id,
		DisplayType:      "Stub Audience",
		DisplayCategory:  "Token Mapper",
		HelpText:         "Adds fixed audiences.",
		ConfigProperties: IncludeInTokensConfig(),
	}
}

// TransformAccessToken implements the AccessTokenMapper interface
func (s *StubAudienceMapper) TransformAccessToken(ctx context.Context, token Token, config MapperConfig, session *Session, directory Directory) Token {
	s.Sessions = append(s.Sessions, session)
	if _, ok := AccessTokenGate(config, session); !ok {
		return token
	}
	for _, aud := range s.audiences {
		token.AddAudience(aud)
	}
	return token
}

// TransformIntrospection implements the IntrospectionMapper interface
func (s *StubAudienceMapper) TransformIntrospection(ctx context.Context, token Token, config MapperConfig, session *Session, directory Directory) Token {
	s.Sessions = append(s.Sessions, session)
	if _, ok := IntrospectionGate(config); !ok {
		return token
	}
	for _, aud := range s.audiences {
		token.AddAudience(aud)
	}
	return token
}

// DescriptorOnlyMapper implements ProtocolMapper without contributing to any token
type DescriptorOnlyMapper struct {
	ID string
}

// Descriptor implements the ProtocolMapper interface
func (d *DescriptorOnlyMapper) Descriptor() Descriptor {
	return Descriptor{ID: d.ID, DisplayType: d.ID}
}

// StubToken is an in-memory Token for testing
type StubToken struct {
	Values []string
}

// AddAudience implements the Token interface
func (t *StubToken) AddAudience(audience string) {
	if strings.TrimSpace(audience) == "" || slices.Contains(t.Values, audience) {
		return
	}
	t.Values = append(t.Values, audience)
}

// Audience implements the Token interface
func (t *StubToken) Audience() []string {
	return t.Values
}
