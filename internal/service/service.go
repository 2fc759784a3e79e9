package service

import (
	"context"
	"fmt"
)

// Runtime plays the host side of the mapper contract: it binds configured
// mapper models to registered mappers and runs them while a token is built
type Runtime struct {
	registry    *MapperRegistry
	models      []MapperModel
	directory   Directory
	lightweight bool
}

// RuntimeConfig configures a Runtime
type RuntimeConfig struct {
	// Registry holds the available protocol mappers
	Registry *MapperRegistry

	// Models are the configured mapper instances, applied in order
	Models []MapperModel

	// Directory is the organization directory handed to mappers
	// May be nil when no directory is bound
	Directory Directory

	// LightweightAccessTokens enables lightweight access tokens for every session
	LightweightAccessTokens bool
}

// NewRuntime creates a runtime, checking that every model references a
// registered mapper and passes the mapper's config validation
func NewRuntime(cfg RuntimeConfig) (*Runtime, error) {
	registry := cfg.Registry
	if registry == nil {
		registry = NewMapperRegistry()
	}

	models := make([]MapperModel, 0, len(cfg.Models))
	for _, model := range cfg.Models {
		mapper, err := registry.Get(model.ProtocolMapper)
		if err != nil {
			return nil, fmt.Errorf("mapper model %q: %w", model.Name, err)
		}
		if v, ok := mapper.(ConfigValidator); ok {
			if err := v.ValidateConfig(model.Config); err != nil {
				return nil, fmt.Errorf("mapper model %q: invalid config: %w", model.Name, err)
			}
		}
		model.Config = model.Config.Copy()
		models = append(models, model)
	}

	return &Runtime{
		registry:    registry,
		models:      models,
		directory:   cfg.Directory,
		lightweight: cfg.LightweightAccessTokens,
	}, nil
}

// Models returns the configured mapper models
func (r *Runtime) Models() []MapperModel {
	return r.models
}

// Registry returns the mapper registry
func (r *Runtime) Registry() *MapperRegistry {
	return r.registry
}

// LightweightAccessTokensEnabled reports whether lightweight access tokens are
// in use for the session, either per session or realm wide
func (r *Runtime) LightweightAccessTokensEnabled(session *Session) bool {
	return r.lightweight || (session != nil && session.LightweightAccessTokens)
}

// ApplyAccessToken runs every access token mapper model against the token
// and returns the same token
func (r *Runtime) ApplyAccessToken(ctx context.Context, session *Session, token Token) (Token, error) {
	s := r.effectiveSession(session)
	for _, model := range r.models {
		mapper, err := r.registry.Get(model.ProtocolMapper)
		if err != nil {
			return nil, fmt.Errorf("mapper model %q: %w", model.Name, err)
		}
		if m, ok := mapper.(AccessTokenMapper); ok {
			token = m.TransformAccessToken(ctx, token, model.Config, s, r.directory)
		}
	}
	return token, nil
}

// ApplyIntrospection runs every introspection mapper model against the
// introspection response and returns the same token
func (r *Runtime) ApplyIntrospection(ctx context.Context, session *Session, token Token) (Token, error) {
	s := r.effectiveSession(session)
	for _, model := range r.models {
		mapper, err := r.registry.Get(model.ProtocolMapper)
		if err != nil {
			return nil, fmt.Errorf("mapper model %q: %w", model.Name, err)
		}
		if m, ok := mapper.(IntrospectionMapper); ok {
			token = m.TransformIntrospection(ctx, token, model.Config, s, r.directory)
		}
	}
	return token, nil
}

// effectiveSession returns a copy of the session with the realm-wide
// lightweight setting applied
func (r *Runtime) effectiveSession(session *Session) *Session {
	var s Session
	if session != nil {
		s = *session
	}
	s.LightweightAccessTokens = r.LightweightAccessTokensEnabled(session)
	return &s
}
