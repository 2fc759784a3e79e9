package mapper

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	celhelpers "github.com/project-kessel/orgaud/internal/cel"
	"github.com/project-kessel/orgaud/internal/claims"
	"github.com/project-kessel/orgaud/internal/service"
)

// CELAudienceMapperID is the provider id of the CEL audience mapper
const CELAudienceMapperID = "cel-audience-mapper"

// AudienceExpression is the config option holding the CEL expression
const AudienceExpression = "audience.expression"

// CELAudienceMapper adds audiences computed by a CEL (Common Expression Language)
// expression configured on the mapper model.
//
// The CEL expression has access to the following variables:
//   - subject - the subject as a map (id, username, attributes)
//   - session - the session as a map (id, client_id, scope, lightweight)
//   - organizations - the subject's organizations (id, name, attributes)
//   - attribute(org, name) - first value of an organization attribute, or ""
//
// The expression must evaluate to a string or a list of strings. Blank values
// are dropped.
//
// Example CEL expressions:
//
//	// Fixed audience
//	"account"
//
//	// Audience per client
//	session.client_id + "-api"
//
//	// Organization attribute other than audience
//	organizations.map(o, attribute(o, "tenant")).filter(t, t != "")
type CELAudienceMapper struct {
	env      *cel.Env
	observer service.MapperObserver

	mu       sync.Mutex
	programs map[string]cel.Program
}

// NewCELAudienceMapper creates a new CEL-based audience mapper
func NewCELAudienceMapper(opts ...CELOption) (*CELAudienceMapper, error) {
	env, err := cel.NewEnv(celhelpers.AudienceInputLibrary())
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	m := &CELAudienceMapper{
		env:      env,
		observer: service.NoOpObserver(),
		programs: make(map[string]cel.Program),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// CELOption configures a CELAudienceMapper
type CELOption func(*CELAudienceMapper)

// WithCELObserver sets the observer notified for every transform
func WithCELObserver(observer service.MapperObserver) CELOption {
	return func(m *CELAudienceMapper) {
		if observer != nil {
			m.observer = observer
		}
	}
}

// Descriptor implements service.ProtocolMapper
func (m *CELAudienceMapper) Descriptor() service.Descriptor {
	props := []service.ConfigProperty{
		{
			Name:     AudienceExpression,
			Label:    "Audience expression",
			HelpText: "CEL expression evaluating to an audience or a list of audiences.",
			Type:     service.ConfigPropertyText,
		},
	}
	return service.Descriptor{
		ID:               CELAudienceMapperID,
		DisplayType:      "CEL Audience Mapper",
		DisplayCategory:  TokenMapperCategory,
		HelpText:         "Adds 'aud' (audience) values computed by a CEL expression.",
		ConfigProperties: append(props, service.IncludeInTokensConfig()...),
	}
}

// ValidateConfig implements service.ConfigValidator
func (m *CELAudienceMapper) ValidateConfig(config service.MapperConfig) error {
	_, err := m.program(config)
	return err
}

// TransformAccessToken implements service.AccessTokenMapper
func (m *CELAudienceMapper) TransformAccessToken(
	ctx context.Context,
	token service.Token,
	config service.MapperConfig,
	session *service.Session,
	directory service.Directory,
) service.Token {
	ctx, probe := m.observer.AudienceMappingStarted(ctx, CELAudienceMapperID, service.EventAccessToken, session)
	defer probe.End()

	gate, included := service.AccessTokenGate(config, session)
	probe.GateEvaluated(gate, included)
	if !included {
		return token
	}

	m.evaluate(ctx, token, config, session, directory, probe)
	return token
}

// TransformIntrospection implements service.IntrospectionMapper
func (m *CELAudienceMapper) TransformIntrospection(
	ctx context.Context,
	token service.Token,
	config service.MapperConfig,
	session *service.Session,
	directory service.Directory,
) service.Token {
	ctx, probe := m.observer.AudienceMappingStarted(ctx, CELAudienceMapperID, service.EventIntrospection, session)
	defer probe.End()

	gate, included := service.IntrospectionGate(config)
	probe.GateEvaluated(gate, included)
	if !included {
		return token
	}

	m.evaluate(ctx, token, config, session, directory, probe)
	return token
}

func (m *CELAudienceMapper) evaluate(
	ctx context.Context,
	token service.Token,
	config service.MapperConfig,
	session *service.Session,
	directory service.Directory,
	probe service.AudienceMappingProbe,
) {
	program, err := m.program(config)
	if err != nil {
		probe.ExpressionFailed(err)
		return
	}

	var orgs []*service.Organization
	if directory != nil && session != nil {
		orgs, err = service.CollectMemberships(directory.MembershipsOf(ctx, session.Subject))
		if err != nil {
			probe.DirectoryFailed(err)
		}
	}

	result, _, err := program.ContextEval(ctx, celhelpers.AudienceActivation(session, orgs))
	if err != nil {
		probe.ExpressionFailed(fmt.Errorf("failed to evaluate CEL expression: %w", err))
		return
	}

	audiences, err := celhelpers.AudienceValues(result)
	if err != nil {
		probe.ExpressionFailed(err)
		return
	}

	for _, audience := range audiences {
		if claims.IsBlank(audience) {
			continue
		}
		token.AddAudience(audience)
		probe.AudienceMerged(audience)
	}
}

// program returns the compiled program for the configured expression,
// compiling it on first use
func (m *CELAudienceMapper) program(config service.MapperConfig) (cel.Program, error) {
	expr, _ := config.Lookup(AudienceExpression)
	if claims.IsBlank(expr) {
		return nil, fmt.Errorf("%s cannot be empty", AudienceExpression)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if program, ok := m.programs[expr]; ok {
		return program, nil
	}

	ast, issues := m.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	program, err := m.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	m.programs[expr] = program
	return program, nil
}
