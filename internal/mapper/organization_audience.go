package mapper

import (
	"context"
	"strconv"

	"github.com/project-kessel/orgaud/internal/claims"
	"github.com/project-kessel/orgaud/internal/service"
)

// OrganizationAudienceMapperID is the provider id of the organization audience mapper
const OrganizationAudienceMapperID = "oidc-organization-audience-mapper"

// Reasons reported when an organization contributes no audience
const (
	SkipNoAttributes    = "no_attributes"
	SkipNoAudience      = "no_audience"
	SkipBlankAudience   = "blank_audience"
	SkipNilOrganization = "nil_organization"
)

// OrganizationAudienceMapper adds the audience declared by each of the
// subject's organizations to access tokens and introspection responses.
//
// Only the first value of an organization's "audience" attribute is used.
// Existing audience entries are never removed, and the transform never fails
// token construction: a missing or failing directory leaves the token as is
// (or partially enriched).
type OrganizationAudienceMapper struct {
	observer service.MapperObserver
}

// Option configures an OrganizationAudienceMapper
type Option func(*OrganizationAudienceMapper)

// WithObserver sets the observer notified for every transform
func WithObserver(observer service.MapperObserver) Option {
	return func(m *OrganizationAudienceMapper) {
		m.observer = observer
	}
}

// NewOrganizationAudienceMapper creates the mapper
func NewOrganizationAudienceMapper(opts ...Option) *OrganizationAudienceMapper {
	m := &OrganizationAudienceMapper{}
	for _, opt := range opts {
		opt(m)
	}
	if m.observer == nil {
		m.observer = service.NoOpObserver()
	}
	return m
}

// Descriptor implements service.ProtocolMapper
func (m *OrganizationAudienceMapper) Descriptor() service.Descriptor {
	return service.Descriptor{
		ID:               OrganizationAudienceMapperID,
		DisplayType:      "Organization Audience Mapper",
		DisplayCategory:  TokenMapperCategory,
		HelpText:         "Adds an 'aud' (audience) claim containing organization audience values defined by the 'audience' attribute.",
		ConfigProperties: service.IncludeInTokensConfig(),
	}
}

// TransformAccessToken implements service.AccessTokenMapper
func (m *OrganizationAudienceMapper) TransformAccessToken(
	ctx context.Context,
	token service.Token,
	config service.MapperConfig,
	session *service.Session,
	directory service.Directory,
) service.Token {
	ctx, probe := m.observer.AudienceMappingStarted(ctx, OrganizationAudienceMapperID, service.EventAccessToken, session)
	defer probe.End()

	gate, included := service.AccessTokenGate(config, session)
	probe.GateEvaluated(gate, included)
	if !included {
		return token
	}

	m.setAudience(ctx, token, session, directory, probe)
	return token
}

// TransformIntrospection implements service.IntrospectionMapper
func (m *OrganizationAudienceMapper) TransformIntrospection(
	ctx context.Context,
	token service.Token,
	config service.MapperConfig,
	session *service.Session,
	directory service.Directory,
) service.Token {
	ctx, probe := m.observer.AudienceMappingStarted(ctx, OrganizationAudienceMapperID, service.EventIntrospection, session)
	defer probe.End()

	gate, included := service.IntrospectionGate(config)
	probe.GateEvaluated(gate, included)
	if !included {
		return token
	}

	m.setAudience(ctx, token, session, directory, probe)
	return token
}

func (m *OrganizationAudienceMapper) setAudience(
	ctx context.Context,
	token service.Token,
	session *service.Session,
	directory service.Directory,
	probe service.AudienceMappingProbe,
) {
	if directory == nil {
		probe.DirectoryUnavailable()
		return
	}

	var subject service.Subject
	if session != nil {
		subject = session.Subject
	}

	audiences := newAudienceSet()
	for org, err := range directory.MembershipsOf(ctx, subject) {
		if err != nil {
			// Organizations read before the failure still count.
			probe.DirectoryFailed(err)
			break
		}
		audience, reason := OrganizationAudience(org)
		if reason != "" {
			probe.OrganizationSkipped(org, reason)
			continue
		}
		audiences.add(audience)
	}

	for _, audience := range audiences.values {
		token.AddAudience(audience)
		probe.AudienceMerged(audience)
	}
}

// OrganizationAudience projects an organization to the audience it declares.
// It returns the first value of the "audience" attribute, or a skip reason
// when the organization declares no usable audience.
func OrganizationAudience(org *service.Organization) (string, string) {
	if org == nil {
		return "", SkipNilOrganization
	}
	if org.Attributes == nil {
		return "", SkipNoAttributes
	}
	values := org.Attributes[service.AudienceAttribute]
	if len(values) == 0 {
		return "", SkipNoAudience
	}
	if claims.IsBlank(values[0]) {
		return "", SkipBlankAudience
	}
	return values[0], ""
}

// BuildMapperModel returns a model of the organization audience mapper with
// both inclusion gates set explicitly
func BuildMapperModel(name string, includeInAccessToken, includeInIntrospection bool) service.MapperModel {
	return service.MapperModel{
		Name:           name,
		ProtocolMapper: OrganizationAudienceMapperID,
		Config: service.MapperConfig{
			service.IncludeInAccessToken:   strconv.FormatBool(includeInAccessToken),
			service.IncludeInIntrospection: strconv.FormatBool(includeInIntrospection),
		},
	}
}

// audienceSet collects distinct audiences in first-seen order
type audienceSet struct {
	seen   map[string]struct{}
	values []string
}

func newAudienceSet() *audienceSet {
	return &audienceSet{seen: make(map[string]struct{})}
}

func (s *audienceSet) add(audience string) {
	if _, ok := s.seen[audience]; ok {
		return
	}
	s.seen[audience] = struct{}{}
	s.values = append(s.values, audience)
}
