package mapper

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/project-kessel/orgaud/internal/service"
)

func newCELMapper(t *testing.T, opts ...CELOption) *CELAudienceMapper {
	t.Helper()
	m, err := NewCELAudienceMapper(opts...)
	if err != nil {
		t.Fatalf("failed to create mapper: %v", err)
	}
	return m
}

func TestCELAudienceMapper_ValidateConfig(t *testing.T) {
	m := newCELMapper(t)

	t.Run("valid expression", func(t *testing.T) {
		err := m.ValidateConfig(service.MapperConfig{AudienceExpression: `"account"`})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("missing expression", func(t *testing.T) {
		if err := m.ValidateConfig(service.MapperConfig{}); err == nil {
			t.Fatal("expected error for missing expression")
		}
	})

	t.Run("invalid CEL syntax", func(t *testing.T) {
		err := m.ValidateConfig(service.MapperConfig{AudienceExpression: "this is not valid CEL {{{"})
		if err == nil {
			t.Fatal("expected error for invalid CEL syntax")
		}
	})

	t.Run("undeclared variable", func(t *testing.T) {
		err := m.ValidateConfig(service.MapperConfig{AudienceExpression: "request.path"})
		if err == nil {
			t.Fatal("expected error for undeclared variable")
		}
	})
}

func TestCELAudienceMapper_Transform(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		expression string
		existing   []string
		want       []string
	}{
		{"static string", `"account"`, nil, []string{"account"}},
		{"static list", `["a", "b", "a"]`, nil, []string{"a", "b"}},
		{"session variable", `session.client_id + "-api"`, nil, []string{"web-api"}},
		{"subject variable", `"user:" + subject.id`, nil, []string{"user:user-1"}},
		{"blank values dropped", `["", " ", "svc"]`, nil, []string{"svc"}},
		{"null adds nothing", `null`, []string{"legacy"}, []string{"legacy"}},
		{
			"organization attributes",
			`organizations.map(o, attribute(o, "tenant")).filter(t, t != "")`,
			nil,
			[]string{"tenant-1"},
		},
		{"organization ids", `organizations.map(o, o.id)`, nil, []string{"o1", "o2"}},
		{"keeps existing audience", `"account"`, []string{"legacy"}, []string{"legacy", "account"}},
	}

	dir := staticDirectory(
		&service.Organization{ID: "o1", Attributes: map[string][]string{"tenant": {"tenant-1", "ignored"}}},
		&service.Organization{ID: "o2"},
	)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newCELMapper(t)
			token := &service.StubToken{Values: tt.existing}
			cfg := service.MapperConfig{AudienceExpression: tt.expression}

			m.TransformAccessToken(ctx, token, cfg, testSession(), dir)

			assertAudience(t, token, tt.want...)
		})
	}

	t.Run("gate off", func(t *testing.T) {
		m := newCELMapper(t)
		token := &service.StubToken{}
		cfg := service.MapperConfig{AudienceExpression: `"account"`, service.IncludeInIntrospection: "false"}

		m.TransformIntrospection(ctx, token, cfg, testSession(), dir)

		assertAudience(t, token)
	})

	t.Run("works without directory", func(t *testing.T) {
		m := newCELMapper(t)
		token := &service.StubToken{}
		cfg := service.MapperConfig{AudienceExpression: `size(organizations) == 0 ? "no-orgs" : "orgs"`}

		m.TransformIntrospection(ctx, token, cfg, testSession(), nil)

		assertAudience(t, token, "no-orgs")
	})
}

func TestCELAudienceMapper_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong result type leaves token unchanged", func(t *testing.T) {
		fakeObs := service.NewFakeObserver(t)
		m := newCELMapper(t, WithCELObserver(fakeObs))
		token := &service.StubToken{Values: []string{"legacy"}}

		m.TransformAccessToken(ctx, token, service.MapperConfig{AudienceExpression: `42`}, testSession(), nil)

		assertAudience(t, token, "legacy")
		p := fakeObs.AssertSingleProbe("AudienceMappingStarted", map[string]any{"mapperID": CELAudienceMapperID})
		p.AssertProbeSequence("GateEvaluated", service.ProbeCall("ExpressionFailed", service.AnyError()), "End")
	})

	t.Run("invalid expression is reported", func(t *testing.T) {
		fakeObs := service.NewFakeObserver(t)
		m := newCELMapper(t, WithCELObserver(fakeObs))

		m.TransformAccessToken(ctx, &service.StubToken{}, service.MapperConfig{AudienceExpression: "{{{"}, testSession(), nil)

		p := fakeObs.AssertSingleProbe("AudienceMappingStarted", nil)
		p.AssertProbeSequence("GateEvaluated", service.ProbeCall("ExpressionFailed", service.ErrorContaining("compile")), "End")
	})

	t.Run("directory failure evaluates partial organizations", func(t *testing.T) {
		fakeObs := service.NewFakeObserver(t)
		m := newCELMapper(t, WithCELObserver(fakeObs))
		dir := service.DirectoryFunc(func(ctx context.Context, subject service.Subject) iter.Seq2[*service.Organization, error] {
			return func(yield func(*service.Organization, error) bool) {
				if !yield(&service.Organization{ID: "o1"}, nil) {
					return
				}
				yield(nil, errors.New("timeout"))
			}
		})
		token := &service.StubToken{}

		m.TransformAccessToken(ctx, token, service.MapperConfig{AudienceExpression: `organizations.map(o, o.id)`}, testSession(), dir)

		assertAudience(t, token, "o1")
		p := fakeObs.AssertSingleProbe("AudienceMappingStarted", nil)
		p.AssertProbeSequence(
			"GateEvaluated",
			service.ProbeCall("DirectoryFailed", service.ErrorContaining("timeout")),
			service.ProbeCall("AudienceMerged", "o1"),
			"End",
		)
	})
}

func TestCELAudienceMapper_ProgramCache(t *testing.T) {
	m := newCELMapper(t)
	cfg := service.MapperConfig{AudienceExpression: `"account"`}

	first, err := m.program(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := m.program(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != second {
		t.Error("expected cached program to be reused")
	}
	if len(m.programs) != 1 {
		t.Errorf("expected 1 cached program, got %d", len(m.programs))
	}
}

func TestOrganizationMapperKeepsCELAudiences(t *testing.T) {
	registry := service.NewMapperRegistry()
	if err := RegisterAll(registry, nil); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}

	rt, err := service.NewRuntime(service.RuntimeConfig{
		Registry: registry,
		Models: []service.MapperModel{
			{Name: "account", ProtocolMapper: CELAudienceMapperID, Config: service.MapperConfig{AudienceExpression: `"account"`}},
			{Name: "orgs", ProtocolMapper: OrganizationAudienceMapperID},
		},
		Directory: s1Directory(),
	})
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}

	token, err := rt.ApplyAccessToken(context.Background(), testSession(), &service.StubToken{})
	if err != nil {
		t.Fatalf("ApplyAccessToken failed: %v", err)
	}
	assertAudience(t, token, "account", "svc-a", "svc-b")

	t.Run("invalid expression rejected at startup", func(t *testing.T) {
		_, err := service.NewRuntime(service.RuntimeConfig{
			Registry: registry,
			Models:   []service.MapperModel{{Name: "bad", ProtocolMapper: CELAudienceMapperID}},
		})
		if err == nil {
			t.Fatal("expected error for missing expression")
		}
	})
}
