package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-kessel/orgaud/internal/mapper"
	"github.com/project-kessel/orgaud/internal/service"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewLoader_WithoutConfigFile(t *testing.T) {
	loader, err := NewLoader("")
	if err != nil {
		t.Fatalf("Expected loader to work without config file, got error: %v", err)
	}

	cfg, err := loader.Get()
	if err != nil {
		t.Fatalf("Expected to get config without config file, got error: %v", err)
	}

	if cfg.Realm.Name != "orgaud" {
		t.Errorf("Expected default realm 'orgaud', got '%s'", cfg.Realm.Name)
	}
	if cfg.Realm.LightweightAccessTokens {
		t.Error("Expected lightweight access tokens to be off by default")
	}
	if cfg.Directory.Type != "none" {
		t.Errorf("Expected default directory type 'none', got '%s'", cfg.Directory.Type)
	}
	if len(cfg.Mappers) != 1 || cfg.Mappers[0].ProtocolMapper != mapper.OrganizationAudienceMapperID {
		t.Errorf("Expected a single organization audience mapper by default, got %+v", cfg.Mappers)
	}
	if cfg.Observability == nil || cfg.Observability.Type != "logging" {
		t.Errorf("Expected logging observability by default, got %+v", cfg.Observability)
	}
}

func TestNewLoader_WithEnvironmentVariables(t *testing.T) {
	t.Setenv("ORGAUD_DIRECTORY__TYPE", "static")
	t.Setenv("ORGAUD_REALM__LIGHTWEIGHT_ACCESS_TOKENS", "true")

	loader, err := NewLoader("")
	require.NoError(t, err)

	cfg, err := loader.Get()
	require.NoError(t, err)

	assert.Equal(t, "static", cfg.Directory.Type)
	assert.True(t, cfg.Realm.LightweightAccessTokens)
	assert.Equal(t, "orgaud", cfg.Realm.Name, "other defaults still apply")
}

func TestNewLoader_WithConfigFile(t *testing.T) {
	path := writeFile(t, "orgaud.yaml", `
realm:
  name: demo
directory:
  type: static
  organizations:
    - id: acme
      name: Acme
      attributes:
        audience: [svc-a]
      members: [alice]
  caching:
    type: in_memory
    ttl: 1m
mappers:
  - name: org audience
    protocol_mapper: oidc-organization-audience-mapper
    config:
      access.token.claim: "true"
      introspection.token.claim: false
fixtures:
  - request:
      method: GET
      url: https://orgs.example.com/users/alice
    response:
      status_code: 200
      body: "[]"
      delay: 10ms
observability:
  type: noop
  audience_mapping:
    enabled: false
`)

	loader, err := NewLoader(path)
	require.NoError(t, err)
	cfg, err := loader.Get()
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Realm.Name)
	assert.Equal(t, "http://localhost:8080/realms/orgaud", cfg.Realm.Issuer)

	require.Len(t, cfg.Directory.Organizations, 1)
	org := cfg.Directory.Organizations[0]
	assert.Equal(t, "acme", org.ID)
	assert.Equal(t, []string{"svc-a"}, org.Attributes["audience"])
	assert.Equal(t, []string{"alice"}, org.Members)
	require.NotNil(t, cfg.Directory.Caching)
	assert.Equal(t, "1m", cfg.Directory.Caching.TTL)

	require.Len(t, cfg.Mappers, 1)
	mcfg := service.MapperConfig(cfg.Mappers[0].Config)
	assert.True(t, mcfg.Bool(service.IncludeInAccessToken, false))
	assert.False(t, mcfg.Bool(service.IncludeInIntrospection, true))

	require.Len(t, cfg.Fixtures, 1)
	assert.Equal(t, 200, cfg.Fixtures[0].Response.StatusCode)
	require.NotNil(t, cfg.Fixtures[0].Response.Delay)
	assert.Equal(t, "10ms", cfg.Fixtures[0].Response.Delay.String())

	require.NotNil(t, cfg.Observability.AudienceMapping)
	require.NotNil(t, cfg.Observability.AudienceMapping.Enabled)
	assert.False(t, *cfg.Observability.AudienceMapping.Enabled)
}

func TestNewLoader_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, "orgaud.ini", "x=1")

	_, err := NewLoader(path)
	assert.ErrorContains(t, err, "unsupported config file format")
}

func TestNewLoaderWithFlags(t *testing.T) {
	t.Setenv("ORGAUD_DIRECTORY__TYPE", "static")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--directory-type", "lua", "--realm-lightweight-access-tokens"}))

	loader, err := NewLoaderWithFlags("", flags)
	require.NoError(t, err)
	cfg, err := loader.Get()
	require.NoError(t, err)

	assert.Equal(t, "lua", cfg.Directory.Type, "flags win over environment")
	assert.True(t, cfg.Realm.LightweightAccessTokens)
	assert.Equal(t, "info", cfg.Observability.LogLevel, "unset flags do not override")
}

func TestEnvTransform(t *testing.T) {
	assert.Equal(t, "directory.postgres.dsn", envTransform("ORGAUD_DIRECTORY__POSTGRES__DSN"))
	assert.Equal(t, "realm.lightweight_access_tokens", envTransform("ORGAUD_REALM__LIGHTWEIGHT_ACCESS_TOKENS"))
}
