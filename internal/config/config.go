package config

import (
	"github.com/project-kessel/orgaud/internal/directory"
	"github.com/project-kessel/orgaud/internal/httpfixture"
)

// Config is the root configuration
type Config struct {
	// Realm holds realm-wide token settings
	Realm RealmConfig `koanf:"realm"`

	// Directory configures the organization directory handed to mappers
	Directory DirectoryConfig `koanf:"directory"`

	// Mappers are the configured mapper models, applied in order
	Mappers []MapperModelConfig `koanf:"mappers"`

	// Fixtures serve canned HTTP responses to scripted directories
	Fixtures []FixtureConfig `koanf:"fixtures"`

	// Observability configures logging and observers
	Observability *ObservabilityConfig `koanf:"observability"`
}

// RealmConfig holds realm-wide token settings
type RealmConfig struct {
	Name string `koanf:"name"`

	// Issuer is the iss claim of access tokens minted by the CLI
	Issuer string `koanf:"issuer"`

	// AccessTokenLifespan is a duration string such as "5m"
	AccessTokenLifespan string `koanf:"access_token_lifespan"`

	// LightweightAccessTokens turns on lightweight access tokens for every session
	LightweightAccessTokens bool `koanf:"lightweight_access_tokens"`
}

// DirectoryConfig configures the organization directory
type DirectoryConfig struct {
	// Type is one of static, postgres, lua or none
	Type string `koanf:"type"`

	// Organizations are the inline organizations of a static directory
	Organizations []directory.StaticOrganization `koanf:"organizations"`

	// File is a YAML or JSON file of static organizations
	File string `koanf:"file"`

	Postgres *PostgresConfig `koanf:"postgres"`
	Lua      *LuaConfig      `koanf:"lua"`
	Caching  *CachingConfig  `koanf:"caching"`
}

// PostgresConfig configures a Postgres directory
type PostgresConfig struct {
	DSN      string `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns"`

	// Query overrides the membership query. It takes the subject id as $1.
	Query string `koanf:"query"`
}

// LuaConfig configures a Lua directory
type LuaConfig struct {
	Script     string         `koanf:"script"`
	ScriptFile string         `koanf:"script_file"`
	// Config is handed to scripts through config.get. Dotted keys may arrive
	// split into nested maps; config.get resolves them either way.
	Config     map[string]any `koanf:"config"`
	HTTP       *HTTPConfig    `koanf:"http"`
}

// HTTPConfig configures the http service of a Lua directory
type HTTPConfig struct {
	Timeout string `koanf:"timeout"`
}

// CachingConfig configures a caching layer in front of the directory
type CachingConfig struct {
	// Type is one of in_memory, distributed or none
	Type string `koanf:"type"`

	// TTL is a duration string. Empty or zero disables expiry.
	TTL string `koanf:"ttl"`

	// GroupName is the groupcache group of a distributed cache
	GroupName string `koanf:"group_name"`

	// CacheSize is the size of a distributed cache in bytes
	CacheSize int64 `koanf:"cache_size"`
}

// MapperModelConfig is one configured mapper instance
type MapperModelConfig struct {
	Name           string            `koanf:"name"`
	ProtocolMapper string            `koanf:"protocol_mapper"`
	Config         map[string]string `koanf:"config"`
}

// FixtureConfig is an HTTP fixture rule
type FixtureConfig struct {
	// Type must be http_rule (the default)
	Type     string                     `koanf:"type"`
	Request  httpfixture.FixtureRequest `koanf:"request"`
	Response httpfixture.Fixture        `koanf:"response"`
}

// ObservabilityConfig configures logging and observers
type ObservabilityConfig struct {
	// Type is one of logging, noop or composite
	Type string `koanf:"type"`

	// LogLevel is one of debug, info, warn or error
	LogLevel string `koanf:"log_level"`

	// LogFormat is json or text
	LogFormat string `koanf:"log_format"`

	// AudienceMapping tunes records of audience mapping events
	AudienceMapping *EventLoggingConfig `koanf:"audience_mapping"`

	// Observers are the children of a composite observer
	Observers []ObservabilityConfig `koanf:"observers"`
}

// EventLoggingConfig tunes logging of one event type
type EventLoggingConfig struct {
	// Enabled turns the event's records off when false
	Enabled *bool `koanf:"enabled"`

	// LogLevel overrides the default level for the event
	LogLevel string `koanf:"log_level"`
}
