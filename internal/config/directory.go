package config

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/project-kessel/orgaud/internal/directory"
	luaservices "github.com/project-kessel/orgaud/internal/lua"
	"github.com/project-kessel/orgaud/internal/service"
)

// NewDirectory creates the organization directory from configuration.
// It returns a nil directory for type none. The returned close function
// releases backend resources and is never nil.
func NewDirectory(ctx context.Context, cfg DirectoryConfig, transport http.RoundTripper) (service.Directory, func(), error) {
	noop := func() {}

	var (
		dir     service.Directory
		closeFn = noop
		err     error
	)

	switch cfg.Type {
	case "none", "":
		return nil, noop, nil
	case "static":
		dir, err = newStaticDirectory(cfg)
	case "postgres":
		dir, closeFn, err = newPostgresDirectory(ctx, cfg.Postgres)
	case "lua":
		dir, err = newLuaDirectory(cfg.Lua, transport)
	default:
		return nil, noop, fmt.Errorf("unknown directory type: %s (supported: static, postgres, lua, none)", cfg.Type)
	}
	if err != nil {
		return nil, noop, fmt.Errorf("failed to create %s directory: %w", cfg.Type, err)
	}

	if cfg.Caching != nil {
		cached, err := wrapWithCaching(dir, *cfg.Caching)
		if err != nil {
			closeFn()
			return nil, noop, err
		}
		dir = cached
	}

	return dir, closeFn, nil
}

// newStaticDirectory combines inline organizations with those of the fixture file
func newStaticDirectory(cfg DirectoryConfig) (service.Directory, error) {
	orgs := cfg.Organizations
	if cfg.File != "" {
		fromFile, err := directory.LoadStaticFile(cfg.File)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, fromFile...)
	}
	return directory.NewStaticDirectory(orgs)
}

// newPostgresDirectory opens a connection pool for the directory
func newPostgresDirectory(ctx context.Context, cfg *PostgresConfig) (service.Directory, func(), error) {
	if cfg == nil || cfg.DSN == "" {
		return nil, nil, fmt.Errorf("postgres directory requires postgres.dsn")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	var opts []directory.PostgresOption
	if cfg.Query != "" {
		opts = append(opts, directory.WithQuery(cfg.Query))
	}

	return directory.NewPostgresDirectory(pool, opts...), pool.Close, nil
}

// newLuaDirectory creates a Lua directory from an inline script or a script file
func newLuaDirectory(cfg *LuaConfig, transport http.RoundTripper) (service.Directory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lua directory requires a lua section")
	}

	script := cfg.Script
	if cfg.ScriptFile != "" {
		content, err := os.ReadFile(cfg.ScriptFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read script file %s: %w", cfg.ScriptFile, err)
		}
		script = string(content)
	}

	if script == "" {
		return nil, fmt.Errorf("lua directory requires either script or script_file")
	}

	var configSource luaservices.ConfigSource
	if cfg.Config != nil {
		configSource = luaservices.NewMapConfigSource(cfg.Config)
	}

	httpConfig, err := buildHTTPConfig(cfg.HTTP, transport)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP config: %w", err)
	}

	return directory.NewLuaDirectory(directory.LuaDirectoryConfig{
		Script:       script,
		ConfigSource: configSource,
		HTTPConfig:   httpConfig,
	})
}

// buildHTTPConfig creates an HTTPServiceConfig from the config structure
func buildHTTPConfig(cfg *HTTPConfig, transport http.RoundTripper) (*luaservices.HTTPServiceConfig, error) {
	httpServiceCfg := &luaservices.HTTPServiceConfig{
		Timeout:   30 * time.Second,
		Transport: transport,
	}

	if cfg != nil && cfg.Timeout != "" {
		duration, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid http timeout: %w", err)
		}
		httpServiceCfg.Timeout = duration
	}

	return httpServiceCfg, nil
}

// wrapWithCaching wraps a directory with the configured caching layer
func wrapWithCaching(dir service.Directory, cfg CachingConfig) (service.Directory, error) {
	var ttl time.Duration
	if cfg.TTL != "" {
		d, err := time.ParseDuration(cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("invalid caching ttl: %w", err)
		}
		ttl = d
	}

	switch cfg.Type {
	case "in_memory":
		return directory.NewInMemoryCachingDirectory(dir, ttl), nil

	case "distributed":
		return directory.NewDistributedCachingDirectory(dir, directory.DistributedCachingConfig{
			GroupName:      cfg.GroupName,
			CacheSizeBytes: cfg.CacheSize,
			TTL:            ttl,
		}), nil

	case "none", "":
		return dir, nil

	default:
		return nil, fmt.Errorf("unknown caching type: %s (supported: in_memory, distributed, none)", cfg.Type)
	}
}
