package config

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/project-kessel/orgaud/internal/httpfixture"
	"github.com/project-kessel/orgaud/internal/mapper"
	"github.com/project-kessel/orgaud/internal/service"
)

// Provider constructs all application components from configuration
// This is the main entry point for building a configured orgaud instance
type Provider struct {
	config *Config

	// Lazily constructed components (cached after first call)
	registry            *service.MapperRegistry
	directory           service.Directory
	directoryBuilt      bool
	closeDirectory      func()
	runtime             *service.Runtime
	httpFixtureProvider httpfixture.FixtureProvider
	httpFixtureBuilt    bool
	observer            service.MapperObserver
}

// NewProvider creates a new provider from configuration
func NewProvider(config *Config) *Provider {
	return &Provider{
		config: config,
	}
}

// SetObserver sets the mapper observer for all components built by this provider.
// Must be called before Registry() or any method that depends on the observer.
func (p *Provider) SetObserver(observer service.MapperObserver) {
	p.observer = observer
}

// Observer returns the configured mapper observer.
// If SetObserver was called, returns that observer.
// Otherwise, creates a default observer from config.
func (p *Provider) Observer() (service.MapperObserver, error) {
	if p.observer != nil {
		return p.observer, nil
	}

	observer, err := NewObserver(p.config.Observability)
	if err != nil {
		return nil, fmt.Errorf("failed to create observer: %w", err)
	}

	p.observer = observer
	return observer, nil
}

// Registry returns the registry of available protocol mappers
func (p *Provider) Registry() (*service.MapperRegistry, error) {
	if p.registry != nil {
		return p.registry, nil
	}

	observer, err := p.Observer()
	if err != nil {
		return nil, err
	}

	registry := service.NewMapperRegistry()
	if err := mapper.RegisterAll(registry, observer); err != nil {
		return nil, fmt.Errorf("failed to register mappers: %w", err)
	}

	p.registry = registry
	return registry, nil
}

// Directory returns the configured organization directory.
// A nil directory is returned when the directory type is none.
func (p *Provider) Directory(ctx context.Context) (service.Directory, error) {
	if p.directoryBuilt {
		return p.directory, nil
	}

	transport, err := p.HTTPTransport()
	if err != nil {
		return nil, err
	}

	dir, closeFn, err := NewDirectory(ctx, p.config.Directory, transport)
	if err != nil {
		return nil, err
	}

	p.directory = dir
	p.closeDirectory = closeFn
	p.directoryBuilt = true
	return dir, nil
}

// MapperModels returns the configured mapper models
func (p *Provider) MapperModels() []service.MapperModel {
	models := make([]service.MapperModel, 0, len(p.config.Mappers))
	for _, m := range p.config.Mappers {
		models = append(models, service.MapperModel{
			Name:           m.Name,
			ProtocolMapper: m.ProtocolMapper,
			Config:         service.MapperConfig(m.Config),
		})
	}
	return models
}

// Runtime returns the host runtime running the configured mapper models
func (p *Provider) Runtime(ctx context.Context) (*service.Runtime, error) {
	if p.runtime != nil {
		return p.runtime, nil
	}

	registry, err := p.Registry()
	if err != nil {
		return nil, err
	}

	dir, err := p.Directory(ctx)
	if err != nil {
		return nil, err
	}

	runtime, err := service.NewRuntime(service.RuntimeConfig{
		Registry:                registry,
		Models:                  p.MapperModels(),
		Directory:               dir,
		LightweightAccessTokens: p.config.Realm.LightweightAccessTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}

	p.runtime = runtime
	return runtime, nil
}

// Realm returns the realm configuration
func (p *Provider) Realm() RealmConfig {
	return p.config.Realm
}

// AccessTokenLifespan returns the configured access token lifespan
func (p *Provider) AccessTokenLifespan() (time.Duration, error) {
	if p.config.Realm.AccessTokenLifespan == "" {
		return 5 * time.Minute, nil
	}
	d, err := time.ParseDuration(p.config.Realm.AccessTokenLifespan)
	if err != nil {
		return 0, fmt.Errorf("invalid realm.access_token_lifespan: %w", err)
	}
	return d, nil
}

// HTTPTransport returns an HTTP RoundTripper configured with fixtures if available
// Returns nil if no special transport is needed (caller should use http.DefaultTransport)
func (p *Provider) HTTPTransport() (http.RoundTripper, error) {
	fixtureProvider, err := p.HTTPFixtureProvider()
	if err != nil {
		return nil, err
	}
	if fixtureProvider == nil {
		return nil, nil
	}
	return httpfixture.NewTransport(httpfixture.TransportConfig{
		Provider: fixtureProvider,
		Strict:   true,
	}), nil
}

// HTTPFixtureProvider returns the fixture provider for hermetic runs
// Returns nil if no fixtures are configured (normal production mode)
func (p *Provider) HTTPFixtureProvider() (httpfixture.FixtureProvider, error) {
	if p.httpFixtureBuilt {
		return p.httpFixtureProvider, nil
	}

	provider, err := BuildHTTPFixtureProvider(p.config.Fixtures)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP fixture provider: %w", err)
	}

	p.httpFixtureProvider = provider
	p.httpFixtureBuilt = true
	return p.httpFixtureProvider, nil
}

// Close releases resources held by built components
func (p *Provider) Close() {
	if p.closeDirectory != nil {
		p.closeDirectory()
		p.closeDirectory = nil
	}
}
