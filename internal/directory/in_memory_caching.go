package directory

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/project-kessel/orgaud/internal/clock"
	"github.com/project-kessel/orgaud/internal/service"
)

// InMemoryCachingDirectory wraps a directory with simple in-memory caching of
// complete membership lists. Failed enumerations are never cached.
type InMemoryCachingDirectory struct {
	source  service.Directory
	ttl     time.Duration
	clock   clock.Clock
	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

// cacheEntry stores cached memberships with expiration
type cacheEntry struct {
	orgs      []*service.Organization
	expiresAt time.Time
}

// InMemoryCachingOption is a functional option for configuring InMemoryCachingDirectory
type InMemoryCachingOption func(*InMemoryCachingDirectory)

// WithClock sets the clock for the caching directory
func WithClock(clk clock.Clock) InMemoryCachingOption {
	return func(d *InMemoryCachingDirectory) {
		d.clock = clk
	}
}

// NewInMemoryCachingDirectory wraps source with an in-memory cache.
// With a zero ttl entries never expire.
func NewInMemoryCachingDirectory(source service.Directory, ttl time.Duration, opts ...InMemoryCachingOption) *InMemoryCachingDirectory {
	d := &InMemoryCachingDirectory{
		source:  source,
		ttl:     ttl,
		clock:   clock.NewSystemClock(),
		entries: make(map[string]*cacheEntry),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MembershipsOf checks the cache first, then enumerates the source on miss
func (c *InMemoryCachingDirectory) MembershipsOf(ctx context.Context, subject service.Subject) iter.Seq2[*service.Organization, error] {
	return func(yield func(*service.Organization, error) bool) {
		key, err := SerializeSubjectKey(subject)
		if err != nil {
			// If the key cannot be built, skip caching
			for org, err := range c.source.MembershipsOf(ctx, subject) {
				if !yield(org, err) || err != nil {
					return
				}
			}
			return
		}

		if orgs, ok := c.lookup(key); ok {
			for _, org := range copyOrganizations(orgs) {
				if !yield(org, nil) {
					return
				}
			}
			return
		}

		orgs, err := service.CollectMemberships(c.source.MembershipsOf(ctx, subject))
		if err == nil {
			c.store(key, orgs)
		}

		for _, org := range copyOrganizations(orgs) {
			if !yield(org, nil) {
				return
			}
		}
		if err != nil {
			yield(nil, err)
		}
	}
}

func (c *InMemoryCachingDirectory) lookup(key string) ([]*service.Organization, bool) {
	c.mu.RLock()
	entry, found := c.entries[key]
	c.mu.RUnlock()

	if !found {
		return nil, false
	}
	if entry.expiresAt.IsZero() || c.clock.Now().Before(entry.expiresAt) {
		return entry.orgs, true
	}

	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil, false
}

func (c *InMemoryCachingDirectory) store(key string, orgs []*service.Organization) {
	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.clock.Now().Add(c.ttl)
	}

	c.mu.Lock()
	c.entries[key] = &cacheEntry{
		orgs:      copyOrganizations(orgs),
		expiresAt: expiresAt,
	}
	c.mu.Unlock()
}

// Cleanup removes expired entries from the cache
// This should be called periodically to prevent memory leaks
func (c *InMemoryCachingDirectory) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for key, entry := range c.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Size returns the number of entries in the cache (for debugging/monitoring)
func (c *InMemoryCachingDirectory) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
