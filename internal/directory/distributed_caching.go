package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/golang/groupcache"

	"github.com/project-kessel/orgaud/internal/clock"
	"github.com/project-kessel/orgaud/internal/service"
)

// DistributedCachingDirectory wraps a directory with groupcache
// for distributed caching across multiple servers
type DistributedCachingDirectory struct {
	source service.Directory
	group  *groupcache.Group
	ttl    time.Duration
	clock  clock.Clock
}

// DistributedCachingConfig configures the distributed caching directory
type DistributedCachingConfig struct {
	// GroupName is the name for this groupcache group
	// Must be unique per process
	GroupName string

	// CacheSizeBytes is the maximum size of the cache in bytes
	// Default: 64MB
	CacheSizeBytes int64

	// TTL buckets cache keys so entries stop being served once the bucket passes
	// Zero disables expiry
	TTL time.Duration

	// Clock is used to compute TTL buckets (defaults to system clock)
	Clock clock.Clock
}

// NewDistributedCachingDirectory wraps a directory with distributed caching using groupcache
//
// Note: groupcache requires that you set up the peer pool before creating caching directories
// See groupcache documentation for details on setting up peers
func NewDistributedCachingDirectory(source service.Directory, config DistributedCachingConfig) *DistributedCachingDirectory {
	if config.GroupName == "" {
		config.GroupName = "directory:memberships"
	}

	if config.CacheSizeBytes == 0 {
		config.CacheSizeBytes = 64 << 20 // 64MB default
	}

	if config.Clock == nil {
		config.Clock = clock.NewSystemClock()
	}

	// Called on cache miss, possibly on a different server in the peer pool
	getter := groupcache.GetterFunc(func(ctx context.Context, key string, dest groupcache.Sink) error {
		subject, err := DeserializeSubjectKey(stripTTLSuffix(key))
		if err != nil {
			return fmt.Errorf("failed to deserialize cache key: %w", err)
		}

		// Partial results are not cached
		orgs, err := service.CollectMemberships(source.MembershipsOf(ctx, subject))
		if err != nil {
			return fmt.Errorf("directory enumeration failed: %w", err)
		}

		if orgs == nil {
			orgs = []*service.Organization{}
		}
		data, err := json.Marshal(orgs)
		if err != nil {
			return fmt.Errorf("failed to marshal cache entry: %w", err)
		}

		// groupcache handles its own eviction based on LRU and cache size
		return dest.SetBytes(data)
	})

	return &DistributedCachingDirectory{
		source: source,
		group:  groupcache.NewGroup(config.GroupName, config.CacheSizeBytes, getter),
		ttl:    config.TTL,
		clock:  config.Clock,
	}
}

// MembershipsOf checks the distributed cache first, then enumerates the source on miss
func (c *DistributedCachingDirectory) MembershipsOf(ctx context.Context, subject service.Subject) iter.Seq2[*service.Organization, error] {
	return func(yield func(*service.Organization, error) bool) {
		orgs, err := c.load(ctx, subject)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, org := range orgs {
			if !yield(org, nil) {
				return
			}
		}
	}
}

func (c *DistributedCachingDirectory) load(ctx context.Context, subject service.Subject) ([]*service.Organization, error) {
	key, err := SerializeSubjectKey(subject)
	if err != nil {
		// If the key cannot be built, fall back to the source
		return service.CollectMemberships(c.source.MembershipsOf(ctx, subject))
	}

	if c.ttl > 0 {
		bucket := roundTimestampToInterval(c.clock.Now(), c.ttl)
		key = fmt.Sprintf("%s:ttl:%d", key, bucket.Unix())
	}

	var data []byte
	if err := c.group.Get(ctx, key, groupcache.AllocatingByteSliceSink(&data)); err != nil {
		return nil, fmt.Errorf("groupcache fetch failed: %w", err)
	}

	var orgs []*service.Organization
	if err := json.Unmarshal(data, &orgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached memberships: %w", err)
	}
	return orgs, nil
}

// roundTimestampToInterval rounds a timestamp down to the interval boundary.
// For example, with a 5-minute TTL:
//   - 10:02:30 -> 10:00:00
//   - 10:05:00 -> 10:05:00
//   - 10:07:30 -> 10:05:00
func roundTimestampToInterval(t time.Time, interval time.Duration) time.Time {
	return time.Unix(0, (t.UnixNano()/interval.Nanoseconds())*interval.Nanoseconds())
}

// stripTTLSuffix removes the ":ttl:timestamp" suffix from a cache key if present
func stripTTLSuffix(key string) string {
	if idx := strings.LastIndex(key, ":ttl:"); idx >= 0 && strings.HasSuffix(key[:idx], "}") {
		return key[:idx]
	}
	return key
}
