package directory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-kessel/orgaud/internal/clock"
	"github.com/project-kessel/orgaud/internal/service"
)

func newCountingDirectory() *countingDirectory {
	return &countingDirectory{
		orgs: map[string][]*service.Organization{
			"alice": {
				{ID: "acme", Attributes: map[string][]string{"audience": {"svc-a"}}},
				{ID: "globex", Attributes: map[string][]string{"audience": {"svc-b"}}},
			},
			"bob": {{ID: "acme"}},
		},
	}
}

func TestInMemoryCachingDirectory(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	t.Run("caches memberships per subject", func(t *testing.T) {
		source := newCountingDirectory()
		cached := NewInMemoryCachingDirectory(source, time.Hour)

		assert.Equal(t, []string{"acme", "globex"}, ids(collect(t, cached, "alice")))
		assert.Equal(t, []string{"acme", "globex"}, ids(collect(t, cached, "alice")))
		assert.Equal(t, 1, source.callCount())

		assert.Equal(t, []string{"acme"}, ids(collect(t, cached, "bob")))
		assert.Equal(t, 2, source.callCount())
		assert.Equal(t, 2, cached.Size())
	})

	t.Run("entries expire", func(t *testing.T) {
		clk := clock.NewFixtureClock(start)
		source := newCountingDirectory()
		cached := NewInMemoryCachingDirectory(source, 5*time.Minute, WithClock(clk))

		collect(t, cached, "alice")
		clk.Advance(4 * time.Minute)
		collect(t, cached, "alice")
		assert.Equal(t, 1, source.callCount())

		clk.Advance(2 * time.Minute)
		collect(t, cached, "alice")
		assert.Equal(t, 2, source.callCount())
	})

	t.Run("cleanup removes expired entries", func(t *testing.T) {
		clk := clock.NewFixtureClock(start)
		cached := NewInMemoryCachingDirectory(newCountingDirectory(), time.Minute, WithClock(clk))

		collect(t, cached, "alice")
		collect(t, cached, "bob")
		require.Equal(t, 2, cached.Size())

		clk.Advance(time.Minute)
		cached.Cleanup()
		assert.Equal(t, 0, cached.Size())
	})

	t.Run("failures are not cached", func(t *testing.T) {
		source := newCountingDirectory()
		source.err = errors.New("directory offline")
		cached := NewInMemoryCachingDirectory(source, time.Hour)

		for i := 0; i < 2; i++ {
			orgs, err := service.CollectMemberships(cached.MembershipsOf(context.Background(), service.Subject{ID: "alice"}))
			assert.ErrorContains(t, err, "offline")
			assert.Equal(t, []string{"acme", "globex"}, ids(orgs))
		}
		assert.Equal(t, 2, source.callCount())
		assert.Equal(t, 0, cached.Size())
	})

	t.Run("nil organizations pass through", func(t *testing.T) {
		source := &countingDirectory{orgs: map[string][]*service.Organization{
			"alice": {nil, {ID: "acme", Attributes: map[string][]string{"audience": {"svc-a"}}}},
		}}
		cached := NewInMemoryCachingDirectory(source, time.Hour)

		for i := 0; i < 2; i++ {
			orgs := collect(t, cached, "alice")
			require.Len(t, orgs, 2)
			assert.Nil(t, orgs[0])
			assert.Equal(t, "acme", orgs[1].ID)
		}
		assert.Equal(t, 1, source.callCount())
	})

	t.Run("callers cannot modify cached organizations", func(t *testing.T) {
		cached := NewInMemoryCachingDirectory(newCountingDirectory(), time.Hour)

		first := collect(t, cached, "alice")
		first[0].Attributes["audience"][0] = "tampered"

		second := collect(t, cached, "alice")
		assert.Equal(t, "svc-a", second[0].Attributes["audience"][0])
	})
}

func TestDistributedCachingDirectory(t *testing.T) {
	// groupcache panics on duplicate group names
	groupName := func(t *testing.T) string {
		return fmt.Sprintf("test-memberships-%s-%d", t.Name(), time.Now().UnixNano())
	}

	t.Run("caches memberships using groupcache", func(t *testing.T) {
		source := newCountingDirectory()
		cached := NewDistributedCachingDirectory(source, DistributedCachingConfig{
			GroupName:      groupName(t),
			CacheSizeBytes: 1 << 20,
		})

		first := collect(t, cached, "alice")
		second := collect(t, cached, "alice")

		assert.Equal(t, []string{"acme", "globex"}, ids(first))
		assert.Equal(t, ids(first), ids(second))
		assert.Equal(t, []string{"svc-a"}, second[0].Attributes["audience"])
		assert.Equal(t, 1, source.callCount())

		collect(t, cached, "bob")
		assert.Equal(t, 2, source.callCount())
	})

	t.Run("ttl buckets expire entries", func(t *testing.T) {
		clk := clock.NewFixtureClock(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
		source := newCountingDirectory()
		cached := NewDistributedCachingDirectory(source, DistributedCachingConfig{
			GroupName: groupName(t),
			TTL:       5 * time.Minute,
			Clock:     clk,
		})

		collect(t, cached, "alice")
		clk.Advance(4 * time.Minute)
		collect(t, cached, "alice")
		assert.Equal(t, 1, source.callCount())

		clk.Advance(time.Minute)
		collect(t, cached, "alice")
		assert.Equal(t, 2, source.callCount())
	})

	t.Run("no memberships are cached too", func(t *testing.T) {
		source := newCountingDirectory()
		cached := NewDistributedCachingDirectory(source, DistributedCachingConfig{GroupName: groupName(t)})

		assert.Empty(t, collect(t, cached, "carol"))
		assert.Empty(t, collect(t, cached, "carol"))
		assert.Equal(t, 1, source.callCount())
	})

	t.Run("failures surface as errors", func(t *testing.T) {
		source := newCountingDirectory()
		source.err = errors.New("directory offline")
		cached := NewDistributedCachingDirectory(source, DistributedCachingConfig{GroupName: groupName(t)})

		_, err := service.CollectMemberships(cached.MembershipsOf(context.Background(), service.Subject{ID: "alice"}))
		assert.ErrorContains(t, err, "offline")
	})
}

func TestSubjectKey(t *testing.T) {
	key, err := SerializeSubjectKey(service.Subject{ID: "alice", Username: "al", Attributes: map[string][]string{"x": {"y"}}})
	require.NoError(t, err)

	subject, err := DeserializeSubjectKey(stripTTLSuffix(key + ":ttl:1700000000"))
	require.NoError(t, err)
	assert.Equal(t, service.Subject{ID: "alice", Username: "al"}, subject)

	assert.Equal(t, `{"id":"a:ttl:b"}`, stripTTLSuffix(`{"id":"a:ttl:b"}`))
}

func TestRoundTimestampToInterval(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	interval := 5 * time.Minute

	assert.True(t, roundTimestampToInterval(base.Add(150*time.Second), interval).Equal(base))
	assert.True(t, roundTimestampToInterval(base.Add(interval), interval).Equal(base.Add(interval)))
	assert.True(t, roundTimestampToInterval(base.Add(7*time.Minute+30*time.Second), interval).Equal(base.Add(interval)))
}
