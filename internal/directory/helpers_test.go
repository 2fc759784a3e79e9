package directory

import (
	"context"
	"iter"
	"sync"
	"testing"

	"github.com/project-kessel/orgaud/internal/service"
)

// countingDirectory serves fixed memberships and counts enumerations
type countingDirectory struct {
	mu    sync.Mutex
	calls int
	orgs  map[string][]*service.Organization
	err   error
}

func (d *countingDirectory) MembershipsOf(ctx context.Context, subject service.Subject) iter.Seq2[*service.Organization, error] {
	return func(yield func(*service.Organization, error) bool) {
		d.mu.Lock()
		d.calls++
		d.mu.Unlock()

		for _, org := range d.orgs[subject.ID] {
			if !yield(org, nil) {
				return
			}
		}
		if d.err != nil {
			yield(nil, d.err)
		}
	}
}

func (d *countingDirectory) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func collect(t *testing.T, dir service.Directory, subjectID string) []*service.Organization {
	t.Helper()
	orgs, err := service.CollectMemberships(dir.MembershipsOf(context.Background(), service.Subject{ID: subjectID}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return orgs
}

func ids(orgs []*service.Organization) []string {
	out := make([]string, len(orgs))
	for i, org := range orgs {
		out[i] = org.ID
	}
	return out
}
