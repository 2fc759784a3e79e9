// Package directory provides organization directories backed by static
// configuration, PostgreSQL or Lua scripts, plus caching decorators.
package directory

import (
	"context"
	"fmt"
	"iter"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"

	"github.com/project-kessel/orgaud/internal/service"
)

// StaticOrganization is an organization together with the ids of its members
type StaticOrganization struct {
	// ID identifies the organization. A random id is assigned when empty.
	ID         string              `json:"id" yaml:"id" koanf:"id"`
	Name       string              `json:"name" yaml:"name" koanf:"name"`
	Attributes map[string][]string `json:"attributes" yaml:"attributes" koanf:"attributes"`

	// Members lists the subject ids that belong to the organization
	Members []string `json:"members" yaml:"members" koanf:"members"`
}

// StaticDirectory serves memberships from a fixed list of organizations
type StaticDirectory struct {
	memberships map[string][]*service.Organization
}

// NewStaticDirectory indexes organizations by member.
// Organizations are returned to a member in the order they are listed.
func NewStaticDirectory(orgs []StaticOrganization) (*StaticDirectory, error) {
	seen := make(map[string]bool, len(orgs))
	memberships := make(map[string][]*service.Organization)

	for _, o := range orgs {
		id := o.ID
		if id == "" {
			id = uuid.NewString()
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate organization id %q", id)
		}
		seen[id] = true

		org := &service.Organization{
			ID:         id,
			Name:       o.Name,
			Attributes: o.Attributes,
		}
		for _, member := range o.Members {
			memberships[member] = append(memberships[member], org)
		}
	}

	return &StaticDirectory{memberships: memberships}, nil
}

// LoadStaticFile reads organizations from a YAML or JSON file.
// The file holds either a list of organizations or a map with an
// "organizations" key.
func LoadStaticFile(path string) ([]StaticOrganization, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read organizations file: %w", err)
	}
	return ParseStatic(data)
}

// ParseStatic parses organizations from YAML or JSON data
func ParseStatic(data []byte) ([]StaticOrganization, error) {
	var doc struct {
		Organizations []StaticOrganization `yaml:"organizations"`
	}
	if err := yaml.Unmarshal(data, &doc); err == nil && doc.Organizations != nil {
		return doc.Organizations, nil
	}

	var orgs []StaticOrganization
	if err := yaml.Unmarshal(data, &orgs); err != nil {
		return nil, fmt.Errorf("failed to parse organizations: %w", err)
	}
	return orgs, nil
}

// MembershipsOf implements service.Directory
func (d *StaticDirectory) MembershipsOf(ctx context.Context, subject service.Subject) iter.Seq2[*service.Organization, error] {
	if err := ctx.Err(); err != nil {
		return service.FailedMemberships(err)
	}
	if d == nil {
		return service.Organizations(nil)
	}
	return service.Organizations(d.memberships[subject.ID])
}
