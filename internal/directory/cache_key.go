package directory

import (
	"encoding/json"
	"fmt"

	"github.com/project-kessel/orgaud/internal/service"
)

// cacheSubject is the part of a subject that identifies cached memberships.
// Backends wrapped by a cache must not depend on subject attributes.
type cacheSubject struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

// SerializeSubjectKey serializes the identifying fields of a subject (reversible)
// This is used for distributed caching where the key must be deserializable
func SerializeSubjectKey(subject service.Subject) (string, error) {
	data, err := json.Marshal(cacheSubject{ID: subject.ID, Username: subject.Username})
	if err != nil {
		return "", fmt.Errorf("failed to marshal subject key: %w", err)
	}
	return string(data), nil
}

// DeserializeSubjectKey restores the subject identified by a cache key
// This is used by groupcache when loading on a remote server
func DeserializeSubjectKey(key string) (service.Subject, error) {
	var s cacheSubject
	if err := json.Unmarshal([]byte(key), &s); err != nil {
		return service.Subject{}, fmt.Errorf("failed to unmarshal subject key: %w", err)
	}
	return service.Subject{ID: s.ID, Username: s.Username}, nil
}

// copyOrganizations returns copies of orgs so cached values cannot be
// modified through the returned organizations
func copyOrganizations(orgs []*service.Organization) []*service.Organization {
	out := make([]*service.Organization, len(orgs))
	for i, org := range orgs {
		if org == nil {
			continue
		}
		cp := *org
		if org.Attributes != nil {
			cp.Attributes = make(map[string][]string, len(org.Attributes))
			for k, v := range org.Attributes {
				cp.Attributes[k] = append([]string(nil), v...)
			}
		}
		out[i] = &cp
	}
	return out
}
