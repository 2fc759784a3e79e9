package service

import (
	"context"
	"iter"
)

// AudienceAttribute is the organization attribute that names the audience
// the organization contributes to tokens of its members
const AudienceAttribute = "audience"

// Organization is a grouping of subjects with shared attributes
// All fields are exported and JSON-serializable so directories can cache them
type Organization struct {
	// ID is the unique identifier of the organization
	ID string `json:"id" yaml:"id"`

	// Name is the human readable name
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Attributes maps attribute names to ordered values
	// May be nil when the organization has no attributes
	Attributes map[string][]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Directory enumerates the organizations a subject belongs to
// Directories may be backed by a database, a script or a remote API.
// Mappers only test for a nil interface; hosts must not bind a typed nil.
type Directory interface {
	// MembershipsOf returns the organizations that include the subject as a member.
	//
	// The returned sequence is lazy and must be traversed at most once. It yields
	// a non-nil error as its last element when enumeration fails; organizations
	// yielded before the error are valid. An empty sequence means the subject
	// has no memberships.
	MembershipsOf(ctx context.Context, subject Subject) iter.Seq2[*Organization, error]
}

// DirectoryFunc adapts a function to the Directory interface
type DirectoryFunc func(ctx context.Context, subject Subject) iter.Seq2[*Organization, error]

// MembershipsOf implements Directory
func (f DirectoryFunc) MembershipsOf(ctx context.Context, subject Subject) iter.Seq2[*Organization, error] {
	return f(ctx, subject)
}

// Organizations returns a sequence over a fixed list of organizations
func Organizations(orgs []*Organization) iter.Seq2[*Organization, error] {
	return func(yield func(*Organization, error) bool) {
		for _, org := range orgs {
			if !yield(org, nil) {
				return
			}
		}
	}
}

// FailedMemberships returns a sequence that yields only the given error
func FailedMemberships(err error) iter.Seq2[*Organization, error] {
	return func(yield func(*Organization, error) bool) {
		yield(nil, err)
	}
}

// CollectMemberships drains a membership sequence into a slice.
// On error it returns the organizations read so far together with the error.
func CollectMemberships(seq iter.Seq2[*Organization, error]) ([]*Organization, error) {
	var orgs []*Organization
	for org, err := range seq {
		if err != nil {
			return orgs, err
		}
		orgs = append(orgs, org)
	}
	return orgs, nil
}
