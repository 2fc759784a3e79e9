package service

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrMapperNotFound is returned when no mapper is registered for a provider id
	ErrMapperNotFound = errors.New("protocol mapper not found")

	// ErrDuplicateMapper is returned when a provider id is registered twice
	ErrDuplicateMapper = errors.New("protocol mapper already registered")
)

// MapperRegistry stores protocol mappers by provider id
// It is populated once at startup and read-only afterwards.
type MapperRegistry struct {
	mappers map[string]ProtocolMapper
}

// NewMapperRegistry creates an empty registry
func NewMapperRegistry() *MapperRegistry {
	return &MapperRegistry{
		mappers: make(map[string]ProtocolMapper),
	}
}

// Register adds a mapper under its descriptor id
func (r *MapperRegistry) Register(mapper ProtocolMapper) error {
	id := mapper.Descriptor().ID
	if id == "" {
		return fmt.Errorf("protocol mapper id is required")
	}
	if _, ok := r.mappers[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMapper, id)
	}
	r.mappers[id] = mapper
	return nil
}

// Get returns the mapper registered under id
func (r *MapperRegistry) Get(id string) (ProtocolMapper, error) {
	mapper, ok := r.mappers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMapperNotFound, id)
	}
	return mapper, nil
}

// Descriptors returns the descriptors of all registered mappers sorted by id
func (r *MapperRegistry) Descriptors() []Descriptor {
	descriptors := make([]Descriptor, 0, len(r.mappers))
	for _, mapper := range r.mappers {
		descriptors = append(descriptors, mapper.Descriptor())
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].ID < descriptors[j].ID
	})
	return descriptors
}
