package service

import (
	"context"
)

// MapperObserver creates request-scoped observability probes for mapper transforms.
// The observer lives with the mapper singleton and creates a new probe for each invocation.
//
// Following the pattern from https://martinfowler.com/articles/domain-oriented-observability.html#IncludingExecutionContext,
// the observer captures execution context at the start of an operation and returns a
// request-scoped probe that doesn't require context to be passed to each method.
type MapperObserver interface {
	// AudienceMappingStarted creates a new probe for one transform invocation.
	// Returns an instrumented context and a probe scoped to this invocation.
	AudienceMappingStarted(ctx context.Context, mapperID string, event TokenEvent, session *Session) (context.Context, AudienceMappingProbe)
}

// AudienceMappingProbe provides request-scoped observability for a single transform.
//
// The probe lifecycle:
//  1. Created by MapperObserver.AudienceMappingStarted()
//  2. Events reported via the methods below
//  3. Terminated with End() - typically deferred
type AudienceMappingProbe interface {
	// GateEvaluated is called once the inclusion gate has been read
	GateEvaluated(gate string, included bool)

	// DirectoryUnavailable is called when no organization directory is bound
	DirectoryUnavailable()

	// DirectoryFailed is called when membership enumeration stops with an error
	DirectoryFailed(err error)

	// OrganizationSkipped is called for an organization that contributes no audience
	OrganizationSkipped(org *Organization, reason string)

	// ExpressionFailed is called when a scripted mapper cannot evaluate its expression
	ExpressionFailed(err error)

	// AudienceMerged is called for every audience ensured present in the token
	AudienceMerged(audience string)

	// End terminates the observation. Should be deferred to ensure cleanup.
	End()
}

// compositeObserver delegates to multiple observers in order.
// Useful for combining logging, metrics, and tracing.
type compositeObserver struct {
	observers []MapperObserver
}

// NewCompositeObserver creates an observer that delegates to multiple observers.
// Observers are called in the order provided.
func NewCompositeObserver(observers ...MapperObserver) MapperObserver {
	return &compositeObserver{observers: observers}
}

func (c *compositeObserver) AudienceMappingStarted(
	ctx context.Context,
	mapperID string,
	event TokenEvent,
	session *Session,
) (context.Context, AudienceMappingProbe) {
	probes := make([]AudienceMappingProbe, len(c.observers))
	for i, obs := range c.observers {
		ctx, probes[i] = obs.AudienceMappingStarted(ctx, mapperID, event, session)
	}
	return ctx, &compositeAudienceMappingProbe{probes: probes}
}

// compositeAudienceMappingProbe delegates to multiple probes in order.
type compositeAudienceMappingProbe struct {
	probes []AudienceMappingProbe
}

func (c *compositeAudienceMappingProbe) GateEvaluated(gate string, included bool) {
	for _, probe := range c.probes {
		probe.GateEvaluated(gate, included)
	}
}

func (c *compositeAudienceMappingProbe) DirectoryUnavailable() {
	for _, probe := range c.probes {
		probe.DirectoryUnavailable()
	}
}

func (c *compositeAudienceMappingProbe) DirectoryFailed(err error) {
	for _, probe := range c.probes {
		probe.DirectoryFailed(err)
	}
}

func (c *compositeAudienceMappingProbe) OrganizationSkipped(org *Organization, reason string) {
	for _, probe := range c.probes {
		probe.OrganizationSkipped(org, reason)
	}
}

func (c *compositeAudienceMappingProbe) ExpressionFailed(err error) {
	for _, probe := range c.probes {
		probe.ExpressionFailed(err)
	}
}

func (c *compositeAudienceMappingProbe) AudienceMerged(audience string) {
	for _, probe := range c.probes {
		probe.AudienceMerged(audience)
	}
}

func (c *compositeAudienceMappingProbe) End() {
	for _, probe := range c.probes {
		probe.End()
	}
}

// NoOpAudienceMappingProbe is an exported null object implementation of AudienceMappingProbe.
// Implementations can embed this to get default no-op behavior, allowing new methods
// to be added to the interface without breaking existing implementations.
type NoOpAudienceMappingProbe struct{}

func (n *NoOpAudienceMappingProbe) GateEvaluated(gate string, included bool)             {}
func (n *NoOpAudienceMappingProbe) DirectoryUnavailable()                                {}
func (n *NoOpAudienceMappingProbe) DirectoryFailed(err error)                            {}
func (n *NoOpAudienceMappingProbe) OrganizationSkipped(org *Organization, reason string) {}
func (n *NoOpAudienceMappingProbe) ExpressionFailed(err error)                           {}
func (n *NoOpAudienceMappingProbe) AudienceMerged(audience string)                       {}
func (n *NoOpAudienceMappingProbe) End()                                                 {}

// NoOpMapperObserver implements MapperObserver with no-op behavior.
// Use this as a default when no observability is needed.
type NoOpMapperObserver struct{}

// NoOpObserver returns an observer that does nothing.
func NoOpObserver() MapperObserver {
	return &NoOpMapperObserver{}
}

func (n *NoOpMapperObserver) AudienceMappingStarted(ctx context.Context, mapperID string, event TokenEvent, session *Session) (context.Context, AudienceMappingProbe) {
	return ctx, &NoOpAudienceMappingProbe{}
}
