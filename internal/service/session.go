package service

// Subject is the authenticated user carried by a session
// Mappers read it but never mutate it
type Subject struct {
	// ID is the opaque identifier of the subject
	ID string `json:"id"`

	// Username is the login name, if known
	Username string `json:"username,omitempty"`

	// Attributes are the subject's profile attributes
	Attributes map[string][]string `json:"attributes,omitempty"`
}

// Session is the authenticated session a token is being built for
type Session struct {
	// ID identifies the session
	ID string

	// Subject is the authenticated user
	Subject Subject

	// ClientID is the client the token is issued to
	ClientID string

	// Scope is the granted OAuth2 scope
	Scope string

	// LightweightAccessTokens reports whether the host issues lightweight
	// access tokens for this session
	LightweightAccessTokens bool
}

// Token is the mutable token surface mappers enrich
// Implementations are owned by the host call frame for the duration of a
// transform and must not be retained by mappers.
type Token interface {
	// AddAudience adds a value to the audience set.
	// Adding a present value is a no-op and blank values are ignored.
	AddAudience(audience string)

	// Audience returns the current audience values
	Audience() []string
}

// TokenEvent identifies the host event a mapper runs for
type TokenEvent string

const (
	// EventAccessToken is access token construction
	EventAccessToken TokenEvent = "access_token"

	// EventIntrospection is introspection response construction
	EventIntrospection TokenEvent = "introspection"
)
