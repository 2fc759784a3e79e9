package token

import (
	"encoding/json"

	"github.com/project-kessel/orgaud/internal/claims"
)

// IntrospectionResponse is an RFC 7662 token introspection response
type IntrospectionResponse struct {
	Active    bool     `json:"active"`
	Scope     string   `json:"scope,omitempty"`
	ClientID  string   `json:"client_id,omitempty"`
	Username  string   `json:"username,omitempty"`
	TokenType string   `json:"token_type,omitempty"`
	ExpiresAt int64    `json:"exp,omitempty"`
	IssuedAt  int64    `json:"iat,omitempty"`
	Subject   string   `json:"sub,omitempty"`
	Aud       Audience `json:"aud,omitempty"`
	Issuer    string   `json:"iss,omitempty"`
	ID        string   `json:"jti,omitempty"`

	// Other holds extension claims
	Other claims.Claims `json:"-"`
}

var introspectionKeys = []string{
	"active", "scope", "client_id", "username", "token_type",
	"exp", "iat", "sub", "aud", "iss", "jti",
}

// IntrospectionFor describes an active access token
func IntrospectionFor(t *AccessToken, username string) *IntrospectionResponse {
	return &IntrospectionResponse{
		Active:    true,
		Scope:     t.Scope,
		ClientID:  t.AuthorizedParty,
		Username:  username,
		TokenType: "Bearer",
		ExpiresAt: t.ExpiresAt,
		IssuedAt:  t.IssuedAt,
		Subject:   t.Subject,
		Aud:       append(Audience(nil), t.Aud...),
		Issuer:    t.Issuer,
		ID:        t.ID,
	}
}

// AddAudience implements service.Token
func (r *IntrospectionResponse) AddAudience(audience string) {
	r.Aud.Add(audience)
}

// Audience implements service.Token
func (r *IntrospectionResponse) Audience() []string {
	return r.Aud
}

type introspectionJSON IntrospectionResponse

// MarshalJSON implements json.Marshaler
func (r *IntrospectionResponse) MarshalJSON() ([]byte, error) {
	return marshalWithOther((*introspectionJSON)(r), r.Other)
}

// UnmarshalJSON implements json.Unmarshaler
func (r *IntrospectionResponse) UnmarshalJSON(data []byte) error {
	var typed introspectionJSON
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	other, err := unmarshalOther(data, introspectionKeys...)
	if err != nil {
		return err
	}
	*r = IntrospectionResponse(typed)
	r.Other = other
	return nil
}
