package token

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/project-kessel/orgaud/internal/claims"
	"github.com/project-kessel/orgaud/internal/service"
)

// AccessToken is the claim set of an OIDC access token being built
type AccessToken struct {
	Issuer          string   `json:"iss,omitempty"`
	Subject         string   `json:"sub,omitempty"`
	Aud             Audience `json:"aud,omitempty"`
	ExpiresAt       int64    `json:"exp,omitempty"`
	IssuedAt        int64    `json:"iat,omitempty"`
	ID              string   `json:"jti,omitempty"`
	AuthorizedParty string   `json:"azp,omitempty"`
	Scope           string   `json:"scope,omitempty"`

	// Other holds every claim without a typed field
	Other claims.Claims `json:"-"`
}

var accessTokenKeys = []string{"iss", "sub", "aud", "exp", "iat", "jti", "azp", "scope"}

// NewAccessToken creates an access token for session, valid for ttl from now
func NewAccessToken(issuer string, session *service.Session, now time.Time, ttl time.Duration) *AccessToken {
	t := &AccessToken{
		Issuer:    issuer,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
		ID:        uuid.NewString(),
	}
	if session != nil {
		t.Subject = session.Subject.ID
		t.AuthorizedParty = session.ClientID
		t.Scope = session.Scope
	}
	return t
}

// AddAudience implements service.Token
func (t *AccessToken) AddAudience(audience string) {
	t.Aud.Add(audience)
}

// Audience implements service.Token
func (t *AccessToken) Audience() []string {
	return t.Aud
}

type accessTokenJSON AccessToken

// MarshalJSON implements json.Marshaler
func (t *AccessToken) MarshalJSON() ([]byte, error) {
	return marshalWithOther((*accessTokenJSON)(t), t.Other)
}

// UnmarshalJSON implements json.Unmarshaler
func (t *AccessToken) UnmarshalJSON(data []byte) error {
	var typed accessTokenJSON
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	other, err := unmarshalOther(data, accessTokenKeys...)
	if err != nil {
		return err
	}
	*t = AccessToken(typed)
	t.Other = other
	return nil
}
