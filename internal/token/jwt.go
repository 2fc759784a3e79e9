package token

import (
	"errors"
	"fmt"
	"slices"

	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/project-kessel/orgaud/internal/claims"
)

// JWT exposes the audience of a jwx token.
// Set failures are collected and reported by Err since service.Token
// cannot return errors.
type JWT struct {
	token jwt.Token
	err   error
}

// NewJWT wraps token
func NewJWT(token jwt.Token) *JWT {
	return &JWT{token: token}
}

// ParseJWT parses a compact serialized JWT without verifying its signature.
// Tokens reaching a mapper have already been authenticated by the host.
func ParseJWT(data []byte) (*JWT, error) {
	token, err := jwt.Parse(data, jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return nil, fmt.Errorf("failed to parse jwt: %w", err)
	}
	return NewJWT(token), nil
}

// AddAudience implements service.Token
func (j *JWT) AddAudience(audience string) {
	current := j.Audience()
	if claims.IsBlank(audience) || slices.Contains(current, audience) {
		return
	}
	if err := j.token.Set(jwt.AudienceKey, append(slices.Clone(current), audience)); err != nil {
		j.err = errors.Join(j.err, fmt.Errorf("failed to set audience %q: %w", audience, err))
	}
}

// Audience implements service.Token
func (j *JWT) Audience() []string {
	aud, ok := j.token.Audience()
	if !ok {
		return nil
	}
	return aud
}

// Token returns the wrapped jwx token
func (j *JWT) Token() jwt.Token {
	return j.token
}

// Err returns the errors raised while updating the token, if any
func (j *JWT) Err() error {
	return j.err
}
