// Package token provides the concrete token surfaces mappers enrich.
//
// Every surface implements service.Token: audiences are kept in insertion
// order, blank values are ignored and a value is never stored twice.
package token

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/project-kessel/orgaud/internal/claims"
)

// ErrInvalidAudience is returned when an aud claim is neither a scalar nor a
// list of scalars
var ErrInvalidAudience = errors.New("aud must be a string or an array of strings")

// Audience is the aud claim.
// It accepts a single value or an array when decoding and always encodes as
// an array. Numbers and booleans are kept in their JSON text form; nulls are
// dropped.
type Audience []string

// UnmarshalJSON implements json.Unmarshaler
func (a *Audience) UnmarshalJSON(data []byte) error {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		list = []json.RawMessage{data}
	}

	var out Audience
	for _, raw := range list {
		value, ok, err := audienceValue(raw)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidAudience, string(data))
		}
		if ok {
			out.Add(value)
		}
	}
	*a = out
	return nil
}

// audienceValue converts one JSON scalar to an audience value
func audienceValue(raw json.RawMessage) (string, bool, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false, err
	}
	switch v := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	case float64, bool:
		return string(bytes.TrimSpace(raw)), true, nil
	default:
		return "", false, fmt.Errorf("unsupported audience value %T", v)
	}
}

// MarshalJSON implements json.Marshaler
func (a Audience) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(a))
}

// Add appends audience unless it is blank or already present
func (a *Audience) Add(audience string) {
	if claims.IsBlank(audience) || slices.Contains(*a, audience) {
		return
	}
	*a = append(*a, audience)
}

// marshalWithOther encodes the typed claims in v and lays them over other.
// Typed claims win on key conflicts.
func marshalWithOther(v any, other claims.Claims) ([]byte, error) {
	typed, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(other) == 0 {
		return typed, nil
	}

	var known map[string]any
	if err := json.Unmarshal(typed, &known); err != nil {
		return nil, err
	}

	out := other.Copy()
	out.Merge(known)
	return json.Marshal(out)
}

// unmarshalOther decodes data and returns the claims whose names are not in known
func unmarshalOther(data []byte, known ...string) (claims.Claims, error) {
	var all claims.Claims
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, key := range known {
		delete(all, key)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}
