package cel

import (
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"

	"github.com/project-kessel/orgaud/internal/service"
)

// AudienceInputLibrary creates a CEL library for audience expressions.
//
// This provides compile-time declarations for:
//   - subject - the session subject as a map with id, username and attributes
//   - session - the session as a map with id, client_id, scope and lightweight
//   - organizations - the subject's organizations as a list of maps with id, name and attributes
//   - attribute(org, name) - the first value of an organization attribute, or ""
func AudienceInputLibrary() cel.EnvOption {
	return cel.Lib(&audienceInputLib{})
}

type audienceInputLib struct{}

func (lib *audienceInputLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Variable("subject", cel.DynType),
		cel.Variable("session", cel.DynType),
		cel.Variable("organizations", cel.ListType(cel.DynType)),
		cel.Function("attribute",
			cel.Overload("attribute_dyn_string",
				[]*cel.Type{cel.DynType, cel.StringType},
				cel.StringType,
				cel.BinaryBinding(firstAttribute),
			),
		),
	}
}

func (lib *audienceInputLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

// firstAttribute implements the attribute() CEL function
func firstAttribute(org ref.Val, name ref.Val) ref.Val {
	attrName, ok := name.Value().(string)
	if !ok {
		return types.NewErr("attribute name must be a string")
	}

	orgMap, ok := ConvertCELValue(org).(map[string]any)
	if !ok {
		return types.String("")
	}
	attrs, ok := orgMap["attributes"].(map[string]any)
	if !ok {
		return types.String("")
	}

	switch values := attrs[attrName].(type) {
	case []any:
		if len(values) > 0 {
			if s, ok := values[0].(string); ok {
				return types.String(s)
			}
		}
	case []string:
		if len(values) > 0 {
			return types.String(values[0])
		}
	}
	return types.String("")
}

// AudienceActivation builds the variables for one evaluation
func AudienceActivation(session *service.Session, orgs []*service.Organization) map[string]any {
	subject := map[string]any{}
	sess := map[string]any{}
	if session != nil {
		subject = map[string]any{
			"id":         session.Subject.ID,
			"username":   session.Subject.Username,
			"attributes": attributesToMap(session.Subject.Attributes),
		}
		sess = map[string]any{
			"id":          session.ID,
			"client_id":   session.ClientID,
			"scope":       session.Scope,
			"lightweight": session.LightweightAccessTokens,
		}
	}

	organizations := make([]any, 0, len(orgs))
	for _, org := range orgs {
		if org == nil {
			continue
		}
		organizations = append(organizations, map[string]any{
			"id":         org.ID,
			"name":       org.Name,
			"attributes": attributesToMap(org.Attributes),
		})
	}

	return map[string]any{
		"subject":       subject,
		"session":       sess,
		"organizations": organizations,
	}
}

func attributesToMap(attrs map[string][]string) map[string]any {
	m := make(map[string]any, len(attrs))
	for name, values := range attrs {
		list := make([]any, len(values))
		for i, v := range values {
			list[i] = v
		}
		m[name] = list
	}
	return m
}

// AudienceValues converts the result of an audience expression to strings.
// A string yields one value, a list of strings yields its elements and null
// yields nothing. Any other result is an error.
func AudienceValues(val ref.Val) ([]string, error) {
	switch v := val.(type) {
	case types.String:
		return []string{string(v)}, nil
	case types.Null:
		return nil, nil
	case traits.Lister:
		native, err := v.ConvertToNative(reflect.TypeOf([]string{}))
		if err != nil {
			return nil, fmt.Errorf("audience list must only contain strings: %w", err)
		}
		return native.([]string), nil
	default:
		return nil, fmt.Errorf("audience expression must evaluate to a string or list of strings, got: %s", val.Type().TypeName())
	}
}

// ConvertCELValue converts a CEL ref.Val to a Go native value
func ConvertCELValue(val ref.Val) any {
	nativeVal := val.Value()

	// Check if it's a map[ref.Val]ref.Val (CEL's internal map representation)
	if m, ok := nativeVal.(map[ref.Val]ref.Val); ok {
		result := make(map[string]any)
		for k, v := range m {
			if keyStr, ok := k.Value().(string); ok {
				result[keyStr] = ConvertCELValue(v)
			}
		}
		return result
	}

	if list, ok := nativeVal.([]ref.Val); ok {
		result := make([]any, len(list))
		for i, item := range list {
			result[i] = ConvertCELValue(item)
		}
		return result
	}

	// Check if it's a slice that needs conversion
	if slice, ok := nativeVal.([]any); ok {
		result := make([]any, len(slice))
		for i, item := range slice {
			if refVal, ok := item.(ref.Val); ok {
				result[i] = ConvertCELValue(refVal)
			} else {
				result[i] = item
			}
		}
		return result
	}

	// Check if it's already a map[string]any
	if m, ok := nativeVal.(map[string]any); ok {
		// Still need to convert any nested ref.Val values
		result := make(map[string]any)
		for k, v := range m {
			if refVal, ok := v.(ref.Val); ok {
				result[k] = ConvertCELValue(refVal)
			} else {
				result[k] = v
			}
		}
		return result
	}

	return nativeVal
}
