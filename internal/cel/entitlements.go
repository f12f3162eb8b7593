// Package cel provides CEL environment helpers for entitlement mapping.
package cel

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
)

// EntitlementLibrary creates a CEL library declaring the variables an
// entitlement expression can reference:
//   - subject - the player UUID as a string
//   - username - the display name as a string
//   - attributes - the profile attributes fetched for the subject, as a map
func EntitlementLibrary() cel.EnvOption {
	return cel.Lib(&entitlementLib{})
}

type entitlementLib struct{}

func (lib *entitlementLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Variable("subject", cel.StringType),
		cel.Variable("username", cel.StringType),
		// Attributes vary by deployment, so they stay dynamic
		cel.Variable("attributes", cel.DynType),
	}
}

func (lib *entitlementLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

// ConvertCELValue converts a CEL ref.Val to a Go native value
func ConvertCELValue(val ref.Val) any {
	nativeVal := val.Value()

	// CEL's internal map representation keys by ref.Val
	if m, ok := nativeVal.(map[ref.Val]ref.Val); ok {
		result := make(map[string]any)
		for k, v := range m {
			if keyStr, ok := k.Value().(string); ok {
				result[keyStr] = ConvertCELValue(v)
			}
		}
		return result
	}

	// List literals evaluate to CEL's internal list representation
	if slice, ok := nativeVal.([]ref.Val); ok {
		result := make([]any, len(slice))
		for i, item := range slice {
			result[i] = ConvertCELValue(item)
		}
		return result
	}

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

	if m, ok := nativeVal.(map[string]any); ok {
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
