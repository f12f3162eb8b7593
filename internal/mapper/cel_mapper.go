// Package mapper derives entitlement lists from player profile data.
package mapper

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	celhelpers "github.com/sanasol-ws/dualauth/internal/cel"
	"github.com/sanasol-ws/dualauth/internal/service"
)

// CELMapper derives entitlements by evaluating a CEL (Common Expression
// Language) expression against the mapper input.
//
// The expression has access to:
//   - subject - the player UUID
//   - username - the display name
//   - attributes - the profile attributes fetched for the subject
//
// It must evaluate to a list of strings (or null for no entitlements).
//
// Example expressions:
//
//	// Static grant
//	["game:base"]
//
//	// Tier-driven grants
//	attributes.tier == "founder"
//	  ? ["game:base", "cosmetic:cape"]
//	  : ["game:base"]
//
//	// Pass through a list stored in the profile
//	attributes.entitlements
type CELMapper struct {
	script  string
	program cel.Program
}

// NewCELMapper compiles the expression once at construction time. The
// resulting mapper is safe for concurrent use.
func NewCELMapper(script string) (*CELMapper, error) {
	if script == "" {
		return nil, fmt.Errorf("CEL script cannot be empty")
	}

	env, err := cel.NewEnv(celhelpers.EntitlementLibrary())
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Parse(script)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to parse CEL script: %w", issues.Err())
	}

	// Type checking is best-effort: a null branch beside a list does not
	// unify under the checker, yet "null means no entitlements" is part of
	// the contract. Scripts that fail the checker run dyn-typed and Map
	// validates the result shape.
	if checked, checkIssues := env.Check(ast); checkIssues == nil || checkIssues.Err() == nil {
		ast = checked
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &CELMapper{
		script:  script,
		program: program,
	}, nil
}

// Map implements service.EntitlementMapper
func (m *CELMapper) Map(ctx context.Context, input *service.MapperInput) ([]string, error) {
	if input == nil {
		return nil, fmt.Errorf("mapper input cannot be nil")
	}

	activation := map[string]any{
		"subject":    input.Subject,
		"username":   input.Username,
		"attributes": map[string]any(input.Attributes),
	}
	if input.Attributes == nil {
		activation["attributes"] = map[string]any{}
	}

	result, _, err := m.program.ContextEval(ctx, activation)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}
	if result.Type() == types.NullType {
		return nil, nil
	}

	resultValue := celhelpers.ConvertCELValue(result)
	if resultValue == nil {
		return nil, nil
	}

	items, ok := resultValue.([]any)
	if !ok {
		return nil, fmt.Errorf("CEL expression must evaluate to a list, got: %T", resultValue)
	}

	entitlements := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("CEL expression must evaluate to a list of strings, got element: %T", item)
		}
		entitlements = append(entitlements, s)
	}
	return entitlements, nil
}

// Script returns the CEL expression used by this mapper
func (m *CELMapper) Script() string {
	return m.script
}
