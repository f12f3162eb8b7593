package token

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultScope is embedded when the caller supplies no scopes.
const DefaultScope = "hytale:server hytale:client"

// ScopeServer is the scope that marks a server session token.
const ScopeServer = "hytale:server"

// Scopes is the boundary representation of the scope input, which clients
// send as a JSON list, a single string, or not at all. It normalizes into
// one canonical space-separated string before any token is built.
type Scopes struct {
	value string
	set   bool
}

// ScopesFromString builds an explicitly-set scope value.
func ScopesFromString(s string) Scopes {
	return Scopes{value: s, set: true}
}

// ScopesFromList joins list input with single spaces in input order.
// Duplicates are preserved.
func ScopesFromList(list []string) Scopes {
	return Scopes{value: strings.Join(list, " "), set: true}
}

// UnmarshalJSON accepts null, a string, or a list of strings.
func (s *Scopes) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*s = Scopes{}
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = ScopesFromString(str)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = ScopesFromList(list)
		return nil
	}

	return fmt.Errorf("scopes must be a string or a list of strings")
}

// MarshalJSON emits the canonical string form.
func (s Scopes) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Normalize())
}

// IsSet reports whether the caller supplied any scope input.
func (s Scopes) IsSet() bool {
	return s.set
}

// Normalize returns the canonical space-separated scope string,
// defaulting when no input was supplied.
func (s Scopes) Normalize() string {
	if !s.set {
		return DefaultScope
	}
	return s.value
}
