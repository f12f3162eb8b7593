// Package claims provides the claim-set map type shared by token issuance,
// profile datasources, and entitlement mapping.
package claims

import "maps"

// Claims represents a set of claims as key-value pairs.
// It is used for validated token claims and for profile attributes fetched
// from datasources before they are mapped into tokens or responses.
type Claims map[string]any

// Copy creates a shallow copy of the claims
func (c Claims) Copy() Claims {
	if c == nil {
		return nil
	}
	result := make(Claims, len(c))
	maps.Copy(result, c)
	return result
}

// Merge merges the other claims into this claims set.
// If a key exists in both, the value from other overwrites the existing value.
func (c Claims) Merge(other Claims) {
	if other == nil {
		return
	}
	maps.Copy(c, other)
}

// Get returns the value for the given key, or nil if not present
func (c Claims) Get(key string) any {
	return c[key]
}

// GetString returns the value as a string, or empty string if not present or not a string
func (c Claims) GetString(key string) string {
	if v, ok := c[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetStringSlice returns the value as a []string. It accepts both []string
// and []any with string elements, which is what JSON decoding produces.
func (c Claims) GetStringSlice(key string) []string {
	v, ok := c[key]
	if !ok {
		return nil
	}
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		result := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}

// GetInt64 returns the value as an int64. JSON decoding yields float64 for
// numbers; both that and native integer types are accepted. Returns 0 when
// absent or non-numeric.
func (c Claims) GetInt64(key string) int64 {
	switch v := c[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Has returns true if the key exists in the claims
func (c Claims) Has(key string) bool {
	_, ok := c[key]
	return ok
}
