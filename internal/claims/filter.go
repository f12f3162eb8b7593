package claims

// Filter defines which claims should be passed through from a datasource
// into profile responses or issued tokens.
type Filter interface {
	// Filter filters the claims, returning only those that should be passed through
	Filter(c Claims) Claims
}

// AllowListFilter only allows claims in the allow list
type AllowListFilter struct {
	allowed map[string]bool
}

// NewAllowListFilter creates a new allow list filter
func NewAllowListFilter(allowedClaims []string) *AllowListFilter {
	allowed := make(map[string]bool, len(allowedClaims))
	for _, claim := range allowedClaims {
		allowed[claim] = true
	}
	return &AllowListFilter{allowed: allowed}
}

// Filter implements Filter
func (f *AllowListFilter) Filter(c Claims) Claims {
	if c == nil {
		return nil
	}
	filtered := make(Claims)
	for key, value := range c {
		if f.allowed[key] {
			filtered[key] = value
		}
	}
	return filtered
}

// DenyListFilter blocks claims in the deny list
type DenyListFilter struct {
	denied map[string]bool
}

// NewDenyListFilter creates a new deny list filter
func NewDenyListFilter(deniedClaims []string) *DenyListFilter {
	denied := make(map[string]bool, len(deniedClaims))
	for _, claim := range deniedClaims {
		denied[claim] = true
	}
	return &DenyListFilter{denied: denied}
}

// Filter implements Filter
func (f *DenyListFilter) Filter(c Claims) Claims {
	if c == nil {
		return nil
	}
	filtered := make(Claims)
	for key, value := range c {
		if !f.denied[key] {
			filtered[key] = value
		}
	}
	return filtered
}

// PassThroughFilter passes all claims unmodified
type PassThroughFilter struct{}

// Filter implements Filter
func (f *PassThroughFilter) Filter(c Claims) Claims {
	return c
}
