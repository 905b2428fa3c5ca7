package model

// Caller identifies who is invoking an operation. A nil Caller is an
// unauthenticated request.
type Caller struct {
	UserID      UserID
	Authorities Authorities
}

// Has reports whether the caller holds the authority
func (c *Caller) Has(a Authority) bool {
	return c != nil && c.Authorities.Has(a)
}

// HasAny reports whether the caller holds any of the authorities
func (c *Caller) HasAny(as ...Authority) bool {
	return c != nil && c.Authorities.HasAny(as...)
}

// IsAdministrator reports whether the caller is the Administrator
func (c *Caller) IsAdministrator() bool {
	return c != nil && c.UserID == AdministratorID
}

// Require returns nil when the caller holds at least one of the
// authorities, ErrNotAuthenticated for a nil caller and
// ErrInsufficientAuthority otherwise.
func (c *Caller) Require(as ...Authority) error {
	if c == nil {
		return ErrNotAuthenticated
	}
	if !c.HasAny(as...) {
		return ErrInsufficientAuthority
	}
	return nil
}
