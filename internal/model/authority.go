package model

import (
	"slices"
)

// Authority is a permission granted to a user
type Authority string

const (
	AuthorityPlayer      Authority = "ROLE_PLAYER"
	AuthorityManageGames Authority = "ROLE_MANAGE_GAMES"
	AuthorityManageUsers Authority = "ROLE_MANAGE_USERS"
)

// AllAuthorities returns every authority, in a stable order
func AllAuthorities() Authorities {
	return Authorities{AuthorityManageGames, AuthorityManageUsers, AuthorityPlayer}
}

// Valid reports whether a is one of the known authorities
func (a Authority) Valid() bool {
	switch a {
	case AuthorityPlayer, AuthorityManageGames, AuthorityManageUsers:
		return true
	}
	return false
}

// Authorities is a set of authorities, kept sorted and free of duplicates
type Authorities []Authority

// NewAuthorities builds a normalized set
func NewAuthorities(as ...Authority) Authorities {
	set := make(Authorities, 0, len(as))
	for _, a := range as {
		if !slices.Contains(set, a) {
			set = append(set, a)
		}
	}
	slices.Sort(set)
	return set
}

// Has reports whether the set contains a
func (as Authorities) Has(a Authority) bool {
	return slices.Contains(as, a)
}

// HasAny reports whether the set contains at least one of want
func (as Authorities) HasAny(want ...Authority) bool {
	for _, a := range want {
		if as.Has(a) {
			return true
		}
	}
	return false
}

// Valid reports whether every member is a known authority
func (as Authorities) Valid() bool {
	for _, a := range as {
		if !a.Valid() {
			return false
		}
	}
	return true
}

// Strings returns the authority names
func (as Authorities) Strings() []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = string(a)
	}
	return out
}
