package model

import (
	"github.com/google/uuid"
)

// UserID uniquely identifies a user
type UserID string

const (
	// AdministratorID is the ID of the built-in Administrator
	AdministratorID UserID = "00000000-0000-0000-0000-000000000000"

	// AdministratorUsername is reserved for the built-in Administrator
	AdministratorUsername = "Administrator"
)

// ParseUserID validates a textual user ID
func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", ErrInvalidID
	}
	return UserID(id.String()), nil
}

// User is an account that can authenticate
type User struct {
	ID           UserID      `json:"id"`
	Username     string      `json:"username"`
	PasswordHash string      `json:"password_hash"`
	Authorities  Authorities `json:"authorities"`

	AccountNonExpired     bool `json:"account_non_expired"`
	AccountNonLocked      bool `json:"account_non_locked"`
	CredentialsNonExpired bool `json:"credentials_non_expired"`
	Enabled               bool `json:"enabled"`
}

// NewUser returns an enabled user with the given details
func NewUser(id UserID, username, passwordHash string, authorities Authorities) *User {
	return &User{
		ID:                    id,
		Username:              username,
		PasswordHash:          passwordHash,
		Authorities:           NewAuthorities(authorities...),
		AccountNonExpired:     true,
		AccountNonLocked:      true,
		CredentialsNonExpired: true,
		Enabled:               true,
	}
}

// NewAdministrator returns the Administrator with every authority
func NewAdministrator(passwordHash string) *User {
	return NewUser(AdministratorID, AdministratorUsername, passwordHash, AllAuthorities())
}

// CanAuthenticate reports whether the account flags allow a login
func (u *User) CanAuthenticate() bool {
	return u.Enabled && u.AccountNonLocked && u.AccountNonExpired && u.CredentialsNonExpired
}

// IsAdministrator reports whether u is the built-in Administrator
func (u *User) IsAdministrator() bool {
	return u.ID == AdministratorID
}

// Caller returns the identity u presents to authorization checks
func (u *User) Caller() *Caller {
	return &Caller{UserID: u.ID, Authorities: NewAuthorities(u.Authorities...)}
}

// Clone returns a deep copy
func (u *User) Clone() *User {
	c := *u
	c.Authorities = NewAuthorities(u.Authorities...)
	return &c
}

// UserDetails is the input for creating a user
type UserDetails struct {
	Username    string
	Password    string
	Authorities Authorities
}
