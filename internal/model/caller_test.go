package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAuthorities_Normalizes(t *testing.T) {
	as := NewAuthorities(AuthorityPlayer, AuthorityManageGames, AuthorityPlayer)

	assert.Equal(t, Authorities{AuthorityManageGames, AuthorityPlayer}, as)
	assert.True(t, as.Valid())
	assert.False(t, NewAuthorities("ROLE_PILOT").Valid())
}

func TestCallerRequire(t *testing.T) {
	var anonymous *Caller
	player := &Caller{UserID: "p", Authorities: NewAuthorities(AuthorityPlayer)}

	assert.ErrorIs(t, anonymous.Require(AuthorityPlayer), ErrNotAuthenticated)
	assert.NoError(t, player.Require(AuthorityPlayer))
	assert.NoError(t, player.Require(AuthorityManageGames, AuthorityPlayer))
	assert.ErrorIs(t, player.Require(AuthorityManageGames), ErrInsufficientAuthority)
	assert.ErrorIs(t, player.Require(AuthorityManageGames), ErrForbidden)
	assert.False(t, anonymous.Has(AuthorityPlayer))
	assert.False(t, player.IsAdministrator())
}

func TestUserCaller(t *testing.T) {
	admin := NewAdministrator("hash")

	caller := admin.Caller()
	assert.True(t, caller.IsAdministrator())
	assert.Equal(t, AllAuthorities(), caller.Authorities)
	assert.True(t, admin.CanAuthenticate())

	admin.AccountNonLocked = false
	assert.False(t, admin.CanAuthenticate())
}

func TestWrapStoreError(t *testing.T) {
	assert.NoError(t, WrapStoreError("op", nil))
	assert.Same(t, ErrGameNotFound, WrapStoreError("op", ErrGameNotFound))

	cause := errors.New("connection refused")
	err := WrapStoreError("get game", cause)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "store get game: connection refused", err.Error())

	// Already wrapped errors are not wrapped twice
	assert.Same(t, err, WrapStoreError("other", err))
}
