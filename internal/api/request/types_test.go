package request

import (
	"testing"

	"github.com/mcoot/missioncommand/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestAddUserRequestNormalizesAuthorities(t *testing.T) {
	req := AddUserRequest{
		Username:    "alice",
		Password:    "secret",
		Authorities: []string{"player", "ROLE_MANAGE_GAMES", " Player "},
	}

	details := req.Details()

	assert.Equal(t, "alice", details.Username)
	assert.Equal(t, "secret", details.Password)
	assert.Equal(t, model.NewAuthorities(model.AuthorityManageGames, model.AuthorityPlayer), details.Authorities)
	assert.True(t, details.Authorities.Valid())
}

func TestAddUserRequestKeepsUnknownAuthorities(t *testing.T) {
	details := AddUserRequest{Authorities: []string{"wizard"}}.Details()

	assert.False(t, details.Authorities.Valid())
}
