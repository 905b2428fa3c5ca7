package request

import (
	"strings"

	"github.com/mcoot/missioncommand/internal/model"
)

// AddUserRequest is the request body for adding a user
type AddUserRequest struct {
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	Authorities []string `json:"authorities"`
}

// Details converts the request to user details. Authority names are
// accepted with or without the ROLE_ prefix.
func (r AddUserRequest) Details() model.UserDetails {
	authorities := make([]model.Authority, len(r.Authorities))
	for i, a := range r.Authorities {
		a = strings.ToUpper(strings.TrimSpace(a))
		if !strings.HasPrefix(a, "ROLE_") {
			a = "ROLE_" + a
		}
		authorities[i] = model.Authority(a)
	}
	return model.UserDetails{
		Username:    r.Username,
		Password:    r.Password,
		Authorities: model.NewAuthorities(authorities...),
	}
}
