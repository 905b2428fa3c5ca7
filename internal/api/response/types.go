package response

import (
	"time"

	"github.com/mcoot/missioncommand/internal/model"
)

// User represents a user in API responses. The password hash is never sent.
type User struct {
	ID                    string   `json:"id"`
	Username              string   `json:"username"`
	Authorities           []string `json:"authorities"`
	Enabled               bool     `json:"enabled"`
	AccountNonExpired     bool     `json:"account_non_expired"`
	AccountNonLocked      bool     `json:"account_non_locked"`
	CredentialsNonExpired bool     `json:"credentials_non_expired"`
}

// UserFromModel converts a model.User to a response User
func UserFromModel(u *model.User) User {
	return User{
		ID:                    string(u.ID),
		Username:              u.Username,
		Authorities:           u.Authorities.Strings(),
		Enabled:               u.Enabled,
		AccountNonExpired:     u.AccountNonExpired,
		AccountNonLocked:      u.AccountNonLocked,
		CredentialsNonExpired: u.CredentialsNonExpired,
	}
}

// UsersFromModel converts a list of users
func UsersFromModel(users []*model.User) []User {
	out := make([]User, len(users))
	for i, u := range users {
		out[i] = UserFromModel(u)
	}
	return out
}

// Identifier is the (id, title) pair used in listings
type Identifier struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// IdentifiersFromModel converts a list of named identifiers
func IdentifiersFromModel(ids []model.NamedID) []Identifier {
	out := make([]Identifier, len(ids))
	for i, id := range ids {
		out[i] = Identifier{ID: id.ID, Title: id.Title}
	}
	return out
}

// Character is a playable role of a scenario
type Character struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Scenario represents a scenario in API responses
type Scenario struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Characters  []Character `json:"characters"`
}

// ScenarioFromModel converts a model.Scenario
func ScenarioFromModel(s *model.Scenario) Scenario {
	characters := make([]Character, len(s.Characters))
	for i, c := range s.Characters {
		characters[i] = Character{ID: string(c.ID), Title: c.Title}
	}
	return Scenario{
		ID:          string(s.ID),
		Title:       s.Title,
		Description: s.Description,
		Characters:  characters,
	}
}

// Game represents a game in API responses. Users maps character IDs to
// user IDs and is empty for callers who may not see it.
type Game struct {
	ID         string            `json:"id"`
	Scenario   string            `json:"scenario"`
	Title      string            `json:"title"`
	Created    time.Time         `json:"created"`
	RunState   string            `json:"run_state"`
	Recruiting bool              `json:"recruiting"`
	Users      map[string]string `json:"users"`
}

// GameFromModel converts a model.Game
func GameFromModel(g *model.Game) Game {
	users := make(map[string]string, len(g.Users))
	for ch, u := range g.Users {
		users[string(ch)] = string(u)
	}
	return Game{
		ID:         string(g.ID),
		Scenario:   string(g.ScenarioID),
		Title:      g.Title(),
		Created:    g.Created,
		RunState:   string(g.RunState),
		Recruiting: g.Recruiting,
		Users:      users,
	}
}

// Health is the response of the health check
type Health struct {
	Status string `json:"status"`
}
