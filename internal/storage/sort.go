package storage

import (
	"cmp"
	"slices"

	"github.com/mcoot/missioncommand/internal/model"
)

// SortUsers orders users by username
func SortUsers(users []*model.User) {
	slices.SortFunc(users, func(a, b *model.User) int {
		return cmp.Compare(a.Username, b.Username)
	})
}

// SortGames orders games by creation time, then ID
func SortGames(games []*model.Game) {
	slices.SortFunc(games, func(a, b *model.Game) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
