package redis

import (
	"fmt"

	"github.com/mcoot/missioncommand/internal/model"
)

// Key prefix for all mission command data
const keyPrefix = "mc"

// userKey returns the Redis key for a User
func userKey(id model.UserID) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, id)
}

// usernameIndexKey returns the Redis key claiming a username for a user ID
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// usersIndexKey returns the Redis key for the SET of all user IDs
func usersIndexKey() string {
	return fmt.Sprintf("%s:idx:users", keyPrefix)
}

// gameKey returns the Redis key for a Game
func gameKey(id model.GameID) string {
	return fmt.Sprintf("%s:game:%s", keyPrefix, id)
}

// gamesIndexKey returns the Redis key for the SET of all game IDs
func gamesIndexKey() string {
	return fmt.Sprintf("%s:idx:games", keyPrefix)
}

// scenarioGamesIndexKey returns the Redis key for the SET of game IDs of a scenario
func scenarioGamesIndexKey(id model.ScenarioID) string {
	return fmt.Sprintf("%s:idx:scenario_games:%s", keyPrefix, id)
}

// currentGameKey returns the Redis key holding the current game of a user
func currentGameKey(id model.UserID) string {
	return fmt.Sprintf("%s:current_game:%s", keyPrefix, id)
}
