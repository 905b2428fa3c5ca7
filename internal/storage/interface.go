package storage

import (
	"context"

	"github.com/mcoot/missioncommand/internal/model"
)

// Storage defines the interface for data persistence.
//
// Games are versioned: CreateGame stores version 1 and every successful
// UpdateGame increments it. UpdateGame only succeeds when the stored version
// equals the version of the game passed in, otherwise it returns
// model.ErrVersionConflict.
//
// The current-game index maps a user to the game they play. An empty GameID
// means the user has no current game.
type Storage interface {
	// User operations
	CreateUser(ctx context.Context, user *model.User) error
	SaveUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id model.UserID) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)

	// Game operations
	CreateGame(ctx context.Context, game *model.Game) error
	GetGame(ctx context.Context, id model.GameID) (*model.Game, error)
	UpdateGame(ctx context.Context, game *model.Game) error
	ListGames(ctx context.Context) ([]*model.Game, error)
	ListGamesOfScenario(ctx context.Context, scenarioID model.ScenarioID) ([]*model.Game, error)

	// Current-game index operations
	GetCurrentGame(ctx context.Context, userID model.UserID) (model.GameID, error)
	CompareAndSwapCurrentGame(ctx context.Context, userID model.UserID, old, next model.GameID) (bool, error)

	// Close releases backend resources
	Close() error
}
