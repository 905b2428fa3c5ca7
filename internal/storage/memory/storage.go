package memory

import (
	"context"
	"sync"

	"github.com/mcoot/missioncommand/internal/model"
	"github.com/mcoot/missioncommand/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// Records are copied on the way in and out so callers never share state.
type Storage struct {
	mu sync.RWMutex

	users         map[model.UserID]*model.User
	usernameIndex map[string]model.UserID
	games         map[model.GameID]*model.Game
	currentGames  map[model.UserID]model.GameID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		users:         make(map[model.UserID]*model.User),
		usernameIndex: make(map[string]model.UserID),
		games:         make(map[model.GameID]*model.Game),
		currentGames:  make(map[model.UserID]model.GameID),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Close is a no-op
func (s *Storage) Close() error {
	return nil
}

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.usernameIndex[user.Username]; taken {
		return model.ErrDuplicateUsername
	}
	if _, exists := s.users[user.ID]; exists {
		return model.ErrDuplicateUsername
	}
	s.users[user.ID] = user.Clone()
	s.usernameIndex[user.Username] = user.ID
	return nil
}

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, taken := s.usernameIndex[user.Username]; taken && owner != user.ID {
		return model.ErrDuplicateUsername
	}
	if previous, ok := s.users[user.ID]; ok && previous.Username != user.Username {
		delete(s.usernameIndex, previous.Username)
	}
	s.users[user.ID] = user.Clone()
	s.usernameIndex[user.Username] = user.ID
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return user.Clone(), nil
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return s.users[id].Clone(), nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u.Clone())
	}
	storage.SortUsers(users)
	return users, nil
}

// Game operations

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.games[game.ID]; exists {
		return model.ErrVersionConflict
	}
	game.Version = 1
	s.games[game.ID] = game.Clone()
	return nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.games[id]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	return game.Clone(), nil
}

func (s *Storage) UpdateGame(ctx context.Context, game *model.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.games[game.ID]
	if !ok {
		return model.ErrGameNotFound
	}
	if stored.Version != game.Version {
		return model.ErrVersionConflict
	}
	game.Version++
	s.games[game.ID] = game.Clone()
	return nil
}

func (s *Storage) ListGames(ctx context.Context) ([]*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	games := make([]*model.Game, 0, len(s.games))
	for _, g := range s.games {
		games = append(games, g.Clone())
	}
	storage.SortGames(games)
	return games, nil
}

func (s *Storage) ListGamesOfScenario(ctx context.Context, scenarioID model.ScenarioID) ([]*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var games []*model.Game
	for _, g := range s.games {
		if g.ScenarioID == scenarioID {
			games = append(games, g.Clone())
		}
	}
	storage.SortGames(games)
	return games, nil
}

// Current-game index operations

func (s *Storage) GetCurrentGame(ctx context.Context, userID model.UserID) (model.GameID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentGames[userID], nil
}

func (s *Storage) CompareAndSwapCurrentGame(ctx context.Context, userID model.UserID, old, next model.GameID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentGames[userID] != old {
		return false, nil
	}
	if next == "" {
		delete(s.currentGames, userID)
	} else {
		s.currentGames[userID] = next
	}
	return true, nil
}
