package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/missioncommand/internal/model"
	"github.com/mcoot/missioncommand/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
// Compare-and-swap operations use WATCH/MULTI transactions.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, model.WrapStoreError("ping", err)
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	claim := usernameIndexKey(user.Username)

	// The username claim and the record are written in one transaction
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		taken, err := tx.Exists(ctx, claim).Result()
		if err != nil {
			return err
		}
		if taken > 0 {
			return model.ErrDuplicateUsername
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, claim, string(user.ID), 0)
			pipe.Set(ctx, userKey(user.ID), data, 0)
			pipe.SAdd(ctx, usersIndexKey(), string(user.ID))
			return nil
		})
		return err
	}, claim)
	if errors.Is(err, redis.TxFailedErr) {
		return model.ErrDuplicateUsername
	}
	return model.WrapStoreError("create user", err)
}

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	claim := usernameIndexKey(user.Username)
	record := userKey(user.ID)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		owner, err := tx.Get(ctx, claim).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if owner != "" && model.UserID(owner) != user.ID {
			return model.ErrDuplicateUsername
		}

		// A rename releases the old username
		var released string
		previous, err := tx.Get(ctx, record).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var stored model.User
			if err := json.Unmarshal(previous, &stored); err != nil {
				return err
			}
			if stored.Username != user.Username {
				released = usernameIndexKey(stored.Username)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, claim, string(user.ID), 0)
			pipe.Set(ctx, record, data, 0)
			pipe.SAdd(ctx, usersIndexKey(), string(user.ID))
			if released != "" {
				pipe.Del(ctx, released)
			}
			return nil
		})
		return err
	}, claim, record)
	return model.WrapStoreError("save user", err)
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	data, err := s.client.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, model.WrapStoreError("get user", err)
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	// Look up user ID from username index
	id, err := s.client.Get(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, model.WrapStoreError("get username claim", err)
	}

	return s.GetUser(ctx, model.UserID(id))
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	ids, err := s.client.SMembers(ctx, usersIndexKey()).Result()
	if err != nil {
		return nil, model.WrapStoreError("list users", err)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userKey(model.UserID(id))
	}

	users, err := mgetJSON[model.User](ctx, s.client, keys)
	if err != nil {
		return nil, model.WrapStoreError("list users", err)
	}
	storage.SortUsers(users)
	return users, nil
}

// Game operations

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) error {
	stored := game.Clone()
	stored.Version = 1
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	created, err := s.client.SetNX(ctx, gameKey(game.ID), data, 0).Result()
	if err != nil {
		return model.WrapStoreError("create game", err)
	}
	if !created {
		return model.ErrVersionConflict
	}

	// Use pipeline for index updates
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, gamesIndexKey(), string(game.ID))
	pipe.SAdd(ctx, scenarioGamesIndexKey(game.ScenarioID), string(game.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		return model.WrapStoreError("index game", err)
	}

	game.Version = stored.Version
	return nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	data, err := s.client.Get(ctx, gameKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrGameNotFound
		}
		return nil, model.WrapStoreError("get game", err)
	}

	return decodeGame(data)
}

func (s *Storage) UpdateGame(ctx context.Context, game *model.Game) error {
	key := gameKey(game.ID)
	updated := game.Clone()
	updated.Version++
	data, err := json.Marshal(updated)
	if err != nil {
		return err
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return model.ErrGameNotFound
		}
		if err != nil {
			return err
		}
		stored, err := decodeGame(current)
		if err != nil {
			return err
		}
		if stored.Version != game.Version {
			return model.ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return model.ErrVersionConflict
	}
	if err != nil {
		return model.WrapStoreError("update game", err)
	}

	game.Version = updated.Version
	return nil
}

func (s *Storage) ListGames(ctx context.Context) ([]*model.Game, error) {
	ids, err := s.client.SMembers(ctx, gamesIndexKey()).Result()
	if err != nil {
		return nil, model.WrapStoreError("list games", err)
	}
	return s.getGames(ctx, ids)
}

func (s *Storage) ListGamesOfScenario(ctx context.Context, scenarioID model.ScenarioID) ([]*model.Game, error) {
	ids, err := s.client.SMembers(ctx, scenarioGamesIndexKey(scenarioID)).Result()
	if err != nil {
		return nil, model.WrapStoreError("list games of scenario", err)
	}
	return s.getGames(ctx, ids)
}

func (s *Storage) getGames(ctx context.Context, ids []string) ([]*model.Game, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = gameKey(model.GameID(id))
	}
	games, err := mgetJSON[model.Game](ctx, s.client, keys)
	if err != nil {
		return nil, model.WrapStoreError("get games", err)
	}
	for _, g := range games {
		if g.Users == nil {
			g.Users = make(map[model.CharacterID]model.UserID)
		}
	}
	storage.SortGames(games)
	return games, nil
}

// Current-game index operations

func (s *Storage) GetCurrentGame(ctx context.Context, userID model.UserID) (model.GameID, error) {
	id, err := s.client.Get(ctx, currentGameKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", model.WrapStoreError("get current game", err)
	}
	return model.GameID(id), nil
}

func (s *Storage) CompareAndSwapCurrentGame(ctx context.Context, userID model.UserID, old, next model.GameID) (bool, error) {
	key := currentGameKey(userID)
	swapped := false

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if model.GameID(current) != old {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == "" {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, string(next), 0)
			}
			return nil
		})
		if err != nil {
			return err
		}
		swapped = true
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		// Another writer changed the association between WATCH and EXEC
		return false, nil
	}
	if err != nil {
		return false, model.WrapStoreError("swap current game", err)
	}
	return swapped, nil
}

func decodeGame(data []byte) (*model.Game, error) {
	var game model.Game
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, err
	}
	if game.Users == nil {
		game.Users = make(map[model.CharacterID]model.UserID)
	}
	return &game, nil
}

// mgetJSON fetches and decodes many JSON values, skipping missing keys
func mgetJSON[T any](ctx context.Context, client *redis.Client, keys []string) ([]*T, error) {
	if len(keys) == 0 {
		return []*T{}, nil
	}

	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue
		}
		var item T
		if err := json.Unmarshal([]byte(str), &item); err != nil {
			return nil, err
		}
		out = append(out, &item)
	}
	return out, nil
}
