package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mcoot/missioncommand/internal/model"
	"github.com/mcoot/missioncommand/internal/storage"
)

// Config holds SQLite settings
type Config struct {
	// Path is the database file; its directory is created if missing
	Path string
}

// DefaultConfig returns sensible defaults for SQLite configuration
func DefaultConfig() Config {
	return Config{Path: "data/missioncommand.db"}
}

// Storage is a SQLite-backed implementation of the storage interface.
// Game updates are conditional on the stored version.
type Storage struct {
	db *sql.DB
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// New opens the database and applies migrations
func New(ctx context.Context, cfg Config) (*Storage, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, model.WrapStoreError("open", err)
	}
	// SQLite allows one writer; a single connection serializes transactions
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, model.WrapStoreError("migrate", err)
	}
	return &Storage{db: db}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// User operations

const userColumns = `id, username, password_hash, authorities, account_non_expired, account_non_locked, credentials_non_expired, enabled`

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	args, err := userArgs(user)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		args...)
	if err != nil {
		return model.WrapStoreError("create user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.WrapStoreError("create user", err)
	}
	if n == 0 {
		return model.ErrDuplicateUsername
	}
	return nil
}

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	args, err := userArgs(user)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.WrapStoreError("save user", err)
	}
	defer func() { _ = tx.Rollback() }()

	var owner string
	err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, user.Username).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return model.WrapStoreError("save user", err)
	case model.UserID(owner) != user.ID:
		return model.ErrDuplicateUsername
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			password_hash = excluded.password_hash,
			authorities = excluded.authorities,
			account_non_expired = excluded.account_non_expired,
			account_non_locked = excluded.account_non_locked,
			credentials_non_expired = excluded.credentials_non_expired,
			enabled = excluded.enabled`,
		args...)
	if err != nil {
		return model.WrapStoreError("save user", err)
	}
	return model.WrapStoreError("save user", tx.Commit())
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, string(id))
	return scanUser(row)
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, model.WrapStoreError("list users", err)
	}
	defer func() { _ = rows.Close() }()

	users := []*model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, model.WrapStoreError("list users", err)
	}
	storage.SortUsers(users)
	return users, nil
}

// Game operations

const gameColumns = `id, scenario_id, created, run_state, recruiting, users, version`

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) error {
	users, err := json.Marshal(game.Users)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO games (`+gameColumns+`) VALUES (?, ?, ?, ?, ?, ?, 1) ON CONFLICT DO NOTHING`,
		string(game.ID), string(game.ScenarioID), game.Created.UTC().Format(time.RFC3339Nano),
		string(game.RunState), game.Recruiting, string(users))
	if err != nil {
		return model.WrapStoreError("create game", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.WrapStoreError("create game", err)
	}
	if n == 0 {
		return model.ErrVersionConflict
	}
	game.Version = 1
	return nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ?`, string(id))
	return scanGame(row)
}

func (s *Storage) UpdateGame(ctx context.Context, game *model.Game) error {
	users, err := json.Marshal(game.Users)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE games SET run_state = ?, recruiting = ?, users = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		string(game.RunState), game.Recruiting, string(users), string(game.ID), game.Version)
	if err != nil {
		return model.WrapStoreError("update game", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.WrapStoreError("update game", err)
	}
	if n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM games WHERE id = ?`, string(game.ID)).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrGameNotFound
		}
		if err != nil {
			return model.WrapStoreError("update game", err)
		}
		return model.ErrVersionConflict
	}
	game.Version++
	return nil
}

func (s *Storage) ListGames(ctx context.Context) ([]*model.Game, error) {
	return s.queryGames(ctx, `SELECT `+gameColumns+` FROM games`)
}

func (s *Storage) ListGamesOfScenario(ctx context.Context, scenarioID model.ScenarioID) ([]*model.Game, error) {
	return s.queryGames(ctx, `SELECT `+gameColumns+` FROM games WHERE scenario_id = ?`, string(scenarioID))
}

func (s *Storage) queryGames(ctx context.Context, query string, args ...any) ([]*model.Game, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.WrapStoreError("list games", err)
	}
	defer func() { _ = rows.Close() }()

	games := []*model.Game{}
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, model.WrapStoreError("list games", err)
	}
	storage.SortGames(games)
	return games, nil
}

// Current-game index operations

func (s *Storage) GetCurrentGame(ctx context.Context, userID model.UserID) (model.GameID, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT game_id FROM current_games WHERE user_id = ?`, string(userID)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", model.WrapStoreError("get current game", err)
	}
	return model.GameID(id), nil
}

func (s *Storage) CompareAndSwapCurrentGame(ctx context.Context, userID model.UserID, old, next model.GameID) (bool, error) {
	var (
		res sql.Result
		err error
	)
	switch {
	case old == "" && next == "":
		current, err := s.GetCurrentGame(ctx, userID)
		if err != nil {
			return false, err
		}
		return current == "", nil
	case old == "":
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO current_games (user_id, game_id) VALUES (?, ?) ON CONFLICT (user_id) DO NOTHING`,
			string(userID), string(next))
	case next == "":
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM current_games WHERE user_id = ? AND game_id = ?`,
			string(userID), string(old))
	default:
		res, err = s.db.ExecContext(ctx,
			`UPDATE current_games SET game_id = ? WHERE user_id = ? AND game_id = ?`,
			string(next), string(userID), string(old))
	}
	if err != nil {
		return false, model.WrapStoreError("swap current game", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, model.WrapStoreError("swap current game", err)
	}
	return n == 1, nil
}

// Row mapping

type scanner interface {
	Scan(dest ...any) error
}

func userArgs(user *model.User) ([]any, error) {
	authorities, err := json.Marshal(user.Authorities)
	if err != nil {
		return nil, err
	}
	return []any{
		string(user.ID), user.Username, user.PasswordHash, string(authorities),
		user.AccountNonExpired, user.AccountNonLocked, user.CredentialsNonExpired, user.Enabled,
	}, nil
}

func scanUser(row scanner) (*model.User, error) {
	var (
		user        model.User
		id          string
		authorities string
	)
	err := row.Scan(&id, &user.Username, &user.PasswordHash, &authorities,
		&user.AccountNonExpired, &user.AccountNonLocked, &user.CredentialsNonExpired, &user.Enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, model.WrapStoreError("read user", err)
	}
	user.ID = model.UserID(id)
	if err := json.Unmarshal([]byte(authorities), &user.Authorities); err != nil {
		return nil, err
	}
	return &user, nil
}

func scanGame(row scanner) (*model.Game, error) {
	var (
		game                           model.Game
		id, scenarioID, created, state string
		users                          string
	)
	err := row.Scan(&id, &scenarioID, &created, &state, &game.Recruiting, &users, &game.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrGameNotFound
	}
	if err != nil {
		return nil, model.WrapStoreError("read game", err)
	}
	game.ID = model.GameID(id)
	game.ScenarioID = model.ScenarioID(scenarioID)
	game.RunState = model.RunState(state)
	if game.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(users), &game.Users); err != nil {
		return nil, err
	}
	if game.Users == nil {
		game.Users = make(map[model.CharacterID]model.UserID)
	}
	return &game, nil
}
