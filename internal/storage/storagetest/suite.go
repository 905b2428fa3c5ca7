// Package storagetest holds behaviour tests shared by every storage backend.
package storagetest

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/missioncommand/internal/model"
	"github.com/mcoot/missioncommand/internal/storage"
)

const (
	ScenarioA model.ScenarioID = "a0a0a0a0-0000-4000-8000-000000000001"
	ScenarioB model.ScenarioID = "b0b0b0b0-0000-4000-8000-000000000002"

	gameA model.GameID = "11111111-0000-4000-8000-000000000001"
	gameB model.GameID = "11111111-0000-4000-8000-000000000002"
	gameC model.GameID = "11111111-0000-4000-8000-000000000003"

	alice model.UserID = "22222222-0000-4000-8000-000000000001"
	bob   model.UserID = "22222222-0000-4000-8000-000000000002"
)

var created = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// Suite runs the storage contract against a backend built by NewStorage
type Suite struct {
	suite.Suite

	// NewStorage returns an empty storage for each test
	NewStorage func() storage.Storage

	Store storage.Storage
	Ctx   context.Context
}

func (s *Suite) SetupTest() {
	s.Store = s.NewStorage()
	s.Ctx = context.Background()
}

func (s *Suite) TearDownTest() {
	if s.Store != nil {
		_ = s.Store.Close()
	}
}

func newUser(id model.UserID, username string) *model.User {
	return model.NewUser(id, username, "hash", model.NewAuthorities(model.AuthorityPlayer))
}

// User tests

func (s *Suite) TestCreateAndGetUser() {
	err := s.Store.CreateUser(s.Ctx, newUser(alice, "alice"))
	s.Require().NoError(err)

	byID, err := s.Store.GetUser(s.Ctx, alice)
	s.Require().NoError(err)
	s.Equal("alice", byID.Username)
	s.Equal("hash", byID.PasswordHash)
	s.Equal(model.Authorities{model.AuthorityPlayer}, byID.Authorities)
	s.True(byID.CanAuthenticate())

	byName, err := s.Store.GetUserByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(alice, byName.ID)
}

func (s *Suite) TestGetUserNotFound() {
	_, err := s.Store.GetUser(s.Ctx, alice)
	s.ErrorIs(err, model.ErrUserNotFound)
	s.ErrorIs(err, model.ErrNotFound)

	_, err = s.Store.GetUserByUsername(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestCreateUserDuplicateUsername() {
	s.Require().NoError(s.Store.CreateUser(s.Ctx, newUser(alice, "alice")))

	err := s.Store.CreateUser(s.Ctx, newUser(bob, "alice"))
	s.ErrorIs(err, model.ErrDuplicateUsername)
	s.ErrorIs(err, model.ErrConflict)

	_, err = s.Store.GetUser(s.Ctx, bob)
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestCreateUserUsernameIsCaseSensitive() {
	s.Require().NoError(s.Store.CreateUser(s.Ctx, newUser(alice, "alice")))
	s.NoError(s.Store.CreateUser(s.Ctx, newUser(bob, "Alice")))
}

func (s *Suite) TestConcurrentCreateUserClaimsUsernameOnce() {
	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := model.UserID("33333333-0000-4000-8000-00000000000" + string(rune('0'+i)))
			if err := s.Store.CreateUser(s.Ctx, newUser(id, "contested")); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	s.Equal(1, successes)
}

func (s *Suite) TestSaveUserUpserts() {
	admin := model.NewAdministrator("first")
	s.Require().NoError(s.Store.SaveUser(s.Ctx, admin))

	admin.PasswordHash = "second"
	s.Require().NoError(s.Store.SaveUser(s.Ctx, admin))

	stored, err := s.Store.GetUserByUsername(s.Ctx, model.AdministratorUsername)
	s.Require().NoError(err)
	s.Equal(model.AdministratorID, stored.ID)
	s.Equal("second", stored.PasswordHash)
	s.Equal(model.AllAuthorities(), stored.Authorities)
}

func (s *Suite) TestSaveUserRejectsUsernameOfAnotherUser() {
	s.Require().NoError(s.Store.CreateUser(s.Ctx, newUser(alice, "alice")))

	err := s.Store.SaveUser(s.Ctx, newUser(bob, "alice"))
	s.ErrorIs(err, model.ErrDuplicateUsername)
}

func (s *Suite) TestListUsersSortedByUsername() {
	s.Require().NoError(s.Store.CreateUser(s.Ctx, newUser(bob, "bob")))
	s.Require().NoError(s.Store.CreateUser(s.Ctx, newUser(alice, "alice")))

	users, err := s.Store.ListUsers(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(users, 2)
	s.Equal("alice", users[0].Username)
	s.Equal("bob", users[1].Username)
}

// Game tests

func (s *Suite) TestCreateAndGetGame() {
	game := model.NewGame(gameA, ScenarioA, created)
	s.Require().NoError(s.Store.CreateGame(s.Ctx, game))
	s.Equal(int64(1), game.Version)

	stored, err := s.Store.GetGame(s.Ctx, gameA)
	s.Require().NoError(err)
	s.Equal(gameA, stored.ID)
	s.Equal(ScenarioA, stored.ScenarioID)
	s.True(created.Equal(stored.Created))
	s.Equal(model.RunStateWaitingToStart, stored.RunState)
	s.True(stored.Recruiting)
	s.Empty(stored.Users)
	s.NotNil(stored.Users)
	s.Equal(int64(1), stored.Version)
}

func (s *Suite) TestGetGameNotFound() {
	_, err := s.Store.GetGame(s.Ctx, gameA)
	s.ErrorIs(err, model.ErrGameNotFound)
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *Suite) TestUpdateGameIncrementsVersion() {
	game := model.NewGame(gameA, ScenarioA, created)
	s.Require().NoError(s.Store.CreateGame(s.Ctx, game))

	game.Users["ch-1"] = alice
	game.EndRecruitment()
	s.Require().NoError(s.Store.UpdateGame(s.Ctx, game))
	s.Equal(int64(2), game.Version)

	stored, err := s.Store.GetGame(s.Ctx, gameA)
	s.Require().NoError(err)
	s.Equal(int64(2), stored.Version)
	s.False(stored.Recruiting)
	s.Equal(alice, stored.Users["ch-1"])
}

func (s *Suite) TestUpdateGameRejectsStaleVersion() {
	game := model.NewGame(gameA, ScenarioA, created)
	s.Require().NoError(s.Store.CreateGame(s.Ctx, game))

	first, err := s.Store.GetGame(s.Ctx, gameA)
	s.Require().NoError(err)
	second, err := s.Store.GetGame(s.Ctx, gameA)
	s.Require().NoError(err)

	s.Require().NoError(first.Start())
	s.Require().NoError(s.Store.UpdateGame(s.Ctx, first))

	second.Stop()
	err = s.Store.UpdateGame(s.Ctx, second)
	s.ErrorIs(err, model.ErrVersionConflict)

	stored, err := s.Store.GetGame(s.Ctx, gameA)
	s.Require().NoError(err)
	s.Equal(model.RunStateRunning, stored.RunState)
}

func (s *Suite) TestUpdateGameNotFound() {
	game := model.NewGame(gameA, ScenarioA, created)
	game.Version = 1
	err := s.Store.UpdateGame(s.Ctx, game)
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *Suite) TestReturnedGamesAreCopies() {
	game := model.NewGame(gameA, ScenarioA, created)
	s.Require().NoError(s.Store.CreateGame(s.Ctx, game))

	game.Users["ch-1"] = alice
	stored, err := s.Store.GetGame(s.Ctx, gameA)
	s.Require().NoError(err)
	s.Empty(stored.Users)

	stored.Users["ch-2"] = bob
	again, err := s.Store.GetGame(s.Ctx, gameA)
	s.Require().NoError(err)
	s.Empty(again.Users)
}

func (s *Suite) TestListGamesOfScenario() {
	s.Require().NoError(s.Store.CreateGame(s.Ctx, model.NewGame(gameB, ScenarioA, created.Add(time.Minute))))
	s.Require().NoError(s.Store.CreateGame(s.Ctx, model.NewGame(gameA, ScenarioA, created)))
	s.Require().NoError(s.Store.CreateGame(s.Ctx, model.NewGame(gameC, ScenarioB, created)))

	games, err := s.Store.ListGamesOfScenario(s.Ctx, ScenarioA)
	s.Require().NoError(err)
	s.Require().Len(games, 2)
	s.Equal(gameA, games[0].ID)
	s.Equal(gameB, games[1].ID)

	none, err := s.Store.ListGamesOfScenario(s.Ctx, "c0c0c0c0-0000-4000-8000-000000000003")
	s.Require().NoError(err)
	s.Empty(none)

	all, err := s.Store.ListGames(s.Ctx)
	s.Require().NoError(err)
	s.Len(all, 3)
}

// Current-game index tests

func (s *Suite) TestCurrentGameAbsentByDefault() {
	id, err := s.Store.GetCurrentGame(s.Ctx, alice)
	s.Require().NoError(err)
	s.Empty(id)
}

func (s *Suite) TestCompareAndSwapCurrentGame() {
	swapped, err := s.Store.CompareAndSwapCurrentGame(s.Ctx, alice, "", gameA)
	s.Require().NoError(err)
	s.True(swapped)

	id, err := s.Store.GetCurrentGame(s.Ctx, alice)
	s.Require().NoError(err)
	s.Equal(gameA, id)

	// Absent expectation no longer holds
	swapped, err = s.Store.CompareAndSwapCurrentGame(s.Ctx, alice, "", gameB)
	s.Require().NoError(err)
	s.False(swapped)

	// Wrong expected game
	swapped, err = s.Store.CompareAndSwapCurrentGame(s.Ctx, alice, gameB, gameC)
	s.Require().NoError(err)
	s.False(swapped)

	swapped, err = s.Store.CompareAndSwapCurrentGame(s.Ctx, alice, gameA, gameB)
	s.Require().NoError(err)
	s.True(swapped)

	swapped, err = s.Store.CompareAndSwapCurrentGame(s.Ctx, alice, gameB, "")
	s.Require().NoError(err)
	s.True(swapped)

	id, err = s.Store.GetCurrentGame(s.Ctx, alice)
	s.Require().NoError(err)
	s.Empty(id)
}

func (s *Suite) TestCurrentGameIsPerUser() {
	_, err := s.Store.CompareAndSwapCurrentGame(s.Ctx, alice, "", gameA)
	s.Require().NoError(err)

	id, err := s.Store.GetCurrentGame(s.Ctx, bob)
	s.Require().NoError(err)
	s.Empty(id)
}

func (s *Suite) TestConcurrentCompareAndSwapHasOneWinner() {
	games := []model.GameID{gameA, gameB, gameC}
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []model.GameID
	)
	for _, g := range games {
		wg.Add(1)
		go func(g model.GameID) {
			defer wg.Done()
			swapped, err := s.Store.CompareAndSwapCurrentGame(s.Ctx, alice, "", g)
			if err == nil && swapped {
				mu.Lock()
				winners = append(winners, g)
				mu.Unlock()
			}
		}(g)
	}
	wg.Wait()

	s.Require().Len(winners, 1)
	id, err := s.Store.GetCurrentGame(s.Ctx, alice)
	s.Require().NoError(err)
	s.Equal(winners[0], id)
}
