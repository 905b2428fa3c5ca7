package game

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/missioncommand/internal/dependencies/mocks"
	"github.com/mcoot/missioncommand/internal/model"
	"github.com/mcoot/missioncommand/internal/services/scenario"
	"github.com/mcoot/missioncommand/internal/storage"
	"github.com/mcoot/missioncommand/internal/storage/memory"
	redisstorage "github.com/mcoot/missioncommand/internal/storage/redis"
	"github.com/mcoot/missioncommand/internal/storage/sqlite"
	"github.com/mcoot/missioncommand/internal/testutil"
)

const (
	raidID   model.ScenarioID = "11111111-1111-4111-8111-111111111111"
	patrolID model.ScenarioID = "22222222-2222-4222-8222-222222222222"

	commander model.CharacterID = "aaaaaaaa-0000-4000-8000-000000000001"
	medic     model.CharacterID = "aaaaaaaa-0000-4000-8000-000000000002"
)

const testCatalog = `
scenarios:
  - id: 11111111-1111-4111-8111-111111111111
    title: Raid
    characters:
      - id: aaaaaaaa-0000-4000-8000-000000000001
        title: Commander
      - id: aaaaaaaa-0000-4000-8000-000000000002
        title: Medic
  - id: 22222222-2222-4222-8222-222222222222
    title: Patrol
    characters:
      - id: bbbbbbbb-0000-4000-8000-000000000001
        title: Scout
`

// conflictingStorage fails the next updateConflicts game updates with a
// version conflict. beforeSwap, when set, runs ahead of every association
// compare-and-swap.
type conflictingStorage struct {
	storage.Storage

	mu              sync.Mutex
	updateConflicts int
	beforeSwap      func(user model.UserID, old, next model.GameID)
}

func (s *conflictingStorage) CompareAndSwapCurrentGame(ctx context.Context, user model.UserID, old, next model.GameID) (bool, error) {
	s.mu.Lock()
	hook := s.beforeSwap
	s.mu.Unlock()
	if hook != nil {
		hook(user, old, next)
	}
	return s.Storage.CompareAndSwapCurrentGame(ctx, user, old, next)
}

func (s *conflictingStorage) UpdateGame(ctx context.Context, game *model.Game) error {
	s.mu.Lock()
	if s.updateConflicts > 0 {
		s.updateConflicts--
		s.mu.Unlock()
		return model.ErrVersionConflict
	}
	s.mu.Unlock()
	return s.Storage.UpdateGame(ctx, game)
}

type ControllerSuite struct {
	suite.Suite
	storage    *conflictingStorage
	clock      *mocks.MockClock
	random     *mocks.MockRandom
	controller *Controller
	ctx        context.Context

	manager *model.Caller
	player  *model.Caller
	other   *model.Caller
	nobody  *model.Caller
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	scenarios, err := scenario.Parse([]byte(testCatalog), testutil.NopLogger())
	s.Require().NoError(err)

	s.storage = &conflictingStorage{Storage: memory.New()}
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.controller = NewController(s.storage, scenarios, s.clock, s.random)
	s.ctx = context.Background()

	s.manager = &model.Caller{UserID: "manager", Authorities: model.NewAuthorities(model.AuthorityManageGames)}
	s.player = &model.Caller{UserID: "player-1", Authorities: model.NewAuthorities(model.AuthorityPlayer)}
	s.other = &model.Caller{UserID: "player-2", Authorities: model.NewAuthorities(model.AuthorityPlayer)}
	s.nobody = &model.Caller{UserID: "nobody"}
}

func (s *ControllerSuite) createGame(scenarioID model.ScenarioID) *model.Game {
	game, err := s.controller.CreateGame(s.ctx, s.manager, scenarioID)
	s.Require().NoError(err)
	s.clock.Advance(time.Minute)
	return game
}

func (s *ControllerSuite) storedGame(ref model.GameRef) *model.Game {
	game, err := s.storage.GetGame(s.ctx, ref.GameID)
	s.Require().NoError(err)
	return game
}

func (s *ControllerSuite) currentGame(user model.UserID) model.GameID {
	id, err := s.storage.GetCurrentGame(s.ctx, user)
	s.Require().NoError(err)
	return id
}

// seat writes the user into the game directly, as a concurrent join would
func (s *ControllerSuite) seat(user model.UserID, id model.GameID) {
	game, err := s.storage.Storage.GetGame(s.ctx, id)
	s.Require().NoError(err)
	scenario, err := s.controller.scenarios.Get(s.ctx, game.ScenarioID)
	s.Require().NoError(err)
	_, err = game.Join(user, scenario)
	s.Require().NoError(err)
	s.Require().NoError(s.storage.Storage.UpdateGame(s.ctx, game))
}

func player(n string) *model.Caller {
	return &model.Caller{UserID: model.UserID("player-" + n), Authorities: model.NewAuthorities(model.AuthorityPlayer)}
}

// CreateGame tests

func (s *ControllerSuite) TestCreateGameSucceeds() {
	s.random.QueueUUID("33333333-3333-4333-8333-333333333333")

	game, err := s.controller.CreateGame(s.ctx, s.manager, raidID)
	s.Require().NoError(err)

	s.Equal(model.GameID("33333333-3333-4333-8333-333333333333"), game.ID)
	s.Equal(raidID, game.ScenarioID)
	s.Equal(s.clock.Now(), game.Created)
	s.Equal(model.RunStateWaitingToStart, game.RunState)
	s.True(game.Recruiting)
	s.Empty(game.Users)
}

func (s *ControllerSuite) TestCreateGameIsPersisted() {
	game := s.createGame(raidID)

	stored := s.storedGame(game.Ref())
	s.Equal(game.ID, stored.ID)
	s.Equal(int64(1), stored.Version)
}

func (s *ControllerSuite) TestCreateGameRequiresManageGames() {
	_, err := s.controller.CreateGame(s.ctx, s.player, raidID)
	s.ErrorIs(err, model.ErrForbidden)

	_, err = s.controller.CreateGame(s.ctx, nil, raidID)
	s.ErrorIs(err, model.ErrUnauthenticated)
}

func (s *ControllerSuite) TestCreateGameUnknownScenario() {
	_, err := s.controller.CreateGame(s.ctx, s.manager, "99999999-9999-4999-8999-999999999999")
	s.ErrorIs(err, model.ErrScenarioNotFound)
}

func (s *ControllerSuite) TestCreateGameChecksAuthorityBeforeScenario() {
	_, err := s.controller.CreateGame(s.ctx, s.player, "99999999-9999-4999-8999-999999999999")
	s.ErrorIs(err, model.ErrForbidden)
}

// GetGame tests

func (s *ControllerSuite) TestGetGameShowsUsersToManager() {
	game := s.createGame(raidID)
	_, err := s.controller.JoinGame(s.ctx, s.player, game.Ref())
	s.Require().NoError(err)

	seen, err := s.controller.GetGame(s.ctx, s.manager, game.Ref())
	s.Require().NoError(err)
	s.Equal(map[model.CharacterID]model.UserID{commander: s.player.UserID}, seen.Users)
}

func (s *ControllerSuite) TestGetGameHidesUsersFromPlayer() {
	game := s.createGame(raidID)
	_, err := s.controller.JoinGame(s.ctx, s.player, game.Ref())
	s.Require().NoError(err)

	seen, err := s.controller.GetGame(s.ctx, s.player, game.Ref())
	s.Require().NoError(err)
	s.Equal(game.ID, seen.ID)
	s.Empty(seen.Users)

	// The stored game is untouched
	s.Len(s.storedGame(game.Ref()).Users, 1)
}

func (s *ControllerSuite) TestGetGameUnderWrongScenarioIsNotFound() {
	game := s.createGame(raidID)

	_, err := s.controller.GetGame(s.ctx, s.manager, model.GameRef{ScenarioID: patrolID, GameID: game.ID})
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *ControllerSuite) TestGetGameNotFound() {
	_, err := s.controller.GetGame(s.ctx, s.manager, model.GameRef{ScenarioID: raidID, GameID: "missing"})
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *ControllerSuite) TestGetGameChecksAuthorityBeforeExistence() {
	_, err := s.controller.GetGame(s.ctx, s.nobody, model.GameRef{ScenarioID: raidID, GameID: "missing"})
	s.ErrorIs(err, model.ErrForbidden)

	_, err = s.controller.GetGame(s.ctx, nil, model.GameRef{ScenarioID: raidID, GameID: "missing"})
	s.ErrorIs(err, model.ErrUnauthenticated)
}

// GetGameIdentifiersOfScenario tests

func (s *ControllerSuite) TestGameIdentifiersAreOldestFirst() {
	first := s.createGame(raidID)
	second := s.createGame(raidID)
	s.createGame(patrolID)

	ids, err := s.controller.GetGameIdentifiersOfScenario(s.ctx, s.player, raidID)
	s.Require().NoError(err)
	s.Equal([]model.NamedID{first.Identifier(), second.Identifier()}, ids)
}

func (s *ControllerSuite) TestGameIdentifiersOfEmptyScenario() {
	ids, err := s.controller.GetGameIdentifiersOfScenario(s.ctx, s.manager, patrolID)
	s.Require().NoError(err)
	s.Empty(ids)
}

func (s *ControllerSuite) TestGameIdentifiersUnknownScenario() {
	_, err := s.controller.GetGameIdentifiersOfScenario(s.ctx, s.player, "99999999-9999-4999-8999-999999999999")
	s.ErrorIs(err, model.ErrScenarioNotFound)
}

func (s *ControllerSuite) TestGameIdentifiersRequireAuthority() {
	_, err := s.controller.GetGameIdentifiersOfScenario(s.ctx, s.nobody, raidID)
	s.ErrorIs(err, model.ErrForbidden)
}

// Lifecycle tests

func (s *ControllerSuite) TestStartGame() {
	game := s.createGame(raidID)

	started, err := s.controller.StartGame(s.ctx, s.manager, game.Ref())
	s.Require().NoError(err)
	s.Equal(model.RunStateRunning, started.RunState)
	s.False(started.Recruiting)

	stored := s.storedGame(game.Ref())
	s.Equal(model.RunStateRunning, stored.RunState)
	s.Equal(int64(2), stored.Version)
}

func (s *ControllerSuite) TestStartGameTwiceConflicts() {
	game := s.createGame(raidID)
	_, err := s.controller.StartGame(s.ctx, s.manager, game.Ref())
	s.Require().NoError(err)

	_, err = s.controller.StartGame(s.ctx, s.manager, game.Ref())
	s.ErrorIs(err, model.ErrGameNotWaitingToStart)
	s.ErrorIs(err, model.ErrConflict)
}

func (s *ControllerSuite) TestStartStoppedGameConflicts() {
	game := s.createGame(raidID)
	_, err := s.controller.StopGame(s.ctx, s.manager, game.Ref())
	s.Require().NoError(err)

	_, err = s.controller.StartGame(s.ctx, s.manager, game.Ref())
	s.ErrorIs(err, model.ErrGameNotWaitingToStart)
}

func (s *ControllerSuite) TestStopGameFromAnyState() {
	waiting := s.createGame(raidID)
	running := s.createGame(raidID)
	_, err := s.controller.StartGame(s.ctx, s.manager, running.Ref())
	s.Require().NoError(err)

	for _, ref := range []model.GameRef{waiting.Ref(), running.Ref()} {
		stopped, err := s.controller.StopGame(s.ctx, s.manager, ref)
		s.Require().NoError(err)
		s.Equal(model.RunStateStopped, stopped.RunState)
		s.False(stopped.Recruiting)
	}

	_, err = s.controller.StopGame(s.ctx, s.manager, running.Ref())
	s.NoError(err)
}

func (s *ControllerSuite) TestEndRecruitmentIsIdempotent() {
	game := s.createGame(raidID)

	for i := 0; i < 2; i++ {
		ended, err := s.controller.EndRecruitment(s.ctx, s.manager, game.Ref())
		s.Require().NoError(err)
		s.False(ended.Recruiting)
		s.Equal(model.RunStateWaitingToStart, ended.RunState)
	}
}

func (s *ControllerSuite) TestLifecycleRequiresManageGames() {
	game := s.createGame(raidID)

	_, err := s.controller.StartGame(s.ctx, s.player, game.Ref())
	s.ErrorIs(err, model.ErrForbidden)
	_, err = s.controller.StopGame(s.ctx, s.player, game.Ref())
	s.ErrorIs(err, model.ErrForbidden)
	_, err = s.controller.EndRecruitment(s.ctx, s.player, game.Ref())
	s.ErrorIs(err, model.ErrForbidden)
	_, err = s.controller.StartGame(s.ctx, nil, game.Ref())
	s.ErrorIs(err, model.ErrUnauthenticated)

	s.Equal(model.RunStateWaitingToStart, s.storedGame(game.Ref()).RunState)
}

func (s *ControllerSuite) TestLifecycleChecksAuthorityBeforeExistence() {
	missing := model.GameRef{ScenarioID: raidID, GameID: "missing"}

	_, err := s.controller.StartGame(s.ctx, s.player, missing)
	s.ErrorIs(err, model.ErrForbidden)

	_, err = s.controller.StartGame(s.ctx, s.manager, missing)
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *ControllerSuite) TestUpdateRetriesVersionConflicts() {
	game := s.createGame(raidID)
	s.storage.updateConflicts = maxUpdateAttempts - 1

	started, err := s.controller.StartGame(s.ctx, s.manager, game.Ref())
	s.Require().NoError(err)
	s.Equal(model.RunStateRunning, started.RunState)
}

func (s *ControllerSuite) TestUpdateGivesUpUnderContention() {
	game := s.createGame(raidID)
	s.storage.updateConflicts = maxUpdateAttempts

	_, err := s.controller.StartGame(s.ctx, s.manager, game.Ref())
	s.ErrorIs(err, model.ErrStoreUnavailable)
	s.Equal(model.RunStateWaitingToStart, s.storedGame(game.Ref()).RunState)
}

// MayJoinGame tests

func (s *ControllerSuite) TestMayJoinFollowsRecruiting() {
	game := s.createGame(raidID)

	may, err := s.controller.MayJoinGame(s.ctx, s.player, game.Ref())
	s.Require().NoError(err)
	s.True(may)

	_, err = s.controller.EndRecruitment(s.ctx, s.manager, game.Ref())
	s.Require().NoError(err)

	may, err = s.controller.MayJoinGame(s.ctx, s.player, game.Ref())
	s.Require().NoError(err)
	s.False(may)
}

func (s *ControllerSuite) TestMayJoinIgnoresCallersOtherGame() {
	first := s.createGame(raidID)
	second := s.createGame(raidID)
	_, err := s.controller.JoinGame(s.ctx, s.player, first.Ref())
	s.Require().NoError(err)

	may, err := s.controller.MayJoinGame(s.ctx, s.player, second.Ref())
	s.Require().NoError(err)
	s.True(may)
}

func (s *ControllerSuite) TestMayJoinRequiresPlayer() {
	game := s.createGame(raidID)

	_, err := s.controller.MayJoinGame(s.ctx, s.manager, game.Ref())
	s.ErrorIs(err, model.ErrForbidden)

	_, err = s.controller.MayJoinGame(s.ctx, nil, game.Ref())
	s.ErrorIs(err, model.ErrUnauthenticated)
}

// JoinGame tests

func (s *ControllerSuite) TestJoinTakesFirstFreeCharacter() {
	game := s.createGame(raidID)

	_, err := s.controller.JoinGame(s.ctx, s.player, game.Ref())
	s.Require().NoError(err)
	_, err = s.controller.JoinGame(s.ctx, s.other, game.Ref())
	s.Require().NoError(err)

	stored := s.storedGame(game.Ref())
	s.Equal(map[model.CharacterID]model.UserID{
		commander: s.player.UserID,
		medic:     s.other.UserID,
	}, stored.Users)
	s.Equal(game.ID, s.currentGame(s.player.UserID))
	s.Equal(game.ID, s.currentGame(s.other.UserID))
}

func (s *ControllerSuite) TestJoinIsIdempotent() {
	game := s.createGame(raidID)

	_, err := s.controller.JoinGame(s.ctx, s.player, game.Ref())
	s.Require().NoError(err)
	_, err = s.controller.JoinGame(s.ctx, s.player, game.Ref())
	s.Require().NoError(err)

	stored := s.storedGame(game.Ref())
	s.Len(stored.Users, 1)
	s.Equal(s.player.UserID, stored.Users[commander])
}

func (s *ControllerSuite) TestRejoinAfterRecruitmentEnds() {
	game := s.createGame(raidID)
	_, err := s.controller.JoinGame(s.ctx, s.player, game.Ref())
	s.Require().NoError(err)
	_, err = s.controller.StartGame(s.ctx, s.manager, game.Ref())
	s.Require().NoError(err)

	_, err = s.controller.JoinGame(s.ctx, s.player, game.Ref())
	s.NoError(err)
}

func (s *ControllerSuite) TestJoinNotRecruiting() {
	game := s.createGame(raidID)
	_, err := s.controller.EndRecruitment(s.ctx, s.manager, game.Ref())
	s.Require().NoError(err)

	_, err = s.controller.JoinGame(s.ctx, s.player, game.Ref())
	s.ErrorIs(err, model.ErrNotRecruiting)
	s.Empty(s.currentGame(s.player.UserID))
}

func (s *ControllerSuite) TestJoinFullGameReleasesClaim() {
	game := s.createGame(patrolID)
	_, err := s.controller.JoinGame(s.ctx, s.player, game.Ref())
	s.Require().NoError(err)

	_, err = s.controller.JoinGame(s.ctx, s.other, game.Ref())
	s.ErrorIs(err, model.ErrNoFreeCharacter)
	s.ErrorIs(err, model.ErrConflict)
	s.Empty(s.currentGame(s.other.UserID))
}

func (s *ControllerSuite) TestJoinWhilePlayingOtherGame() {
	first := s.createGame(raidID)
	second := s.createGame(raidID)
	_, err := s.controller.JoinGame(s.ctx, s.player, first.Ref())
	s.Require().NoError(err)

	_, err = s.controller.JoinGame(s.ctx, s.player, second.Ref())
	s.ErrorIs(err, model.ErrPlayingOtherGame)

	s.Empty(s.storedGame(second.Ref()).Users)
	s.Equal(first.ID, s.currentGame(s.player.UserID))
}

func (s *ControllerSuite) TestJoinRequiresPlayer() {
	game := s.createGame(raidID)

	_, err := s.controller.JoinGame(s.ctx, s.manager, game.Ref())
	s.ErrorIs(err, model.ErrForbidden)

	_, err = s.controller.JoinGame(s.ctx, s.player, model.GameRef{ScenarioID: raidID, GameID: "missing"})
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *ControllerSuite) TestJoinRetriesVersionConflicts() {
	game := s.createGame(raidID)
	s.storage.updateConflicts = 3

	_, err := s.controller.JoinGame(s.ctx, s.player, game.Ref())
	s.Require().NoError(err)
	s.Equal(s.player.UserID, s.storedGame(game.Ref()).Users[commander])
}

func (s *ControllerSuite) TestJoinUnderContentionReleasesClaim() {
	game := s.createGame(raidID)
	s.storage.updateConflicts = maxUpdateAttempts

	_, err := s.controller.JoinGame(s.ctx, s.player, game.Ref())
	s.ErrorIs(err, model.ErrStoreUnavailable)
	s.Empty(s.currentGame(s.player.UserID))
	s.Empty(s.storedGame(game.Ref()).Users)
}

func (s *ControllerSuite) TestJoinTakesOverStaleAssociation() {
	abandoned := s.createGame(raidID)
	game := s.createGame(raidID)
	swapped, err := s.storage.CompareAndSwapCurrentGame(s.ctx, s.player.UserID, "", abandoned.ID)
	s.Require().NoError(err)
	s.Require().True(swapped)

	// Nobody holds a slot, so there is nothing to rebuild
	changed, err := s.controller.RebuildCurrentGameIndex(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, changed)

	_, err = s.controller.JoinGame(s.ctx, s.player, game.Ref())
	s.Require().NoError(err)

	s.True(s.storedGame(game.Ref()).HasUser(s.player.UserID))
	s.Equal(game.ID, s.currentGame(s.player.UserID))
	current, err := s.controller.GetCurrentGame(s.ctx, s.player)
	s.Require().NoError(err)
	s.Equal(game.ID, current.ID)
}

func (s *ControllerSuite) TestJoinTakesOverAssociationWithMissingGame() {
	game := s.createGame(raidID)
	swapped, err := s.storage.CompareAndSwapCurrentGame(s.ctx, s.player.UserID, "", "99999999-9999-4999-8999-999999999999")
	s.Require().NoError(err)
	s.Require().True(swapped)

	_, err = s.controller.JoinGame(s.ctx, s.player, game.Ref())
	s.Require().NoError(err)
	s.Equal(game.ID, s.currentGame(s.player.UserID))
}

func (s *ControllerSuite) TestJoinYieldsToLandingJoinOfStaleGame() {
	first := s.createGame(raidID)
	second := s.createGame(raidID)
	swapped, err := s.storage.CompareAndSwapCurrentGame(s.ctx, s.player.UserID, "", first.ID)
	s.Require().NoError(err)
	s.Require().True(swapped)

	// The join of the first game writes its slot just as the association moves
	var once sync.Once
	s.storage.beforeSwap = func(user model.UserID, old, next model.GameID) {
		if old == first.ID && next == second.ID {
			once.Do(func() { s.seat(user, first.ID) })
		}
	}

	_, err = s.controller.JoinGame(s.ctx, s.player, second.Ref())
	s.ErrorIs(err, model.ErrPlayingOtherGame)

	s.Empty(s.storedGame(second.Ref()).Users)
	s.Equal(first.ID, s.currentGame(s.player.UserID))
}

func (s *ControllerSuite) TestFailedJoinRestoresAssociationOfConcurrentJoin() {
	game := s.createGame(raidID)
	s.storage.updateConflicts = maxUpdateAttempts

	// A concurrent join of the same game lands before the claim is released
	var once sync.Once
	s.storage.beforeSwap = func(user model.UserID, old, next model.GameID) {
		if old == game.ID && next == "" {
			once.Do(func() { s.seat(user, game.ID) })
		}
	}

	_, err := s.controller.JoinGame(s.ctx, s.player, game.Ref())
	s.ErrorIs(err, model.ErrStoreUnavailable)

	s.True(s.storedGame(game.Ref()).HasUser(s.player.UserID))
	s.Equal(game.ID, s.currentGame(s.player.UserID))
}

func (s *ControllerSuite) TestFailedJoinGivesUpSlotWhenUserMovedOn() {
	game := s.createGame(raidID)
	elsewhere := s.createGame(patrolID)
	s.storage.updateConflicts = maxUpdateAttempts

	// A concurrent join lands in this game, then the user claims another
	var seated, moved sync.Once
	s.storage.beforeSwap = func(user model.UserID, old, next model.GameID) {
		switch {
		case old == game.ID && next == "":
			seated.Do(func() { s.seat(user, game.ID) })
		case old == "" && next == game.ID && s.storedGame(game.Ref()).HasUser(user):
			moved.Do(func() {
				swapped, err := s.storage.Storage.CompareAndSwapCurrentGame(s.ctx, user, "", elsewhere.ID)
				s.Require().NoError(err)
				s.Require().True(swapped)
			})
		}
	}

	_, err := s.controller.JoinGame(s.ctx, s.player, game.Ref())
	s.ErrorIs(err, model.ErrStoreUnavailable)

	s.False(s.storedGame(game.Ref()).HasUser(s.player.UserID))
	s.Equal(elsewhere.ID, s.currentGame(s.player.UserID))
}

// Concurrent joins run against every storage backend

func TestConcurrentJoins(t *testing.T) {
	backends := map[string]func(t *testing.T) storage.Storage{
		"memory": func(*testing.T) storage.Storage { return memory.New() },
		"redis": func(t *testing.T) storage.Storage {
			mini := miniredis.RunT(t)
			store := redisstorage.NewWithClient(goredis.NewClient(&goredis.Options{Addr: mini.Addr()}), redisstorage.DefaultConfig())
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
		"sqlite": func(t *testing.T) storage.Storage {
			store, err := sqlite.New(context.Background(), sqlite.Config{Path: filepath.Join(t.TempDir(), "mc.db")})
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	}

	for name, newStorage := range backends {
		t.Run(name, func(t *testing.T) {
			t.Run("different games", func(t *testing.T) {
				testConcurrentJoinsOfDifferentGames(t, newStorage(t))
			})
			t.Run("distinct characters", func(t *testing.T) {
				testConcurrentJoinsFillDistinctCharacters(t, newStorage(t))
			})
		})
	}
}

func newTestController(t *testing.T, store storage.Storage) *Controller {
	t.Helper()
	scenarios, err := scenario.Parse([]byte(testCatalog), testutil.NopLogger())
	require.NoError(t, err)
	return NewController(store, scenarios, mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)), mocks.NewMockRandom())
}

var testManager = &model.Caller{UserID: "manager", Authorities: model.NewAuthorities(model.AuthorityManageGames)}

func testConcurrentJoinsOfDifferentGames(t *testing.T, store storage.Storage) {
	ctx := context.Background()
	controller := newTestController(t, store)
	joiner := player("1")

	first, err := controller.CreateGame(ctx, testManager, raidID)
	require.NoError(t, err)
	second, err := controller.CreateGame(ctx, testManager, raidID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, ref := range []model.GameRef{first.Ref(), second.Ref()} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = controller.JoinGame(ctx, joiner, ref)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, model.ErrPlayingOtherGame)
		}
	}
	assert.Equal(t, 1, succeeded)

	storedFirst, err := store.GetGame(ctx, first.ID)
	require.NoError(t, err)
	storedSecond, err := store.GetGame(ctx, second.ID)
	require.NoError(t, err)
	inFirst := storedFirst.HasUser(joiner.UserID)
	assert.NotEqual(t, inFirst, storedSecond.HasUser(joiner.UserID))

	current, err := controller.GetCurrentGame(ctx, joiner)
	require.NoError(t, err)
	if inFirst {
		assert.Equal(t, first.ID, current.ID)
	} else {
		assert.Equal(t, second.ID, current.ID)
	}
}

func testConcurrentJoinsFillDistinctCharacters(t *testing.T, store storage.Storage) {
	ctx := context.Background()
	controller := newTestController(t, store)

	game, err := controller.CreateGame(ctx, testManager, raidID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = controller.JoinGame(ctx, player(string(rune('a'+i))), game.Ref())
		}()
	}
	wg.Wait()

	stored, err := store.GetGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Users, 2)

	joined := 0
	for i, err := range errs {
		user := player(string(rune('a' + i))).UserID
		current, getErr := store.GetCurrentGame(ctx, user)
		require.NoError(t, getErr)
		if err == nil {
			joined++
			assert.True(t, stored.HasUser(user))
			assert.Equal(t, game.ID, current)
		} else {
			assert.ErrorIs(t, err, model.ErrNoFreeCharacter)
			assert.False(t, stored.HasUser(user))
			assert.Empty(t, current)
		}
	}
	assert.Equal(t, 2, joined)
}

// GetCurrentGame tests

func (s *ControllerSuite) TestCurrentGameAfterJoin() {
	game := s.createGame(raidID)
	_, err := s.controller.JoinGame(s.ctx, s.player, game.Ref())
	s.Require().NoError(err)

	current, err := s.controller.GetCurrentGame(s.ctx, s.player)
	s.Require().NoError(err)
	s.Equal(game.ID, current.ID)
	s.Equal(raidID, current.ScenarioID)
	s.Empty(current.Users)
}

func (s *ControllerSuite) TestCurrentGameNone() {
	_, err := s.controller.GetCurrentGame(s.ctx, s.player)
	s.ErrorIs(err, model.ErrCurrentGameNotFound)
}

func (s *ControllerSuite) TestCurrentGameIgnoresUnfilledClaim() {
	game := s.createGame(raidID)
	swapped, err := s.storage.CompareAndSwapCurrentGame(s.ctx, s.player.UserID, "", game.ID)
	s.Require().NoError(err)
	s.Require().True(swapped)

	_, err = s.controller.GetCurrentGame(s.ctx, s.player)
	s.ErrorIs(err, model.ErrCurrentGameNotFound)
}

func (s *ControllerSuite) TestCurrentGameRequiresAuthentication() {
	_, err := s.controller.GetCurrentGame(s.ctx, nil)
	s.ErrorIs(err, model.ErrUnauthenticated)
}

// RebuildCurrentGameIndex tests

func (s *ControllerSuite) TestRebuildCurrentGameIndex() {
	game := s.createGame(raidID)
	_, err := s.controller.JoinGame(s.ctx, s.player, game.Ref())
	s.Require().NoError(err)
	_, err = s.controller.JoinGame(s.ctx, s.other, game.Ref())
	s.Require().NoError(err)

	// Lose one association
	swapped, err := s.storage.CompareAndSwapCurrentGame(s.ctx, s.other.UserID, game.ID, "")
	s.Require().NoError(err)
	s.Require().True(swapped)

	changed, err := s.controller.RebuildCurrentGameIndex(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, changed)
	s.Equal(game.ID, s.currentGame(s.other.UserID))

	changed, err = s.controller.RebuildCurrentGameIndex(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, changed)
}
