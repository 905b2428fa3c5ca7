package game

import (
	"context"
	"errors"

	"github.com/mcoot/missioncommand/internal/dependencies/clock"
	"github.com/mcoot/missioncommand/internal/dependencies/random"
	"github.com/mcoot/missioncommand/internal/model"
	"github.com/mcoot/missioncommand/internal/storage"
)

// maxUpdateAttempts bounds the optimistic retry loop for a single game write
const maxUpdateAttempts = 10

// ErrContention is returned when a game keeps changing under an update
var ErrContention = &model.StoreError{Op: "update game", Err: errors.New("too many concurrent modifications")}

// Scenarios is the read side of the scenario catalog
type Scenarios interface {
	Get(ctx context.Context, id model.ScenarioID) (*model.Scenario, error)
}

// Controller enforces the game lifecycle and who may drive it.
//
// Every operation checks the caller's authority before looking anything up,
// so an unauthorized caller learns nothing about which games exist. Writes to
// a game are optimistic: read, mutate, then a version-checked update, retried
// on conflict.
type Controller struct {
	storage   storage.Storage
	scenarios Scenarios
	clock     clock.Clock
	random    random.Random
}

// NewController creates a new game Controller
func NewController(storage storage.Storage, scenarios Scenarios, clock clock.Clock, random random.Random) *Controller {
	return &Controller{
		storage:   storage,
		scenarios: scenarios,
		clock:     clock,
		random:    random,
	}
}

// CreateGame creates a game of the scenario, waiting to start and recruiting
func (c *Controller) CreateGame(ctx context.Context, caller *model.Caller, scenarioID model.ScenarioID) (*model.Game, error) {
	if err := caller.Require(model.AuthorityManageGames); err != nil {
		return nil, err
	}
	if _, err := c.scenarios.Get(ctx, scenarioID); err != nil {
		return nil, err
	}

	game := model.NewGame(model.GameID(c.random.UUID()), scenarioID, c.clock.Now())
	if err := c.storage.CreateGame(ctx, game); err != nil {
		return nil, err
	}
	return game, nil
}

// GetGame returns a game. Callers without ROLE_MANAGE_GAMES see it without
// the user slots.
func (c *Controller) GetGame(ctx context.Context, caller *model.Caller, ref model.GameRef) (*model.Game, error) {
	if err := caller.Require(model.AuthorityManageGames, model.AuthorityPlayer); err != nil {
		return nil, err
	}
	game, err := c.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return visibleTo(caller, game), nil
}

// GetGameIdentifiersOfScenario lists the games of a scenario, oldest first
func (c *Controller) GetGameIdentifiersOfScenario(ctx context.Context, caller *model.Caller, scenarioID model.ScenarioID) ([]model.NamedID, error) {
	if err := caller.Require(model.AuthorityManageGames, model.AuthorityPlayer); err != nil {
		return nil, err
	}
	if _, err := c.scenarios.Get(ctx, scenarioID); err != nil {
		return nil, err
	}

	games, err := c.storage.ListGamesOfScenario(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	ids := make([]model.NamedID, len(games))
	for i, g := range games {
		ids[i] = g.Identifier()
	}
	return ids, nil
}

// EndRecruitment stops the game accepting players. Repeating it is harmless.
func (c *Controller) EndRecruitment(ctx context.Context, caller *model.Caller, ref model.GameRef) (*model.Game, error) {
	if err := caller.Require(model.AuthorityManageGames); err != nil {
		return nil, err
	}
	return c.update(ctx, ref, func(g *model.Game) error {
		g.EndRecruitment()
		return nil
	})
}

// StartGame moves a game waiting to start to RUNNING
func (c *Controller) StartGame(ctx context.Context, caller *model.Caller, ref model.GameRef) (*model.Game, error) {
	if err := caller.Require(model.AuthorityManageGames); err != nil {
		return nil, err
	}
	return c.update(ctx, ref, func(g *model.Game) error {
		return g.Start()
	})
}

// StopGame moves a game to STOPPED, whatever its state
func (c *Controller) StopGame(ctx context.Context, caller *model.Caller, ref model.GameRef) (*model.Game, error) {
	if err := caller.Require(model.AuthorityManageGames); err != nil {
		return nil, err
	}
	return c.update(ctx, ref, func(g *model.Game) error {
		g.Stop()
		return nil
	})
}

// MayJoinGame reports whether the game is recruiting. It does not consider
// whether this caller could join.
func (c *Controller) MayJoinGame(ctx context.Context, caller *model.Caller, ref model.GameRef) (bool, error) {
	if err := caller.Require(model.AuthorityPlayer); err != nil {
		return false, err
	}
	game, err := c.load(ctx, ref)
	if err != nil {
		return false, err
	}
	return game.Recruiting, nil
}

// JoinGame places the caller in the first free character of a recruiting game.
//
// The caller's current-game association is claimed with a compare-and-swap
// before the slot is written, so two joins by one user into different games
// cannot both succeed. An association to a game that does not list the caller
// is stale and is taken over. If the slot cannot be written the claim is
// released.
func (c *Controller) JoinGame(ctx context.Context, caller *model.Caller, ref model.GameRef) (*model.Game, error) {
	if err := caller.Require(model.AuthorityPlayer); err != nil {
		return nil, err
	}
	user := caller.UserID

	game, err := c.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	scenario, err := c.scenarios.Get(ctx, game.ScenarioID)
	if err != nil {
		return nil, err
	}

	if game.HasUser(user) {
		// Repair a missing association; a different one is left alone
		if _, err := c.storage.CompareAndSwapCurrentGame(ctx, user, "", game.ID); err != nil {
			return nil, err
		}
		return visibleTo(caller, game), nil
	}
	if !game.Recruiting {
		return nil, model.ErrNotRecruiting
	}

	id := game.ID
	claimed, err := c.claimCurrentGame(ctx, user, id)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		if attempt > 0 {
			if game, err = c.storage.GetGame(ctx, id); err != nil {
				return nil, c.abandonClaim(ctx, claimed, user, id, err)
			}
			// Moving an association fences the game it left, so the claim
			// is checked after the read the write is based on
			current, err := c.storage.GetCurrentGame(ctx, user)
			if err != nil {
				return nil, c.abandonClaim(ctx, claimed, user, id, err)
			}
			took, err := c.holdClaim(ctx, user, id, current)
			if err != nil {
				return nil, c.abandonClaim(ctx, claimed, user, id, err)
			}
			claimed = claimed || took
		}
		if _, err := game.Join(user, scenario); err != nil {
			return nil, c.abandonClaim(ctx, claimed, user, id, err)
		}
		err = c.storage.UpdateGame(ctx, game)
		if err == nil {
			return visibleTo(caller, game), nil
		}
		if !errors.Is(err, model.ErrVersionConflict) {
			return nil, c.abandonClaim(ctx, claimed, user, id, err)
		}
	}
	return nil, c.abandonClaim(ctx, claimed, user, id, ErrContention)
}

// GetCurrentGame returns the game the caller is playing
func (c *Controller) GetCurrentGame(ctx context.Context, caller *model.Caller) (*model.Game, error) {
	if caller == nil {
		return nil, model.ErrNotAuthenticated
	}

	id, err := c.storage.GetCurrentGame(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, model.ErrCurrentGameNotFound
	}

	game, err := c.storage.GetGame(ctx, id)
	if errors.Is(err, model.ErrGameNotFound) {
		return nil, model.ErrCurrentGameNotFound
	}
	if err != nil {
		return nil, err
	}
	// The association is claimed before the slot is written
	if !game.HasUser(caller.UserID) {
		return nil, model.ErrCurrentGameNotFound
	}
	return visibleTo(caller, game), nil
}

// RebuildCurrentGameIndex points every slot holder's association at the game
// that lists them. It returns the number of associations changed.
func (c *Controller) RebuildCurrentGameIndex(ctx context.Context) (int, error) {
	games, err := c.storage.ListGames(ctx)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, game := range games {
		for _, user := range game.Users {
			current, err := c.storage.GetCurrentGame(ctx, user)
			if err != nil {
				return changed, err
			}
			if current == game.ID {
				continue
			}
			swapped, err := c.storage.CompareAndSwapCurrentGame(ctx, user, current, game.ID)
			if err != nil {
				return changed, err
			}
			if swapped {
				changed++
			}
		}
	}
	return changed, nil
}

// load reads a game and checks it belongs to the addressed scenario
func (c *Controller) load(ctx context.Context, ref model.GameRef) (*model.Game, error) {
	game, err := c.storage.GetGame(ctx, ref.GameID)
	if err != nil {
		return nil, err
	}
	if ref.ScenarioID != "" && game.ScenarioID != ref.ScenarioID {
		return nil, model.ErrGameNotFound
	}
	return game, nil
}

// update applies mutate to the latest version of a game until the write
// is not contended
func (c *Controller) update(ctx context.Context, ref model.GameRef, mutate func(*model.Game) error) (*model.Game, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		game, err := c.load(ctx, ref)
		if err != nil {
			return nil, err
		}
		if err := mutate(game); err != nil {
			return nil, err
		}
		err = c.storage.UpdateGame(ctx, game)
		if err == nil {
			return game, nil
		}
		if !errors.Is(err, model.ErrVersionConflict) {
			return nil, err
		}
	}
	return nil, ErrContention
}

// claimCurrentGame sets the user's association to the game. It reports
// whether this call moved the association; one already pointing at the game
// is accepted.
func (c *Controller) claimCurrentGame(ctx context.Context, user model.UserID, id model.GameID) (bool, error) {
	current, err := c.storage.GetCurrentGame(ctx, user)
	if err != nil {
		return false, err
	}
	if current != "" && current != id {
		return c.adoptStaleClaim(ctx, user, current, id)
	}
	return c.holdClaim(ctx, user, id, current)
}

// holdClaim accepts an association pointing at the game and takes an empty
// one. It reports whether it set the association.
func (c *Controller) holdClaim(ctx context.Context, user model.UserID, id, current model.GameID) (bool, error) {
	if current == id {
		return false, nil
	}
	if current != "" {
		return false, model.ErrPlayingOtherGame
	}

	swapped, err := c.storage.CompareAndSwapCurrentGame(ctx, user, "", id)
	if err != nil {
		return false, err
	}
	if swapped {
		return true, nil
	}

	// Lost a race; only a concurrent join of the same game is acceptable
	current, err = c.storage.GetCurrentGame(ctx, user)
	if err != nil {
		return false, err
	}
	if current != id {
		return false, model.ErrPlayingOtherGame
	}
	return false, nil
}

// adoptStaleClaim moves the association from a game that is missing or does
// not list the user, as left by a join that never wrote its slot
func (c *Controller) adoptStaleClaim(ctx context.Context, user model.UserID, stale, id model.GameID) (bool, error) {
	game, err := c.storage.GetGame(ctx, stale)
	switch {
	case errors.Is(err, model.ErrGameNotFound):
	case err != nil:
		return false, err
	case game.HasUser(user):
		return false, model.ErrPlayingOtherGame
	}

	swapped, err := c.storage.CompareAndSwapCurrentGame(ctx, user, stale, id)
	if err != nil {
		return false, err
	}
	if !swapped {
		current, err := c.storage.GetCurrentGame(ctx, user)
		if err != nil {
			return false, err
		}
		if current != id {
			return false, model.ErrPlayingOtherGame
		}
		return false, nil
	}

	// A join of the stale game may still be in flight
	member, err := c.fence(ctx, user, stale)
	if err == nil && !member {
		return true, nil
	}
	if _, restoreErr := c.storage.CompareAndSwapCurrentGame(context.WithoutCancel(ctx), user, id, stale); restoreErr != nil {
		err = errors.Join(err, restoreErr)
	}
	if err != nil {
		return false, err
	}
	return false, model.ErrPlayingOtherGame
}

// abandonClaim releases an association created by this join and returns
// cause. If the user is listed in the game after all, by this join or a
// concurrent one, the association is put back.
func (c *Controller) abandonClaim(ctx context.Context, claimed bool, user model.UserID, id model.GameID, cause error) error {
	if !claimed {
		return cause
	}
	ctx = context.WithoutCancel(ctx)

	released, err := c.storage.CompareAndSwapCurrentGame(ctx, user, id, "")
	if err != nil {
		return errors.Join(cause, err)
	}
	if !released {
		return cause
	}

	member, err := c.fence(ctx, user, id)
	if err != nil {
		return errors.Join(cause, err)
	}
	if !member {
		return cause
	}

	restored, err := c.storage.CompareAndSwapCurrentGame(ctx, user, "", id)
	if err != nil {
		return errors.Join(cause, err)
	}
	if restored {
		return cause
	}
	// The user has claimed another game since; the slot goes
	_, err = c.update(ctx, model.GameRef{GameID: id}, func(g *model.Game) error {
		g.Leave(user)
		return nil
	})
	if err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// fence writes the game unchanged, failing any concurrent write based on an
// earlier read, and reports whether the user holds a slot in it. A missing
// game has no slots.
func (c *Controller) fence(ctx context.Context, user model.UserID, id model.GameID) (bool, error) {
	member := false
	_, err := c.update(ctx, model.GameRef{GameID: id}, func(g *model.Game) error {
		member = g.HasUser(user)
		return nil
	})
	if errors.Is(err, model.ErrGameNotFound) {
		return false, nil
	}
	return member, err
}

// visibleTo hides the user slots from callers who may not manage games
func visibleTo(caller *model.Caller, game *model.Game) *model.Game {
	if caller.Has(model.AuthorityManageGames) {
		return game
	}
	return game.Redacted()
}
