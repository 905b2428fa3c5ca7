package model

import (
	"time"

	"github.com/google/uuid"
)

// GameID uniquely identifies a game
type GameID string

// ParseGameID validates a textual game ID
func ParseGameID(s string) (GameID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", ErrInvalidID
	}
	return GameID(id.String()), nil
}

// RunState is the lifecycle phase of a game
type RunState string

const (
	RunStateWaitingToStart RunState = "WAITING_TO_START"
	RunStateRunning        RunState = "RUNNING"
	RunStateStopped        RunState = "STOPPED"
)

// Game is a single play-through of a scenario
type Game struct {
	ID         GameID                 `json:"id"`
	ScenarioID ScenarioID             `json:"scenario_id"`
	Created    time.Time              `json:"created"`
	RunState   RunState               `json:"run_state"`
	Recruiting bool                   `json:"recruiting"`
	Users      map[CharacterID]UserID `json:"users"`

	// Version is managed by storage and increases on every update
	Version int64 `json:"version"`
}

// NewGame returns a game waiting to start and recruiting players
func NewGame(id GameID, scenarioID ScenarioID, created time.Time) *Game {
	return &Game{
		ID:         id,
		ScenarioID: scenarioID,
		Created:    created,
		RunState:   RunStateWaitingToStart,
		Recruiting: true,
		Users:      make(map[CharacterID]UserID),
	}
}

// Clone returns a deep copy
func (g *Game) Clone() *Game {
	c := *g
	c.Users = make(map[CharacterID]UserID, len(g.Users))
	for ch, u := range g.Users {
		c.Users[ch] = u
	}
	return &c
}

// Redacted returns a copy with the user slots hidden
func (g *Game) Redacted() *Game {
	c := g.Clone()
	c.Users = make(map[CharacterID]UserID)
	return c
}

// Title is the display name of the game
func (g *Game) Title() string {
	return g.Created.UTC().Format(time.RFC3339)
}

// CharacterOf returns the character played by the user
func (g *Game) CharacterOf(user UserID) (CharacterID, bool) {
	for ch, u := range g.Users {
		if u == user {
			return ch, true
		}
	}
	return "", false
}

// HasUser reports whether the user occupies a slot
func (g *Game) HasUser(user UserID) bool {
	_, ok := g.CharacterOf(user)
	return ok
}

// Start moves the game to RUNNING and closes recruitment
func (g *Game) Start() error {
	if g.RunState != RunStateWaitingToStart {
		return ErrGameNotWaitingToStart
	}
	g.RunState = RunStateRunning
	g.Recruiting = false
	return nil
}

// Stop moves the game to STOPPED from any state
func (g *Game) Stop() {
	g.RunState = RunStateStopped
	g.Recruiting = false
}

// EndRecruitment closes recruitment
func (g *Game) EndRecruitment() {
	g.Recruiting = false
}

// Join places the user in the first free character of the scenario.
// A user already in the game keeps their character.
func (g *Game) Join(user UserID, scenario *Scenario) (CharacterID, error) {
	if ch, ok := g.CharacterOf(user); ok {
		return ch, nil
	}
	if !g.Recruiting {
		return "", ErrNotRecruiting
	}
	for _, c := range scenario.Characters {
		if _, taken := g.Users[c.ID]; !taken {
			g.Users[c.ID] = user
			return c.ID, nil
		}
	}
	return "", ErrNoFreeCharacter
}

// Leave frees the user's character. It reports whether the user held one.
func (g *Game) Leave(user UserID) bool {
	ch, ok := g.CharacterOf(user)
	if ok {
		delete(g.Users, ch)
	}
	return ok
}

// Identifier is the short (id, title) form of a game
func (g *Game) Identifier() NamedID {
	return NamedID{ID: string(g.ID), Title: g.Title()}
}

// GameRef addresses a game within its scenario
type GameRef struct {
	ScenarioID ScenarioID
	GameID     GameID
}

// Ref returns the address of the game
func (g *Game) Ref() GameRef {
	return GameRef{ScenarioID: g.ScenarioID, GameID: g.ID}
}
