package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScenario() *Scenario {
	return &Scenario{
		ID:    "6b7a2e11-0d3f-4f39-8f0a-94b1c3d5e701",
		Title: "Raid",
		Characters: []Character{
			{ID: "commander", Title: "Commander"},
			{ID: "medic", Title: "Medic"},
		},
	}
}

func newTestGame() *Game {
	return NewGame("0b8e7f7c-3c52-4d8e-9f39-3f1c2a9d0b11", "6b7a2e11-0d3f-4f39-8f0a-94b1c3d5e701",
		time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
}

func TestNewGame(t *testing.T) {
	g := newTestGame()

	assert.Equal(t, RunStateWaitingToStart, g.RunState)
	assert.True(t, g.Recruiting)
	assert.Empty(t, g.Users)
	assert.Equal(t, "2024-01-01T12:00:00Z", g.Title())
}

func TestGameJoin_FillsCharactersInOrder(t *testing.T) {
	g := newTestGame()
	scenario := testScenario()

	ch, err := g.Join("alice", scenario)
	require.NoError(t, err)
	assert.Equal(t, CharacterID("commander"), ch)

	ch, err = g.Join("bob", scenario)
	require.NoError(t, err)
	assert.Equal(t, CharacterID("medic"), ch)

	_, err = g.Join("carol", scenario)
	assert.ErrorIs(t, err, ErrNoFreeCharacter)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestGameJoin_MemberKeepsCharacter(t *testing.T) {
	g := newTestGame()
	scenario := testScenario()

	_, err := g.Join("alice", scenario)
	require.NoError(t, err)
	g.EndRecruitment()

	ch, err := g.Join("alice", scenario)
	require.NoError(t, err)
	assert.Equal(t, CharacterID("commander"), ch)
	assert.Len(t, g.Users, 1)
}

func TestGameLeave(t *testing.T) {
	g := newTestGame()
	scenario := testScenario()
	_, err := g.Join("alice", scenario)
	require.NoError(t, err)
	_, err = g.Join("bob", scenario)
	require.NoError(t, err)

	assert.True(t, g.Leave("alice"))
	assert.False(t, g.HasUser("alice"))
	assert.Equal(t, map[CharacterID]UserID{"medic": "bob"}, g.Users)
	assert.False(t, g.Leave("alice"))

	// The freed character is the first taken again
	ch, err := g.Join("carol", scenario)
	require.NoError(t, err)
	assert.Equal(t, CharacterID("commander"), ch)
}

func TestGameJoin_NotRecruiting(t *testing.T) {
	g := newTestGame()
	g.EndRecruitment()

	_, err := g.Join("alice", testScenario())
	assert.ErrorIs(t, err, ErrNotRecruiting)
}

func TestGameLifecycle(t *testing.T) {
	g := newTestGame()

	require.NoError(t, g.Start())
	assert.Equal(t, RunStateRunning, g.RunState)
	assert.False(t, g.Recruiting)

	assert.ErrorIs(t, g.Start(), ErrGameNotWaitingToStart)

	g.Stop()
	assert.Equal(t, RunStateStopped, g.RunState)
	assert.ErrorIs(t, g.Start(), ErrGameNotWaitingToStart)
}

func TestGameStop_FromWaiting(t *testing.T) {
	g := newTestGame()
	g.Stop()

	assert.Equal(t, RunStateStopped, g.RunState)
	assert.False(t, g.Recruiting)
}

func TestGameCloneAndRedacted(t *testing.T) {
	g := newTestGame()
	_, err := g.Join("alice", testScenario())
	require.NoError(t, err)

	clone := g.Clone()
	clone.Users["medic"] = "bob"
	assert.Len(t, g.Users, 1)

	redacted := g.Redacted()
	assert.Empty(t, redacted.Users)
	assert.Equal(t, g.ID, redacted.ID)
	assert.True(t, g.HasUser("alice"))
}

func TestParseIDs(t *testing.T) {
	id, err := ParseGameID("0B8E7F7C-3C52-4D8E-9F39-3F1C2A9D0B11")
	require.NoError(t, err)
	assert.Equal(t, GameID("0b8e7f7c-3c52-4d8e-9f39-3f1c2a9d0b11"), id)

	_, err = ParseScenarioID("raid")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = ParseUserID("")
	assert.ErrorIs(t, err, ErrInvalidID)
}
