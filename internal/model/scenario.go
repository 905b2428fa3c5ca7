package model

import "github.com/google/uuid"

// ScenarioID uniquely identifies a scenario
type ScenarioID string

// CharacterID identifies a character within a scenario
type CharacterID string

// ParseScenarioID validates a textual scenario ID
func ParseScenarioID(s string) (ScenarioID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", ErrInvalidID
	}
	return ScenarioID(id.String()), nil
}

// Character is a role a player can take in a scenario
type Character struct {
	ID    CharacterID `json:"id" yaml:"id"`
	Title string      `json:"title" yaml:"title"`
}

// Scenario is an immutable template from which games are created
type Scenario struct {
	ID          ScenarioID  `json:"id" yaml:"id"`
	Title       string      `json:"title" yaml:"title"`
	Description string      `json:"description" yaml:"description"`
	Characters  []Character `json:"characters" yaml:"characters"`
}

// HasCharacter reports whether the scenario defines the character
func (s *Scenario) HasCharacter(id CharacterID) bool {
	for _, c := range s.Characters {
		if c.ID == id {
			return true
		}
	}
	return false
}

// Summary is the short (id, title) form of a scenario
func (s *Scenario) Summary() NamedID {
	return NamedID{ID: string(s.ID), Title: s.Title}
}

// NamedID pairs an identifier with a human-readable title
type NamedID struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
