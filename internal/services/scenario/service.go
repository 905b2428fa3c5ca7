package scenario

import (
	"cmp"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/mcoot/missioncommand/internal/model"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// catalogFile is the YAML document describing available scenarios
type catalogFile struct {
	Scenarios []model.Scenario `yaml:"scenarios"`
}

// Service is the read-only catalog of scenarios
type Service struct {
	scenarios map[model.ScenarioID]*model.Scenario
	logger    *slog.Logger
}

// New creates a catalog from the built-in scenarios
func New(logger *slog.Logger) (*Service, error) {
	return Parse(defaultCatalog, logger)
}

// LoadFromFile creates a catalog from a YAML file
func LoadFromFile(path string, logger *slog.Logger) (*Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario catalog: %w", err)
	}
	return Parse(data, logger)
}

// Parse creates a catalog from YAML data.
// Scenario and character IDs must be UUIDs and unique.
func Parse(data []byte, logger *slog.Logger) (*Service, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse scenario catalog: %w", err)
	}

	scenarios := make(map[model.ScenarioID]*model.Scenario, len(file.Scenarios))
	for i := range file.Scenarios {
		sc := file.Scenarios[i]
		id, err := model.ParseScenarioID(string(sc.ID))
		if err != nil {
			return nil, fmt.Errorf("scenario %q: invalid id", sc.ID)
		}
		sc.ID = id
		if _, dup := scenarios[id]; dup {
			return nil, fmt.Errorf("scenario %s: duplicate id", id)
		}
		if len(sc.Characters) == 0 {
			return nil, fmt.Errorf("scenario %s: no characters", id)
		}
		seen := make(map[model.CharacterID]bool, len(sc.Characters))
		for _, c := range sc.Characters {
			if seen[c.ID] {
				return nil, fmt.Errorf("scenario %s: duplicate character %s", id, c.ID)
			}
			seen[c.ID] = true
		}
		scenarios[id] = &sc
	}

	logger.Info("scenario catalog loaded", slog.Int("scenario_count", len(scenarios)))

	return &Service{scenarios: scenarios, logger: logger}, nil
}

// List returns summaries of every scenario, ordered by title
func (s *Service) List(ctx context.Context) []model.NamedID {
	out := make([]model.NamedID, 0, len(s.scenarios))
	for _, sc := range s.scenarios {
		out = append(out, sc.Summary())
	}
	slices.SortFunc(out, func(a, b model.NamedID) int {
		if c := cmp.Compare(a.Title, b.Title); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Get returns the scenario with the given ID
func (s *Service) Get(ctx context.Context, id model.ScenarioID) (*model.Scenario, error) {
	sc, ok := s.scenarios[id]
	if !ok {
		return nil, model.ErrScenarioNotFound
	}
	c := *sc
	c.Characters = slices.Clone(sc.Characters)
	return &c, nil
}
