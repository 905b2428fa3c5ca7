package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mcoot/missioncommand/internal/api/middleware"
	"github.com/mcoot/missioncommand/internal/api/response"
	"github.com/mcoot/missioncommand/internal/model"
)

// ScenarioCatalog is the scenario lookup used by the API
type ScenarioCatalog interface {
	List(ctx context.Context) []model.NamedID
	Get(ctx context.Context, id model.ScenarioID) (*model.Scenario, error)
}

// ScenarioHandler handles scenario catalog endpoints. Any logged-in user
// may read the catalog.
type ScenarioHandler struct {
	scenarios ScenarioCatalog
	logger    *slog.Logger
}

// NewScenarioHandler creates a new scenario handler
func NewScenarioHandler(scenarios ScenarioCatalog, logger *slog.Logger) *ScenarioHandler {
	return &ScenarioHandler{
		scenarios: scenarios,
		logger:    logger,
	}
}

// List handles GET /api/scenario
func (h *ScenarioHandler) List(w http.ResponseWriter, r *http.Request) {
	if middleware.GetCaller(r.Context()) == nil {
		writeError(h.logger, w, r, model.ErrNotAuthenticated)
		return
	}

	response.JSON(w, http.StatusOK, response.IdentifiersFromModel(h.scenarios.List(r.Context())))
}

// Get handles GET /api/scenario/{scenario}
func (h *ScenarioHandler) Get(w http.ResponseWriter, r *http.Request) {
	if middleware.GetCaller(r.Context()) == nil {
		writeError(h.logger, w, r, model.ErrNotAuthenticated)
		return
	}

	scenario, err := h.scenarios.Get(r.Context(), scenarioVar(r))
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ScenarioFromModel(scenario))
}
