package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mcoot/missioncommand/internal/api/apierr"
	"github.com/mcoot/missioncommand/internal/api/middleware"
	"github.com/mcoot/missioncommand/internal/api/response"
	"github.com/mcoot/missioncommand/internal/model"
	"github.com/mcoot/missioncommand/internal/services/game"
)

// GameHandler handles game endpoints
type GameHandler struct {
	controller *game.Controller
	logger     *slog.Logger
}

// NewGameHandler creates a new game handler
func NewGameHandler(controller *game.Controller, logger *slog.Logger) *GameHandler {
	return &GameHandler{
		controller: controller,
		logger:     logger,
	}
}

// ListOfScenario handles GET /api/scenario/{scenario}/game
func (h *GameHandler) ListOfScenario(w http.ResponseWriter, r *http.Request) {
	ids, err := h.controller.GetGameIdentifiersOfScenario(r.Context(), middleware.GetCaller(r.Context()), scenarioVar(r))
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, response.IdentifiersFromModel(ids))
}

// Create handles POST /api/scenario/{scenario}/game
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())

	g, err := h.controller.CreateGame(r.Context(), caller, scenarioVar(r))
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	h.logger.Info("game created",
		slog.String("game_id", string(g.ID)),
		slog.String("scenario_id", string(g.ScenarioID)),
		slog.String("user_id", string(caller.UserID)),
	)

	response.Redirect(w, http.StatusFound, GamePath(g.Ref()))
}

// Get handles GET /api/game/{scenario}/{game}
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	g, err := h.controller.GetGame(r.Context(), middleware.GetCaller(r.Context()), gameRefVars(r))
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GameFromModel(g))
}

// MayJoin handles GET /api/game/{scenario}/{game}/may-join.
// Anonymous callers are told the game does not exist.
func (h *GameHandler) MayJoin(w http.ResponseWriter, r *http.Request) {
	may, err := h.controller.MayJoinGame(r.Context(), middleware.GetCaller(r.Context()), gameRefVars(r))
	if err != nil {
		writeError(h.logger, w, r, hideUnauthenticated(err))
		return
	}

	response.JSON(w, http.StatusOK, may)
}

// Join handles POST /api/game/{scenario}/{game}/join
func (h *GameHandler) Join(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "user joined game", h.controller.JoinGame)
}

// Start handles POST /api/game/{scenario}/{game}/start
func (h *GameHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "game started", h.controller.StartGame)
}

// Stop handles POST /api/game/{scenario}/{game}/stop
func (h *GameHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "game stopped", h.controller.StopGame)
}

// EndRecruitment handles POST /api/game/{scenario}/{game}/end-recruitment
func (h *GameHandler) EndRecruitment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "game recruitment ended", h.controller.EndRecruitment)
}

// CurrentGame handles GET /api/self/current-game.
// Anonymous callers are told there is no current game.
func (h *GameHandler) CurrentGame(w http.ResponseWriter, r *http.Request) {
	g, err := h.controller.GetCurrentGame(r.Context(), middleware.GetCaller(r.Context()))
	if err != nil {
		writeError(h.logger, w, r, hideUnauthenticated(err))
		return
	}

	response.Redirect(w, http.StatusTemporaryRedirect, GamePath(g.Ref()))
}

type gameOperation func(ctx context.Context, caller *model.Caller, ref model.GameRef) (*model.Game, error)

// transition runs a state-changing game operation and redirects to the game
func (h *GameHandler) transition(w http.ResponseWriter, r *http.Request, event string, op gameOperation) {
	caller := middleware.GetCaller(r.Context())

	g, err := op(r.Context(), caller, gameRefVars(r))
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	h.logger.Info(event,
		slog.String("game_id", string(g.ID)),
		slog.String("run_state", string(g.RunState)),
		slog.Bool("recruiting", g.Recruiting),
		slog.String("user_id", string(caller.UserID)),
	)

	response.Redirect(w, http.StatusFound, GamePath(g.Ref()))
}

func hideUnauthenticated(err error) error {
	if errors.Is(err, model.ErrUnauthenticated) {
		return apierr.NewNotFoundError()
	}
	return err
}
