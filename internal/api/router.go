package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/missioncommand/internal/api/apierr"
	"github.com/mcoot/missioncommand/internal/api/handler"
	"github.com/mcoot/missioncommand/internal/api/middleware"
	"github.com/mcoot/missioncommand/internal/api/response"
	"github.com/mcoot/missioncommand/internal/services/auth"
	"github.com/mcoot/missioncommand/internal/services/game"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	AuthService    *auth.Service
	Scenarios      handler.ScenarioCatalog
	GameController *game.Controller
	SecureCookies  bool
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFoundHandler)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	// Create handlers
	selfHandler := handler.NewSelfHandler(cfg.AuthService, cfg.SecureCookies, cfg.Logger)
	userHandler := handler.NewUserHandler(cfg.AuthService, cfg.Logger)
	scenarioHandler := handler.NewScenarioHandler(cfg.Scenarios, cfg.Logger)
	gameHandler := handler.NewGameHandler(cfg.GameController, cfg.Logger)

	// Session resolution runs before the anti-forgery check, which needs
	// the session; both run before any handler
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.Authenticate(cfg.AuthService))
	r.Use(middleware.CSRF(cfg.AuthService, cfg.SecureCookies))

	// Health check endpoint (no auth)
	r.HandleFunc("/api/health", healthHandler).Methods(http.MethodGet)

	// Session routes
	r.HandleFunc("/api/self", selfHandler.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/self/current-game", gameHandler.CurrentGame).Methods(http.MethodGet)
	r.HandleFunc("/logout", selfHandler.Logout).Methods(http.MethodPost)

	// User routes
	users := r.PathPrefix("/api/user").Subrouter()
	users.HandleFunc("", userHandler.List).Methods(http.MethodGet)
	users.HandleFunc("", userHandler.Add).Methods(http.MethodPost)
	users.HandleFunc("/{id}", userHandler.Get).Methods(http.MethodGet)

	// Scenario routes
	scenarios := r.PathPrefix("/api/scenario").Subrouter()
	scenarios.HandleFunc("", scenarioHandler.List).Methods(http.MethodGet)
	scenarios.HandleFunc("/{scenario}", scenarioHandler.Get).Methods(http.MethodGet)
	scenarios.HandleFunc("/{scenario}/game", gameHandler.ListOfScenario).Methods(http.MethodGet)
	scenarios.HandleFunc("/{scenario}/game", gameHandler.Create).Methods(http.MethodPost)

	// Game routes
	games := r.PathPrefix("/api/game/{scenario}/{game}").Subrouter()
	games.HandleFunc("", gameHandler.Get).Methods(http.MethodGet)
	games.HandleFunc("/may-join", gameHandler.MayJoin).Methods(http.MethodGet)
	games.HandleFunc("/join", gameHandler.Join).Methods(http.MethodPost)
	games.HandleFunc("/start", gameHandler.Start).Methods(http.MethodPost)
	games.HandleFunc("/stop", gameHandler.Stop).Methods(http.MethodPost)
	games.HandleFunc("/end-recruitment", gameHandler.EndRecruitment).Methods(http.MethodPost)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	apierr.WriteError(w, apierr.NewNotFoundError())
}

func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusMethodNotAllowed, apierr.ErrorResponse{
		Error: apierr.APIError{Code: "METHOD_NOT_ALLOWED", Message: "Method not allowed"},
	})
}
