package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/missioncommand/internal/api/apierr"
	"github.com/mcoot/missioncommand/internal/api/middleware"
	"github.com/mcoot/missioncommand/internal/api/request"
	"github.com/mcoot/missioncommand/internal/api/response"
	"github.com/mcoot/missioncommand/internal/model"
	"github.com/mcoot/missioncommand/internal/services/auth"
)

// UserHandler handles user management endpoints
type UserHandler struct {
	authService *auth.Service
	logger      *slog.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(authService *auth.Service, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		authService: authService,
		logger:      logger,
	}
}

// List handles GET /api/user
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.authService.ListUsers(r.Context(), middleware.GetCaller(r.Context()))
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, response.UsersFromModel(users))
}

// Add handles POST /api/user
func (h *UserHandler) Add(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())
	// Report missing authority before complaining about the body
	if err := caller.Require(model.AuthorityManageUsers); err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	var req request.AddUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, r, apierr.NewInvalidRequestError("invalid request body"))
		return
	}

	user, err := h.authService.AddUser(r.Context(), caller, req.Details())
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	response.Redirect(w, http.StatusFound, UserPath(user.ID))
}

// Get handles GET /api/user/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := model.UserID(mux.Vars(r)["id"])

	user, err := h.authService.GetUser(r.Context(), middleware.GetCaller(r.Context()), id)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, response.UserFromModel(user))
}
