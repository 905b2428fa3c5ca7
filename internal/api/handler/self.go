package handler

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/missioncommand/internal/api/middleware"
	"github.com/mcoot/missioncommand/internal/api/response"
	"github.com/mcoot/missioncommand/internal/model"
	"github.com/mcoot/missioncommand/internal/services/auth"
)

// SelfHandler handles login, logout and the caller's own account
type SelfHandler struct {
	authService   *auth.Service
	secureCookies bool
	logger        *slog.Logger
}

// NewSelfHandler creates a new self handler
func NewSelfHandler(authService *auth.Service, secureCookies bool, logger *slog.Logger) *SelfHandler {
	return &SelfHandler{
		authService:   authService,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// Get handles GET /api/self.
// A request with a live session gets its user. Otherwise HTTP Basic
// credentials are checked and, when valid, a session is started and its
// cookies set. This is the only endpoint accepting Basic credentials.
func (h *SelfHandler) Get(w http.ResponseWriter, r *http.Request) {
	if user := middleware.GetUser(r.Context()); user != nil {
		response.JSON(w, http.StatusOK, response.UserFromModel(user))
		return
	}

	username, password, ok := r.BasicAuth()
	if !ok {
		writeError(h.logger, w, r, model.ErrNotAuthenticated)
		return
	}

	session, user, err := h.authService.Login(r.Context(), username, password)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	middleware.SetCookie(w, middleware.SessionCookie(session.Token, h.secureCookies))
	middleware.SetCookie(w, middleware.CSRFCookie(session.CSRFToken, h.secureCookies))
	response.JSON(w, http.StatusOK, response.UserFromModel(user))
}

// Logout handles POST /logout. Logging out without a session succeeds.
func (h *SelfHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if session := middleware.GetSession(r.Context()); session != nil {
		h.authService.Logout(session.Token)
		h.logger.Info("user logged out", slog.String("user_id", string(session.UserID)))
	}

	middleware.SetCookie(w, middleware.ExpiredCookie(middleware.SessionCookieName, h.secureCookies))
	middleware.SetCookie(w, middleware.ExpiredCookie(middleware.CSRFCookieName, h.secureCookies))
	response.NoContent(w)
}
