package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/mcoot/missioncommand/internal/api/apierr"
	"github.com/mcoot/missioncommand/internal/model"
	"github.com/mcoot/missioncommand/internal/services/auth"
)

type contextKey string

const (
	callerContextKey  contextKey = "caller"
	userContextKey    contextKey = "user"
	sessionContextKey contextKey = "session"
)

// Authenticate resolves the session cookie into the request's caller.
// Requests without a live session continue unauthenticated; each handler
// decides what an anonymous caller may do.
func Authenticate(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := authService.ValidateSession(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			caller, user, err := authService.Caller(r.Context(), session)
			switch {
			case errors.Is(err, model.ErrInvalidSession):
				// The user was removed or disabled after logging in
				authService.Logout(session.Token)
			case err != nil:
				apierr.WriteError(w, err)
				return
			default:
				r = r.WithContext(WithIdentity(r.Context(), session, caller, user))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WithIdentity returns a context carrying an authenticated session
func WithIdentity(ctx context.Context, session *auth.Session, caller *model.Caller, user *model.User) context.Context {
	ctx = context.WithValue(ctx, sessionContextKey, session)
	ctx = context.WithValue(ctx, callerContextKey, caller)
	ctx = context.WithValue(ctx, userContextKey, user)
	return ctx
}

// sessionToken extracts the session token from the request
func sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// GetCaller returns the authenticated caller, or nil for an anonymous request
func GetCaller(ctx context.Context) *model.Caller {
	caller, _ := ctx.Value(callerContextKey).(*model.Caller)
	return caller
}

// GetUser returns the authenticated user from the request context
func GetUser(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}

// GetSession returns the session from the request context
func GetSession(ctx context.Context) *auth.Session {
	session, _ := ctx.Value(sessionContextKey).(*auth.Session)
	return session
}
