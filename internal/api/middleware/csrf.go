package middleware

import (
	"net/http"

	"github.com/mcoot/missioncommand/internal/api/apierr"
	"github.com/mcoot/missioncommand/internal/model"
	"github.com/mcoot/missioncommand/internal/services/auth"
)

// CSRF guards state-changing requests with the double-submit token pattern.
//
// Safe requests are given an XSRF-TOKEN cookie when they lack a usable one:
// the session's token when logged in, an anonymous token otherwise. A request
// carrying Basic credentials gets none here; its login sets the cookie. Unsafe
// requests must echo the cookie in the X-XSRF-TOKEN header, and the token
// must have been issued by this server to the request's session. The check
// runs before any handler, so a forged request is refused with 403 whether
// or not it is authenticated.
func CSRF(authService *auth.Service, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var boundTo string
			session := GetSession(r.Context())
			if session != nil {
				boundTo = session.Token
			}

			var cookieToken string
			if cookie, err := r.Cookie(CSRFCookieName); err == nil {
				cookieToken = cookie.Value
			}

			if isSafeMethod(r.Method) {
				_, _, basic := r.BasicAuth()
				stale := cookieToken == "" || authService.ValidateCSRF(boundTo, cookieToken) != nil
				switch {
				case !stale:
				case session != nil:
					SetCookie(w, CSRFCookie(session.CSRFToken, secure))
				case !basic:
					token, err := authService.IssueCSRFToken()
					if err != nil {
						apierr.WriteError(w, err)
						return
					}
					SetCookie(w, CSRFCookie(token, secure))
				}
				next.ServeHTTP(w, r)
				return
			}

			headerToken := r.Header.Get(CSRFHeaderName)
			if headerToken == "" || headerToken != cookieToken {
				apierr.WriteError(w, model.ErrInvalidCSRFToken)
				return
			}
			if err := authService.ValidateCSRF(boundTo, headerToken); err != nil {
				apierr.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
