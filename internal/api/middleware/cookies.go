package middleware

import (
	"net/http"
	"strings"
)

// Cookie and header names shared with browser clients
const (
	SessionCookieName = "SESSION"
	CSRFCookieName    = "XSRF-TOKEN"
	CSRFHeaderName    = "X-XSRF-TOKEN"
)

// SessionCookie returns the cookie carrying a session token. Scripts
// cannot read it.
func SessionCookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// CSRFCookie returns the cookie carrying an anti-forgery token. Scripts read
// it and echo it in the X-XSRF-TOKEN header.
func CSRFCookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredCookie returns a cookie that deletes name from the client
func ExpiredCookie(name string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:   name,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
		Secure: secure,
	}
}

// SetCookie adds a Set-Cookie header, replacing one already set for the
// same cookie in this response
func SetCookie(w http.ResponseWriter, cookie *http.Cookie) {
	prefix := cookie.Name + "="
	existing := w.Header().Values("Set-Cookie")
	kept := make([]string, 0, len(existing))
	for _, v := range existing {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}

	w.Header().Del("Set-Cookie")
	for _, v := range kept {
		w.Header().Add("Set-Cookie", v)
	}
	http.SetCookie(w, cookie)
}
