package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/missioncommand/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeForbidden            = "FORBIDDEN"
	CodeInvalidCSRFToken     = "INVALID_CSRF_TOKEN"
	CodeNotFound             = "NOT_FOUND"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeScenarioNotFound     = "SCENARIO_NOT_FOUND"
	CodeGameNotFound         = "GAME_NOT_FOUND"
	CodeCurrentGameNotFound  = "CURRENT_GAME_NOT_FOUND"
	CodeConflict             = "CONFLICT"
	CodeUsernameExists       = "USERNAME_EXISTS"
	CodeReservedUsername     = "RESERVED_USERNAME"
	CodeGameNotWaiting       = "GAME_NOT_WAITING_TO_START"
	CodeNotRecruiting        = "NOT_RECRUITING"
	CodePlayingOtherGame     = "PLAYING_OTHER_GAME"
	CodeNoFreeCharacter      = "NO_FREE_CHARACTER"
	CodeStoreUnavailable     = "STORE_UNAVAILABLE"
	CodeInternalError        = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// specific errors with their own code, checked before the kind fallback
var specific = []struct {
	err  error
	code string
}{
	{model.ErrInvalidCredentials, CodeInvalidCredentials},
	{model.ErrInvalidCSRFToken, CodeInvalidCSRFToken},
	{model.ErrUserNotFound, CodeUserNotFound},
	{model.ErrScenarioNotFound, CodeScenarioNotFound},
	{model.ErrGameNotFound, CodeGameNotFound},
	{model.ErrCurrentGameNotFound, CodeCurrentGameNotFound},
	{model.ErrDuplicateUsername, CodeUsernameExists},
	{model.ErrReservedUsername, CodeReservedUsername},
	{model.ErrGameNotWaitingToStart, CodeGameNotWaiting},
	{model.ErrNotRecruiting, CodeNotRecruiting},
	{model.ErrPlayingOtherGame, CodePlayingOtherGame},
	{model.ErrNoFreeCharacter, CodeNoFreeCharacter},
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status an error is reported with
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	status, code := statusOfKind(err)
	// Server-side failures are not described to the client
	if status >= http.StatusInternalServerError {
		message := "Internal server error"
		if status == http.StatusServiceUnavailable {
			message = "Storage is unavailable"
		}
		return &httpError{status, APIError{code, message}}
	}

	for _, s := range specific {
		if errors.Is(err, s.err) {
			code = s.code
			break
		}
	}
	return &httpError{status, APIError{code, err.Error()}}
}

func statusOfKind(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, CodeStoreUnavailable
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, model.ErrUnauthenticated):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, model.ErrBadRequest):
		return http.StatusBadRequest, CodeInvalidRequest
	default:
		return http.StatusInternalServerError, CodeInternalError
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewNotFoundError creates a not found error for an unknown route or a
// resource the caller may not learn about
func NewNotFoundError() error {
	return &httpError{http.StatusNotFound, APIError{CodeNotFound, "Not found"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
