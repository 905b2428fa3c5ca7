package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Cookie and header names used by the server
const (
	sessionCookie = "SESSION"
	csrfCookie    = "XSRF-TOKEN"
	csrfHeader    = "X-XSRF-TOKEN"
)

// Client is an HTTP client for the API. It carries the session and
// anti-forgery cookies by hand and never follows redirects, so the
// Location of a redirect is available to the caller.
type Client struct {
	baseURL    string
	state      SessionState
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string, state SessionState) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		state:   state,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Session returns the session state as last seen from the server
func (c *Client) Session() SessionState {
	return c.state
}

// APIError represents an error response from the API
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an API error
type ErrorResponse struct {
	Error APIError `json:"error"`
}

func (e *APIError) String() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Response is the outcome of a successful request
type Response struct {
	Status   int
	Location string
}

// Do performs an HTTP request. Redirects are successful responses; their
// target is returned in the Response.
func (c *Client) Do(method, path string, body, result any, configure ...func(*http.Request)) (*Response, error) {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if c.state.Session != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: c.state.Session})
	}
	if c.state.CSRFToken != "" {
		req.AddCookie(&http.Cookie{Name: csrfCookie, Value: c.state.CSRFToken})
		if method != http.MethodGet {
			req.Header.Set(csrfHeader, c.state.CSRFToken)
		}
	}
	for _, f := range configure {
		f(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.updateSession(resp)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Check for error responses
	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Code != "" {
			return nil, fmt.Errorf("%s", errResp.Error.String())
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	// Parse successful response
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return &Response{Status: resp.StatusCode, Location: resp.Header.Get("Location")}, nil
}

// updateSession applies the cookies the server set or deleted
func (c *Client) updateSession(resp *http.Response) {
	for _, cookie := range resp.Cookies() {
		value := cookie.Value
		if cookie.MaxAge < 0 {
			value = ""
		}
		switch cookie.Name {
		case sessionCookie:
			c.state.Session = value
		case csrfCookie:
			c.state.CSRFToken = value
		}
	}
}

// Get performs a GET request
func (c *Client) Get(path string, result any) error {
	_, err := c.Do(http.MethodGet, path, nil, result)
	return err
}

// Post performs a POST request and returns where the server redirected to.
// A request without an anti-forgery token first fetches one.
func (c *Client) Post(path string, body any) (string, error) {
	if c.state.CSRFToken == "" {
		if err := c.Get("/api/health", nil); err != nil {
			return "", err
		}
	}

	resp, err := c.Do(http.MethodPost, path, body, nil)
	if err != nil {
		return "", err
	}
	return resp.Location, nil
}

// Login starts a session with HTTP Basic credentials, discarding any
// session held before
func (c *Client) Login(username, password string) (User, error) {
	c.state = SessionState{}

	var user User
	_, err := c.Do(http.MethodGet, "/api/self", nil, &user, func(req *http.Request) {
		req.SetBasicAuth(username, password)
	})
	return user, err
}

// Follow posts to path and fetches the resource it redirects to
func (c *Client) Follow(path string, body, result any) error {
	location, err := c.Post(path, body)
	if err != nil {
		return err
	}
	if location == "" {
		return fmt.Errorf("server did not redirect")
	}
	return c.Get(location, result)
}
