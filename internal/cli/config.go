package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Config holds CLI configuration
type Config struct {
	ServerURL   string
	SessionFile string
	Output      string
	Verbose     bool
}

// SessionState is what the CLI remembers between invocations: the session
// cookie and the anti-forgery token bound to it
type SessionState struct {
	Session   string `json:"session,omitempty"`
	CSRFToken string `json:"csrf_token,omitempty"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:   getEnvOrDefault("MC_SERVER", "http://localhost:8080"),
		SessionFile: getEnvOrDefault("MC_SESSION_FILE", defaultSessionFile()),
		Output:      "text",
		Verbose:     false,
	}
}

// LoadSession reads the saved session. A missing file is an empty session.
func (c *Config) LoadSession() (SessionState, error) {
	var state SessionState

	data, err := os.ReadFile(c.SessionFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state, nil
		}
		return state, err
	}

	if err := json.Unmarshal(data, &state); err != nil {
		return SessionState{}, err
	}
	return state, nil
}

// SaveSession writes the session to the session file, removing the file
// once the session is gone
func (c *Config) SaveSession(state SessionState) error {
	if state == (SessionState{}) {
		if err := os.Remove(c.SessionFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}

	dir := filepath.Dir(c.SessionFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return os.WriteFile(c.SessionFile, data, 0600)
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mcctl/session.json"
	}
	return filepath.Join(home, ".mcctl", "session.json")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
