package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case User:
		o.printUser(v)
	case []User:
		o.printUsers(v)
	case []Identifier:
		o.printIdentifiers(v)
	case Scenario:
		o.printScenario(v)
	case Game:
		o.printGame(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// User response type (matches API)
type User struct {
	ID                    string   `json:"id"`
	Username              string   `json:"username"`
	Authorities           []string `json:"authorities"`
	Enabled               bool     `json:"enabled"`
	AccountNonExpired     bool     `json:"account_non_expired"`
	AccountNonLocked      bool     `json:"account_non_locked"`
	CredentialsNonExpired bool     `json:"credentials_non_expired"`
}

// Identifier response type
type Identifier struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Character response type
type Character struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Scenario response type
type Scenario struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Characters  []Character `json:"characters"`
}

// Game response type
type Game struct {
	ID         string            `json:"id"`
	Scenario   string            `json:"scenario"`
	Title      string            `json:"title"`
	Created    time.Time         `json:"created"`
	RunState   string            `json:"run_state"`
	Recruiting bool              `json:"recruiting"`
	Users      map[string]string `json:"users"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printUser(u User) {
	_, _ = fmt.Fprintf(o.w, "User: %s (%s)\n", u.Username, u.ID)
	_, _ = fmt.Fprintf(o.w, "Authorities: %s\n", strings.Join(u.Authorities, ", "))
	_, _ = fmt.Fprintf(o.w, "Enabled: %s\n", yesNo(u.Enabled))
}

func (o *Output) printUsers(users []User) {
	tw := tabwriter.NewWriter(o.w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tUSERNAME\tAUTHORITIES")
	for _, u := range users {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", u.ID, u.Username, strings.Join(u.Authorities, ","))
	}
	_ = tw.Flush()
}

func (o *Output) printIdentifiers(ids []Identifier) {
	if len(ids) == 0 {
		_, _ = fmt.Fprintln(o.w, "(none)")
		return
	}
	for _, id := range ids {
		_, _ = fmt.Fprintf(o.w, "%s  %s\n", id.ID, id.Title)
	}
}

func (o *Output) printScenario(s Scenario) {
	_, _ = fmt.Fprintf(o.w, "Scenario: %s (%s)\n", s.Title, s.ID)
	if s.Description != "" {
		_, _ = fmt.Fprintf(o.w, "%s\n", s.Description)
	}
	_, _ = fmt.Fprintf(o.w, "Characters (%d):\n", len(s.Characters))
	for _, c := range s.Characters {
		_, _ = fmt.Fprintf(o.w, "  - %s (%s)\n", c.Title, c.ID)
	}
}

func (o *Output) printGame(g Game) {
	_, _ = fmt.Fprintf(o.w, "Game: %s (%s)\n", g.Title, g.ID)
	_, _ = fmt.Fprintf(o.w, "Scenario: %s\n", g.Scenario)
	_, _ = fmt.Fprintf(o.w, "Created: %s\n", g.Created.Format(time.RFC3339))
	_, _ = fmt.Fprintf(o.w, "State: %s\n", g.RunState)
	_, _ = fmt.Fprintf(o.w, "Recruiting: %s\n", yesNo(g.Recruiting))

	if len(g.Users) > 0 {
		characters := make([]string, 0, len(g.Users))
		for c := range g.Users {
			characters = append(characters, c)
		}
		sort.Strings(characters)

		_, _ = fmt.Fprintf(o.w, "Players (%d):\n", len(g.Users))
		for _, c := range characters {
			_, _ = fmt.Fprintf(o.w, "  - %s: %s\n", c, g.Users[c])
		}
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	_, _ = fmt.Fprintf(o.w, "Status: %s\n", h.Status)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
