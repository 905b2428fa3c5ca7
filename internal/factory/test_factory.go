package factory

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/missioncommand/internal/dependencies/mocks"
	"github.com/mcoot/missioncommand/internal/model"
	"github.com/mcoot/missioncommand/internal/services/auth"
	"github.com/mcoot/missioncommand/internal/services/scenario"
	"github.com/mcoot/missioncommand/internal/storage/memory"
)

// TestAdministratorPassword is the Administrator's password in a TestApp
const TestAdministratorPassword = "administrator"

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies,
// memory storage, the built-in scenarios and an Administrator
func NewTestApp() *TestApp {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	scenarios, err := scenario.New(logger)
	if err != nil {
		panic("built-in scenario catalog: " + err.Error())
	}

	authCfg := auth.DefaultConfig()
	authCfg.BcryptCost = bcrypt.MinCost

	app := newWithDependencies(store, scenarios, mockClock, mockRandom, authCfg, logger)
	if err := app.AuthService.EnsureAdministrator(context.Background(), TestAdministratorPassword); err != nil {
		panic("ensure administrator: " + err.Error())
	}

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}

// Administrator returns the Administrator's caller
func (t *TestApp) Administrator() *model.Caller {
	return &model.Caller{UserID: model.AdministratorID, Authorities: model.AllAuthorities()}
}

// AddUser creates a user with the password "password"
func (t *TestApp) AddUser(ctx context.Context, username string, authorities ...model.Authority) (*model.User, error) {
	return t.AuthService.AddUser(ctx, t.Administrator(), model.UserDetails{
		Username:    username,
		Password:    "password",
		Authorities: model.NewAuthorities(authorities...),
	})
}

// ScenarioByTitle returns the ID of a built-in scenario
func (t *TestApp) ScenarioByTitle(title string) model.ScenarioID {
	for _, s := range t.Scenarios.List(context.Background()) {
		if s.Title == title {
			return model.ScenarioID(s.ID)
		}
	}
	panic("no scenario titled " + title)
}
