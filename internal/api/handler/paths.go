package handler

import (
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/mcoot/missioncommand/internal/model"
)

// UserPath is the resource path of a user
func UserPath(id model.UserID) string {
	return "/api/user/" + url.PathEscape(string(id))
}

// GamePath is the resource path of a game, nested under its scenario
func GamePath(ref model.GameRef) string {
	return "/api/game/" + url.PathEscape(string(ref.ScenarioID)) + "/" + url.PathEscape(string(ref.GameID))
}

func scenarioVar(r *http.Request) model.ScenarioID {
	return model.ScenarioID(mux.Vars(r)["scenario"])
}

func gameRefVars(r *http.Request) model.GameRef {
	vars := mux.Vars(r)
	return model.GameRef{
		ScenarioID: model.ScenarioID(vars["scenario"]),
		GameID:     model.GameID(vars["game"]),
	}
}
