package cli

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/mcoot/missioncommand/internal/model"
)

func newGameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Game commands",
	}

	cmd.AddCommand(newGameListCmd())
	cmd.AddCommand(newGameCreateCmd())
	cmd.AddCommand(newGameGetCmd())
	cmd.AddCommand(newGameMayJoinCmd())
	cmd.AddCommand(newGameCurrentCmd())
	cmd.AddCommand(newGameTransitionCmd("join", "Join a recruiting game", "join"))
	cmd.AddCommand(newGameTransitionCmd("start", "Start a game (game manager only)", "start"))
	cmd.AddCommand(newGameTransitionCmd("stop", "Stop a game (game manager only)", "stop"))
	cmd.AddCommand(newGameTransitionCmd("end-recruitment", "Stop recruiting players (game manager only)", "end-recruitment"))

	return cmd
}

func newGameListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <scenario>",
		Short: "List the games of a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseScenarioID(args[0])
			if err != nil {
				return err
			}

			var result []Identifier
			if err := client.Get(scenarioPath(id)+"/game", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newGameCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <scenario>",
		Short: "Create a game of a scenario (game manager only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseScenarioID(args[0])
			if err != nil {
				return err
			}

			var result Game
			if err := client.Follow(scenarioPath(id)+"/game", nil, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newGameGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <scenario> <game>",
		Short: "Get a game",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := gamePath(args)
			if err != nil {
				return err
			}

			var result Game
			if err := client.Get(path, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newGameMayJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "may-join <scenario> <game>",
		Short: "Check whether you may join a game",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := gamePath(args)
			if err != nil {
				return err
			}

			var may bool
			if err := client.Get(path+"/may-join", &may); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			if cfg.Output == "json" {
				out.Print(may)
			} else {
				out.PrintMessage(fmt.Sprintf("May join: %s", yesNo(may)))
			}
			return nil
		},
	}
}

func newGameCurrentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Get the game you are playing",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Do(http.MethodGet, "/api/self/current-game", nil, nil)
			if err != nil {
				return err
			}
			if resp.Location == "" {
				return fmt.Errorf("server did not redirect")
			}

			var result Game
			if err := client.Get(resp.Location, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

// newGameTransitionCmd builds a command posting to a game action endpoint
// and showing the game it redirects to
func newGameTransitionCmd(use, short, action string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <scenario> <game>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := gamePath(args)
			if err != nil {
				return err
			}

			var result Game
			if err := client.Follow(path+"/"+action, nil, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func gamePath(args []string) (string, error) {
	scenarioID, err := model.ParseScenarioID(args[0])
	if err != nil {
		return "", err
	}
	gameID, err := model.ParseGameID(args[1])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("/api/game/%s/%s", url.PathEscape(string(scenarioID)), url.PathEscape(string(gameID))), nil
}
