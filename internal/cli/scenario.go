package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/mcoot/missioncommand/internal/model"
)

func newScenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Scenario catalog commands",
	}

	cmd.AddCommand(newScenarioListCmd())
	cmd.AddCommand(newScenarioGetCmd())

	return cmd
}

func newScenarioListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []Identifier

			if err := client.Get("/api/scenario", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newScenarioGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <scenario>",
		Short: "Get a scenario and its characters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseScenarioID(args[0])
			if err != nil {
				return err
			}

			var result Scenario
			if err := client.Get(scenarioPath(id), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func scenarioPath(id model.ScenarioID) string {
	return fmt.Sprintf("/api/scenario/%s", url.PathEscape(string(id)))
}
