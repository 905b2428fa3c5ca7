package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/mcoot/missioncommand/internal/model"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User administration commands",
	}

	cmd.AddCommand(newUserListCmd())
	cmd.AddCommand(newUserAddCmd())
	cmd.AddCommand(newUserGetCmd())

	return cmd
}

func newUserListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []User

			if err := client.Get("/api/user", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newUserAddCmd() *cobra.Command {
	var (
		password    string
		authorities []string
	)

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Add a user",
		Long: `Add a user with the given authorities. Authorities may be given with or
without the ROLE_ prefix, e.g. --authority player --authority MANAGE_GAMES.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"username":    args[0],
				"password":    password,
				"authorities": authorities,
			}

			var result User
			if err := client.Follow("/api/user", body, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Password for the new user")
	cmd.Flags().StringArrayVar(&authorities, "authority", nil, "Authority to grant (repeatable)")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newUserGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseUserID(args[0])
			if err != nil {
				return err
			}

			var result User
			if err := client.Get(fmt.Sprintf("/api/user/%s", url.PathEscape(string(id))), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}
