package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "mcctl",
		Short: "CLI tool for the Mission Command API",
		Long: `mcctl is a CLI tool for interacting with the Mission Command JSON API.

It logs in with a username and password, remembers the session between
invocations, and covers user administration, the scenario catalog and the
game lifecycle.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			state, err := cfg.LoadSession()
			if err != nil {
				return err
			}

			// Create HTTP client
			client = NewClient(cfg.ServerURL, state)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.SaveSession(client.Session())
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: MC_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.SessionFile, "session-file", cfg.SessionFile, "Session file path (env: MC_SESSION_FILE)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newSelfCmd())
	rootCmd.AddCommand(newUserCmd())
	rootCmd.AddCommand(newScenarioCmd())
	rootCmd.AddCommand(newGameCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
