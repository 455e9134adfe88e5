package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fekuna/omnipos-ledger-service/internal/pkg/database"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down|status]",
		Short: "Apply, roll back or inspect schema migrations",
		Long: `Run the embedded goose migrations against the ledger database.

Examples:
  ledgerctl migrate up
  ledgerctl migrate down
  ledgerctl migrate status --format json`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := args[0]
			switch command {
			case "up", "down", "status":
			default:
				return WrapExitError(ExitCommandError, "migrate", fmt.Errorf("unknown command %q", command))
			}

			return withEnv(cmd.Context(), rootOpts, false, func(env *Env) error {
				if command != "status" {
					if err := database.Migrate(env.DB.DB, env.Dialect, command); err != nil {
						return WrapExitError(ExitFailure, "migrate "+command, err)
					}
				}

				version, err := database.Version(env.DB.DB, env.Dialect)
				if err != nil {
					return WrapExitError(ExitFailure, "read schema version", err)
				}
				return printResult(cmd.OutOrStdout(), rootOpts.Format,
					map[string]interface{}{"command": command, "version": version}, nil,
					fmt.Sprintf("schema version: %d", version),
				)
			})
		},
	}
}
