package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type SweepOptions struct {
	*RootOptions
	At string
}

func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SweepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Apply every scheduled price change that is due",
		Long: `Run one scheduled price sweep across all merchants.

Items that fail for business reasons are marked failed and reported in the counts.
The exit code is 1 when any item hit an infrastructure error.

Examples:
  ledgerctl sweep
  ledgerctl sweep --at 2026-03-01T09:00:00Z`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			if opts.At != "" {
				at, err := time.Parse(time.RFC3339, opts.At)
				if err != nil {
					return WrapExitError(ExitCommandError, "--at must be RFC3339", err)
				}
				now = at.UTC()
			}

			return withEnv(cmd.Context(), rootOpts, true, func(env *Env) error {
				res, err := env.Pricing.RunDueScheduledChanges(cmd.Context(), now)
				if res == nil {
					return WrapExitError(ExitFailure, "sweep", err)
				}
				if perr := printResult(cmd.OutOrStdout(), opts.Format, res, err,
					fmt.Sprintf("applied: %d", res.Applied),
					fmt.Sprintf("failed:  %d", res.Failed),
					fmt.Sprintf("skipped: %d", res.Skipped),
				); perr != nil {
					return perr
				}
				if err != nil {
					return WrapExitError(ExitFailure, "sweep finished with errors", err)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.At, "at", "", "sweep as of this RFC3339 time instead of now")

	return cmd
}
