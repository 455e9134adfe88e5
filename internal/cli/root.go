// Package cli implements ledgerctl, the operator command line for the ledger service.
package cli

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/fekuna/omnipos-ledger-service/config"
	"github.com/fekuna/omnipos-ledger-service/internal/app"
	"github.com/fekuna/omnipos-ledger-service/internal/pricing"
	"github.com/fekuna/omnipos-ledger-service/internal/stock"
)

// Env is what a command runs against.
type Env struct {
	DB      *sqlx.DB
	Dialect string
	Stock   stock.UseCase
	Pricing pricing.UseCase
	Close   func() error
}

// Opener builds an Env. full is false for commands that only need the database.
type Opener func(ctx context.Context, full bool) (*Env, error)

type RootOptions struct {
	Format string // "json" | "text"
	Open   Opener
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand builds ledgerctl. A nil opener connects using the service's environment config.
func NewRootCommand(open Opener) *cobra.Command {
	if open == nil {
		open = openFromEnv
	}
	opts := &RootOptions{Open: open}

	cmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the inventory and pricing ledger",
		Long:  "Operator commands for the ledger service: schema migrations, scheduled price sweeps and stock reconciliation.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewCheckpointCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func openFromEnv(_ context.Context, full bool) (*Env, error) {
	cfg := config.LoadEnv()

	if !full {
		db, err := app.OpenDB(cfg)
		if err != nil {
			return nil, err
		}
		return &Env{DB: db, Dialect: "postgres", Close: db.Close}, nil
	}

	// command output goes to stdout; only warnings and errors are logged
	cfg.Logger.Level = "warn"
	a, err := app.New(cfg, app.NewLogger(cfg))
	if err != nil {
		return nil, err
	}
	return &Env{
		DB:      a.DB,
		Dialect: "postgres",
		Stock:   a.Stock,
		Pricing: a.Pricing,
		Close:   a.Close,
	}, nil
}

// withEnv opens an Env for the duration of fn.
func withEnv(ctx context.Context, opts *RootOptions, full bool, fn func(env *Env) error) (err error) {
	env, err := opts.Open(ctx, full)
	if err != nil {
		return WrapExitError(ExitCommandError, "connect", err)
	}
	defer func() {
		if env.Close == nil {
			return
		}
		if cerr := env.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(env)
}
