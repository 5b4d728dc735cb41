package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/interviewledger/internal/audit"
	"github.com/railzwaylabs/interviewledger/internal/clock"
	"github.com/railzwaylabs/interviewledger/internal/config"
	"github.com/railzwaylabs/interviewledger/internal/events"
	"github.com/railzwaylabs/interviewledger/internal/institution"
	"github.com/railzwaylabs/interviewledger/internal/invoice"
	"github.com/railzwaylabs/interviewledger/internal/ledger"
	"github.com/railzwaylabs/interviewledger/internal/migration"
	"github.com/railzwaylabs/interviewledger/internal/observability"
	"github.com/railzwaylabs/interviewledger/internal/pricechange"
	"github.com/railzwaylabs/interviewledger/internal/pricing"
	"github.com/railzwaylabs/interviewledger/internal/redis"
	"github.com/railzwaylabs/interviewledger/internal/scheduler"
	"github.com/railzwaylabs/interviewledger/internal/server"
	"github.com/railzwaylabs/interviewledger/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "interviewledger",
		Short:         "Interview pricing and session ledger",
		Version:       readVersionFromEnv(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("actor", "", "operator id recorded in the audit trail")

	root.AddCommand(
		newMigrateCmd(),
		newServeCmd(),
		newSchedulerCmd(),
		newTickCmd(),
		newResolveCmd(),
		newPriceChangeCmd(),
		newOverrideCmd(),
		newPurchaseCmd(),
		newSessionsCmd(),
		newInvoiceCmd(),
		newAuditCmd(),
	)
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and seed the global pricing row",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	var withScheduler bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe(withScheduler)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withScheduler, "with-scheduler", false, "also run the price change scheduler in-process")
	return cmd
}

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the price change scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			runScheduler()
			return nil
		},
	}
}

// coreModules wires storage and every domain service. Transports are
// added per command.
func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		redis.Module,
		events.Module,
		institution.Module,
		pricing.Module,
		pricechange.Module,
		ledger.Module,
		audit.Module,
		invoice.Module,
	)
}

func runMigrate() error {
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runServe(withScheduler bool) {
	opts := []fx.Option{
		coreModules(),
		server.Module,
	}
	if withScheduler {
		opts = append(opts, scheduler.Module, fx.Invoke(scheduler.Register))
	}
	fx.New(opts...).Run()
}

func runScheduler() {
	app := fx.New(
		coreModules(),
		scheduler.Module,
		fx.Invoke(scheduler.Register),
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("INTERVIEWLEDGER_VERSION")); v != "" {
		return v
	}
	return "dev"
}
